// Command verityd serves the content credibility API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ahrav/go-verity/infrastructure/httpapi"
	"github.com/ahrav/go-verity/internal/application"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	configPath := flag.String("config", os.Getenv("VERITY_CONFIG"), "path to the YAML configuration file")
	addr := flag.String("addr", "", "listen address (overrides config)")
	checkOnly := flag.Bool("check-config", false, "validate the configuration and exit")
	flag.Parse()

	if err := run(*configPath, *addr, *checkOnly); err != nil {
		slog.Error("verityd failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath, addr string, checkOnly bool) error {
	cfg, err := application.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if addr != "" {
		cfg.Server.Address = addr
	}

	logger := application.ConfigureLogging(cfg.Logging.Level, cfg.Logging.Format)
	if checkOnly {
		logger.Info("configuration is valid", "path", configPath)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := application.NewService(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build service: %w", err)
	}

	opts := httpapi.Options{
		Mode:        cfg.Server.Mode,
		CORSOrigins: cfg.Server.CORSOrigins,
		Logger:      logger,
		Version:     version,
	}
	if svc.Metrics != nil {
		opts.MetricsHandler = svc.Metrics.Handler()
		opts.MetricsPath = cfg.Metrics.Path
	}
	router := httpapi.NewRouter(svc.Analyzer, opts)

	serveErr := httpapi.Serve(ctx, httpapi.ServerConfig{
		Address:         cfg.Server.Address,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, router, logger)

	if err := svc.Close(); err != nil {
		logger.Warn("failed to release resources", "error", err)
	}
	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		return serveErr
	}
	logger.Info("verityd stopped")
	return nil
}
