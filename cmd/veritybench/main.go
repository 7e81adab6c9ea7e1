// Command veritybench runs a labeled dataset through the analysis
// pipeline and reports how often it reaches the expected verdict.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-verity/internal/application"
	"github.com/ahrav/go-verity/internal/testutils"
)

type options struct {
	configPath  string
	datasetPath string
	generateOut string
	size        int
	seed        int64
	concurrency int
	jsonOutput  bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", os.Getenv("VERITY_CONFIG"), "path to the YAML configuration file")
	flag.StringVar(&opts.datasetPath, "dataset", "", "dataset JSON file (a synthetic dataset is generated when empty)")
	flag.StringVar(&opts.generateOut, "generate", "", "write a synthetic dataset to this path and exit")
	flag.IntVar(&opts.size, "size", 500, "number of synthetic cases")
	flag.Int64Var(&opts.seed, "seed", 1, "seed for the synthetic dataset")
	flag.IntVar(&opts.concurrency, "concurrency", 8, "number of analyses run in parallel")
	flag.BoolVar(&opts.jsonOutput, "json", false, "print the summary as JSON")
	flag.Parse()

	if err := run(opts); err != nil {
		slog.Error("veritybench failed", "error", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	if opts.generateOut != "" {
		dataset := testutils.GenerateSampleBenchmarkDataset(opts.size, opts.seed)
		if err := testutils.SaveBenchmarkDataset(dataset, opts.generateOut); err != nil {
			return err
		}
		stats := testutils.ComputeDatasetStatistics(dataset)
		fmt.Printf("wrote %d cases to %s\n", stats.TotalCases, opts.generateOut)
		fmt.Printf("labels: %v\n", stats.LabelCount)
		fmt.Printf("categories: %v\n", stats.CategoryCount)
		fmt.Printf("with source url: %d\n", stats.WithSourceURL)
		return nil
	}

	dataset, err := loadDataset(opts)
	if err != nil {
		return err
	}

	cfg, err := application.LoadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := application.ConfigureLogging(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := application.NewService(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build service: %w", err)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Warn("failed to release resources", "error", err)
		}
	}()

	metrics := testutils.NewBenchmarkMetrics()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, opts.concurrency))

	start := time.Now()
	for _, c := range dataset.Cases {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			began := time.Now()
			report, err := svc.Analyzer.Analyze(gctx, c.Input)
			metrics.Record(c, report, err, time.Since(began))
			if err == nil {
				// Benchmark reports are not kept.
				if derr := svc.Analyzer.DeleteReport(gctx, report.ID); derr != nil {
					logger.Debug("failed to delete benchmark report", "id", report.ID, "error", derr)
				}
			} else {
				logger.Debug("case failed", "id", c.ID, "error", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("benchmark interrupted: %w", err)
	}
	logger.Info("benchmark finished", "cases", len(dataset.Cases), "elapsed", time.Since(start))

	summary := metrics.Summary()
	if opts.jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}
	fmt.Print(summary.Report())
	return nil
}

func loadDataset(opts options) (*testutils.BenchmarkDataset, error) {
	if opts.datasetPath == "" {
		return testutils.GenerateSampleBenchmarkDataset(opts.size, opts.seed), nil
	}
	dataset, err := testutils.LoadBenchmarkDataset(opts.datasetPath)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	return dataset, nil
}
