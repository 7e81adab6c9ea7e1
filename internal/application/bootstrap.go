package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ahrav/go-verity/infrastructure/evidence"
	"github.com/ahrav/go-verity/infrastructure/metrics"
	"github.com/ahrav/go-verity/infrastructure/store"
	"github.com/ahrav/go-verity/internal/domain"
	"github.com/ahrav/go-verity/internal/ports"
)

// BuildEvidenceProvider returns the evidence backend selected by
// cfg.Mode. Simulated evidence is only returned when asked for
// explicitly.
func BuildEvidenceProvider(ctx context.Context, cfg EvidenceConfig) (ports.EvidenceProvider, error) {
	switch cfg.Mode {
	case EvidenceModeFactCheck:
		fc := cfg.FactCheck
		if fc.MaxResults == 0 {
			fc.MaxResults = cfg.MaxResults
		}
		p, err := evidence.NewFactCheckProvider(ctx, fc)
		if err != nil {
			return nil, err
		}
		return p, nil
	case EvidenceModeSimulated:
		return evidence.NewSimulatedProvider(cfg.MaxResults), nil
	case EvidenceModeDisabled, "":
		return evidence.DisabledProvider{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown evidence mode %q", domain.ErrInvalidConfiguration, cfg.Mode)
	}
}

// OpenReportStore opens the report store selected by cfg.Backend.
func OpenReportStore(cfg StoreConfig, logger *slog.Logger) (ports.ReportStore, error) {
	switch cfg.Backend {
	case StoreMemory, "":
		return store.NewMemoryStore(cfg.TTL), nil
	case StoreSQLite:
		s, err := store.OpenSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case StoreRedis:
		rc := cfg.Redis
		if rc.TTL == 0 {
			rc.TTL = cfg.TTL
		}
		return store.NewRedisStore(rc, logger), nil
	default:
		return nil, fmt.Errorf("%w: unknown store backend %q", domain.ErrInvalidConfiguration, cfg.Backend)
	}
}

// Service is the fully wired analysis pipeline and the resources it
// owns.
type Service struct {
	Analyzer  *Analyzer
	Providers *ProviderSet
	Store     ports.ReportStore
	// Metrics is nil when metrics are disabled.
	Metrics *metrics.PrometheusMetrics
}

// NewService builds every component named by cfg. Resources opened
// before a failure are released.
func NewService(ctx context.Context, cfg *Config, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		collector ports.MetricsCollector
		prom      *metrics.PrometheusMetrics
	)
	if cfg.Metrics.Enabled {
		prom = metrics.NewPrometheusMetrics()
		collector = prom
	}
	tracer := cfg.Tracing.TracerProvider()

	aggregator, err := domain.NewWeightedAggregator(cfg.Aggregation.Weights, cfg.Aggregation.Confidence)
	if err != nil {
		return nil, err
	}

	ev, err := BuildEvidenceProvider(ctx, cfg.Evidence)
	if err != nil {
		return nil, fmt.Errorf("build evidence provider: %w", err)
	}

	reports, err := OpenReportStore(cfg.Store, logger.With("component", "store"))
	if err != nil {
		return nil, fmt.Errorf("open report store: %w", err)
	}

	providers, err := BuildProviderSet(ctx, cfg, ProviderDeps{
		Logger:  logger,
		Metrics: collector,
		Tracer:  tracer,
	})
	if err != nil {
		_ = reports.Close()
		return nil, err
	}

	analyzer, err := NewAnalyzer(providers, aggregator, reports, AnalyzerOptions{
		Evidence: ev,
		Metrics:  collector,
		Tracer:   tracer,
		Logger:   logger,
		Limits: InputLimits{
			MinTextLength: cfg.Analysis.MinTextLength,
			MaxTextLength: cfg.Analysis.MaxTextLength,
		},
		MaxConcurrency:  cfg.Analysis.MaxConcurrency,
		EvidenceTimeout: cfg.Evidence.Timeout,
	})
	if err != nil {
		_ = providers.Close()
		_ = reports.Close()
		return nil, err
	}

	logger.Info("service ready",
		"providers", providers.Len(),
		"evidence_mode", ev.Mode(),
		"store", cfg.Store.Backend,
		"metrics", cfg.Metrics.Enabled,
	)
	return &Service{Analyzer: analyzer, Providers: providers, Store: reports, Metrics: prom}, nil
}

// Close releases the providers and the store.
func (s *Service) Close() error {
	return errors.Join(s.Providers.Close(), s.Store.Close())
}
