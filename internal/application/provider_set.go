package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/ahrav/go-verity/infrastructure/cache"
	"github.com/ahrav/go-verity/infrastructure/classifiers"
	"github.com/ahrav/go-verity/infrastructure/llm"
	"github.com/ahrav/go-verity/infrastructure/signals"
	"github.com/ahrav/go-verity/internal/domain"
	"github.com/ahrav/go-verity/internal/ports"
)

// ProviderHealth is the readiness of one signal kind.
type ProviderHealth struct {
	Enabled bool   `json:"enabled"`
	Ready   bool   `json:"ready"`
	Backend string `json:"backend,omitempty"`
}

// ProviderDeps carries the shared collaborators BuildProviderSet wires
// into the providers. Every field is optional.
type ProviderDeps struct {
	Logger     *slog.Logger
	Metrics    ports.MetricsCollector
	Tracer     trace.TracerProvider
	HTTPClient *http.Client

	// Cache backs classifier result caching. When nil and a provider
	// enables caching, a cache is built from Config.Cache and owned by
	// the set.
	Cache ports.CacheStore

	// Classifiers replaces the configured backend of a model kind. The
	// middleware chain is still applied.
	Classifiers map[domain.SignalKind]ports.Classifier
}

type providerEntry struct {
	provider ports.SignalProvider
	timeout  time.Duration
	backend  string
}

// ProviderSet holds the signal providers of every enabled kind. It is
// built once at startup and read-only afterwards, so it is safe for
// concurrent use.
type ProviderSet struct {
	entries map[domain.SignalKind]providerEntry
	closers []io.Closer
}

// NewProviderSet builds a set directly from providers, keyed by their
// kind. A zero timeout leaves the provider bounded only by the request.
func NewProviderSet(timeouts map[domain.SignalKind]time.Duration, providers ...ports.SignalProvider) (*ProviderSet, error) {
	ps := &ProviderSet{entries: make(map[domain.SignalKind]providerEntry, len(providers))}
	for _, p := range providers {
		if p == nil {
			continue
		}
		kind := p.Kind()
		if !kind.Valid() {
			return nil, fmt.Errorf("%w: unknown signal kind %q", domain.ErrInvalidConfiguration, kind)
		}
		if _, dup := ps.entries[kind]; dup {
			return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateSignal, kind)
		}
		ps.entries[kind] = providerEntry{provider: p, timeout: timeouts[kind], backend: backendOf(p)}
	}
	return ps, nil
}

// BuildProviderSet constructs the provider of every enabled kind from
// cfg. A failure to build an enabled provider fails the whole set, so
// misconfiguration is caught at startup.
func BuildProviderSet(ctx context.Context, cfg *Config, deps ProviderDeps) (*ProviderSet, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "providers")
	if deps.Tracer == nil {
		deps.Tracer = cfg.Tracing.TracerProvider()
	}

	ps := &ProviderSet{entries: make(map[domain.SignalKind]providerEntry)}

	if deps.Cache == nil && cfg.AnyClassifierCache() {
		c, closer, err := buildCache(cfg.Cache)
		if err != nil {
			return nil, err
		}
		deps.Cache = c
		if closer != nil {
			ps.closers = append(ps.closers, closer)
		}
	}

	for _, kind := range domain.AllSignalKinds() {
		if err := ctx.Err(); err != nil {
			_ = ps.Close()
			return nil, err
		}
		if !cfg.Providers.Enabled(kind) {
			logger.Debug("provider disabled", "kind", kind)
			continue
		}

		var (
			provider ports.SignalProvider
			err      error
		)
		switch kind {
		case domain.SignalDomainTrust:
			provider, err = buildDomainTrust(cfg.Providers.DomainTrust)
		case domain.SignalLinguistic:
			provider = signals.NewLinguisticProvider()
		case domain.SignalTextModel, domain.SignalImageModel, domain.SignalAudioModel:
			m, _ := cfg.Providers.Model(kind)
			provider, err = buildModelProvider(kind, m, deps)
		default:
			err = fmt.Errorf("%w: unknown signal kind %q", domain.ErrInvalidConfiguration, kind)
		}
		if err != nil {
			_ = ps.Close()
			return nil, fmt.Errorf("build %s provider: %w", kind, err)
		}

		entry := providerEntry{provider: provider, timeout: cfg.Providers.Timeout(kind), backend: backendOf(provider)}
		ps.entries[kind] = entry
		logger.Info("provider enabled", "kind", kind, "backend", entry.backend, "timeout", entry.timeout)
	}

	if len(ps.entries) == 0 {
		logger.Warn("no signal provider enabled; every analysis will fail with insufficient signals")
	}
	return ps, nil
}

func buildDomainTrust(cfg DomainTrustConfig) (ports.SignalProvider, error) {
	tables := signals.DefaultDomainTables()
	if cfg.TablesPath != "" {
		loaded, err := signals.LoadDomainTables(cfg.TablesPath, cfg.ReplaceDefaults)
		if err != nil {
			return nil, err
		}
		tables = loaded
	}
	return signals.NewDomainTrustProvider(tables)
}

func buildModelProvider(kind domain.SignalKind, m *ModelProviderConfig, deps ProviderDeps) (ports.SignalProvider, error) {
	backend, ok := deps.Classifiers[kind]
	backendType := "custom"
	if !ok {
		var err error
		backend, err = buildClassifier(kind, m, deps.HTTPClient)
		if err != nil {
			return nil, err
		}
		backendType = m.Backend
	}

	mws := []classifiers.Middleware{
		classifiers.TracingMiddlewareWithProvider(deps.Tracer, backendType),
		classifiers.MetricsMiddleware(deps.Metrics, backendType),
	}
	if m.Cache.Enabled && deps.Cache != nil {
		mws = append(mws, classifiers.CacheMiddlewareWithMetrics(deps.Cache, m.Cache.TTL, deps.Metrics))
	}
	if m.CircuitBreaker.MaxFailures > 0 {
		mws = append(mws, classifiers.CircuitBreakerMiddleware(m.CircuitBreaker.MaxFailures, m.CircuitBreaker.Cooldown, deps.Metrics))
	}
	if m.RateLimit.RequestsPerSecond > 0 {
		burst := m.RateLimit.Burst
		if burst <= 0 {
			burst = 1
		}
		mws = append(mws, classifiers.RateLimitMiddleware(rate.Limit(m.RateLimit.RequestsPerSecond), burst))
	}
	if m.Retry.MaxRetries > 0 {
		mws = append(mws, classifiers.RetryMiddleware(m.Retry.MaxRetries, m.Retry.BaseDelay, m.Retry.MaxDelay))
	}
	if m.Timeout > 0 {
		mws = append(mws, classifiers.TimeoutMiddleware(m.Timeout))
	}

	return signals.NewClassifierProvider(kind, classifiers.Chain(backend, mws...), m.MinConfidence)
}

func buildClassifier(kind domain.SignalKind, m *ModelProviderConfig, httpClient *http.Client) (ports.Classifier, error) {
	switch m.Backend {
	case BackendLLM:
		client, err := llm.NewClient(m.LLM.Provider, llm.ClientConfig{
			APIKey:  m.LLM.APIKey,
			Model:   m.LLM.Model,
			BaseURL: m.LLM.BaseURL,
			Timeout: m.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return classifiers.NewLLMClassifier(client, m.LLM.Classifier)
	case BackendONNX:
		return classifiers.NewONNXClassifier("onnx:"+string(kind), m.ONNX.ONNXConfig)
	case BackendRemote:
		return classifiers.NewRemoteClassifier("remote:"+string(kind), classifiers.RemoteConfig{
			Endpoint:     m.Remote.Endpoint,
			APIKey:       m.Remote.APIKey,
			Timeout:      m.Timeout,
			RequireMedia: m.Remote.RequireMedia,
		}, httpClient)
	default:
		return nil, fmt.Errorf("%w: unknown classifier backend %q", domain.ErrInvalidConfiguration, m.Backend)
	}
}

// buildCache returns the configured classifier cache and, when it holds
// a connection, the closer that releases it.
func buildCache(cfg CacheConfig) (ports.CacheStore, io.Closer, error) {
	switch cfg.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		c := cache.NewRedis(client, cfg.KeyPrefix)
		return c, c, nil
	case "memory", "":
		return cache.NewMemory(0), nil, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown cache backend %q", domain.ErrInvalidConfiguration, cfg.Backend)
	}
}

func backendOf(p ports.SignalProvider) string {
	if b, ok := p.(interface{ Backend() string }); ok {
		return b.Backend()
	}
	switch p.Kind() {
	case domain.SignalDomainTrust:
		return "domain_tables"
	case domain.SignalLinguistic:
		return "heuristics"
	default:
		return "builtin"
	}
}

// Providers returns the enabled providers in AllSignalKinds order.
func (ps *ProviderSet) Providers() []ports.SignalProvider {
	out := make([]ports.SignalProvider, 0, len(ps.entries))
	for _, kind := range domain.AllSignalKinds() {
		if e, ok := ps.entries[kind]; ok {
			out = append(out, e.provider)
		}
	}
	return out
}

// Timeout returns the invocation timeout of kind, zero when unbounded.
func (ps *ProviderSet) Timeout(kind domain.SignalKind) time.Duration {
	return ps.entries[kind].timeout
}

// Len returns the number of enabled providers.
func (ps *ProviderSet) Len() int { return len(ps.entries) }

// Health reports every known kind, including disabled ones.
func (ps *ProviderSet) Health(ctx context.Context) map[domain.SignalKind]ProviderHealth {
	out := make(map[domain.SignalKind]ProviderHealth, len(domain.AllSignalKinds()))
	for _, kind := range domain.AllSignalKinds() {
		e, ok := ps.entries[kind]
		if !ok {
			out[kind] = ProviderHealth{}
			continue
		}
		ready := true
		if rc, ok := e.provider.(ports.ReadinessChecker); ok {
			ready = rc.Ready(ctx)
		}
		out[kind] = ProviderHealth{Enabled: true, Ready: ready, Backend: e.backend}
	}
	return out
}

// Close releases classifier sessions, clients and the owned cache. It
// returns every error encountered.
func (ps *ProviderSet) Close() error {
	var errs []error
	for _, kind := range domain.AllSignalKinds() {
		e, ok := ps.entries[kind]
		if !ok {
			continue
		}
		if c, ok := e.provider.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", kind, err))
			}
		}
	}
	for _, c := range ps.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	ps.closers = nil
	return errors.Join(errs...)
}
