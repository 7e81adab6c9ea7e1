package application

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-verity/infrastructure/classifiers"
	"github.com/ahrav/go-verity/infrastructure/evidence"
	"github.com/ahrav/go-verity/infrastructure/store"
	"github.com/ahrav/go-verity/internal/domain"
	"github.com/ahrav/go-verity/internal/ports"
)

// Config is the complete service configuration. It is loaded once at
// startup by LoadConfig and never modified afterwards.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
	Aggregation AggregationConfig `yaml:"aggregation"`
	Analysis    AnalysisConfig    `yaml:"analysis"`
	Providers   ProvidersConfig   `yaml:"providers"`
	Evidence    EvidenceConfig    `yaml:"evidence"`
	Store       StoreConfig       `yaml:"store"`
	Cache       CacheConfig       `yaml:"cache"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Tracing     TracingConfig     `yaml:"tracing"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Address         string        `yaml:"address" validate:"required"`
	Mode            string        `yaml:"mode" validate:"oneof=debug release test"`
	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"min=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"min=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"min=0"`
	// CORSOrigins lists the origins allowed to call the API. "*" allows
	// any origin, which is what browser extensions need.
	CORSOrigins []string `yaml:"cors_origins" validate:"dive,required"`
}

// LoggingConfig selects the slog handler and level.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error DEBUG INFO WARN ERROR"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// AggregationConfig holds the aggregator's weights and confidence policy.
type AggregationConfig struct {
	Weights    domain.SignalWeights    `yaml:"weights"`
	Confidence domain.ConfidencePolicy `yaml:"confidence"`
}

// AnalysisConfig bounds request handling.
type AnalysisConfig struct {
	// MaxConcurrency bounds the providers run at once for one request.
	MaxConcurrency int `yaml:"max_concurrency" validate:"min=1,max=32"`
	// MinTextLength and MaxTextLength bound the trimmed text of a request.
	MinTextLength int `yaml:"min_text_length" validate:"min=1"`
	MaxTextLength int `yaml:"max_text_length" validate:"gtefield=MinTextLength"`
}

// ProvidersConfig configures every signal kind.
type ProvidersConfig struct {
	DomainTrust DomainTrustConfig   `yaml:"domain_trust"`
	Linguistic  LinguisticConfig    `yaml:"linguistic"`
	TextModel   ModelProviderConfig `yaml:"text_model"`
	ImageModel  ModelProviderConfig `yaml:"image_model"`
	AudioModel  ModelProviderConfig `yaml:"audio_model"`
}

// DomainTrustConfig configures the domain reputation provider.
type DomainTrustConfig struct {
	Enabled bool          `yaml:"enabled"`
	Timeout time.Duration `yaml:"timeout" validate:"min=0"`
	// TablesPath is an optional YAML file extending the built-in tables.
	TablesPath string `yaml:"tables_path"`
	// ReplaceDefaults makes TablesPath replace the built-in tables.
	ReplaceDefaults bool `yaml:"replace_defaults"`
}

// LinguisticConfig configures the text heuristic provider.
type LinguisticConfig struct {
	Enabled bool          `yaml:"enabled"`
	Timeout time.Duration `yaml:"timeout" validate:"min=0"`
}

// Backend names accepted by ModelProviderConfig.Backend.
const (
	BackendLLM    = "llm"
	BackendONNX   = "onnx"
	BackendRemote = "remote"
)

// ModelProviderConfig configures one classifier-backed signal and the
// middleware chain around its backend.
type ModelProviderConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Backend       string        `yaml:"backend" validate:"omitempty,oneof=llm onnx remote"`
	Timeout       time.Duration `yaml:"timeout" validate:"min=0"`
	MinConfidence float64       `yaml:"min_confidence" validate:"min=0,max=1"`

	LLM    LLMBackendConfig    `yaml:"llm"`
	ONNX   ONNXBackendConfig   `yaml:"onnx" validate:"-"`
	Remote RemoteBackendConfig `yaml:"remote"`

	Retry          RetryConfig           `yaml:"retry"`
	CircuitBreaker CircuitBreakerConfig  `yaml:"circuit_breaker"`
	RateLimit      RateLimitConfig       `yaml:"rate_limit"`
	Cache          ClassifierCacheConfig `yaml:"cache"`
}

// LLMBackendConfig selects an LLM transport and the classifier prompt.
type LLMBackendConfig struct {
	Provider string `yaml:"provider" validate:"omitempty,oneof=openai groq anthropic google"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url" validate:"omitempty,url"`
	// APIKeyEnv names the environment variable holding the key. Empty
	// selects the provider's conventional variable.
	APIKeyEnv string `yaml:"api_key_env"`
	APIKey    string `yaml:"-"`

	Classifier classifiers.LLMClassifierConfig `yaml:"classifier"`
}

// ONNXBackendConfig wraps the ONNX model settings.
type ONNXBackendConfig struct {
	classifiers.ONNXConfig `yaml:",inline"`
}

// RemoteBackendConfig wraps the remote model server settings.
type RemoteBackendConfig struct {
	Endpoint     string `yaml:"endpoint" validate:"omitempty,url"`
	RequireMedia bool   `yaml:"require_media"`
	APIKeyEnv    string `yaml:"api_key_env"`
	APIKey       string `yaml:"-"`
}

// RetryConfig controls the retry middleware. MaxRetries zero disables it.
type RetryConfig struct {
	MaxRetries int           `yaml:"max_retries" validate:"min=0,max=10"`
	BaseDelay  time.Duration `yaml:"base_delay" validate:"min=0"`
	MaxDelay   time.Duration `yaml:"max_delay" validate:"min=0"`
}

// CircuitBreakerConfig controls the circuit breaker middleware.
// MaxFailures zero disables it.
type CircuitBreakerConfig struct {
	MaxFailures int           `yaml:"max_failures" validate:"min=0"`
	Cooldown    time.Duration `yaml:"cooldown" validate:"min=0"`
}

// RateLimitConfig controls the token bucket middleware. A zero rate
// disables it.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"min=0"`
	Burst             int     `yaml:"burst" validate:"min=0"`
}

// ClassifierCacheConfig controls result caching for one classifier.
type ClassifierCacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl" validate:"min=0"`
}

// Evidence modes accepted by EvidenceConfig.Mode.
const (
	EvidenceModeFactCheck = "factcheck"
	EvidenceModeSimulated = "simulated"
	EvidenceModeDisabled  = "disabled"
)

// EvidenceConfig selects the evidence backend.
type EvidenceConfig struct {
	Mode       string                   `yaml:"mode" validate:"oneof=factcheck simulated disabled"`
	Timeout    time.Duration            `yaml:"timeout" validate:"min=0"`
	MaxResults int                      `yaml:"max_results" validate:"min=1,max=20"`
	FactCheck  evidence.FactCheckConfig `yaml:"factcheck"`
}

// Store backends accepted by StoreConfig.Backend.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// StoreConfig selects the report store.
type StoreConfig struct {
	Backend string `yaml:"backend" validate:"oneof=memory sqlite redis"`
	// TTL expires reports in the memory and redis stores.
	TTL        time.Duration     `yaml:"ttl" validate:"min=0"`
	SQLitePath string            `yaml:"sqlite_path"`
	Redis      store.RedisConfig `yaml:"redis" validate:"-"`
}

// CacheConfig selects the classifier result cache shared by all model
// providers that enable caching.
type CacheConfig struct {
	Backend       string `yaml:"backend" validate:"oneof=memory redis"`
	RedisAddress  string `yaml:"redis_address"`
	RedisDB       int    `yaml:"redis_db" validate:"min=0"`
	RedisPassword string `yaml:"-"`
	KeyPrefix     string `yaml:"key_prefix"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" validate:"omitempty,startswith=/"`
}

// TracingConfig controls OpenTelemetry spans. When enabled, spans go to
// the global tracer provider, which the embedding program installs.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// TracerProvider returns the global provider when tracing is enabled and
// a no-op provider otherwise.
func (t TracingConfig) TracerProvider() trace.TracerProvider {
	if t.Enabled {
		return otel.GetTracerProvider()
	}
	return noop.NewTracerProvider()
}

// DefaultConfig returns a configuration that runs without any external
// service: domain trust and linguistic signals, no evidence backend and
// an in-memory store.
func DefaultConfig() *Config {
	modelDefaults := func(timeout time.Duration) ModelProviderConfig {
		return ModelProviderConfig{
			Timeout:        timeout,
			MinConfidence:  0.3,
			Retry:          RetryConfig{MaxRetries: 2, BaseDelay: 200 * time.Millisecond, MaxDelay: 2 * time.Second},
			CircuitBreaker: CircuitBreakerConfig{MaxFailures: 5, Cooldown: 30 * time.Second},
			Cache:          ClassifierCacheConfig{TTL: time.Hour},
		}
	}

	text := modelDefaults(10 * time.Second)
	text.Backend = BackendLLM
	text.LLM.Provider = "groq"
	image := modelDefaults(15 * time.Second)
	image.Backend = BackendRemote
	image.Remote.RequireMedia = true
	audio := modelDefaults(20 * time.Second)
	audio.Backend = BackendRemote
	audio.Remote.RequireMedia = true

	return &Config{
		Server: ServerConfig{
			Address:         ":8000",
			Mode:            "release",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Aggregation: AggregationConfig{
			Weights:    domain.DefaultSignalWeights(),
			Confidence: domain.DefaultConfidencePolicy(),
		},
		Analysis: AnalysisConfig{
			MaxConcurrency: len(domain.AllSignalKinds()),
			MinTextLength:  10,
			MaxTextLength:  50000,
		},
		Providers: ProvidersConfig{
			DomainTrust: DomainTrustConfig{Enabled: true, Timeout: time.Second},
			Linguistic:  LinguisticConfig{Enabled: true, Timeout: time.Second},
			TextModel:   text,
			ImageModel:  image,
			AudioModel:  audio,
		},
		Evidence: EvidenceConfig{
			Mode:       EvidenceModeDisabled,
			Timeout:    5 * time.Second,
			MaxResults: evidence.DefaultMaxResults,
			FactCheck:  evidence.FactCheckConfig{PageSize: evidence.DefaultFactCheckPageSize, LanguageCode: "en"},
		},
		Store: StoreConfig{
			Backend:    StoreMemory,
			TTL:        24 * time.Hour,
			SQLitePath: "verity.db",
			Redis:      store.RedisConfig{Address: "localhost:6379", KeyPrefix: store.DefaultKeyPrefix},
		},
		Cache:   CacheConfig{Backend: "memory", KeyPrefix: "verity:cache:"},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

// Model returns the configuration of a classifier-backed kind.
func (p *ProvidersConfig) Model(kind domain.SignalKind) (*ModelProviderConfig, bool) {
	switch kind {
	case domain.SignalTextModel:
		return &p.TextModel, true
	case domain.SignalImageModel:
		return &p.ImageModel, true
	case domain.SignalAudioModel:
		return &p.AudioModel, true
	case domain.SignalDomainTrust, domain.SignalLinguistic:
		return nil, false
	default:
		return nil, false
	}
}

// Timeout returns the per-provider timeout for kind.
func (p *ProvidersConfig) Timeout(kind domain.SignalKind) time.Duration {
	switch kind {
	case domain.SignalDomainTrust:
		return p.DomainTrust.Timeout
	case domain.SignalLinguistic:
		return p.Linguistic.Timeout
	case domain.SignalTextModel, domain.SignalImageModel, domain.SignalAudioModel:
		m, _ := p.Model(kind)
		return m.Timeout
	default:
		return 0
	}
}

// Enabled reports whether kind is switched on.
func (p *ProvidersConfig) Enabled(kind domain.SignalKind) bool {
	switch kind {
	case domain.SignalDomainTrust:
		return p.DomainTrust.Enabled
	case domain.SignalLinguistic:
		return p.Linguistic.Enabled
	case domain.SignalTextModel, domain.SignalImageModel, domain.SignalAudioModel:
		m, _ := p.Model(kind)
		return m.Enabled
	default:
		return false
	}
}

// defaultAPIKeyEnv maps LLM providers to their conventional key variable.
var defaultAPIKeyEnv = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"groq":      "GROQ_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"google":    "GEMINI_API_KEY",
}

// FactCheckAPIKeyEnv holds the Google Fact Check Tools key.
const FactCheckAPIKeyEnv = "GOOGLE_FACTCHECK_API_KEY"

// LoadConfig reads the YAML file at path over DefaultConfig, applies
// environment overrides and validates the result. An empty path loads
// defaults and environment only.
func LoadConfig(path string) (*Config, error) {
	var data []byte
	if path != "" {
		b, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, ports.NewConfigError(path, err)
		}
		data = b
	}
	return ParseConfig(data, os.LookupEnv)
}

// ParseConfig decodes data over DefaultConfig, applies overrides from
// lookup and validates the result. Unknown YAML fields are rejected.
func ParseConfig(data []byte, lookup func(string) (string, bool)) (*Config, error) {
	cfg := DefaultConfig()
	if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, ports.NewConfigError("yaml", fmt.Errorf("%w: %w", domain.ErrInvalidConfiguration, err))
		}
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		return nil
	}
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("VERITY_ADDR", &c.Server.Address)
	str("VERITY_LOG_LEVEL", &c.Logging.Level)
	str("VERITY_LOG_FORMAT", &c.Logging.Format)
	str("VERITY_EVIDENCE_MODE", &c.Evidence.Mode)
	str("VERITY_STORE_BACKEND", &c.Store.Backend)
	str("VERITY_SQLITE_PATH", &c.Store.SQLitePath)
	str("VERITY_REDIS_ADDR", &c.Store.Redis.Address)
	str("VERITY_REDIS_PASSWORD", &c.Store.Redis.Password)
	str("VERITY_CACHE_REDIS_ADDR", &c.Cache.RedisAddress)
	str("VERITY_CACHE_REDIS_PASSWORD", &c.Cache.RedisPassword)
	str(FactCheckAPIKeyEnv, &c.Evidence.FactCheck.APIKey)

	if v, ok := lookup("VERITY_TEXT_MODEL_ENABLED"); ok && v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return ports.NewConfigError("VERITY_TEXT_MODEL_ENABLED", fmt.Errorf("%w: %w", domain.ErrInvalidConfiguration, err))
		}
		c.Providers.TextModel.Enabled = enabled
	}

	for _, kind := range []domain.SignalKind{domain.SignalTextModel, domain.SignalImageModel, domain.SignalAudioModel} {
		m, _ := c.Providers.Model(kind)
		env := m.LLM.APIKeyEnv
		if env == "" {
			env = defaultAPIKeyEnv[m.LLM.Provider]
		}
		if env != "" {
			str(env, &m.LLM.APIKey)
		}
		if m.Remote.APIKeyEnv != "" {
			str(m.Remote.APIKeyEnv, &m.Remote.APIKey)
		}
	}
	return nil
}

var configValidator = validator.New()

// Validate checks struct tags and the cross-field rules tags cannot
// express. All problems are reported together in a ValidationError.
func (c *Config) Validate() error {
	verr := domain.NewConfigValidationError("config")

	if err := configValidator.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				verr.AddError(fmt.Sprintf("%s fails %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
		} else {
			verr.AddError(err.Error())
		}
	}

	if err := c.Aggregation.Weights.Validate(); err != nil {
		verr.AddError(err.Error())
	}

	for _, kind := range []domain.SignalKind{domain.SignalTextModel, domain.SignalImageModel, domain.SignalAudioModel} {
		m, _ := c.Providers.Model(kind)
		if !m.Enabled {
			continue
		}
		switch m.Backend {
		case BackendLLM:
			if m.LLM.Provider == "" {
				verr.AddError(fmt.Sprintf("%s: llm.provider is required", kind))
			}
			if m.LLM.APIKey == "" {
				verr.AddError(fmt.Sprintf("%s: no API key for llm provider %q", kind, m.LLM.Provider))
			}
		case BackendONNX:
			if m.ONNX.ModelPath == "" || m.ONNX.VocabPath == "" {
				verr.AddError(fmt.Sprintf("%s: onnx.model_path and onnx.vocab_path are required", kind))
			}
		case BackendRemote:
			if m.Remote.Endpoint == "" {
				verr.AddError(fmt.Sprintf("%s: remote.endpoint is required", kind))
			}
		default:
			verr.AddError(fmt.Sprintf("%s: backend is required when enabled", kind))
		}
		if m.Timeout <= 0 {
			verr.AddError(fmt.Sprintf("%s: timeout must be positive", kind))
		}
	}

	switch c.Evidence.Mode {
	case EvidenceModeFactCheck:
		if c.Evidence.FactCheck.APIKey == "" && c.Evidence.FactCheck.Endpoint == "" {
			verr.AddError("evidence: factcheck mode needs " + FactCheckAPIKeyEnv)
		}
	}
	switch c.Store.Backend {
	case StoreSQLite:
		if c.Store.SQLitePath == "" {
			verr.AddError("store: sqlite_path is required")
		}
	case StoreRedis:
		if c.Store.Redis.Address == "" {
			verr.AddError("store: redis.address is required")
		}
	}
	if c.Cache.Backend == "redis" && c.Cache.RedisAddress == "" {
		verr.AddError("cache: redis_address is required")
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

// AnyClassifierCache reports whether any enabled model provider caches.
func (c *Config) AnyClassifierCache() bool {
	for _, kind := range []domain.SignalKind{domain.SignalTextModel, domain.SignalImageModel, domain.SignalAudioModel} {
		m, _ := c.Providers.Model(kind)
		if m.Enabled && m.Cache.Enabled {
			return true
		}
	}
	return false
}
