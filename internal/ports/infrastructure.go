package ports

import (
	"context"
	"time"
)

// LLMClient is a hosted language model as seen by the credibility
// classifier. Provider details such as authentication and request shape
// stay behind it.
type LLMClient interface {
	// Complete sends prompt and returns the model's reply text.
	//
	// Recognized options:
	//   - "temperature": float64 (0.0-1.0)
	//   - "max_tokens": int
	//   - "system": string
	//   - "json": bool, asks for a JSON object reply where supported
	Complete(ctx context.Context, prompt string, options map[string]any) (string, error)

	// EstimateTokens approximates the token count of text so prompts can
	// be kept under the model's input limit.
	EstimateTokens(text string) (int, error)

	// GetModel returns the model identifier requests are sent to.
	GetModel() string
}

// CacheStore holds serialized classifier inferences keyed by input
// digest. The memory and Redis caches implement it.
type CacheStore interface {
	// Get returns the stored bytes and true, or false on a miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key. A zero expiration keeps it until
	// evicted.
	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error

	// Delete removes key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error

	// Clear drops every entry owned by this cache.
	Clear(ctx context.Context) error
}

// MetricsCollector receives operational measurements from the analyzer
// and the classifier middleware. Metric names are the constants of the
// metrics package; labels are low-cardinality values such as signal
// kind, backend or label.
type MetricsCollector interface {
	// RecordLatency observes how long operation took.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter adds value to a counter.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets a gauge.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram observes value in a histogram, such as the
	// aggregate score.
	RecordHistogram(metric string, value float64, labels map[string]string)
}
