// Package ports defines the core interfaces that form the contract between
// the domain/application layers and the infrastructure layer.
// These interfaces enable dependency inversion and make the system testable.
package ports

import (
	"context"

	"github.com/ahrav/go-verity/internal/domain"
)

// SignalProvider is an independent evaluator that contributes one signal
// to an analysis. Providers share no mutable state with each other and
// may be invoked concurrently by different requests.
type SignalProvider interface {
	// Kind returns the signal kind the provider produces.
	Kind() domain.SignalKind

	// Applicable reports whether the input carries what the provider
	// needs. An image provider is not applicable to a request without an
	// image URL; such providers are not invoked at all.
	Applicable(in domain.AnalysisInput) bool

	// Evaluate produces the provider's signal. Abstentions are reported
	// as a SignalResult with StatusAbstained, not as errors. A returned
	// error means the provider failed and is recorded as unavailable by
	// the caller.
	Evaluate(ctx context.Context, in domain.AnalysisInput) (domain.SignalResult, error)
}

// ClassifierInput is what a classifier backend receives. Text-only
// backends ignore MediaURL and media backends may ignore Text.
type ClassifierInput struct {
	Text     string
	MediaURL string
	// SourceURL is the page the content came from, when known.
	SourceURL string
}

// Inference is the opaque output of a classifier.
type Inference struct {
	// Probability is the normalized probability that the content is
	// credible or authentic, in [0,1].
	Probability float64 `json:"probability"`

	// Confidence is the classifier's confidence in Probability, in [0,1].
	Confidence float64 `json:"confidence"`

	// Rationale is an optional human readable reason.
	Rationale string `json:"rationale,omitempty"`
}

// Classifier is a model backend. Preprocessing such as tokenization,
// truncation or media decoding is the backend's concern.
//
// Implementations must be safe for concurrent use. Loaded model state is
// read-only after construction.
type Classifier interface {
	// Classify runs inference on the input.
	Classify(ctx context.Context, in ClassifierInput) (Inference, error)

	// Name identifies the backend for logs, metrics and health.
	Name() string
}

// ReadinessChecker is implemented by providers and backends that can
// report whether they are loaded and reachable.
type ReadinessChecker interface {
	Ready(ctx context.Context) bool
}
