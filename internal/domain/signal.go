package domain

import (
	"fmt"
	"math"
)

// SignalKind identifies the independent evaluator that produced a signal.
// The set is closed; every switch over SignalKind in this module is
// expected to be exhaustive.
type SignalKind string

const (
	// SignalDomainTrust is the reputation of the page's registrable domain.
	SignalDomainTrust SignalKind = "domain_trust"
	// SignalLinguistic is the pattern-based heuristic over the raw text.
	SignalLinguistic SignalKind = "linguistic"
	// SignalTextModel is a text classifier's probability of credible content.
	SignalTextModel SignalKind = "text_model"
	// SignalImageModel is an image classifier's probability of authentic media.
	SignalImageModel SignalKind = "image_model"
	// SignalAudioModel is an audio classifier's probability of authentic media.
	SignalAudioModel SignalKind = "audio_model"
)

// AllSignalKinds returns every known signal kind in a stable order.
// The order is also the order in which signals are reported.
func AllSignalKinds() []SignalKind {
	return []SignalKind{
		SignalDomainTrust,
		SignalLinguistic,
		SignalTextModel,
		SignalImageModel,
		SignalAudioModel,
	}
}

// Valid reports whether k is one of the known signal kinds.
func (k SignalKind) Valid() bool {
	switch k {
	case SignalDomainTrust, SignalLinguistic, SignalTextModel, SignalImageModel, SignalAudioModel:
		return true
	default:
		return false
	}
}

// String returns the wire name of the kind.
func (k SignalKind) String() string { return string(k) }

// DisplayName returns a short human readable name used in explanations.
func (k SignalKind) DisplayName() string {
	switch k {
	case SignalDomainTrust:
		return "Source domain"
	case SignalLinguistic:
		return "Writing style"
	case SignalTextModel:
		return "Text model"
	case SignalImageModel:
		return "Image model"
	case SignalAudioModel:
		return "Audio model"
	default:
		return string(k)
	}
}

// SignalStatus describes whether a provider produced a score.
type SignalStatus string

const (
	// StatusOK means the provider produced a score.
	StatusOK SignalStatus = "ok"
	// StatusAbstained means the provider deliberately had no opinion,
	// for example an unknown domain or a low-confidence inference.
	StatusAbstained SignalStatus = "abstained"
	// StatusUnavailable means the provider failed or timed out.
	StatusUnavailable SignalStatus = "unavailable"
)

// SignalResult is one measurement produced by a provider for a single
// analysis request. A result without a score contributes zero weight to
// aggregation.
type SignalResult struct {
	// Kind identifies the provider that produced the result.
	Kind SignalKind `json:"kind"`

	// Score is the normalized score in [0,1], or nil when the provider
	// abstained or was unavailable.
	Score *float64 `json:"score"`

	// Weight is the prior weight of the kind, fixed by configuration.
	Weight float64 `json:"weight"`

	// Confidence is the provider's own confidence in its score, if any.
	Confidence float64 `json:"confidence,omitempty"`

	// Status records why Score is or is not defined.
	Status SignalStatus `json:"status"`

	// Detail is a short human readable note, such as matched patterns or
	// the reason for abstaining.
	Detail string `json:"detail,omitempty"`
}

// Available reports whether the result carries a score. A result with an
// empty status and a score is treated as OK.
func (r SignalResult) Available() bool {
	return r.Score != nil && r.Status != StatusAbstained && r.Status != StatusUnavailable
}

// ScoreValue returns the score, or 0 when the result is not available.
// Callers should check Available first.
func (r SignalResult) ScoreValue() float64 {
	if r.Score == nil {
		return 0
	}
	return *r.Score
}

// Scored builds an available SignalResult.
func Scored(kind SignalKind, score, confidence float64, detail string) SignalResult {
	s := score
	return SignalResult{
		Kind:       kind,
		Score:      &s,
		Confidence: confidence,
		Status:     StatusOK,
		Detail:     detail,
	}
}

// Abstained builds a SignalResult for a provider with no opinion.
func Abstained(kind SignalKind, reason string) SignalResult {
	return SignalResult{Kind: kind, Status: StatusAbstained, Detail: reason}
}

// Unavailable builds a SignalResult for a provider that failed or timed out.
func Unavailable(kind SignalKind, reason string) SignalResult {
	return SignalResult{Kind: kind, Status: StatusUnavailable, Detail: reason}
}

// ValidateScore checks that a score is finite and within [0,1].
func ValidateScore(score float64) error {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return fmt.Errorf("%w: %v is not finite", ErrInvalidScore, score)
	}
	if score < 0 || score > 1 {
		return fmt.Errorf("%w: %v is outside [0,1]", ErrInvalidScore, score)
	}
	return nil
}

// SignalWeights holds the prior weight of every signal kind.
type SignalWeights map[SignalKind]float64

// DefaultSignalWeights returns the weights used when none are configured.
// Domain reputation carries a higher prior than the text heuristic, and the
// text classifier carries the highest prior of all.
func DefaultSignalWeights() SignalWeights {
	return SignalWeights{
		SignalDomainTrust: 1.2,
		SignalLinguistic:  1.0,
		SignalTextModel:   2.0,
		SignalImageModel:  1.0,
		SignalAudioModel:  1.0,
	}
}

// Of returns the weight for kind, or 0 when the kind has no weight.
func (w SignalWeights) Of(kind SignalKind) float64 { return w[kind] }

// Validate checks that every configured weight belongs to a known kind
// and is a finite non-negative number.
func (w SignalWeights) Validate() error {
	verr := NewConfigValidationError("signal weights")
	for kind, weight := range w {
		if !kind.Valid() {
			verr.AddError(fmt.Sprintf("unknown signal kind %q", kind))
			continue
		}
		if math.IsNaN(weight) || math.IsInf(weight, 0) || weight < 0 {
			verr.AddError(fmt.Sprintf("weight for %s must be a finite non-negative number, got %v", kind, weight))
		}
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}
