package domain

import (
	"fmt"
	"math"
)

// Label is the categorical verdict derived from an overall score.
type Label string

const (
	// LabelTrustworthy is assigned to scores at or above TrustworthyThreshold.
	LabelTrustworthy Label = "trustworthy"
	// LabelSuspicious is assigned to scores in [SuspiciousThreshold, TrustworthyThreshold).
	LabelSuspicious Label = "suspicious"
	// LabelMisinformation is assigned to scores below SuspiciousThreshold.
	LabelMisinformation Label = "misinformation"
)

// Label thresholds. Both are inclusive lower bounds.
const (
	TrustworthyThreshold = 0.70
	SuspiciousThreshold  = 0.40
)

// LabelForScore maps an overall score to its label.
func LabelForScore(score float64) Label {
	switch {
	case score >= TrustworthyThreshold:
		return LabelTrustworthy
	case score >= SuspiciousThreshold:
		return LabelSuspicious
	default:
		return LabelMisinformation
	}
}

// ConfidencePolicy derives the aggregate confidence from the number of
// available signals. It deliberately ignores score magnitude.
type ConfidencePolicy struct {
	// Base is the confidence of a single-signal result.
	Base float64 `yaml:"base" json:"base" validate:"gte=0,lte=1"`
	// Step is added for every available signal beyond the first.
	Step float64 `yaml:"step" json:"step" validate:"gte=0,lte=1"`
	// Max caps the confidence.
	Max float64 `yaml:"max" json:"max" validate:"gte=0,lte=1,gtefield=Base"`
}

// DefaultConfidencePolicy returns base 0.5, +0.15 per extra signal, capped at 0.9.
func DefaultConfidencePolicy() ConfidencePolicy {
	return ConfidencePolicy{Base: 0.5, Step: 0.15, Max: 0.9}
}

// Confidence returns the confidence for n available signals.
// It returns 0 when n is not positive.
func (p ConfidencePolicy) Confidence(n int) float64 {
	if n <= 0 {
		return 0
	}
	return math.Min(p.Max, p.Base+p.Step*float64(n-1))
}

// AggregateResult is the outcome of combining the available signals of
// one analysis request.
type AggregateResult struct {
	// OverallScore is the weighted mean of the available scores with the
	// weights renormalized over the available signals only.
	OverallScore float64 `json:"overall_score"`

	// Label is derived from OverallScore via LabelForScore.
	Label Label `json:"label"`

	// Confidence reflects how many signals went into the score.
	Confidence float64 `json:"confidence"`

	// Signals holds every signal that was attempted, including the ones
	// without a score, in AllSignalKinds order.
	Signals []SignalResult `json:"signals"`

	// EffectiveWeights holds the renormalized weight of every available
	// signal. The values sum to 1.
	EffectiveWeights map[SignalKind]float64 `json:"effective_weights"`

	// Degraded is true when at least one attempted provider was
	// unavailable, so the score comes from a strict subset of the signals
	// that should have fired.
	Degraded bool `json:"degraded"`
}

// AvailableCount returns the number of signals that contributed a score.
func (r AggregateResult) AvailableCount() int { return len(r.EffectiveWeights) }

// Aggregator combines the signals of a single analysis request into one
// score, label and confidence.
//
// Implementations must be pure: no I/O, no retries, and no default value
// substituted for a missing signal. When no signal carries a score the
// implementation must fail with ErrInsufficientSignals and return no
// result.
type Aggregator interface {
	Aggregate(signals []SignalResult) (AggregateResult, error)
}

// WeightedAggregator is the Aggregator used by the analysis pipeline.
// Weights of unavailable signals are dropped and the remaining weights
// are rescaled to sum to 1, so a missing signal reduces total weight
// instead of pulling the mean toward a neutral value.
type WeightedAggregator struct {
	weights    SignalWeights
	confidence ConfidencePolicy
}

var _ Aggregator = (*WeightedAggregator)(nil)

// NewWeightedAggregator creates an aggregator with the given weights and
// confidence policy. A nil weights map selects DefaultSignalWeights.
func NewWeightedAggregator(weights SignalWeights, policy ConfidencePolicy) (*WeightedAggregator, error) {
	if weights == nil {
		weights = DefaultSignalWeights()
	}
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	if policy.Base < 0 || policy.Max > 1 || policy.Step < 0 || policy.Max < policy.Base {
		return nil, fmt.Errorf("%w: confidence policy %+v", ErrInvalidConfiguration, policy)
	}

	w := make(SignalWeights, len(weights))
	for k, v := range weights {
		w[k] = v
	}
	return &WeightedAggregator{weights: w, confidence: policy}, nil
}

// Weights returns a copy of the configured weights.
func (a *WeightedAggregator) Weights() SignalWeights {
	w := make(SignalWeights, len(a.weights))
	for k, v := range a.weights {
		w[k] = v
	}
	return w
}

// Aggregate combines the available signals. Signal weights are taken
// from the aggregator's configuration and written back into the returned
// Signals so callers see the weight each kind was assigned.
func (a *WeightedAggregator) Aggregate(signals []SignalResult) (AggregateResult, error) {
	seen := make(map[SignalKind]bool, len(signals))
	available := make([]SignalResult, 0, len(signals))
	attempted := make([]SignalResult, 0, len(signals))
	degraded := false

	for _, s := range signals {
		if !s.Kind.Valid() {
			return AggregateResult{}, fmt.Errorf("%w: unknown signal kind %q", ErrInvalidInput, s.Kind)
		}
		if seen[s.Kind] {
			return AggregateResult{}, fmt.Errorf("%w: %s", ErrDuplicateSignal, s.Kind)
		}
		seen[s.Kind] = true

		s.Weight = a.weights.Of(s.Kind)
		if s.Status == StatusUnavailable {
			degraded = true
		}
		if s.Available() {
			if err := ValidateScore(*s.Score); err != nil {
				return AggregateResult{}, fmt.Errorf("signal %s: %w", s.Kind, err)
			}
			available = append(available, s)
		}
		attempted = append(attempted, s)
	}

	if len(available) == 0 {
		return AggregateResult{}, NewInsufficientSignalsError(attempted)
	}

	effective := a.effectiveWeights(available)

	var overall float64
	if len(available) == 1 {
		overall = available[0].ScoreValue()
	} else {
		for _, s := range available {
			overall += effective[s.Kind] * s.ScoreValue()
		}
		overall = clamp01(overall)
	}

	return AggregateResult{
		OverallScore:     overall,
		Label:            LabelForScore(overall),
		Confidence:       a.confidence.Confidence(len(available)),
		Signals:          sortSignals(attempted),
		EffectiveWeights: effective,
		Degraded:         degraded,
	}, nil
}

// effectiveWeights renormalizes the weights of the available signals.
// When every available weight is zero the signals share equal weight.
func (a *WeightedAggregator) effectiveWeights(available []SignalResult) map[SignalKind]float64 {
	var total float64
	for _, s := range available {
		total += a.weights.Of(s.Kind)
	}

	out := make(map[SignalKind]float64, len(available))
	for _, s := range available {
		if total == 0 {
			out[s.Kind] = 1 / float64(len(available))
			continue
		}
		out[s.Kind] = a.weights.Of(s.Kind) / total
	}
	return out
}

func sortSignals(signals []SignalResult) []SignalResult {
	byKind := make(map[SignalKind]SignalResult, len(signals))
	for _, s := range signals {
		byKind[s.Kind] = s
	}
	out := make([]SignalResult, 0, len(signals))
	for _, k := range AllSignalKinds() {
		if s, ok := byKind[k]; ok {
			out = append(out, s)
		}
	}
	return out
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
