package signals

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ahrav/go-verity/infrastructure/classifiers"
	"github.com/ahrav/go-verity/internal/domain"
	"github.com/ahrav/go-verity/internal/ports"
)

// ClassifierProvider turns a classifier backend into one of the model
// signals. The classifier's probability is used verbatim as the score.
type ClassifierProvider struct {
	kind          domain.SignalKind
	classifier    ports.Classifier
	minConfidence float64
}

var _ ports.SignalProvider = (*ClassifierProvider)(nil)

// NewClassifierProvider binds c to a model signal kind. Inferences with
// a confidence below minConfidence abstain.
func NewClassifierProvider(kind domain.SignalKind, c ports.Classifier, minConfidence float64) (*ClassifierProvider, error) {
	switch kind {
	case domain.SignalTextModel, domain.SignalImageModel, domain.SignalAudioModel:
	default:
		return nil, fmt.Errorf("%w: %s is not a model signal", domain.ErrInvalidConfiguration, kind)
	}
	if c == nil {
		return nil, fmt.Errorf("%w: %s has no classifier", domain.ErrInvalidConfiguration, kind)
	}
	if minConfidence < 0 || minConfidence > 1 {
		return nil, fmt.Errorf("%w: min_confidence %v out of range", domain.ErrInvalidConfiguration, minConfidence)
	}
	return &ClassifierProvider{kind: kind, classifier: c, minConfidence: minConfidence}, nil
}

// Kind returns the bound signal kind.
func (p *ClassifierProvider) Kind() domain.SignalKind { return p.kind }

// Backend names the classifier behind the provider.
func (p *ClassifierProvider) Backend() string { return p.classifier.Name() }

// Applicable reports whether the input the model needs is present.
func (p *ClassifierProvider) Applicable(in domain.AnalysisInput) bool {
	switch p.kind {
	case domain.SignalTextModel:
		return strings.TrimSpace(in.Text) != ""
	case domain.SignalImageModel:
		return strings.TrimSpace(in.ImageURL) != ""
	case domain.SignalAudioModel:
		return strings.TrimSpace(in.AudioURL) != ""
	default:
		return false
	}
}

func (p *ClassifierProvider) classifierInput(in domain.AnalysisInput) ports.ClassifierInput {
	ci := ports.ClassifierInput{Text: in.Text, SourceURL: in.URL}
	switch p.kind {
	case domain.SignalImageModel:
		ci.MediaURL = in.ImageURL
	case domain.SignalAudioModel:
		ci.MediaURL = in.AudioURL
	}
	return ci
}

// Evaluate runs the classifier. Backend failures and invalid
// probabilities are returned as a *domain.ProviderError so the caller
// records the signal as unavailable.
func (p *ClassifierProvider) Evaluate(ctx context.Context, in domain.AnalysisInput) (domain.SignalResult, error) {
	inf, err := p.classifier.Classify(ctx, p.classifierInput(in))
	if err != nil {
		return domain.SignalResult{}, domain.NewProviderError(p.kind, "classify", err)
	}
	if err := domain.ValidateScore(inf.Probability); err != nil {
		return domain.SignalResult{}, domain.NewProviderError(p.kind, "classify",
			fmt.Errorf("%w: probability %v: %w", ports.ErrInvalidResponse, inf.Probability, err))
	}
	if inf.Confidence < p.minConfidence {
		return domain.Abstained(p.kind, fmt.Sprintf("%s confidence %.2f below %.2f",
			p.classifier.Name(), inf.Confidence, p.minConfidence)), nil
	}

	detail := p.classifier.Name()
	if inf.Rationale != "" {
		detail += ": " + inf.Rationale
	}
	return domain.Scored(p.kind, inf.Probability, inf.Confidence, detail), nil
}

// Ready reports whether every layer of the classifier chain is ready.
func (p *ClassifierProvider) Ready(ctx context.Context) bool {
	return classifiers.IsReady(ctx, p.classifier)
}

// Close closes every closable layer of the classifier chain, outermost
// first, and joins their errors.
func (p *ClassifierProvider) Close() error {
	var errs []error
	for c := p.classifier; c != nil; {
		if closer, ok := c.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", c.Name(), err))
			}
		}
		u, ok := c.(interface{ Unwrap() ports.Classifier })
		if !ok {
			break
		}
		c = u.Unwrap()
	}
	return errors.Join(errs...)
}
