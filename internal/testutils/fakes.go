package testutils

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ahrav/go-verity/internal/domain"
	"github.com/ahrav/go-verity/internal/ports"
)

// StubProvider is a SignalProvider returning a fixed result. Delay makes
// Evaluate block until the delay passes or the context ends, and Panic
// makes it panic, so tests can exercise timeouts and recovery.
type StubProvider struct {
	SignalKind domain.SignalKind
	Result     domain.SignalResult
	Err        error
	Delay      time.Duration
	Panic      bool
	// IgnoreContext keeps a delayed Evaluate blocked after cancellation.
	IgnoreContext bool
	// NotApplicable makes Applicable report false.
	NotApplicable bool

	calls atomic.Int32
}

var _ ports.SignalProvider = (*StubProvider)(nil)

// ScoredProvider returns a provider that always scores kind at score.
func ScoredProvider(kind domain.SignalKind, score float64) *StubProvider {
	return &StubProvider{SignalKind: kind, Result: domain.Scored(kind, score, 0.9, "stub")}
}

// AbstainingProvider returns a provider that always abstains.
func AbstainingProvider(kind domain.SignalKind) *StubProvider {
	return &StubProvider{SignalKind: kind, Result: domain.Abstained(kind, "stub abstains")}
}

// FailingProvider returns a provider whose Evaluate fails with err.
func FailingProvider(kind domain.SignalKind, err error) *StubProvider {
	return &StubProvider{SignalKind: kind, Err: domain.NewProviderError(kind, "evaluate", err)}
}

// Kind returns the configured kind.
func (p *StubProvider) Kind() domain.SignalKind { return p.SignalKind }

// Applicable reports !NotApplicable.
func (p *StubProvider) Applicable(domain.AnalysisInput) bool { return !p.NotApplicable }

// Evaluate returns the configured result or error.
func (p *StubProvider) Evaluate(ctx context.Context, _ domain.AnalysisInput) (domain.SignalResult, error) {
	p.calls.Add(1)
	if p.Panic {
		panic("stub provider panic")
	}
	if p.Delay > 0 {
		if p.IgnoreContext {
			time.Sleep(p.Delay)
		} else {
			select {
			case <-time.After(p.Delay):
			case <-ctx.Done():
				return domain.SignalResult{}, ctx.Err()
			}
		}
	}
	if p.Err != nil {
		return domain.SignalResult{}, p.Err
	}
	return p.Result, nil
}

// Calls returns how many times Evaluate ran.
func (p *StubProvider) Calls() int { return int(p.calls.Load()) }

// StubClassifier is a Classifier returning a fixed inference or error.
type StubClassifier struct {
	ClassifierName string
	Inference      ports.Inference
	Err            error
	NotReady       bool
	Closed         atomic.Bool

	mu     sync.Mutex
	inputs []ports.ClassifierInput
}

var _ ports.Classifier = (*StubClassifier)(nil)

// Name returns ClassifierName, or "stub".
func (c *StubClassifier) Name() string {
	if c.ClassifierName == "" {
		return "stub"
	}
	return c.ClassifierName
}

// Classify records the input and returns the configured outcome.
func (c *StubClassifier) Classify(ctx context.Context, in ports.ClassifierInput) (ports.Inference, error) {
	c.mu.Lock()
	c.inputs = append(c.inputs, in)
	c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return ports.Inference{}, err
	}
	if c.Err != nil {
		return ports.Inference{}, c.Err
	}
	return c.Inference, nil
}

// Ready reports !NotReady.
func (c *StubClassifier) Ready(context.Context) bool { return !c.NotReady }

// Close marks the classifier closed.
func (c *StubClassifier) Close() error {
	c.Closed.Store(true)
	return nil
}

// Inputs returns the inputs seen so far.
func (c *StubClassifier) Inputs() []ports.ClassifierInput {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ports.ClassifierInput(nil), c.inputs...)
}

// StubEvidence is an EvidenceProvider returning a fixed result or error.
type StubEvidence struct {
	Result domain.EvidenceResult
	Err    error
	Delay  time.Duration

	mu      sync.Mutex
	queries []string
}

var _ ports.EvidenceProvider = (*StubEvidence)(nil)

// Mode returns the mode of the configured result.
func (e *StubEvidence) Mode() domain.EvidenceMode { return e.Result.Mode }

// Search records the query and returns the configured outcome.
func (e *StubEvidence) Search(ctx context.Context, query string) (domain.EvidenceResult, error) {
	e.mu.Lock()
	e.queries = append(e.queries, query)
	e.mu.Unlock()
	if e.Delay > 0 {
		select {
		case <-time.After(e.Delay):
		case <-ctx.Done():
			return domain.EvidenceResult{}, ctx.Err()
		}
	}
	if e.Err != nil {
		return domain.EvidenceResult{}, e.Err
	}
	return e.Result, nil
}

// Queries returns the queries seen so far.
func (e *StubEvidence) Queries() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.queries...)
}

// FailingStore wraps a ReportStore and fails the operations named in
// Fail with Err.
type FailingStore struct {
	ports.ReportStore
	Err  error
	Fail map[string]bool
}

var _ ports.ReportStore = (*FailingStore)(nil)

// Save fails when Fail["save"] is set.
func (s *FailingStore) Save(ctx context.Context, r *domain.Report) error {
	if s.Fail["save"] {
		return s.Err
	}
	return s.ReportStore.Save(ctx, r)
}

// Ping fails when Fail["ping"] is set.
func (s *FailingStore) Ping(ctx context.Context) error {
	if s.Fail["ping"] {
		return s.Err
	}
	return s.ReportStore.Ping(ctx)
}

// FixedClock returns a clock that always reports t.
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
