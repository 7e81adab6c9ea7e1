package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-verity/infrastructure/evidence"
	"github.com/ahrav/go-verity/infrastructure/metrics"
	"github.com/ahrav/go-verity/internal/domain"
	"github.com/ahrav/go-verity/internal/ports"
)

const (
	tracerName = "github.com/ahrav/go-verity/internal/application"

	defaultEvidenceTimeout = 5 * time.Second
	healthPingTimeout      = 2 * time.Second
)

// AnalyzerOptions carries the optional collaborators and limits of an
// Analyzer. The zero value is usable.
type AnalyzerOptions struct {
	// Evidence is searched alongside the providers. Nil reports the
	// evidence as unavailable.
	Evidence ports.EvidenceProvider
	Metrics  ports.MetricsCollector
	Tracer   trace.TracerProvider
	Logger   *slog.Logger

	// Limits bounds request text. The zero value selects
	// DefaultInputLimits.
	Limits InputLimits
	// MaxConcurrency bounds the providers run at once for one request.
	// Zero runs every provider at once.
	MaxConcurrency  int
	EvidenceTimeout time.Duration

	// Clock and NewID are replaced in tests.
	Clock func() time.Time
	NewID func() string
}

// Analyzer runs the analysis pipeline: validation, concurrent signal
// providers, aggregation, evidence, explanation and persistence. It is
// safe for concurrent use.
type Analyzer struct {
	providers  *ProviderSet
	aggregator domain.Aggregator
	store      ports.ReportStore
	evidence   ports.EvidenceProvider
	metrics    ports.MetricsCollector
	tracer     trace.Tracer
	logger     *slog.Logger

	limits          InputLimits
	maxConcurrency  int
	evidenceTimeout time.Duration
	now             func() time.Time
	newID           func() string
}

// NewAnalyzer wires an Analyzer. Providers, aggregator and store are
// required.
func NewAnalyzer(
	providers *ProviderSet,
	aggregator domain.Aggregator,
	store ports.ReportStore,
	opts AnalyzerOptions,
) (*Analyzer, error) {
	if providers == nil || aggregator == nil || store == nil {
		return nil, fmt.Errorf("%w: analyzer needs providers, aggregator and store", domain.ErrInvalidConfiguration)
	}

	a := &Analyzer{
		providers:       providers,
		aggregator:      aggregator,
		store:           store,
		evidence:        opts.Evidence,
		metrics:         opts.Metrics,
		limits:          opts.Limits,
		maxConcurrency:  opts.MaxConcurrency,
		evidenceTimeout: opts.EvidenceTimeout,
		now:             opts.Clock,
		newID:           opts.NewID,
	}
	if a.evidence == nil {
		a.evidence = evidence.DisabledProvider{}
	}
	if a.limits == (InputLimits{}) {
		a.limits = DefaultInputLimits()
	}
	if a.evidenceTimeout <= 0 {
		a.evidenceTimeout = defaultEvidenceTimeout
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.newID == nil {
		a.newID = uuid.NewString
	}

	tp := opts.Tracer
	if tp == nil {
		tp = noop.NewTracerProvider()
	}
	a.tracer = tp.Tracer(tracerName)

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	a.logger = logger.With("component", "analyzer")
	return a, nil
}

// Analyze validates in, runs every applicable provider and builds and
// stores the report.
//
// Invalid input fails with domain.ErrInvalidInput before any provider
// runs. When no provider produced a score the error matches
// domain.ErrInsufficientSignals and nothing is stored. A failure to
// store the report fails the request.
func (a *Analyzer) Analyze(ctx context.Context, in domain.AnalysisInput) (*domain.Report, error) {
	start := time.Now()
	ct := in.Type()

	if err := ValidateInput(in, a.limits); err != nil {
		return nil, err
	}

	ctx, span := a.tracer.Start(ctx, "verity.analyze",
		trace.WithAttributes(attribute.String("verity.content_type", string(ct))))
	defer span.End()

	evCh := make(chan domain.EvidenceResult, 1)
	go func() { evCh <- a.searchEvidence(ctx, in) }()

	signals := a.collectSignals(ctx, in)

	result, err := a.aggregator.Aggregate(signals)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.recordAnalysis(ct, "none", false, time.Since(start))
		if errors.Is(err, domain.ErrInsufficientSignals) {
			a.logger.Warn("no analysis possible", "content_type", ct, "error", err)
		} else {
			a.logger.Error("aggregation failed", "content_type", ct, "error", err)
		}
		return nil, err
	}

	ev := <-evCh
	report := &domain.Report{
		ID:           a.newID(),
		ContentType:  ct,
		Input:        in,
		Result:       result,
		Evidence:     ev.Items,
		EvidenceMode: ev.Mode,
		Explanation:  Explain(in, result, ev),
		CreatedAt:    a.now().UTC(),
	}

	if err := a.store.Save(ctx, report); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save report")
		a.logger.Error("failed to save report", "report_id", report.ID, "error", err)
		return nil, fmt.Errorf("save report: %w", err)
	}

	span.SetAttributes(
		attribute.String("verity.report_id", report.ID),
		attribute.String("verity.label", string(result.Label)),
		attribute.Float64("verity.score", result.OverallScore),
		attribute.Bool("verity.degraded", result.Degraded),
	)
	a.recordAnalysis(ct, string(result.Label), result.Degraded, time.Since(start))
	if a.metrics != nil {
		a.metrics.RecordHistogram(metrics.AggregateScore, result.OverallScore, map[string]string{"label": string(result.Label)})
	}

	a.logger.Info("analysis complete",
		"report_id", report.ID,
		"content_type", ct,
		"score", result.OverallScore,
		"label", result.Label,
		"confidence", result.Confidence,
		"signals", result.AvailableCount(),
		"degraded", result.Degraded,
		"evidence_mode", ev.Mode,
		"duration", time.Since(start),
	)
	return report, nil
}

// collectSignals runs the applicable providers concurrently and returns
// their results once all of them have finished or timed out. Providers
// whose input is missing are not attempted and produce no result.
func (a *Analyzer) collectSignals(ctx context.Context, in domain.AnalysisInput) []domain.SignalResult {
	providers := a.providers.Providers()
	results := make([]domain.SignalResult, len(providers))
	attempted := make([]bool, len(providers))

	var g errgroup.Group
	if a.maxConcurrency > 0 {
		g.SetLimit(a.maxConcurrency)
	}
	for i, p := range providers {
		if !p.Applicable(in) {
			a.logger.Debug("provider not applicable", "kind", p.Kind())
			continue
		}
		attempted[i] = true
		g.Go(func() error {
			results[i] = a.runProvider(ctx, p, in)
			return nil
		})
	}
	_ = g.Wait()

	out := make([]domain.SignalResult, 0, len(providers))
	for i, ok := range attempted {
		if ok {
			out = append(out, results[i])
		}
	}
	return out
}

type providerOutcome struct {
	result domain.SignalResult
	err    error
}

// runProvider evaluates one provider under its timeout. Errors, panics,
// timeouts and invalid scores all become an unavailable signal.
func (a *Analyzer) runProvider(ctx context.Context, p ports.SignalProvider, in domain.AnalysisInput) domain.SignalResult {
	kind := p.Kind()
	start := time.Now()

	timeout := a.providers.Timeout(kind)
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan providerOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- providerOutcome{err: fmt.Errorf("%w: panic: %v", domain.ErrProviderUnavailable, r)}
			}
		}()
		res, err := p.Evaluate(ctx, in)
		done <- providerOutcome{result: res, err: err}
	}()

	var res domain.SignalResult
	select {
	case o := <-done:
		res = a.settle(kind, o)
	case <-ctx.Done():
		err := ctx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s", timeout)
		}
		a.logger.Warn("provider unavailable", "kind", kind, "error", err)
		res = domain.Unavailable(kind, err.Error())
	}

	a.recordProvider(kind, res.Status, time.Since(start))
	return res
}

func (a *Analyzer) settle(kind domain.SignalKind, o providerOutcome) domain.SignalResult {
	if o.err != nil {
		a.logger.Warn("provider unavailable", "kind", kind, "error", o.err)
		return domain.Unavailable(kind, o.err.Error())
	}

	res := o.result
	res.Kind = kind
	if res.Available() {
		if err := domain.ValidateScore(*res.Score); err != nil {
			a.logger.Warn("provider returned an invalid score", "kind", kind, "error", err)
			return domain.Unavailable(kind, err.Error())
		}
	}
	if res.Status == "" {
		res.Status = domain.StatusAbstained
		if res.Available() {
			res.Status = domain.StatusOK
		}
	}
	if res.Status == domain.StatusAbstained {
		a.logger.Debug("provider abstained", "kind", kind, "detail", res.Detail)
	}
	return res
}

// searchEvidence queries the evidence provider under its own timeout.
// Search failures are reported as unavailable evidence, never as a
// request failure.
func (a *Analyzer) searchEvidence(ctx context.Context, in domain.AnalysisInput) domain.EvidenceResult {
	start := time.Now()
	res := domain.EvidenceResult{Mode: domain.EvidenceUnavailable}

	if query := evidence.BuildQuery(in.Text); query != "" {
		sctx, cancel := context.WithTimeout(ctx, a.evidenceTimeout)
		found, err := a.evidence.Search(sctx, query)
		cancel()
		if err != nil {
			a.logger.Warn("evidence search failed", "mode", a.evidence.Mode(), "error", err)
		} else {
			res = found
		}
	}
	if res.Items == nil {
		res.Items = []domain.EvidenceItem{}
	}

	if a.metrics != nil {
		labels := map[string]string{"mode": string(res.Mode)}
		a.metrics.RecordCounter(metrics.EvidenceResults, 1, labels)
		a.metrics.RecordLatency(metrics.OpEvidence, time.Since(start), labels)
	}
	return res
}

func (a *Analyzer) recordProvider(kind domain.SignalKind, status domain.SignalStatus, d time.Duration) {
	if a.metrics == nil {
		return
	}
	labels := map[string]string{"kind": string(kind), "status": string(status)}
	a.metrics.RecordLatency(metrics.OpProvider, d, labels)
	a.metrics.RecordCounter(metrics.ProviderOutcomes, 1, labels)
}

func (a *Analyzer) recordAnalysis(ct domain.ContentType, label string, degraded bool, d time.Duration) {
	if a.metrics == nil {
		return
	}
	a.metrics.RecordLatency(metrics.OpAnalysis, d, map[string]string{"content_type": string(ct)})
	a.metrics.RecordCounter(metrics.Analyses, 1, map[string]string{
		"content_type": string(ct),
		"label":        label,
		"degraded":     strconv.FormatBool(degraded),
	})
}

// GetReport returns a stored report. Unknown ids match domain.ErrNotFound.
func (a *Analyzer) GetReport(ctx context.Context, id string) (*domain.Report, error) {
	return a.store.Get(ctx, id)
}

// DeleteReport removes a report and its flags.
func (a *Analyzer) DeleteReport(ctx context.Context, id string) error {
	if err := a.store.Delete(ctx, id); err != nil {
		return err
	}
	a.logger.Info("report deleted", "report_id", id)
	return nil
}

// FlagReport records user feedback on an existing report.
func (a *Analyzer) FlagReport(ctx context.Context, id string, flagType domain.FlagType, comment string) (domain.Flag, error) {
	flag := domain.Flag{ReportID: id, Type: flagType, Comment: comment, CreatedAt: a.now().UTC()}
	if err := flag.Validate(); err != nil {
		return domain.Flag{}, err
	}
	if err := a.store.AddFlag(ctx, flag); err != nil {
		return domain.Flag{}, err
	}
	a.logger.Info("report flagged", "report_id", id, "flag_type", flagType)
	return flag, nil
}

// ListFlags returns the flags of an existing report, oldest first.
func (a *Analyzer) ListFlags(ctx context.Context, id string) ([]domain.Flag, error) {
	return a.store.ListFlags(ctx, id)
}

// Health status values.
const (
	HealthHealthy  = "healthy"
	HealthDegraded = "degraded"
)

// HealthReport is the readiness of the pipeline.
type HealthReport struct {
	Status       string                               `json:"status"`
	Providers    map[domain.SignalKind]ProviderHealth `json:"providers"`
	Store        bool                                 `json:"store"`
	EvidenceMode domain.EvidenceMode                  `json:"evidence_mode"`
}

// Health checks the store and every provider. The status is degraded
// when the store is unreachable or an enabled provider is not ready.
func (a *Analyzer) Health(ctx context.Context) HealthReport {
	pctx, cancel := context.WithTimeout(ctx, healthPingTimeout)
	defer cancel()

	storeOK := true
	if err := a.store.Ping(pctx); err != nil {
		a.logger.Warn("store unreachable", "error", err)
		storeOK = false
	}

	providers := a.providers.Health(ctx)
	status := HealthHealthy
	if !storeOK {
		status = HealthDegraded
	}
	ready := 0
	for _, h := range providers {
		if !h.Enabled {
			continue
		}
		if h.Ready {
			ready++
		} else {
			status = HealthDegraded
		}
	}
	if a.metrics != nil {
		a.metrics.RecordGauge("providers_ready", float64(ready), nil)
	}

	return HealthReport{
		Status:       status,
		Providers:    providers,
		Store:        storeOK,
		EvidenceMode: a.evidence.Mode(),
	}
}
