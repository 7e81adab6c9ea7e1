// Package metrics exposes the service's operational metrics to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ahrav/go-verity/internal/ports"
)

const namespace = "verity"

// Metric names understood by PrometheusMetrics. Unknown names fall back to
// the generic operation metrics.
const (
	ClassifierLatency  = "classifier_latency_seconds"
	ClassifierRequests = "classifier_requests_total"
	ClassifierCache    = "classifier_cache_total"
	CircuitState       = "classifier_circuit_state"
	ProviderOutcomes   = "provider_outcomes_total"
	Analyses           = "analyses_total"
	AggregateScore     = "aggregate_score"
	EvidenceResults    = "evidence_results_total"

	// Operations passed to RecordLatency.
	OpProvider = "provider"
	OpAnalysis = "analysis"
	OpEvidence = "evidence"
)

// PrometheusMetrics implements the MetricsCollector interface using
// Prometheus. Every instance owns its registry, so several instances can
// coexist in one process.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	classifierLatency  *prometheus.HistogramVec
	classifierRequests *prometheus.CounterVec
	classifierCache    *prometheus.CounterVec
	circuitState       *prometheus.GaugeVec

	providerLatency  *prometheus.HistogramVec
	providerOutcomes *prometheus.CounterVec

	analysisLatency *prometheus.HistogramVec
	analyses        *prometheus.CounterVec
	aggregateScore  *prometheus.HistogramVec
	evidenceResults *prometheus.CounterVec

	operationLatency *prometheus.HistogramVec
	operationCounter *prometheus.CounterVec
	systemGauges     *prometheus.GaugeVec
}

var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics creates the collector with a fresh registry that
// also carries the Go runtime and process collectors.
func NewPrometheusMetrics() *PrometheusMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &PrometheusMetrics{
		registry: reg,

		// Classifier middleware.
		classifierLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      ClassifierLatency,
			Help:      "Latency of classifier backend calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"classifier", "backend", "status"}),
		classifierRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      ClassifierRequests,
			Help:      "Classifier calls by outcome.",
		}, []string{"classifier", "backend", "status"}),
		classifierCache: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      ClassifierCache,
			Help:      "Classifier cache lookups by result.",
		}, []string{"classifier", "result"}),
		circuitState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      CircuitState,
			Help:      "Circuit breaker state per classifier (0 closed, 1 open, 2 half-open).",
		}, []string{"classifier"}),

		// Signal providers.
		providerLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_duration_seconds",
			Help:      "Time spent in each signal provider.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind", "status"}),
		providerOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      ProviderOutcomes,
			Help:      "Signal provider results by status.",
		}, []string{"kind", "status"}),

		// Analyses.
		analysisLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "End to end analysis latency.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2, 5, 10, 30},
		}, []string{"content_type"}),
		analyses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      Analyses,
			Help:      "Completed analyses by label and degradation.",
		}, []string{"content_type", "label", "degraded"}),
		aggregateScore: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      AggregateScore,
			Help:      "Distribution of overall trust scores.",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 9),
		}, []string{"label"}),
		evidenceResults: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      EvidenceResults,
			Help:      "Evidence searches by resulting mode.",
		}, []string{"mode"}),

		// Fallbacks for names not listed above.
		operationLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Latency of other operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		operationCounter: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Other counted events.",
		}, []string{"operation"}),
		systemGauges: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "system_state",
			Help:      "Other gauge values.",
		}, []string{"metric"}),
	}
}

// Registry returns the registry the metrics are registered with.
func (pm *PrometheusMetrics) Registry() *prometheus.Registry { return pm.registry }

// Handler serves the registry in the Prometheus exposition format.
func (pm *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(pm.registry, promhttp.HandlerOpts{Registry: pm.registry})
}

// RecordLatency implements the MetricsCollector interface.
func (pm *PrometheusMetrics) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	switch operation {
	case OpProvider:
		pm.providerLatency.WithLabelValues(label(labels, "kind"), label(labels, "status")).Observe(duration.Seconds())
	case OpAnalysis:
		pm.analysisLatency.WithLabelValues(label(labels, "content_type")).Observe(duration.Seconds())
	default:
		pm.operationLatency.WithLabelValues(operation).Observe(duration.Seconds())
	}
}

// RecordCounter implements the MetricsCollector interface.
func (pm *PrometheusMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	switch metric {
	case ClassifierRequests:
		pm.classifierRequests.WithLabelValues(
			label(labels, "classifier"), label(labels, "backend"), label(labels, "status"),
		).Add(value)
	case ClassifierCache:
		pm.classifierCache.WithLabelValues(label(labels, "classifier"), label(labels, "result")).Add(value)
	case ProviderOutcomes:
		pm.providerOutcomes.WithLabelValues(label(labels, "kind"), label(labels, "status")).Add(value)
	case Analyses:
		pm.analyses.WithLabelValues(
			label(labels, "content_type"), label(labels, "label"), label(labels, "degraded"),
		).Add(value)
	case EvidenceResults:
		pm.evidenceResults.WithLabelValues(label(labels, "mode")).Add(value)
	default:
		pm.operationCounter.WithLabelValues(metric).Add(value)
	}
}

// RecordGauge implements the MetricsCollector interface.
func (pm *PrometheusMetrics) RecordGauge(metric string, value float64, labels map[string]string) {
	switch metric {
	case CircuitState:
		pm.circuitState.WithLabelValues(label(labels, "classifier")).Set(value)
	default:
		pm.systemGauges.WithLabelValues(metric).Set(value)
	}
}

// RecordHistogram implements the MetricsCollector interface.
func (pm *PrometheusMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	switch metric {
	case ClassifierLatency:
		pm.classifierLatency.WithLabelValues(
			label(labels, "classifier"), label(labels, "backend"), label(labels, "status"),
		).Observe(value)
	case AggregateScore:
		pm.aggregateScore.WithLabelValues(label(labels, "label")).Observe(value)
	default:
		pm.operationLatency.WithLabelValues(metric).Observe(value)
	}
}

// label returns labels[key], or "unknown" when it is missing or empty.
func label(labels map[string]string, key string) string {
	if v := labels[key]; v != "" {
		return v
	}
	return "unknown"
}
