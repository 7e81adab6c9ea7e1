package classifiers

import (
	"context"
	"errors"
	"time"

	"github.com/ahrav/go-verity/internal/ports"
)

type metricsClassifier struct {
	wrapped
	collector ports.MetricsCollector
	backend   string
}

// MetricsMiddleware records classifier_latency_seconds and
// classifier_requests_total for every call, labelled by classifier name,
// backend and outcome.
func MetricsMiddleware(collector ports.MetricsCollector, backend string) Middleware {
	return func(next ports.Classifier) ports.Classifier {
		if collector == nil {
			return next
		}
		return &metricsClassifier{wrapped: wrapped{next: next}, collector: collector, backend: backend}
	}
}

func (m *metricsClassifier) Classify(ctx context.Context, in ports.ClassifierInput) (ports.Inference, error) {
	start := time.Now()
	inf, err := m.next.Classify(ctx, in)

	labels := map[string]string{
		"classifier": m.next.Name(),
		"backend":    m.backend,
		"status":     outcome(ctx, err),
	}
	m.collector.RecordHistogram("classifier_latency_seconds", time.Since(start).Seconds(), labels)
	m.collector.RecordCounter("classifier_requests_total", 1, labels)
	return inf, err
}

func outcome(ctx context.Context, err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, ports.ErrTimeout), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ports.ErrRateLimited):
		return "rate_limited"
	default:
		return "error"
	}
}
