// Package classifiers provides the model backends behind the classifier
// signals (LLM, ONNX runtime and remote inference servers) and the
// middleware that makes them production ready: timeouts, retries, circuit
// breaking, rate limiting, result caching, metrics and tracing.
//
// Middleware wraps a ports.Classifier and returns a ports.Classifier, so
// resilience is added uniformly regardless of the backend:
//
//	c := classifiers.Chain(onnx,
//	    classifiers.TracingMiddleware("text_model"),
//	    classifiers.MetricsMiddleware(collector, "text_model"),
//	    classifiers.TimeoutMiddleware(2*time.Second),
//	)
package classifiers

import (
	"context"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-verity/internal/ports"
)

var validate = validator.New()

// Middleware wraps a classifier to add cross-cutting behavior.
type Middleware func(ports.Classifier) ports.Classifier

// Chain applies middleware to c. The first middleware is the outermost,
// so it sees the call first and the result last.
func Chain(c ports.Classifier, mws ...Middleware) ports.Classifier {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] == nil {
			continue
		}
		c = mws[i](c)
	}
	return c
}

// wrapped is embedded by middleware to forward Name and readiness.
type wrapped struct {
	next ports.Classifier
}

func (w wrapped) Name() string { return w.next.Name() }

// Unwrap returns the wrapped classifier.
func (w wrapped) Unwrap() ports.Classifier { return w.next }

// IsReady walks the middleware chain and reports false when any layer
// that can report readiness is not ready. Layers without a readiness check
// are assumed ready.
func IsReady(ctx context.Context, c ports.Classifier) bool {
	for c != nil {
		if rc, ok := c.(ports.ReadinessChecker); ok && !rc.Ready(ctx) {
			return false
		}
		u, ok := c.(interface{ Unwrap() ports.Classifier })
		if !ok {
			return true
		}
		c = u.Unwrap()
	}
	return true
}
