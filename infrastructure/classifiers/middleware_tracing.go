package classifiers

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-verity/internal/ports"
)

const tracerName = "github.com/ahrav/go-verity/infrastructure/classifiers"

type tracedClassifier struct {
	wrapped
	tracer  trace.Tracer
	backend string
}

// TracingMiddleware wraps each call in a "classifier.classify" span using
// the global tracer provider.
func TracingMiddleware(backend string) Middleware {
	return TracingMiddlewareWithProvider(otel.GetTracerProvider(), backend)
}

// TracingMiddlewareWithProvider is TracingMiddleware with an explicit
// tracer provider.
func TracingMiddlewareWithProvider(tp trace.TracerProvider, backend string) Middleware {
	tracer := tp.Tracer(tracerName)
	return func(next ports.Classifier) ports.Classifier {
		return &tracedClassifier{wrapped: wrapped{next: next}, tracer: tracer, backend: backend}
	}
}

func (t *tracedClassifier) Classify(ctx context.Context, in ports.ClassifierInput) (ports.Inference, error) {
	ctx, span := t.tracer.Start(ctx, "classifier.classify",
		trace.WithAttributes(
			attribute.String("classifier.name", t.next.Name()),
			attribute.String("classifier.backend", t.backend),
			attribute.Int("classifier.input.text_length", len(in.Text)),
			attribute.Bool("classifier.input.has_media", in.MediaURL != ""),
		),
	)
	defer span.End()

	inf, err := t.next.Classify(ctx, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return inf, err
	}
	span.SetAttributes(
		attribute.Float64("classifier.probability", inf.Probability),
		attribute.Float64("classifier.confidence", inf.Confidence),
	)
	return inf, nil
}
