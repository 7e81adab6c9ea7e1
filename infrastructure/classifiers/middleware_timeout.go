package classifiers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahrav/go-verity/internal/ports"
)

type timeoutClassifier struct {
	wrapped
	timeout time.Duration
}

// TimeoutMiddleware bounds every Classify call by timeout. A call that
// runs out of time fails with an error matching ports.ErrTimeout.
// A non-positive timeout disables the middleware.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next ports.Classifier) ports.Classifier {
		if timeout <= 0 {
			return next
		}
		return &timeoutClassifier{wrapped: wrapped{next: next}, timeout: timeout}
	}
}

func (t *timeoutClassifier) Classify(ctx context.Context, in ports.ClassifierInput) (ports.Inference, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	inf, err := t.next.Classify(ctx, in)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, ports.ErrTimeout) {
		return ports.Inference{}, fmt.Errorf("%w after %v: %w", ports.ErrTimeout, t.timeout, err)
	}
	return inf, err
}
