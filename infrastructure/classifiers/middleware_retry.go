package classifiers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/ahrav/go-verity/internal/ports"
)

const defaultRetryBaseDelay = 100 * time.Millisecond

type retryClassifier struct {
	wrapped
	maxRetries uint64
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// RetryMiddleware retries transient failures with exponential backoff and
// ±25% jitter. Only errors for which ports.IsRetryable is true are
// retried; an open circuit or a finished context stops immediately.
func RetryMiddleware(maxRetries int, baseDelay, maxDelay time.Duration) Middleware {
	return func(next ports.Classifier) ports.Classifier {
		if maxRetries <= 0 {
			return next
		}
		if baseDelay <= 0 {
			baseDelay = defaultRetryBaseDelay
		}
		return &retryClassifier{
			wrapped:    wrapped{next: next},
			maxRetries: uint64(maxRetries),
			baseDelay:  baseDelay,
			maxDelay:   maxDelay,
		}
	}
}

func (r *retryClassifier) backoff() retry.Backoff {
	b := retry.NewExponential(r.baseDelay)
	b = retry.WithJitterPercent(25, b)
	if r.maxDelay > 0 {
		b = retry.WithCappedDuration(r.maxDelay, b)
	}
	return retry.WithMaxRetries(r.maxRetries, b)
}

func (r *retryClassifier) Classify(ctx context.Context, in ports.ClassifierInput) (ports.Inference, error) {
	var (
		out      ports.Inference
		attempts int
	)

	err := retry.Do(ctx, r.backoff(), func(ctx context.Context) error {
		attempts++
		inf, err := r.next.Classify(ctx, in)
		if err == nil {
			out = inf
			return nil
		}
		if errors.Is(err, ErrCircuitOpen) || ctx.Err() != nil || !ports.IsRetryable(err) {
			return err
		}
		return retry.RetryableError(err)
	})
	if err != nil {
		if attempts > 1 {
			return ports.Inference{}, fmt.Errorf("classification failed after %d attempts: %w", attempts, err)
		}
		return ports.Inference{}, err
	}
	return out, nil
}
