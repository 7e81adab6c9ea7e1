package classifiers

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/ahrav/go-verity/internal/ports"
)

type rateLimitedClassifier struct {
	wrapped
	limiter *rate.Limiter
}

// RateLimitMiddleware paces calls with a token bucket. limit is calls per
// second and burst is the bucket size. Callers block until a token is
// available or their context ends.
func RateLimitMiddleware(limit rate.Limit, burst int) Middleware {
	limiter := rate.NewLimiter(limit, burst)
	return func(next ports.Classifier) ports.Classifier {
		if limit <= 0 {
			return next
		}
		return &rateLimitedClassifier{wrapped: wrapped{next: next}, limiter: limiter}
	}
}

func (r *rateLimitedClassifier) Classify(ctx context.Context, in ports.ClassifierInput) (ports.Inference, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return ports.Inference{}, fmt.Errorf("rate limit: %w", err)
	}
	return r.next.Classify(ctx, in)
}
