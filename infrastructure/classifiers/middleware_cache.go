package classifiers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ahrav/go-verity/internal/ports"
)

// sharedCallTimeout bounds a backend call shared by concurrent callers.
// The call is detached from every caller, so it needs a bound of its own.
const sharedCallTimeout = 30 * time.Second

type cachedClassifier struct {
	wrapped
	cache       ports.CacheStore
	ttl         time.Duration
	group       singleflight.Group
	collector   ports.MetricsCollector
	callTimeout time.Duration
}

// CacheMiddleware memoizes inferences in cache for ttl. Concurrent calls
// for the same input share a single backend call, which runs detached
// from the callers: a caller whose context ends gets its own context
// error while the others keep waiting for the shared result. Cache
// failures are logged and never fail the classification.
func CacheMiddleware(cache ports.CacheStore, ttl time.Duration) Middleware {
	return CacheMiddlewareWithMetrics(cache, ttl, nil)
}

// CacheMiddlewareWithMetrics is CacheMiddleware that also counts hits and
// misses as classifier_cache_total.
func CacheMiddlewareWithMetrics(cache ports.CacheStore, ttl time.Duration, collector ports.MetricsCollector) Middleware {
	return func(next ports.Classifier) ports.Classifier {
		if cache == nil {
			return next
		}
		return &cachedClassifier{
			wrapped:     wrapped{next: next},
			cache:       cache,
			ttl:         ttl,
			collector:   collector,
			callTimeout: sharedCallTimeout,
		}
	}
}

// CacheKey derives the cache key for a classifier and input.
func CacheKey(classifier string, in ports.ClassifierInput) string {
	h := sha256.New()
	h.Write([]byte(in.Text))
	h.Write([]byte{0})
	h.Write([]byte(in.MediaURL))
	h.Write([]byte{0})
	h.Write([]byte(in.SourceURL))
	return "classifier:" + classifier + ":" + hex.EncodeToString(h.Sum(nil))
}

func (c *cachedClassifier) Classify(ctx context.Context, in ports.ClassifierInput) (ports.Inference, error) {
	key := CacheKey(c.next.Name(), in)

	if inf, ok := c.lookup(ctx, key); ok {
		c.count("hit")
		return inf, nil
	}
	c.count("miss")

	ch := c.group.DoChan(key, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.callTimeout)
		defer cancel()

		inf, err := c.next.Classify(callCtx, in)
		if err != nil {
			return ports.Inference{}, err
		}
		c.store(callCtx, key, inf)
		return inf, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return ports.Inference{}, res.Err
		}
		return res.Val.(ports.Inference), nil
	case <-ctx.Done():
		return ports.Inference{}, ctx.Err()
	}
}

func (c *cachedClassifier) count(result string) {
	if c.collector == nil {
		return
	}
	c.collector.RecordCounter("classifier_cache_total", 1, map[string]string{
		"classifier": c.next.Name(),
		"result":     result,
	})
}

func (c *cachedClassifier) lookup(ctx context.Context, key string) (ports.Inference, bool) {
	raw, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "classifier cache read failed", "key", key, "error", err)
		return ports.Inference{}, false
	}
	if !ok {
		return ports.Inference{}, false
	}

	var inf ports.Inference
	if err := json.Unmarshal(raw, &inf); err != nil {
		slog.WarnContext(ctx, "classifier cache entry corrupted", "key", key, "error", err)
		_ = c.cache.Delete(ctx, key)
		return ports.Inference{}, false
	}
	return inf, true
}

func (c *cachedClassifier) store(ctx context.Context, key string, inf ports.Inference) {
	raw, err := json.Marshal(inf)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, raw, c.ttl); err != nil {
		slog.WarnContext(ctx, "classifier cache write failed", "key", key, "error", err)
	}
}
