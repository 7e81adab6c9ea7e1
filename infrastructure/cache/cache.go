// Package cache implements ports.CacheStore in process memory and on Redis.
package cache

import (
	"context"
	"errors"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"github.com/ahrav/go-verity/internal/ports"
)

const defaultCleanupInterval = 10 * time.Minute

// Memory is a process-local cache.
type Memory struct {
	items *gocache.Cache
}

var _ ports.CacheStore = (*Memory)(nil)

// NewMemory creates a memory cache whose expired entries are purged every
// cleanup interval. A non-positive interval selects the default.
func NewMemory(cleanup time.Duration) *Memory {
	if cleanup <= 0 {
		cleanup = defaultCleanupInterval
	}
	return &Memory{items: gocache.New(gocache.NoExpiration, cleanup)}
}

// Get returns a copy of the stored bytes.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.items.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, false, ports.NewCacheError(key, "get", ports.ErrCacheCorrupted)
	}
	return append([]byte(nil), b...), true, nil
}

// Set stores a copy of value. A zero expiration never expires.
func (m *Memory) Set(_ context.Context, key string, value []byte, expiration time.Duration) error {
	if expiration <= 0 {
		expiration = gocache.NoExpiration
	}
	m.items.Set(key, append([]byte(nil), value...), expiration)
	return nil
}

// Delete removes key.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.items.Delete(key)
	return nil
}

// Clear removes every entry.
func (m *Memory) Clear(context.Context) error {
	m.items.Flush()
	return nil
}

// Len returns the number of entries, including expired ones not yet purged.
func (m *Memory) Len() int { return m.items.ItemCount() }

// Redis is a cache shared between processes. Keys are namespaced by
// prefix so Clear only removes this cache's entries.
type Redis struct {
	client redis.UniversalClient
	prefix string
}

var _ ports.CacheStore = (*Redis)(nil)

// NewRedis wraps a go-redis client.
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = "verity:cache:"
	}
	return &Redis{client: client, prefix: prefix}
}

// Get reads key. A missing key is not an error.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, ports.NewCacheError(key, "get", err)
	}
	return b, true, nil
}

// Set writes key with the given expiration. Zero keeps it forever.
func (r *Redis) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	if expiration < 0 {
		expiration = 0
	}
	if err := r.client.Set(ctx, r.prefix+key, value, expiration).Err(); err != nil {
		return ports.NewCacheError(key, "set", err)
	}
	return nil
}

// Delete removes key.
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return ports.NewCacheError(key, "delete", err)
	}
	return nil
}

// Clear removes every key under the prefix, scanning in batches.
func (r *Redis) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 500).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 500 {
			if err := r.client.Del(ctx, batch...).Err(); err != nil {
				return ports.NewCacheError(r.prefix+"*", "clear", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return ports.NewCacheError(r.prefix+"*", "clear", err)
	}
	if len(batch) > 0 {
		if err := r.client.Del(ctx, batch...).Err(); err != nil {
			return ports.NewCacheError(r.prefix+"*", "clear", err)
		}
	}
	return nil
}

// Close closes the client.
func (r *Redis) Close() error { return r.client.Close() }
