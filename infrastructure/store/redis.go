package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"

	"github.com/ahrav/go-verity/internal/domain"
	"github.com/ahrav/go-verity/internal/ports"
)

const (
	redisBackend = "redis"

	// DefaultKeyPrefix namespaces every key the store writes.
	DefaultKeyPrefix = "verity"

	defaultRedisRetries   = 3
	defaultRedisRetryBase = 50 * time.Millisecond
)

// RedisConfig holds the connection and retention settings of a RedisStore.
type RedisConfig struct {
	Address  string `yaml:"address" json:"address" validate:"required"`
	Password string `yaml:"-" json:"-"`
	DB       int    `yaml:"db" json:"db" validate:"min=0"`

	// KeyPrefix namespaces keys; reports live under <prefix>:report:<id>.
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix"`

	// TTL expires reports and their flags. Zero keeps them forever.
	TTL time.Duration `yaml:"ttl" json:"ttl" validate:"min=0"`

	// MaxRetries bounds retries of failed writes.
	MaxRetries uint64        `yaml:"max_retries" json:"max_retries"`
	RetryBase  time.Duration `yaml:"retry_base" json:"retry_base"`
}

// RedisStore keeps report JSON under one key per report and flags in a
// list per report. Writes are retried with exponential backoff.
type RedisStore struct {
	client redis.UniversalClient
	cfg    RedisConfig
	logger *slog.Logger
}

var _ ports.ReportStore = (*RedisStore)(nil)

// NewRedisStore connects to Redis. The connection is verified lazily; use
// Ping to check reachability.
func NewRedisStore(cfg RedisConfig, logger *slog.Logger) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisStoreWithClient(client, cfg, logger)
}

// NewRedisStoreWithClient wraps an existing client, such as a cluster or
// sentinel client.
func NewRedisStoreWithClient(client redis.UniversalClient, cfg RedisConfig, logger *slog.Logger) *RedisStore {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultRedisRetries
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = defaultRedisRetryBase
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisStore{client: client, cfg: cfg, logger: logger.With("component", "redis_store")}
}

func (s *RedisStore) reportKey(id string) string { return s.cfg.KeyPrefix + ":report:" + id }

func (s *RedisStore) flagsKey(id string) string { return s.cfg.KeyPrefix + ":flags:" + id }

// Save writes the report JSON with the configured TTL.
func (s *RedisStore) Save(ctx context.Context, r *domain.Report) error {
	b, err := encodeReport(r)
	if err != nil {
		return ports.NewStoreError(redisBackend, "save", reportID(r), err)
	}
	err = s.withRetry(ctx, "save", func(ctx context.Context) error {
		return s.client.Set(ctx, s.reportKey(r.ID), b, s.cfg.TTL).Err()
	})
	if err != nil {
		return ports.NewStoreError(redisBackend, "save", r.ID, err)
	}
	return nil
}

// Get reads a report by id.
func (s *RedisStore) Get(ctx context.Context, id string) (*domain.Report, error) {
	b, err := s.client.Get(ctx, s.reportKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, ports.NewStoreError(redisBackend, "get", id, err)
	}
	r, err := decodeReport(b)
	if err != nil {
		return nil, ports.NewStoreError(redisBackend, "get", id, err)
	}
	return r, nil
}

// Delete removes the report and its flag list.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	var removed int64
	err := s.withRetry(ctx, "delete", func(ctx context.Context) error {
		n, err := s.client.Del(ctx, s.reportKey(id), s.flagsKey(id)).Result()
		removed = n
		return err
	})
	if err != nil {
		return ports.NewStoreError(redisBackend, "delete", id, err)
	}
	if removed == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// AddFlag appends a flag to the report's list. The list expires together
// with the report.
func (s *RedisStore) AddFlag(ctx context.Context, f domain.Flag) error {
	if err := validateFlag(f); err != nil {
		return err
	}
	if err := s.exists(ctx, f.ReportID); err != nil {
		return err
	}
	b, err := json.Marshal(f)
	if err != nil {
		return ports.NewStoreError(redisBackend, "add_flag", f.ReportID, err)
	}

	key := s.flagsKey(f.ReportID)
	err = s.withRetry(ctx, "add_flag", func(ctx context.Context) error {
		ttl, err := s.client.PTTL(ctx, s.reportKey(f.ReportID)).Result()
		if err != nil {
			return err
		}
		_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.RPush(ctx, key, b)
			if ttl > 0 {
				pipe.PExpire(ctx, key, ttl)
			}
			return nil
		})
		return err
	})
	if err != nil {
		return ports.NewStoreError(redisBackend, "add_flag", f.ReportID, err)
	}
	return nil
}

// ListFlags returns the report's flags, oldest first.
func (s *RedisStore) ListFlags(ctx context.Context, reportID string) ([]domain.Flag, error) {
	if err := s.exists(ctx, reportID); err != nil {
		return nil, err
	}
	raw, err := s.client.LRange(ctx, s.flagsKey(reportID), 0, -1).Result()
	if err != nil {
		return nil, ports.NewStoreError(redisBackend, "list_flags", reportID, err)
	}
	flags := make([]domain.Flag, 0, len(raw))
	for _, item := range raw {
		var f domain.Flag
		if err := json.Unmarshal([]byte(item), &f); err != nil {
			s.logger.Warn("skipping corrupted flag", "report_id", reportID, "error", err)
			continue
		}
		flags = append(flags, f)
	}
	return flags, nil
}

// Ping checks that Redis answers.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return ports.NewStoreError(redisBackend, "ping", "", err)
	}
	return nil
}

// Close closes the client.
func (s *RedisStore) Close() error { return s.client.Close() }

func (s *RedisStore) exists(ctx context.Context, id string) error {
	n, err := s.client.Exists(ctx, s.reportKey(id)).Result()
	if err != nil {
		return ports.NewStoreError(redisBackend, "exists", id, err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// withRetry runs fn with capped exponential backoff. Context errors are
// never retried.
func (s *RedisStore) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	backoff := retry.WithMaxRetries(s.cfg.MaxRetries, retry.WithJitterPercent(20, retry.NewExponential(s.cfg.RetryBase)))
	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err == nil || !retryableRedisError(ctx, err) {
			return err
		}
		s.logger.Warn("redis write failed, retrying", "operation", op, "attempt", attempt, "error", err)
		return retry.RetryableError(err)
	})
}

func retryableRedisError(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// String describes the store for logs.
func (s *RedisStore) String() string {
	return fmt.Sprintf("redis(%s/%d)", s.cfg.Address, s.cfg.DB)
}
