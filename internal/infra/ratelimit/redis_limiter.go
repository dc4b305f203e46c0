// Package ratelimit provides RateLimiter implementations: a Redis-backed
// fixed-window limiter for multi-instance deployments and an in-memory one
// for single-node and test use.
package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"studytrack/config"
	"studytrack/internal/domain/service"
)

// redisLimiter counts occurrences per key in a fixed window using INCR with
// an expiry on the window key.
type redisLimiter struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisLimiter builds a Redis-backed limiter from configuration.
func NewRedisLimiter(cfg *config.Config, logger *slog.Logger) (service.RateLimiter, error) {
	if cfg.Redis == nil || cfg.Redis.Addr == "" {
		return nil, errors.New("redis address must be provided")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	return &redisLimiter{client: client, logger: logger}, nil
}

// Allow increments the counter for key and compares it against limit. The
// window expiry is refreshed on every hit, which slightly over-throttles
// sustained abuse and is acceptable for auth endpoints. On a Redis failure
// the limiter fails open and returns the error for logging.
func (l *redisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	pipe := l.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)

	if _, err := pipe.Exec(ctx); err != nil {
		l.logger.Error("rate limit check failed, failing open",
			slog.String("key", key), slog.Any("error", err))

		return true, errors.Wrap(err, "redis rate limit pipeline failed")
	}

	if incr.Val() > int64(limit) {
		return false, nil
	}

	return true, nil
}

// Reset clears the counter for a key.
func (l *redisLimiter) Reset(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, key).Err(); err != nil {
		return errors.Wrap(err, "failed to reset rate limit key")
	}

	return nil
}
