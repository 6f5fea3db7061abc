package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter keeps the same fixed-window counters in Redis so that several
// landing instances share one budget per client.
type RedisLimiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
	prefix string
	now    func() time.Time
}

func NewRedisLimiter(rdb *redis.Client, limit int, windowSize time.Duration) *RedisLimiter {
	return &RedisLimiter{
		rdb:    rdb,
		limit:  limit,
		window: windowSize,
		prefix: "ratelimit:",
		now:    time.Now,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	k := l.prefix + key

	count, err := l.rdb.Incr(ctx, k).Result()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit incr: %w", err)
	}

	ttl, err := l.rdb.PTTL(ctx, k).Result()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit pttl: %w", err)
	}
	// First hit of a window, or a key left without expiry.
	if count == 1 || ttl < 0 {
		if err := l.rdb.PExpire(ctx, k, l.window).Err(); err != nil {
			return Result{}, fmt.Errorf("rate limit pexpire: %w", err)
		}
		ttl = l.window
	}

	remaining := l.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   int(count) <= l.limit,
		Limit:     l.limit,
		Remaining: remaining,
		ResetAt:   l.now().Add(ttl),
	}, nil
}
