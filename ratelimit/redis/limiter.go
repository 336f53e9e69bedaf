// Package redis provides a Redis-backed fixed-window rate limiter.
package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "shopauth:ratelimit:"

// Limiter implements shopauth.RateLimiter on a shared Redis instance, so
// limits hold across multiple application instances.
type Limiter struct {
	client *redis.Client
}

// New creates a Redis-backed limiter.
func New(client *redis.Client) *Limiter {
	return &Limiter{client: client}
}

// Allow counts a hit against the key's current window and reports whether it
// stays within limit. The expiry is set only when the key is created, so the
// window is fixed rather than sliding.
func (l *Limiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, int, error) {
	k := keyPrefix + key

	pipe := l.client.TxPipeline()
	countCmd := pipe.Incr(ctx, k)
	pipe.ExpireNX(ctx, k, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, err
	}

	count := int(countCmd.Val())
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= limit, remaining, nil
}
