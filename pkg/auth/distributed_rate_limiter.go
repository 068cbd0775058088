package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DistributedRateLimiter implements fixed window rate limiting in Redis so
// every API replica and Lambda instance shares one count per key
type DistributedRateLimiter struct {
	client    redis.UniversalClient
	limit     int
	window    time.Duration
	keyPrefix string
	now       func() time.Time
}

// NewDistributedRateLimiter creates a Redis backed limiter
func NewDistributedRateLimiter(client redis.UniversalClient, limit int, window time.Duration, keyPrefix string) *DistributedRateLimiter {
	return &DistributedRateLimiter{
		client:    client,
		limit:     limit,
		window:    window,
		keyPrefix: keyPrefix,
		now:       time.Now,
	}
}

func (r *DistributedRateLimiter) windowKey(key string) (string, time.Time) {
	windowStart := r.now().Truncate(r.window)
	return fmt.Sprintf("%sratelimit:%s:%d", r.keyPrefix, key, windowStart.Unix()), windowStart.Add(r.window)
}

// Allow checks if a request is allowed under the rate limit. Redis errors
// fail open and are returned for logging.
func (r *DistributedRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if r.client == nil {
		return true, nil
	}

	redisKey, windowEnd := r.windowKey(key)
	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.ExpireAt(ctx, redisKey, windowEnd.Add(time.Second))
		return nil
	})
	if err != nil {
		return true, fmt.Errorf("rate limiter error (failing open): %w", err)
	}
	return incr.Val() <= int64(r.limit), nil
}

// Remaining returns the requests left in the current window and when it ends
func (r *DistributedRateLimiter) Remaining(ctx context.Context, key string) (int, time.Time, error) {
	redisKey, windowEnd := r.windowKey(key)
	if r.client == nil {
		return r.limit, windowEnd, nil
	}

	count, err := r.client.Get(ctx, redisKey).Int()
	if err == redis.Nil {
		return r.limit, windowEnd, nil
	}
	if err != nil {
		return r.limit, windowEnd, err
	}
	if remaining := r.limit - count; remaining > 0 {
		return remaining, windowEnd, nil
	}
	return 0, windowEnd, nil
}
