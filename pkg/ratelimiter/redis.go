package ratelimiter

import (
	"context"
	"fmt"
	"time"

	"anoa.com/alumnidirectory/pkg/apperror"
	"github.com/redis/go-redis/v9"
)

// Fixed window: INCR, set expiry on first hit, report remaining TTL when over the limit.
const rateLimitScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
if current > tonumber(ARGV[2]) then
  return redis.call("PTTL", KEYS[1])
end
return -1
`

// RateLimitError is returned when a key is over its limit.
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return e.Message
}

func (e *RateLimitError) Unwrap() error {
	return apperror.ErrRateLimitExceeded
}

// Limiter allows at most limit hits per window for each key.
type Limiter interface {
	Allow(ctx context.Context, key string) error
}

type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
	script *redis.Script
}

// NewRedisLimiter returns nil when client is nil; a nil limiter allows everything.
func NewRedisLimiter(client *redis.Client, limit int, window time.Duration, prefix string) *RedisLimiter {
	if client == nil {
		return nil
	}
	return &RedisLimiter{
		client: client,
		limit:  limit,
		window: window,
		prefix: prefix,
		script: redis.NewScript(rateLimitScript),
	}
}

// Allow fails open on Redis errors so an unavailable cache never blocks sign-in.
func (l *RedisLimiter) Allow(ctx context.Context, key string) error {
	if l == nil || l.client == nil {
		return nil
	}
	if key == "" || l.limit <= 0 || l.window <= 0 {
		return nil
	}

	redisKey := fmt.Sprintf("rate_limit:%s:%s", l.prefix, key)
	ttl := l.window.Milliseconds()
	if ttl <= 0 {
		ttl = 1
	}

	ctx, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
	defer cancel()

	remaining, err := l.script.Run(ctx, l.client, []string{redisKey}, ttl, l.limit).Int64()
	if err != nil {
		return nil
	}
	if remaining < 0 {
		return nil
	}

	retryAfter := time.Duration(remaining) * time.Millisecond
	return &RateLimitError{
		Message:    fmt.Sprintf("too many requests, try again in %s", retryAfter.Round(time.Second)),
		RetryAfter: retryAfter,
	}
}
