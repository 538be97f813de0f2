package ratelimiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"anoa.com/alumnidirectory/pkg/apperror"
)

func TestNilLimiterAllows(t *testing.T) {
	limiter := NewRedisLimiter(nil, 1, time.Minute, "auth")
	if limiter != nil {
		t.Fatalf("expected nil limiter without redis")
	}
	if err := limiter.Allow(context.Background(), "asha@example.com"); err != nil {
		t.Fatalf("nil limiter should allow: %v", err)
	}
}

func TestRateLimitErrorMatchesSentinel(t *testing.T) {
	var err error = &RateLimitError{Message: "slow down", RetryAfter: 3 * time.Second}
	if !errors.Is(err, apperror.ErrRateLimitExceeded) {
		t.Fatalf("rate limit error should match ErrRateLimitExceeded")
	}
	if apperror.MapErrorToStatus(err) != 429 {
		t.Fatalf("expected 429")
	}
}
