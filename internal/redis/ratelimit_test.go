package redis

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

func setupTestRateLimiter(t *testing.T, limit int, window time.Duration) *RateLimiter {
	t.Helper()
	client, _ := setupTestRedis(t)
	return NewRateLimiter(client, zap.NewNop(), RateLimitConfig{
		Limit:  limit,
		Window: window,
	})
}

func TestRateLimiter_AllowsWithinLimit(t *testing.T) {
	limiter := setupTestRateLimiter(t, 5, time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		result, err := limiter.Allow(ctx, "203.0.113.7")
		if err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
		if !result.Allowed {
			t.Fatalf("request %d should be allowed", i)
		}
		if result.Remaining != 4-i {
			t.Errorf("request %d: expected remaining %d, got %d", i, 4-i, result.Remaining)
		}
	}
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	limiter := setupTestRateLimiter(t, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		limiter.Allow(ctx, "203.0.113.7")
	}

	result, err := limiter.Allow(ctx, "203.0.113.7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Allowed {
		t.Fatal("request should be blocked")
	}
	if result.Remaining != 0 {
		t.Errorf("expected remaining 0, got %d", result.Remaining)
	}
}

func TestRateLimiter_SeparateKeys(t *testing.T) {
	limiter := setupTestRateLimiter(t, 2, time.Minute)
	ctx := context.Background()

	limiter.Allow(ctx, "key-a")
	limiter.Allow(ctx, "key-a")

	result, _ := limiter.Allow(ctx, "key-b")
	if !result.Allowed {
		t.Fatal("key-b should be allowed")
	}
	if result.Remaining != 1 {
		t.Errorf("expected remaining 1, got %d", result.Remaining)
	}
	if limiter.Limit() != 2 {
		t.Errorf("Limit() = %d, want 2", limiter.Limit())
	}
}
