package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestLimiterSlidingWindow(t *testing.T) {
	client, _ := newClient(t)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	limiter := Limiter{Client: client, Prefix: "rl:", Now: func() time.Time { return now }}
	ctx := context.Background()
	window := time.Minute

	for i := 0; i < 2; i++ {
		allowed, remaining, _, err := limiter.Allow(ctx, "user:1", window, 2)
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !allowed || remaining != 1-i {
			t.Fatalf("attempt %d: allowed=%v remaining=%d", i, allowed, remaining)
		}
		now = now.Add(10 * time.Second)
	}

	allowed, _, reset, err := limiter.Allow(ctx, "user:1", window, 2)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if allowed {
		t.Fatal("expected third attempt to be rejected")
	}
	if want := time.Date(2024, 5, 1, 10, 1, 0, 0, time.UTC); !reset.Equal(want) {
		t.Fatalf("reset = %v, want %v", reset, want)
	}

	// the first attempt leaves the window; the rejected one was not counted
	now = time.Date(2024, 5, 1, 10, 1, 5, 0, time.UTC)
	allowed, remaining, _, err := limiter.Allow(ctx, "user:1", window, 2)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if !allowed || remaining != 0 {
		t.Fatalf("expected allowed with 0 remaining, got %v %d", allowed, remaining)
	}
}

func TestLimiterWithoutClientAllows(t *testing.T) {
	allowed, remaining, _, err := Limiter{}.Allow(context.Background(), "k", time.Second, 3)
	if err != nil || !allowed || remaining != 3 {
		t.Fatalf("unexpected %v %d %v", allowed, remaining, err)
	}
}
