package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"gitlab.com/judgeflow.net/internal/adapter/logging"
)

func newLimiter(t *testing.T) (*RateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRateLimiter(client, logging.NewNopLogger()), mr
}

func TestCheckLimitRejectsEleventhRequest(t *testing.T) {
	ctx := context.Background()
	limiter, _ := newLimiter(t)
	now := time.Now()
	limiter.now = func() time.Time { return now }

	for i := 0; i < 10; i++ {
		res := limiter.CheckLimit(ctx, "u1", 10, time.Minute)
		if !res.Allowed || res.Remaining != 9-i {
			t.Fatalf("request %d: unexpected result %+v", i+1, res)
		}
		now = now.Add(time.Second)
	}

	res := limiter.CheckLimit(ctx, "u1", 10, time.Minute)
	if res.Allowed {
		t.Fatalf("11th request must be rejected")
	}
	if !res.ResetAt.After(now) {
		t.Fatalf("resetAt must be in the future, got %s", res.ResetAt)
	}
}

func TestCheckLimitWindowSlides(t *testing.T) {
	ctx := context.Background()
	limiter, _ := newLimiter(t)
	now := time.Now()
	limiter.now = func() time.Time { return now }

	limiter.CheckLimit(ctx, "u1", 1, time.Minute)
	if limiter.CheckLimit(ctx, "u1", 1, time.Minute).Allowed {
		t.Fatalf("second request must be rejected")
	}
	now = now.Add(61 * time.Second)
	if !limiter.CheckLimit(ctx, "u1", 1, time.Minute).Allowed {
		t.Fatalf("request after the window must be allowed")
	}
}

func TestCheckLimitNeverOverAdmits(t *testing.T) {
	ctx := context.Background()
	limiter, _ := newLimiter(t)

	var (
		mu      sync.Mutex
		allowed int
		wg      sync.WaitGroup
	)
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.CheckLimit(ctx, "u1", 5, time.Minute).Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed > 5 {
		t.Fatalf("admitted %d requests, limit is 5", allowed)
	}
}

func TestCheckLimitFailsOpen(t *testing.T) {
	limiter, mr := newLimiter(t)
	mr.Close()

	res := limiter.CheckLimit(context.Background(), "u1", 1, time.Minute)
	if !res.Allowed {
		t.Fatalf("limiter must fail open when the store is down")
	}
}
