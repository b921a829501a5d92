package memory

import (
	"context"
	"sync"
	"time"

	"gitlab.com/judgeflow.net/internal/core/ports/secondary"
	"gitlab.com/judgeflow.net/internal/domain"
)

var _ secondary.RateLimiter = (*RateLimiter)(nil)

// RateLimiter keeps a sliding window of request timestamps per user. Users
// whose window has emptied are swept at most once per window length.
type RateLimiter struct {
	mu        sync.Mutex
	windows   map[string][]time.Time
	lastSweep time.Time
	now       func() time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		windows: make(map[string][]time.Time),
		now:     time.Now,
	}
}

func (r *RateLimiter) CheckLimit(_ context.Context, userID string, limit int, window time.Duration) domain.RateLimitResult {
	now := r.now()
	if limit <= 0 {
		return domain.RateLimitResult{Allowed: true, Remaining: -1, ResetAt: now}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := now.Add(-window)
	if now.Sub(r.lastSweep) >= window {
		r.sweepLocked(cutoff)
		r.lastSweep = now
	}

	entries := r.windows[userID]
	kept := entries[:0]
	for _, ts := range entries {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= limit {
		r.windows[userID] = kept
		return domain.RateLimitResult{
			Allowed:   false,
			Remaining: 0,
			ResetAt:   kept[0].Add(window),
		}
	}

	kept = append(kept, now)
	r.windows[userID] = kept
	return domain.RateLimitResult{
		Allowed:   true,
		Remaining: limit - len(kept),
		ResetAt:   kept[0].Add(window),
	}
}

// sweepLocked forgets users without a request after cutoff
func (r *RateLimiter) sweepLocked(cutoff time.Time) {
	for user, entries := range r.windows {
		if len(entries) == 0 || !entries[len(entries)-1].After(cutoff) {
			delete(r.windows, user)
		}
	}
}

// Users returns the number of users currently tracked
func (r *RateLimiter) Users() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.windows)
}
