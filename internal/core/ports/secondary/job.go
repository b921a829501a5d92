package secondary

import (
	"context"
	"time"

	"github.com/google/uuid"

	"gitlab.com/judgeflow.net/internal/domain"
)

// JobStore holds pending and in-flight execution jobs.
// Implementations degrade to a no-op when their backing store is unavailable:
// Enqueue returns false and ClaimNext returns nil.
type JobStore interface {
	// Enqueue appends a job to the pending queue
	Enqueue(ctx context.Context, job *domain.ExecutionJob) bool

	// ClaimNext atomically moves the oldest pending job to in-flight and returns it
	ClaimNext(ctx context.Context) *domain.ExecutionJob

	// Complete removes a job from in-flight
	Complete(ctx context.Context, jobID uuid.UUID)

	// Touch renews the claim of an in-flight job so Recover leaves it alone.
	// It reports false when the job is no longer held.
	Touch(ctx context.Context, jobID uuid.UUID) bool

	// Recover requeues in-flight jobs whose claim was last renewed before now-olderThan
	Recover(ctx context.Context, olderThan time.Duration) int

	// Ping reports whether the backing store is reachable
	Ping(ctx context.Context) error
}

// RateLimiter is a per-user sliding window limiter
type RateLimiter interface {
	CheckLimit(ctx context.Context, userID string, limit int, window time.Duration) domain.RateLimitResult
}
