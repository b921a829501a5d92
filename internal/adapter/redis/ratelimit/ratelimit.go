package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"gitlab.com/judgeflow.net/internal/core/ports/primary"
	"gitlab.com/judgeflow.net/internal/core/ports/secondary"
	"gitlab.com/judgeflow.net/internal/domain"
)

const keyPrefix = "judge:ratelimit:"

var _ secondary.RateLimiter = (*RateLimiter)(nil)

// RateLimiter is a sliding window over a per-user sorted set of request
// timestamps. Store failures fail open.
type RateLimiter struct {
	redisClient *redis.Client
	logger      primary.Logger
	now         func() time.Time
}

func NewRateLimiter(redisClient *redis.Client, logger primary.Logger) *RateLimiter {
	return &RateLimiter{
		redisClient: redisClient,
		logger:      logger,
		now:         time.Now,
	}
}

func (r *RateLimiter) CheckLimit(ctx context.Context, userID string, limit int, window time.Duration) domain.RateLimitResult {
	now := r.now()
	if limit <= 0 {
		return domain.RateLimitResult{Allowed: true, Remaining: -1, ResetAt: now}
	}

	key := fmt.Sprintf("%s%s", keyPrefix, userID)
	nowMs := now.UnixMilli()
	cutoff := now.Add(-window).UnixMilli()
	member := fmt.Sprintf("%d-%s", nowMs, uuid.NewString())

	var card *redis.IntCmd
	var oldest *redis.ZSliceCmd
	_, err := r.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10))
		pipe.ZAdd(ctx, key, &redis.Z{Score: float64(nowMs), Member: member})
		card = pipe.ZCard(ctx, key)
		oldest = pipe.ZRangeWithScores(ctx, key, 0, 0)
		pipe.PExpire(ctx, key, window)
		return nil
	})
	if err != nil {
		r.logger.Warn("Rate limiter unavailable, allowing request", "userId", userID, "error", err)
		return domain.RateLimitResult{Allowed: true, Remaining: limit, ResetAt: now.Add(window)}
	}

	resetAt := now.Add(window)
	if zs := oldest.Val(); len(zs) > 0 {
		resetAt = time.UnixMilli(int64(zs[0].Score)).Add(window)
	}

	count := int(card.Val())
	if count > limit {
		// the rejected attempt must not occupy a slot
		if err := r.redisClient.ZRem(ctx, key, member).Err(); err != nil {
			r.logger.Warn("Failed to release rejected rate limit entry", "userId", userID, "error", err)
		}
		return domain.RateLimitResult{Allowed: false, Remaining: 0, ResetAt: resetAt}
	}
	return domain.RateLimitResult{Allowed: true, Remaining: limit - count, ResetAt: resetAt}
}
