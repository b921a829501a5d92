package resultcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"gitlab.com/judgeflow.net/internal/core/ports/primary"
	"gitlab.com/judgeflow.net/internal/core/ports/secondary"
	"gitlab.com/judgeflow.net/internal/domain"
)

const keyPrefix = "judge:result:"

var _ secondary.ResultCache = (*ResultCache)(nil)

type ResultCache struct {
	redisClient *redis.Client
	ttl         time.Duration
	logger      primary.Logger
}

func NewResultCache(redisClient *redis.Client, ttl time.Duration, logger primary.Logger) *ResultCache {
	return &ResultCache{
		redisClient: redisClient,
		ttl:         ttl,
		logger:      logger,
	}
}

func resultKey(id uuid.UUID) string {
	return fmt.Sprintf("%s%s", keyPrefix, id)
}

func (c *ResultCache) SaveResult(ctx context.Context, result *domain.SubmissionResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if err := c.redisClient.Set(ctx, resultKey(result.SubmissionID), payload, c.ttl).Err(); err != nil {
		c.logger.Error("Failed to cache result", "submissionId", result.SubmissionID, "error", err)
		return fmt.Errorf("failed to cache result: %w", err)
	}
	return nil
}

func (c *ResultCache) GetResult(ctx context.Context, submissionID uuid.UUID) (*domain.SubmissionResult, error) {
	payload, err := c.redisClient.Get(ctx, resultKey(submissionID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cached result: %w", err)
	}
	var result domain.SubmissionResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached result: %w", err)
	}
	return &result, nil
}
