package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"gitlab.com/judgeflow.net/internal/core/ports/secondary"
	"gitlab.com/judgeflow.net/internal/domain"
)

var _ secondary.ResultCache = (*ResultCache)(nil)

type cachedResult struct {
	result    domain.SubmissionResult
	expiresAt time.Time
}

// ResultCache keeps result blobs for a fixed TTL
type ResultCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	results map[uuid.UUID]cachedResult
	now     func() time.Time
}

func NewResultCache(ttl time.Duration) *ResultCache {
	return &ResultCache{
		ttl:     ttl,
		results: make(map[uuid.UUID]cachedResult),
		now:     time.Now,
	}
}

func (c *ResultCache) SaveResult(_ context.Context, result *domain.SubmissionResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for id, r := range c.results {
		if now.After(r.expiresAt) {
			delete(c.results, id)
		}
	}
	c.results[result.SubmissionID] = cachedResult{result: *result, expiresAt: now.Add(c.ttl)}
	return nil
}

func (c *ResultCache) GetResult(_ context.Context, submissionID uuid.UUID) (*domain.SubmissionResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.results[submissionID]
	if !ok {
		return nil, nil
	}
	if c.now().After(r.expiresAt) {
		delete(c.results, submissionID)
		return nil, nil
	}
	result := r.result
	return &result, nil
}
