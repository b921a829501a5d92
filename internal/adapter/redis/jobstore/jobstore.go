// Package jobstore keeps execution jobs in Redis so that several worker
// processes can share one queue.
package jobstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"gitlab.com/judgeflow.net/internal/core/ports/primary"
	"gitlab.com/judgeflow.net/internal/core/ports/secondary"
	"gitlab.com/judgeflow.net/internal/domain"
)

const (
	pendingKey    = "judge:jobs:pending"
	processingKey = "judge:jobs:processing"
	claimedKey    = "judge:jobs:claimed"
	jobKeyPrefix  = "judge:job:"
)

var _ secondary.JobStore = (*JobStore)(nil)

// JobStore is a Redis list queue. Producers LPUSH job ids, consumers claim
// with RPOPLPUSH into the processing list so a job is handed to one worker only.
type JobStore struct {
	redisClient *redis.Client
	jobTTL      time.Duration
	logger      primary.Logger
	now         func() time.Time
}

func NewJobStore(redisClient *redis.Client, jobTTL time.Duration, logger primary.Logger) *JobStore {
	return &JobStore{
		redisClient: redisClient,
		jobTTL:      jobTTL,
		logger:      logger,
		now:         time.Now,
	}
}

func jobKey(id string) string {
	return fmt.Sprintf("%s%s", jobKeyPrefix, id)
}

// Enqueue stores the payload and pushes the job id in one transaction
func (s *JobStore) Enqueue(ctx context.Context, job *domain.ExecutionJob) bool {
	payload, err := json.Marshal(job)
	if err != nil {
		s.logger.Error("Failed to marshal job", "jobId", job.ID, "error", err)
		return false
	}

	id := job.ID.String()
	_, err = s.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, jobKey(id), payload, s.jobTTL)
		pipe.LPush(ctx, pendingKey, id)
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to enqueue job", "jobId", id, "error", err)
		return false
	}
	return true
}

func (s *JobStore) ClaimNext(ctx context.Context) *domain.ExecutionJob {
	for {
		id, err := s.redisClient.RPopLPush(ctx, pendingKey, processingKey).Result()
		if err == redis.Nil {
			return nil
		}
		if err != nil {
			s.logger.Error("Failed to claim job", "error", err)
			return nil
		}

		if err := s.redisClient.ZAdd(ctx, claimedKey, &redis.Z{
			Score:  float64(s.now().UnixMilli()),
			Member: id,
		}).Err(); err != nil {
			s.logger.Warn("Failed to record claim time", "jobId", id, "error", err)
		}

		payload, err := s.redisClient.Get(ctx, jobKey(id)).Bytes()
		if err == redis.Nil {
			// payload expired before anyone claimed it
			s.logger.Warn("Dropping job without payload", "jobId", id)
			s.forget(ctx, id)
			continue
		}
		if err != nil {
			s.logger.Error("Failed to load job payload", "jobId", id, "error", err)
			return nil
		}

		var job domain.ExecutionJob
		if err := json.Unmarshal(payload, &job); err != nil {
			s.logger.Error("Dropping undecodable job", "jobId", id, "error", err)
			s.forget(ctx, id)
			continue
		}
		return &job
	}
}

func (s *JobStore) Complete(ctx context.Context, jobID uuid.UUID) {
	s.forget(ctx, jobID.String())
}

func (s *JobStore) forget(ctx context.Context, id string) {
	_, err := s.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, processingKey, 0, id)
		pipe.ZRem(ctx, claimedKey, id)
		pipe.Del(ctx, jobKey(id))
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to complete job", "jobId", id, "error", err)
	}
}

// Touch moves the claim time of a job still in the claimed set to now.
// ZADD XX never re-adds a claim that Recover already released.
func (s *JobStore) Touch(ctx context.Context, jobID uuid.UUID) bool {
	id := jobID.String()
	var score *redis.FloatCmd
	_, err := s.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAddXX(ctx, claimedKey, &redis.Z{
			Score:  float64(s.now().UnixMilli()),
			Member: id,
		})
		score = pipe.ZScore(ctx, claimedKey, id)
		return nil
	})
	if err == redis.Nil {
		return false
	}
	if err != nil {
		s.logger.Warn("Failed to renew job claim", "jobId", id, "error", err)
		// an unreachable store cannot recover the job either
		return true
	}
	return score.Err() == nil
}

// Recover pushes jobs whose claim was last renewed before now-olderThan back
// to the consumer end of the pending list, oldest claim nearest the end, so
// they are picked up next in their original order
func (s *JobStore) Recover(ctx context.Context, olderThan time.Duration) int {
	cutoff := s.now().Add(-olderThan).UnixMilli()
	ids, err := s.redisClient.ZRangeByScore(ctx, claimedKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(cutoff, 10),
	}).Result()
	if err != nil {
		s.logger.Error("Failed to list stale jobs", "error", err)
		return 0
	}

	recovered := 0
	// RPOP takes from the right, so the oldest claim is pushed last
	for i := len(ids) - 1; i >= 0; i-- {
		id := ids[i]
		// ZREM decides which process requeues a job when several recover at once
		removed, err := s.redisClient.ZRem(ctx, claimedKey, id).Result()
		if err != nil {
			s.logger.Error("Failed to release stale job", "jobId", id, "error", err)
			continue
		}
		if removed == 0 {
			continue
		}
		_, err = s.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.LRem(ctx, processingKey, 0, id)
			pipe.RPush(ctx, pendingKey, id)
			return nil
		})
		if err != nil {
			s.logger.Error("Failed to requeue stale job", "jobId", id, "error", err)
			continue
		}
		recovered++
	}

	// claimed entries lost between RPOPLPUSH and ZADD have no score
	orphans, err := s.redisClient.LRange(ctx, processingKey, 0, -1).Result()
	if err == nil && olderThan > 0 {
		for _, id := range orphans {
			if _, err := s.redisClient.ZScore(ctx, claimedKey, id).Result(); err == redis.Nil {
				s.redisClient.ZAddNX(ctx, claimedKey, &redis.Z{Score: float64(s.now().UnixMilli()), Member: id})
			}
		}
	}

	if recovered > 0 {
		s.logger.Info("Recovered stale jobs", "count", recovered)
	}
	return recovered
}

func (s *JobStore) Ping(ctx context.Context) error {
	return s.redisClient.Ping(ctx).Err()
}
