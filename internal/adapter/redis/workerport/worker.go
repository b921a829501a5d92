package workerport

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"

	"gitlab.com/judgeflow.net/internal/core/ports/primary"
	"gitlab.com/judgeflow.net/internal/core/ports/secondary"
	"gitlab.com/judgeflow.net/internal/domain"
)

const (
	workerKeyPrefix  = "worker:"
	workerExpiration = 5 * time.Minute
)

var _ secondary.WorkerRepository = (*WorkerRepository)(nil)

// WorkerRepository implements the WorkerRepository interface with Redis
type WorkerRepository struct {
	redisClient *redis.Client
	logger      primary.Logger
}

// NewWorkerRepository creates a new Redis worker repository
func NewWorkerRepository(redisClient *redis.Client, logger primary.Logger) *WorkerRepository {
	return &WorkerRepository{
		redisClient: redisClient,
		logger:      logger,
	}
}

func workerKey(workerID string) string {
	return fmt.Sprintf("%s%s", workerKeyPrefix, workerID)
}

// GetAllWorkers retrieves all worker information from Redis.
func (r *WorkerRepository) GetAllWorkers(ctx context.Context) ([]*domain.WorkerInfo, error) {
	var cursor uint64
	var workerKeys []string
	var err error

	// Use SCAN to iterate over keys with the specified prefix
	for {
		var keys []string
		keys, cursor, err = r.redisClient.Scan(ctx, cursor, workerKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan worker keys: %w", err)
		}
		workerKeys = append(workerKeys, keys...)
		if cursor == 0 {
			break
		}
	}

	workers := make([]*domain.WorkerInfo, 0, len(workerKeys))
	if len(workerKeys) == 0 {
		return workers, nil
	}

	workerData, err := r.redisClient.MGet(ctx, workerKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve worker data: %w", err)
	}

	for _, data := range workerData {
		raw, ok := data.(string)
		if !ok {
			continue
		}
		var worker domain.WorkerInfo
		if err := json.Unmarshal([]byte(raw), &worker); err != nil {
			return nil, fmt.Errorf("failed to unmarshal worker data: %w", err)
		}
		workers = append(workers, &worker)
	}

	sort.Slice(workers, func(i, j int) bool { return workers[i].ID < workers[j].ID })
	return workers, nil
}

// SaveWorker saves worker information to Redis
func (r *WorkerRepository) SaveWorker(ctx context.Context, worker *domain.WorkerInfo) error {
	workerJSON, err := json.Marshal(worker)
	if err != nil {
		r.logger.Error("Failed to marshal worker info", "error", err)
		return fmt.Errorf("failed to marshal worker info: %w", err)
	}

	// Entries of dead workers expire on their own
	if err := r.redisClient.Set(ctx, workerKey(worker.ID), workerJSON, workerExpiration).Err(); err != nil {
		r.logger.Error("Failed to save worker info", "error", err)
		return fmt.Errorf("failed to save worker info: %w", err)
	}
	return nil
}

// GetWorker retrieves worker information from Redis by ID
func (r *WorkerRepository) GetWorker(ctx context.Context, workerID string) (*domain.WorkerInfo, error) {
	workerJSON, err := r.redisClient.Get(ctx, workerKey(workerID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		r.logger.Error("Failed to get worker info", "error", err)
		return nil, fmt.Errorf("failed to get worker info: %w", err)
	}

	var worker domain.WorkerInfo
	if err := json.Unmarshal(workerJSON, &worker); err != nil {
		r.logger.Error("Failed to unmarshal worker info", "error", err)
		return nil, fmt.Errorf("failed to unmarshal worker info: %w", err)
	}
	return &worker, nil
}

// UpdateWorkerHeartbeat updates a worker's heartbeat and load in Redis
func (r *WorkerRepository) UpdateWorkerHeartbeat(ctx context.Context, workerID string, load int, heartbeatTime time.Time) error {
	worker, err := r.GetWorker(ctx, workerID)
	if err != nil {
		return err
	}
	if worker == nil {
		return fmt.Errorf("worker not found: %s", workerID)
	}

	worker.CurrentLoad = load
	worker.LastHeartbeat = heartbeatTime
	return r.SaveWorker(ctx, worker)
}

func (r *WorkerRepository) RemoveWorker(ctx context.Context, workerID string) error {
	if err := r.redisClient.Del(ctx, workerKey(workerID)).Err(); err != nil {
		return fmt.Errorf("failed to remove worker: %w", err)
	}
	return nil
}

// RemoveInactiveWorkers deletes entries whose heartbeat is older than cutoffTime.
// Expiration already removes silent workers; this catches entries refreshed
// by something other than a heartbeat.
func (r *WorkerRepository) RemoveInactiveWorkers(ctx context.Context, cutoffTime time.Time) error {
	workers, err := r.GetAllWorkers(ctx)
	if err != nil {
		r.logger.Error("Failed to list workers", "error", err)
		return err
	}
	for _, w := range workers {
		if w.LastHeartbeat.Before(cutoffTime) {
			if err := r.RemoveWorker(ctx, w.ID); err != nil {
				r.logger.Error("Failed to remove inactive worker", "workerId", w.ID, "error", err)
			}
		}
	}
	return nil
}
