package secondary

import (
	"context"
	"time"

	"gitlab.com/judgeflow.net/internal/domain"
)

type WorkerRepository interface {
	// SaveWorker saves worker information
	SaveWorker(ctx context.Context, worker *domain.WorkerInfo) error

	// GetWorker retrieves worker information by ID, nil when not found
	GetWorker(ctx context.Context, workerID string) (*domain.WorkerInfo, error)

	// UpdateWorkerHeartbeat updates a worker's heartbeat and load
	UpdateWorkerHeartbeat(ctx context.Context, workerID string, load int, time time.Time) error

	// RemoveWorker deletes a worker entry
	RemoveWorker(ctx context.Context, workerID string) error

	// RemoveInactiveWorkers removes workers that haven't sent a heartbeat since cutoffTime
	RemoveInactiveWorkers(ctx context.Context, cutoffTime time.Time) error

	GetAllWorkers(ctx context.Context) ([]*domain.WorkerInfo, error)
}
