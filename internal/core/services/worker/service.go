package worker

import (
	"context"

	"gitlab.com/judgeflow.net/internal/domain"
)

// IWorkerRegistrationService defines the interface for worker registration
type IWorkerRegistrationService interface {
	// RegisterWorker records a worker pool instance with a fresh heartbeat
	RegisterWorker(ctx context.Context, workerInfo *domain.WorkerInfo) error

	// Heartbeat updates the worker's status and current load
	Heartbeat(ctx context.Context, workerID string, load int) error

	// DeregisterWorker removes a worker that is shutting down
	DeregisterWorker(ctx context.Context, workerID string) error

	// GetAllWorkers gets all registered workers annotated with their activity
	GetAllWorkers(ctx context.Context) ([]*domain.WorkerInfo, error)

	// CleanupInactiveWorkers removes workers that haven't sent a heartbeat recently
	CleanupInactiveWorkers(ctx context.Context) error
}

// IPool runs the execution loops of one worker pool instance
type IPool interface {
	// Run blocks until ctx is cancelled and every in-flight job has finished
	Run(ctx context.Context) error

	// Load is the number of jobs currently being processed
	Load() int
}
