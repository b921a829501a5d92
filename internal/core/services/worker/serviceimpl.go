package worker

import (
	"context"
	"fmt"
	"time"

	"gitlab.com/judgeflow.net/internal/core/ports/primary"
	"gitlab.com/judgeflow.net/internal/core/ports/secondary"
	"gitlab.com/judgeflow.net/internal/domain"
)

const (
	activeThreshold = 2 * time.Minute
	inactiveCutoff  = 5 * time.Minute
)

var _ IWorkerRegistrationService = &WorkerRegistrationService{}

// WorkerRegistrationService keeps the registry of running worker pools
type WorkerRegistrationService struct {
	workerRepo secondary.WorkerRepository
	logger     primary.Logger
	now        func() time.Time
}

// NewWorkerRegistrationService creates a new worker registration service
func NewWorkerRegistrationService(workerRepo secondary.WorkerRepository, logger primary.Logger) *WorkerRegistrationService {
	return &WorkerRegistrationService{
		workerRepo: workerRepo,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *WorkerRegistrationService) RegisterWorker(ctx context.Context, workerInfo *domain.WorkerInfo) error {
	s.logger.Info("Registering worker", "workerId", workerInfo.ID, "capacity", workerInfo.Capacity)

	workerInfo.LastHeartbeat = s.now()
	if err := s.workerRepo.SaveWorker(ctx, workerInfo); err != nil {
		s.logger.Error("Failed to save worker", "error", err)
		return fmt.Errorf("failed to register worker: %w", err)
	}
	return nil
}

func (s *WorkerRegistrationService) Heartbeat(ctx context.Context, workerID string, load int) error {
	s.logger.Debug("Worker heartbeat", "workerId", workerID, "load", load)

	worker, err := s.workerRepo.GetWorker(ctx, workerID)
	if err != nil {
		s.logger.Error("Failed to get worker for heartbeat", "workerId", workerID, "error", err)
		return fmt.Errorf("failed to get worker: %w", err)
	}
	if worker == nil {
		return fmt.Errorf("worker not found: %s", workerID)
	}

	if err := s.workerRepo.UpdateWorkerHeartbeat(ctx, workerID, load, s.now()); err != nil {
		s.logger.Error("Failed to update worker heartbeat", "workerId", workerID, "error", err)
		return fmt.Errorf("failed to update worker heartbeat: %w", err)
	}
	return nil
}

func (s *WorkerRegistrationService) DeregisterWorker(ctx context.Context, workerID string) error {
	s.logger.Info("Deregistering worker", "workerId", workerID)
	if err := s.workerRepo.RemoveWorker(ctx, workerID); err != nil {
		return fmt.Errorf("failed to deregister worker: %w", err)
	}
	return nil
}

func (s *WorkerRegistrationService) GetAllWorkers(ctx context.Context) ([]*domain.WorkerInfo, error) {
	workers, err := s.workerRepo.GetAllWorkers(ctx)
	if err != nil {
		s.logger.Error("Failed to get all workers", "error", err)
		return nil, fmt.Errorf("failed to get all workers: %w", err)
	}

	threshold := s.now().Add(-activeThreshold)
	for _, worker := range workers {
		worker.IsActive = worker.LastHeartbeat.After(threshold)
	}
	return workers, nil
}

func (s *WorkerRegistrationService) CleanupInactiveWorkers(ctx context.Context) error {
	cutoffTime := s.now().Add(-inactiveCutoff)
	if err := s.workerRepo.RemoveInactiveWorkers(ctx, cutoffTime); err != nil {
		s.logger.Error("Failed to remove inactive workers", "error", err)
		return fmt.Errorf("failed to clean up inactive workers: %w", err)
	}
	return nil
}
