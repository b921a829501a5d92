// Package schedulerengine runs the periodic housekeeping of a worker pool.
package schedulerengine

import (
	"context"
	"sync"
	"time"

	"gitlab.com/judgeflow.net/internal/config"
	"gitlab.com/judgeflow.net/internal/core/ports/primary"
	"gitlab.com/judgeflow.net/internal/core/ports/secondary"
)

// WorkerCleaner removes registry entries of workers that stopped heartbeating
type WorkerCleaner interface {
	CleanupInactiveWorkers(ctx context.Context) error
}

type SchedulerEngine struct {
	cfg     *config.WorkerPoolCfg
	jobs    secondary.JobStore
	workers WorkerCleaner
	logger  primary.Logger
}

// NewSchedulerEngine creates the engine. workers may be nil.
func NewSchedulerEngine(
	cfg *config.WorkerPoolCfg,
	jobs secondary.JobStore,
	workers WorkerCleaner,
	logger primary.Logger,
) *SchedulerEngine {
	return &SchedulerEngine{
		cfg:     cfg,
		jobs:    jobs,
		workers: workers,
		logger:  logger,
	}
}

// Run requeues jobs stuck in flight past the visibility timeout and prunes
// dead workers until ctx is cancelled
func (s *SchedulerEngine) Run(ctx context.Context) {
	if s.cfg.RecoverInterval <= 0 {
		return
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(s.cfg.RecoverInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RecoverStaleJobs(ctx)
			}
		}
	}()

	go func() {
		defer wg.Done()
		if s.workers == nil {
			return
		}
		ticker := time.NewTicker(s.cfg.RecoverInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.workers.CleanupInactiveWorkers(ctx); err != nil {
					s.logger.Warn("Failed to clean up inactive workers", "error", err)
				}
			}
		}
	}()
	wg.Wait()
}

func (s *SchedulerEngine) RecoverStaleJobs(ctx context.Context) int {
	n := s.jobs.Recover(ctx, s.cfg.VisibilityTimeout)
	if n > 0 {
		s.logger.Info("Requeued stale jobs", "count", n, "visibilityTimeout", s.cfg.VisibilityTimeout)
	}
	return n
}
