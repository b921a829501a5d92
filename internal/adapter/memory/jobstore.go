// Package memory holds in-process implementations of the secondary ports,
// used in single-node mode and in tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"gitlab.com/judgeflow.net/internal/core/ports/secondary"
	"gitlab.com/judgeflow.net/internal/domain"
	"gitlab.com/judgeflow.net/internal/static/errs"
)

var (
	_ secondary.JobStore = (*JobStore)(nil)
	_ secondary.JobStore = DisabledJobStore{}
)

// JobStore is a FIFO queue with an in-flight set. Every claim is held by a
// goroutine of this process and the queue dies with it, so nothing is ever
// recovered.
type JobStore struct {
	mu       sync.Mutex
	pending  []*domain.ExecutionJob
	inFlight map[uuid.UUID]*domain.ExecutionJob
}

func NewJobStore() *JobStore {
	return &JobStore{
		inFlight: make(map[uuid.UUID]*domain.ExecutionJob),
	}
}

func (s *JobStore) Enqueue(_ context.Context, job *domain.ExecutionJob) bool {
	if job == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, job)
	return true
}

func (s *JobStore) ClaimNext(_ context.Context) *domain.ExecutionJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil
	}
	job := s.pending[0]
	s.pending[0] = nil
	s.pending = s.pending[1:]
	s.inFlight[job.ID] = job
	return job
}

func (s *JobStore) Complete(_ context.Context, jobID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, jobID)
}

func (s *JobStore) Touch(_ context.Context, jobID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inFlight[jobID]
	return ok
}

// Recover never requeues: an in-flight job here is still being run.
func (s *JobStore) Recover(context.Context, time.Duration) int {
	return 0
}

// InFlight returns the number of claimed, uncompleted jobs
func (s *JobStore) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inFlight)
}

func (s *JobStore) Ping(context.Context) error {
	return nil
}

// Len returns the number of pending jobs
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// DisabledJobStore accepts nothing and yields nothing
type DisabledJobStore struct{}

func (DisabledJobStore) Enqueue(context.Context, *domain.ExecutionJob) bool { return false }

func (DisabledJobStore) ClaimNext(context.Context) *domain.ExecutionJob { return nil }

func (DisabledJobStore) Complete(context.Context, uuid.UUID) {}

func (DisabledJobStore) Touch(context.Context, uuid.UUID) bool { return false }

func (DisabledJobStore) Recover(context.Context, time.Duration) int { return 0 }

func (DisabledJobStore) Ping(context.Context) error { return errs.ErrStoreUnavailable }
