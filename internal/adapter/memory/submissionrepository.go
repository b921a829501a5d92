package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"gitlab.com/judgeflow.net/internal/core/ports/secondary"
	"gitlab.com/judgeflow.net/internal/domain"
	"gitlab.com/judgeflow.net/internal/static/errs"
)

var _ secondary.SubmissionRepository = (*SubmissionRepository)(nil)

type SubmissionRepository struct {
	mu          sync.RWMutex
	submissions map[uuid.UUID]*domain.Submission
}

func NewSubmissionRepository() *SubmissionRepository {
	return &SubmissionRepository{submissions: make(map[uuid.UUID]*domain.Submission)}
}

func (r *SubmissionRepository) Create(_ context.Context, submission *domain.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.submissions[submission.ID]; ok {
		return fmt.Errorf("submission %s already exists", submission.ID)
	}
	r.submissions[submission.ID] = cloneSubmission(submission)
	return nil
}

func (r *SubmissionRepository) Get(_ context.Context, id uuid.UUID) (*domain.Submission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.submissions[id]
	if !ok {
		return nil, nil
	}
	return cloneSubmission(s), nil
}

func (r *SubmissionRepository) UpdateStatus(_ context.Context, id uuid.UUID, status domain.Verdict) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.submissions[id]
	if !ok {
		return fmt.Errorf("failed to update status of %s: %w", id, errs.ErrSubmissionNotFound)
	}
	s.Status = status
	return nil
}

func (r *SubmissionRepository) SaveResult(_ context.Context, result *domain.SubmissionResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.submissions[result.SubmissionID]
	if !ok {
		return fmt.Errorf("failed to save result of %s: %w", result.SubmissionID, errs.ErrSubmissionNotFound)
	}
	s.ApplyResult(result)
	s.Results = append([]domain.TestCaseResult(nil), result.Results...)
	return nil
}

func cloneSubmission(s *domain.Submission) *domain.Submission {
	out := *s
	out.Results = append([]domain.TestCaseResult(nil), s.Results...)
	return &out
}
