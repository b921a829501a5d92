package secondary

import (
	"context"

	"github.com/google/uuid"

	"gitlab.com/judgeflow.net/internal/domain"
)

type SubmissionRepository interface {
	// Create persists a new submission
	Create(ctx context.Context, submission *domain.Submission) error

	// Get retrieves a submission by ID, nil when not found
	Get(ctx context.Context, id uuid.UUID) (*domain.Submission, error)

	// UpdateStatus sets the status of a submission
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.Verdict) error

	// SaveResult overwrites status, aggregates and results of a submission
	SaveResult(ctx context.Context, result *domain.SubmissionResult) error
}

type ProblemRepository interface {
	// GetProblem retrieves the limits of a problem, nil when not found
	GetProblem(ctx context.Context, problemID string) (*domain.Problem, error)

	// GetTestCases retrieves the test cases of a problem in execution order
	GetTestCases(ctx context.Context, problemID string) ([]domain.TestCase, error)
}
