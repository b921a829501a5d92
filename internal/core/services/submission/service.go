package submission

import (
	"context"

	"github.com/google/uuid"

	"gitlab.com/judgeflow.net/internal/domain"
)

type CreateSubmissionRequest struct {
	UserID    string
	Code      string
	Language  domain.Language
	ProblemID string
	Contest   *domain.ContestContext
}

// ISubmissionService is the entry point of the pipeline
type ISubmissionService interface {
	// CreateSubmission validates, rate limits, persists and enqueues a submission.
	// Execution is asynchronous; the returned submission is queued.
	CreateSubmission(ctx context.Context, req CreateSubmissionRequest) (*domain.Submission, error)

	// GetSubmissionStatus returns the current state of a submission
	GetSubmissionStatus(ctx context.Context, id uuid.UUID) (*domain.SubmissionStatus, error)

	// StreamEvents subscribes to the progress events of a submission.
	// Returns errs.ErrStreamingUnsupported when callers must poll instead.
	StreamEvents(ctx context.Context, id uuid.UUID) (<-chan domain.ProgressEvent, func(), error)

	// ListLanguages returns the supported languages and their runtimes
	ListLanguages() []domain.Runtime
}
