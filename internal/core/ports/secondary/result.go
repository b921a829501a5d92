package secondary

import (
	"context"

	"github.com/google/uuid"

	"gitlab.com/judgeflow.net/internal/domain"
)

// ResultCache keeps the latest result blob of a submission for a short time
type ResultCache interface {
	// SaveResult stores an execution result
	SaveResult(ctx context.Context, result *domain.SubmissionResult) error

	// GetResult retrieves an execution result by submission ID, nil when absent
	GetResult(ctx context.Context, submissionID uuid.UUID) (*domain.SubmissionResult, error)
}

// Notifier publishes progress events and exposes them to subscribers
type Notifier interface {
	Publish(ctx context.Context, submissionID uuid.UUID, event domain.ProgressEvent)

	// Subscribe returns a channel of events for a submission, starting with the
	// events already published. The channel is closed after a terminal event or
	// when cancel is called. Returns errs.ErrStreamingUnsupported when push
	// delivery is unavailable.
	Subscribe(ctx context.Context, submissionID uuid.UUID) (events <-chan domain.ProgressEvent, cancel func(), err error)
}
