package processor

import (
	"context"

	"gitlab.com/judgeflow.net/internal/domain"
)

// IProcessorService drives one execution job to a terminal verdict
type IProcessorService interface {
	// Process runs every test case of the job, persists the outcome and emits
	// progress events. It always completes the job in the store and never
	// panics; failures end as internal_error.
	Process(ctx context.Context, job *domain.ExecutionJob) *domain.SubmissionResult
}
