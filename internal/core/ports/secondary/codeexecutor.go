package secondary

import (
	"context"

	"gitlab.com/judgeflow.net/internal/domain"
)

type CodeExecutor interface {
	// Execute runs code against one stdin. Transport failures are reported
	// as an internal_error result, never as a Go error.
	Execute(ctx context.Context, req domain.ExecutionRequest) domain.ExecutionResult
}
