package memory

import (
	"context"

	"github.com/google/uuid"

	"gitlab.com/judgeflow.net/internal/core/ports/secondary"
	"gitlab.com/judgeflow.net/internal/domain"
	"gitlab.com/judgeflow.net/internal/static/errs"
)

var _ secondary.Notifier = DisabledNotifier{}

// DisabledNotifier drops events; subscribers are told to poll instead
type DisabledNotifier struct{}

func (DisabledNotifier) Publish(context.Context, uuid.UUID, domain.ProgressEvent) {}

func (DisabledNotifier) Subscribe(context.Context, uuid.UUID) (<-chan domain.ProgressEvent, func(), error) {
	return nil, func() {}, errs.ErrStreamingUnsupported
}
