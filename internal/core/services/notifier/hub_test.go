package notifier

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"gitlab.com/judgeflow.net/internal/adapter/logging"
	"gitlab.com/judgeflow.net/internal/domain"
)

func drain(t *testing.T, ch <-chan domain.ProgressEvent) []domain.ProgressEvent {
	t.Helper()
	var out []domain.ProgressEvent
	timeout := time.After(time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("channel not closed, got %d events", len(out))
		}
	}
}

func TestHubDeliversLiveEventsAndCloses(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(logging.NewNopLogger())
	id := uuid.New()

	events, cancel, err := hub.Subscribe(ctx, id)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	hub.Publish(ctx, id, domain.NewProgressEvent(domain.EventStatusUpdate, id, domain.VerdictProcessing))
	hub.Publish(ctx, id, domain.NewProgressEvent(domain.EventSubmissionCompleted, id, domain.VerdictAccepted))

	got := drain(t, events)
	if len(got) != 2 || got[1].Type != domain.EventSubmissionCompleted {
		t.Fatalf("unexpected events %+v", got)
	}
}

func TestHubReplaysHistoryToLateSubscriber(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(logging.NewNopLogger())
	id := uuid.New()

	hub.Publish(ctx, id, domain.NewProgressEvent(domain.EventStatusUpdate, id, domain.VerdictProcessing))
	hub.Publish(ctx, id, domain.NewProgressEvent(domain.EventStatusUpdate, id, domain.VerdictRunning))

	events, cancel, _ := hub.Subscribe(ctx, id)
	defer cancel()
	hub.Publish(ctx, id, domain.NewProgressEvent(domain.EventError, id, domain.VerdictInternalError))

	got := drain(t, events)
	if len(got) != 3 || got[0].Status != domain.VerdictProcessing || got[2].Type != domain.EventError {
		t.Fatalf("unexpected events %+v", got)
	}

	// a reconnect after completion sees the same history and a closed channel
	again, cancelAgain, _ := hub.Subscribe(ctx, id)
	defer cancelAgain()
	if replay := drain(t, again); len(replay) != 3 {
		t.Fatalf("expected full replay, got %+v", replay)
	}
}

func TestHubCancelUnsubscribes(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(logging.NewNopLogger())
	id := uuid.New()

	events, cancel, _ := hub.Subscribe(ctx, id)
	cancel()
	cancel()
	hub.Publish(ctx, id, domain.NewProgressEvent(domain.EventStatusUpdate, id, domain.VerdictProcessing))

	if got := drain(t, events); len(got) != 0 {
		t.Fatalf("cancelled subscriber received %+v", got)
	}
}

func TestHubDoesNotBlockOnSlowSubscriber(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(logging.NewNopLogger(), WithBufferSize(1))
	id := uuid.New()

	_, cancel, _ := hub.Subscribe(ctx, id)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			hub.Publish(ctx, id, domain.NewProgressEvent(domain.EventStatusUpdate, id, domain.VerdictRunning))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("publish blocked on a full subscriber")
	}
}

func TestHubEvictsFinishedTopics(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(logging.NewNopLogger(), WithRetention(time.Minute))
	now := time.Now()
	hub.now = func() time.Time { return now }
	id := uuid.New()

	hub.Publish(ctx, id, domain.NewProgressEvent(domain.EventSubmissionCompleted, id, domain.VerdictAccepted))
	now = now.Add(2 * time.Minute)
	hub.Publish(ctx, uuid.New(), domain.NewProgressEvent(domain.EventStatusUpdate, id, domain.VerdictQueued))

	hub.mu.Lock()
	_, ok := hub.topics[id]
	hub.mu.Unlock()
	if ok {
		t.Fatalf("finished topic should be evicted after retention")
	}
}

func TestHubKeepsTerminalEventPastHistoryLimit(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(logging.NewNopLogger())
	id := uuid.New()

	for i := 0; i < defaultHistoryLimit+44; i++ {
		hub.Publish(ctx, id, domain.NewProgressEvent(domain.EventTestCaseCompleted, id, domain.VerdictAccepted))
	}
	hub.Publish(ctx, id, domain.NewProgressEvent(domain.EventSubmissionCompleted, id, domain.VerdictAccepted))

	events, cancel, err := hub.Subscribe(ctx, id)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	got := drain(t, events)
	if len(got) != defaultHistoryLimit {
		t.Fatalf("expected %d replayed events, got %d", defaultHistoryLimit, len(got))
	}
	if last := got[len(got)-1]; last.Type != domain.EventSubmissionCompleted {
		t.Fatalf("replay must end with the final event, got %s", last.Type)
	}
}
