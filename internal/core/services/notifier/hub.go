// Package notifier is the in-process progress event hub used when the API
// and the worker pool share a process.
package notifier

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"gitlab.com/judgeflow.net/internal/core/ports/primary"
	"gitlab.com/judgeflow.net/internal/core/ports/secondary"
	"gitlab.com/judgeflow.net/internal/domain"
)

const (
	defaultHistoryLimit = 256
	defaultBufferSize   = 64
	defaultRetention    = 10 * time.Minute
)

var _ secondary.Notifier = (*Hub)(nil)

type subscriber struct {
	ch   chan domain.ProgressEvent
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.ch) })
}

type topic struct {
	history     []domain.ProgressEvent
	subscribers map[*subscriber]struct{}
	finishedAt  time.Time
}

// Hub keeps per-submission history so late subscribers see earlier events.
// Publishing never blocks: a subscriber whose buffer is full misses events.
type Hub struct {
	mu           sync.Mutex
	topics       map[uuid.UUID]*topic
	historyLimit int
	bufferSize   int
	retention    time.Duration
	logger       primary.Logger
	now          func() time.Time
}

type Option func(*Hub)

func WithRetention(d time.Duration) Option {
	return func(h *Hub) { h.retention = d }
}

func WithBufferSize(n int) Option {
	return func(h *Hub) { h.bufferSize = n }
}

func NewHub(logger primary.Logger, opts ...Option) *Hub {
	h := &Hub{
		topics:       make(map[uuid.UUID]*topic),
		historyLimit: defaultHistoryLimit,
		bufferSize:   defaultBufferSize,
		retention:    defaultRetention,
		logger:       logger,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub) Publish(_ context.Context, submissionID uuid.UUID, event domain.ProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.evictLocked()

	t := h.topics[submissionID]
	if t == nil {
		t = &topic{subscribers: make(map[*subscriber]struct{})}
		h.topics[submissionID] = t
	}
	h.remember(t, event)

	for sub := range t.subscribers {
		select {
		case sub.ch <- event:
		default:
			h.logger.Warn("Dropping progress event for slow subscriber", "submissionId", submissionID, "type", event.Type)
		}
	}

	if event.IsTerminal() {
		t.finishedAt = h.now()
		for sub := range t.subscribers {
			sub.close()
			delete(t.subscribers, sub)
		}
	}
}

func (h *Hub) Subscribe(_ context.Context, submissionID uuid.UUID) (<-chan domain.ProgressEvent, func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	t := h.topics[submissionID]
	if t == nil {
		t = &topic{subscribers: make(map[*subscriber]struct{})}
		h.topics[submissionID] = t
	}

	size := h.bufferSize
	if len(t.history) > size {
		size = len(t.history)
	}
	sub := &subscriber{ch: make(chan domain.ProgressEvent, size)}
	for _, ev := range t.history {
		sub.ch <- ev
	}

	if !t.finishedAt.IsZero() {
		sub.close()
		return sub.ch, func() {}, nil
	}

	t.subscribers[sub] = struct{}{}
	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if cur, ok := h.topics[submissionID]; ok {
			delete(cur.subscribers, sub)
			if len(cur.subscribers) == 0 && len(cur.history) == 0 {
				delete(h.topics, submissionID)
			}
		}
		sub.close()
	}
	return sub.ch, cancel, nil
}

// remember appends event to the replay history. Past the limit further
// progress events are not kept, but a terminal event always is, in place of
// the oldest progress event.
func (h *Hub) remember(t *topic, event domain.ProgressEvent) {
	if len(t.history) < h.historyLimit {
		t.history = append(t.history, event)
		return
	}
	if !event.IsTerminal() {
		return
	}
	for i, ev := range t.history {
		if !ev.IsTerminal() {
			t.history = append(t.history[:i], t.history[i+1:]...)
			break
		}
	}
	t.history = append(t.history, event)
}

// evictLocked drops the history of submissions finished longer than retention ago
func (h *Hub) evictLocked() {
	cutoff := h.now().Add(-h.retention)
	for id, t := range h.topics {
		if !t.finishedAt.IsZero() && t.finishedAt.Before(cutoff) && len(t.subscribers) == 0 {
			delete(h.topics, id)
		}
	}
}
