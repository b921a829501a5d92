// Package notifier fans progress events out through Redis pub/sub so that a
// stream served by the API can follow a job processed by another process.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"gitlab.com/judgeflow.net/internal/core/ports/primary"
	"gitlab.com/judgeflow.net/internal/core/ports/secondary"
	"gitlab.com/judgeflow.net/internal/domain"
)

const (
	channelPrefix = "judge:events:"
	logPrefix     = "judge:events:log:"
	bufferSize    = 64
)

var _ secondary.Notifier = (*Notifier)(nil)

// envelope carries the position of the event in the replay log
type envelope struct {
	Seq   int64                `json:"seq"`
	Event domain.ProgressEvent `json:"event"`
}

type Notifier struct {
	redisClient *redis.Client
	logTTL      time.Duration
	logger      primary.Logger
}

func NewNotifier(redisClient *redis.Client, logTTL time.Duration, logger primary.Logger) *Notifier {
	return &Notifier{
		redisClient: redisClient,
		logTTL:      logTTL,
		logger:      logger,
	}
}

func channelKey(id uuid.UUID) string {
	return fmt.Sprintf("%s%s", channelPrefix, id)
}

func logKey(id uuid.UUID) string {
	return fmt.Sprintf("%s%s", logPrefix, id)
}

// Publish appends the event to the replay log, then broadcasts it.
// Failures are logged; progress delivery is best effort.
func (n *Notifier) Publish(ctx context.Context, submissionID uuid.UUID, event domain.ProgressEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		n.logger.Error("Failed to marshal progress event", "submissionId", submissionID, "error", err)
		return
	}

	var seq *redis.IntCmd
	_, err = n.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		seq = pipe.RPush(ctx, logKey(submissionID), payload)
		pipe.Expire(ctx, logKey(submissionID), n.logTTL)
		return nil
	})
	if err != nil {
		n.logger.Warn("Failed to append progress event", "submissionId", submissionID, "error", err)
		return
	}

	msg, err := json.Marshal(envelope{Seq: seq.Val(), Event: event})
	if err != nil {
		return
	}
	if err := n.redisClient.Publish(ctx, channelKey(submissionID), msg).Err(); err != nil {
		n.logger.Warn("Failed to publish progress event", "submissionId", submissionID, "error", err)
	}
}

// Subscribe listens on the submission channel before reading the replay log,
// so no event falls between the two. Live events already replayed are skipped.
func (n *Notifier) Subscribe(ctx context.Context, submissionID uuid.UUID) (<-chan domain.ProgressEvent, func(), error) {
	pubsub := n.redisClient.Subscribe(ctx, channelKey(submissionID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, func() {}, fmt.Errorf("failed to subscribe to progress events: %w", err)
	}

	history, err := n.redisClient.LRange(ctx, logKey(submissionID), 0, -1).Result()
	if err != nil {
		_ = pubsub.Close()
		return nil, func() {}, fmt.Errorf("failed to read progress log: %w", err)
	}

	out := make(chan domain.ProgressEvent, bufferSize)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = pubsub.Close()
		})
	}

	go func() {
		defer close(out)
		defer cancel()

		send := func(ev domain.ProgressEvent) bool {
			select {
			case out <- ev:
				return true
			case <-done:
				return false
			case <-ctx.Done():
				return false
			}
		}

		var lastSeq int64
		for _, raw := range history {
			lastSeq++
			var ev domain.ProgressEvent
			if err := json.Unmarshal([]byte(raw), &ev); err != nil {
				n.logger.Warn("Skipping undecodable progress event", "submissionId", submissionID, "error", err)
				continue
			}
			if !send(ev) || ev.IsTerminal() {
				return
			}
		}

		messages := pubsub.Channel()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var env envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					n.logger.Warn("Skipping undecodable progress message", "submissionId", submissionID, "error", err)
					continue
				}
				if env.Seq <= lastSeq {
					continue
				}
				lastSeq = env.Seq
				if !send(env.Event) || env.Event.IsTerminal() {
					return
				}
			}
		}
	}()

	return out, cancel, nil
}
