package submissions

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"gitlab.com/judgeflow.net/internal/core/services/submission"
	"gitlab.com/judgeflow.net/internal/domain"
	"gitlab.com/judgeflow.net/internal/handlers/response"
	"gitlab.com/judgeflow.net/internal/static/errs"
)

// StreamSubmission pushes progress events over a websocket until the
// submission finishes or the stream stays idle for the timeout.
func (h *SubmissionHandler) StreamSubmission(w http.ResponseWriter, r *http.Request) {
	id, ok := h.submissionID(w, r)
	if !ok {
		return
	}
	timeout := h.streamTimeout(r)

	events, cancel, err := h.service.StreamEvents(r.Context(), id)
	polling := errors.Is(err, errs.ErrStreamingUnsupported)
	if err != nil && !polling {
		response.WriteError(w, response.FromError(err))
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", "submissionId", id, "error", err)
		return
	}
	defer conn.Close()

	ctx, stop := context.WithCancel(r.Context())
	defer stop()
	go func() {
		// the client never sends data; a read error means it went away
		for {
			if _, _, err := conn.NextReader(); err != nil {
				stop()
				return
			}
		}
	}()

	var reason string
	if polling {
		reason = h.pollStatus(ctx, conn, id, timeout)
	} else {
		reason = h.forward(ctx, conn, events, timeout)
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason),
		time.Now().Add(writeWait))
}

func (h *SubmissionHandler) forward(ctx context.Context, conn *websocket.Conn, events <-chan domain.ProgressEvent, timeout time.Duration) string {
	idle := time.NewTimer(timeout)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return "client gone"
		case <-idle.C:
			return "inactivity timeout"
		case ev, ok := <-events:
			if !ok {
				return "stream closed"
			}
			if err := writeEvent(conn, ev); err != nil {
				h.logger.Debug("Failed to write progress event", "submissionId", ev.SubmissionID, "error", err)
				return "write failed"
			}
			if ev.IsTerminal() {
				return "done"
			}
			idle.Reset(timeout)
		}
	}
}

// pollStatus reads the submission status on an interval and pushes a
// status_update whenever it changes
func (h *SubmissionHandler) pollStatus(ctx context.Context, conn *websocket.Conn, id uuid.UUID, timeout time.Duration) string {
	interval := h.cfg.StreamPollInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	deadline := time.Now().Add(timeout)
	var last domain.Verdict
	for {
		status, err := h.service.GetSubmissionStatus(ctx, id)
		switch {
		case errors.Is(err, errs.ErrSubmissionNotFound):
			return "submission not found"
		case err != nil:
			h.logger.Warn("Failed to poll submission status", "submissionId", id, "error", err)
		case status.Status.IsTerminal():
			if err := writeEvent(conn, submission.FinalEvent(status)); err != nil {
				return "write failed"
			}
			return "done"
		case status.Status != last:
			last = status.Status
			ev := domain.NewProgressEvent(domain.EventStatusUpdate, id, status.Status)
			ev.TotalCases = status.Total
			if err := writeEvent(conn, ev); err != nil {
				return "write failed"
			}
			deadline = time.Now().Add(timeout)
		}

		if time.Now().After(deadline) {
			return "inactivity timeout"
		}
		select {
		case <-ctx.Done():
			return "client gone"
		case <-ticker.C:
		}
	}
}

func writeEvent(conn *websocket.Conn, ev domain.ProgressEvent) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(ev)
}
