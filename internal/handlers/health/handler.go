package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"gitlab.com/judgeflow.net/internal/core/ports/secondary"
	"gitlab.com/judgeflow.net/internal/handlers"
)

const pingTimeout = 2 * time.Second

type Handler struct {
	jobs secondary.JobStore
}

func NewHandler(jobs secondary.JobStore) *Handler {
	return &Handler{jobs: jobs}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/healthz", h.Health).Methods("GET")
}

// Health reports 503 while the job store is unreachable
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	if err := h.jobs.Ping(ctx); err != nil {
		handlers.ResponseWithJson(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "degraded",
			"jobStore": err.Error(),
		})
		return
	}
	handlers.ResponseWithJson(w, http.StatusOK, map[string]string{"status": "ok"})
}
