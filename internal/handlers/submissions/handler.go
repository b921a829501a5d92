package submissions

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"gitlab.com/judgeflow.net/internal/config"
	"gitlab.com/judgeflow.net/internal/core/ports/primary"
	"gitlab.com/judgeflow.net/internal/core/services/submission"
	"gitlab.com/judgeflow.net/internal/domain"
	"gitlab.com/judgeflow.net/internal/handlers"
	"gitlab.com/judgeflow.net/internal/handlers/response"
	"gitlab.com/judgeflow.net/internal/static/errs"
)

const (
	writeWait        = 10 * time.Second
	requestOverhead  = 16 * 1024
	maxStreamTimeout = 30 * time.Minute
)

// SubmissionHandler serves the submission API
type SubmissionHandler struct {
	service    submission.ISubmissionService
	cfg        *config.HTTPConfig
	middleware *handlers.MiddlewareProvider
	logger     primary.Logger
	upgrader   websocket.Upgrader
}

func NewSubmissionHandler(
	service submission.ISubmissionService,
	cfg *config.HTTPConfig,
	middleware *handlers.MiddlewareProvider,
	logger primary.Logger,
) *SubmissionHandler {
	return &SubmissionHandler{
		service:    service,
		cfg:        cfg,
		middleware: middleware,
		logger:     logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// RegisterRoutes registers the API routes for SubmissionHandler
func (h *SubmissionHandler) RegisterRoutes(router *mux.Router) {
	router.Handle("/api/submissions", h.middleware.IdentityMiddleware(http.HandlerFunc(h.CreateSubmission))).Methods("POST")
	router.HandleFunc("/api/submissions/{id}", h.GetSubmission).Methods("GET")
	router.HandleFunc("/api/submissions/{id}/stream", h.StreamSubmission).Methods("GET")
	router.HandleFunc("/api/languages", h.ListLanguages).Methods("GET")
}

func (h *SubmissionHandler) CreateSubmission(w http.ResponseWriter, r *http.Request) {
	if h.cfg.MaxCodeBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, int64(h.cfg.MaxCodeBytes)*2+requestOverhead)
	}

	var req CreateSubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.WriteError(w, response.FromError(errs.ErrCodeTooLarge))
			return
		}
		response.WriteError(w, response.ErrorMessage{Message: "invalid request body", StatusCode: http.StatusBadRequest})
		return
	}

	var contest *domain.ContestContext
	if req.ContestID != "" || req.ContestProblemID != "" {
		contest = &domain.ContestContext{ContestID: req.ContestID, ContestProblemID: req.ContestProblemID}
	}

	sub, err := h.service.CreateSubmission(r.Context(), submission.CreateSubmissionRequest{
		UserID:    handlers.UserIDFromContext(r.Context()),
		Code:      req.Code,
		Language:  req.Language,
		ProblemID: req.ProblemID,
		Contest:   contest,
	})
	if err != nil {
		h.writeCreateError(w, err)
		return
	}

	handlers.ResponseWithJson(w, http.StatusAccepted, CreateSubmissionResponse{
		SubmissionID: sub.ID,
		Status:       sub.Status,
	})
}

func (h *SubmissionHandler) writeCreateError(w http.ResponseWriter, err error) {
	var rle *errs.RateLimitError
	if errors.As(err, &rle) {
		retryAfter := int(math.Ceil(time.Until(rle.ResetAt).Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		handlers.ResponseWithJson(w, http.StatusTooManyRequests, RateLimitResponse{
			Message:    err.Error(),
			StatusCode: http.StatusTooManyRequests,
			Remaining:  rle.Remaining,
			ResetAt:    rle.ResetAt,
		})
		return
	}

	msg := response.FromError(err)
	if msg.StatusCode == http.StatusInternalServerError {
		h.logger.Error("Failed to create submission", "error", err)
	}
	response.WriteError(w, msg)
}

func (h *SubmissionHandler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	id, ok := h.submissionID(w, r)
	if !ok {
		return
	}

	status, err := h.service.GetSubmissionStatus(r.Context(), id)
	if err != nil {
		msg := response.FromError(err)
		if msg.StatusCode == http.StatusInternalServerError {
			h.logger.Error("Failed to get submission", "submissionId", id, "error", err)
		}
		response.WriteError(w, msg)
		return
	}
	response.WriteSuccess(w, status)
}

func (h *SubmissionHandler) ListLanguages(w http.ResponseWriter, r *http.Request) {
	response.WriteSuccess(w, map[string][]domain.Runtime{"languages": h.service.ListLanguages()})
}

func (h *SubmissionHandler) submissionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := mux.Vars(r)["id"]
	id, err := uuid.Parse(raw)
	if err != nil {
		response.WriteError(w, response.ErrorMessage{Message: "invalid submission id", StatusCode: http.StatusBadRequest})
		return uuid.Nil, false
	}
	return id, true
}

// streamTimeout reads the inactivity timeout in seconds from the query
func (h *SubmissionHandler) streamTimeout(r *http.Request) time.Duration {
	timeout := h.cfg.StreamTimeout
	if raw := r.URL.Query().Get("timeout"); raw != "" {
		if sec, err := strconv.Atoi(raw); err == nil && sec > 0 {
			timeout = time.Duration(sec) * time.Second
		}
	}
	if timeout <= 0 || timeout > maxStreamTimeout {
		timeout = maxStreamTimeout
	}
	return timeout
}
