package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"gitlab.com/judgeflow.net/internal/static/errs"
)

type ErrorMessage struct {
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
}

func WriteError(w http.ResponseWriter, err ErrorMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	_ = json.NewEncoder(w).Encode(err)
}

func WriteSuccess(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

// FromError maps service errors to the status code returned to clients
func FromError(err error) ErrorMessage {
	switch {
	case errs.IsValidation(err):
		return ErrorMessage{Message: err.Error(), StatusCode: http.StatusBadRequest}
	case errors.Is(err, errs.ErrProblemNotFound), errors.Is(err, errs.ErrSubmissionNotFound):
		return ErrorMessage{Message: err.Error(), StatusCode: http.StatusNotFound}
	case errors.Is(err, errs.ErrNoTestCases):
		return ErrorMessage{Message: err.Error(), StatusCode: http.StatusUnprocessableEntity}
	case errors.Is(err, errs.ErrRateLimited):
		return ErrorMessage{Message: err.Error(), StatusCode: http.StatusTooManyRequests}
	}
	return ErrorMessage{Message: "internal error", StatusCode: http.StatusInternalServerError}
}
