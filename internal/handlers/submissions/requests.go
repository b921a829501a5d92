package submissions

import (
	"time"

	"github.com/google/uuid"

	"gitlab.com/judgeflow.net/internal/domain"
)

type CreateSubmissionRequest struct {
	Code             string          `json:"code"`
	Language         domain.Language `json:"language"`
	ProblemID        string          `json:"problemId"`
	ContestID        string          `json:"contestId,omitempty"`
	ContestProblemID string          `json:"contestProblemId,omitempty"`
}

type CreateSubmissionResponse struct {
	SubmissionID uuid.UUID      `json:"submissionId"`
	Status       domain.Verdict `json:"status"`
}

type RateLimitResponse struct {
	Message    string    `json:"message"`
	StatusCode int       `json:"status_code"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"resetAt"`
}
