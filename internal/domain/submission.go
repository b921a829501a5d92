package domain

import (
	"time"

	"github.com/google/uuid"
)

// ContestContext ties a submission to a contest problem
type ContestContext struct {
	ContestID        string `json:"contestId"`
	ContestProblemID string `json:"contestProblemId"`
}

// Submission represents a code submission to be executed
type Submission struct {
	ID               uuid.UUID        `db:"id" json:"id"`
	UserID           string           `db:"user_id" json:"userId"`
	ProblemID        string           `db:"problem_id" json:"problemId"`
	ContestID        *string          `db:"contest_id" json:"contestId,omitempty"`
	ContestProblemID *string          `db:"contest_problem_id" json:"contestProblemId,omitempty"`
	Code             string           `db:"code" json:"code"`
	Language         Language         `db:"language" json:"language"`
	SubmittedAt      time.Time        `db:"submitted_at" json:"submittedAt"`
	Status           Verdict          `db:"status" json:"status"`
	ExecutionTimeMs  *float64         `db:"execution_time_ms" json:"executionTimeMs,omitempty"`
	MemoryKb         *int64           `db:"memory_kb" json:"memoryKb,omitempty"`
	PassedCount      int              `db:"passed_count" json:"passedCount"`
	TotalCount       int              `db:"total_count" json:"totalCount"`
	Results          []TestCaseResult `db:"-" json:"results,omitempty"`
}

type SubmissionTable struct {
	ID               string
	UserID           string
	ProblemID        string
	ContestID        string
	ContestProblemID string
	Code             string
	Language         string
	SubmittedAt      string
	Status           string
	ExecutionTimeMs  string
	MemoryKb         string
	PassedCount      string
	TotalCount       string
	Results          string
}

func GetSubmissionTable() SubmissionTable {
	return SubmissionTable{
		ID:               "id",
		UserID:           "user_id",
		ProblemID:        "problem_id",
		ContestID:        "contest_id",
		ContestProblemID: "contest_problem_id",
		Code:             "code",
		Language:         "language",
		SubmittedAt:      "submitted_at",
		Status:           "status",
		ExecutionTimeMs:  "execution_time_ms",
		MemoryKb:         "memory_kb",
		PassedCount:      "passed_count",
		TotalCount:       "total_count",
		Results:          "results",
	}
}

func (SubmissionTable) TableName() string {
	return "submissions"
}

// NewSubmission creates a new queued submission
func NewSubmission(userID, code string, language Language, problemID string, contest *ContestContext) *Submission {
	s := &Submission{
		ID:          uuid.New(),
		UserID:      userID,
		Code:        code,
		Language:    language,
		ProblemID:   problemID,
		SubmittedAt: time.Now(),
		Status:      VerdictQueued,
	}
	if contest != nil {
		if contest.ContestID != "" {
			contestID := contest.ContestID
			s.ContestID = &contestID
		}
		if contest.ContestProblemID != "" {
			contestProblemID := contest.ContestProblemID
			s.ContestProblemID = &contestProblemID
		}
	}
	return s
}

// ApplyResult overwrites status and aggregates with the given result
func (s *Submission) ApplyResult(result *SubmissionResult) {
	s.Status = result.Status
	s.PassedCount = result.Summary.Passed
	s.TotalCount = result.Summary.Total
	s.ExecutionTimeMs = result.Summary.AverageTimeMs
	s.MemoryKb = result.Summary.PeakMemoryKb
	s.Results = result.Results
}

// SubmissionStatus is the polling view of a submission
type SubmissionStatus struct {
	SubmissionID    uuid.UUID        `json:"submissionId"`
	Status          Verdict          `json:"status"`
	Passed          int              `json:"passed"`
	Total           int              `json:"total"`
	ExecutionTimeMs *float64         `json:"executionTimeMs,omitempty"`
	MemoryKb        *int64           `json:"memoryKb,omitempty"`
	Results         []TestCaseResult `json:"results,omitempty"`
	SubmittedAt     time.Time        `json:"submittedAt"`
}
