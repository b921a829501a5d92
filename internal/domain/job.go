package domain

import (
	"time"

	"github.com/google/uuid"
)

// ExecutionJob represents one execution request derived from a submission
type ExecutionJob struct {
	ID            uuid.UUID  `json:"jobId"`
	SubmissionID  uuid.UUID  `json:"submissionId"`
	Code          string     `json:"code"`
	Language      Language   `json:"language"`
	TestCases     []TestCase `json:"testCases"`
	UserID        string     `json:"userId"`
	TimeLimitMs   int        `json:"timeLimitMs"`
	MemoryLimitKb int        `json:"memoryLimitKb"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// NewExecutionJob creates a job for a submission and the ordered test cases of its problem
func NewExecutionJob(submission *Submission, problem *Problem, testCases []TestCase) *ExecutionJob {
	timeLimitMs, memoryLimitKb := problem.Limits()
	cases := make([]TestCase, len(testCases))
	copy(cases, testCases)
	return &ExecutionJob{
		ID:            uuid.New(),
		SubmissionID:  submission.ID,
		Code:          submission.Code,
		Language:      submission.Language,
		TestCases:     cases,
		UserID:        submission.UserID,
		TimeLimitMs:   timeLimitMs,
		MemoryLimitKb: memoryLimitKb,
		CreatedAt:     time.Now(),
	}
}
