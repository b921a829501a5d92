package domain

import (
	"time"

	"github.com/google/uuid"
)

// TestCaseResult represents the result of a single test case execution
type TestCaseResult struct {
	Index           int          `json:"index"`
	TestCaseID      string       `json:"testCaseId"`
	Kind            TestCaseKind `json:"kind"`
	Status          Verdict      `json:"status"`
	Stdout          string       `json:"stdout,omitempty"`
	Stderr          string       `json:"stderr,omitempty"`
	ExpectedOutput  string       `json:"expectedOutput,omitempty"`
	CompileOutput   string       `json:"compileOutput,omitempty"`
	ExecutionTimeMs *float64     `json:"executionTimeMs,omitempty"`
	MemoryKb        *int64       `json:"memoryKb,omitempty"`
}

// ExecutionRequest is one sandbox run of a program against one stdin
type ExecutionRequest struct {
	Code          string
	Language      Language
	Stdin         string
	TimeLimitMs   int
	MemoryLimitKb int
}

// ExecutionResult is the normalized response of the sandbox for one run
type ExecutionResult struct {
	Success       bool
	Stdout        string
	Stderr        string
	Status        Verdict
	CompileOutput string
	TimeMs        *float64
	MemoryKb      *int64
}

// Summary holds the aggregates of a processed submission
type Summary struct {
	Passed        int      `json:"passed"`
	Total         int      `json:"total"`
	AverageTimeMs *float64 `json:"averageTimeMs,omitempty"`
	PeakMemoryKb  *int64   `json:"peakMemoryKb,omitempty"`
}

// SubmissionResult is the final outcome of a submission, also cached for pollers
type SubmissionResult struct {
	SubmissionID uuid.UUID        `json:"submissionId"`
	Status       Verdict          `json:"status"`
	Summary      Summary          `json:"summary"`
	Results      []TestCaseResult `json:"results"`
	CompletedAt  time.Time        `json:"completedAt"`
}
