package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType tags a ProgressEvent
type EventType string

const (
	EventSubmissionCreated   EventType = "submission_created"
	EventStatusUpdate        EventType = "status_update"
	EventTestCaseStarted     EventType = "test_case_started"
	EventTestCaseCompleted   EventType = "test_case_completed"
	EventSubmissionCompleted EventType = "submission_completed"
	EventError               EventType = "error"
)

// ProgressEvent is emitted while a submission is processed
type ProgressEvent struct {
	Type          EventType       `json:"type"`
	SubmissionID  uuid.UUID       `json:"submissionId"`
	Status        Verdict         `json:"status,omitempty"`
	TestCaseIndex *int            `json:"testCaseIndex,omitempty"`
	TotalCases    int             `json:"totalCases,omitempty"`
	Result        *TestCaseResult `json:"result,omitempty"`
	Summary       *Summary        `json:"summary,omitempty"`
	Message       string          `json:"message,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

// IsTerminal reports whether no further events follow this one
func (e ProgressEvent) IsTerminal() bool {
	switch e.Type {
	case EventSubmissionCompleted, EventError:
		return true
	}
	return false
}

func NewProgressEvent(eventType EventType, submissionID uuid.UUID, status Verdict) ProgressEvent {
	return ProgressEvent{
		Type:         eventType,
		SubmissionID: submissionID,
		Status:       status,
		Timestamp:    time.Now(),
	}
}
