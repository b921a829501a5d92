package errs

import (
	"errors"
	"fmt"
	"time"
)

var (
	InternalError           = errors.New("internal error")
	ErrEmptyCode            = errors.New("code is required")
	ErrCodeTooLarge         = errors.New("code exceeds size limit")
	ErrUnsupportedLanguage  = errors.New("unsupported language")
	ErrProblemRequired      = errors.New("problemId is required")
	ErrUserRequired         = errors.New("user id is required")
	ErrProblemNotFound      = errors.New("problem not found")
	ErrNoTestCases          = errors.New("NoTestCases: problem has no test cases")
	ErrSubmissionNotFound   = errors.New("submission not found")
	ErrRateLimited          = errors.New("rate limit exceeded")
	ErrStreamingUnsupported = errors.New("streaming is not supported, poll the submission status")
	ErrStoreUnavailable     = errors.New("job store unavailable")
)

// RateLimitError is returned when a user exceeded the submission rate
type RateLimitError struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: limit %d, resets at %s", ErrRateLimited, e.Limit, e.ResetAt.Format(time.RFC3339))
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// IsValidation reports whether err is a user input error rejected before enqueueing
func IsValidation(err error) bool {
	return errors.Is(err, ErrEmptyCode) ||
		errors.Is(err, ErrCodeTooLarge) ||
		errors.Is(err, ErrUnsupportedLanguage) ||
		errors.Is(err, ErrProblemRequired) ||
		errors.Is(err, ErrUserRequired)
}
