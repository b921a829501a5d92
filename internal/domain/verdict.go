package domain

// Verdict represents the outcome classification of a test case or a submission
type Verdict string

const (
	VerdictQueued              Verdict = "queued"
	VerdictProcessing          Verdict = "processing"
	VerdictCompiling           Verdict = "compiling"
	VerdictRunning             Verdict = "running"
	VerdictAccepted            Verdict = "accepted"
	VerdictWrongAnswer         Verdict = "wrong_answer"
	VerdictTimeLimitExceeded   Verdict = "time_limit_exceeded"
	VerdictMemoryLimitExceeded Verdict = "memory_limit_exceeded"
	VerdictRuntimeError        Verdict = "runtime_error"
	VerdictCompilationError    Verdict = "compilation_error"
	VerdictInternalError       Verdict = "internal_error"
)

// IsTerminal reports whether no further processing happens after this verdict
func (v Verdict) IsTerminal() bool {
	switch v {
	case VerdictQueued, VerdictProcessing, VerdictCompiling, VerdictRunning:
		return false
	}
	return v.IsValid()
}

func (v Verdict) IsValid() bool {
	switch v {
	case VerdictQueued, VerdictProcessing, VerdictCompiling, VerdictRunning,
		VerdictAccepted, VerdictWrongAnswer, VerdictTimeLimitExceeded,
		VerdictMemoryLimitExceeded, VerdictRuntimeError, VerdictCompilationError,
		VerdictInternalError:
		return true
	}
	return false
}

func (v Verdict) String() string {
	return string(v)
}
