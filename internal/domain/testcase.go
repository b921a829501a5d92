package domain

// TestCaseKind controls whether a test case is visible to the submitter
type TestCaseKind string

const (
	TestCaseKindExample TestCaseKind = "example"
	TestCaseKindTest    TestCaseKind = "test"
)

// TestCase represents a test case for code execution
type TestCase struct {
	ID             string       `db:"id" json:"id" yaml:"id"`
	ProblemID      string       `db:"problem_id" json:"problemId" yaml:"-"`
	Ordinal        int          `db:"ordinal" json:"ordinal" yaml:"ordinal"`
	Input          string       `db:"input" json:"input" yaml:"input"`
	ExpectedOutput string       `db:"expected_output" json:"expectedOutput" yaml:"expected_output"`
	Kind           TestCaseKind `db:"kind" json:"kind" yaml:"kind"`
}

func (t TestCase) IsHidden() bool {
	return t.Kind != TestCaseKindExample
}

// Problem carries the execution limits of a problem
type Problem struct {
	ID            string `db:"id" json:"id" yaml:"id"`
	TimeLimitMs   int    `db:"time_limit_ms" json:"timeLimitMs" yaml:"time_limit_ms"`
	MemoryLimitKb int    `db:"memory_limit_kb" json:"memoryLimitKb" yaml:"memory_limit_kb"`
}

const (
	DefaultTimeLimitMs   = 2000
	DefaultMemoryLimitKb = 256 * 1024
)

// Limits returns the problem limits, falling back to defaults for unset values
func (p *Problem) Limits() (timeLimitMs, memoryLimitKb int) {
	timeLimitMs, memoryLimitKb = DefaultTimeLimitMs, DefaultMemoryLimitKb
	if p == nil {
		return
	}
	if p.TimeLimitMs > 0 {
		timeLimitMs = p.TimeLimitMs
	}
	if p.MemoryLimitKb > 0 {
		memoryLimitKb = p.MemoryLimitKb
	}
	return
}
