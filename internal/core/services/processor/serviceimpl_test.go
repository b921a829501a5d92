package processor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"gitlab.com/judgeflow.net/internal/adapter/logging"
	"gitlab.com/judgeflow.net/internal/adapter/memory"
	"gitlab.com/judgeflow.net/internal/core/services/notifier"
	"gitlab.com/judgeflow.net/internal/domain"
)

type fakeExecutor struct {
	mu    sync.Mutex
	calls []domain.ExecutionRequest
	run   func(req domain.ExecutionRequest) domain.ExecutionResult
}

func (f *fakeExecutor) Execute(_ context.Context, req domain.ExecutionRequest) domain.ExecutionResult {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	return f.run(req)
}

// echoExecutor prints stdin back, as a correct "cat" program would
func echoExecutor() *fakeExecutor {
	return &fakeExecutor{run: func(req domain.ExecutionRequest) domain.ExecutionResult {
		return domain.ExecutionResult{Success: true, Status: domain.VerdictAccepted, Stdout: req.Stdin + "\n"}
	}}
}

type fixture struct {
	svc         *ProcessorService
	submissions *memory.SubmissionRepository
	results     *memory.ResultCache
	hub         *notifier.Hub
	jobs        *memory.JobStore
	executor    *fakeExecutor
}

func newFixture(executor *fakeExecutor) *fixture {
	f := &fixture{
		submissions: memory.NewSubmissionRepository(),
		results:     memory.NewResultCache(time.Hour),
		hub:         notifier.NewHub(logging.NewNopLogger()),
		jobs:        memory.NewJobStore(),
		executor:    executor,
	}
	f.svc = NewProcessorService(f.submissions, executor, f.results, f.hub, f.jobs, nil, logging.NewNopLogger())
	return f
}

func (f *fixture) enqueue(t *testing.T, cases []domain.TestCase) *domain.ExecutionJob {
	t.Helper()
	ctx := context.Background()
	sub := domain.NewSubmission("u1", "cat", domain.LanguagePython, "p1", nil)
	if err := f.submissions.Create(ctx, sub); err != nil {
		t.Fatalf("create: %v", err)
	}
	job := domain.NewExecutionJob(sub, &domain.Problem{ID: "p1", TimeLimitMs: 500}, cases)
	f.jobs.Enqueue(ctx, job)
	return f.jobs.ClaimNext(ctx)
}

func threeCases(expected ...string) []domain.TestCase {
	cases := make([]domain.TestCase, 0, 3)
	for i, in := range []string{"a", "b", "c"} {
		cases = append(cases, domain.TestCase{
			ID:             in,
			Ordinal:        i + 1,
			Input:          in,
			ExpectedOutput: expected[i],
			Kind:           domain.TestCaseKindExample,
		})
	}
	return cases
}

func collect(ch <-chan domain.ProgressEvent) []domain.ProgressEvent {
	var out []domain.ProgressEvent
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func TestProcessAllAccepted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(echoExecutor())
	job := f.enqueue(t, threeCases("a", "b  ", "c\r\n"))

	events, cancel, _ := f.hub.Subscribe(ctx, job.SubmissionID)
	defer cancel()

	result := f.svc.Process(ctx, job)
	if result.Status != domain.VerdictAccepted {
		t.Fatalf("expected accepted, got %s", result.Status)
	}
	if result.Summary.Passed != 3 || result.Summary.Total != 3 {
		t.Fatalf("expected 3/3, got %d/%d", result.Summary.Passed, result.Summary.Total)
	}

	stored, _ := f.submissions.Get(ctx, job.SubmissionID)
	if stored.Status != domain.VerdictAccepted || stored.PassedCount != 3 || len(stored.Results) != 3 {
		t.Fatalf("unexpected stored submission %+v", stored)
	}
	if cached, _ := f.results.GetResult(ctx, job.SubmissionID); cached == nil || cached.Status != domain.VerdictAccepted {
		t.Fatalf("expected cached result, got %+v", cached)
	}
	if f.jobs.InFlight() != 0 {
		t.Fatalf("job must be completed")
	}

	got := collect(events)
	want := []domain.EventType{
		domain.EventStatusUpdate, domain.EventStatusUpdate,
		domain.EventTestCaseStarted, domain.EventTestCaseCompleted,
		domain.EventTestCaseStarted, domain.EventTestCaseCompleted,
		domain.EventTestCaseStarted, domain.EventTestCaseCompleted,
		domain.EventSubmissionCompleted,
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].Type != want[i] {
			t.Fatalf("event %d: expected %s, got %s", i, want[i], got[i].Type)
		}
	}
	if got[0].Status != domain.VerdictProcessing || got[1].Status != domain.VerdictRunning {
		t.Fatalf("unexpected status transitions %s %s", got[0].Status, got[1].Status)
	}
	if last := got[len(got)-1]; last.Summary == nil || last.Summary.Passed != 3 {
		t.Fatalf("completion event must carry the summary, got %+v", last)
	}
}

func TestProcessWrongAnswerKeepsEvaluating(t *testing.T) {
	ctx := context.Background()
	f := newFixture(echoExecutor())
	job := f.enqueue(t, threeCases("a", "not b", "c"))

	result := f.svc.Process(ctx, job)
	if result.Status != domain.VerdictWrongAnswer {
		t.Fatalf("expected wrong_answer, got %s", result.Status)
	}
	if len(result.Results) != 3 {
		t.Fatalf("all test cases must run, got %d results", len(result.Results))
	}
	if result.Results[1].Status != domain.VerdictWrongAnswer || result.Results[2].Status != domain.VerdictAccepted {
		t.Fatalf("unexpected per-test verdicts %+v", result.Results)
	}
	if result.Summary.Passed != 2 {
		t.Fatalf("expected 2 passed, got %d", result.Summary.Passed)
	}
}

func TestProcessFirstFailureWins(t *testing.T) {
	ctx := context.Background()
	executor := &fakeExecutor{run: func(req domain.ExecutionRequest) domain.ExecutionResult {
		switch req.Stdin {
		case "a":
			return domain.ExecutionResult{Status: domain.VerdictTimeLimitExceeded}
		case "b":
			return domain.ExecutionResult{Status: domain.VerdictRuntimeError}
		}
		return domain.ExecutionResult{Success: true, Status: domain.VerdictAccepted, Stdout: req.Stdin}
	}}
	f := newFixture(executor)
	job := f.enqueue(t, threeCases("a", "b", "c"))

	if result := f.svc.Process(ctx, job); result.Status != domain.VerdictTimeLimitExceeded {
		t.Fatalf("expected time_limit_exceeded, got %s", result.Status)
	}
}

func TestProcessCompilationErrorShortCircuits(t *testing.T) {
	ctx := context.Background()
	executor := &fakeExecutor{run: func(domain.ExecutionRequest) domain.ExecutionResult {
		return domain.ExecutionResult{Status: domain.VerdictCompilationError, CompileOutput: "syntax error"}
	}}
	f := newFixture(executor)
	job := f.enqueue(t, threeCases("a", "b", "c"))

	result := f.svc.Process(ctx, job)
	if result.Status != domain.VerdictCompilationError {
		t.Fatalf("expected compilation_error, got %s", result.Status)
	}
	if len(result.Results) != 1 || len(executor.calls) != 1 {
		t.Fatalf("expected exactly one result and one sandbox call, got %d/%d", len(result.Results), len(executor.calls))
	}
	if result.Summary.Passed != 0 || result.Summary.Total != 3 {
		t.Fatalf("unexpected summary %+v", result.Summary)
	}
	if result.Results[0].CompileOutput != "syntax error" {
		t.Fatalf("compile output not recorded")
	}
}

func TestProcessWithholdsHiddenOutput(t *testing.T) {
	ctx := context.Background()
	f := newFixture(echoExecutor())
	cases := threeCases("a", "b", "c")
	cases[1].Kind = domain.TestCaseKindTest
	job := f.enqueue(t, cases)

	result := f.svc.Process(ctx, job)
	if result.Results[0].Stdout == "" || result.Results[0].ExpectedOutput != "a" {
		t.Fatalf("visible test case output must be shown: %+v", result.Results[0])
	}
	if result.Results[1].Stdout != "" || result.Results[1].ExpectedOutput != "" {
		t.Fatalf("hidden test case output must be withheld: %+v", result.Results[1])
	}
	if result.Results[1].Status != domain.VerdictAccepted {
		t.Fatalf("hidden test case still evaluated, got %s", result.Results[1].Status)
	}
}

func TestProcessPassesLimitsToSandbox(t *testing.T) {
	ctx := context.Background()
	executor := echoExecutor()
	f := newFixture(executor)
	job := f.enqueue(t, threeCases("a", "b", "c"))

	f.svc.Process(ctx, job)
	for i, call := range executor.calls {
		if call.TimeLimitMs != 500 || call.MemoryLimitKb != domain.DefaultMemoryLimitKb {
			t.Fatalf("call %d: unexpected limits %+v", i, call)
		}
		if call.Stdin != []string{"a", "b", "c"}[i] {
			t.Fatalf("test cases must run in order, call %d got %q", i, call.Stdin)
		}
	}
}

func TestProcessAggregatesTiming(t *testing.T) {
	ctx := context.Background()
	times := map[string]*float64{"a": ptr(10.0), "b": nil, "c": ptr(20.0)}
	mems := map[string]*int64{"a": ptr(int64(100)), "b": ptr(int64(300)), "c": nil}
	executor := &fakeExecutor{run: func(req domain.ExecutionRequest) domain.ExecutionResult {
		return domain.ExecutionResult{
			Success: true, Status: domain.VerdictAccepted, Stdout: req.Stdin,
			TimeMs: times[req.Stdin], MemoryKb: mems[req.Stdin],
		}
	}}
	f := newFixture(executor)
	job := f.enqueue(t, threeCases("a", "b", "c"))

	summary := f.svc.Process(ctx, job).Summary
	if summary.AverageTimeMs == nil || *summary.AverageTimeMs != 15 {
		t.Fatalf("expected average 15 over timed results, got %v", summary.AverageTimeMs)
	}
	if summary.PeakMemoryKb == nil || *summary.PeakMemoryKb != 300 {
		t.Fatalf("expected peak 300, got %v", summary.PeakMemoryKb)
	}

	if none := Summarize([]domain.TestCaseResult{{Status: domain.VerdictAccepted}}, 1); none.AverageTimeMs != nil {
		t.Fatalf("average must be nil without timings")
	}
}

func TestProcessIsIdempotentForTerminalSubmissions(t *testing.T) {
	ctx := context.Background()
	executor := echoExecutor()
	f := newFixture(executor)
	job := f.enqueue(t, threeCases("a", "b", "c"))

	first := f.svc.Process(ctx, job)
	calls := len(executor.calls)

	second := f.svc.Process(ctx, job)
	if len(executor.calls) != calls {
		t.Fatalf("redelivered job must not run the sandbox again")
	}
	if second.Status != first.Status || second.Summary.Passed != first.Summary.Passed {
		t.Fatalf("redelivery changed the outcome: %+v vs %+v", first, second)
	}
	stored, _ := f.submissions.Get(ctx, job.SubmissionID)
	if stored.PassedCount != 3 || len(stored.Results) != 3 {
		t.Fatalf("aggregates must not double count: %+v", stored)
	}
}

func TestProcessRecoversFromPanic(t *testing.T) {
	ctx := context.Background()
	executor := &fakeExecutor{run: func(req domain.ExecutionRequest) domain.ExecutionResult {
		if req.Stdin == "b" {
			panic("sandbox exploded")
		}
		return domain.ExecutionResult{Success: true, Status: domain.VerdictAccepted, Stdout: req.Stdin}
	}}
	f := newFixture(executor)
	job := f.enqueue(t, threeCases("a", "b", "c"))

	events, cancel, _ := f.hub.Subscribe(ctx, job.SubmissionID)
	defer cancel()

	result := f.svc.Process(ctx, job)
	if result == nil || result.Status != domain.VerdictInternalError {
		t.Fatalf("expected internal_error, got %+v", result)
	}
	stored, _ := f.submissions.Get(ctx, job.SubmissionID)
	if stored.Status != domain.VerdictInternalError {
		t.Fatalf("expected stored internal_error, got %s", stored.Status)
	}
	if f.jobs.InFlight() != 0 {
		t.Fatalf("job must be completed after a panic")
	}
	got := collect(events)
	if last := got[len(got)-1]; last.Type != domain.EventError || last.Message == "" {
		t.Fatalf("expected error event with message, got %+v", last)
	}
}

type failingRepository struct {
	*memory.SubmissionRepository
}

func (failingRepository) UpdateStatus(context.Context, uuid.UUID, domain.Verdict) error {
	return errors.New("database is down")
}

func TestProcessPersistenceFailureIsInternalError(t *testing.T) {
	ctx := context.Background()
	executor := echoExecutor()
	f := newFixture(executor)
	job := f.enqueue(t, threeCases("a", "b", "c"))
	svc := NewProcessorService(failingRepository{f.submissions}, executor, f.results, f.hub, f.jobs, nil, logging.NewNopLogger())

	result := svc.Process(ctx, job)
	if result.Status != domain.VerdictInternalError {
		t.Fatalf("expected internal_error, got %s", result.Status)
	}
	if len(executor.calls) != 0 {
		t.Fatalf("sandbox must not run after a persistence failure")
	}
}

func TestProcessUnknownSubmissionCompletesJob(t *testing.T) {
	ctx := context.Background()
	f := newFixture(echoExecutor())
	job := &domain.ExecutionJob{ID: uuid.New(), SubmissionID: uuid.New()}
	f.jobs.Enqueue(ctx, job)
	f.jobs.ClaimNext(ctx)

	if result := f.svc.Process(ctx, job); result != nil {
		t.Fatalf("expected no result, got %+v", result)
	}
	if f.jobs.InFlight() != 0 {
		t.Fatalf("job must be completed")
	}
}

func ptr[T any](v T) *T {
	return &v
}
