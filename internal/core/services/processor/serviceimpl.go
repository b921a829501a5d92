package processor

import (
	"context"
	"fmt"
	"time"

	"gitlab.com/judgeflow.net/internal/adapter/metrics"
	"gitlab.com/judgeflow.net/internal/core/ports/primary"
	"gitlab.com/judgeflow.net/internal/core/ports/secondary"
	"gitlab.com/judgeflow.net/internal/core/services/verdict"
	"gitlab.com/judgeflow.net/internal/domain"
)

var _ IProcessorService = (*ProcessorService)(nil)

type ProcessorService struct {
	submissions secondary.SubmissionRepository
	executor    secondary.CodeExecutor
	results     secondary.ResultCache
	notifier    secondary.Notifier
	jobs        secondary.JobStore
	metrics     *metrics.Metrics
	logger      primary.Logger
}

func NewProcessorService(
	submissions secondary.SubmissionRepository,
	executor secondary.CodeExecutor,
	results secondary.ResultCache,
	notifier secondary.Notifier,
	jobs secondary.JobStore,
	m *metrics.Metrics,
	logger primary.Logger,
) *ProcessorService {
	return &ProcessorService{
		submissions: submissions,
		executor:    executor,
		results:     results,
		notifier:    notifier,
		jobs:        jobs,
		metrics:     m,
		logger:      logger,
	}
}

// run carries the state of one Process call
type run struct {
	job     *domain.ExecutionJob
	results []domain.TestCaseResult
}

func (s *ProcessorService) Process(ctx context.Context, job *domain.ExecutionJob) (result *domain.SubmissionResult) {
	finish := s.metrics.JobStarted()
	r := &run{job: job}

	defer s.jobs.Complete(ctx, job.ID)
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("Processor panicked", "submissionId", job.SubmissionID, "jobId", job.ID, "panic", p)
			result = s.fail(ctx, r, fmt.Sprintf("internal error: %v", p))
		}
		status := domain.VerdictInternalError
		if result != nil {
			status = result.Status
		}
		finish(status)
	}()

	submission, err := s.submissions.Get(ctx, job.SubmissionID)
	if err != nil {
		return s.fail(ctx, r, fmt.Sprintf("failed to load submission: %v", err))
	}
	if submission == nil {
		s.logger.Warn("Dropping job of unknown submission", "submissionId", job.SubmissionID, "jobId", job.ID)
		return nil
	}
	if submission.Status.IsTerminal() {
		// redelivered job; the stored outcome stands
		s.logger.Info("Skipping already processed submission", "submissionId", job.SubmissionID, "status", submission.Status)
		return &domain.SubmissionResult{
			SubmissionID: submission.ID,
			Status:       submission.Status,
			Summary: domain.Summary{
				Passed:        submission.PassedCount,
				Total:         submission.TotalCount,
				AverageTimeMs: submission.ExecutionTimeMs,
				PeakMemoryKb:  submission.MemoryKb,
			},
			Results: submission.Results,
		}
	}

	if len(job.TestCases) == 0 {
		return s.fail(ctx, r, "job has no test cases")
	}

	for _, status := range []domain.Verdict{domain.VerdictProcessing, domain.VerdictRunning} {
		if err := s.setStatus(ctx, job, status); err != nil {
			return s.fail(ctx, r, err.Error())
		}
	}

	s.logger.Info("Processing submission", "submissionId", job.SubmissionID, "language", job.Language, "testCases", len(job.TestCases))
	for i, tc := range job.TestCases {
		tcResult := s.runTestCase(ctx, job, i, tc)
		r.results = append(r.results, tcResult)

		ev := s.event(domain.EventTestCaseCompleted, job, tcResult.Status)
		ev.TestCaseIndex = intPtr(i)
		ev.TotalCases = len(job.TestCases)
		ev.Result = &tcResult
		s.notifier.Publish(ctx, job.SubmissionID, ev)

		if tcResult.Status == domain.VerdictCompilationError {
			break
		}
	}

	result = &domain.SubmissionResult{
		SubmissionID: job.SubmissionID,
		Status:       OverallVerdict(r.results),
		Summary:      Summarize(r.results, len(job.TestCases)),
		Results:      r.results,
		CompletedAt:  time.Now(),
	}

	if err := s.submissions.SaveResult(ctx, result); err != nil {
		return s.fail(ctx, r, fmt.Sprintf("failed to save result: %v", err))
	}
	if err := s.results.SaveResult(ctx, result); err != nil {
		s.logger.Warn("Failed to cache result", "submissionId", job.SubmissionID, "error", err)
	}

	ev := s.event(domain.EventSubmissionCompleted, job, result.Status)
	ev.TotalCases = len(job.TestCases)
	ev.Summary = &result.Summary
	s.notifier.Publish(ctx, job.SubmissionID, ev)

	s.logger.Info("Submission processed",
		"submissionId", job.SubmissionID,
		"status", result.Status,
		"passed", result.Summary.Passed,
		"total", result.Summary.Total)
	return result
}

func (s *ProcessorService) runTestCase(ctx context.Context, job *domain.ExecutionJob, index int, tc domain.TestCase) domain.TestCaseResult {
	started := s.event(domain.EventTestCaseStarted, job, domain.VerdictRunning)
	started.TestCaseIndex = intPtr(index)
	started.TotalCases = len(job.TestCases)
	s.notifier.Publish(ctx, job.SubmissionID, started)

	exec := s.executor.Execute(ctx, domain.ExecutionRequest{
		Code:          job.Code,
		Language:      job.Language,
		Stdin:         tc.Input,
		TimeLimitMs:   job.TimeLimitMs,
		MemoryLimitKb: job.MemoryLimitKb,
	})
	s.metrics.SandboxExecuted(job.Language, exec.Status)

	status := exec.Status
	if exec.Success {
		status = domain.VerdictWrongAnswer
		if verdict.Matches(exec.Stdout, tc.ExpectedOutput) {
			status = domain.VerdictAccepted
		}
	}

	res := domain.TestCaseResult{
		Index:           index,
		TestCaseID:      tc.ID,
		Kind:            tc.Kind,
		Status:          status,
		Stderr:          exec.Stderr,
		CompileOutput:   exec.CompileOutput,
		ExecutionTimeMs: exec.TimeMs,
		MemoryKb:        exec.MemoryKb,
	}
	if !tc.IsHidden() {
		res.Stdout = exec.Stdout
		res.ExpectedOutput = tc.ExpectedOutput
	}
	return res
}

func (s *ProcessorService) setStatus(ctx context.Context, job *domain.ExecutionJob, status domain.Verdict) error {
	if err := s.submissions.UpdateStatus(ctx, job.SubmissionID, status); err != nil {
		return fmt.Errorf("failed to update status to %s: %w", status, err)
	}
	ev := s.event(domain.EventStatusUpdate, job, status)
	ev.TotalCases = len(job.TestCases)
	s.notifier.Publish(ctx, job.SubmissionID, ev)
	return nil
}

// fail records internal_error with whatever results exist and emits an error event
func (s *ProcessorService) fail(ctx context.Context, r *run, message string) *domain.SubmissionResult {
	job := r.job
	s.logger.Error("Submission failed", "submissionId", job.SubmissionID, "jobId", job.ID, "reason", message)

	result := &domain.SubmissionResult{
		SubmissionID: job.SubmissionID,
		Status:       domain.VerdictInternalError,
		Summary:      Summarize(r.results, len(job.TestCases)),
		Results:      r.results,
		CompletedAt:  time.Now(),
	}
	if err := s.submissions.SaveResult(ctx, result); err != nil {
		s.logger.Error("Failed to save failed result", "submissionId", job.SubmissionID, "error", err)
	}
	if err := s.results.SaveResult(ctx, result); err != nil {
		s.logger.Warn("Failed to cache failed result", "submissionId", job.SubmissionID, "error", err)
	}

	ev := s.event(domain.EventError, job, domain.VerdictInternalError)
	ev.Message = message
	ev.Summary = &result.Summary
	s.notifier.Publish(ctx, job.SubmissionID, ev)
	return result
}

func (s *ProcessorService) event(eventType domain.EventType, job *domain.ExecutionJob, status domain.Verdict) domain.ProgressEvent {
	return domain.NewProgressEvent(eventType, job.SubmissionID, status)
}

// OverallVerdict is the first non-accepted verdict in order, or accepted
func OverallVerdict(results []domain.TestCaseResult) domain.Verdict {
	for _, r := range results {
		if r.Status != domain.VerdictAccepted {
			return r.Status
		}
	}
	return domain.VerdictAccepted
}

// Summarize aggregates results. Average time covers only results that
// reported a time; it is nil when none did.
func Summarize(results []domain.TestCaseResult, total int) domain.Summary {
	summary := domain.Summary{Total: total}
	var timeSum float64
	var timed int
	for _, r := range results {
		if r.Status == domain.VerdictAccepted {
			summary.Passed++
		}
		if r.ExecutionTimeMs != nil {
			timeSum += *r.ExecutionTimeMs
			timed++
		}
		if r.MemoryKb != nil && (summary.PeakMemoryKb == nil || *r.MemoryKb > *summary.PeakMemoryKb) {
			peak := *r.MemoryKb
			summary.PeakMemoryKb = &peak
		}
	}
	if timed > 0 {
		avg := timeSum / float64(timed)
		summary.AverageTimeMs = &avg
	}
	return summary
}

func intPtr(i int) *int {
	return &i
}
