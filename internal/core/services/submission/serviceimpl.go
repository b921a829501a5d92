package submission

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"gitlab.com/judgeflow.net/internal/adapter/metrics"
	"gitlab.com/judgeflow.net/internal/config"
	"gitlab.com/judgeflow.net/internal/core/ports/primary"
	"gitlab.com/judgeflow.net/internal/core/ports/secondary"
	"gitlab.com/judgeflow.net/internal/domain"
	"gitlab.com/judgeflow.net/internal/static/errs"
)

var _ ISubmissionService = (*SubmissionService)(nil)

type SubmissionService struct {
	submissions  secondary.SubmissionRepository
	problems     secondary.ProblemRepository
	jobs         secondary.JobStore
	limiter      secondary.RateLimiter
	results      secondary.ResultCache
	notifier     secondary.Notifier
	rateLimit    *config.RateLimitConfig
	maxCodeBytes int
	metrics      *metrics.Metrics
	logger       primary.Logger
}

func NewSubmissionService(
	submissions secondary.SubmissionRepository,
	problems secondary.ProblemRepository,
	jobs secondary.JobStore,
	limiter secondary.RateLimiter,
	results secondary.ResultCache,
	notifier secondary.Notifier,
	rateLimit *config.RateLimitConfig,
	httpCfg *config.HTTPConfig,
	m *metrics.Metrics,
	logger primary.Logger,
) *SubmissionService {
	return &SubmissionService{
		submissions:  submissions,
		problems:     problems,
		jobs:         jobs,
		limiter:      limiter,
		results:      results,
		notifier:     notifier,
		rateLimit:    rateLimit,
		maxCodeBytes: httpCfg.MaxCodeBytes,
		metrics:      m,
		logger:       logger,
	}
}

func (s *SubmissionService) validate(req CreateSubmissionRequest) error {
	if strings.TrimSpace(req.UserID) == "" {
		return errs.ErrUserRequired
	}
	if strings.TrimSpace(req.Code) == "" {
		return errs.ErrEmptyCode
	}
	if s.maxCodeBytes > 0 && len(req.Code) > s.maxCodeBytes {
		return fmt.Errorf("%w: %d bytes, limit %d", errs.ErrCodeTooLarge, len(req.Code), s.maxCodeBytes)
	}
	if _, ok := domain.RuntimeFor(req.Language); !ok {
		return fmt.Errorf("%w: %q", errs.ErrUnsupportedLanguage, req.Language)
	}
	if strings.TrimSpace(req.ProblemID) == "" {
		return errs.ErrProblemRequired
	}
	return nil
}

func (s *SubmissionService) CreateSubmission(ctx context.Context, req CreateSubmissionRequest) (*domain.Submission, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	limit := s.limiter.CheckLimit(ctx, req.UserID, s.rateLimit.Max, s.rateLimit.Window)
	if !limit.Allowed {
		s.metrics.RateLimited()
		s.logger.Info("Submission rate limited", "userId", req.UserID, "resetAt", limit.ResetAt)
		return nil, &errs.RateLimitError{
			Limit:     s.rateLimit.Max,
			Remaining: limit.Remaining,
			ResetAt:   limit.ResetAt,
		}
	}

	problem, err := s.problems.GetProblem(ctx, req.ProblemID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load problem: %v", errs.InternalError, err)
	}
	if problem == nil {
		return nil, fmt.Errorf("%w: %s", errs.ErrProblemNotFound, req.ProblemID)
	}
	testCases, err := s.problems.GetTestCases(ctx, req.ProblemID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load test cases: %v", errs.InternalError, err)
	}
	if len(testCases) == 0 {
		return nil, errs.ErrNoTestCases
	}

	submission := domain.NewSubmission(req.UserID, req.Code, req.Language, req.ProblemID, req.Contest)
	submission.TotalCount = len(testCases)
	if err := s.submissions.Create(ctx, submission); err != nil {
		return nil, fmt.Errorf("%w: failed to create submission: %v", errs.InternalError, err)
	}
	s.metrics.SubmissionAccepted(submission.Language)

	created := domain.NewProgressEvent(domain.EventSubmissionCreated, submission.ID, domain.VerdictQueued)
	created.TotalCases = len(testCases)
	s.notifier.Publish(ctx, submission.ID, created)

	job := domain.NewExecutionJob(submission, problem, testCases)
	if !s.jobs.Enqueue(ctx, job) {
		s.abandon(ctx, submission, len(testCases))
		return submission, nil
	}

	s.logger.Info("Submission queued",
		"submissionId", submission.ID,
		"jobId", job.ID,
		"userId", submission.UserID,
		"problemId", submission.ProblemID,
		"language", submission.Language)
	return submission, nil
}

// abandon ends a persisted submission whose job could not be queued
func (s *SubmissionService) abandon(ctx context.Context, submission *domain.Submission, total int) {
	s.logger.Error("Failed to enqueue job, marking submission as internal error", "submissionId", submission.ID)

	result := &domain.SubmissionResult{
		SubmissionID: submission.ID,
		Status:       domain.VerdictInternalError,
		Summary:      domain.Summary{Total: total},
		Results:      []domain.TestCaseResult{},
		CompletedAt:  time.Now(),
	}
	if err := s.submissions.SaveResult(ctx, result); err != nil {
		s.logger.Error("Failed to mark submission as internal error", "submissionId", submission.ID, "error", err)
	}
	if err := s.results.SaveResult(ctx, result); err != nil {
		s.logger.Warn("Failed to cache result", "submissionId", submission.ID, "error", err)
	}
	submission.ApplyResult(result)

	ev := domain.NewProgressEvent(domain.EventError, submission.ID, domain.VerdictInternalError)
	ev.Message = "job queue unavailable"
	ev.Summary = &result.Summary
	s.notifier.Publish(ctx, submission.ID, ev)
}

func (s *SubmissionService) GetSubmissionStatus(ctx context.Context, id uuid.UUID) (*domain.SubmissionStatus, error) {
	submission, err := s.submissions.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load submission: %v", errs.InternalError, err)
	}
	if submission == nil {
		return nil, errs.ErrSubmissionNotFound
	}

	status := &domain.SubmissionStatus{
		SubmissionID:    submission.ID,
		Status:          submission.Status,
		Passed:          submission.PassedCount,
		Total:           submission.TotalCount,
		ExecutionTimeMs: submission.ExecutionTimeMs,
		MemoryKb:        submission.MemoryKb,
		Results:         submission.Results,
		SubmittedAt:     submission.SubmittedAt,
	}

	// the cache may be ahead of a store that has not caught up yet
	if !submission.Status.IsTerminal() || len(submission.Results) == 0 {
		cached, err := s.results.GetResult(ctx, id)
		if err != nil {
			s.logger.Warn("Failed to read cached result", "submissionId", id, "error", err)
		}
		if cached != nil {
			status.Status = cached.Status
			status.Passed = cached.Summary.Passed
			status.Total = cached.Summary.Total
			status.ExecutionTimeMs = cached.Summary.AverageTimeMs
			status.MemoryKb = cached.Summary.PeakMemoryKb
			status.Results = cached.Results
		}
	}
	return status, nil
}

func (s *SubmissionService) StreamEvents(ctx context.Context, id uuid.UUID) (<-chan domain.ProgressEvent, func(), error) {
	status, err := s.GetSubmissionStatus(ctx, id)
	if err != nil {
		return nil, func() {}, err
	}

	// a finished submission may have outlived its event history
	if status.Status.IsTerminal() {
		ch := make(chan domain.ProgressEvent, 1)
		ch <- FinalEvent(status)
		close(ch)
		return ch, func() {}, nil
	}

	return s.notifier.Subscribe(ctx, id)
}

func (s *SubmissionService) ListLanguages() []domain.Runtime {
	return domain.SupportedRuntimes()
}

// FinalEvent builds the terminal event describing a finished submission
func FinalEvent(status *domain.SubmissionStatus) domain.ProgressEvent {
	eventType := domain.EventSubmissionCompleted
	if status.Status == domain.VerdictInternalError {
		eventType = domain.EventError
	}
	ev := domain.NewProgressEvent(eventType, status.SubmissionID, status.Status)
	ev.TotalCases = status.Total
	ev.Summary = &domain.Summary{
		Passed:        status.Passed,
		Total:         status.Total,
		AverageTimeMs: status.ExecutionTimeMs,
		PeakMemoryKb:  status.MemoryKb,
	}
	return ev
}
