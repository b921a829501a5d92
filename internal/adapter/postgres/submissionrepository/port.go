// Package submissionrepository persists submissions in PostgreSQL
package submissionrepository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"gitlab.com/judgeflow.net/internal/core/ports/primary"
	"gitlab.com/judgeflow.net/internal/core/ports/secondary"
	"gitlab.com/judgeflow.net/internal/domain"
	"gitlab.com/judgeflow.net/internal/static/errs"
	querybuilder "gitlab.com/judgeflow.net/internal/utils"
)

var _ secondary.SubmissionRepository = (*SubmissionRepository)(nil)

type SubmissionRepository struct {
	db     *sqlx.DB
	logger primary.Logger
	schema string
}

func New(db *sqlx.DB, logger primary.Logger, schema string) *SubmissionRepository {
	return &SubmissionRepository{
		db:     db,
		logger: logger,
		schema: schema,
	}
}

// submissionRow shadows the results column, stored as JSONB
type submissionRow struct {
	domain.Submission
	Results []byte `db:"results"`
}

func (r *SubmissionRepository) Create(ctx context.Context, s *domain.Submission) error {
	tbl := domain.GetSubmissionTable()
	results, err := json.Marshal(nonNilResults(s.Results))
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	query, args := querybuilder.NewQueryBuilder(r.schema).
		Insert(
			tbl.ID, tbl.UserID, tbl.ProblemID, tbl.ContestID, tbl.ContestProblemID,
			tbl.Code, tbl.Language, tbl.SubmittedAt, tbl.Status,
			tbl.PassedCount, tbl.TotalCount, tbl.Results,
		).
		Into(tbl.TableName()).
		Values(
			s.ID, s.UserID, s.ProblemID, s.ContestID, s.ContestProblemID,
			s.Code, s.Language, s.SubmittedAt, s.Status,
			s.PassedCount, s.TotalCount, results,
		).
		Build()

	query = sqlx.Rebind(sqlx.DOLLAR, query)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("Failed to create submission", "submissionId", s.ID, "error", err)
		return fmt.Errorf("failed to create submission: %w", err)
	}
	return nil
}

func (r *SubmissionRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Submission, error) {
	tbl := domain.GetSubmissionTable()
	query, args := querybuilder.NewQueryBuilder(r.schema).
		Select(
			tbl.ID, tbl.UserID, tbl.ProblemID, tbl.ContestID, tbl.ContestProblemID,
			tbl.Code, tbl.Language, tbl.SubmittedAt, tbl.Status,
			tbl.ExecutionTimeMs, tbl.MemoryKb, tbl.PassedCount, tbl.TotalCount, tbl.Results,
		).
		From(tbl.TableName()).
		Where(tbl.ID+" = ?", id).
		Build()

	var row submissionRow
	if err := r.db.GetContext(ctx, &row, sqlx.Rebind(sqlx.DOLLAR, query), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get submission", "submissionId", id, "error", err)
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}

	submission := row.Submission
	if len(row.Results) > 0 {
		if err := json.Unmarshal(row.Results, &submission.Results); err != nil {
			return nil, fmt.Errorf("failed to unmarshal submission results: %w", err)
		}
	}
	return &submission, nil
}

func (r *SubmissionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.Verdict) error {
	tbl := domain.GetSubmissionTable()
	query, args := querybuilder.NewQueryBuilder(r.schema).
		Update(tbl.TableName(), querybuilder.UpdateData{
			{Column: tbl.Status, Value: status},
		}).
		Where(tbl.ID+" = ?", id).
		Build()

	return r.exec(ctx, id, query, args)
}

// SaveResult overwrites the aggregates and the whole results column
func (r *SubmissionRepository) SaveResult(ctx context.Context, result *domain.SubmissionResult) error {
	tbl := domain.GetSubmissionTable()
	results, err := json.Marshal(nonNilResults(result.Results))
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	query, args := querybuilder.NewQueryBuilder(r.schema).
		Update(tbl.TableName(), querybuilder.UpdateData{
			{Column: tbl.Status, Value: result.Status},
			{Column: tbl.ExecutionTimeMs, Value: result.Summary.AverageTimeMs},
			{Column: tbl.MemoryKb, Value: result.Summary.PeakMemoryKb},
			{Column: tbl.PassedCount, Value: result.Summary.Passed},
			{Column: tbl.TotalCount, Value: result.Summary.Total},
			{Column: tbl.Results, Value: results},
		}).
		Where(tbl.ID+" = ?", result.SubmissionID).
		Build()

	return r.exec(ctx, result.SubmissionID, query, args)
}

func (r *SubmissionRepository) exec(ctx context.Context, id uuid.UUID, query string, args []interface{}) error {
	res, err := r.db.ExecContext(ctx, sqlx.Rebind(sqlx.DOLLAR, query), args...)
	if err != nil {
		r.logger.Error("Failed to update submission", "submissionId", id, "error", err)
		return fmt.Errorf("failed to update submission: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("failed to update submission %s: %w", id, errs.ErrSubmissionNotFound)
	}
	return nil
}

func nonNilResults(results []domain.TestCaseResult) []domain.TestCaseResult {
	if results == nil {
		return []domain.TestCaseResult{}
	}
	return results
}

// EnsureTableExists creates the submissions table when missing
func (r *SubmissionRepository) EnsureTableExists(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.submissions (
			id UUID PRIMARY KEY,
			user_id TEXT NOT NULL,
			problem_id TEXT NOT NULL,
			contest_id TEXT,
			contest_problem_id TEXT,
			code TEXT NOT NULL,
			language VARCHAR(32) NOT NULL,
			submitted_at TIMESTAMP WITH TIME ZONE NOT NULL,
			status VARCHAR(32) NOT NULL,
			execution_time_ms DOUBLE PRECISION,
			memory_kb BIGINT,
			passed_count INTEGER NOT NULL DEFAULT 0,
			total_count INTEGER NOT NULL DEFAULT 0,
			results JSONB NOT NULL DEFAULT '[]'::jsonb
		)
	`, r.schema)

	if _, err := r.db.ExecContext(ctx, query); err != nil {
		r.logger.Error("Failed to create submissions table", "error", err)
		return fmt.Errorf("failed to create submissions table: %w", err)
	}
	return nil
}
