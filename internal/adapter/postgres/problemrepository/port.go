// Package problemrepository reads problem limits and test cases from PostgreSQL
package problemrepository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"gitlab.com/judgeflow.net/internal/core/ports/primary"
	"gitlab.com/judgeflow.net/internal/core/ports/secondary"
	"gitlab.com/judgeflow.net/internal/domain"
	querybuilder "gitlab.com/judgeflow.net/internal/utils"
)

const (
	problemsTable  = "problems"
	testCasesTable = "test_cases"
)

var _ secondary.ProblemRepository = (*ProblemRepository)(nil)

// ProblemRepository implements the ProblemRepository interface with PostgreSQL
type ProblemRepository struct {
	db     *sqlx.DB
	logger primary.Logger
	schema string
}

func New(db *sqlx.DB, logger primary.Logger, schema string) *ProblemRepository {
	return &ProblemRepository{
		db:     db,
		logger: logger,
		schema: schema,
	}
}

// GetProblem retrieves the limits of a problem, nil when it does not exist
func (r *ProblemRepository) GetProblem(ctx context.Context, problemID string) (*domain.Problem, error) {
	query, args := querybuilder.NewQueryBuilder(r.schema).
		Select("id", "time_limit_ms", "memory_limit_kb").
		From(problemsTable).
		Where("id = ?", problemID).
		Build()

	var problem domain.Problem
	if err := r.db.GetContext(ctx, &problem, sqlx.Rebind(sqlx.DOLLAR, query), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get problem", "problemId", problemID, "error", err)
		return nil, fmt.Errorf("failed to get problem: %w", err)
	}
	return &problem, nil
}

// GetTestCases retrieves the test cases of a problem ordered for execution
func (r *ProblemRepository) GetTestCases(ctx context.Context, problemID string) ([]domain.TestCase, error) {
	query, args := querybuilder.NewQueryBuilder(r.schema).
		Select("id", "problem_id", "ordinal", "input", "expected_output", "kind").
		From(testCasesTable).
		Where("problem_id = ?", problemID).
		OrderBy("ordinal", true).
		OrderBy("id", true).
		Build()

	var testCases []domain.TestCase
	if err := r.db.SelectContext(ctx, &testCases, sqlx.Rebind(sqlx.DOLLAR, query), args...); err != nil {
		r.logger.Error("Failed to get test cases", "problemId", problemID, "error", err)
		return nil, fmt.Errorf("failed to get test cases: %w", err)
	}
	return testCases, nil
}

// EnsureTableExists creates the problem tables when missing
func (r *ProblemRepository) EnsureTableExists(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.%s (
			id TEXT PRIMARY KEY,
			time_limit_ms INTEGER NOT NULL DEFAULT %d,
			memory_limit_kb INTEGER NOT NULL DEFAULT %d
		)`, r.schema, problemsTable, domain.DefaultTimeLimitMs, domain.DefaultMemoryLimitKb),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.%s (
			id TEXT PRIMARY KEY,
			problem_id TEXT NOT NULL REFERENCES %s.%s(id),
			ordinal INTEGER NOT NULL DEFAULT 0,
			input TEXT NOT NULL DEFAULT '',
			expected_output TEXT NOT NULL DEFAULT '',
			kind VARCHAR(16) NOT NULL DEFAULT 'test'
		)`, r.schema, testCasesTable, r.schema, problemsTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS test_cases_problem_idx ON %s.%s (problem_id, ordinal)`, r.schema, testCasesTable),
	}

	for _, stmt := range statements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			r.logger.Error("Failed to create problem tables", "error", err)
			return fmt.Errorf("failed to create problem tables: %w", err)
		}
	}
	return nil
}
