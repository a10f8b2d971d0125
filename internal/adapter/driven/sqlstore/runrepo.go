package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ericfisherdev/runledger/internal/domain/model"
	"github.com/ericfisherdev/runledger/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RunStore = (*RunRepo)(nil)

// RunRepo is the SQL implementation of the RunStore port interface.
type RunRepo struct {
	conn Conn
}

// NewRunRepo creates a new RunRepo backed by the given connection.
func NewRunRepo(conn Conn) *RunRepo {
	return &RunRepo{conn: conn}
}

const runColumns = `
	id, run_id, project_name, branch_name, commit_sha, ci_provider, ci_build_id, environment,
	started_at, finished_at, duration_ms, status,
	total_tests, passed_tests, failed_tests, skipped_tests, flaky_tests`

// Create inserts a run with zeroed counts. The caller sets Status and StartedAt.
func (r *RunRepo) Create(ctx context.Context, run model.TestRun) (int64, error) {
	const query = `
		INSERT INTO test_runs (
			run_id, project_name, branch_name, commit_sha, ci_provider, ci_build_id, environment,
			started_at, status, total_tests, passed_tests, failed_tests, skipped_tests, flaky_tests
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0, 0, 0)
		RETURNING id
	`

	id, err := r.conn.Insert(ctx, query,
		run.RunID, run.ProjectName, run.BranchName, run.CommitSHA, run.CIProvider, run.CIBuildID,
		run.Environment, run.StartedAt.UTC(), string(run.Status), run.TotalTests,
	)
	if err != nil {
		return 0, fmt.Errorf("insert test run %s: %w", run.RunID, err)
	}

	return id, nil
}

// Finish writes the closing values of a run. The update only applies while the
// run is still running, so the final counts are written exactly once.
func (r *RunRepo) Finish(ctx context.Context, runID string, fin driven.RunFinish) error {
	const query = `
		UPDATE test_runs SET
			finished_at = ?,
			duration_ms = ?,
			status = ?,
			passed_tests = ?,
			failed_tests = ?,
			skipped_tests = ?,
			flaky_tests = ?
		WHERE run_id = ? AND status = 'running'
	`

	affected, err := r.conn.Exec(ctx, query,
		fin.FinishedAt.UTC(), fin.DurationMS, string(fin.Status),
		fin.Counts.PassedIncludingFlaky(), fin.Counts.Failed, fin.Counts.Skipped, fin.Counts.Flaky,
		runID,
	)
	if err != nil {
		return fmt.Errorf("finish test run %s: %w", runID, err)
	}

	if affected > 0 {
		return nil
	}

	existing, err := r.GetByRunID(ctx, runID)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("finish test run %s: %w", runID, driven.ErrRunNotFound)
	}
	return fmt.Errorf("finish test run %s: %w", runID, driven.ErrRunAlreadyClosed)
}

// GetByRunID retrieves a run by its generated run ID. Returns nil, nil if the
// run does not exist.
func (r *RunRepo) GetByRunID(ctx context.Context, runID string) (*model.TestRun, error) {
	query := `SELECT ` + runColumns + ` FROM test_runs WHERE run_id = ?`

	run, err := scanRun(r.conn.QueryRow(ctx, query, runID))
	if errors.Is(err, ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get test run %s: %w", runID, err)
	}

	return run, nil
}

// ListRecent returns up to limit runs, newest first.
func (r *RunRepo) ListRecent(ctx context.Context, limit int) ([]model.TestRun, error) {
	query := `SELECT ` + runColumns + ` FROM test_runs ORDER BY started_at DESC, id DESC LIMIT ?`

	rows, err := r.conn.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list test runs: %w", err)
	}
	defer rows.Close()

	var runs []model.TestRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan test run: %w", err)
		}
		runs = append(runs, *run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate test runs: %w", err)
	}

	return runs, nil
}

func scanRun(s Row) (*model.TestRun, error) {
	var run model.TestRun
	var status string
	var startedAt, finishedAt nullTime
	var durationMS sql.NullInt64

	err := s.Scan(
		&run.ID, &run.RunID, &run.ProjectName, &run.BranchName, &run.CommitSHA,
		&run.CIProvider, &run.CIBuildID, &run.Environment,
		&startedAt, &finishedAt, &durationMS, &status,
		&run.TotalTests, &run.PassedTests, &run.FailedTests, &run.SkippedTests, &run.FlakyTests,
	)
	if err != nil {
		return nil, err
	}

	run.Status = model.RunStatus(status)
	run.StartedAt = startedAt.Time
	run.FinishedAt = finishedAt.Time
	run.DurationMS = durationMS.Int64

	return &run, nil
}
