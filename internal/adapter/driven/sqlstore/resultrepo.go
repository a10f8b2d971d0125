package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ericfisherdev/runledger/internal/domain/model"
	"github.com/ericfisherdev/runledger/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ResultStore = (*ResultRepo)(nil)

// ResultRepo is the SQL implementation of the ResultStore port interface.
type ResultRepo struct {
	conn Conn
}

// NewResultRepo creates a new ResultRepo backed by the given connection.
func NewResultRepo(conn Conn) *ResultRepo {
	return &ResultRepo{conn: conn}
}

// Insert stores one attempt. Empty error, stdout and stderr fields are stored as NULL.
func (r *ResultRepo) Insert(ctx context.Context, res model.TestResult) (int64, error) {
	const query = `
		INSERT INTO test_results (
			run_id, test_case_id, status, duration_ms, retry_count,
			error_message, error_stack, stdout, stderr, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`

	id, err := r.conn.Insert(ctx, query,
		res.RunID, res.TestCaseID, string(res.Status), res.DurationMS, res.RetryCount,
		nullableString(res.ErrorMessage), nullableString(res.ErrorStack),
		nullableString(res.Stdout), nullableString(res.Stderr),
		timeArg(res.StartedAt), timeArg(res.FinishedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("insert test result for run %s case %d: %w", res.RunID, res.TestCaseID, err)
	}

	return id, nil
}

// CountFinalByStatus tallies the latest attempt of each case in the run. Ties
// on retry count are broken by row ID so a replayed attempt is counted once.
func (r *ResultRepo) CountFinalByStatus(ctx context.Context, runID string) (map[model.TestStatus]int, error) {
	const query = `
		SELECT r.status, COUNT(*)
		FROM test_results r
		WHERE r.run_id = ?
		  AND NOT EXISTS (
			SELECT 1 FROM test_results n
			WHERE n.run_id = r.run_id
			  AND n.test_case_id = r.test_case_id
			  AND (n.retry_count > r.retry_count OR (n.retry_count = r.retry_count AND n.id > r.id))
		  )
		GROUP BY r.status
	`

	rows, err := r.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("count results for run %s: %w", runID, err)
	}
	defer rows.Close()

	counts := make(map[model.TestStatus]int)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan result count: %w", err)
		}
		counts[model.TestStatus(status)] = int(n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate result counts: %w", err)
	}

	return counts, nil
}

// ListByRun returns every attempt in the run with its case.
func (r *ResultRepo) ListByRun(ctx context.Context, runID string) ([]model.ResultDetail, error) {
	const query = `
		SELECT r.id, r.run_id, r.test_case_id, r.status, r.duration_ms, r.retry_count,
		       r.error_message, r.error_stack, r.stdout, r.stderr, r.started_at, r.finished_at,
		       c.id, c.test_id, c.title, c.file_path, c.project_name, c.browser, c.test_type, c.tags,
		       c.created_at, c.updated_at
		FROM test_results r
		JOIN test_cases c ON c.id = r.test_case_id
		WHERE r.run_id = ?
		ORDER BY c.file_path, c.title, c.project_name, r.retry_count, r.id
	`

	rows, err := r.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list results for run %s: %w", runID, err)
	}
	defer rows.Close()

	var details []model.ResultDetail
	for rows.Next() {
		d, err := scanResultDetail(rows)
		if err != nil {
			return nil, fmt.Errorf("scan result detail: %w", err)
		}
		details = append(details, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate result details: %w", err)
	}

	return details, nil
}

func scanResultDetail(s Row) (*model.ResultDetail, error) {
	var d model.ResultDetail
	var status, testType, tags string
	var errMsg, errStack, stdout, stderr sql.NullString
	var startedAt, finishedAt, createdAt, updatedAt nullTime

	err := s.Scan(
		&d.Result.ID, &d.Result.RunID, &d.Result.TestCaseID, &status, &d.Result.DurationMS, &d.Result.RetryCount,
		&errMsg, &errStack, &stdout, &stderr, &startedAt, &finishedAt,
		&d.Case.ID, &d.Case.TestID, &d.Case.Title, &d.Case.FilePath, &d.Case.ProjectName, &d.Case.Browser,
		&testType, &tags, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Result.Status = model.TestStatus(status)
	d.Result.ErrorMessage = errMsg.String
	d.Result.ErrorStack = errStack.String
	d.Result.Stdout = stdout.String
	d.Result.Stderr = stderr.String
	d.Result.StartedAt = startedAt.Time
	d.Result.FinishedAt = finishedAt.Time

	d.Case.TestType = model.TestType(testType)
	d.Case.Tags = splitTags(tags)
	d.Case.CreatedAt = createdAt.Time
	d.Case.UpdatedAt = updatedAt.Time

	return &d, nil
}
