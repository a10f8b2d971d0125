package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/runledger/internal/domain/model"
	"github.com/ericfisherdev/runledger/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CaseStore = (*CaseRepo)(nil)

// CaseRepo is the SQL implementation of the CaseStore port interface.
type CaseRepo struct {
	conn Conn
	now  func() time.Time
}

// NewCaseRepo creates a new CaseRepo backed by the given connection.
func NewCaseRepo(conn Conn) *CaseRepo {
	return &CaseRepo{conn: conn, now: time.Now}
}

// Upsert inserts a test case or refreshes the title of an existing one. Tags and
// test type are only written on first sighting. The returned ID is stable across
// calls for the same identity tuple.
func (r *CaseRepo) Upsert(ctx context.Context, tc model.TestCase) (int64, error) {
	const query = `
		INSERT INTO test_cases (
			test_id, title, file_path, project_name, browser, test_type, tags, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(test_id, file_path, project_name, browser) DO UPDATE SET
			title = excluded.title,
			updated_at = excluded.updated_at
		RETURNING id
	`

	now := r.now().UTC()
	id, err := r.conn.Insert(ctx, query,
		tc.TestID, tc.Title, tc.FilePath, tc.ProjectName, tc.Browser,
		string(tc.TestType), joinTags(tc.Tags), now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("upsert test case %s (%s): %w", tc.TestID, tc.FilePath, err)
	}

	return id, nil
}

// GetByID retrieves a case by row ID. Returns nil, nil if it does not exist.
func (r *CaseRepo) GetByID(ctx context.Context, id int64) (*model.TestCase, error) {
	const query = `
		SELECT id, test_id, title, file_path, project_name, browser, test_type, tags, created_at, updated_at
		FROM test_cases
		WHERE id = ?
	`

	tc, err := scanCase(r.conn.QueryRow(ctx, query, id))
	if errors.Is(err, ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get test case %d: %w", id, err)
	}

	return tc, nil
}

func scanCase(s Row) (*model.TestCase, error) {
	var tc model.TestCase
	var testType, tags string
	var createdAt, updatedAt nullTime

	err := s.Scan(
		&tc.ID, &tc.TestID, &tc.Title, &tc.FilePath, &tc.ProjectName, &tc.Browser,
		&testType, &tags, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	tc.TestType = model.TestType(testType)
	tc.Tags = splitTags(tags)
	tc.CreatedAt = createdAt.Time
	tc.UpdatedAt = updatedAt.Time

	return &tc, nil
}
