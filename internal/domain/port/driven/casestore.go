package driven

import (
	"context"

	"github.com/ericfisherdev/runledger/internal/domain/model"
)

// CaseStore defines the driven port for test case persistence.
type CaseStore interface {
	// Upsert inserts the case or, when the (test_id, file_path, project_name, browser)
	// tuple already exists, updates only its title and updated_at. It returns the
	// row ID, which never changes for an existing case.
	Upsert(ctx context.Context, tc model.TestCase) (int64, error)
	// GetByID returns nil, nil if the case does not exist.
	GetByID(ctx context.Context, id int64) (*model.TestCase, error)
}
