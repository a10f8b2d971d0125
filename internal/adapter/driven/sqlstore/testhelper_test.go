package sqlstore_test

import (
	"context"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/runledger/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/runledger/internal/domain/model"
)

// setupTestDB creates a named shared in-memory SQLite database for testing.
// A unique name derived from t.Name() isolates tests from each other.
func setupTestDB(t *testing.T) *sqlite.DB {
	t.Helper()

	// WAL mode is not applicable to in-memory databases; omit journal_mode pragma.
	dsn := fmt.Sprintf(
		"file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)",
		url.PathEscape(t.Name()),
	)

	db, err := sqlite.Open(context.Background(), dsn)
	require.NoError(t, err)

	if err := sqlite.RunMigrations(db.Writer); err != nil {
		_ = db.Close()
		t.Fatalf("run migrations: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })

	return db
}

func makeRun(runID string) model.TestRun {
	return model.TestRun{
		RunID:       runID,
		ProjectName: "storefront",
		BranchName:  "main",
		CommitSHA:   "4b825dc642cb6eb9a060e54bf8d69288fbee4904",
		CIProvider:  "github-actions",
		CIBuildID:   "9912",
		Environment: "staging",
		StartedAt:   time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Status:      model.RunStatusRunning,
		TotalTests:  3,
	}
}

func makeCase(testID, title string) model.TestCase {
	return model.TestCase{
		TestID:      testID,
		Title:       title,
		FilePath:    "tests/checkout.spec.ts",
		ProjectName: "chromium",
		Browser:     "chromium",
		TestType:    model.TestTypeE2E,
		Tags:        []string{"@smoke", "@checkout"},
	}
}
