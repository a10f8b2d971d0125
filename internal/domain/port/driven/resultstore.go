package driven

import (
	"context"

	"github.com/ericfisherdev/runledger/internal/domain/model"
)

// ResultStore defines the driven port for test result persistence.
type ResultStore interface {
	// Insert stores one attempt and returns its row ID.
	Insert(ctx context.Context, res model.TestResult) (int64, error)
	// CountFinalByStatus counts, per status, the latest attempt (highest retry
	// count) of every case in the run.
	CountFinalByStatus(ctx context.Context, runID string) (map[model.TestStatus]int, error)
	// ListByRun returns every attempt of the run joined with its case, ordered
	// by file path, title and retry count.
	ListByRun(ctx context.Context, runID string) ([]model.ResultDetail, error)
}

// MetricStore defines the driven port for performance metric persistence.
type MetricStore interface {
	Insert(ctx context.Context, m model.TestMetric) (int64, error)
	ListByResult(ctx context.Context, resultID int64) ([]model.TestMetric, error)
}
