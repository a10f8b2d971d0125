package application

import (
	"context"
	"fmt"

	"github.com/ericfisherdev/runledger/internal/domain/model"
	"github.com/ericfisherdev/runledger/internal/domain/port/driven"
)

// Aggregator computes a run's final counts from its stored results.
type Aggregator struct {
	results driven.ResultStore
}

// NewAggregator creates an Aggregator over the given result store.
func NewAggregator(results driven.ResultStore) *Aggregator {
	return &Aggregator{results: results}
}

// Aggregate tallies the final attempt of every case in the run. The status on
// each row is taken as-is; timed-out attempts count as failed.
func (a *Aggregator) Aggregate(ctx context.Context, runID string) (model.Counts, error) {
	byStatus, err := a.results.CountFinalByStatus(ctx, runID)
	if err != nil {
		return model.Counts{}, fmt.Errorf("aggregate run %s: %w", runID, err)
	}

	return model.Counts{
		Passed:  byStatus[model.TestStatusPassed],
		Failed:  byStatus[model.TestStatusFailed] + byStatus[model.TestStatusTimedOut],
		Skipped: byStatus[model.TestStatusSkipped],
		Flaky:   byStatus[model.TestStatusFlaky],
	}, nil
}
