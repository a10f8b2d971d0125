package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/runledger/internal/domain/model"
	"github.com/ericfisherdev/runledger/internal/domain/port/driven"
	"github.com/ericfisherdev/runledger/internal/metrics"
)

// ErrNotConfigured indicates the recorder has no persistence target.
var ErrNotConfigured = errors.New("no persistence target configured")

// RunHandle identifies an open run.
type RunHandle struct {
	RunID     string
	ID        int64
	StartedAt time.Time
	Metadata  model.RunMetadata
	// Cases caches resolved case IDs for this run only, so every later run
	// refreshes the case row on its first sighting.
	Cases *CaseCache
}

// Recorder owns the lifecycle of test runs: it opens the row at begin and
// writes the final counts exactly once at end.
type Recorder struct {
	runs       driven.RunStore
	aggregator *Aggregator
	now        func() time.Time
	newID      func() string
}

// NewRecorder creates a Recorder. runs may be nil, in which case BeginRun fails
// with ErrNotConfigured.
func NewRecorder(runs driven.RunStore, aggregator *Aggregator) *Recorder {
	return &Recorder{
		runs:       runs,
		aggregator: aggregator,
		now:        time.Now,
		newID:      NewRunID,
	}
}

// BeginRun inserts a running run with zero counts. TotalTests is taken from
// meta and never recalculated.
func (r *Recorder) BeginRun(ctx context.Context, meta model.RunMetadata) (*RunHandle, error) {
	if r.runs == nil || r.aggregator == nil {
		return nil, fmt.Errorf("begin run: %w", ErrNotConfigured)
	}
	if meta.TotalTests < 0 {
		return nil, fmt.Errorf("begin run: total tests must not be negative, got %d", meta.TotalTests)
	}

	run := model.TestRun{
		RunID:       r.newID(),
		ProjectName: meta.ProjectName,
		BranchName:  meta.BranchName,
		CommitSHA:   meta.CommitSHA,
		CIProvider:  meta.CIProvider,
		CIBuildID:   meta.CIBuildID,
		Environment: meta.Environment,
		StartedAt:   r.now().UTC(),
		Status:      model.RunStatusRunning,
		TotalTests:  meta.TotalTests,
	}

	id, err := r.runs.Create(ctx, run)
	if err != nil {
		return nil, fmt.Errorf("begin run: %w", err)
	}

	slog.Info("test run started",
		"run_id", run.RunID,
		"project", run.ProjectName,
		"branch", run.BranchName,
		"total_tests", run.TotalTests,
	)

	return &RunHandle{
		RunID:     run.RunID,
		ID:        id,
		StartedAt: run.StartedAt,
		Metadata:  meta,
		Cases:     NewCaseCache(),
	}, nil
}

// EndRun aggregates the stored results and closes the run. The run fails only
// on an infrastructure outcome; failing tests still complete it.
func (r *Recorder) EndRun(ctx context.Context, h *RunHandle, outcome model.RunOutcome) (*model.TestRun, error) {
	if r.runs == nil || r.aggregator == nil {
		return nil, fmt.Errorf("end run: %w", ErrNotConfigured)
	}

	finishedAt := r.now().UTC()

	counts, err := r.aggregator.Aggregate(ctx, h.RunID)
	if err != nil {
		return nil, fmt.Errorf("end run %s: %w", h.RunID, err)
	}

	status := model.RunStatusCompleted
	if outcome.IsInfrastructureFailure() {
		status = model.RunStatusFailed
	}

	duration := finishedAt.Sub(h.StartedAt)
	if duration < 0 {
		duration = 0
	}

	err = r.runs.Finish(ctx, h.RunID, driven.RunFinish{
		FinishedAt: finishedAt,
		DurationMS: duration.Milliseconds(),
		Status:     status,
		Counts:     counts,
	})
	if err != nil {
		return nil, fmt.Errorf("end run: %w", err)
	}

	metrics.RecordRunClosed(h.Metadata.ProjectName, status, counts, duration)

	slog.Info("test run finished",
		"run_id", h.RunID,
		"status", status,
		"outcome", outcome,
		"passed", counts.PassedIncludingFlaky(),
		"failed", counts.Failed,
		"skipped", counts.Skipped,
		"flaky", counts.Flaky,
		"duration", duration,
	)

	run, err := r.runs.GetByRunID(ctx, h.RunID)
	if err != nil {
		return nil, fmt.Errorf("end run: %w", err)
	}
	if run == nil {
		return nil, fmt.Errorf("end run %s: %w", h.RunID, driven.ErrRunNotFound)
	}

	return run, nil
}
