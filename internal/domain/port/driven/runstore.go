package driven

import (
	"context"
	"errors"
	"time"

	"github.com/ericfisherdev/runledger/internal/domain/model"
)

// Sentinel errors returned by RunStore implementations.
var (
	// ErrRunNotFound indicates no run exists with the given run ID.
	ErrRunNotFound = errors.New("test run not found")

	// ErrRunAlreadyClosed indicates the run was already finalized.
	ErrRunAlreadyClosed = errors.New("test run already closed")
)

// RunFinish carries the values written exactly once when a run is closed.
type RunFinish struct {
	FinishedAt time.Time
	DurationMS int64
	Status     model.RunStatus
	Counts     model.Counts
}

// RunStore defines the driven port for test run persistence.
// Finish returns ErrRunNotFound if the run does not exist and ErrRunAlreadyClosed
// if it is no longer running.
type RunStore interface {
	// Create inserts a new run row and returns its database ID.
	Create(ctx context.Context, run model.TestRun) (int64, error)
	Finish(ctx context.Context, runID string, fin RunFinish) error
	// GetByRunID returns nil, nil if the run does not exist.
	GetByRunID(ctx context.Context, runID string) (*model.TestRun, error)
	// ListRecent returns up to limit runs ordered by start time descending.
	ListRecent(ctx context.Context, limit int) ([]model.TestRun, error)
}
