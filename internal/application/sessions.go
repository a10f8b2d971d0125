package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ericfisherdev/runledger/internal/domain/model"
)

// ErrSessionNotFound indicates no live session exists for a run ID.
var ErrSessionNotFound = errors.New("live session not found")

type session struct {
	handle *RunHandle
	source *ChannelSource
	done   chan struct{}
	stats  PipelineStats
}

// SessionRegistry tracks runs fed incrementally over the live hook. Each
// session owns a ChannelSource drained by its own goroutine.
type SessionRegistry struct {
	mu       sync.Mutex
	pipeline *Pipeline
	buffer   int
	sessions map[string]*session
}

// NewSessionRegistry creates a registry whose sessions buffer up to buffer events.
func NewSessionRegistry(p *Pipeline, buffer int) *SessionRegistry {
	return &SessionRegistry{
		pipeline: p,
		buffer:   buffer,
		sessions: make(map[string]*session),
	}
}

// Start begins a run and starts draining its source. The drain goroutine is
// detached from ctx, which usually belongs to a single HTTP request.
func (r *SessionRegistry) Start(ctx context.Context, meta model.RunMetadata) (*RunHandle, error) {
	h, err := r.pipeline.Recorder().BeginRun(ctx, meta)
	if err != nil {
		return nil, err
	}

	s := &session{
		handle: h,
		source: NewChannelSource(r.buffer),
		done:   make(chan struct{}),
	}

	r.mu.Lock()
	r.sessions[h.RunID] = s
	r.mu.Unlock()

	consumeCtx := context.WithoutCancel(ctx)
	go func() {
		defer close(s.done)
		s.stats = r.pipeline.Consume(consumeCtx, h, s.source)
	}()

	return h, nil
}

// Push queues one event for the run.
func (r *SessionRegistry) Push(ctx context.Context, runID string, ev model.TestEvent) error {
	if err := ValidateEvent(ev); err != nil {
		return err
	}

	s, ok := r.get(runID)
	if !ok {
		return fmt.Errorf("push event to run %s: %w", runID, ErrSessionNotFound)
	}

	if err := s.source.Push(ctx, ev); err != nil {
		if errors.Is(err, ErrSourceClosed) {
			return fmt.Errorf("push event to run %s: %w", runID, ErrSessionNotFound)
		}
		return fmt.Errorf("push event to run %s: %w", runID, err)
	}

	return nil
}

// Finish closes the run's stream, waits for every queued event to be written
// and closes the run.
func (r *SessionRegistry) Finish(ctx context.Context, runID string, outcome model.RunOutcome) (*RunSummary, error) {
	r.mu.Lock()
	s, ok := r.sessions[runID]
	if ok {
		delete(r.sessions, runID)
	}
	r.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("finish run %s: %w", runID, ErrSessionNotFound)
	}

	s.source.Close(outcome)

	select {
	case <-s.done:
	case <-ctx.Done():
		// Put the session back so a later Finish can complete it.
		r.mu.Lock()
		r.sessions[runID] = s
		r.mu.Unlock()
		return nil, fmt.Errorf("finish run %s: %w", runID, ctx.Err())
	}

	return r.pipeline.Finish(context.WithoutCancel(ctx), s.handle, outcome, s.stats)
}

// Active returns the number of open sessions.
func (r *SessionRegistry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Shutdown closes every open session as interrupted.
func (r *SessionRegistry) Shutdown(ctx context.Context) {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		if _, err := r.Finish(ctx, id, model.RunOutcomeInterrupted); err != nil {
			slog.Error("close live session on shutdown failed", "run_id", id, "error", err)
			continue
		}
		slog.Info("closed live session on shutdown", "run_id", id)
	}
}

func (r *SessionRegistry) get(runID string) (*session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[runID]
	return s, ok
}
