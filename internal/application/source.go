package application

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/ericfisherdev/runledger/internal/domain/model"
)

// EventSource yields runner events one at a time. Next returns io.EOF once the
// stream is exhausted.
type EventSource interface {
	Next(ctx context.Context) (model.TestEvent, error)
}

// OutcomeReporter is implemented by sources that know the runner's overall
// outcome once they are exhausted.
type OutcomeReporter interface {
	Outcome() model.RunOutcome
}

// SliceSource replays a fixed set of events, as read from a report file.
type SliceSource struct {
	events  []model.TestEvent
	pos     int
	outcome model.RunOutcome
}

// NewSliceSource creates a source over events with a known outcome.
func NewSliceSource(events []model.TestEvent, outcome model.RunOutcome) *SliceSource {
	return &SliceSource{events: events, outcome: outcome}
}

// Next implements EventSource. It is not safe for concurrent use.
func (s *SliceSource) Next(ctx context.Context) (model.TestEvent, error) {
	if err := ctx.Err(); err != nil {
		return model.TestEvent{}, err
	}
	if s.pos >= len(s.events) {
		return model.TestEvent{}, io.EOF
	}
	ev := s.events[s.pos]
	s.pos++
	return ev, nil
}

// Outcome implements OutcomeReporter.
func (s *SliceSource) Outcome() model.RunOutcome {
	return s.outcome
}

// ErrSourceClosed is returned when pushing to a closed ChannelSource.
var ErrSourceClosed = errors.New("event source closed")

// ChannelSource is fed incrementally by a live reporter. Push and Close may be
// called from any goroutine; Next is called by a single consumer.
type ChannelSource struct {
	mu      sync.RWMutex
	ch      chan model.TestEvent
	closed  bool
	outcome model.RunOutcome
}

// NewChannelSource creates a source with the given buffer size.
func NewChannelSource(buffer int) *ChannelSource {
	if buffer < 0 {
		buffer = 0
	}
	return &ChannelSource{ch: make(chan model.TestEvent, buffer)}
}

// Push queues ev for the consumer, blocking while the buffer is full.
func (s *ChannelSource) Push(ctx context.Context, ev model.TestEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrSourceClosed
	}

	select {
	case s.ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close ends the stream with the given outcome. Events already pushed are
// still delivered. Closing twice is a no-op.
func (s *ChannelSource) Close(outcome model.RunOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.outcome = outcome
	close(s.ch)
}

// Next implements EventSource.
func (s *ChannelSource) Next(ctx context.Context) (model.TestEvent, error) {
	select {
	case ev, ok := <-s.ch:
		if !ok {
			return model.TestEvent{}, io.EOF
		}
		return ev, nil
	case <-ctx.Done():
		return model.TestEvent{}, ctx.Err()
	}
}

// Outcome implements OutcomeReporter.
func (s *ChannelSource) Outcome() model.RunOutcome {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.outcome
}
