package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sourcegraph/conc/pool"

	"github.com/ericfisherdev/runledger/internal/domain/model"
	"github.com/ericfisherdev/runledger/internal/domain/port/driven"
	"github.com/ericfisherdev/runledger/internal/metrics"
)

// DefaultMaxConcurrentWrites matches the default persistence pool size.
const DefaultMaxConcurrentWrites = 10

// Stores groups the persistence ports the pipeline writes through.
type Stores struct {
	Runs    driven.RunStore
	Cases   driven.CaseStore
	Results driven.ResultStore
	Metrics driven.MetricStore
}

// Options tunes the pipeline.
type Options struct {
	MaxConcurrentWrites int
	WriteTimeout        time.Duration
}

// PipelineStats describes one drained source.
type PipelineStats struct {
	Received int
	Written  int
	Failed   int
	Errors   *multierror.Error
}

// Err returns the accumulated failures, or nil.
func (s PipelineStats) Err() error {
	return s.Errors.ErrorOrNil()
}

// RunSummary is the result of one complete run through the pipeline.
type RunSummary struct {
	Run     model.TestRun
	Outcome model.RunOutcome
	Stats   PipelineStats
	// PublishErr is set when the closed run could not be exported or uploaded.
	PublishErr error
}

// Pipeline is the shared ingestion path for live and offline sources: resolve
// each event's case, write its result, then close the run from stored rows.
type Pipeline struct {
	recorder     *Recorder
	cases        driven.CaseStore
	writeTimeout time.Duration
	writer       *Writer
	results      driven.ResultStore
	publisher    driven.RunPublisher
	maxWrites    int
}

// NewPipeline wires a recorder, resolver and writer over stores. publisher may
// be nil.
func NewPipeline(stores Stores, publisher driven.RunPublisher, opts Options) *Pipeline {
	maxWrites := opts.MaxConcurrentWrites
	if maxWrites <= 0 {
		maxWrites = DefaultMaxConcurrentWrites
	}

	var recorder *Recorder
	if stores.Results != nil {
		recorder = NewRecorder(stores.Runs, NewAggregator(stores.Results))
	} else {
		recorder = NewRecorder(stores.Runs, nil)
	}

	return &Pipeline{
		recorder:     recorder,
		cases:        stores.Cases,
		writeTimeout: opts.WriteTimeout,
		writer:       NewWriter(stores.Results, stores.Metrics, opts.WriteTimeout),
		results:      stores.Results,
		publisher:    publisher,
		maxWrites:    maxWrites,
	}
}

// Recorder returns the pipeline's run recorder.
func (p *Pipeline) Recorder() *Recorder {
	return p.recorder
}

// Run begins a run, drains src into it and closes it. Closing uses a context
// detached from ctx's cancellation so an interrupted run is still finalized.
func (p *Pipeline) Run(ctx context.Context, meta model.RunMetadata, src EventSource) (*RunSummary, error) {
	h, err := p.recorder.BeginRun(ctx, meta)
	if err != nil {
		return nil, err
	}

	stats := p.Consume(ctx, h, src)

	outcome := outcomeOf(src)
	if ctx.Err() != nil {
		outcome = model.RunOutcomeInterrupted
	}

	return p.Finish(context.WithoutCancel(ctx), h, outcome, stats)
}

// Consume drains src into the run behind h. Resolution and write for one event
// happen in the same goroutine, so a case row always exists before its result.
// Failed events are logged and counted; draining continues.
func (p *Pipeline) Consume(ctx context.Context, h *RunHandle, src EventSource) PipelineStats {
	var (
		mu    sync.Mutex
		stats PipelineStats
	)

	record := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			stats.Failed++
			stats.Errors = multierror.Append(stats.Errors, err)
			return
		}
		stats.Written++
	}

	resolver := NewResolver(p.cases, h.Cases, p.writeTimeout)
	wp := pool.New().WithMaxGoroutines(p.maxWrites)

	for {
		ev, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			slog.Warn("event source stopped", "run_id", h.RunID, "error", err)
			mu.Lock()
			stats.Errors = multierror.Append(stats.Errors, fmt.Errorf("read events: %w", err))
			mu.Unlock()
			break
		}

		mu.Lock()
		stats.Received++
		mu.Unlock()

		wp.Go(func() {
			record(p.process(ctx, resolver, h, ev))
		})
	}

	wp.Wait()

	slog.Info("event source drained",
		"run_id", h.RunID, "received", stats.Received, "written", stats.Written, "failed", stats.Failed)

	return stats
}

func (p *Pipeline) process(ctx context.Context, resolver *Resolver, h *RunHandle, ev model.TestEvent) error {
	runID := h.RunID

	if err := ValidateEvent(ev); err != nil {
		metrics.RecordWriteFailure(metrics.FailureResult)
		slog.Error("skipping invalid test event", "run_id", runID, "file", ev.FilePath, "error", err)
		return err
	}
	ev.FilePath = NormalizeFilePath(h.Metadata.RootDir, ev.FilePath)

	caseID, err := resolver.ResolveCase(ctx, CaseRefFromEvent(ev))
	if err != nil {
		metrics.RecordWriteFailure(metrics.FailureResolve)
		slog.Error("resolve test case failed",
			"run_id", runID, "file", ev.FilePath, "title", ev.JoinedTitlePath(), "error", err)
		return err
	}

	if err := p.writer.WriteResult(ctx, runID, caseID, InferTestType(ev.FilePath), ev); err != nil {
		metrics.RecordWriteFailure(metrics.FailureResult)
		slog.Error("write test result failed",
			"run_id", runID, "case_id", caseID, "retry", ev.Retry, "error", err)
		return err
	}

	return nil
}

// Finish closes the run behind h and publishes it when a publisher is set.
func (p *Pipeline) Finish(ctx context.Context, h *RunHandle, outcome model.RunOutcome, stats PipelineStats) (*RunSummary, error) {
	if outcome == "" {
		outcome = model.RunOutcomePassed
	}

	run, err := p.recorder.EndRun(ctx, h, outcome)
	if err != nil {
		return nil, err
	}

	summary := &RunSummary{
		Run:     *run,
		Outcome: outcome,
		Stats:   stats,
	}
	summary.PublishErr = p.publish(ctx, *run)

	return summary, nil
}

func (p *Pipeline) publish(ctx context.Context, run model.TestRun) error {
	if p.publisher == nil {
		return nil
	}

	details, err := p.results.ListByRun(ctx, run.RunID)
	if err != nil {
		return fmt.Errorf("publish run %s: %w", run.RunID, err)
	}

	if err := p.publisher.Publish(ctx, run, details); err != nil {
		slog.Warn("publish run failed", "run_id", run.RunID, "error", err)
		return err
	}

	return nil
}

func outcomeOf(src EventSource) model.RunOutcome {
	if r, ok := src.(OutcomeReporter); ok {
		return r.Outcome()
	}
	return ""
}
