package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/ericfisherdev/runledger/internal/domain/model"
	"github.com/ericfisherdev/runledger/internal/domain/port/driven"
	"github.com/ericfisherdev/runledger/internal/metrics"
)

// ErrInvalidEvent indicates a runner event that cannot be recorded.
var ErrInvalidEvent = errors.New("invalid test event")

// ValidateEvent checks the fields every event must carry.
func ValidateEvent(ev model.TestEvent) error {
	if ev.FilePath == "" {
		return fmt.Errorf("%w: filePath is required", ErrInvalidEvent)
	}
	if len(ev.TitlePath) == 0 {
		return fmt.Errorf("%w: titlePath is required", ErrInvalidEvent)
	}
	if !ev.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidEvent, ev.Status)
	}
	if ev.Retry < 0 {
		return fmt.Errorf("%w: retry must not be negative", ErrInvalidEvent)
	}
	return nil
}

// Writer persists one result row per attempt, plus performance metrics.
type Writer struct {
	results driven.ResultStore
	metrics driven.MetricStore
	timeout time.Duration
	now     func() time.Time
}

// NewWriter creates a Writer. metricStore may be nil, which disables metric
// extraction. A zero timeout leaves writes bounded only by ctx.
func NewWriter(results driven.ResultStore, metricStore driven.MetricStore, timeout time.Duration) *Writer {
	return &Writer{
		results: results,
		metrics: metricStore,
		timeout: timeout,
		now:     time.Now,
	}
}

// WriteResult stores the attempt described by ev. The returned error reports
// only the result row; metric write failures are logged and counted.
func (w *Writer) WriteResult(ctx context.Context, runID string, caseID int64, testType model.TestType, ev model.TestEvent) error {
	if err := ValidateEvent(ev); err != nil {
		return fmt.Errorf("write test result for case %d: %w", caseID, err)
	}

	res := w.buildResult(runID, caseID, ev)

	writeCtx, cancel := w.withTimeout(ctx)
	resultID, err := w.results.Insert(writeCtx, res)
	cancel()
	if err != nil {
		return fmt.Errorf("write test result for case %d: %w", caseID, err)
	}
	metrics.RecordResultWritten(res.Status)

	if testType == model.TestTypePerformance && w.metrics != nil {
		w.writeMetrics(ctx, runID, resultID, res.Stdout)
	}

	return nil
}

func (w *Writer) buildResult(runID string, caseID int64, ev model.TestEvent) model.TestResult {
	durationMS := int64(math.Round(ev.Duration))
	if durationMS < 0 {
		durationMS = 0
	}

	startedAt := ev.StartedAt
	if startedAt.IsZero() {
		startedAt = w.now()
	}
	startedAt = startedAt.UTC()

	res := model.TestResult{
		RunID:      runID,
		TestCaseID: caseID,
		Status:     ev.Status,
		DurationMS: durationMS,
		RetryCount: ev.Retry,
		Stdout:     joinLines(ev.Stdout),
		Stderr:     joinLines(ev.Stderr),
		StartedAt:  startedAt,
		FinishedAt: startedAt.Add(time.Duration(durationMS) * time.Millisecond),
	}

	// A passing final attempt of a flaky test still carries no error.
	if ev.Status != model.TestStatusPassed && ev.Status != model.TestStatusFlaky {
		res.ErrorMessage = ev.ErrorMessage
		res.ErrorStack = ev.ErrorStack
	}

	return res
}

func (w *Writer) writeMetrics(ctx context.Context, runID string, resultID int64, stdout string) {
	written := 0
	for _, m := range ParsePerfMetrics(stdout) {
		m.TestResultID = resultID

		writeCtx, cancel := w.withTimeout(ctx)
		_, err := w.metrics.Insert(writeCtx, m)
		cancel()
		if err != nil {
			metrics.RecordWriteFailure(metrics.FailureMetric)
			slog.Warn("write performance metric failed",
				"run_id", runID, "result_id", resultID, "metric", m.Name, "error", err)
			continue
		}
		written++
	}
	metrics.RecordMetricRows(written)
}

func (w *Writer) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if w.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, w.timeout)
}

// joinLines concatenates captured output chunks. Chunks usually carry their
// own trailing newline, so only missing separators are added.
func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}

	var b strings.Builder
	for i, line := range lines {
		if i > 0 && !strings.HasSuffix(lines[i-1], "\n") {
			b.WriteByte('\n')
		}
		b.WriteString(line)
	}

	return strings.TrimRight(b.String(), "\n")
}
