// Package metrics exposes Prometheus counters for the ingestion pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ericfisherdev/runledger/internal/domain/model"
)

const (
	MetricsNamespace = "runledger"
)

var (
	resultsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "results_written_total",
		Help:      "Count of test result rows written",
	}, []string{
		"status",
	})

	writeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "write_failures_total",
		Help:      "Count of failed persistence writes during ingestion",
	}, []string{
		"kind",
	})

	metricRowsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "perf_metrics_written_total",
		Help:      "Count of performance metric rows written",
	})

	runsClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "runs_closed_total",
		Help:      "Count of test runs closed",
	}, []string{
		"project",
		"status",
	})

	runDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "last_run_duration_seconds",
		Help:      "Duration of the most recently closed run",
	}, []string{
		"project",
	})

	runTests = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "last_run_tests",
		Help:      "Final test counts of the most recently closed run",
	}, []string{
		"project",
		"result",
	})
)

// Write failure kinds.
const (
	FailureResolve = "resolve"
	FailureResult  = "result"
	FailureMetric  = "metric"
)

func RecordResultWritten(status model.TestStatus) {
	resultsWritten.WithLabelValues(string(status)).Inc()
}

func RecordWriteFailure(kind string) {
	writeFailures.WithLabelValues(kind).Inc()
}

func RecordMetricRows(n int) {
	if n <= 0 {
		return
	}
	metricRowsWritten.Add(float64(n))
}

// RecordRunClosed records the final state of a run.
func RecordRunClosed(project string, status model.RunStatus, counts model.Counts, duration time.Duration) {
	runsClosed.WithLabelValues(project, string(status)).Inc()
	runDuration.WithLabelValues(project).Set(duration.Seconds())
	runTests.WithLabelValues(project, "passed").Set(float64(counts.PassedIncludingFlaky()))
	runTests.WithLabelValues(project, "failed").Set(float64(counts.Failed))
	runTests.WithLabelValues(project, "skipped").Set(float64(counts.Skipped))
	runTests.WithLabelValues(project, "flaky").Set(float64(counts.Flaky))
}
