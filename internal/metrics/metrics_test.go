package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/ericfisherdev/runledger/internal/domain/model"
)

func TestRecordResultWritten(t *testing.T) {
	before := testutil.ToFloat64(resultsWritten.WithLabelValues("flaky"))

	RecordResultWritten(model.TestStatusFlaky)
	RecordResultWritten(model.TestStatusFlaky)

	assert.Equal(t, before+2, testutil.ToFloat64(resultsWritten.WithLabelValues("flaky")))
}

func TestRecordMetricRows_IgnoresNonPositive(t *testing.T) {
	before := testutil.ToFloat64(metricRowsWritten)

	RecordMetricRows(0)
	RecordMetricRows(-3)
	assert.Equal(t, before, testutil.ToFloat64(metricRowsWritten))

	RecordMetricRows(2)
	assert.Equal(t, before+2, testutil.ToFloat64(metricRowsWritten))
}

func TestRecordRunClosed(t *testing.T) {
	RecordRunClosed("metrics-test", model.RunStatusCompleted, model.Counts{Passed: 2, Flaky: 1, Failed: 1}, 90*time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(runsClosed.WithLabelValues("metrics-test", "completed")))
	assert.Equal(t, 90.0, testutil.ToFloat64(runDuration.WithLabelValues("metrics-test")))
	assert.Equal(t, 3.0, testutil.ToFloat64(runTests.WithLabelValues("metrics-test", "passed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(runTests.WithLabelValues("metrics-test", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(runTests.WithLabelValues("metrics-test", "flaky")))
}
