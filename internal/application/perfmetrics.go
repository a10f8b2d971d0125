package application

import (
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/ericfisherdev/runledger/internal/domain/model"
)

const (
	// PerfMetricsMarker precedes a single-line JSON object in a performance
	// test's stdout, e.g. PERF_METRICS: {"apiLatency": 120}.
	PerfMetricsMarker = "PERF_METRICS:"

	// PerfMetricsUnit is the unit recorded for every extracted metric.
	PerfMetricsUnit = "ms"
)

// ParsePerfMetrics extracts numeric members from every marker payload in stdout.
// Payloads that are not JSON objects and non-numeric members are skipped. When a
// name repeats, the last value wins. Results are sorted by name.
func ParsePerfMetrics(stdout string) []model.TestMetric {
	values := make(map[string]float64)

	for _, line := range strings.Split(stdout, "\n") {
		idx := strings.Index(line, PerfMetricsMarker)
		if idx < 0 {
			continue
		}

		payload := strings.TrimSpace(line[idx+len(PerfMetricsMarker):])
		if !gjson.Valid(payload) {
			continue
		}

		obj := gjson.Parse(payload)
		if !obj.IsObject() {
			continue
		}

		obj.ForEach(func(key, value gjson.Result) bool {
			if value.Type == gjson.Number {
				values[key.String()] = value.Float()
			}
			return true
		})
	}

	if len(values) == 0 {
		return nil
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	metrics := make([]model.TestMetric, 0, len(names))
	for _, name := range names {
		metrics = append(metrics, model.TestMetric{Name: name, Value: values[name], Unit: PerfMetricsUnit})
	}

	return metrics
}
