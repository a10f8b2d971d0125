package sqlstore

import (
	"context"
	"fmt"

	"github.com/ericfisherdev/runledger/internal/domain/model"
	"github.com/ericfisherdev/runledger/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.MetricStore = (*MetricRepo)(nil)

// MetricRepo is the SQL implementation of the MetricStore port interface.
type MetricRepo struct {
	conn Conn
}

// NewMetricRepo creates a new MetricRepo backed by the given connection.
func NewMetricRepo(conn Conn) *MetricRepo {
	return &MetricRepo{conn: conn}
}

// Insert stores one metric for a test result.
func (r *MetricRepo) Insert(ctx context.Context, m model.TestMetric) (int64, error) {
	const query = `
		INSERT INTO test_metrics (test_result_id, metric_name, metric_value, metric_unit)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`

	id, err := r.conn.Insert(ctx, query, m.TestResultID, m.Name, m.Value, m.Unit)
	if err != nil {
		return 0, fmt.Errorf("insert metric %s for result %d: %w", m.Name, m.TestResultID, err)
	}

	return id, nil
}

// ListByResult returns the metrics of one result ordered by name.
func (r *MetricRepo) ListByResult(ctx context.Context, resultID int64) ([]model.TestMetric, error) {
	const query = `
		SELECT id, test_result_id, metric_name, metric_value, metric_unit
		FROM test_metrics
		WHERE test_result_id = ?
		ORDER BY metric_name
	`

	rows, err := r.conn.Query(ctx, query, resultID)
	if err != nil {
		return nil, fmt.Errorf("query metrics for result %d: %w", resultID, err)
	}
	defer rows.Close()

	var metrics []model.TestMetric
	for rows.Next() {
		var m model.TestMetric
		if err := rows.Scan(&m.ID, &m.TestResultID, &m.Name, &m.Value, &m.Unit); err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		metrics = append(metrics, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metrics: %w", err)
	}

	return metrics, nil
}
