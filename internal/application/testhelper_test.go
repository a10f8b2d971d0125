package application_test

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/runledger/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/runledger/internal/adapter/driven/sqlstore"
	"github.com/ericfisherdev/runledger/internal/application"
	"github.com/ericfisherdev/runledger/internal/domain/model"
	"github.com/ericfisherdev/runledger/internal/domain/port/driven"
)

// setupStores creates a migrated shared in-memory SQLite database named after
// the test and returns the repositories over it.
func setupStores(t *testing.T) (application.Stores, *sqlite.DB) {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)",
		url.PathEscape(t.Name()),
	)

	db, err := sqlite.Open(context.Background(), dsn)
	require.NoError(t, err)
	if err := sqlite.RunMigrations(db.Writer); err != nil {
		_ = db.Close()
		t.Fatalf("run migrations: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return application.Stores{
		Runs:    sqlstore.NewRunRepo(db),
		Cases:   sqlstore.NewCaseRepo(db),
		Results: sqlstore.NewResultRepo(db),
		Metrics: sqlstore.NewMetricRepo(db),
	}, db
}

var testStart = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func event(file, title string, status model.TestStatus, retry int) model.TestEvent {
	return model.TestEvent{
		FilePath:    file,
		TitlePath:   []string{"checkout", title},
		ProjectName: "chromium",
		Browser:     "chromium",
		Status:      status,
		Duration:    250,
		Retry:       retry,
		StartedAt:   testStart.Add(time.Duration(retry) * time.Second),
	}
}

// --- Mock implementations ---

// failingResultStore fails the Nth insert and delegates everything else.
type failingResultStore struct {
	driven.ResultStore
	mu     sync.Mutex
	calls  int
	failOn int
}

func (s *failingResultStore) Insert(ctx context.Context, res model.TestResult) (int64, error) {
	s.mu.Lock()
	s.calls++
	fail := s.calls == s.failOn
	s.mu.Unlock()

	if fail {
		return 0, errors.New("connection reset by peer")
	}
	return s.ResultStore.Insert(ctx, res)
}

// blockingResultStore blocks every insert until ctx is done.
type blockingResultStore struct {
	driven.ResultStore
}

func (s *blockingResultStore) Insert(ctx context.Context, _ model.TestResult) (int64, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

// blockingCaseStore blocks every upsert until ctx is done.
type blockingCaseStore struct {
	driven.CaseStore
}

func (s *blockingCaseStore) Upsert(ctx context.Context, _ model.TestCase) (int64, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

// countingCaseStore counts upserts and hands out sequential IDs.
type countingCaseStore struct {
	mu      sync.Mutex
	upserts int
	ids     map[string]int64
	delay   time.Duration
}

func newCountingCaseStore() *countingCaseStore {
	return &countingCaseStore{ids: make(map[string]int64)}
}

func (s *countingCaseStore) Upsert(_ context.Context, tc model.TestCase) (int64, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts++

	key := tc.TestID + "|" + tc.FilePath + "|" + tc.ProjectName + "|" + tc.Browser
	if id, ok := s.ids[key]; ok {
		return id, nil
	}
	id := int64(len(s.ids) + 1)
	s.ids[key] = id
	return id, nil
}

func (s *countingCaseStore) GetByID(_ context.Context, _ int64) (*model.TestCase, error) {
	return nil, nil
}

func (s *countingCaseStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upserts
}

// mockMetricStore records inserted metrics.
type mockMetricStore struct {
	mu       sync.Mutex
	inserted []model.TestMetric
}

func (m *mockMetricStore) Insert(_ context.Context, metric model.TestMetric) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserted = append(m.inserted, metric)
	return int64(len(m.inserted)), nil
}

func (m *mockMetricStore) ListByResult(_ context.Context, _ int64) ([]model.TestMetric, error) {
	return nil, nil
}

// mockResultStore records inserted results in memory.
type mockResultStore struct {
	mu       sync.Mutex
	inserted []model.TestResult
	counts   map[model.TestStatus]int
	err      error
}

func (m *mockResultStore) Insert(_ context.Context, res model.TestResult) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserted = append(m.inserted, res)
	return int64(len(m.inserted)), nil
}

func (m *mockResultStore) CountFinalByStatus(_ context.Context, _ string) (map[model.TestStatus]int, error) {
	return m.counts, m.err
}

func (m *mockResultStore) ListByRun(_ context.Context, _ string) ([]model.ResultDetail, error) {
	return nil, nil
}

// spyPublisher records published runs.
type spyPublisher struct {
	mu      sync.Mutex
	runs    []model.TestRun
	results [][]model.ResultDetail
	err     error
}

func (p *spyPublisher) Publish(_ context.Context, run model.TestRun, results []model.ResultDetail) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runs = append(p.runs, run)
	p.results = append(p.results, results)
	return p.err
}
