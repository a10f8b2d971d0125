package httphandler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/runledger/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/runledger/internal/adapter/driven/sqlstore"
	httphandler "github.com/ericfisherdev/runledger/internal/adapter/driving/http"
	"github.com/ericfisherdev/runledger/internal/application"
	"github.com/ericfisherdev/runledger/internal/domain/model"
	"github.com/ericfisherdev/runledger/internal/domain/port/driven"
)

// --- Mock implementations ---

type errRunStore struct {
	err error
}

func (m *errRunStore) Create(_ context.Context, _ model.TestRun) (int64, error) { return 0, m.err }
func (m *errRunStore) Finish(_ context.Context, _ string, _ driven.RunFinish) error {
	return m.err
}
func (m *errRunStore) GetByRunID(_ context.Context, _ string) (*model.TestRun, error) {
	return nil, m.err
}
func (m *errRunStore) ListRecent(_ context.Context, _ int) ([]model.TestRun, error) {
	return nil, m.err
}

// --- Helpers ---

type testServer struct {
	handler  http.Handler
	stores   application.Stores
	sessions *application.SessionRegistry
}

func setupServer(t *testing.T) *testServer {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)",
		url.PathEscape(t.Name()))
	db, err := sqlite.Open(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.RunMigrations(db.Writer))

	stores := application.Stores{
		Runs:    sqlstore.NewRunRepo(db),
		Cases:   sqlstore.NewCaseRepo(db),
		Results: sqlstore.NewResultRepo(db),
		Metrics: sqlstore.NewMetricRepo(db),
	}
	sessions := application.NewSessionRegistry(application.NewPipeline(stores, nil, application.Options{}), 16)
	h := httphandler.NewHandler(sessions, stores.Runs, stores.Results, "", slog.Default())

	return &testServer{
		handler:  httphandler.NewServeMux(h, slog.Default()),
		stores:   stores,
		sessions: sessions,
	}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) startRun(t *testing.T, total int) string {
	t.Helper()

	rec := s.do(t, http.MethodPost, "/api/v1/runs",
		fmt.Sprintf(`{"project":"storefront","branch":"main","commit":"abc123","ciProvider":"local","totalTests":%d}`, total))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp httphandler.StartRunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.RunID)
	return resp.RunID
}

func resultBody(title, status string, retry int) string {
	return fmt.Sprintf(`{
		"filePath": "tests/cart.spec.ts",
		"titlePath": ["cart", %q],
		"projectName": "chromium",
		"browser": "chromium",
		"status": %q,
		"durationMs": 120.4,
		"retry": %d,
		"startedAt": "2026-03-01T09:00:00Z",
		"stdout": ["hello\n"]
	}`, title, status, retry)
}

// --- Tests ---

func TestLiveRunLifecycle(t *testing.T) {
	s := setupServer(t)
	runID := s.startRun(t, 2)

	rec := s.do(t, http.MethodPost, "/api/v1/runs/"+runID+"/results", resultBody("adds item", "passed", 0))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	rec = s.do(t, http.MethodPost, "/api/v1/runs/"+runID+"/results", resultBody("removes item", "failed", 0))
	require.Equal(t, http.StatusAccepted, rec.Code)
	rec = s.do(t, http.MethodPost, "/api/v1/runs/"+runID+"/results", resultBody("removes item", "flaky", 1))
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/runs/"+runID+"/end", `{"outcome":"passed"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var summary httphandler.RunSummaryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, runID, summary.Run.RunID)
	assert.Equal(t, "completed", summary.Run.Status)
	assert.Equal(t, 3, summary.Received)
	assert.Equal(t, 3, summary.Written)
	assert.Equal(t, 2, summary.Run.PassedTests)
	assert.Equal(t, 1, summary.Run.FlakyTests)
	assert.Zero(t, summary.Run.FailedTests)
	assert.NotEmpty(t, summary.Run.FinishedAt)

	rec = s.do(t, http.MethodGet, "/api/v1/runs/"+runID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var run httphandler.RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, "main", run.Branch)
	assert.Equal(t, 2, run.TotalTests)

	rec = s.do(t, http.MethodGet, "/api/v1/runs/"+runID+"/results", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var results []httphandler.ResultResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 3)
	assert.Equal(t, int64(120), results[0].DurationMS)
	assert.Equal(t, "e2e", results[0].Type)
}

func TestPushResult_PathRelativeToRootDir(t *testing.T) {
	s := setupServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/runs", `{"project":"storefront","rootDir":"/repo","totalTests":1}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var started httphandler.StartRunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))

	body := strings.Replace(resultBody("adds item", "passed", 0), "tests/cart.spec.ts", "/repo/tests/cart.spec.ts", 1)
	rec = s.do(t, http.MethodPost, "/api/v1/runs/"+started.RunID+"/results", body)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	rec = s.do(t, http.MethodPost, "/api/v1/runs/"+started.RunID+"/end", `{"outcome":"passed"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/v1/runs/"+started.RunID+"/results", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var results []httphandler.ResultResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "tests/cart.spec.ts", results[0].File)
}

func TestStartRun_InvalidBody(t *testing.T) {
	s := setupServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/runs", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/runs", `{"totalTests": -1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartRun_NotConfigured(t *testing.T) {
	sessions := application.NewSessionRegistry(application.NewPipeline(application.Stores{}, nil, application.Options{}), 1)
	h := httphandler.NewHandler(sessions, nil, nil, "", slog.Default())
	mux := httphandler.NewServeMux(h, slog.Default())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader(`{"project":"x"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestPushResult_UnknownRun(t *testing.T) {
	s := setupServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/runs/nope/results", resultBody("adds item", "passed", 0))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPushResult_InvalidEvent(t *testing.T) {
	s := setupServer(t)
	runID := s.startRun(t, 1)

	rec := s.do(t, http.MethodPost, "/api/v1/runs/"+runID+"/results", resultBody("adds item", "exploded", 0))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown status")

	rec = s.do(t, http.MethodPost, "/api/v1/runs/"+runID+"/results", `{"status":"passed"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "filePath is required")

	rec = s.do(t, http.MethodPost, "/api/v1/runs/"+runID+"/results", `[`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEndRun_InvalidOutcome(t *testing.T) {
	s := setupServer(t)
	runID := s.startRun(t, 0)

	rec := s.do(t, http.MethodPost, "/api/v1/runs/"+runID+"/end", `{"outcome":"exploded"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 1, s.sessions.Active(), "session stays open after a rejected close")
}

func TestEndRun_Twice(t *testing.T) {
	s := setupServer(t)
	runID := s.startRun(t, 0)

	rec := s.do(t, http.MethodPost, "/api/v1/runs/"+runID+"/end", `{}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/runs/"+runID+"/end", `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEndRun_InterruptedFailsRun(t *testing.T) {
	s := setupServer(t)
	runID := s.startRun(t, 4)

	rec := s.do(t, http.MethodPost, "/api/v1/runs/"+runID+"/end", `{"outcome":"interrupted"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary httphandler.RunSummaryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, "failed", summary.Run.Status)
	assert.Equal(t, "interrupted", summary.Outcome)
}

func TestGetRun_NotFound(t *testing.T) {
	s := setupServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/runs/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/runs/missing/results", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListRuns(t *testing.T) {
	s := setupServer(t)
	first := s.startRun(t, 1)
	second := s.startRun(t, 1)

	rec := s.do(t, http.MethodGet, "/api/v1/runs?limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var runs []httphandler.RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 2)

	ids := []string{runs[0].RunID, runs[1].RunID}
	assert.ElementsMatch(t, []string{first, second}, ids)

	rec = s.do(t, http.MethodGet, "/api/v1/runs?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetRun_StoreError(t *testing.T) {
	sessions := application.NewSessionRegistry(application.NewPipeline(application.Stores{}, nil, application.Options{}), 1)
	h := httphandler.NewHandler(sessions, &errRunStore{err: errors.New("disk I/O error")}, nil, "", slog.Default())
	mux := httphandler.NewServeMux(h, slog.Default())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs/abc", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}

func TestHealth(t *testing.T) {
	s := setupServer(t)
	s.startRun(t, 1)

	rec := s.do(t, http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp httphandler.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.ActiveSessions)
}

func TestMetricsEndpoint(t *testing.T) {
	s := setupServer(t)

	rec := s.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
