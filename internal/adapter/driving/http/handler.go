// Package httphandler serves the live reporting hook: a Playwright reporter
// shim opens a run, streams results and closes it over this API.
package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ericfisherdev/runledger/internal/application"
	"github.com/ericfisherdev/runledger/internal/domain/model"
	"github.com/ericfisherdev/runledger/internal/domain/port/driven"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	sessions *application.SessionRegistry
	runs     driven.RunStore
	results  driven.ResultStore
	rootDir  string
	logger   *slog.Logger
}

// NewHandler creates a Handler with all required dependencies. rootDir is
// the project root used when a start request does not name one.
func NewHandler(
	sessions *application.SessionRegistry,
	runs driven.RunStore,
	results driven.ResultStore,
	rootDir string,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		sessions: sessions,
		runs:     runs,
		results:  results,
		rootDir:  rootDir,
		logger:   logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/runs", h.StartRun)
	mux.HandleFunc("GET /api/v1/runs", h.ListRuns)
	mux.HandleFunc("GET /api/v1/runs/{runID}", h.GetRun)
	mux.HandleFunc("POST /api/v1/runs/{runID}/results", h.PushResult)
	mux.HandleFunc("GET /api/v1/runs/{runID}/results", h.ListResults)
	mux.HandleFunc("POST /api/v1/runs/{runID}/end", h.EndRun)
	mux.HandleFunc("GET /api/v1/health", h.Health)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, bodyLimitMiddleware(mux))
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// StartRun opens a live run and returns its generated run ID.
func (h *Handler) StartRun(w http.ResponseWriter, r *http.Request) {
	var req StartRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.TotalTests < 0 {
		writeError(w, http.StatusBadRequest, "totalTests must not be negative")
		return
	}

	rootDir := req.RootDir
	if rootDir == "" {
		rootDir = h.rootDir
	}

	handle, err := h.sessions.Start(r.Context(), model.RunMetadata{
		ProjectName: req.Project,
		BranchName:  req.Branch,
		CommitSHA:   req.Commit,
		CIProvider:  req.CIProvider,
		CIBuildID:   req.CIBuildID,
		Environment: req.Environment,
		TotalTests:  req.TotalTests,
		RootDir:     rootDir,
	})
	if err != nil {
		if errors.Is(err, application.ErrNotConfigured) {
			writeError(w, http.StatusServiceUnavailable, "no persistence target configured")
			return
		}
		h.logger.Error("failed to start run", "project", req.Project, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, StartRunResponse{
		RunID:     handle.RunID,
		StartedAt: formatTime(handle.StartedAt),
	})
}

// PushResult queues one attempt for a live run.
func (h *Handler) PushResult(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("runID")

	var ev model.TestEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.sessions.Push(r.Context(), runID, ev); err != nil {
		switch {
		case errors.Is(err, application.ErrInvalidEvent):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, application.ErrSessionNotFound):
			writeError(w, http.StatusNotFound, "no live run with this id")
		default:
			h.logger.Error("failed to queue result", "run_id", runID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, AcceptedResponse{Status: "accepted"})
}

// EndRun closes a live run once every queued result has been written.
func (h *Handler) EndRun(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("runID")

	var req EndRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	outcome, ok := parseOutcome(req.Outcome)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid outcome: expected passed, failed, timedout or interrupted")
		return
	}

	summary, err := h.sessions.Finish(r.Context(), runID, outcome)
	if err != nil {
		if errors.Is(err, application.ErrSessionNotFound) || errors.Is(err, driven.ErrRunAlreadyClosed) {
			writeError(w, http.StatusNotFound, "no live run with this id")
			return
		}
		h.logger.Error("failed to end run", "run_id", runID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toRunSummaryResponse(*summary))
}

// GetRun returns a stored run, open or closed.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("runID")

	run, err := h.runs.GetByRunID(r.Context(), runID)
	if err != nil {
		h.logger.Error("failed to get run", "run_id", runID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if run == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}

	writeJSON(w, http.StatusOK, toRunResponse(*run))
}

// ListRuns returns the most recent runs, newest first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxListLimit)
	}

	runs, err := h.runs.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list runs", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]RunResponse, 0, len(runs))
	for _, run := range runs {
		resp = append(resp, toRunResponse(run))
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListResults returns every stored attempt of a run.
func (h *Handler) ListResults(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("runID")

	run, err := h.runs.GetByRunID(r.Context(), runID)
	if err != nil {
		h.logger.Error("failed to get run", "run_id", runID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}

	details, err := h.results.ListByRun(r.Context(), runID)
	if err != nil {
		h.logger.Error("failed to list results", "run_id", runID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]ResultResponse, 0, len(details))
	for _, d := range details {
		resp = append(resp, toResultResponse(d))
	}

	writeJSON(w, http.StatusOK, resp)
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:         "ok",
		Time:           time.Now().UTC().Format(time.RFC3339),
		ActiveSessions: h.sessions.Active(),
	})
}

// parseOutcome maps the request outcome; an empty outcome means passed.
func parseOutcome(s string) (model.RunOutcome, bool) {
	switch model.RunOutcome(s) {
	case "":
		return model.RunOutcomePassed, true
	case model.RunOutcomePassed, model.RunOutcomeFailed, model.RunOutcomeTimedOut, model.RunOutcomeInterrupted:
		return model.RunOutcome(s), true
	default:
		return "", false
	}
}
