package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/runledger/internal/application"
	"github.com/ericfisherdev/runledger/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// StartRunRequest is the JSON body for opening a live run.
type StartRunRequest struct {
	Project     string `json:"project"`
	Branch      string `json:"branch"`
	Commit      string `json:"commit"`
	CIProvider  string `json:"ciProvider"`
	CIBuildID   string `json:"ciBuildId"`
	Environment string `json:"environment"`
	TotalTests  int    `json:"totalTests"`
	RootDir     string `json:"rootDir"`
}

// StartRunResponse is returned when a live run is opened.
type StartRunResponse struct {
	RunID     string `json:"runId"`
	StartedAt string `json:"startedAt"`
}

// EndRunRequest is the JSON body for closing a live run.
type EndRunRequest struct {
	Outcome string `json:"outcome"`
}

// AcceptedResponse acknowledges a queued result.
type AcceptedResponse struct {
	Status string `json:"status"`
}

// RunResponse is the JSON representation of a test run.
type RunResponse struct {
	RunID        string `json:"runId"`
	Project      string `json:"project"`
	Branch       string `json:"branch"`
	Commit       string `json:"commit"`
	CIProvider   string `json:"ciProvider"`
	CIBuildID    string `json:"ciBuildId"`
	Environment  string `json:"environment"`
	Status       string `json:"status"`
	StartedAt    string `json:"startedAt"`
	FinishedAt   string `json:"finishedAt,omitempty"`
	DurationMS   int64  `json:"durationMs"`
	TotalTests   int    `json:"totalTests"`
	PassedTests  int    `json:"passedTests"`
	FailedTests  int    `json:"failedTests"`
	SkippedTests int    `json:"skippedTests"`
	FlakyTests   int    `json:"flakyTests"`
}

// RunSummaryResponse is returned when a live run is closed.
type RunSummaryResponse struct {
	Run          RunResponse `json:"run"`
	Outcome      string      `json:"outcome"`
	Received     int         `json:"received"`
	Written      int         `json:"written"`
	Failed       int         `json:"failed"`
	WriteErrors  []string    `json:"writeErrors,omitempty"`
	PublishError string      `json:"publishError,omitempty"`
}

// ResultResponse is one stored attempt with its case.
type ResultResponse struct {
	ID           int64    `json:"id"`
	TestID       string   `json:"testId"`
	Title        string   `json:"title"`
	File         string   `json:"file"`
	Project      string   `json:"project"`
	Browser      string   `json:"browser"`
	Type         string   `json:"type"`
	Tags         []string `json:"tags"`
	Status       string   `json:"status"`
	DurationMS   int64    `json:"durationMs"`
	Retry        int      `json:"retry"`
	ErrorMessage string   `json:"errorMessage,omitempty"`
	StartedAt    string   `json:"startedAt"`
	FinishedAt   string   `json:"finishedAt"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status         string `json:"status"`
	Time           string `json:"time"`
	ActiveSessions int    `json:"activeSessions"`
}

// toRunResponse converts a domain TestRun to its JSON response representation.
func toRunResponse(run model.TestRun) RunResponse {
	resp := RunResponse{
		RunID:        run.RunID,
		Project:      run.ProjectName,
		Branch:       run.BranchName,
		Commit:       run.CommitSHA,
		CIProvider:   run.CIProvider,
		CIBuildID:    run.CIBuildID,
		Environment:  run.Environment,
		Status:       string(run.Status),
		StartedAt:    formatTime(run.StartedAt),
		DurationMS:   run.DurationMS,
		TotalTests:   run.TotalTests,
		PassedTests:  run.PassedTests,
		FailedTests:  run.FailedTests,
		SkippedTests: run.SkippedTests,
		FlakyTests:   run.FlakyTests,
	}
	if !run.FinishedAt.IsZero() {
		resp.FinishedAt = formatTime(run.FinishedAt)
	}
	return resp
}

// toRunSummaryResponse converts a pipeline summary, flattening accumulated write errors.
func toRunSummaryResponse(s application.RunSummary) RunSummaryResponse {
	resp := RunSummaryResponse{
		Run:      toRunResponse(s.Run),
		Outcome:  string(s.Outcome),
		Received: s.Stats.Received,
		Written:  s.Stats.Written,
		Failed:   s.Stats.Failed,
	}
	if s.Stats.Errors != nil {
		for _, err := range s.Stats.Errors.Errors {
			resp.WriteErrors = append(resp.WriteErrors, err.Error())
		}
	}
	if s.PublishErr != nil {
		resp.PublishError = s.PublishErr.Error()
	}
	return resp
}

// toResultResponse converts a stored result and its case.
func toResultResponse(d model.ResultDetail) ResultResponse {
	tags := d.Case.Tags
	if tags == nil {
		tags = []string{}
	}

	return ResultResponse{
		ID:           d.Result.ID,
		TestID:       d.Case.TestID,
		Title:        d.Case.Title,
		File:         d.Case.FilePath,
		Project:      d.Case.ProjectName,
		Browser:      d.Case.Browser,
		Type:         string(d.Case.TestType),
		Tags:         tags,
		Status:       string(d.Result.Status),
		DurationMS:   d.Result.DurationMS,
		Retry:        d.Result.RetryCount,
		ErrorMessage: d.Result.ErrorMessage,
		StartedAt:    formatTime(d.Result.StartedAt),
		FinishedAt:   formatTime(d.Result.FinishedAt),
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
