// Package saas exports closed runs as JSON files and uploads them to an
// external reporting service.
package saas

import (
	"time"

	"github.com/ericfisherdev/runledger/internal/domain/model"
)

// Payload is the JSON document written to disk and POSTed to the service.
type Payload struct {
	ProjectID   string          `json:"projectId"`
	RunID       string          `json:"runId"`
	ProjectName string          `json:"projectName"`
	Branch      string          `json:"branch"`
	Commit      string          `json:"commit"`
	CIProvider  string          `json:"ciProvider,omitempty"`
	CIBuildID   string          `json:"ciBuildId,omitempty"`
	Environment string          `json:"environment,omitempty"`
	StartedAt   time.Time       `json:"startedAt"`
	FinishedAt  time.Time       `json:"finishedAt"`
	DurationMS  int64           `json:"durationMs"`
	Status      string          `json:"status"`
	Totals      Totals          `json:"totals"`
	Results     []ResultPayload `json:"results"`
}

// Totals mirrors the run row's counts.
type Totals struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Flaky   int `json:"flaky"`
}

// ResultPayload is one attempt, flattened with its case.
type ResultPayload struct {
	TestID       string    `json:"testId"`
	Title        string    `json:"title"`
	File         string    `json:"file"`
	Project      string    `json:"project,omitempty"`
	Browser      string    `json:"browser,omitempty"`
	Type         string    `json:"type"`
	Tags         []string  `json:"tags,omitempty"`
	Status       string    `json:"status"`
	DurationMS   int64     `json:"durationMs"`
	Retry        int       `json:"retry"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	ErrorStack   string    `json:"errorStack,omitempty"`
	StartedAt    time.Time `json:"startedAt"`
	FinishedAt   time.Time `json:"finishedAt"`
}

// BuildPayload assembles the export document for a closed run.
func BuildPayload(projectID string, run model.TestRun, results []model.ResultDetail) Payload {
	p := Payload{
		ProjectID:   projectID,
		RunID:       run.RunID,
		ProjectName: run.ProjectName,
		Branch:      run.BranchName,
		Commit:      run.CommitSHA,
		CIProvider:  run.CIProvider,
		CIBuildID:   run.CIBuildID,
		Environment: run.Environment,
		StartedAt:   run.StartedAt,
		FinishedAt:  run.FinishedAt,
		DurationMS:  run.DurationMS,
		Status:      string(run.Status),
		Totals: Totals{
			Total:   run.TotalTests,
			Passed:  run.PassedTests,
			Failed:  run.FailedTests,
			Skipped: run.SkippedTests,
			Flaky:   run.FlakyTests,
		},
		Results: make([]ResultPayload, 0, len(results)),
	}

	for _, d := range results {
		p.Results = append(p.Results, ResultPayload{
			TestID:       d.Case.TestID,
			Title:        d.Case.Title,
			File:         d.Case.FilePath,
			Project:      d.Case.ProjectName,
			Browser:      d.Case.Browser,
			Type:         string(d.Case.TestType),
			Tags:         d.Case.Tags,
			Status:       string(d.Result.Status),
			DurationMS:   d.Result.DurationMS,
			Retry:        d.Result.RetryCount,
			ErrorMessage: d.Result.ErrorMessage,
			ErrorStack:   d.Result.ErrorStack,
			StartedAt:    d.Result.StartedAt,
			FinishedAt:   d.Result.FinishedAt,
		})
	}

	return p
}
