package model

import "time"

// TestRun is one execution session of a test suite.
type TestRun struct {
	ID           int64  // Database row ID.
	RunID        string // Generated at begin: "<unix ms>-<16 hex chars>".
	ProjectName  string
	BranchName   string
	CommitSHA    string
	CIProvider   string // e.g. "github-actions", "gitlab", "circleci", "local".
	CIBuildID    string
	Environment  string
	StartedAt    time.Time
	FinishedAt   time.Time // Zero until the run is closed.
	DurationMS   int64
	Status       RunStatus
	TotalTests   int // Expected test count, fixed at begin.
	PassedTests  int // Includes flaky tests.
	FailedTests  int
	SkippedTests int
	FlakyTests   int
}

// IsClosed reports whether the run has been finalized.
func (r TestRun) IsClosed() bool {
	return r.Status != RunStatusRunning
}

// RunMetadata carries the caller-supplied attributes of a run at begin time.
type RunMetadata struct {
	ProjectName string
	BranchName  string
	CommitSHA   string
	CIProvider  string
	CIBuildID   string
	Environment string
	TotalTests  int
	// RootDir is the absolute project root. Event file paths under it are
	// stored relative to it. Not persisted.
	RootDir string
}

// Counts is the per-status tally of a run's final attempts.
type Counts struct {
	Passed  int
	Failed  int // Includes timed-out attempts.
	Skipped int
	Flaky   int
}

// PassedIncludingFlaky returns the passed count with flaky tests folded in,
// as stored on the run row. Flaky is a subset of passed.
func (c Counts) PassedIncludingFlaky() int {
	return c.Passed + c.Flaky
}

// Total returns the number of tests with a final attempt.
func (c Counts) Total() int {
	return c.Passed + c.Failed + c.Skipped + c.Flaky
}
