package model

import "time"

// TestResult is one attempt of one case within one run. Immutable once written.
type TestResult struct {
	ID           int64
	RunID        string
	TestCaseID   int64
	Status       TestStatus
	DurationMS   int64
	RetryCount   int
	ErrorMessage string // Empty when the attempt passed.
	ErrorStack   string
	Stdout       string // Newline-joined captured lines.
	Stderr       string
	StartedAt    time.Time
	FinishedAt   time.Time // Always StartedAt + DurationMS.
}

// TestMetric is a named numeric measurement extracted from a performance test's output.
type TestMetric struct {
	ID           int64
	TestResultID int64
	Name         string
	Value        float64
	Unit         string
}

// ResultDetail is a stored result joined with the case it belongs to.
// Used for summaries and exports, not persisted separately.
type ResultDetail struct {
	Result TestResult
	Case   TestCase
}
