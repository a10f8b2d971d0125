package model

// RunStatus represents the lifecycle state of a test run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// TestStatus represents the outcome of a single test attempt.
type TestStatus string

const (
	TestStatusPassed   TestStatus = "passed"
	TestStatusFailed   TestStatus = "failed"
	TestStatusSkipped  TestStatus = "skipped"
	TestStatusFlaky    TestStatus = "flaky"
	TestStatusTimedOut TestStatus = "timedOut"
)

// Valid reports whether s is one of the statuses a result row may carry.
func (s TestStatus) Valid() bool {
	switch s {
	case TestStatusPassed, TestStatusFailed, TestStatusSkipped, TestStatusFlaky, TestStatusTimedOut:
		return true
	}
	return false
}

// IsFailure reports whether the attempt did not pass.
func (s TestStatus) IsFailure() bool {
	return s == TestStatusFailed || s == TestStatusTimedOut
}

// TestType is a coarse classification derived from a test's file path.
type TestType string

const (
	TestTypeAPI         TestType = "api"
	TestTypeUI          TestType = "ui"
	TestTypePerformance TestType = "performance"
	TestTypeComponent   TestType = "component"
	TestTypeStorybook   TestType = "storybook"
	TestTypeE2E         TestType = "e2e"
)

// RunOutcome is the overall result the test runner reports when a run ends.
type RunOutcome string

const (
	RunOutcomePassed      RunOutcome = "passed"
	RunOutcomeFailed      RunOutcome = "failed"      // One or more tests failed.
	RunOutcomeTimedOut    RunOutcome = "timedout"    // Global timeout hit.
	RunOutcomeInterrupted RunOutcome = "interrupted" // Runner crashed or was stopped.
)

// IsInfrastructureFailure reports whether the run ended for reasons other than
// test outcomes. Such runs are closed with RunStatusFailed.
func (o RunOutcome) IsInfrastructureFailure() bool {
	return o == RunOutcomeTimedOut || o == RunOutcomeInterrupted
}
