package model

import "time"

// TestCase is a logical test, stable across runs. Identity is the tuple
// (TestID, FilePath, ProjectName, Browser); Title is display-only.
type TestCase struct {
	ID          int64  // Database row ID, referenced by test results.
	TestID      string // Content hash of file path and title path.
	Title       string
	FilePath    string
	ProjectName string // Playwright project, not the run's project.
	Browser     string
	TestType    TestType
	Tags        []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
