package model

import (
	"strings"
	"time"
)

// TitleSeparator joins describe-block titles and the test title into a title path.
const TitleSeparator = " > "

// TestEvent is one executed attempt as reported by a test runner, before it
// has been resolved to a case or persisted.
type TestEvent struct {
	FilePath     string       `json:"filePath"`
	TitlePath    []string     `json:"titlePath"` // Describe blocks then the test title.
	Title        string       `json:"title,omitempty"`
	ProjectName  string       `json:"projectName,omitempty"`
	Browser      string       `json:"browser,omitempty"`
	Tags         []string     `json:"tags,omitempty"`
	Status       TestStatus   `json:"status"`
	Duration     float64      `json:"durationMs"` // Milliseconds, possibly fractional.
	Retry        int          `json:"retry"`
	ErrorMessage string       `json:"errorMessage,omitempty"`
	ErrorStack   string       `json:"errorStack,omitempty"`
	Stdout       []string     `json:"stdout,omitempty"`
	Stderr       []string     `json:"stderr,omitempty"`
	StartedAt    time.Time    `json:"startedAt"`
	Attachments  []Attachment `json:"attachments,omitempty"`
}

// Attachment describes a file a test attached to its result (trace, screenshot, video).
type Attachment struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Path        string `json:"path,omitempty"`
}

// JoinedTitlePath returns the title path as stored and hashed.
func (e TestEvent) JoinedTitlePath() string {
	return strings.Join(e.TitlePath, TitleSeparator)
}

// DisplayTitle returns Title, or the last title path element when Title is empty.
func (e TestEvent) DisplayTitle() string {
	if e.Title != "" {
		return e.Title
	}
	if len(e.TitlePath) == 0 {
		return ""
	}
	return e.TitlePath[len(e.TitlePath)-1]
}
