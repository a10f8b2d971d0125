// Package report reads Playwright JSON reporter output and flattens it into
// runner events for the ingestion pipeline.
package report

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/tidwall/gjson"

	"github.com/ericfisherdev/runledger/internal/application"
	"github.com/ericfisherdev/runledger/internal/domain/model"
)

// ErrMalformedReport indicates the file is not a Playwright JSON report.
var ErrMalformedReport = errors.New("malformed report")

// requiredFields are the top-level members every report must carry.
var requiredFields = []string{"suites", "stats"}

// Report is the subset of the Playwright JSON report that is ingested.
type Report struct {
	Config Config        `json:"config"`
	Suites []Suite       `json:"suites"`
	Errors []ReportError `json:"errors"`
	Stats  Stats         `json:"stats"`
}

// Config carries the runner configuration, used to map projects to browsers.
type Config struct {
	RootDir  string    `json:"rootDir"`
	Projects []Project `json:"projects"`
}

// Project is one configured Playwright project.
type Project struct {
	Name string     `json:"name"`
	Use  ProjectUse `json:"use"`
}

// ProjectUse holds the project options relevant here.
type ProjectUse struct {
	BrowserName string `json:"browserName"`
}

// Suite is a file or describe block.
type Suite struct {
	Title  string  `json:"title"`
	File   string  `json:"file"`
	Specs  []Spec  `json:"specs"`
	Suites []Suite `json:"suites"`
}

// Spec is one test declaration; it has one Test per project.
type Spec struct {
	Title string   `json:"title"`
	File  string   `json:"file"`
	Tags  []string `json:"tags"`
	Tests []Test   `json:"tests"`
}

// Test is a spec executed in one project, with one Result per attempt.
type Test struct {
	ProjectName string   `json:"projectName"`
	Status      string   `json:"status"` // expected, unexpected, flaky, skipped
	Results     []Result `json:"results"`
}

// Result is one attempt.
type Result struct {
	Status      string        `json:"status"` // passed, failed, timedOut, skipped, interrupted
	Duration    float64       `json:"duration"`
	Retry       int           `json:"retry"`
	StartTime   time.Time     `json:"startTime"`
	Error       *ReportError  `json:"error"`
	Stdout      []OutputChunk `json:"stdout"`
	Stderr      []OutputChunk `json:"stderr"`
	Attachments []Attachment  `json:"attachments"`
}

// ReportError is an error as serialized by Playwright.
type ReportError struct {
	Message string `json:"message"`
	Stack   string `json:"stack"`
}

// Attachment is a file attached to a result.
type Attachment struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Path        string `json:"path"`
}

// Stats is the runner's own summary.
type Stats struct {
	StartTime  time.Time `json:"startTime"`
	Duration   float64   `json:"duration"`
	Expected   int       `json:"expected"`
	Skipped    int       `json:"skipped"`
	Unexpected int       `json:"unexpected"`
	Flaky      int       `json:"flaky"`
}

// OutputChunk is one captured stdout or stderr write: {"text": ...} or a
// base64 {"buffer": ...} for binary output.
type OutputChunk struct {
	Text string
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *OutputChunk) UnmarshalJSON(data []byte) error {
	var raw struct {
		Text   *string `json:"text"`
		Buffer *string `json:"buffer"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		// Older reports emit bare strings.
		var s string
		if strErr := json.Unmarshal(data, &s); strErr != nil {
			return err
		}
		c.Text = s
		return nil
	}

	switch {
	case raw.Text != nil:
		c.Text = *raw.Text
	case raw.Buffer != nil:
		decoded, err := base64.StdEncoding.DecodeString(*raw.Buffer)
		if err != nil {
			return fmt.Errorf("decode output buffer: %w", err)
		}
		c.Text = string(decoded)
	}

	return nil
}

// ParseFile reads and parses the report at path.
func ParseFile(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report %s: %w", path, err)
	}

	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse report %s: %w", path, err)
	}

	return r, nil
}

// Parse checks the report's shape and decodes it.
func Parse(data []byte) (*Report, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: not valid JSON", ErrMalformedReport)
	}

	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: top level is not an object", ErrMalformedReport)
	}

	for _, field := range requiredFields {
		if !root.Get(field).Exists() {
			return nil, fmt.Errorf("%w: missing required field %q", ErrMalformedReport, field)
		}
	}
	if !root.Get("suites").IsArray() {
		return nil, fmt.Errorf("%w: field \"suites\" is not an array", ErrMalformedReport)
	}
	if !root.Get("stats").IsObject() {
		return nil, fmt.Errorf("%w: field \"stats\" is not an object", ErrMalformedReport)
	}

	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedReport, err)
	}

	return &r, nil
}

// CountTests returns the number of leaf tests (one per spec and project),
// used as the run's expected total.
func (r *Report) CountTests() int {
	var count func(suites []Suite) int
	count = func(suites []Suite) int {
		n := 0
		for _, s := range suites {
			for _, spec := range s.Specs {
				n += len(spec.Tests)
			}
			n += count(s.Suites)
		}
		return n
	}
	return count(r.Suites)
}

// Outcome derives the run outcome. Global errors mean the runner did not
// finish normally.
func (r *Report) Outcome() model.RunOutcome {
	switch {
	case len(r.Errors) > 0:
		return model.RunOutcomeInterrupted
	case r.Stats.Unexpected > 0:
		return model.RunOutcomeFailed
	default:
		return model.RunOutcomePassed
	}
}

// Events flattens suite → spec → test → result into one event per attempt.
// File paths are made relative to the report's root directory.
func (r *Report) Events() []model.TestEvent {
	browsers := make(map[string]string, len(r.Config.Projects))
	for _, p := range r.Config.Projects {
		browsers[p.Name] = p.Use.BrowserName
	}

	var events []model.TestEvent
	var walk func(s Suite, titles []string, file string)
	walk = func(s Suite, titles []string, file string) {
		if s.File != "" {
			file = s.File
		}

		for _, spec := range s.Specs {
			specFile := file
			if spec.File != "" {
				specFile = spec.File
			}
			titlePath := append(append([]string{}, titles...), spec.Title)

			for _, test := range spec.Tests {
				events = append(events, testEvents(application.NormalizeFilePath(r.Config.RootDir, specFile), titlePath, spec, test, browsers)...)
			}
		}

		for _, child := range s.Suites {
			walk(child, append(append([]string{}, titles...), child.Title), file)
		}
	}

	// Top-level suites stand for files; their titles are not describe blocks.
	for _, s := range r.Suites {
		walk(s, nil, s.File)
	}

	return events
}

// Source returns an event source over the flattened report.
func (r *Report) Source() *application.SliceSource {
	return application.NewSliceSource(r.Events(), r.Outcome())
}

func testEvents(file string, titlePath []string, spec Spec, test Test, browsers map[string]string) []model.TestEvent {
	browser := browsers[test.ProjectName]
	if browser == "" {
		browser = test.ProjectName
	}

	events := make([]model.TestEvent, 0, len(test.Results))
	for i, res := range test.Results {
		status := mapStatus(res.Status)
		if test.Status == "flaky" && i == len(test.Results)-1 && status == model.TestStatusPassed {
			status = model.TestStatusFlaky
		}

		ev := model.TestEvent{
			FilePath:    file,
			TitlePath:   titlePath,
			Title:       spec.Title,
			ProjectName: test.ProjectName,
			Browser:     browser,
			Tags:        spec.Tags,
			Status:      status,
			Duration:    res.Duration,
			Retry:       res.Retry,
			Stdout:      chunkTexts(res.Stdout),
			Stderr:      chunkTexts(res.Stderr),
			StartedAt:   res.StartTime,
		}
		if res.Error != nil {
			ev.ErrorMessage = res.Error.Message
			ev.ErrorStack = res.Error.Stack
		}
		for _, a := range res.Attachments {
			ev.Attachments = append(ev.Attachments, model.Attachment{
				Name:        a.Name,
				ContentType: a.ContentType,
				Path:        a.Path,
			})
		}

		events = append(events, ev)
	}

	return events
}

func mapStatus(s string) model.TestStatus {
	switch s {
	case "passed":
		return model.TestStatusPassed
	case "skipped":
		return model.TestStatusSkipped
	case "timedOut":
		return model.TestStatusTimedOut
	default:
		// failed, interrupted and anything newer.
		return model.TestStatusFailed
	}
}

func chunkTexts(chunks []OutputChunk) []string {
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		texts = append(texts, c.Text)
	}
	return texts
}
