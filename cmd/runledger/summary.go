package main

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/urfave/cli/v2"

	"github.com/ericfisherdev/runledger/internal/domain/model"
)

var summaryCommand = &cli.Command{
	Name:      "summary",
	Usage:     "Print a stored run and its failing results",
	ArgsUsage: "<run-id>",
	Action:    summary,
}

func summary(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: runledger summary <run-id>", 1)
	}
	runID := c.Args().First()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	st, err := openStorage(c.Context, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := st.stores.Runs.GetByRunID(c.Context, runID)
	if err != nil {
		return err
	}
	if run == nil {
		return cli.Exit(fmt.Sprintf("run %s not found", runID), 1)
	}

	details, err := st.stores.Results.ListByRun(c.Context, runID)
	if err != nil {
		return err
	}

	renderRun(c.App.Writer, *run)
	renderFailures(c.App.Writer, details)
	return nil
}

func renderRun(w io.Writer, run model.TestRun) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("Run %s", run.RunID))

	t.AppendHeader(table.Row{
		"Project", "Branch", "Commit", "Status", "Duration", "Total", "Passed", "Failed", "Skipped", "Flaky",
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Commit", WidthMax: 12},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Total", Align: text.AlignRight},
		{Name: "Passed", Align: text.AlignRight},
		{Name: "Failed", Align: text.AlignRight},
		{Name: "Skipped", Align: text.AlignRight},
		{Name: "Flaky", Align: text.AlignRight},
	})

	t.AppendRow(table.Row{
		run.ProjectName,
		run.BranchName,
		run.CommitSHA,
		run.Status,
		formatDuration(run.DurationMS),
		run.TotalTests,
		run.PassedTests,
		run.FailedTests,
		run.SkippedTests,
		run.FlakyTests,
	})

	t.Render()
}

// renderFailures lists failing attempts; nothing is printed when every attempt passed.
func renderFailures(w io.Writer, details []model.ResultDetail) {
	var failing []model.ResultDetail
	for _, d := range details {
		if d.Result.Status.IsFailure() {
			failing = append(failing, d)
		}
	}
	if len(failing) == 0 {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("Failures (%d)", len(failing)))

	t.AppendHeader(table.Row{"File", "Test", "Browser", "Retry", "Status", "Error"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "File", AutoMerge: true},
		{Name: "Test", WidthMax: 50, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Retry", Align: text.AlignRight},
		{Name: "Error", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
	})

	for _, d := range failing {
		t.AppendRow(table.Row{
			d.Case.FilePath,
			d.Case.Title,
			d.Case.Browser,
			d.Result.RetryCount,
			d.Result.Status,
			firstLine(d.Result.ErrorMessage),
		})
	}

	t.Render()
}

func formatDuration(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).String()
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
