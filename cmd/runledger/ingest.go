package main

import (
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v2"

	"github.com/ericfisherdev/runledger/internal/adapter/driving/report"
)

var ingestCommand = &cli.Command{
	Name:      "ingest",
	Usage:     "Record a Playwright JSON report as one run",
	ArgsUsage: "<report.json>",
	Action:    ingest,
}

func ingest(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: runledger ingest <report.json>", 1)
	}
	path := c.Args().First()

	rep, err := report.ParseFile(path)
	if err != nil {
		return cli.Exit(fmt.Sprintf("ingest %s: %v", path, err), 1)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	st, err := openStorage(c.Context, cfg)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer st.Close()

	summary, err := newPipeline(cfg, st.stores).Run(c.Context, cfg.RunMetadata(rep.CountTests()), rep.Source())
	if err != nil {
		return cli.Exit(fmt.Sprintf("ingest %s: %v", path, err), 1)
	}

	if err := summary.Stats.Err(); err != nil {
		slog.Warn("some results were not recorded",
			"run_id", summary.Run.RunID, "failed", summary.Stats.Failed, "error", err)
	}
	if summary.PublishErr != nil {
		slog.Warn("run recorded but not published", "run_id", summary.Run.RunID, "error", summary.PublishErr)
	}

	renderRun(c.App.Writer, summary.Run)
	return nil
}
