package main

import (
	"log/slog"

	"github.com/urfave/cli/v2"

	"github.com/ericfisherdev/runledger/internal/config"
)

// Flags override the matching RUNLEDGER_* variable when set.
var (
	DBPath = &cli.StringFlag{
		Name:  "db-path",
		Usage: "SQLite database file (RUNLEDGER_DB_PATH)",
	}
	DatabaseURL = &cli.StringFlag{
		Name:  "database-url",
		Usage: "Postgres connection URL; takes precedence over --db-path (RUNLEDGER_DATABASE_URL)",
	}
	ExportDir = &cli.StringFlag{
		Name:  "export-dir",
		Usage: "Directory for run payload files (RUNLEDGER_EXPORT_DIR)",
	}
	Project = &cli.StringFlag{
		Name:  "project",
		Usage: "Project name recorded on the run (RUNLEDGER_PROJECT)",
	}
	Branch = &cli.StringFlag{
		Name:  "branch",
		Usage: "Branch recorded on the run (RUNLEDGER_BRANCH)",
	}
	Commit = &cli.StringFlag{
		Name:  "commit",
		Usage: "Commit SHA recorded on the run (RUNLEDGER_COMMIT)",
	}
	Environment = &cli.StringFlag{
		Name:  "environment",
		Usage: "Environment recorded on the run (RUNLEDGER_ENVIRONMENT)",
	}
	RootDir = &cli.StringFlag{
		Name:  "root-dir",
		Usage: "Project root; absolute test file paths are stored relative to it (RUNLEDGER_ROOT_DIR)",
	}
	LogLevel = &cli.StringFlag{
		Name:  "log-level",
		Usage: "debug, info, warn or error (RUNLEDGER_LOG_LEVEL)",
	}
	ListenAddr = &cli.StringFlag{
		Name:  "listen-addr",
		Usage: "Address the live hook listens on (RUNLEDGER_LISTEN_ADDR)",
	}
)

var globalFlags = []cli.Flag{
	DBPath,
	DatabaseURL,
	ExportDir,
	Project,
	Branch,
	Commit,
	Environment,
	RootDir,
	LogLevel,
}

func applyFlags(c *cli.Context, cfg *config.Config) {
	set := func(flag *cli.StringFlag, dst *string) {
		if c.IsSet(flag.Name) {
			*dst = c.String(flag.Name)
		}
	}

	set(DBPath, &cfg.DBPath)
	set(DatabaseURL, &cfg.DatabaseURL)
	set(ExportDir, &cfg.ExportDir)
	set(Project, &cfg.Project)
	set(Branch, &cfg.Branch)
	set(Commit, &cfg.Commit)
	set(Environment, &cfg.Environment)
	set(ListenAddr, &cfg.ListenAddr)
	set(RootDir, &cfg.RootDir)

	if c.IsSet(LogLevel.Name) {
		var level slog.Level
		if err := level.UnmarshalText([]byte(c.String(LogLevel.Name))); err == nil {
			cfg.LogLevel = level
		}
	}
}
