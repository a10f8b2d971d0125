package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/ericfisherdev/runledger/internal/config"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.ExitCode())
		}
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "runledger"
	app.Version = fmt.Sprintf("%s-%s", Version, GitCommit)
	app.Usage = "Record Playwright test runs into a queryable ledger"
	app.Flags = globalFlags
	// Exit codes are applied by main so tests can inspect them.
	app.ExitErrHandler = func(*cli.Context, error) {}
	app.Commands = []*cli.Command{
		ingestCommand,
		serveCommand,
		summaryCommand,
		uploadCommand,
		healthcheckCommand,
		migrateCommand,
	}
	return app
}

// loadConfig reads RUNLEDGER_* variables, applies command-line overrides and
// installs the default logger.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, cli.Exit(err.Error(), 1)
	}
	applyFlags(c, cfg)

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))

	if err := cfg.Validate(); err != nil {
		return nil, cli.Exit(err.Error(), 1)
	}
	return cfg, nil
}
