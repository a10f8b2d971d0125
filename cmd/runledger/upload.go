package main

import (
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v2"

	"github.com/ericfisherdev/runledger/internal/adapter/driven/saas"
)

var uploadCommand = &cli.Command{
	Name:      "upload",
	Usage:     "Upload a saved run payload to the hosted dashboard",
	ArgsUsage: "<payload.json>",
	Action:    upload,
}

func upload(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: runledger upload <payload.json>", 1)
	}
	path := c.Args().First()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if !cfg.HasSaaS() {
		return cli.Exit("upload requires RUNLEDGER_SAAS_URL, RUNLEDGER_SAAS_API_KEY and RUNLEDGER_SAAS_PROJECT_ID", 1)
	}

	if err := saas.NewClient(cfg.SaaSURL, cfg.SaaSAPIKey).UploadFile(c.Context, path); err != nil {
		return cli.Exit(fmt.Sprintf("upload %s: %v", path, err), 1)
	}

	slog.Info("payload uploaded", "path", path)
	return nil
}
