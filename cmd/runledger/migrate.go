package main

import (
	"log/slog"

	"github.com/urfave/cli/v2"
)

var migrateCommand = &cli.Command{
	Name:  "migrate",
	Usage: "Apply database migrations and exit",
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}

		st, err := openStorage(c.Context, cfg)
		if err != nil {
			return err
		}
		st.Close()

		slog.Info("migrations complete")
		return nil
	},
}
