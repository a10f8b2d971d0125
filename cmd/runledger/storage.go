package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/runledger/internal/adapter/driven/postgres"
	"github.com/ericfisherdev/runledger/internal/adapter/driven/saas"
	"github.com/ericfisherdev/runledger/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/runledger/internal/adapter/driven/sqlstore"
	"github.com/ericfisherdev/runledger/internal/application"
	"github.com/ericfisherdev/runledger/internal/config"
)

// storage is an opened, migrated persistence target.
type storage struct {
	stores application.Stores
	close  func() error
}

func (s *storage) Close() {
	if err := s.close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// openStorage opens Postgres when a URL is configured and SQLite otherwise,
// then applies migrations.
func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	var (
		conn    sqlstore.Conn
		closeFn func() error
	)

	if cfg.UsePostgres() {
		db, err := postgres.New(ctx, cfg.DatabaseURL, cfg.MaxConns)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := postgres.RunMigrations(db); err != nil {
			_ = db.Close()
			return nil, err
		}
		slog.Info("database opened", "dialect", "postgres")
		conn, closeFn = db, db.Close
	} else {
		db, err := sqlite.NewDB(ctx, cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		if err := sqlite.RunMigrations(db.Writer); err != nil {
			_ = db.Close()
			return nil, err
		}
		slog.Info("database opened", "dialect", "sqlite", "path", cfg.DBPath)
		conn, closeFn = db, db.Close
	}

	return &storage{
		stores: application.Stores{
			Runs:    sqlstore.NewRunRepo(conn),
			Cases:   sqlstore.NewCaseRepo(conn),
			Results: sqlstore.NewResultRepo(conn),
			Metrics: sqlstore.NewMetricRepo(conn),
		},
		close: closeFn,
	}, nil
}

// newPipeline wires the run pipeline with the file exporter and, when
// configured, the SaaS upload client.
func newPipeline(cfg *config.Config, stores application.Stores) *application.Pipeline {
	var client *saas.Client
	if cfg.HasSaaS() {
		client = saas.NewClient(cfg.SaaSURL, cfg.SaaSAPIKey)
	}
	publisher := saas.NewPublisher(saas.NewFileExporter(cfg.ExportDir), client, cfg.SaaSProjectID)

	return application.NewPipeline(stores, publisher, application.Options{
		MaxConcurrentWrites: cfg.MaxConcurrentWrites,
		WriteTimeout:        cfg.WriteTimeout,
	})
}
