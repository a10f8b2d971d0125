package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"

	httphandler "github.com/ericfisherdev/runledger/internal/adapter/driving/http"
	"github.com/ericfisherdev/runledger/internal/application"
)

const sessionBuffer = 256

var serveCommand = &cli.Command{
	Name:   "serve",
	Usage:  "Serve the live reporting hook",
	Flags:  []cli.Flag{ListenAddr},
	Action: serve,
}

func serve(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"postgres", cfg.UsePostgres(),
		"saas", cfg.HasSaaS(),
		"max_concurrent_writes", cfg.MaxConcurrentWrites,
	)

	ctx := c.Context

	st, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	sessions := application.NewSessionRegistry(newPipeline(cfg, st.stores), sessionBuffer)

	apiHandler := httphandler.NewHandler(sessions, st.stores.Runs, st.stores.Results, cfg.RootDir, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.NewServeMux(apiHandler, slog.Default()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	// Runs whose reporter never called end are closed as interrupted.
	sessions.Shutdown(shutdownCtx)

	slog.Info("shutdown complete")
	return nil
}
