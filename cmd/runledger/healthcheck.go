package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/urfave/cli/v2"
)

var healthcheckCommand = &cli.Command{
	Name:   "healthcheck",
	Usage:  "Check a running live hook; exits non-zero when unhealthy",
	Action: healthcheck,
}

// healthcheck skips loadConfig: it must work in a scratch container with no
// persistence variables set.
func healthcheck(c *cli.Context) error {
	addr := normalizeAddr(os.Getenv("RUNLEDGER_LISTEN_ADDR"))
	if err := checkHealth(c.Context, addr); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	return nil
}

func checkHealth(ctx context.Context, addr string) error {
	client := &http.Client{Timeout: 2 * time.Second}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("http://%s/api/v1/health", addr), nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("check health %s: %w", addr, err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("check health %s: unexpected status %d", addr, resp.StatusCode)
	}

	return nil
}

// normalizeAddr ensures the healthcheck connects to loopback rather than the
// bind-all address. Docker containers bind 0.0.0.0 but the healthcheck runs
// inside the same container, so loopback is reachable.
func normalizeAddr(raw string) string {
	if raw == "" {
		return "127.0.0.1:8080"
	}

	host, port, err := net.SplitHostPort(raw)
	if err != nil {
		return "127.0.0.1:8080"
	}

	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}

	return net.JoinHostPort(host, port)
}
