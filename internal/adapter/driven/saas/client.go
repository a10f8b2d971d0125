package saas

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrUploadFailed indicates the service did not accept the payload.
var ErrUploadFailed = errors.New("upload failed")

// DefaultMaxElapsed bounds the total time spent retrying one upload.
const DefaultMaxElapsed = 30 * time.Second

// Client POSTs run payloads to the service with bearer authentication.
type Client struct {
	url        string
	apiKey     string
	httpClient *http.Client
	maxElapsed time.Duration
}

// NewClient creates a Client for the ingestion endpoint at url.
func NewClient(url, apiKey string) *Client {
	return NewClientWithHTTPClient(&http.Client{Timeout: 30 * time.Second}, url, apiKey, DefaultMaxElapsed)
}

// NewClientWithHTTPClient creates a Client using the given HTTP client. This is
// primarily used for testing with httptest servers.
func NewClientWithHTTPClient(httpClient *http.Client, url, apiKey string, maxElapsed time.Duration) *Client {
	return &Client{
		url:        url,
		apiKey:     apiKey,
		httpClient: httpClient,
		maxElapsed: maxElapsed,
	}
}

// UploadFile re-uploads a previously exported payload file.
func (c *Client) UploadFile(ctx context.Context, path string) error {
	body, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read payload %s: %w", path, err)
	}
	return c.Upload(ctx, body)
}

// Upload POSTs body. Network errors, 429 and 5xx responses are retried with
// exponential backoff; other non-2xx responses fail immediately.
func (c *Client) Upload(ctx context.Context, body []byte) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxElapsedTime = c.maxElapsed

	attempt := 0
	op := func() error {
		attempt++
		return c.post(ctx, body)
	}
	notify := func(err error, wait time.Duration) {
		slog.Warn("upload attempt failed, retrying", "attempt", attempt, "wait", wait, "error", err)
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		return fmt.Errorf("%w after %d attempt(s): %w", ErrUploadFailed, attempt, err)
	}

	return nil
}

func (c *Client) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post payload: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	statusErr := fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return statusErr
	}
	return backoff.Permanent(statusErr)
}
