package saas

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/ericfisherdev/runledger/internal/domain/model"
	"github.com/ericfisherdev/runledger/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RunPublisher = (*Publisher)(nil)

// Publisher saves every closed run to disk and, when a client is set, uploads it.
type Publisher struct {
	exporter  *FileExporter
	client    *Client
	projectID string
}

// NewPublisher creates a Publisher. client may be nil for export-only operation.
func NewPublisher(exporter *FileExporter, client *Client, projectID string) *Publisher {
	return &Publisher{exporter: exporter, client: client, projectID: projectID}
}

// Publish writes the payload file first so an upload failure never loses the
// run. The returned error names the saved file.
func (p *Publisher) Publish(ctx context.Context, run model.TestRun, results []model.ResultDetail) error {
	payload := BuildPayload(p.projectID, run, results)

	path, err := p.exporter.Export(payload)
	if err != nil {
		return fmt.Errorf("publish run %s: %w", run.RunID, err)
	}
	slog.Info("run payload saved", "run_id", run.RunID, "path", path)

	if p.client == nil {
		return nil
	}

	body, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("publish run %s: %w", run.RunID, err)
	}

	if err := p.client.Upload(ctx, body); err != nil {
		return fmt.Errorf("publish run %s: payload saved to %s for manual re-upload (runledger upload %s): %w",
			run.RunID, path, path, err)
	}

	slog.Info("run payload uploaded", "run_id", run.RunID)
	return nil
}
