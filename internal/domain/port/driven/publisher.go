package driven

import (
	"context"

	"github.com/ericfisherdev/runledger/internal/domain/model"
)

// RunPublisher forwards a closed run and its results to an external consumer
// (a JSON file, optionally followed by a SaaS upload).
type RunPublisher interface {
	Publish(ctx context.Context, run model.TestRun, results []model.ResultDetail) error
}
