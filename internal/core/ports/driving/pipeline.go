package driving

import (
	"context"

	"github.com/custodia-labs/mmtf-derive/internal/core/domain"
	"github.com/custodia-labs/mmtf-derive/internal/core/ports/driven"
)

// PipelineRunner decodes, filters, extracts and derives a collection of
// structure records.
type PipelineRunner interface {
	// Run processes every record of src and returns the gathered result.
	// A cancelled run returns the partial result together with ctx.Err().
	Run(ctx context.Context, src driven.RecordSource) (*domain.Result, error)

	// RunTo is Run followed by writing every record to sink.
	RunTo(ctx context.Context, src driven.RecordSource, sink driven.RecordSink) (*domain.Result, error)

	// Status returns a live snapshot of the current run.
	Status() domain.RunStatus
}

// RunHistory exposes stored runs.
type RunHistory interface {
	// ListRuns returns stored run summaries, most recent first.
	ListRuns(ctx context.Context) ([]domain.RunSummary, error)

	// Manifest returns the failure manifest of a stored run.
	Manifest(ctx context.Context, runID string) ([]domain.ManifestEntry, error)
}
