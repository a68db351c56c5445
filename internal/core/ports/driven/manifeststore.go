package driven

import (
	"context"

	"github.com/custodia-labs/mmtf-derive/internal/core/domain"
)

// ManifestStore persists run summaries and their failure manifests.
type ManifestStore interface {
	// SaveRun stores a run summary with its manifest entries.
	SaveRun(ctx context.Context, run domain.RunSummary, manifest []domain.ManifestEntry) error

	// GetRun retrieves a run summary by ID.
	GetRun(ctx context.Context, runID string) (*domain.RunSummary, error)

	// ListRuns returns runs, most recent first.
	ListRuns(ctx context.Context) ([]domain.RunSummary, error)

	// Manifest returns the manifest entries of a run.
	Manifest(ctx context.Context, runID string) ([]domain.ManifestEntry, error)
}
