package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/mmtf-derive/internal/core/domain"
	"github.com/custodia-labs/mmtf-derive/internal/core/ports/driven"
	"github.com/custodia-labs/mmtf-derive/internal/core/ports/driving"
)

// Ensure RunHistoryService implements the interface.
var _ driving.RunHistory = (*RunHistoryService)(nil)

// RunHistoryService reads stored runs.
type RunHistoryService struct {
	store driven.ManifestStore
}

// NewRunHistoryService creates a run history service.
func NewRunHistoryService(store driven.ManifestStore) *RunHistoryService {
	return &RunHistoryService{store: store}
}

// ListRuns returns stored run summaries, most recent first.
func (s *RunHistoryService) ListRuns(ctx context.Context) ([]domain.RunSummary, error) {
	runs, err := s.store.ListRuns(ctx)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// Manifest returns the failure manifest of a stored run.
func (s *RunHistoryService) Manifest(ctx context.Context, runID string) ([]domain.ManifestEntry, error) {
	if _, err := s.store.GetRun(ctx, runID); err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	entries, err := s.store.Manifest(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("get manifest: %w", err)
	}
	return entries, nil
}
