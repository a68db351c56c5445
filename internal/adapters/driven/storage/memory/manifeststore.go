package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/custodia-labs/mmtf-derive/internal/core/domain"
	"github.com/custodia-labs/mmtf-derive/internal/core/ports/driven"
)

// Ensure ManifestStore implements the interface.
var _ driven.ManifestStore = (*ManifestStore)(nil)

// ManifestStore is an in-memory implementation of driven.ManifestStore.
type ManifestStore struct {
	mu        sync.RWMutex
	runs      map[string]domain.RunSummary
	manifests map[string][]domain.ManifestEntry
}

// NewManifestStore creates a new in-memory manifest store.
func NewManifestStore() *ManifestStore {
	return &ManifestStore{
		runs:      make(map[string]domain.RunSummary),
		manifests: make(map[string][]domain.ManifestEntry),
	}
}

// SaveRun stores a run summary and replaces its manifest.
func (s *ManifestStore) SaveRun(_ context.Context, run domain.RunSummary, manifest []domain.ManifestEntry) error {
	if run.RunID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.RunID] = run
	s.manifests[run.RunID] = slices.Clone(manifest)
	return nil
}

// GetRun retrieves a run summary by ID.
func (s *ManifestStore) GetRun(_ context.Context, runID string) (*domain.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &run, nil
}

// ListRuns returns runs, most recent first.
func (s *ManifestStore) ListRuns(_ context.Context) ([]domain.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	runs := make([]domain.RunSummary, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	return runs, nil
}

// Manifest returns a copy of the manifest of a run.
func (s *ManifestStore) Manifest(_ context.Context, runID string) ([]domain.ManifestEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.manifests[runID]), nil
}
