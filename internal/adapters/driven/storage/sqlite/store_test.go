package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mmtf-derive/internal/core/domain"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	require.NotNil(t, store)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })

	return store
}

func testRun(id string, started time.Time) domain.RunSummary {
	return domain.RunSummary{
		RunID:     id,
		StartedAt: started,
		Stats: domain.RunStats{
			Inputs:             10,
			Decoded:            9,
			Failed:             1,
			ExcludedStructures: 2,
			ExcludedChains:     3,
			Records:            12,
			Partitions:         4,
			Duration:           1500 * time.Millisecond,
		},
	}
}

// ==================== Store Creation Tests ====================

func TestNewStore_CreatesDatabase(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, filepath.Join(dir, DBName), store.Path())
	_, err = os.Stat(store.Path())
	assert.NoError(t, err)

	v, err := store.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestNewStore_ReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.ManifestStore().SaveRun(ctx, testRun("run-1", time.Now()), nil))
	require.NoError(t, store.Close())

	store, err = NewStore(dir)
	require.NoError(t, err)
	defer store.Close()

	run, err := store.ManifestStore().GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.RunID)
}

// ==================== Manifest Store Tests ====================

func TestManifestStore_SaveAndGet(t *testing.T) {
	store := setupTestStore(t)
	ms := store.ManifestStore()
	ctx := context.Background()

	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	run := testRun("run-1", started)
	run.Cancelled = true
	manifest := []domain.ManifestEntry{
		{ID: "1BAD", Kind: domain.KindCountMismatch, Stage: domain.StageDecode, Message: "atoms"},
		{ID: "2BAD", Kind: domain.KindDerive, Stage: domain.StageDerive},
	}
	require.NoError(t, ms.SaveRun(ctx, run, manifest))

	got, err := ms.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, run.Stats, got.Stats)
	assert.True(t, got.StartedAt.Equal(started))
	assert.True(t, got.Cancelled)

	entries, err := ms.Manifest(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, manifest, entries)
}

func TestManifestStore_SaveReplacesManifest(t *testing.T) {
	store := setupTestStore(t)
	ms := store.ManifestStore()
	ctx := context.Background()

	run := testRun("run-1", time.Now())
	require.NoError(t, ms.SaveRun(ctx, run, []domain.ManifestEntry{{ID: "A", Kind: domain.KindSource, Stage: domain.StageSource}}))
	require.NoError(t, ms.SaveRun(ctx, run, nil))

	entries, err := ms.Manifest(ctx, "run-1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestManifestStore_GetRun_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.ManifestStore().GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestManifestStore_SaveRun_RequiresID(t *testing.T) {
	store := setupTestStore(t)

	err := store.ManifestStore().SaveRun(context.Background(), domain.RunSummary{}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestManifestStore_ListRuns_MostRecentFirst(t *testing.T) {
	store := setupTestStore(t)
	ms := store.ManifestStore()
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, ms.SaveRun(ctx, testRun("old", base), nil))
	require.NoError(t, ms.SaveRun(ctx, testRun("new", base.Add(time.Hour)), nil))
	require.NoError(t, ms.SaveRun(ctx, testRun("mid", base.Add(time.Minute)), nil))

	runs, err := ms.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "new", runs[0].RunID)
	assert.Equal(t, "mid", runs[1].RunID)
	assert.Equal(t, "old", runs[2].RunID)
}

// ==================== Archive Tests ====================

func TestArchive_PutAndRecords(t *testing.T) {
	store := setupTestStore(t)
	archive := store.Archive()
	ctx := context.Background()

	require.NoError(t, archive.Put(ctx, domain.RawRecord{ID: "2XYZ", Content: []byte{0x82, 0x01}}))
	require.NoError(t, archive.Put(ctx, domain.RawRecord{ID: "1ABC", Content: []byte{0x81}, Metadata: map[string]any{"path": "/tmp/1abc.mmtf"}}))
	require.NoError(t, archive.Put(ctx, domain.RawRecord{ID: "2XYZ", Content: []byte{0x83}}))

	n, err := archive.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	recordsCh, errsCh := archive.Records(ctx)
	var got []domain.RawRecord
	for rec := range recordsCh {
		got = append(got, rec)
	}
	for err := range errsCh {
		t.Fatalf("unexpected error: %v", err)
	}

	require.Len(t, got, 2)
	assert.Equal(t, "1ABC", got[0].ID)
	assert.Equal(t, "/tmp/1abc.mmtf", got[0].Metadata["path"])
	assert.Equal(t, ArchiveType, got[0].Metadata["source"])
	assert.Equal(t, []byte{0x83}, got[1].Content)
}

func TestArchive_Get(t *testing.T) {
	store := setupTestStore(t)
	archive := store.Archive()
	ctx := context.Background()

	require.NoError(t, archive.Put(ctx, domain.RawRecord{ID: "1ABC", Content: []byte("data")}))

	rec, err := archive.Get(ctx, "1ABC")
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), rec.Content)

	_, err = archive.Get(ctx, "NONE")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestArchive_PutRequiresID(t *testing.T) {
	store := setupTestStore(t)

	err := store.Archive().Put(context.Background(), domain.RawRecord{Content: []byte("x")})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestArchive_Type(t *testing.T) {
	store := setupTestStore(t)
	assert.Equal(t, "sqlite", store.Archive().Type())
	assert.NoError(t, store.Archive().Close())
}
