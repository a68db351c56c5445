package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mmtf-derive/internal/core/domain"
)

func TestManifestStore_SaveAndGet(t *testing.T) {
	store := NewManifestStore()
	ctx := context.Background()

	run := domain.RunSummary{RunID: "run-1", StartedAt: time.Now(), Stats: domain.RunStats{Inputs: 3, Failed: 1}}
	manifest := []domain.ManifestEntry{{ID: "1BAD", Kind: domain.KindFieldDecode, Stage: domain.StageDecode}}
	require.NoError(t, store.SaveRun(ctx, run, manifest))

	got, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Stats.Inputs)

	entries, err := store.Manifest(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, manifest, entries)

	// The store keeps its own copy.
	manifest[0].ID = "changed"
	entries, _ = store.Manifest(ctx, "run-1")
	assert.Equal(t, "1BAD", entries[0].ID)
}

func TestManifestStore_GetRun_NotFound(t *testing.T) {
	_, err := NewManifestStore().GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestManifestStore_SaveRun_RequiresID(t *testing.T) {
	err := NewManifestStore().SaveRun(context.Background(), domain.RunSummary{}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestManifestStore_ListRuns_MostRecentFirst(t *testing.T) {
	store := NewManifestStore()
	ctx := context.Background()
	base := time.Now()

	require.NoError(t, store.SaveRun(ctx, domain.RunSummary{RunID: "old", StartedAt: base}, nil))
	require.NoError(t, store.SaveRun(ctx, domain.RunSummary{RunID: "new", StartedAt: base.Add(time.Second)}, nil))

	runs, err := store.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "new", runs[0].RunID)
	assert.Equal(t, "old", runs[1].RunID)
}

func TestSink_WriteAndClose(t *testing.T) {
	sink := NewSink()
	ctx := context.Background()

	require.NoError(t, sink.Write(ctx, domain.ChainRecord{Key: "1ABC.A"}))
	require.NoError(t, sink.Write(ctx, domain.ChainRecord{Key: "1ABC.B"}))
	assert.Equal(t, 2, sink.Len())
	assert.Equal(t, "1ABC.B", sink.Records()[1].Key)

	require.NoError(t, sink.Close())
	assert.ErrorIs(t, sink.Write(ctx, domain.ChainRecord{}), domain.ErrSinkClosed)
}
