package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mmtf-derive/internal/adapters/driven/storage/memory"
	memsource "github.com/custodia-labs/mmtf-derive/internal/connectors/memory"
	"github.com/custodia-labs/mmtf-derive/internal/core/domain"
	"github.com/custodia-labs/mmtf-derive/internal/core/ports/driven"
	"github.com/custodia-labs/mmtf-derive/internal/derivers"
	"github.com/custodia-labs/mmtf-derive/internal/filter"
	"github.com/custodia-labs/mmtf-derive/internal/mmtf"
	"github.com/custodia-labs/mmtf-derive/internal/mmtf/mmtftest"
)

// --- Mock implementations for pipeline testing ---

// failingDeriver fails for one structure ID.
type failingDeriver struct {
	failFor string
}

func (d failingDeriver) Name() string { return "failing" }

func (d failingDeriver) Derive(_ context.Context, rec domain.ChainRecord) (domain.ChainRecord, error) {
	if rec.StructureID == d.failFor {
		return rec, fmt.Errorf("%w: cannot derive %s", domain.ErrDerive, rec.Key)
	}
	return rec, nil
}

type staticFactory struct {
	deriver driven.Deriver
}

func (f staticFactory) Build([]domain.DeriverSpec) (driven.Deriver, error) { return f.deriver, nil }
func (f staticFactory) Names() []string                                  { return []string{f.deriver.Name()} }

type failingStore struct {
	*memory.ManifestStore
}

func (failingStore) SaveRun(context.Context, domain.RunSummary, []domain.ManifestEntry) error {
	return errors.New("disk full")
}

func encodeRecord(t *testing.T, spec mmtftest.StructureSpec) domain.RawRecord {
	t.Helper()
	data, err := mmtf.Encode(mmtftest.Build(spec))
	require.NoError(t, err)
	return domain.RawRecord{ID: spec.ID, Content: data}
}

func proteins(t *testing.T, n int) []domain.RawRecord {
	t.Helper()
	records := make([]domain.RawRecord, n)
	for i := range records {
		records[i] = encodeRecord(t, mmtftest.Protein(fmt.Sprintf("%04d", i), 3+i%7))
	}
	return records
}

func newTestPipeline(t *testing.T, cfg domain.PipelineConfig) *Pipeline {
	t.Helper()
	p, err := NewPipeline(mmtf.NewDecoder(), derivers.NewDefaultRegistry(), cfg)
	require.NoError(t, err)
	return p
}

func sortedKeys(records []domain.ChainRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Key
	}
	sort.Strings(out)
	return out
}

func TestNewPipeline(t *testing.T) {
	t.Run("requires a decoder", func(t *testing.T) {
		_, err := NewPipeline(nil, nil, domain.DefaultPipelineConfig())
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("validates config", func(t *testing.T) {
		cfg := domain.DefaultPipelineConfig()
		cfg.PartitionCount = 0
		_, err := NewPipeline(mmtf.NewDecoder(), nil, cfg)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("validates filters", func(t *testing.T) {
		cfg := domain.DefaultPipelineConfig()
		cfg.Filters = []domain.Predicate{{Kind: "xor"}}
		_, err := NewPipeline(mmtf.NewDecoder(), nil, cfg)
		assert.ErrorIs(t, err, domain.ErrUnsupportedType)
	})

	t.Run("unknown deriver", func(t *testing.T) {
		cfg := domain.DefaultPipelineConfig()
		cfg.Derivers = []domain.DeriverSpec{{Name: "nope"}}
		_, err := NewPipeline(mmtf.NewDecoder(), derivers.NewDefaultRegistry(), cfg)
		assert.ErrorIs(t, err, domain.ErrUnsupportedType)
	})

	t.Run("no factory passes records through", func(t *testing.T) {
		p, err := NewPipeline(mmtf.NewDecoder(), nil, domain.DefaultPipelineConfig())
		require.NoError(t, err)
		res, err := p.Run(context.Background(), memsource.New(encodeRecord(t, mmtftest.Protein("1ABC", 4))))
		require.NoError(t, err)
		require.Len(t, res.Records, 1)
		assert.Empty(t, res.Records[0].SecondaryStructureQ8)
	})
}

func TestPipeline_Run(t *testing.T) {
	p := newTestPipeline(t, domain.DefaultPipelineConfig())

	res, err := p.Run(context.Background(), memsource.New(encodeRecord(t, mmtftest.SecStruct("1SEC"))))
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.False(t, res.Cancelled)
	require.Len(t, res.Records, 1)
	rec := res.Records[0]
	assert.Len(t, rec.SecondaryStructureQ8, mmtftest.SecStructLength)
	assert.Len(t, rec.SecondaryStructureQ3, mmtftest.SecStructLength)

	flat := rec.Flat()
	assert.Equal(t, "1SEC", flat[domain.FieldStructureID])
	assert.Equal(t, "A", flat[domain.FieldChainID])
	assert.Contains(t, flat, "alpha")

	assert.Equal(t, 1, res.Stats.Inputs)
	assert.Equal(t, 1, res.Stats.Decoded)
	assert.Equal(t, 1, res.Stats.Records)
	assert.Equal(t, 1, res.Stats.Partitions)
	assert.Equal(t, int64(1), p.Status().Processed)
	assert.False(t, p.Status().Running)
}

func TestPipeline_TruncatedRecordIsIsolated(t *testing.T) {
	records := proteins(t, 10)
	records[4].Content = records[4].Content[:len(records[4].Content)/2]

	p := newTestPipeline(t, domain.DefaultPipelineConfig())
	res, err := p.Run(context.Background(), memsource.New(records...))
	require.NoError(t, err)

	assert.Len(t, res.Records, 9)
	require.Len(t, res.Manifest, 1)
	entry := res.Manifest[0]
	assert.Equal(t, "0004", entry.ID)
	assert.Equal(t, domain.StageDecode, entry.Stage)
	assert.Equal(t, domain.KindFieldDecode, entry.Kind)

	assert.Equal(t, 10, res.Stats.Inputs)
	assert.Equal(t, 9, res.Stats.Decoded)
	assert.Equal(t, 1, res.Stats.Failed)
	assert.Zero(t, res.Stats.Abandoned)
}

func TestPipeline_PartitionIndependence(t *testing.T) {
	records := proteins(t, 100)

	cfg := domain.DefaultPipelineConfig()
	cfg.Derivers = []domain.DeriverSpec{{Name: "secstruct"}, {Name: "segments"}, {Name: "composition"}}

	cfg.PartitionCount = 1
	one, err := newTestPipeline(t, cfg).Run(context.Background(), memsource.New(records...))
	require.NoError(t, err)

	cfg.PartitionCount = 10
	cfg.Workers = 4
	ten, err := newTestPipeline(t, cfg).Run(context.Background(), memsource.New(records...))
	require.NoError(t, err)

	assert.Equal(t, 1, one.Stats.Partitions)
	assert.Equal(t, 10, ten.Stats.Partitions)
	require.Len(t, one.Records, 100)
	assert.ElementsMatch(t, one.Records, ten.Records)
}

func TestPipeline_Filters(t *testing.T) {
	xray := mmtftest.Protein("1XRY", 12)
	lowRes := mmtftest.Protein("2LOW", 12)
	lowRes.Resolution = domain.Some(3.5)
	short := mmtftest.Protein("3SHT", 4)
	nmr := mmtftest.NMR("4NMR", 12, 2)

	cfg := domain.DefaultPipelineConfig()
	cfg.Filters = []domain.Predicate{
		filter.Resolution(0, 2.5),
		filter.ChainType(domain.PolymerProtein),
		filter.MinLength(10),
	}
	p := newTestPipeline(t, cfg)

	res, err := p.Run(context.Background(), memsource.New(
		encodeRecord(t, xray), encodeRecord(t, lowRes), encodeRecord(t, short), encodeRecord(t, nmr),
	))
	require.NoError(t, err)

	assert.Equal(t, []string{"1XRY.A"}, sortedKeys(res.Records))
	assert.Empty(t, res.Manifest, "exclusions are not failures")
	assert.Equal(t, 2, res.Stats.ExcludedStructures)
	assert.Equal(t, 1, res.Stats.ExcludedChains)

	byID := make(map[string]domain.Exclusion)
	for _, ex := range res.Excluded {
		byID[ex.ID] = ex
	}
	assert.Equal(t, domain.StageStructureFilter, byID["2LOW"].Stage)
	assert.Equal(t, domain.StageStructureFilter, byID["4NMR"].Stage)
	assert.Equal(t, domain.StageChainFilter, byID["3SHT"].Stage)
	assert.Equal(t, "3SHT.A", byID["3SHT"].ChainKey)
}

func TestPipeline_DeriveFailureDropsStructure(t *testing.T) {
	cfg := domain.DefaultPipelineConfig()
	p, err := NewPipeline(mmtf.NewDecoder(), staticFactory{failingDeriver{failFor: "3DIM"}}, cfg)
	require.NoError(t, err)

	res, err := p.Run(context.Background(), memsource.New(
		encodeRecord(t, mmtftest.Protein("1ABC", 5)),
		encodeRecord(t, mmtftest.Homodimer("3DIM", 5)),
	))
	require.NoError(t, err)

	assert.Equal(t, []string{"1ABC.A"}, sortedKeys(res.Records), "no partial output for 3DIM")
	require.Len(t, res.Manifest, 1)
	assert.Equal(t, "3DIM", res.Manifest[0].ID)
	assert.Equal(t, domain.KindDerive, res.Manifest[0].Kind)
	assert.Equal(t, domain.StageDerive, res.Manifest[0].Stage)
	assert.Contains(t, res.Manifest[0].Message, "failing")
}

func TestPipeline_SourceErrors(t *testing.T) {
	src := memsource.New(encodeRecord(t, mmtftest.Protein("1ABC", 5))).WithErrors(
		&driven.RecordError{ID: "9BAD", Err: fmt.Errorf("%w: permission denied", domain.ErrSource)},
		errors.New("listing interrupted"),
	)

	res, err := newTestPipeline(t, domain.DefaultPipelineConfig()).Run(context.Background(), src)
	require.NoError(t, err)

	assert.Len(t, res.Records, 1)
	require.Len(t, res.Manifest, 2)
	assert.Equal(t, "9BAD", res.Manifest[0].ID)
	assert.Equal(t, memsource.Type, res.Manifest[1].ID)
	for _, e := range res.Manifest {
		assert.Equal(t, domain.KindSource, e.Kind)
		assert.Equal(t, domain.StageSource, e.Stage)
	}
	assert.Equal(t, 2, res.Stats.Failed)
}

func TestPipeline_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newTestPipeline(t, domain.DefaultPipelineConfig())
	res, err := p.Run(ctx, memsource.New(proteins(t, 5)...))

	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.True(t, res.Cancelled)
	assert.Empty(t, res.Records)
	assert.False(t, p.Status().Running)
}

func TestPipeline_RunTo(t *testing.T) {
	sink := memory.NewSink()
	p := newTestPipeline(t, domain.DefaultPipelineConfig())

	res, err := p.RunTo(context.Background(), memsource.New(proteins(t, 3)...), sink)
	require.NoError(t, err)
	assert.Equal(t, 3, sink.Len())
	assert.Equal(t, sortedKeys(res.Records), sortedKeys(sink.Records()))

	require.NoError(t, sink.Close())
	_, err = p.RunTo(context.Background(), memsource.New(proteins(t, 1)...), sink)
	assert.ErrorIs(t, err, domain.ErrSinkClosed)
}

func TestPipeline_SavesRun(t *testing.T) {
	store := memory.NewManifestStore()
	p := newTestPipeline(t, domain.DefaultPipelineConfig())
	p.SetManifestStore(store)

	records := proteins(t, 3)
	records[1].Content = []byte{0x00}
	res, err := p.Run(context.Background(), memsource.New(records...))
	require.NoError(t, err)

	run, err := store.GetRun(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, res.Stats, run.Stats)

	manifest, err := store.Manifest(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, res.Manifest, manifest)

	t.Run("save failure is reported with the result", func(t *testing.T) {
		p.SetManifestStore(failingStore{memory.NewManifestStore()})
		res, err := p.Run(context.Background(), memsource.New(proteins(t, 1)...))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")
		require.NotNil(t, res)
		assert.Len(t, res.Records, 1)
	})
}

func TestPartition(t *testing.T) {
	records := make([]domain.RawRecord, 10)
	for i := range records {
		records[i].ID = fmt.Sprint(i)
	}

	tests := []struct {
		n     int
		sizes []int
	}{
		{1, []int{10}},
		{3, []int{4, 3, 3}},
		{10, []int{1, 1, 1, 1, 1, 1, 1, 1, 1, 1}},
		{25, []int{1, 1, 1, 1, 1, 1, 1, 1, 1, 1}},
	}
	for _, tt := range tests {
		parts := partition(records, tt.n)
		sizes := make([]int, len(parts))
		var ids []string
		for i, part := range parts {
			sizes[i] = len(part)
			for _, r := range part {
				ids = append(ids, r.ID)
			}
		}
		assert.Equal(t, tt.sizes, sizes, "n=%d", tt.n)
		assert.Len(t, ids, 10)
		assert.Equal(t, "0", ids[0])
		assert.Equal(t, "9", ids[9])
	}

	assert.Nil(t, partition(nil, 4))
}
