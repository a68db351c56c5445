package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mmtf-derive/internal/adapters/driven/storage/memory"
	memsource "github.com/custodia-labs/mmtf-derive/internal/connectors/memory"
	"github.com/custodia-labs/mmtf-derive/internal/core/domain"
	"github.com/custodia-labs/mmtf-derive/internal/mmtf/mmtftest"
)

func TestPipeline_Watch(t *testing.T) {
	p := newTestPipeline(t, domain.DefaultPipelineConfig())
	src := memsource.New()
	sink := memory.NewSink()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type outcome struct {
		manifest []domain.ManifestEntry
		err      error
	}
	done := make(chan outcome, 1)
	go func() {
		manifest, err := p.Watch(ctx, src, sink)
		done <- outcome{manifest, err}
	}()
	require.Eventually(t, func() bool { return src.Watching() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, src.Push(ctx, encodeRecord(t, mmtftest.Homodimer("1DIM", 6))))
	require.NoError(t, src.Push(ctx, domain.RawRecord{ID: "2BAD", Content: []byte{0xc0}}))

	require.Eventually(t, func() bool { return p.Status().Processed == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, sink.Len())

	_, err := p.Watch(ctx, src, sink)
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "one run at a time")

	cancel()
	out := <-done
	require.NoError(t, out.err)
	require.Len(t, out.manifest, 1)
	assert.Equal(t, "2BAD", out.manifest[0].ID)
	assert.Equal(t, domain.StageDecode, out.manifest[0].Stage)
	assert.False(t, p.Status().Running)
}

func TestPipeline_Watch_SourceClosed(t *testing.T) {
	p := newTestPipeline(t, domain.DefaultPipelineConfig())
	src := memsource.New()
	require.NoError(t, src.Close())

	manifest, err := p.Watch(context.Background(), src, memory.NewSink())
	require.NoError(t, err)
	require.Len(t, manifest, 1)
	assert.Equal(t, domain.KindSource, manifest[0].Kind)
}

func TestPipeline_Watch_ReportsStatus(t *testing.T) {
	p := newTestPipeline(t, domain.DefaultPipelineConfig())
	src := memsource.New()

	var (
		mu       sync.Mutex
		reported []domain.RunStatus
	)
	p.SetStatusReporter(5*time.Millisecond, func(st domain.RunStatus) {
		mu.Lock()
		defer mu.Unlock()
		reported = append(reported, st)
	})
	last := func() domain.RunStatus {
		mu.Lock()
		defer mu.Unlock()
		if len(reported) == 0 {
			return domain.RunStatus{}
		}
		return reported[len(reported)-1]
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		_, err := p.Watch(ctx, src, memory.NewSink())
		done <- err
	}()
	require.Eventually(t, func() bool { return src.Watching() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, src.Push(ctx, encodeRecord(t, mmtftest.Homodimer("1DIM", 6))))
	require.NoError(t, src.Push(ctx, domain.RawRecord{ID: "2BAD", Content: []byte{0xc0}}))

	require.Eventually(t, func() bool {
		st := last()
		return st.Processed == 2 && st.Failed == 1 && st.Records == 2
	}, time.Second, 5*time.Millisecond)
	assert.True(t, last().Running)

	cancel()
	require.NoError(t, <-done)
}

func TestPipeline_SetStatusReporter_KeepsDefaults(t *testing.T) {
	p := newTestPipeline(t, domain.DefaultPipelineConfig())

	p.SetStatusReporter(0, nil)

	assert.Equal(t, DefaultStatusInterval, p.statusInterval)
	assert.NotNil(t, p.statusFn)
}
