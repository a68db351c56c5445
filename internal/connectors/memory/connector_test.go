package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mmtf-derive/internal/core/domain"
	"github.com/custodia-labs/mmtf-derive/internal/core/ports/driven"
)

func drain(src driven.RecordSource) ([]string, []error) {
	recordsCh, errsCh := src.Records(context.Background())
	var (
		ids  []string
		errs []error
	)
	for recordsCh != nil || errsCh != nil {
		select {
		case rec, ok := <-recordsCh:
			if !ok {
				recordsCh = nil
				continue
			}
			ids = append(ids, rec.ID)
		case err, ok := <-errsCh:
			if !ok {
				errsCh = nil
				continue
			}
			errs = append(errs, err)
		}
	}
	return ids, errs
}

func TestSource_Records(t *testing.T) {
	boom := &driven.RecordError{ID: "9BAD", Err: errors.New("boom")}
	src := New(domain.RawRecord{ID: "1ABC"}, domain.RawRecord{ID: "2XYZ"}).WithErrors(boom)

	assert.Equal(t, Type, src.Type())
	assert.Equal(t, 2, src.Len())

	ids, errs := drain(src)
	assert.Equal(t, []string{"1ABC", "2XYZ"}, ids)
	assert.Equal(t, []error{boom}, errs)

	// Restartable.
	ids, _ = drain(src)
	assert.Len(t, ids, 2)
}

func TestSource_RecordsCancelled(t *testing.T) {
	src := New(domain.RawRecord{ID: "1ABC"}, domain.RawRecord{ID: "2XYZ"})
	ctx, cancel := context.WithCancel(context.Background())
	recordsCh, errsCh := src.Records(ctx)
	<-recordsCh
	cancel()
	for range recordsCh {
	}
	for range errsCh {
	}
}

func TestSource_Watch(t *testing.T) {
	src := New(domain.RawRecord{ID: "1ABC"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes, errs := src.Watch(ctx)

	require.NoError(t, src.Push(ctx, domain.RawRecord{ID: "2XYZ"}))
	require.NoError(t, src.Push(ctx, domain.RawRecord{ID: "1ABC", Content: []byte{1}}))

	first := <-changes
	assert.Equal(t, domain.ChangeCreated, first.Type)
	assert.Equal(t, "2XYZ", first.Record.ID)

	second := <-changes
	assert.Equal(t, domain.ChangeUpdated, second.Type)
	assert.Equal(t, []byte{1}, second.Record.Content)
	assert.Equal(t, 2, src.Len())

	cancel()
	for range changes {
	}
	_, ok := <-errs
	assert.False(t, ok)
}

func TestSource_Close(t *testing.T) {
	src := New()
	changes, _ := src.Watch(context.Background())

	require.NoError(t, src.Close())
	require.NoError(t, src.Close())

	select {
	case _, ok := <-changes:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("watch channel not closed")
	}

	assert.ErrorIs(t, src.Push(context.Background(), domain.RawRecord{ID: "1ABC"}), domain.ErrSourceClosed)

	_, errs := drain(src)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], domain.ErrSourceClosed)

	_, watchErrs := src.Watch(context.Background())
	assert.ErrorIs(t, <-watchErrs, domain.ErrSourceClosed)
}
