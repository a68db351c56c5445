package derivers

import (
	"context"
	"errors"
	"testing"

	"github.com/custodia-labs/mmtf-derive/internal/core/domain"
)

// fieldDeriver sets one metadata field and optionally the Q8 string.
type fieldDeriver struct {
	name  string
	key   string
	value any
	q8    string
	err   error
	saw   *domain.ChainRecord
}

func (f *fieldDeriver) Name() string { return f.name }

func (f *fieldDeriver) Derive(_ context.Context, rec domain.ChainRecord) (domain.ChainRecord, error) {
	if f.saw != nil {
		*f.saw = rec
	}
	if f.err != nil {
		return rec, f.err
	}
	if f.key != "" {
		rec.Metadata[f.key] = f.value
	}
	if f.q8 != "" {
		rec.SecondaryStructureQ8 = f.q8
	}
	return rec, nil
}

func baseRecord() domain.ChainRecord {
	return domain.ChainRecord{
		Key:      "1ABC.A",
		Sequence: "ACDE",
		Metadata: map[string]any{"model": 1},
	}
}

func TestSet_Empty(t *testing.T) {
	s := NewSet()
	if s.Len() != 0 {
		t.Errorf("expected 0 derivers, got %d", s.Len())
	}

	out, err := s.Derive(context.Background(), baseRecord())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Metadata["model"] != 1 {
		t.Error("expected metadata to be carried over")
	}
}

func TestSet_MergesFields(t *testing.T) {
	s := NewSet(
		&fieldDeriver{name: "a", key: "alpha", value: 0.5, q8: "HHHH"},
		&fieldDeriver{name: "b", key: "beta", value: 0.25},
	)

	out, err := s.Derive(context.Background(), baseRecord())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Metadata["alpha"] != 0.5 || out.Metadata["beta"] != 0.25 {
		t.Errorf("expected both fields, got %v", out.Metadata)
	}
	if out.SecondaryStructureQ8 != "HHHH" {
		t.Errorf("expected Q8 from first deriver, got %q", out.SecondaryStructureQ8)
	}
}

func TestSet_LaterDeriverWins(t *testing.T) {
	s := NewSet(
		&fieldDeriver{name: "a", key: "score", value: 1},
		&fieldDeriver{name: "b", key: "score", value: 2},
	)

	out, err := s.Derive(context.Background(), baseRecord())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Metadata["score"] != 2 {
		t.Errorf("expected later value 2, got %v", out.Metadata["score"])
	}
}

func TestSet_DeriversSeeOnlyTheInput(t *testing.T) {
	var saw domain.ChainRecord
	s := NewSet(
		&fieldDeriver{name: "a", key: "alpha", value: 0.5},
		&fieldDeriver{name: "b", saw: &saw},
	)

	if _, err := s.Derive(context.Background(), baseRecord()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := saw.Metadata["alpha"]; ok {
		t.Error("second deriver should not see the first deriver's output")
	}
}

func TestSet_DoesNotModifyInput(t *testing.T) {
	rec := baseRecord()
	s := NewSet(&fieldDeriver{name: "a", key: "alpha", value: 0.5})

	if _, err := s.Derive(context.Background(), rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := rec.Metadata["alpha"]; ok {
		t.Error("input record was modified")
	}
}

func TestSet_Error(t *testing.T) {
	cause := errors.New("boom")
	s := NewSet(
		&fieldDeriver{name: "a", key: "alpha", value: 0.5},
		&fieldDeriver{name: "bad", err: cause},
	)

	_, err := s.Derive(context.Background(), baseRecord())
	if !errors.Is(err, domain.ErrDerive) {
		t.Errorf("expected ErrDerive, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("expected cause to be wrapped, got %v", err)
	}
	if domain.KindOf(err) != domain.KindDerive {
		t.Errorf("expected DeriveError kind, got %s", domain.KindOf(err))
	}
}

func TestSet_Name(t *testing.T) {
	s := NewSet(&fieldDeriver{name: "a"}, &fieldDeriver{name: "b"})
	if s.Name() != "a+b" {
		t.Errorf("expected 'a+b', got %q", s.Name())
	}
}
