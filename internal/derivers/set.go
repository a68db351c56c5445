package derivers

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/custodia-labs/mmtf-derive/internal/core/domain"
	"github.com/custodia-labs/mmtf-derive/internal/core/ports/driven"
)

// Set runs several derivers over the same record and merges their
// outputs. It implements driven.Deriver.
type Set struct {
	derivers []driven.Deriver
}

// NewSet creates a set. Outputs are merged in the order given.
func NewSet(derivers ...driven.Deriver) *Set {
	return &Set{derivers: derivers}
}

// Name returns the member names joined with "+".
func (s *Set) Name() string {
	names := make([]string, len(s.derivers))
	for i, d := range s.derivers {
		names[i] = d.Name()
	}
	return strings.Join(names, "+")
}

// Len returns the number of derivers in the set.
func (s *Set) Len() int {
	return len(s.derivers)
}

// Derive runs every deriver on its own copy of rec and merges the fields
// each one changed into the result. When two derivers change the same
// field the later one wins. Any failure fails the whole record.
func (s *Set) Derive(ctx context.Context, rec domain.ChainRecord) (domain.ChainRecord, error) {
	out := rec.Clone()
	for _, d := range s.derivers {
		got, err := d.Derive(ctx, rec.Clone())
		if err != nil {
			return domain.ChainRecord{}, fmt.Errorf("%w: deriver %s: %w", domain.ErrDerive, d.Name(), err)
		}
		merge(&out, rec, got)
	}
	return out, nil
}

func merge(out *domain.ChainRecord, base, got domain.ChainRecord) {
	if got.SecondaryStructureQ8 != base.SecondaryStructureQ8 {
		out.SecondaryStructureQ8 = got.SecondaryStructureQ8
	}
	if got.SecondaryStructureQ3 != base.SecondaryStructureQ3 {
		out.SecondaryStructureQ3 = got.SecondaryStructureQ3
	}
	for k, v := range got.Metadata {
		if old, ok := base.Metadata[k]; ok && reflect.DeepEqual(old, v) {
			continue
		}
		out.Metadata[k] = v
	}
}
