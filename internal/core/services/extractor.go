package services

import (
	"iter"
	"strings"

	"github.com/custodia-labs/mmtf-derive/internal/core/domain"
)

// Metadata keys set by the extractor.
const (
	MetaResolution  = "resolution"
	MetaRFree       = "rFree"
	MetaRWork       = "rWork"
	MetaMethod      = "experimentalMethod"
	MetaReleaseDate = "releaseDate"
	MetaEntityType  = "entityType"
	MetaPolymerType = "polymerType"
	MetaModel       = "model"
)

// ExtractPolymerChains yields one record per polymer chain with at least
// one group. Non-polymer and water chains are skipped. With
// ExcludeDuplicates only the first chain of each entity is kept. The sequence is
// lazy and restartable, and records are yielded in source chain order.
// Records copy what they need, so the Structure can be released once
// iteration is done.
func ExtractPolymerChains(s *domain.Structure, opts domain.ExtractOptions) iter.Seq[domain.ChainRecord] {
	return func(yield func(domain.ChainRecord) bool) {
		models := 1
		if opts.AllModels {
			models = s.NumModels()
		}
		meta := s.Meta()
		var seen map[int]bool
		if opts.ExcludeDuplicates {
			seen = make(map[int]bool)
		}

		for m := 0; m < models; m++ {
			for _, c := range s.Model(m).Chains() {
				if !c.IsPolymer() || c.NumGroups() == 0 {
					continue
				}
				if seen != nil {
					if seen[c.EntityIndex()] {
						continue
					}
					seen[c.EntityIndex()] = true
				}
				rec := chainRecord(c, meta, opts)
				if !yield(rec) {
					return
				}
			}
		}
	}
}

func chainRecord(c domain.Chain, meta domain.StructureMeta, opts domain.ExtractOptions) domain.ChainRecord {
	name := c.Name()
	if opts.UseChainID {
		name = c.ID()
	}
	groups := c.Groups()
	residues := make([]domain.Residue, len(groups))
	seq := make([]byte, len(groups))
	for i, g := range groups {
		residues[i] = residue(g)
		seq[i] = residues[i].Code
	}

	rec := domain.ChainRecord{
		StructureID: meta.ID,
		ChainID:     c.ID(),
		ChainName:   name,
		ModelIndex:  c.ModelIndex(),
		EntityType:  c.EntityType(),
		PolymerType: c.PolymerType(),
		Key:         domain.ChainKey(meta.ID, name, c.ModelIndex()),
		Sequence:    string(seq),
		Residues:    residues,
		Meta:        meta,
		Metadata: map[string]any{
			MetaEntityType:  string(c.EntityType()),
			MetaPolymerType: string(c.PolymerType()),
			MetaModel:       c.ModelIndex() + 1,
		},
	}
	// Each record owns its copy of the method list.
	rec.Meta.ExperimentalMethods = append([]string(nil), meta.ExperimentalMethods...)

	if meta.Resolution.Valid {
		rec.Metadata[MetaResolution] = meta.Resolution.Value
	}
	if meta.RFree.Valid {
		rec.Metadata[MetaRFree] = meta.RFree.Value
	}
	if meta.RWork.Valid {
		rec.Metadata[MetaRWork] = meta.RWork.Value
	}
	if len(meta.ExperimentalMethods) > 0 {
		rec.Metadata[MetaMethod] = strings.Join(meta.ExperimentalMethods, ";")
	}
	if meta.ReleaseDate != "" {
		rec.Metadata[MetaReleaseDate] = meta.ReleaseDate
	}
	return rec
}

func residue(g domain.Group) domain.Residue {
	r := domain.Residue{
		Name:     g.Name(),
		Code:     g.Code(),
		Number:   g.Number(),
		InsCode:  g.InsCode(),
		SeqIndex: g.SequenceIndex(),
		Recorded: g.DSSP(),
	}
	backbone := []struct {
		name string
		bit  uint8
		dst  *domain.Vec3
	}{
		{"N", domain.HasN, &r.N},
		{"CA", domain.HasCA, &r.CA},
		{"C", domain.HasC, &r.C},
		{"O", domain.HasO, &r.O},
	}
	for _, b := range backbone {
		if a, ok := g.AtomByName(b.name); ok {
			*b.dst = a.Coord()
			r.Backbone |= b.bit
		}
	}
	return r
}
