// Package secstruct derives per-residue secondary structure strings.
package secstruct

import (
	"context"
	"fmt"

	"github.com/custodia-labs/mmtf-derive/internal/core/domain"
	"github.com/custodia-labs/mmtf-derive/internal/core/ports/driven"
)

// Name is the registry name of the deriver.
const Name = "secstruct"

// Field names added to the record metadata.
const (
	FieldAlpha = "alpha"
	FieldBeta  = "beta"
	FieldCoil  = "coil"
)

// Deriver fills the Q8 and Q3 strings of a chain record.
// It implements the driven.Deriver interface.
type Deriver struct {
	classifier driven.Classifier
}

// Option configures the deriver.
type Option func(*Deriver)

// WithClassifier sets the classifier used for Q8 codes.
func WithClassifier(c driven.Classifier) Option {
	return func(d *Deriver) {
		if c != nil {
			d.classifier = c
		}
	}
}

// New creates a secondary-structure deriver with the given options.
func New(opts ...Option) *Deriver {
	d := &Deriver{classifier: Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Name returns the deriver name.
func (d *Deriver) Name() string {
	return Name
}

// Classifier returns the configured classifier.
func (d *Deriver) Classifier() driven.Classifier {
	return d.classifier
}

// Derive sets the Q8 and Q3 strings, one symbol per residue, and the
// helix, strand and coil fractions.
func (d *Deriver) Derive(_ context.Context, rec domain.ChainRecord) (domain.ChainRecord, error) {
	codes := d.classifier.Classify(rec.Residues)
	if len(codes) != len(rec.Residues) {
		return rec, fmt.Errorf("classifier %s returned %d codes for %d residues",
			d.classifier.Name(), len(codes), len(rec.Residues))
	}

	q8 := domain.Q8String(codes)
	q3 := domain.Q3String(q8)
	rec.SecondaryStructureQ8 = q8
	rec.SecondaryStructureQ3 = q3
	if rec.Metadata == nil {
		rec.Metadata = make(map[string]any)
	}

	alpha, beta, coil := Fractions(q3)
	rec.Metadata[FieldAlpha] = alpha
	rec.Metadata[FieldBeta] = beta
	rec.Metadata[FieldCoil] = coil
	return rec, nil
}

// Fractions returns the share of helix, strand and coil symbols in a Q3
// string. An empty string yields zeros.
func Fractions(q3 string) (alpha, beta, coil float64) {
	if len(q3) == 0 {
		return 0, 0, 0
	}
	var h, e, c int
	for i := 0; i < len(q3); i++ {
		switch domain.Q3(q3[i]) {
		case domain.Q3Helix:
			h++
		case domain.Q3Strand:
			e++
		default:
			c++
		}
	}
	n := float64(len(q3))
	return float64(h) / n, float64(e) / n, float64(c) / n
}
