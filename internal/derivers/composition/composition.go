// Package composition derives residue composition fields.
package composition

import (
	"context"

	"github.com/custodia-labs/mmtf-derive/internal/core/domain"
)

// Name is the registry name of the deriver.
const Name = "composition"

// Field names added to the record metadata.
const (
	FieldLength           = "length"
	FieldUnknownResidues  = "unknownResidues"
	FieldStandardFraction = "standardFraction"
)

// Unknown is the one-letter code of residues without a standard code.
const Unknown = 'X'

// Deriver counts standard and unknown residues.
type Deriver struct{}

// New creates a composition deriver.
func New() *Deriver {
	return &Deriver{}
}

// Name returns the deriver name.
func (d *Deriver) Name() string {
	return Name
}

// Derive adds the chain length, the number of residues with an unknown
// code and the fraction of standard residues.
func (d *Deriver) Derive(_ context.Context, rec domain.ChainRecord) (domain.ChainRecord, error) {
	unknown := 0
	for i := 0; i < len(rec.Sequence); i++ {
		if c := rec.Sequence[i]; c == Unknown || c == '?' {
			unknown++
		}
	}
	frac := 0.0
	if n := len(rec.Sequence); n > 0 {
		frac = float64(n-unknown) / float64(n)
	}

	if rec.Metadata == nil {
		rec.Metadata = make(map[string]any)
	}
	rec.Metadata[FieldLength] = len(rec.Sequence)
	rec.Metadata[FieldUnknownResidues] = unknown
	rec.Metadata[FieldStandardFraction] = frac
	return rec, nil
}
