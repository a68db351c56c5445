package driven

import (
	"context"

	"github.com/custodia-labs/mmtf-derive/internal/core/domain"
)

// Deriver produces a new chain record with derived fields populated.
// Derivers are deterministic, side-effect free, and safe to run
// concurrently on different records.
type Deriver interface {
	// Name returns the deriver name for logging and configuration.
	Name() string

	// Derive returns a copy of rec with this deriver's fields set.
	// The input record must not be modified.
	Derive(ctx context.Context, rec domain.ChainRecord) (domain.ChainRecord, error)
}

// DeriverFactory builds a combined deriver from configuration.
type DeriverFactory interface {
	// Build creates the derivers named in specs, in order, combined into one.
	Build(specs []domain.DeriverSpec) (Deriver, error)

	// Names returns all registered deriver names.
	Names() []string
}

// Classifier assigns a Q8 code to every residue of a chain.
// It is a pure function of the residues. Residues it cannot classify
// get domain.Q8Unassigned.
type Classifier interface {
	// Name returns the classifier name.
	Name() string

	// Classify returns exactly one code per residue.
	Classify(residues []domain.Residue) []domain.Q8
}
