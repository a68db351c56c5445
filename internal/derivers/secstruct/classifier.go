package secstruct

import (
	"fmt"

	"github.com/custodia-labs/mmtf-derive/internal/core/domain"
	"github.com/custodia-labs/mmtf-derive/internal/core/ports/driven"
)

// ResidueFunc classifies a single residue. It returns
// domain.ErrClassificationUnavailable when it cannot assign a code.
type ResidueFunc func(r domain.Residue) (domain.Q8, error)

// perResidue adapts a ResidueFunc to driven.Classifier.
type perResidue struct {
	name string
	fn   ResidueFunc
}

// PerResidue builds a classifier that calls fn for every residue.
// Residues fn cannot classify get domain.Q8Unassigned.
func PerResidue(name string, fn ResidueFunc) driven.Classifier {
	return perResidue{name: name, fn: fn}
}

func (c perResidue) Name() string { return c.name }

func (c perResidue) Classify(residues []domain.Residue) []domain.Q8 {
	out := make([]domain.Q8, len(residues))
	for i, r := range residues {
		q, err := c.fn(r)
		if err != nil {
			q = domain.Q8Unassigned
		}
		out[i] = q
	}
	return out
}

// annotated reads the secondary structure recorded with the structure.
func annotated(r domain.Residue) (domain.Q8, error) {
	q := domain.Q8FromDSSP(int(r.Recorded))
	if q == domain.Q8Unassigned {
		return q, fmt.Errorf("%w: no recorded code (%d)", domain.ErrClassificationUnavailable, r.Recorded)
	}
	return q, nil
}

// requireBackbone refuses residues that lack N, CA or C.
func requireBackbone(fn ResidueFunc) ResidueFunc {
	return func(r domain.Residue) (domain.Q8, error) {
		if !r.HasBackbone() {
			return domain.Q8Unassigned, fmt.Errorf("%w: incomplete backbone", domain.ErrClassificationUnavailable)
		}
		return fn(r)
	}
}

// Classifier names.
const (
	ClassifierAnnotated    = "annotated"
	ClassifierAnnotatedRaw = "annotated-raw"
)

// Annotated uses the recorded DSSP codes as they are.
func Annotated() driven.Classifier {
	return PerResidue(ClassifierAnnotatedRaw, annotated)
}

// Default uses the recorded DSSP codes, but only for residues with a
// complete backbone, since a code cannot be computed without one.
func Default() driven.Classifier {
	return PerResidue(ClassifierAnnotated, requireBackbone(annotated))
}

// ClassifierByName returns a built-in classifier.
func ClassifierByName(name string) (driven.Classifier, error) {
	switch name {
	case ClassifierAnnotated:
		return Default(), nil
	case ClassifierAnnotatedRaw:
		return Annotated(), nil
	}
	return nil, fmt.Errorf("%w: unknown classifier: %s", domain.ErrUnsupportedType, name)
}
