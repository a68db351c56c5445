package domain

// PredicateKind tags the variant held by a Predicate.
type PredicateKind string

// Predicate kinds.
const (
	// PredicateAll accepts everything. The zero Predicate behaves as All.
	PredicateAll    PredicateKind = "all"
	PredicateAtomic PredicateKind = "atomic"
	PredicateAnd    PredicateKind = "and"
	PredicateOr     PredicateKind = "or"
	PredicateNot    PredicateKind = "not"
)

// Target selects what a predicate is evaluated against.
type Target string

// Predicate targets.
const (
	TargetStructure Target = "structure"
	TargetChain     Target = "chain"
)

// Comparison operators for atomic predicates.
const (
	OpLT       = "lt"
	OpLE       = "le"
	OpGT       = "gt"
	OpGE       = "ge"
	OpEQ       = "eq"
	OpNE       = "ne"
	OpIn       = "in"
	OpContains = "contains"
	OpAllIn    = "all_in"
)

// Predicate is a serialisable filter descriptor:
// Atomic(field, op, value) | And(terms) | Or(terms) | Not(term).
// Predicates are immutable values and carry no evaluation state.
type Predicate struct {
	Kind   PredicateKind `toml:"kind"`
	Target Target        `toml:"target,omitempty"`
	Field  string        `toml:"field,omitempty"`
	Op     string        `toml:"op,omitempty"`
	Value  any           `toml:"value,omitempty"`
	Terms  []Predicate   `toml:"terms,omitempty"`
}

// IsAll reports whether the predicate accepts everything unconditionally.
func (p Predicate) IsAll() bool {
	return p.Kind == "" || p.Kind == PredicateAll
}
