// Package filter builds and evaluates composable predicates over
// structures and chain records.
//
// Predicates are plain domain.Predicate values. They carry no state, can
// be serialised to TOML, and evaluate identically however often and on
// whichever worker they run. An atomic predicate over an absent optional
// field (a structure with no recorded resolution, say) is false.
package filter

import (
	"fmt"
	"slices"
	"strings"

	"github.com/custodia-labs/mmtf-derive/internal/core/domain"
)

// Structure field names.
const (
	FieldResolution         = "resolution"
	FieldRFree              = "rFree"
	FieldRWork              = "rWork"
	FieldExperimentalMethod = "experimentalMethod"
	FieldReleaseDate        = "releaseDate"
	FieldDepositionDate     = "depositionDate"
	FieldNumModels          = "numModels"
	FieldNumChains          = "numChains"
	FieldNumPolymerChains   = "numPolymerChains"
	FieldPolymerTypes       = "polymerTypes"
	FieldID                 = "id"
)

// Chain field names. Chain predicates also see every field a deriver
// placed in the record metadata.
const (
	FieldPolymerType = "polymerType"
	FieldEntityType  = "entityType"
	FieldLength      = "length"
	FieldSequence    = domain.FieldSequence
	FieldChainName   = "chainName"
	FieldChainID     = "chainId"
	FieldStructureID = domain.FieldStructureID
)

var structureFields = []string{
	FieldResolution, FieldRFree, FieldRWork, FieldExperimentalMethod, FieldReleaseDate,
	FieldDepositionDate, FieldNumModels, FieldNumChains, FieldNumPolymerChains, FieldPolymerTypes, FieldID,
}

var ops = []string{
	domain.OpLT, domain.OpLE, domain.OpGT, domain.OpGE, domain.OpEQ, domain.OpNE,
	domain.OpIn, domain.OpContains, domain.OpAllIn,
}

// All accepts everything.
func All() domain.Predicate {
	return domain.Predicate{Kind: domain.PredicateAll}
}

// Atomic compares one field against a value.
func Atomic(target domain.Target, field, op string, value any) domain.Predicate {
	return domain.Predicate{Kind: domain.PredicateAtomic, Target: target, Field: field, Op: op, Value: value}
}

// And accepts when every term accepts. And() with no terms accepts.
func And(terms ...domain.Predicate) domain.Predicate {
	return domain.Predicate{Kind: domain.PredicateAnd, Target: commonTarget(terms), Terms: terms}
}

// Or accepts when any term accepts.
func Or(terms ...domain.Predicate) domain.Predicate {
	return domain.Predicate{Kind: domain.PredicateOr, Target: commonTarget(terms), Terms: terms}
}

// Not negates a predicate.
func Not(term domain.Predicate) domain.Predicate {
	return domain.Predicate{Kind: domain.PredicateNot, Target: TargetOf(term), Terms: []domain.Predicate{term}}
}

// Resolution accepts structures with min <= resolution <= max.
func Resolution(minRes, maxRes float64) domain.Predicate {
	return between(FieldResolution, minRes, maxRes)
}

// RFree accepts structures with min <= R-free <= max.
func RFree(minR, maxR float64) domain.Predicate {
	return between(FieldRFree, minR, maxR)
}

// RWork accepts structures with min <= R-work <= max.
func RWork(minR, maxR float64) domain.Predicate {
	return between(FieldRWork, minR, maxR)
}

func between(field string, lo, hi float64) domain.Predicate {
	return And(
		Atomic(domain.TargetStructure, field, domain.OpGE, lo),
		Atomic(domain.TargetStructure, field, domain.OpLE, hi),
	)
}

// ExperimentalMethod accepts structures solved by any of the methods.
func ExperimentalMethod(methods ...string) domain.Predicate {
	return Atomic(domain.TargetStructure, FieldExperimentalMethod, domain.OpIn, methods)
}

// ContainsPolymerType accepts structures with at least one polymer chain
// of the given type.
func ContainsPolymerType(t domain.PolymerType) domain.Predicate {
	return Atomic(domain.TargetStructure, FieldPolymerTypes, domain.OpContains, string(t))
}

// OnlyPolymerTypes accepts structures whose polymer chains are all of the
// given types.
func OnlyPolymerTypes(types ...domain.PolymerType) domain.Predicate {
	return Atomic(domain.TargetStructure, FieldPolymerTypes, domain.OpAllIn, polymerStrings(types))
}

// ChainType accepts chain records of any of the given polymer types.
func ChainType(types ...domain.PolymerType) domain.Predicate {
	return Atomic(domain.TargetChain, FieldPolymerType, domain.OpIn, polymerStrings(types))
}

// MinLength accepts chain records with at least n residues.
func MinLength(n int) domain.Predicate {
	return Atomic(domain.TargetChain, FieldLength, domain.OpGE, n)
}

func polymerStrings(types []domain.PolymerType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

// TargetOf returns what a predicate is evaluated against. Atomic
// predicates without a target default to the structure; composites take
// the target of their terms.
func TargetOf(p domain.Predicate) domain.Target {
	if p.Target != "" {
		return p.Target
	}
	if p.Kind == domain.PredicateAtomic {
		return domain.TargetStructure
	}
	if t := commonTarget(p.Terms); t != "" {
		return t
	}
	return domain.TargetStructure
}

func commonTarget(terms []domain.Predicate) domain.Target {
	var t domain.Target
	for _, term := range terms {
		if term.IsAll() {
			continue
		}
		tt := TargetOf(term)
		if t == "" {
			t = tt
		} else if t != tt {
			return ""
		}
	}
	return t
}

// Split separates predicates into structure and chain predicates,
// keeping their order. All predicates are dropped.
func Split(preds []domain.Predicate) (structures, chains []domain.Predicate) {
	for _, p := range preds {
		if p.IsAll() {
			continue
		}
		if TargetOf(p) == domain.TargetChain {
			chains = append(chains, p)
		} else {
			structures = append(structures, p)
		}
	}
	return structures, chains
}

// Validate checks a predicate tree for unknown kinds, operators and
// structure fields, and for composites that mix targets.
func Validate(p domain.Predicate) error {
	return validate(p, "")
}

func validate(p domain.Predicate, parent domain.Target) error {
	target := p.Target
	if target == "" {
		target = parent
	}
	switch p.Kind {
	case "", domain.PredicateAll:
		return nil
	case domain.PredicateAtomic:
		if p.Field == "" {
			return fmt.Errorf("%w: atomic predicate needs a field", domain.ErrInvalidInput)
		}
		if !slices.Contains(ops, p.Op) {
			return fmt.Errorf("%w: unknown operator %q", domain.ErrInvalidInput, p.Op)
		}
		if p.Value == nil {
			return fmt.Errorf("%w: predicate on %s needs a value", domain.ErrInvalidInput, p.Field)
		}
		if target != domain.TargetChain && !slices.Contains(structureFields, p.Field) {
			return fmt.Errorf("%w: unknown structure field %q", domain.ErrInvalidInput, p.Field)
		}
		return nil
	case domain.PredicateAnd, domain.PredicateOr, domain.PredicateNot:
		if p.Kind == domain.PredicateNot && len(p.Terms) != 1 {
			return fmt.Errorf("%w: not takes exactly one term, got %d", domain.ErrInvalidInput, len(p.Terms))
		}
		if p.Target == "" && len(p.Terms) > 1 && commonTarget(p.Terms) == "" {
			return fmt.Errorf("%w: %s mixes structure and chain terms", domain.ErrInvalidInput, p.Kind)
		}
		for _, term := range p.Terms {
			if term.Target != "" && p.Target != "" && term.Target != p.Target {
				return fmt.Errorf("%w: %s term targets %s inside a %s predicate", domain.ErrInvalidInput, p.Kind, term.Target, p.Target)
			}
			if err := validate(term, TargetOf(p)); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: predicate kind %q", domain.ErrUnsupportedType, p.Kind)
	}
}

// String renders a predicate for logs and the CLI.
func String(p domain.Predicate) string {
	switch p.Kind {
	case "", domain.PredicateAll:
		return "all"
	case domain.PredicateAtomic:
		return fmt.Sprintf("%s %s %v", p.Field, p.Op, p.Value)
	case domain.PredicateNot:
		if len(p.Terms) == 1 {
			return "not (" + String(p.Terms[0]) + ")"
		}
		return "not ()"
	default:
		parts := make([]string, len(p.Terms))
		for i, t := range p.Terms {
			parts[i] = String(t)
		}
		return "(" + strings.Join(parts, " "+string(p.Kind)+" ") + ")"
	}
}
