package filter

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/custodia-labs/mmtf-derive/internal/core/domain"
)

// lookup resolves a field name to its value. The value is float64,
// string or []string; ok is false when the field is absent.
type lookup func(field string) (value any, ok bool)

// EvalStructure evaluates p against a structure.
func EvalStructure(p domain.Predicate, s *domain.Structure) bool {
	return eval(p, func(field string) (any, bool) { return structureField(s, field) })
}

// EvalChain evaluates p against a chain record.
func EvalChain(p domain.Predicate, rec domain.ChainRecord) bool {
	return eval(p, func(field string) (any, bool) { return chainField(rec, field) })
}

// EvalAll reports whether every predicate accepts, using eval for each.
func EvalAll[T any](preds []domain.Predicate, v T, evalFn func(domain.Predicate, T) bool) bool {
	for _, p := range preds {
		if !evalFn(p, v) {
			return false
		}
	}
	return true
}

func eval(p domain.Predicate, get lookup) bool {
	switch p.Kind {
	case "", domain.PredicateAll:
		return true
	case domain.PredicateAtomic:
		v, ok := get(p.Field)
		if !ok {
			return false
		}
		return compare(v, p.Op, p.Value)
	case domain.PredicateAnd:
		for _, t := range p.Terms {
			if !eval(t, get) {
				return false
			}
		}
		return true
	case domain.PredicateOr:
		for _, t := range p.Terms {
			if eval(t, get) {
				return true
			}
		}
		return false
	case domain.PredicateNot:
		if len(p.Terms) != 1 {
			return false
		}
		return !eval(p.Terms[0], get)
	default:
		return false
	}
}

func structureField(s *domain.Structure, field string) (any, bool) {
	switch field {
	case FieldResolution:
		return optional(s.Resolution)
	case FieldRFree:
		return optional(s.RFree)
	case FieldRWork:
		return optional(s.RWork)
	case FieldExperimentalMethod:
		return s.ExperimentalMethods, len(s.ExperimentalMethods) > 0
	case FieldReleaseDate:
		return s.ReleaseDate, s.ReleaseDate != ""
	case FieldDepositionDate:
		return s.DepositionDate, s.DepositionDate != ""
	case FieldNumModels:
		return float64(s.NumModels()), true
	case FieldNumChains:
		return float64(s.NumChains()), true
	case FieldNumPolymerChains:
		return float64(s.NumPolymerChains()), true
	case FieldPolymerTypes:
		types := s.PolymerTypes()
		return polymerStrings(types), len(types) > 0
	case FieldID:
		return s.ID, s.ID != ""
	}
	return nil, false
}

func chainField(rec domain.ChainRecord, field string) (any, bool) {
	switch field {
	case FieldResolution:
		return optional(rec.Meta.Resolution)
	case FieldRFree:
		return optional(rec.Meta.RFree)
	case FieldRWork:
		return optional(rec.Meta.RWork)
	case FieldExperimentalMethod:
		return rec.Meta.ExperimentalMethods, len(rec.Meta.ExperimentalMethods) > 0
	case FieldPolymerType:
		return string(rec.PolymerType), rec.PolymerType != ""
	case FieldEntityType:
		return string(rec.EntityType), rec.EntityType != ""
	case FieldLength:
		return float64(len(rec.Sequence)), true
	case FieldSequence:
		return rec.Sequence, true
	case FieldChainName:
		return rec.ChainName, true
	case FieldChainID:
		return rec.ChainID, true
	case FieldStructureID:
		return rec.StructureID, true
	}
	v, ok := rec.Metadata[field]
	if !ok {
		return nil, false
	}
	return normalise(v)
}

func optional(v domain.OptionalFloat) (any, bool) {
	if !v.Valid {
		return nil, false
	}
	return v.Value, true
}

// normalise maps metadata values onto the three comparable shapes.
func normalise(v any) (any, bool) {
	if f, ok := toFloat(v); ok {
		return f, true
	}
	switch val := v.(type) {
	case string:
		return val, true
	case bool:
		return strconv.FormatBool(val), true
	}
	if ss, ok := toStrings(v); ok {
		return ss, true
	}
	return nil, false
}

func compare(field any, op string, want any) bool {
	switch f := field.(type) {
	case float64:
		return compareFloat(f, op, want)
	case string:
		return compareString(f, op, want)
	case []string:
		return compareList(f, op, want)
	}
	return false
}

func compareFloat(f float64, op string, want any) bool {
	if op == domain.OpIn {
		vals, ok := toFloats(want)
		return ok && slices.Contains(vals, f)
	}
	w, ok := toFloat(want)
	if !ok {
		return false
	}
	switch op {
	case domain.OpLT:
		return f < w
	case domain.OpLE:
		return f <= w
	case domain.OpGT:
		return f > w
	case domain.OpGE:
		return f >= w
	case domain.OpEQ:
		return f == w
	case domain.OpNE:
		return f != w
	}
	return false
}

func compareString(s, op string, want any) bool {
	if op == domain.OpIn {
		vals, ok := toStrings(want)
		return ok && slices.ContainsFunc(vals, func(v string) bool { return strings.EqualFold(v, s) })
	}
	w, ok := want.(string)
	if !ok {
		w = fmt.Sprint(want)
	}
	switch op {
	case domain.OpEQ:
		return strings.EqualFold(s, w)
	case domain.OpNE:
		return !strings.EqualFold(s, w)
	case domain.OpContains:
		return strings.Contains(strings.ToUpper(s), strings.ToUpper(w))
	case domain.OpLT:
		return s < w
	case domain.OpLE:
		return s <= w
	case domain.OpGT:
		return s > w
	case domain.OpGE:
		return s >= w
	}
	return false
}

func compareList(list []string, op string, want any) bool {
	has := func(v string) bool {
		return slices.ContainsFunc(list, func(e string) bool { return strings.EqualFold(e, v) })
	}
	switch op {
	case domain.OpEQ, domain.OpContains:
		w, ok := want.(string)
		return ok && has(w)
	case domain.OpNE:
		w, ok := want.(string)
		return ok && !has(w)
	case domain.OpIn:
		vals, ok := toStrings(want)
		return ok && slices.ContainsFunc(vals, has)
	case domain.OpAllIn:
		vals, ok := toStrings(want)
		if !ok || len(list) == 0 {
			return false
		}
		for _, e := range list {
			if !slices.ContainsFunc(vals, func(v string) bool { return strings.EqualFold(e, v) }) {
				return false
			}
		}
		return true
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func toFloats(v any) ([]float64, bool) {
	switch vals := v.(type) {
	case []float64:
		return vals, true
	case []int:
		out := make([]float64, len(vals))
		for i, n := range vals {
			out[i] = float64(n)
		}
		return out, true
	case []any:
		out := make([]float64, 0, len(vals))
		for _, e := range vals {
			f, ok := toFloat(e)
			if !ok {
				return nil, false
			}
			out = append(out, f)
		}
		return out, true
	}
	return nil, false
}

func toStrings(v any) ([]string, bool) {
	switch vals := v.(type) {
	case string:
		return []string{vals}, true
	case []string:
		return vals, true
	case []any:
		out := make([]string, 0, len(vals))
		for _, e := range vals {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}
