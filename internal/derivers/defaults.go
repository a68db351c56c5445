package derivers

import (
	"github.com/custodia-labs/mmtf-derive/internal/core/ports/driven"
	"github.com/custodia-labs/mmtf-derive/internal/derivers/composition"
	"github.com/custodia-labs/mmtf-derive/internal/derivers/secstruct"
	"github.com/custodia-labs/mmtf-derive/internal/derivers/segments"
)

// RegisterDefaults registers all built-in derivers with the registry.
// Call this during application initialisation to enable standard derivers.
func RegisterDefaults(r *Registry) {
	r.Register(secstruct.Name, buildSecStruct)
	r.Register(segments.Name, buildSegments)
	r.Register(composition.Name, buildComposition)
}

// NewDefaultRegistry returns a registry with the built-in derivers.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	RegisterDefaults(r)
	return r
}

// buildSecStruct creates a secondary-structure deriver from generic config.
// Supported config keys:
//   - classifier (string): "annotated" (default) or "annotated-raw"
func buildSecStruct(cfg map[string]any) (driven.Deriver, error) {
	c, err := classifierFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return secstruct.New(secstruct.WithClassifier(c)), nil
}

// buildSegments creates a segment summary deriver from generic config.
// Supported config keys:
//   - min_length (int): Shortest helix or strand run counted (default: 1)
//   - classifier (string): as for secstruct
func buildSegments(cfg map[string]any) (driven.Deriver, error) {
	var opts []segments.Option
	if n := getIntFromConfig(cfg, "min_length"); n > 0 {
		opts = append(opts, segments.WithMinLength(n))
	}
	c, err := classifierFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	opts = append(opts, segments.WithClassifier(c))
	return segments.New(opts...), nil
}

// classifierFromConfig resolves the classifier option. It returns nil
// when the option is absent.
func classifierFromConfig(cfg map[string]any) (driven.Classifier, error) {
	name := getStringFromConfig(cfg, optClassifier)
	if name == "" {
		return nil, nil
	}
	return secstruct.ClassifierByName(name)
}

// buildComposition creates a composition deriver. It takes no config.
func buildComposition(_ map[string]any) (driven.Deriver, error) {
	return composition.New(), nil
}

// getIntFromConfig safely extracts an int from generic config map.
// Handles int, int64, and float64 types that may come from TOML/JSON parsing.
func getIntFromConfig(cfg map[string]any, key string) int {
	val, ok := cfg[key]
	if !ok {
		return 0
	}

	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// getStringFromConfig extracts a string, returning "" when absent.
func getStringFromConfig(cfg map[string]any, key string) string {
	s, _ := cfg[key].(string)
	return s
}
