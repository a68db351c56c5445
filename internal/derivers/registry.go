// Package derivers provides chain record deriver implementations and the
// registry that builds them from configuration.
package derivers

import (
	"fmt"
	"maps"
	"sort"

	"github.com/custodia-labs/mmtf-derive/internal/core/domain"
	"github.com/custodia-labs/mmtf-derive/internal/core/ports/driven"
)

// Ensure Registry implements the interface.
var _ driven.DeriverFactory = (*Registry)(nil)

// optClassifier names the residue classifier. Every deriver built
// together shares the first classifier set in the list.
const optClassifier = "classifier"

// sharedOptions are copied from the first spec that sets them into the
// specs of the same Build that do not.
var sharedOptions = []string{optClassifier}

// BuilderFunc creates a Deriver from generic config.
// Config is a map of deriver-specific settings parsed from user config.
type BuilderFunc func(cfg map[string]any) (driven.Deriver, error)

// Registry maps deriver names to their builders.
// It allows dynamic construction of derivers from configuration.
type Registry struct {
	builders map[string]BuilderFunc
}

// NewRegistry creates a new deriver registry.
func NewRegistry() *Registry {
	return &Registry{
		builders: make(map[string]BuilderFunc),
	}
}

// Register adds a deriver builder to the registry.
// Name should be unique and match the deriver's Name() return value.
func (r *Registry) Register(name string, builder BuilderFunc) {
	r.builders[name] = builder
}

// BuildOne creates a deriver by name with the given config.
// Returns error if the deriver name is not registered.
func (r *Registry) BuildOne(name string, cfg map[string]any) (driven.Deriver, error) {
	builder, ok := r.builders[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown deriver: %s", domain.ErrUnsupportedType, name)
	}
	return builder(cfg)
}

// Build creates every deriver in specs, in order, combined into a Set.
// Shared options such as the classifier apply to every deriver in the set,
// so the derived fields of one record agree with each other.
func (r *Registry) Build(specs []domain.DeriverSpec) (driven.Deriver, error) {
	derivers := make([]driven.Deriver, 0, len(specs))
	for _, spec := range shareOptions(specs) {
		d, err := r.BuildOne(spec.Name, spec.Options)
		if err != nil {
			return nil, err
		}
		derivers = append(derivers, d)
	}
	return NewSet(derivers...), nil
}

// Has returns true if a deriver with the given name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.builders[name]
	return ok
}

// Names returns all registered deriver names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// shareOptions returns specs with the shared options filled in. The
// caller's option maps are not modified.
func shareOptions(specs []domain.DeriverSpec) []domain.DeriverSpec {
	shared := make(map[string]any)
	for _, key := range sharedOptions {
		for _, spec := range specs {
			if v, ok := spec.Options[key]; ok {
				shared[key] = v
				break
			}
		}
	}
	if len(shared) == 0 {
		return specs
	}

	out := make([]domain.DeriverSpec, len(specs))
	for i, spec := range specs {
		opts := maps.Clone(spec.Options)
		if opts == nil {
			opts = make(map[string]any, len(shared))
		}
		for key, v := range shared {
			if _, ok := opts[key]; !ok {
				opts[key] = v
			}
		}
		out[i] = domain.DeriverSpec{Name: spec.Name, Options: opts}
	}
	return out
}
