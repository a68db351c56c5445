package domain

import (
	"fmt"
	"runtime"
)

// Defaults for PipelineConfig.
const (
	DefaultPartitionCount = 8
)

// ExtractOptions controls how polymer chains are split out of a structure.
type ExtractOptions struct {
	// AllModels extracts chains from every model, not just the first.
	AllModels bool

	// UseChainID keys records on the chain id instead of the author chain name.
	UseChainID bool

	// ExcludeDuplicates skips chains whose sequence was already emitted
	// for the same structure.
	ExcludeDuplicates bool
}

// DeriverSpec names a registered deriver and its options.
type DeriverSpec struct {
	Name    string
	Options map[string]any
}

// PipelineConfig is the explicit configuration handed to the pipeline at
// call time. It must not be mutated once a run has started.
type PipelineConfig struct {
	// PartitionCount is the number of independent partitions.
	PartitionCount int

	// Workers bounds how many partitions run at once. Zero means GOMAXPROCS.
	Workers int

	// Filters are applied in order; each targets structures or chains.
	Filters []Predicate

	// DivisorOverride replaces the declared divisor for the named fields.
	DivisorOverride map[string]float64

	// Extract controls chain extraction.
	Extract ExtractOptions

	// Derivers are built from the deriver registry in this order.
	Derivers []DeriverSpec
}

// DefaultPipelineConfig returns the configuration used when none is supplied.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		PartitionCount: DefaultPartitionCount,
		Derivers:       []DeriverSpec{{Name: "secstruct"}},
	}
}

// EffectiveWorkers returns the worker bound to use.
func (c PipelineConfig) EffectiveWorkers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// Validate checks the scalar settings.
func (c PipelineConfig) Validate() error {
	if c.PartitionCount < 1 {
		return fmt.Errorf("%w: partition count must be at least 1, got %d", ErrInvalidInput, c.PartitionCount)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative, got %d", ErrInvalidInput, c.Workers)
	}
	for field, d := range c.DivisorOverride {
		if d <= 0 {
			return fmt.Errorf("%w: divisor override for %s must be positive, got %g", ErrInvalidInput, field, d)
		}
	}
	return nil
}
