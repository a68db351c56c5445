package driven

import (
	"context"

	"github.com/custodia-labs/mmtf-derive/internal/core/domain"
)

// SourceBuilder creates a RecordSource from its spec.
type SourceBuilder func(ctx context.Context, spec domain.SourceSpec) (RecordSource, error)

// SourceFactory creates record sources from source specs.
// It maintains a registry of source types and their builders.
type SourceFactory interface {
	// Create returns a RecordSource for the given spec.
	// Returns ErrUnsupportedType if the source type is unknown.
	Create(ctx context.Context, spec domain.SourceSpec) (RecordSource, error)

	// Register adds a source builder for the given type.
	Register(sourceType string, builder SourceBuilder)

	// SupportedTypes returns all registered source types, sorted.
	SupportedTypes() []string
}
