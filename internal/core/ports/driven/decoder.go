package driven

import "github.com/custodia-labs/mmtf-derive/internal/core/domain"

// StructureDecoder turns one encoded record into a Structure.
// Decoding is all-or-nothing: on error no Structure is returned.
// Implementations must be safe for concurrent use.
type StructureDecoder interface {
	// Format returns the encoding this decoder handles (e.g. "mmtf").
	Format() string

	// Decode parses the record bytes.
	// Errors are *domain.DecodeError values.
	Decode(data []byte) (*domain.Structure, error)
}
