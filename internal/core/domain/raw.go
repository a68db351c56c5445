package domain

// RawRecord represents opaque bytes produced by a record source.
// It is the source's output before decoding and must not be mutated
// once handed to the pipeline.
type RawRecord struct {
	// ID is the structure identifier (e.g. "1STP").
	ID string

	// Content is the encoded structure, optionally gzip-compressed.
	Content []byte

	// Metadata contains source-specific key-value pairs (path, URL).
	Metadata map[string]any
}

// ChangeType represents the type of change reported by a watching source.
type ChangeType int

const (
	// ChangeCreated indicates a new record.
	ChangeCreated ChangeType = iota

	// ChangeUpdated indicates a modified record.
	ChangeUpdated
)

// RawRecordChange represents a change event from a watching source.
type RawRecordChange struct {
	// Type is the kind of change.
	Type ChangeType

	// Record is the affected record.
	Record RawRecord
}

// String returns the change name.
func (c ChangeType) String() string {
	switch c {
	case ChangeCreated:
		return "created"
	case ChangeUpdated:
		return "updated"
	default:
		return "unknown"
	}
}
