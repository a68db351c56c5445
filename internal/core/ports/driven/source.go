package driven

import (
	"context"

	"github.com/custodia-labs/mmtf-derive/internal/core/domain"
)

// RecordSource produces raw structure records.
// Each source type (filesystem, rcsb, sqlite archive, memory) implements this interface.
type RecordSource interface {
	// Type returns the source type identifier.
	Type() string

	// Records streams every record of the source.
	// Both channels are closed when the source is exhausted or ctx is done.
	// Errors on the error channel are per-record and non-fatal.
	Records(ctx context.Context) (<-chan domain.RawRecord, <-chan error)

	// Close releases resources.
	Close() error
}

// WatchSource is a RecordSource that can also push new records as they appear.
type WatchSource interface {
	RecordSource

	// Watch listens for new or changed records until ctx is done.
	Watch(ctx context.Context) (<-chan domain.RawRecordChange, <-chan error)
}

// RecordError ties a source error to the record it concerns.
type RecordError struct {
	ID  string
	Err error
}

// Error implements the error interface.
func (e *RecordError) Error() string {
	return e.ID + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *RecordError) Unwrap() error {
	return e.Err
}
