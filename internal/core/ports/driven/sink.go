package driven

import (
	"context"

	"github.com/custodia-labs/mmtf-derive/internal/core/domain"
)

// RecordSink consumes derived chain records.
type RecordSink interface {
	// Write consumes one record.
	Write(ctx context.Context, rec domain.ChainRecord) error

	// Close flushes and releases resources.
	Close() error
}
