package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/mmtf-derive/internal/core/domain"
	"github.com/custodia-labs/mmtf-derive/internal/core/ports/driven"
)

// Ensure Sink implements the interface.
var _ driven.RecordSink = (*Sink)(nil)

// Sink collects derived records in memory.
type Sink struct {
	mu      sync.Mutex
	records []domain.ChainRecord
	closed  bool
}

// NewSink creates an empty sink.
func NewSink() *Sink {
	return &Sink{}
}

// Write appends a record.
func (s *Sink) Write(_ context.Context, rec domain.ChainRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrSinkClosed
	}
	s.records = append(s.records, rec)
	return nil
}

// Close marks the sink closed; later writes fail.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Records returns a copy of the collected records in write order.
func (s *Sink) Records() []domain.ChainRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ChainRecord(nil), s.records...)
}

// Len returns the number of collected records.
func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
