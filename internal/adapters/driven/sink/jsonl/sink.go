// Package jsonl writes derived chain records as JSON Lines, one flat
// object per record.
package jsonl

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/custodia-labs/mmtf-derive/internal/core/domain"
	"github.com/custodia-labs/mmtf-derive/internal/core/ports/driven"
)

// Ensure Sink implements the interface.
var _ driven.RecordSink = (*Sink)(nil)

// Sink writes records to an io.Writer. Writes are serialised so the
// sink can be shared by workers.
type Sink struct {
	mu     sync.Mutex
	w      *bufio.Writer
	enc    *json.Encoder
	closer io.Closer
	count  int
	closed bool
}

// New creates a sink over w. Close flushes but does not close w.
func New(w io.Writer) *Sink {
	bw := bufio.NewWriter(w)
	return &Sink{w: bw, enc: json.NewEncoder(bw)}
}

// Create opens path for writing, creating parent directories, and
// returns a sink that closes the file on Close. "-" writes to stdout.
func Create(path string) (*Sink, error) {
	if path == "-" {
		return New(os.Stdout), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating output file: %w", err)
	}
	s := New(f)
	s.closer = f
	return s, nil
}

// Write encodes one record as a single line.
func (s *Sink) Write(_ context.Context, rec domain.ChainRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrSinkClosed
	}
	if err := s.enc.Encode(rec.Flat()); err != nil {
		return fmt.Errorf("encoding %s: %w", rec.Key, err)
	}
	s.count++
	return nil
}

// Count returns the number of records written.
func (s *Sink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Close flushes buffered output and closes the file, if any.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.w.Flush()
	if s.closer != nil {
		err = errors.Join(err, s.closer.Close())
	}
	return err
}
