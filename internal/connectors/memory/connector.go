// Package memory provides an in-process record source for tests and
// generated input.
package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/mmtf-derive/internal/core/domain"
	"github.com/custodia-labs/mmtf-derive/internal/core/ports/driven"
)

// Ensure Source implements the interface.
var _ driven.WatchSource = (*Source)(nil)

// Type is the source type identifier.
const Type = "memory"

// Source streams a fixed slice of records, then any records pushed while
// a watch is active.
type Source struct {
	mu       sync.Mutex
	records  []domain.RawRecord
	errs     []error
	watchers []*watcher
	closed   bool
}

// watcher is one active Watch. done is closed before ch so a blocked
// Push gives up before the channel goes away.
type watcher struct {
	ch       chan domain.RawRecordChange
	done     chan struct{}
	stopOnce sync.Once
}

func (w *watcher) stop() {
	w.stopOnce.Do(func() { close(w.done) })
}

// New creates a source over records.
func New(records ...domain.RawRecord) *Source {
	return &Source{records: append([]domain.RawRecord(nil), records...)}
}

// WithErrors adds per-record errors reported after the records.
func (s *Source) WithErrors(errs ...error) *Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, errs...)
	return s
}

// Type returns the source type identifier.
func (s *Source) Type() string {
	return Type
}

// Len returns the number of stored records.
func (s *Source) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Records streams a snapshot of the stored records and errors.
func (s *Source) Records(ctx context.Context) (<-chan domain.RawRecord, <-chan error) {
	s.mu.Lock()
	records := append([]domain.RawRecord(nil), s.records...)
	errs := append([]error(nil), s.errs...)
	closed := s.closed
	s.mu.Unlock()

	recordsCh := make(chan domain.RawRecord)
	errsCh := make(chan error)

	go func() {
		defer close(recordsCh)
		defer close(errsCh)

		if closed {
			select {
			case errsCh <- domain.ErrSourceClosed:
			case <-ctx.Done():
			}
			return
		}
		for _, rec := range records {
			select {
			case recordsCh <- rec:
			case <-ctx.Done():
				return
			}
		}
		for _, err := range errs {
			select {
			case errsCh <- err:
			case <-ctx.Done():
				return
			}
		}
	}()

	return recordsCh, errsCh
}

// Watching returns the number of active watches.
func (s *Source) Watching() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watchers)
}

// Push stores rec and reports it to active watchers. Pushing an ID that
// is already stored replaces it and is reported as an update.
func (s *Source) Push(ctx context.Context, rec domain.RawRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrSourceClosed
	}
	change := domain.RawRecordChange{Type: domain.ChangeCreated, Record: rec}
	replaced := false
	for i := range s.records {
		if s.records[i].ID == rec.ID {
			s.records[i] = rec
			change.Type = domain.ChangeUpdated
			replaced = true
			break
		}
	}
	if !replaced {
		s.records = append(s.records, rec)
	}
	for _, w := range s.watchers {
		select {
		case w.ch <- change:
		case <-w.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Watch reports records pushed after the call until ctx is done or the
// source is closed.
func (s *Source) Watch(ctx context.Context) (<-chan domain.RawRecordChange, <-chan error) {
	errsCh := make(chan error, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		changes := make(chan domain.RawRecordChange)
		close(changes)
		errsCh <- domain.ErrSourceClosed
		close(errsCh)
		return changes, errsCh
	}
	w := &watcher{ch: make(chan domain.RawRecordChange, 16), done: make(chan struct{})}
	s.watchers = append(s.watchers, w)
	s.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-w.done:
		}
		w.stop()
		s.removeWatcher(w)
		close(errsCh)
	}()

	return w.ch, errsCh
}

func (s *Source) removeWatcher(w *watcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, active := range s.watchers {
		if active == w {
			s.watchers = append(s.watchers[:i], s.watchers[i+1:]...)
			close(w.ch)
			return
		}
	}
}

// Close ends every active watch. Their change channels close shortly after.
func (s *Source) Close() error {
	s.mu.Lock()
	s.closed = true
	watchers := append([]*watcher(nil), s.watchers...)
	s.mu.Unlock()

	for _, w := range watchers {
		w.stop()
	}
	return nil
}
