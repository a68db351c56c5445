// Package filesystem reads encoded structure files from a directory tree
// and watches it for new ones.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/edsrzf/mmap-go"
	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/mmtf-derive/internal/core/domain"
	"github.com/custodia-labs/mmtf-derive/internal/core/ports/driven"
	"github.com/custodia-labs/mmtf-derive/internal/logger"
)

// Ensure Connector implements the interfaces.
var (
	_ driven.RecordSource = (*Connector)(nil)
	_ driven.WatchSource  = (*Connector)(nil)
)

// Type is the source type identifier.
const Type = "filesystem"

// DefaultDebounce is how long a file must be quiet before a watch event
// is emitted for it.
const DefaultDebounce = 100 * time.Millisecond

// Extensions lists the file suffixes read as records.
var Extensions = []string{".mmtf", ".mmtf.gz"}

// Metadata keys set on records.
const (
	MetaPath = "path"
	MetaSize = "size"
)

// Connector streams structure files below a root directory.
type Connector struct {
	root     string
	debounce time.Duration

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	closed  bool
}

// Option configures the connector.
type Option func(*Connector)

// WithDebounce sets the quiet period before watch events are emitted.
func WithDebounce(d time.Duration) Option {
	return func(c *Connector) {
		if d > 0 {
			c.debounce = d
		}
	}
}

// New creates a connector rooted at root.
func New(root string, opts ...Option) *Connector {
	c := &Connector{root: root, debounce: DefaultDebounce}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Type returns the source type identifier.
func (c *Connector) Type() string {
	return Type
}

// Root returns the directory being read.
func (c *Connector) Root() string {
	return c.root
}

// Records walks the root and streams every structure file in lexical
// path order. Hidden files and directories are skipped.
func (c *Connector) Records(ctx context.Context) (<-chan domain.RawRecord, <-chan error) {
	records := make(chan domain.RawRecord)
	errs := make(chan error, 16)

	go func() {
		defer close(records)
		defer close(errs)

		info, err := os.Stat(c.root)
		if err != nil {
			errs <- fmt.Errorf("%w: %w", domain.ErrSource, err)
			return
		}
		if !info.IsDir() {
			errs <- fmt.Errorf("%w: %s is not a directory", domain.ErrSource, c.root)
			return
		}

		walkErr := filepath.WalkDir(c.root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return sendErr(ctx, errs, &driven.RecordError{ID: path, Err: err})
			}
			if path != c.root && isHidden(d.Name()) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() || !IsStructureFile(path) {
				return nil
			}

			rec, err := ReadRecord(path)
			if err != nil {
				return sendErr(ctx, errs, err)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case records <- rec:
			}
			return nil
		})
		if walkErr != nil && ctx.Err() == nil {
			logger.Warn("Walk of %s stopped: %v", c.root, walkErr)
		}
	}()

	return records, errs
}

func sendErr(ctx context.Context, errs chan<- error, err error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case errs <- err:
		return nil
	}
}

// pendingEvent is a debounced file event ready to be read.
type pendingEvent struct {
	path string
	typ  domain.ChangeType
}

// Watch streams records for structure files created or rewritten below
// the root until ctx is done or the connector is closed.
func (c *Connector) Watch(ctx context.Context) (<-chan domain.RawRecordChange, <-chan error) {
	changes := make(chan domain.RawRecordChange)
	errs := make(chan error, 16)

	watcher, err := c.startWatcher()
	if err != nil {
		errs <- err
		close(changes)
		close(errs)
		return changes, errs
	}

	go func() {
		defer close(changes)
		defer close(errs)

		d := newDebouncer(ctx, c.debounce)
		defer d.stop()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Create) {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
						if !isHidden(info.Name()) {
							if err := addTree(watcher, event.Name); err != nil {
								_ = sendErr(ctx, errs, err)
							}
						}
						continue
					}
				}
				if !IsStructureFile(event.Name) || isHidden(filepath.Base(event.Name)) {
					continue
				}
				switch {
				case event.Has(fsnotify.Create):
					d.schedule(event.Name, domain.ChangeCreated)
				case event.Has(fsnotify.Write):
					d.schedule(event.Name, domain.ChangeUpdated)
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				_ = sendErr(ctx, errs, fmt.Errorf("%w: watch: %w", domain.ErrSource, err))

			case ev := <-d.ready:
				rec, err := ReadRecord(ev.path)
				if err != nil {
					if !errors.Is(err, fs.ErrNotExist) {
						_ = sendErr(ctx, errs, err)
					}
					continue
				}
				logger.Debug("Watch %s: %s", ev.typ, ev.path)
				select {
				case <-ctx.Done():
					return
				case changes <- domain.RawRecordChange{Type: ev.typ, Record: rec}:
				}
			}
		}
	}()

	return changes, errs
}

// debouncer coalesces bursts of events per path. A path created and then
// written within the quiet period is reported once, as created.
type debouncer struct {
	ctx     context.Context
	delay   time.Duration
	ready   chan pendingEvent
	mu      sync.Mutex
	timers  map[string]*time.Timer
	created map[string]bool
}

func newDebouncer(ctx context.Context, delay time.Duration) *debouncer {
	return &debouncer{
		ctx:     ctx,
		delay:   delay,
		ready:   make(chan pendingEvent, 64),
		timers:  make(map[string]*time.Timer),
		created: make(map[string]bool),
	}
}

func (d *debouncer) schedule(path string, typ domain.ChangeType) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if typ == domain.ChangeCreated {
		d.created[path] = true
	}
	if t, ok := d.timers[path]; ok {
		t.Reset(d.delay)
		return
	}
	d.timers[path] = time.AfterFunc(d.delay, func() { d.fire(path) })
}

func (d *debouncer) fire(path string) {
	d.mu.Lock()
	delete(d.timers, path)
	ev := pendingEvent{path: path, typ: domain.ChangeUpdated}
	if d.created[path] {
		ev.typ = domain.ChangeCreated
		delete(d.created, path)
	}
	d.mu.Unlock()

	select {
	case d.ready <- ev:
	case <-d.ctx.Done():
	}
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range d.timers {
		t.Stop()
	}
}

func (c *Connector) startWatcher() (*fsnotify.Watcher, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, domain.ErrSourceClosed
	}
	if c.watcher != nil {
		return nil, fmt.Errorf("%w: %s is already being watched", domain.ErrInvalidInput, c.root)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: creating watcher: %w", domain.ErrSource, err)
	}
	if err := addTree(watcher, c.root); err != nil {
		watcher.Close()
		return nil, err
	}
	c.watcher = watcher
	return watcher, nil
}

// addTree watches dir and every non-hidden directory below it.
func addTree(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrSource, err)
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			return fmt.Errorf("%w: watching %s: %w", domain.ErrSource, path, err)
		}
		return nil
	})
}

// Close stops any active watch.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.watcher != nil {
		return c.watcher.Close()
	}
	return nil
}

// IsStructureFile reports whether path has a structure file extension.
func IsStructureFile(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range Extensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// IDFromPath derives the structure ID from a file name:
// "/data/1abc.mmtf.gz" becomes "1ABC".
func IDFromPath(path string) string {
	name := filepath.Base(path)
	lower := strings.ToLower(name)
	// Longest suffix first so ".mmtf.gz" is stripped whole.
	for i := len(Extensions) - 1; i >= 0; i-- {
		if ext := Extensions[i]; strings.HasSuffix(lower, ext) {
			name = name[:len(name)-len(ext)]
			break
		}
	}
	return strings.ToUpper(name)
}

// ReadRecord reads one structure file through a read-only memory map.
// Record content is copied out, so the mapping is released on return.
func ReadRecord(path string) (domain.RawRecord, error) {
	id := IDFromPath(path)
	data, err := readMapped(path)
	if err != nil {
		return domain.RawRecord{}, &driven.RecordError{ID: id, Err: err}
	}
	return domain.RawRecord{
		ID:       id,
		Content:  data,
		Metadata: map[string]any{MetaPath: path, MetaSize: len(data)},
	}, nil
}

func readMapped(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	// A zero-length file cannot be mapped.
	if info.Size() == 0 {
		return []byte{}, nil
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("mapping %s: %w", path, err)
	}
	defer m.Unmap()

	data := make([]byte, len(m))
	copy(data, m)
	return data, nil
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
