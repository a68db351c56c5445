package connectors

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/mmtf-derive/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/mmtf-derive/internal/connectors/filesystem"
	"github.com/custodia-labs/mmtf-derive/internal/connectors/rcsb"
	"github.com/custodia-labs/mmtf-derive/internal/core/domain"
	"github.com/custodia-labs/mmtf-derive/internal/core/ports/driven"
)

// Ensure Factory implements the interface.
var _ driven.SourceFactory = (*Factory)(nil)

// Source option keys.
const (
	OptionDebounce = "debounce"
	OptionBaseURL  = "base_url"
	OptionRate     = "rate"
	OptionRetries  = "retries"
)

// Factory builds record sources by type.
type Factory struct {
	mu       sync.RWMutex
	builders map[string]driven.SourceBuilder
}

// NewFactory creates a factory with the built-in source types registered.
func NewFactory() *Factory {
	f := &Factory{builders: make(map[string]driven.SourceBuilder)}
	f.Register(filesystem.Type, buildFilesystem)
	f.Register(rcsb.Type, buildRCSB)
	f.Register(sqlite.ArchiveType, buildArchive)
	return f
}

// Register adds a source builder for the given type.
func (f *Factory) Register(sourceType string, builder driven.SourceBuilder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[sourceType] = builder
}

// SupportedTypes returns all registered source types, sorted.
func (f *Factory) SupportedTypes() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	types := make([]string, 0, len(f.builders))
	for t := range f.builders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Create returns a RecordSource for the given spec.
func (f *Factory) Create(ctx context.Context, spec domain.SourceSpec) (driven.RecordSource, error) {
	f.mu.RLock()
	builder, ok := f.builders[spec.Type]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: source type %q", domain.ErrUnsupportedType, spec.Type)
	}
	src, err := builder(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("create %s source: %w", spec.Type, err)
	}
	return src, nil
}

func buildFilesystem(_ context.Context, spec domain.SourceSpec) (driven.RecordSource, error) {
	var opts []filesystem.Option
	if v := spec.Option(OptionDebounce, ""); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, OptionDebounce, err)
		}
		opts = append(opts, filesystem.WithDebounce(d))
	}
	return filesystem.New(spec.Location, opts...), nil
}

func buildRCSB(_ context.Context, spec domain.SourceSpec) (driven.RecordSource, error) {
	ids := strings.FieldsFunc(spec.Location, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n' || r == '\t'
	})
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no structure IDs", domain.ErrInvalidInput)
	}
	var opts []rcsb.Option
	if v := spec.Option(OptionBaseURL, ""); v != "" {
		opts = append(opts, rcsb.WithBaseURL(v))
	}
	if v := spec.Option(OptionRate, ""); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, OptionRate, err)
		}
		opts = append(opts, rcsb.WithRate(r))
	}
	if v := spec.Option(OptionRetries, ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, OptionRetries, err)
		}
		opts = append(opts, rcsb.WithRetries(n, rcsb.RetryDelay))
	}
	return rcsb.New(ids, opts...), nil
}

// archiveSource closes the store that owns the archive.
type archiveSource struct {
	*sqlite.Archive
	store *sqlite.Store
}

func (a archiveSource) Close() error {
	return a.store.Close()
}

func buildArchive(_ context.Context, spec domain.SourceSpec) (driven.RecordSource, error) {
	if _, err := os.Stat(spec.Location); err != nil {
		return nil, fmt.Errorf("%w: archive: %v", domain.ErrSource, err)
	}
	store, err := sqlite.Open(spec.Location)
	if err != nil {
		return nil, err
	}
	return archiveSource{Archive: store.Archive(), store: store}, nil
}
