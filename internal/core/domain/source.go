package domain

import (
	"fmt"
	"strings"
)

// SourceSpec selects and configures a record source.
type SourceSpec struct {
	// Type identifies the source type (e.g., "filesystem", "rcsb").
	Type string

	// Location is the type-specific target: a directory, a database
	// path, or a comma-separated ID list.
	Location string

	// Options contains source-specific configuration.
	Options map[string]string
}

// ParseSourceSpec parses "type:location". A bare value without a type
// prefix is taken as a filesystem directory.
func ParseSourceSpec(s string) (SourceSpec, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return SourceSpec{}, fmt.Errorf("%w: empty source", ErrInvalidInput)
	}
	typ, loc, ok := strings.Cut(s, ":")
	if !ok || strings.ContainsAny(typ, `/\.`) || len(typ) < 2 {
		return SourceSpec{Type: "filesystem", Location: s}, nil
	}
	if loc == "" {
		return SourceSpec{}, fmt.Errorf("%w: source %q has no location", ErrInvalidInput, s)
	}
	return SourceSpec{Type: strings.ToLower(typ), Location: loc}, nil
}

// Option returns the named option or def when unset.
func (s SourceSpec) Option(key, def string) string {
	if v, ok := s.Options[key]; ok && v != "" {
		return v
	}
	return def
}

// String renders the source in the form ParseSourceSpec accepts.
func (s SourceSpec) String() string {
	return s.Type + ":" + s.Location
}
