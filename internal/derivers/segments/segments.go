// Package segments summarises secondary structure as runs of helix,
// strand and coil.
package segments

import (
	"context"
	"strconv"
	"strings"

	"github.com/custodia-labs/mmtf-derive/internal/core/domain"
	"github.com/custodia-labs/mmtf-derive/internal/core/ports/driven"
	"github.com/custodia-labs/mmtf-derive/internal/derivers/secstruct"
)

// Name is the registry name of the deriver.
const Name = "segments"

// Field names added to the record metadata.
const (
	FieldSegments = "dsspQ3Segments"
	FieldHelices  = "helixSegments"
	FieldStrands  = "strandSegments"
)

// Segment is a run of one Q3 symbol.
type Segment struct {
	Q3     domain.Q3
	Start  int
	Length int
}

// Deriver counts secondary-structure segments of a chain record.
type Deriver struct {
	minLength  int
	classifier driven.Classifier
}

// Option configures the deriver.
type Option func(*Deriver)

// WithMinLength sets the shortest helix or strand run that is counted.
func WithMinLength(n int) Option {
	return func(d *Deriver) {
		if n > 0 {
			d.minLength = n
		}
	}
}

// WithClassifier sets the classifier used for records that carry no Q3
// string yet. It should match the one the secstruct deriver uses.
func WithClassifier(c driven.Classifier) Option {
	return func(d *Deriver) {
		if c != nil {
			d.classifier = c
		}
	}
}

// New creates a segments deriver.
func New(opts ...Option) *Deriver {
	d := &Deriver{minLength: 1, classifier: secstruct.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Name returns the deriver name.
func (d *Deriver) Name() string {
	return Name
}

// Derive adds the run-length Q3 string and the helix and strand counts.
// Records without a Q3 string are classified first.
func (d *Deriver) Derive(_ context.Context, rec domain.ChainRecord) (domain.ChainRecord, error) {
	q3 := rec.SecondaryStructureQ3
	if q3 == "" && len(rec.Residues) > 0 {
		q3 = domain.Q3String(domain.Q8String(d.classifier.Classify(rec.Residues)))
	}

	segs := Split(q3)
	var helices, strands int
	for _, s := range segs {
		if s.Length < d.minLength {
			continue
		}
		switch s.Q3 {
		case domain.Q3Helix:
			helices++
		case domain.Q3Strand:
			strands++
		}
	}

	if rec.Metadata == nil {
		rec.Metadata = make(map[string]any)
	}
	rec.Metadata[FieldSegments] = Encode(segs)
	rec.Metadata[FieldHelices] = helices
	rec.Metadata[FieldStrands] = strands
	return rec, nil
}

// Split breaks a Q3 string into runs.
func Split(q3 string) []Segment {
	var out []Segment
	for i := 0; i < len(q3); {
		j := i + 1
		for j < len(q3) && q3[j] == q3[i] {
			j++
		}
		out = append(out, Segment{Q3: domain.Q3(q3[i]), Start: i, Length: j - i})
		i = j
	}
	return out
}

// Encode renders runs as symbol and length pairs, e.g. "C4H12E5".
func Encode(segs []Segment) string {
	var b strings.Builder
	for _, s := range segs {
		b.WriteByte(byte(s.Q3))
		b.WriteString(strconv.Itoa(s.Length))
	}
	return b.String()
}
