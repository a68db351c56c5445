package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSourceSpec(t *testing.T) {
	tests := []struct {
		in   string
		want SourceSpec
	}{
		{"filesystem:/data/mmtf", SourceSpec{Type: "filesystem", Location: "/data/mmtf"}},
		{"RCSB:1ABC,4HHB", SourceSpec{Type: "rcsb", Location: "1ABC,4HHB"}},
		{"sqlite:./archive.db", SourceSpec{Type: "sqlite", Location: "./archive.db"}},
		{"/data/mmtf", SourceSpec{Type: "filesystem", Location: "/data/mmtf"}},
		{"./rel/dir", SourceSpec{Type: "filesystem", Location: "./rel/dir"}},
		{`C:\structures`, SourceSpec{Type: "filesystem", Location: `C:\structures`}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSourceSpec(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSourceSpec_Invalid(t *testing.T) {
	for _, in := range []string{"", "  ", "rcsb:"} {
		_, err := ParseSourceSpec(in)
		assert.ErrorIs(t, err, ErrInvalidInput, in)
	}
}

func TestSourceSpec_Option(t *testing.T) {
	s := SourceSpec{Type: "rcsb", Location: "1ABC", Options: map[string]string{"rate": "2", "empty": ""}}

	assert.Equal(t, "2", s.Option("rate", "5"))
	assert.Equal(t, "5", s.Option("empty", "5"))
	assert.Equal(t, "x", s.Option("missing", "x"))
	assert.Equal(t, "rcsb:1ABC", s.String())
}
