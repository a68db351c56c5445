package mmtf_test

import (
	"bytes"
	"compress/gzip"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/custodia-labs/mmtf-derive/internal/core/domain"
	"github.com/custodia-labs/mmtf-derive/internal/mmtf"
	"github.com/custodia-labs/mmtf-derive/internal/mmtf/mmtftest"
)

func encode(t *testing.T, spec mmtftest.StructureSpec) []byte {
	t.Helper()
	data, err := mmtf.Encode(mmtftest.Build(spec))
	require.NoError(t, err)
	return data
}

// mutate decodes the container into a generic map, applies fn and
// re-encodes it.
func mutate(t *testing.T, data []byte, fn func(m map[string]any)) []byte {
	t.Helper()
	var m map[string]any
	require.NoError(t, msgpack.Unmarshal(data, &m))
	fn(m)
	out, err := msgpack.Marshal(m)
	require.NoError(t, err)
	return out
}

func requireKind(t *testing.T, err error, kind domain.ErrorKind) {
	t.Helper()
	require.Error(t, err)
	var de *domain.DecodeError
	require.True(t, errors.As(err, &de), "expected *domain.DecodeError, got %T: %v", err, err)
	assert.Equal(t, kind, de.Kind, "error: %v", err)
}

func TestDecode_RoundTrip(t *testing.T) {
	want := mmtftest.Build(mmtftest.Protein("1ABC", 12))

	got, err := mmtf.Decode(encode(t, mmtftest.Protein("1ABC", 12)))
	require.NoError(t, err)

	assert.Equal(t, "1ABC", got.ID)
	assert.Equal(t, want.Title, got.Title)
	assert.Equal(t, []string{"X-RAY DIFFRACTION"}, got.ExperimentalMethods)
	assert.Equal(t, domain.Some(2.0), got.Resolution)
	assert.True(t, got.RFree.Valid)
	assert.InDelta(t, 0.25, got.RFree.Value, 1e-9)

	require.Equal(t, want.NumModels(), got.NumModels())
	require.Equal(t, want.NumChains(), got.NumChains())
	require.Equal(t, want.NumGroups(), got.NumGroups())
	require.Equal(t, want.NumAtoms(), got.NumAtoms())

	for i := 0; i < want.NumChains(); i++ {
		wc, gc := want.Chain(i), got.Chain(i)
		assert.Equal(t, wc.ID(), gc.ID())
		assert.Equal(t, wc.Name(), gc.Name())
		assert.Equal(t, wc.EntityType(), gc.EntityType())
		assert.Equal(t, wc.Sequence(), gc.Sequence())
	}
	for i := 0; i < want.NumGroups(); i++ {
		wg, gg := want.Group(i), got.Group(i)
		assert.Equal(t, wg.Name(), gg.Name())
		assert.Equal(t, wg.Number(), gg.Number())
		assert.Equal(t, wg.SequenceIndex(), gg.SequenceIndex())
		assert.Equal(t, wg.DSSP(), gg.DSSP())
	}
	for i := 0; i < want.NumAtoms(); i++ {
		wa, ga := want.Atom(i), got.Atom(i)
		assert.Equal(t, wa.Name(), ga.Name())
		assert.Equal(t, wa.Coord(), ga.Coord())
		assert.Equal(t, wa.Serial(), ga.Serial())
		assert.InDelta(t, wa.BFactor(), ga.BFactor(), 1e-3)
		assert.InDelta(t, wa.Occupancy(), ga.Occupancy(), 1e-3)
	}
}

func TestDecode_Gzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(encode(t, mmtftest.Protein("2GZP", 5)))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	s, err := mmtf.Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "2GZP", s.ID)
	assert.Equal(t, 5, s.Model(0).Chain(0).NumGroups())
}

func TestDecode_UnsupportedVersion(t *testing.T) {
	data := encode(t, mmtftest.Protein("1ABC", 3))

	t.Run("major version 2", func(t *testing.T) {
		bad := mutate(t, data, func(m map[string]any) { m["mmtfVersion"] = "2.0.0" })
		_, err := mmtf.Decode(bad)
		requireKind(t, err, domain.KindUnsupportedVersion)
		assert.True(t, errors.Is(err, domain.ErrUnsupportedVersion))
	})

	t.Run("missing version", func(t *testing.T) {
		bad := mutate(t, data, func(m map[string]any) { delete(m, "mmtfVersion") })
		_, err := mmtf.Decode(bad)
		requireKind(t, err, domain.KindUnsupportedVersion)
	})

	t.Run("not a container", func(t *testing.T) {
		_, err := mmtf.Decode([]byte("HEADER    PROTEIN"))
		requireKind(t, err, domain.KindUnsupportedVersion)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := mmtf.Decode(nil)
		requireKind(t, err, domain.KindUnsupportedVersion)
	})
}

func TestDecode_CountMismatch(t *testing.T) {
	spec := mmtftest.Protein("1ABC", 4)
	s := mmtftest.Build(spec)
	data := encode(t, spec)

	tests := []struct {
		name string
		fn   func(m map[string]any)
	}{
		{"atoms", func(m map[string]any) { m["numAtoms"] = int64(s.NumAtoms() + 1) }},
		{"groups", func(m map[string]any) { m["numGroups"] = int64(s.NumGroups() - 1) }},
		{"chains per model", func(m map[string]any) { m["chainsPerModel"] = []int64{int64(s.NumChains() + 2)} }},
		{"models", func(m map[string]any) { m["numModels"] = int64(2) }},
		{"zero models", func(m map[string]any) {
			m["numModels"] = int64(0)
			m["chainsPerModel"] = []int64{}
		}},
		{"short chain column", func(m map[string]any) {
			b, err := mmtf.EncodeStrings(mmtf.CodecString, []string{"A"}, 4)
			require.NoError(t, err)
			m["chainIdList"] = b
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mmtf.Decode(mutate(t, data, tt.fn))
			requireKind(t, err, domain.KindCountMismatch)
			assert.True(t, errors.Is(err, domain.ErrCountMismatch))
		})
	}
}

func TestDecode_FieldDecodeErrors(t *testing.T) {
	spec := mmtftest.Protein("1ABC", 4)
	s := mmtftest.Build(spec)
	data := encode(t, spec)

	t.Run("truncated record", func(t *testing.T) {
		_, err := mmtf.Decode(data[:len(data)/2])
		requireKind(t, err, domain.KindFieldDecode)
		assert.True(t, errors.Is(err, domain.ErrFieldDecode))
	})

	t.Run("group type out of range", func(t *testing.T) {
		types := make([]int32, s.NumGroups())
		types[1] = 99
		bad := mutate(t, data, func(m map[string]any) {
			b, err := mmtf.EncodeInts(mmtf.CodecInt32, types)
			require.NoError(t, err)
			m["groupTypeList"] = b
		})
		_, err := mmtf.Decode(bad)
		requireKind(t, err, domain.KindFieldDecode)
	})

	t.Run("corrupt column header", func(t *testing.T) {
		bad := mutate(t, data, func(m map[string]any) { m["xCoordList"] = []byte{0, 0} })
		_, err := mmtf.Decode(bad)
		requireKind(t, err, domain.KindFieldDecode)
	})

	t.Run("entity references missing chain", func(t *testing.T) {
		bad := mutate(t, data, func(m map[string]any) {
			m["entityList"] = []map[string]any{{
				"chainIndexList": []int64{0, 42},
				"description":    "x",
				"type":           "polymer",
				"sequence":       "AAAA",
			}}
		})
		_, err := mmtf.Decode(bad)
		requireKind(t, err, domain.KindFieldDecode)
	})

	t.Run("sequence index goes backwards", func(t *testing.T) {
		idx := make([]int32, s.NumGroups())
		for i := range idx {
			idx[i] = -1
		}
		idx[0], idx[1], idx[2] = 0, 2, 1
		bad := mutate(t, data, func(m map[string]any) {
			b, err := mmtf.EncodeInts(mmtf.CodecDeltaRunLengthInt, idx)
			require.NoError(t, err)
			m["sequenceIndexList"] = b
		})
		_, err := mmtf.Decode(bad)
		requireKind(t, err, domain.KindFieldDecode)
	})

	t.Run("non-positive divisor override", func(t *testing.T) {
		_, err := mmtf.NewDecoder(mmtf.WithDivisorOverride(map[string]float64{mmtf.FieldXCoord: 0})).Decode(data)
		requireKind(t, err, domain.KindFieldDecode)
	})
}

func TestDecode_DivisorOverride(t *testing.T) {
	data := encode(t, mmtftest.Protein("1ABC", 3))
	plain, err := mmtf.Decode(data)
	require.NoError(t, err)

	scaled, err := mmtf.NewDecoder(mmtf.WithDivisorOverride(map[string]float64{mmtf.FieldXCoord: 100})).Decode(data)
	require.NoError(t, err)

	for i := 0; i < plain.NumAtoms(); i++ {
		assert.InDelta(t, plain.Atom(i).Coord().X*10, scaled.Atom(i).Coord().X, 1e-3)
		assert.Equal(t, plain.Atom(i).Coord().Y, scaled.Atom(i).Coord().Y)
	}
}

func TestDecode_OptionalColumnDefaults(t *testing.T) {
	data := mutate(t, encode(t, mmtftest.Protein("1ABC", 3)), func(m map[string]any) {
		for _, k := range []string{
			"bFactorList", "occupancyList", "atomIdList", "altLocList", "insCodeList",
			"secStructList", "sequenceIndexList", "chainNameList", "resolution",
		} {
			delete(m, k)
		}
	})

	s, err := mmtf.Decode(data)
	require.NoError(t, err)

	assert.False(t, s.Resolution.Valid)
	for i := 0; i < s.NumAtoms(); i++ {
		a := s.Atom(i)
		assert.Equal(t, float32(0), a.BFactor())
		assert.Equal(t, float32(1), a.Occupancy())
		assert.Equal(t, int32(i+1), a.Serial())
		assert.Equal(t, "", a.AltLoc())
	}
	for i := 0; i < s.NumGroups(); i++ {
		assert.Equal(t, int32(-1), s.Group(i).SequenceIndex())
		assert.Equal(t, domain.Q8Unassigned, s.Group(i).SecStruct())
	}
	for i := 0; i < s.NumChains(); i++ {
		assert.Equal(t, s.Chain(i).ID(), s.Chain(i).Name())
	}
}

func TestDecode_LaterModelsInheritEntity(t *testing.T) {
	s, err := mmtf.Decode(encode(t, mmtftest.NMR("2NMR", 5, 3)))
	require.NoError(t, err)

	require.Equal(t, 3, s.NumModels())
	for _, m := range s.Models() {
		c := m.Chain(0)
		assert.True(t, c.IsPolymer(), "model %d", m.Index())
		assert.Equal(t, m.Index(), c.ModelIndex())
	}
	assert.False(t, s.RFree.Valid)
}

func TestDecoder_Format(t *testing.T) {
	assert.Equal(t, "mmtf", mmtf.NewDecoder().Format())
}
