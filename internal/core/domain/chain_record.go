package domain

import (
	"maps"
	"strconv"
)

// Backbone presence bits for Residue.Backbone.
const (
	HasN uint8 = 1 << iota
	HasCA
	HasC
	HasO
)

// Residue is the per-group data a chain record carries so derivers can
// work without the Structure.
type Residue struct {
	Name     string
	Code     byte
	Number   int32
	InsCode  string
	SeqIndex int32

	// Recorded is the secondary-structure code stored with the record,
	// -1 when none was recorded.
	Recorded int8

	N, CA, C, O Vec3
	Backbone    uint8
}

// HasBackbone reports whether the N, CA and C atoms are all present.
func (r Residue) HasBackbone() bool {
	const need = HasN | HasCA | HasC
	return r.Backbone&need == need
}

// ChainRecord is one polymer chain extracted from a structure.
// It holds no reference into the Structure and is safe to move across
// workers.
type ChainRecord struct {
	StructureID string
	ChainID     string
	ChainName   string
	ModelIndex  int
	EntityType  EntityType
	PolymerType PolymerType

	// Key is the record identifier, "<structureId>.<chainName>" by default.
	Key string

	Sequence             string
	SecondaryStructureQ8 string
	SecondaryStructureQ3 string

	Residues []Residue

	// Meta is the copied structure metadata.
	Meta StructureMeta

	// Metadata holds extractor extras and deriver-added fields.
	Metadata map[string]any
}

// Clone returns a deep copy of the record's mutable parts.
func (r ChainRecord) Clone() ChainRecord {
	out := r
	out.Residues = append([]Residue(nil), r.Residues...)
	out.Meta.ExperimentalMethods = append([]string(nil), r.Meta.ExperimentalMethods...)
	out.Metadata = maps.Clone(r.Metadata)
	if out.Metadata == nil {
		out.Metadata = make(map[string]any)
	}
	return out
}

// Output field names.
const (
	FieldStructureID = "structureId"
	FieldChainID     = "chainId"
	FieldKey         = "structureChainId"
	FieldSequence    = "sequence"
	FieldQ8          = "dsspQ8Code"
	FieldQ3          = "dsspQ3Code"
)

// Flat returns the record as a flat map of named primitive values
// for tabular sinks. Deriver fields are merged after the core fields.
func (r ChainRecord) Flat() map[string]any {
	out := map[string]any{
		FieldStructureID: r.StructureID,
		FieldChainID:     r.ChainName,
		FieldKey:         r.Key,
		FieldSequence:    r.Sequence,
		FieldQ8:          r.SecondaryStructureQ8,
		FieldQ3:          r.SecondaryStructureQ3,
	}
	for k, v := range r.Metadata {
		if _, core := out[k]; !core {
			out[k] = v
		}
	}
	return out
}

// ChainKey builds the record key. Models after the first are suffixed
// with their one-based model number.
func ChainKey(structureID, chain string, model int) string {
	key := structureID + "." + chain
	if model > 0 {
		key += ":" + strconv.Itoa(model+1)
	}
	return key
}
