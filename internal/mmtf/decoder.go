package mmtf

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"

	"github.com/custodia-labs/mmtf-derive/internal/core/domain"
	"github.com/custodia-labs/mmtf-derive/internal/core/ports/driven"
	"github.com/custodia-labs/mmtf-derive/internal/logger"
)

// Format is the decoder's format name.
const Format = "mmtf"

// Verify interface compliance.
var _ driven.StructureDecoder = (*Decoder)(nil)

// Option configures a Decoder.
type Option func(*Decoder)

// WithDivisorOverride replaces the declared divisor of the named float
// columns (e.g. "xCoordList") during decoding.
func WithDivisorOverride(divisors map[string]float64) Option {
	return func(d *Decoder) {
		for k, v := range divisors {
			d.divisors[k] = v
		}
	}
}

// Decoder turns MMTF records into Structures. A Decoder holds no
// per-record state and is safe for concurrent use.
type Decoder struct {
	divisors map[string]float64
}

// NewDecoder creates a Decoder.
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{divisors: make(map[string]float64)}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Format returns "mmtf".
func (d *Decoder) Format() string { return Format }

// Decode decodes one MMTF record with default options.
func Decode(data []byte) (*domain.Structure, error) {
	return NewDecoder().Decode(data)
}

// Decode decodes one MMTF record. Gzip-compressed input is inflated
// first. Every failure is a *domain.DecodeError.
func (d *Decoder) Decode(data []byte) (*domain.Structure, error) {
	data, err := inflate(data)
	if err != nil {
		return nil, err
	}
	if err := checkVersion(data); err != nil {
		return nil, err
	}

	var c container
	if err := msgpack.Unmarshal(data, &c); err != nil {
		return nil, &domain.DecodeError{Kind: domain.KindFieldDecode, Field: FieldContainer, Err: err}
	}

	s, err := d.build(&c)
	if err != nil {
		return nil, err
	}
	logger.Debugw("decoded structure", "id", s.ID, "models", s.NumModels(), "chains", s.NumChains(), "atoms", s.NumAtoms())
	return s, nil
}

func inflate(data []byte) ([]byte, error) {
	if len(data) < 2 || data[0] != 0x1f || data[1] != 0x8b {
		return data, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, &domain.DecodeError{Kind: domain.KindFieldDecode, Field: FieldContainer, Msg: "gzip header", Err: err}
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, &domain.DecodeError{Kind: domain.KindFieldDecode, Field: FieldContainer, Msg: "gzip stream", Err: err}
	}
	return out, nil
}

// checkVersion reads the container header without decoding the columns.
func checkVersion(data []byte) error {
	if len(data) == 0 || !isMapCode(data[0]) {
		return domain.NewDecodeError(domain.KindUnsupportedVersion, "", "record is not an MMTF container")
	}

	dec := msgpack.NewDecoder(bytes.NewReader(data))
	n, err := dec.DecodeMapLen()
	if err != nil {
		return &domain.DecodeError{Kind: domain.KindFieldDecode, Field: FieldContainer, Err: err}
	}
	for i := 0; i < n; i++ {
		key, err := dec.DecodeString()
		if err != nil {
			return &domain.DecodeError{Kind: domain.KindFieldDecode, Field: FieldContainer, Err: err}
		}
		if key != FieldVersion {
			if err := dec.Skip(); err != nil {
				return &domain.DecodeError{Kind: domain.KindFieldDecode, Field: FieldContainer, Err: err}
			}
			continue
		}
		v, err := dec.DecodeString()
		if err != nil {
			return &domain.DecodeError{Kind: domain.KindFieldDecode, Field: FieldVersion, Err: err}
		}
		major, _, _ := strings.Cut(v, ".")
		if m, err := strconv.Atoi(major); err != nil || m != SupportedMajorVersion {
			return domain.NewDecodeError(domain.KindUnsupportedVersion, FieldVersion, "version %q", v)
		}
		return nil
	}
	return domain.NewDecodeError(domain.KindUnsupportedVersion, FieldVersion, "missing")
}

func isMapCode(c byte) bool {
	return msgpcode.IsFixedMap(c) || c == msgpcode.Map16 || c == msgpcode.Map32
}

func (d *Decoder) build(c *container) (*domain.Structure, error) {
	h := header(c)

	types, err := groupTypes(c.GroupList)
	if err != nil {
		return nil, err
	}
	h.GroupTypes = types

	a, err := d.arena(c, types)
	if err != nil {
		return nil, err
	}

	h.Entities, a.ChainEntity, err = entities(c.EntityList, a.ModelChains)
	if err != nil {
		return nil, err
	}
	if err := checkSequenceIndices(h.Entities, &a); err != nil {
		return nil, err
	}
	return domain.NewStructure(h, a), nil
}

func header(c *container) domain.Header {
	h := domain.Header{
		ID:                  c.StructureID,
		Title:               c.Title,
		DepositionDate:      c.DepositionDate,
		ReleaseDate:         c.ReleaseDate,
		ExperimentalMethods: c.ExperimentalMethods,
		Resolution:          optional(c.Resolution),
		RFree:               optional(c.RFree),
		RWork:               optional(c.RWork),
		SpaceGroup:          c.SpaceGroup,
		MMTFVersion:         c.MMTFVersion,
		MMTFProducer:        c.MMTFProducer,
	}
	if len(c.UnitCell) > 0 {
		h.UnitCell = make([]float32, len(c.UnitCell))
		for i, v := range c.UnitCell {
			h.UnitCell[i] = float32(v)
		}
	}
	return h
}

func optional(v *float64) domain.OptionalFloat {
	if v == nil {
		return domain.OptionalFloat{}
	}
	return domain.Some(*v)
}

func groupTypes(list []groupType) ([]domain.GroupType, error) {
	out := make([]domain.GroupType, len(list))
	for i, g := range list {
		if len(g.ElementList) != 0 && len(g.ElementList) != len(g.AtomNameList) {
			return nil, domain.NewDecodeError(domain.KindFieldDecode, FieldGroupList,
				"group type %d: %d elements for %d atoms", i, len(g.ElementList), len(g.AtomNameList))
		}
		out[i] = domain.GroupType{
			Name:          g.GroupName,
			OneLetterCode: g.SingleLetterCode,
			ChemCompType:  g.ChemCompType,
			AtomNames:     g.AtomNameList,
			Elements:      g.ElementList,
			FormalCharges: g.FormalChargeList,
			BondAtoms:     g.BondAtomList,
			BondOrders:    g.BondOrderList,
		}
	}
	return out, nil
}

// arena walks models, chains, groups and atoms in one forward pass,
// turning the per-level counts into offset tables.
func (d *Decoder) arena(c *container, types []domain.GroupType) (domain.Arena, error) {
	var a domain.Arena

	if c.NumModels <= 0 {
		return a, domain.NewDecodeError(domain.KindCountMismatch, FieldChainsPerModel, "structure declares %d models", c.NumModels)
	}
	if len(c.ChainsPerModel) != int(c.NumModels) {
		return a, domain.NewDecodeError(domain.KindCountMismatch, FieldChainsPerModel,
			"%d entries for %d models", len(c.ChainsPerModel), c.NumModels)
	}
	var err error
	if a.ModelChains, err = offsets(FieldChainsPerModel, c.ChainsPerModel, int(c.NumChains)); err != nil {
		return a, err
	}
	if len(c.GroupsPerChain) != int(c.NumChains) {
		return a, domain.NewDecodeError(domain.KindCountMismatch, FieldGroupsPerChain,
			"%d entries for %d chains", len(c.GroupsPerChain), c.NumChains)
	}
	if a.ChainGroups, err = offsets(FieldGroupsPerChain, c.GroupsPerChain, int(c.NumGroups)); err != nil {
		return a, err
	}

	nChains, nGroups := int(c.NumChains), int(c.NumGroups)
	if a.ChainIDs, err = d.stringColumn(FieldChainID, c.ChainIDList, nChains); err != nil {
		return a, err
	}
	if a.ChainNames, err = d.stringColumn(FieldChainName, c.ChainNameList, nChains); err != nil {
		return a, err
	}
	if len(c.ChainNameList) == 0 {
		a.ChainNames = append([]string(nil), a.ChainIDs...)
	}

	if a.GroupType, err = d.intColumn(FieldGroupType, c.GroupTypeList, nGroups, 0, true); err != nil {
		return a, err
	}
	// Atom offsets come from the group type templates.
	a.GroupAtoms = make([]int, nGroups+1)
	for i, t := range a.GroupType {
		if t < 0 || int(t) >= len(types) {
			return a, domain.NewDecodeError(domain.KindFieldDecode, FieldGroupType,
				"group %d references type %d of %d", i, t, len(types))
		}
		a.GroupAtoms[i+1] = a.GroupAtoms[i] + types[t].NumAtoms()
	}
	nAtoms := a.GroupAtoms[nGroups]
	if nAtoms != int(c.NumAtoms) {
		return a, domain.NewDecodeError(domain.KindCountMismatch, FieldGroupType,
			"group templates hold %d atoms, structure declares %d", nAtoms, c.NumAtoms)
	}

	if a.GroupNumber, err = d.intColumn(FieldGroupID, c.GroupIDList, nGroups, 0, true); err != nil {
		return a, err
	}
	if a.GroupInsCode, err = d.stringColumn(FieldInsCode, c.InsCodeList, nGroups); err != nil {
		return a, err
	}
	if a.GroupSeqIndex, err = d.intColumn(FieldSequenceIndex, c.SequenceIndexList, nGroups, -1, false); err != nil {
		return a, err
	}
	secStruct, err := d.intColumn(FieldSecStruct, c.SecStructList, nGroups, -1, false)
	if err != nil {
		return a, err
	}
	a.GroupSecStruct = make([]int8, nGroups)
	for i, v := range secStruct {
		if v < -128 || v > 127 {
			return a, domain.NewDecodeError(domain.KindFieldDecode, FieldSecStruct, "group %d: code %d out of range", i, v)
		}
		a.GroupSecStruct[i] = int8(v)
	}

	if a.AtomX, err = d.floatColumn(FieldXCoord, c.XCoordList, nAtoms, 0, true); err != nil {
		return a, err
	}
	if a.AtomY, err = d.floatColumn(FieldYCoord, c.YCoordList, nAtoms, 0, true); err != nil {
		return a, err
	}
	if a.AtomZ, err = d.floatColumn(FieldZCoord, c.ZCoordList, nAtoms, 0, true); err != nil {
		return a, err
	}
	if a.AtomBFactor, err = d.floatColumn(FieldBFactor, c.BFactorList, nAtoms, 0, false); err != nil {
		return a, err
	}
	if a.AtomOccupancy, err = d.floatColumn(FieldOccupancy, c.OccupancyList, nAtoms, 1, false); err != nil {
		return a, err
	}
	if a.AtomAltLoc, err = d.stringColumn(FieldAltLoc, c.AltLocList, nAtoms); err != nil {
		return a, err
	}
	if len(c.AtomIDList) == 0 {
		a.AtomSerial = make([]int32, nAtoms)
		for i := range a.AtomSerial {
			a.AtomSerial[i] = int32(i + 1)
		}
	} else if a.AtomSerial, err = d.intColumn(FieldAtomID, c.AtomIDList, nAtoms, 0, true); err != nil {
		return a, err
	}
	return a, nil
}

// offsets turns per-item counts into an offset table and checks the total.
func offsets(field string, counts []int32, total int) ([]int, error) {
	out := make([]int, len(counts)+1)
	for i, n := range counts {
		if n < 0 {
			return nil, domain.NewDecodeError(domain.KindCountMismatch, field, "entry %d is negative (%d)", i, n)
		}
		out[i+1] = out[i] + int(n)
	}
	if out[len(counts)] != total {
		return nil, domain.NewDecodeError(domain.KindCountMismatch, field,
			"counts sum to %d, structure declares %d", out[len(counts)], total)
	}
	return out, nil
}

func columnError(field string, err error) error {
	return &domain.DecodeError{Kind: domain.KindFieldDecode, Field: field, Err: err}
}

func countError(field string, got, want int) error {
	return domain.NewDecodeError(domain.KindCountMismatch, field, "%d values for %d items", got, want)
}

func (d *Decoder) intColumn(field string, b []byte, n int, fill int32, required bool) ([]int32, error) {
	if len(b) == 0 {
		if required && n > 0 {
			return nil, columnError(field, errors.New("required column is missing"))
		}
		out := make([]int32, n)
		if fill != 0 {
			for i := range out {
				out[i] = fill
			}
		}
		return out, nil
	}
	out, _, err := DecodeInts(b)
	if err != nil {
		return nil, columnError(field, err)
	}
	if len(out) != n {
		return nil, countError(field, len(out), n)
	}
	return out, nil
}

func (d *Decoder) floatColumn(field string, b []byte, n int, fill float32, required bool) ([]float32, error) {
	if len(b) == 0 {
		if required && n > 0 {
			return nil, columnError(field, errors.New("required column is missing"))
		}
		out := make([]float32, n)
		if fill != 0 {
			for i := range out {
				out[i] = fill
			}
		}
		return out, nil
	}
	divisor, override := d.divisors[field]
	if override && divisor <= 0 {
		return nil, columnError(field, fmt.Errorf("divisor override %g must be positive", divisor))
	}
	out, _, err := DecodeFloats(b, divisor)
	if err != nil {
		return nil, columnError(field, err)
	}
	if len(out) != n {
		return nil, countError(field, len(out), n)
	}
	return out, nil
}

func (d *Decoder) stringColumn(field string, b []byte, n int) ([]string, error) {
	if len(b) == 0 {
		if field == FieldChainID && n > 0 {
			return nil, columnError(field, errors.New("required column is missing"))
		}
		return make([]string, n), nil
	}
	out, _, err := DecodeStrings(b)
	if err != nil {
		return nil, columnError(field, err)
	}
	if len(out) != n {
		return nil, countError(field, len(out), n)
	}
	return out, nil
}

// entities resolves entity membership per chain. Chains of later models
// that no entity lists inherit the entity of the chain at the same
// position in the first model.
func entities(list []entity, modelChains []int) ([]domain.Entity, []int, error) {
	nChains := modelChains[len(modelChains)-1]
	chainEntity := make([]int, nChains)
	for i := range chainEntity {
		chainEntity[i] = -1
	}

	out := make([]domain.Entity, len(list))
	for e, ent := range list {
		out[e] = domain.Entity{
			Type:         domain.ParseEntityType(ent.Type),
			Description:  ent.Description,
			Sequence:     ent.Sequence,
			ChainIndices: make([]int, len(ent.ChainIndexList)),
		}
		for k, ci := range ent.ChainIndexList {
			if ci < 0 || int(ci) >= nChains {
				return nil, nil, domain.NewDecodeError(domain.KindFieldDecode, FieldEntityList,
					"entity %d references chain %d of %d", e, ci, nChains)
			}
			out[e].ChainIndices[k] = int(ci)
			chainEntity[ci] = e
		}
	}

	first := modelChains[1] - modelChains[0]
	for m := 1; m < len(modelChains)-1; m++ {
		for p := 0; p < modelChains[m+1]-modelChains[m] && p < first; p++ {
			if ci := modelChains[m] + p; chainEntity[ci] < 0 {
				chainEntity[ci] = chainEntity[p]
			}
		}
	}
	return out, chainEntity, nil
}

// checkSequenceIndices rejects polymer chains whose mapped sequence
// indices do not strictly increase or point past the entity sequence.
func checkSequenceIndices(ents []domain.Entity, a *domain.Arena) error {
	for ci := 0; ci < len(a.ChainGroups)-1; ci++ {
		e := a.ChainEntity[ci]
		if e < 0 || ents[e].Type != domain.EntityPolymer {
			continue
		}
		seqLen := len(ents[e].Sequence)
		prev := int32(-1)
		for g := a.ChainGroups[ci]; g < a.ChainGroups[ci+1]; g++ {
			idx := a.GroupSeqIndex[g]
			if idx == -1 {
				continue
			}
			if idx <= prev || (seqLen > 0 && int(idx) >= seqLen) {
				return domain.NewDecodeError(domain.KindFieldDecode, FieldSequenceIndex,
					"chain %s: group %d has sequence index %d after %d", a.ChainIDs[ci], g, idx, prev)
			}
			prev = idx
		}
	}
	return nil
}
