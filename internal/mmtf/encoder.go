package mmtf

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/custodia-labs/mmtf-derive/internal/core/domain"
)

// Encode writes a Structure as an uncompressed MMTF record using the
// default codec for each column. Decode(Encode(s)) reproduces s up to the
// precision of the lossy float columns.
func Encode(s *domain.Structure) ([]byte, error) {
	c := container{
		MMTFVersion:         EncoderVersion,
		MMTFProducer:        EncoderProducer,
		SpaceGroup:          s.SpaceGroup,
		StructureID:         s.ID,
		Title:               s.Title,
		DepositionDate:      s.DepositionDate,
		ReleaseDate:         s.ReleaseDate,
		ExperimentalMethods: s.ExperimentalMethods,
		Resolution:          optionalPtr(s.Resolution),
		RFree:               optionalPtr(s.RFree),
		RWork:               optionalPtr(s.RWork),
		NumModels:           int32(s.NumModels()),
		NumChains:           int32(s.NumChains()),
		NumGroups:           int32(s.NumGroups()),
		NumAtoms:            int32(s.NumAtoms()),
	}
	for _, v := range s.UnitCell {
		c.UnitCell = append(c.UnitCell, float64(v))
	}
	for _, e := range s.Entities {
		ent := entity{Description: e.Description, Type: string(e.Type), Sequence: e.Sequence}
		for _, ci := range e.ChainIndices {
			ent.ChainIndexList = append(ent.ChainIndexList, int32(ci))
		}
		c.EntityList = append(c.EntityList, ent)
	}
	for _, t := range s.GroupTypes {
		c.GroupList = append(c.GroupList, groupType{
			FormalChargeList: nonNil(t.FormalCharges, len(t.AtomNames)),
			AtomNameList:     t.AtomNames,
			ElementList:      t.Elements,
			BondAtomList:     nonNil(t.BondAtoms, 0),
			BondOrderList:    nonNil(t.BondOrders, 0),
			GroupName:        t.Name,
			SingleLetterCode: t.OneLetterCode,
			ChemCompType:     t.ChemCompType,
		})
		c.NumBonds += int32(len(t.BondOrders))
	}

	cols := gather(s)
	c.ChainsPerModel = cols.chainsPerModel
	c.GroupsPerChain = cols.groupsPerChain

	var err error
	steps := []struct {
		field string
		dst   *[]byte
		enc   func() ([]byte, error)
	}{
		{FieldChainID, &c.ChainIDList, func() ([]byte, error) { return EncodeStrings(CodecString, cols.chainIDs, chainIDWidth) }},
		{FieldChainName, &c.ChainNameList, func() ([]byte, error) { return EncodeStrings(CodecString, cols.chainNames, chainIDWidth) }},
		{FieldGroupType, &c.GroupTypeList, func() ([]byte, error) { return EncodeInts(CodecInt32, cols.groupType) }},
		{FieldGroupID, &c.GroupIDList, func() ([]byte, error) { return EncodeInts(CodecDeltaRunLengthInt, cols.groupNumber) }},
		{FieldInsCode, &c.InsCodeList, func() ([]byte, error) { return EncodeStrings(CodecRunLengthChar, cols.insCode, 0) }},
		{FieldSequenceIndex, &c.SequenceIndexList, func() ([]byte, error) { return EncodeInts(CodecDeltaRunLengthInt, cols.seqIndex) }},
		{FieldSecStruct, &c.SecStructList, func() ([]byte, error) { return EncodeInts(CodecInt8, cols.secStruct) }},
		{FieldXCoord, &c.XCoordList, func() ([]byte, error) { return EncodeFloats(CodecDeltaRecursiveF, cols.x, CoordDivisor) }},
		{FieldYCoord, &c.YCoordList, func() ([]byte, error) { return EncodeFloats(CodecDeltaRecursiveF, cols.y, CoordDivisor) }},
		{FieldZCoord, &c.ZCoordList, func() ([]byte, error) { return EncodeFloats(CodecDeltaRecursiveF, cols.z, CoordDivisor) }},
		{FieldBFactor, &c.BFactorList, func() ([]byte, error) { return EncodeFloats(CodecDeltaRecursiveF, cols.bFactor, BFactorDivisor) }},
		{FieldOccupancy, &c.OccupancyList, func() ([]byte, error) { return EncodeFloats(CodecRunLengthFloat, cols.occupancy, OccupancyDivisor) }},
		{FieldAtomID, &c.AtomIDList, func() ([]byte, error) { return EncodeInts(CodecDeltaRunLengthInt, cols.serial) }},
		{FieldAltLoc, &c.AltLocList, func() ([]byte, error) { return EncodeStrings(CodecRunLengthChar, cols.altLoc, 0) }},
	}
	for _, step := range steps {
		if *step.dst, err = step.enc(); err != nil {
			return nil, fmt.Errorf("encode %s: %w", step.field, err)
		}
	}
	return msgpack.Marshal(&c)
}

type columns struct {
	chainsPerModel, groupsPerChain   []int32
	chainIDs, chainNames             []string
	groupType, groupNumber, seqIndex []int32
	secStruct, serial                []int32
	insCode, altLoc                  []string
	x, y, z, bFactor, occupancy      []float32
}

func gather(s *domain.Structure) columns {
	var c columns
	for _, m := range s.Models() {
		c.chainsPerModel = append(c.chainsPerModel, int32(m.NumChains()))
		for _, ch := range m.Chains() {
			c.groupsPerChain = append(c.groupsPerChain, int32(ch.NumGroups()))
			c.chainIDs = append(c.chainIDs, ch.ID())
			c.chainNames = append(c.chainNames, ch.Name())
			for _, g := range ch.Groups() {
				c.groupType = append(c.groupType, int32(g.TypeIndex()))
				c.groupNumber = append(c.groupNumber, g.Number())
				c.insCode = append(c.insCode, g.InsCode())
				c.seqIndex = append(c.seqIndex, g.SequenceIndex())
				c.secStruct = append(c.secStruct, int32(g.DSSP()))
				for _, a := range g.Atoms() {
					p := a.Coord()
					c.x = append(c.x, p.X)
					c.y = append(c.y, p.Y)
					c.z = append(c.z, p.Z)
					c.bFactor = append(c.bFactor, a.BFactor())
					c.occupancy = append(c.occupancy, a.Occupancy())
					c.serial = append(c.serial, a.Serial())
					c.altLoc = append(c.altLoc, a.AltLoc())
				}
			}
		}
	}
	return c
}

func optionalPtr(v domain.OptionalFloat) *float64 {
	if !v.Valid {
		return nil
	}
	x := v.Value
	return &x
}

func nonNil(v []int32, n int) []int32 {
	if v != nil {
		return v
	}
	return make([]int32, n)
}
