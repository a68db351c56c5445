package mmtf

// Field names of the MMTF container.
const (
	FieldVersion        = "mmtfVersion"
	FieldXCoord         = "xCoordList"
	FieldYCoord         = "yCoordList"
	FieldZCoord         = "zCoordList"
	FieldBFactor        = "bFactorList"
	FieldOccupancy      = "occupancyList"
	FieldAtomID         = "atomIdList"
	FieldAltLoc         = "altLocList"
	FieldGroupID        = "groupIdList"
	FieldGroupType      = "groupTypeList"
	FieldSecStruct      = "secStructList"
	FieldInsCode        = "insCodeList"
	FieldSequenceIndex  = "sequenceIndexList"
	FieldChainID        = "chainIdList"
	FieldChainName      = "chainNameList"
	FieldChainsPerModel = "chainsPerModel"
	FieldGroupsPerChain = "groupsPerChain"
	FieldEntityList     = "entityList"
	FieldGroupList      = "groupList"
	FieldContainer      = "container"
)

// SupportedMajorVersion is the only container major version accepted.
const SupportedMajorVersion = 1

// Version and producer written by Encode.
const (
	EncoderVersion  = "1.0.0"
	EncoderProducer = "mmtf-derive"
)

// Default column divisors.
const (
	CoordDivisor     = 1000
	BFactorDivisor   = 100
	OccupancyDivisor = 100
	chainIDWidth     = 4
)

// container mirrors the top-level MessagePack map. Binary columns stay
// encoded until the decoder asks for them.
type container struct {
	MMTFVersion         string    `msgpack:"mmtfVersion"`
	MMTFProducer        string    `msgpack:"mmtfProducer"`
	UnitCell            []float64 `msgpack:"unitCell,omitempty"`
	SpaceGroup          string    `msgpack:"spaceGroup,omitempty"`
	StructureID         string    `msgpack:"structureId,omitempty"`
	Title               string    `msgpack:"title,omitempty"`
	DepositionDate      string    `msgpack:"depositionDate,omitempty"`
	ReleaseDate         string    `msgpack:"releaseDate,omitempty"`
	ExperimentalMethods []string  `msgpack:"experimentalMethods,omitempty"`
	Resolution          *float64  `msgpack:"resolution,omitempty"`
	RFree               *float64  `msgpack:"rFree,omitempty"`
	RWork               *float64  `msgpack:"rWork,omitempty"`

	NumBonds  int32 `msgpack:"numBonds"`
	NumAtoms  int32 `msgpack:"numAtoms"`
	NumGroups int32 `msgpack:"numGroups"`
	NumChains int32 `msgpack:"numChains"`
	NumModels int32 `msgpack:"numModels"`

	EntityList []entity    `msgpack:"entityList,omitempty"`
	GroupList  []groupType `msgpack:"groupList"`

	XCoordList        []byte `msgpack:"xCoordList"`
	YCoordList        []byte `msgpack:"yCoordList"`
	ZCoordList        []byte `msgpack:"zCoordList"`
	BFactorList       []byte `msgpack:"bFactorList,omitempty"`
	OccupancyList     []byte `msgpack:"occupancyList,omitempty"`
	AtomIDList        []byte `msgpack:"atomIdList,omitempty"`
	AltLocList        []byte `msgpack:"altLocList,omitempty"`
	GroupIDList       []byte `msgpack:"groupIdList"`
	GroupTypeList     []byte `msgpack:"groupTypeList"`
	SecStructList     []byte `msgpack:"secStructList,omitempty"`
	InsCodeList       []byte `msgpack:"insCodeList,omitempty"`
	SequenceIndexList []byte `msgpack:"sequenceIndexList,omitempty"`
	ChainIDList       []byte `msgpack:"chainIdList"`
	ChainNameList     []byte `msgpack:"chainNameList,omitempty"`

	ChainsPerModel []int32 `msgpack:"chainsPerModel"`
	GroupsPerChain []int32 `msgpack:"groupsPerChain"`
}

type entity struct {
	ChainIndexList []int32 `msgpack:"chainIndexList"`
	Description    string  `msgpack:"description"`
	Type           string  `msgpack:"type"`
	Sequence       string  `msgpack:"sequence"`
}

type groupType struct {
	FormalChargeList []int32  `msgpack:"formalChargeList"`
	AtomNameList     []string `msgpack:"atomNameList"`
	ElementList      []string `msgpack:"elementList"`
	BondAtomList     []int32  `msgpack:"bondAtomList"`
	BondOrderList    []int32  `msgpack:"bondOrderList"`
	GroupName        string   `msgpack:"groupName"`
	SingleLetterCode string   `msgpack:"singleLetterCode"`
	ChemCompType     string   `msgpack:"chemCompType"`
}
