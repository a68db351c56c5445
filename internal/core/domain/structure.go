package domain

import (
	"fmt"
	"sort"
	"strings"
)

// EntityType is the molecular entity type of a chain.
type EntityType string

// Entity types as recorded in the entity list.
const (
	EntityPolymer    EntityType = "polymer"
	EntityNonPolymer EntityType = "non-polymer"
	EntityWater      EntityType = "water"
	EntityMacrolide  EntityType = "macrolide"
	EntityBranched   EntityType = "branched"
	EntityUnknown    EntityType = ""
)

// ParseEntityType normalises an entity type string.
func ParseEntityType(s string) EntityType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "polymer":
		return EntityPolymer
	case "non-polymer":
		return EntityNonPolymer
	case "water":
		return EntityWater
	case "macrolide":
		return EntityMacrolide
	case "branched":
		return EntityBranched
	default:
		return EntityUnknown
	}
}

// PolymerType is the chemistry of a polymer chain, derived from its groups.
type PolymerType string

// Polymer types.
const (
	PolymerProtein    PolymerType = "protein"
	PolymerDNA        PolymerType = "dna"
	PolymerRNA        PolymerType = "rna"
	PolymerSaccharide PolymerType = "saccharide"
	PolymerOther      PolymerType = "other"
)

// PolymerTypeOf classifies a chemical component type
// (e.g. "L-PEPTIDE LINKING", "DNA LINKING").
// It returns "" for components that are not polymer building blocks.
func PolymerTypeOf(chemCompType string) PolymerType {
	t := strings.ToUpper(chemCompType)
	switch {
	case strings.Contains(t, "PEPTIDE"):
		return PolymerProtein
	case strings.Contains(t, "DNA"):
		return PolymerDNA
	case strings.Contains(t, "RNA"):
		return PolymerRNA
	case strings.Contains(t, "SACCHARIDE"):
		return PolymerSaccharide
	default:
		return ""
	}
}

// OptionalFloat is a numeric field that may be absent from a record.
type OptionalFloat struct {
	Value float64
	Valid bool
}

// Some returns a present OptionalFloat.
func Some(v float64) OptionalFloat {
	return OptionalFloat{Value: v, Valid: true}
}

// Entity describes one molecular entity and the chains that belong to it.
type Entity struct {
	Type        EntityType
	Description string
	Sequence    string

	// ChainIndices are global chain indices.
	ChainIndices []int
}

// GroupType is a residue template shared by every group of that type.
type GroupType struct {
	Name          string
	OneLetterCode string
	ChemCompType  string
	AtomNames     []string
	Elements      []string
	FormalCharges []int32
	BondAtoms     []int32
	BondOrders    []int32
}

// NumAtoms returns the number of atoms a group of this type owns.
func (g GroupType) NumAtoms() int {
	return len(g.AtomNames)
}

// Code returns the one-letter code, with 'X' for non-standard or unknown residues.
func (g GroupType) Code() byte {
	if len(g.OneLetterCode) == 1 && g.OneLetterCode != "?" {
		return g.OneLetterCode[0]
	}
	if c, ok := AminoThreeToOne[g.Name]; ok {
		return c
	}
	return UnknownResidue
}

// UnknownResidue is the sentinel one-letter code for non-standard residues.
const UnknownResidue byte = 'X'

// AminoThreeToOne maps three letter amino acid names to one-letter codes.
var AminoThreeToOne = map[string]byte{
	"ALA": 'A', "ARG": 'R', "ASN": 'N', "ASP": 'D', "CYS": 'C',
	"GLU": 'E', "GLN": 'Q', "GLY": 'G', "HIS": 'H', "ILE": 'I',
	"LEU": 'L', "LYS": 'K', "MET": 'M', "PHE": 'F', "PRO": 'P',
	"SER": 'S', "THR": 'T', "TRP": 'W', "TYR": 'Y', "VAL": 'V',
	"SEC": 'U', "PYL": 'O',
}

// Header holds the structure-level metadata and lookup tables.
type Header struct {
	ID                  string
	Title               string
	DepositionDate      string
	ReleaseDate         string
	ExperimentalMethods []string
	Resolution          OptionalFloat
	RFree               OptionalFloat
	RWork               OptionalFloat
	SpaceGroup          string
	UnitCell            []float32
	MMTFVersion         string
	MMTFProducer        string

	Entities   []Entity
	GroupTypes []GroupType
}

// StructureMeta is the read-only copy of structure scalars carried by
// chains and chain records. It is copied, never a pointer into the tree.
type StructureMeta struct {
	ID                  string
	Resolution          OptionalFloat
	RFree               OptionalFloat
	RWork               OptionalFloat
	ExperimentalMethods []string
	ReleaseDate         string
}

// Arena holds the flattened hierarchy. Offsets slices have one more entry
// than the level they index: level item i owns children
// [Offsets[i], Offsets[i+1]).
type Arena struct {
	ModelChains []int
	ChainGroups []int
	GroupAtoms  []int

	ChainIDs    []string
	ChainNames  []string
	ChainEntity []int

	GroupType      []int32
	GroupNumber    []int32
	GroupInsCode   []string
	GroupSeqIndex  []int32
	GroupSecStruct []int8

	AtomX         []float32
	AtomY         []float32
	AtomZ         []float32
	AtomOccupancy []float32
	AtomBFactor   []float32
	AtomAltLoc    []string
	AtomSerial    []int32
}

// Structure is the root of the decoded hierarchy.
type Structure struct {
	Header
	arena Arena
}

// NewStructure links a header and an arena into a Structure.
// The arena must already be consistent; violations are programming
// errors in the producer and panic here rather than yielding a
// partially linked structure.
func NewStructure(h Header, a Arena) *Structure {
	if err := a.check(h.GroupTypes, len(h.Entities)); err != nil {
		panic("domain: inconsistent arena: " + err.Error())
	}
	return &Structure{Header: h, arena: a}
}

func (a *Arena) check(types []GroupType, numEntities int) error {
	nModels := len(a.ModelChains) - 1
	nChains := len(a.ChainGroups) - 1
	nGroups := len(a.GroupAtoms) - 1
	if nModels < 1 || nChains < 0 || nGroups < 0 {
		return fmt.Errorf("offset tables must have a terminating entry and at least one model")
	}
	if err := checkOffsets("model", a.ModelChains, nChains); err != nil {
		return err
	}
	if err := checkOffsets("chain", a.ChainGroups, nGroups); err != nil {
		return err
	}
	nAtoms := len(a.AtomX)
	if err := checkOffsets("group", a.GroupAtoms, nAtoms); err != nil {
		return err
	}
	for name, n := range map[string]int{
		"chain ids": len(a.ChainIDs), "chain names": len(a.ChainNames), "chain entity": len(a.ChainEntity),
	} {
		if n != nChains {
			return fmt.Errorf("%s: %d entries for %d chains", name, n, nChains)
		}
	}
	for name, n := range map[string]int{
		"group type": len(a.GroupType), "group number": len(a.GroupNumber), "ins code": len(a.GroupInsCode),
		"sequence index": len(a.GroupSeqIndex), "sec struct": len(a.GroupSecStruct),
	} {
		if n != nGroups {
			return fmt.Errorf("%s: %d entries for %d groups", name, n, nGroups)
		}
	}
	for name, n := range map[string]int{
		"y": len(a.AtomY), "z": len(a.AtomZ), "occupancy": len(a.AtomOccupancy),
		"b-factor": len(a.AtomBFactor), "altloc": len(a.AtomAltLoc), "serial": len(a.AtomSerial),
	} {
		if n != nAtoms {
			return fmt.Errorf("%s: %d entries for %d atoms", name, n, nAtoms)
		}
	}
	for i, gt := range a.GroupType {
		if gt < 0 || int(gt) >= len(types) {
			return fmt.Errorf("group %d: type %d out of range", i, gt)
		}
		if span := a.GroupAtoms[i+1] - a.GroupAtoms[i]; span != types[gt].NumAtoms() {
			return fmt.Errorf("group %d: %d atoms, type %q declares %d", i, span, types[gt].Name, types[gt].NumAtoms())
		}
	}
	for i, e := range a.ChainEntity {
		if e < -1 || e >= numEntities {
			return fmt.Errorf("chain %d: entity %d out of range", i, e)
		}
	}
	return nil
}

func checkOffsets(level string, offs []int, total int) error {
	if offs[0] != 0 {
		return fmt.Errorf("%s offsets must start at 0", level)
	}
	for i := 1; i < len(offs); i++ {
		if offs[i] < offs[i-1] {
			return fmt.Errorf("%s offsets decrease at %d", level, i)
		}
	}
	if offs[len(offs)-1] != total {
		return fmt.Errorf("%s offsets end at %d, want %d", level, offs[len(offs)-1], total)
	}
	return nil
}

// Meta returns the scalar metadata copied into chains and records.
func (s *Structure) Meta() StructureMeta {
	methods := make([]string, len(s.ExperimentalMethods))
	copy(methods, s.ExperimentalMethods)
	return StructureMeta{
		ID:                  s.ID,
		Resolution:          s.Resolution,
		RFree:               s.RFree,
		RWork:               s.RWork,
		ExperimentalMethods: methods,
		ReleaseDate:         s.ReleaseDate,
	}
}

// NumModels returns the number of models.
func (s *Structure) NumModels() int { return len(s.arena.ModelChains) - 1 }

// NumChains returns the total number of chains over all models.
func (s *Structure) NumChains() int { return len(s.arena.ChainGroups) - 1 }

// NumGroups returns the total number of groups over all chains.
func (s *Structure) NumGroups() int { return len(s.arena.GroupAtoms) - 1 }

// NumAtoms returns the total number of atoms.
func (s *Structure) NumAtoms() int { return len(s.arena.AtomX) }

// Model returns the i'th model.
func (s *Structure) Model(i int) Model {
	mustIndex("model", i, s.NumModels())
	return Model{s: s, idx: i}
}

// Models returns all models in order.
func (s *Structure) Models() []Model {
	out := make([]Model, s.NumModels())
	for i := range out {
		out[i] = Model{s: s, idx: i}
	}
	return out
}

// Chain returns the chain with global index i.
func (s *Structure) Chain(i int) Chain {
	mustIndex("chain", i, s.NumChains())
	return Chain{s: s, idx: i}
}

// Group returns the group with global index i.
func (s *Structure) Group(i int) Group {
	mustIndex("group", i, s.NumGroups())
	return Group{s: s, idx: i}
}

// Atom returns the atom with global index i.
func (s *Structure) Atom(i int) Atom {
	mustIndex("atom", i, s.NumAtoms())
	offs := s.arena.GroupAtoms
	g := sort.Search(len(offs)-1, func(k int) bool { return offs[k+1] > i })
	return Atom{s: s, idx: i, local: i - offs[g], gtype: s.arena.GroupType[g]}
}

// PolymerTypes returns the distinct polymer types of the first model's
// polymer chains in first-seen order.
func (s *Structure) PolymerTypes() []PolymerType {
	var out []PolymerType
	seen := make(map[PolymerType]bool)
	for _, c := range s.Model(0).Chains() {
		if !c.IsPolymer() {
			continue
		}
		pt := c.PolymerType()
		if !seen[pt] {
			seen[pt] = true
			out = append(out, pt)
		}
	}
	return out
}

// NumPolymerChains counts the polymer chains of the first model.
func (s *Structure) NumPolymerChains() int {
	n := 0
	for _, c := range s.Model(0).Chains() {
		if c.IsPolymer() {
			n++
		}
	}
	return n
}

// mustIndex enforces the arena bounds contract.
func mustIndex(level string, i, n int) {
	if i < 0 || i >= n {
		panic(fmt.Sprintf("domain: %s index %d out of range [0,%d)", level, i, n))
	}
}
