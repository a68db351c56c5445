// Package mmtftest builds in-memory structures for tests.
package mmtftest

import (
	"strings"

	"github.com/custodia-labs/mmtf-derive/internal/core/domain"
)

// AtomSpec describes one atom of a group.
type AtomSpec struct {
	Name    string
	Element string
	X, Y, Z float32
	AltLoc  string
}

// GroupSpec describes one residue or monomer.
type GroupSpec struct {
	Name     string
	Code     string
	ChemComp string
	Number   int32
	InsCode  string
	SeqIndex int32
	DSSP     int8
	Atoms    []AtomSpec
}

// ChainSpec describes one chain. Entity is an index into
// StructureSpec.Entities, -1 for none.
type ChainSpec struct {
	ID     string
	Name   string
	Entity int
	Groups []GroupSpec
}

// ModelSpec lists the chains of one model.
type ModelSpec struct {
	Chains []ChainSpec
}

// EntitySpec describes one entity.
type EntitySpec struct {
	Type        domain.EntityType
	Description string
	Sequence    string
}

// StructureSpec is a whole structure.
type StructureSpec struct {
	ID          string
	Title       string
	ReleaseDate string
	Methods     []string
	Resolution  domain.OptionalFloat
	RFree       domain.OptionalFloat
	RWork       domain.OptionalFloat
	Entities    []EntitySpec
	Models      []ModelSpec
}

// Build links a spec into a Structure. Group types are shared between
// groups with the same name, chemistry and atom list.
func Build(spec StructureSpec) *domain.Structure {
	h := domain.Header{
		ID:                  spec.ID,
		Title:               spec.Title,
		ReleaseDate:         spec.ReleaseDate,
		ExperimentalMethods: spec.Methods,
		Resolution:          spec.Resolution,
		RFree:               spec.RFree,
		RWork:               spec.RWork,
		MMTFVersion:         "1.0.0",
	}
	for _, e := range spec.Entities {
		h.Entities = append(h.Entities, domain.Entity{Type: e.Type, Description: e.Description, Sequence: e.Sequence})
	}

	a := domain.Arena{ModelChains: []int{0}, ChainGroups: []int{0}, GroupAtoms: []int{0}}
	typeIdx := make(map[string]int32)
	serial := int32(1)
	for _, m := range spec.Models {
		for _, c := range m.Chains {
			ci := len(a.ChainIDs)
			name := c.Name
			if name == "" {
				name = c.ID
			}
			a.ChainIDs = append(a.ChainIDs, c.ID)
			a.ChainNames = append(a.ChainNames, name)
			a.ChainEntity = append(a.ChainEntity, c.Entity)
			if c.Entity >= 0 {
				h.Entities[c.Entity].ChainIndices = append(h.Entities[c.Entity].ChainIndices, ci)
			}
			for _, g := range c.Groups {
				a.GroupType = append(a.GroupType, groupTypeIndex(&h, typeIdx, g))
				a.GroupNumber = append(a.GroupNumber, g.Number)
				a.GroupInsCode = append(a.GroupInsCode, g.InsCode)
				a.GroupSeqIndex = append(a.GroupSeqIndex, g.SeqIndex)
				a.GroupSecStruct = append(a.GroupSecStruct, g.DSSP)
				for _, at := range g.Atoms {
					a.AtomX = append(a.AtomX, at.X)
					a.AtomY = append(a.AtomY, at.Y)
					a.AtomZ = append(a.AtomZ, at.Z)
					a.AtomOccupancy = append(a.AtomOccupancy, 1)
					a.AtomBFactor = append(a.AtomBFactor, 20)
					a.AtomAltLoc = append(a.AtomAltLoc, at.AltLoc)
					a.AtomSerial = append(a.AtomSerial, serial)
					serial++
				}
				a.GroupAtoms = append(a.GroupAtoms, len(a.AtomX))
			}
			a.ChainGroups = append(a.ChainGroups, len(a.GroupType))
		}
		a.ModelChains = append(a.ModelChains, len(a.ChainIDs))
	}
	return domain.NewStructure(h, a)
}

func groupTypeIndex(h *domain.Header, idx map[string]int32, g GroupSpec) int32 {
	names := make([]string, len(g.Atoms))
	elements := make([]string, len(g.Atoms))
	for i, a := range g.Atoms {
		names[i], elements[i] = a.Name, a.Element
	}
	key := g.Name + "|" + g.ChemComp + "|" + g.Code + "|" + strings.Join(names, ",")
	if i, ok := idx[key]; ok {
		return i
	}
	i := int32(len(h.GroupTypes))
	h.GroupTypes = append(h.GroupTypes, domain.GroupType{
		Name:          g.Name,
		OneLetterCode: g.Code,
		ChemCompType:  g.ChemComp,
		AtomNames:     names,
		Elements:      elements,
		FormalCharges: make([]int32, len(names)),
	})
	idx[key] = i
	return i
}
