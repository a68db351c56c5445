package domain

import "strings"

// Model is a view of one conformational copy of a Structure.
type Model struct {
	s   *Structure
	idx int
}

// Index returns the model's position in the structure.
func (m Model) Index() int { return m.idx }

// NumChains returns the number of chains in this model.
func (m Model) NumChains() int {
	return m.s.arena.ModelChains[m.idx+1] - m.s.arena.ModelChains[m.idx]
}

// Chain returns the i'th chain of this model.
func (m Model) Chain(i int) Chain {
	mustIndex("model chain", i, m.NumChains())
	return Chain{s: m.s, idx: m.s.arena.ModelChains[m.idx] + i}
}

// Chains returns the model's chains in source order.
func (m Model) Chains() []Chain {
	start := m.s.arena.ModelChains[m.idx]
	out := make([]Chain, m.NumChains())
	for i := range out {
		out[i] = Chain{s: m.s, idx: start + i}
	}
	return out
}

// Chain is a view of one polymer or non-polymer unit within a model.
type Chain struct {
	s   *Structure
	idx int
}

// Index returns the global chain index.
func (c Chain) Index() int { return c.idx }

// ID returns the chain identifier (label_asym_id).
func (c Chain) ID() string { return c.s.arena.ChainIDs[c.idx] }

// Name returns the author chain name (auth_asym_id).
func (c Chain) Name() string { return c.s.arena.ChainNames[c.idx] }

// ModelIndex returns the index of the owning model.
func (c Chain) ModelIndex() int {
	offs := c.s.arena.ModelChains
	for m := 0; m < len(offs)-1; m++ {
		if c.idx < offs[m+1] {
			return m
		}
	}
	return len(offs) - 2
}

// Entity returns the entity this chain belongs to, if one is recorded.
func (c Chain) Entity() (Entity, bool) {
	e := c.s.arena.ChainEntity[c.idx]
	if e < 0 {
		return Entity{}, false
	}
	return c.s.Entities[e], true
}

// EntityIndex returns the index of the chain's entity in
// Structure.Entities, -1 if none is recorded.
func (c Chain) EntityIndex() int { return c.s.arena.ChainEntity[c.idx] }

// EntityType returns the chain's entity type, EntityUnknown if none is recorded.
func (c Chain) EntityType() EntityType {
	e, ok := c.Entity()
	if !ok {
		return EntityUnknown
	}
	return e.Type
}

// IsPolymer reports whether the chain belongs to a polymer entity.
func (c Chain) IsPolymer() bool { return c.EntityType() == EntityPolymer }

// Meta returns the copied structure metadata for filtering without
// walking back up the tree.
func (c Chain) Meta() StructureMeta { return c.s.Meta() }

// NumGroups returns the number of groups in the chain.
func (c Chain) NumGroups() int {
	return c.s.arena.ChainGroups[c.idx+1] - c.s.arena.ChainGroups[c.idx]
}

// Group returns the i'th group of the chain.
func (c Chain) Group(i int) Group {
	mustIndex("chain group", i, c.NumGroups())
	return Group{s: c.s, idx: c.s.arena.ChainGroups[c.idx] + i}
}

// Groups returns the chain's groups in source order.
func (c Chain) Groups() []Group {
	start := c.s.arena.ChainGroups[c.idx]
	out := make([]Group, c.NumGroups())
	for i := range out {
		out[i] = Group{s: c.s, idx: start + i}
	}
	return out
}

// Sequence returns the one-letter sequence of the observed groups,
// one character per group with 'X' for non-standard residues.
func (c Chain) Sequence() string {
	var b strings.Builder
	b.Grow(c.NumGroups())
	for _, g := range c.Groups() {
		b.WriteByte(g.Code())
	}
	return b.String()
}

// PolymerType returns the majority chemistry of the chain's groups.
// Chains without any recognised polymer component are PolymerOther.
func (c Chain) PolymerType() PolymerType {
	counts := make(map[PolymerType]int)
	for _, g := range c.Groups() {
		if pt := PolymerTypeOf(g.ChemCompType()); pt != "" {
			counts[pt]++
		}
	}
	best, bestN := PolymerOther, 0
	for _, pt := range []PolymerType{PolymerProtein, PolymerDNA, PolymerRNA, PolymerSaccharide} {
		if counts[pt] > bestN {
			best, bestN = pt, counts[pt]
		}
	}
	return best
}

// Group is a view of one residue or monomer.
type Group struct {
	s   *Structure
	idx int
}

// Index returns the global group index.
func (g Group) Index() int { return g.idx }

func (g Group) groupType() GroupType {
	return g.s.GroupTypes[g.s.arena.GroupType[g.idx]]
}

// TypeIndex returns the index of the group's template in GroupTypes.
func (g Group) TypeIndex() int { return int(g.s.arena.GroupType[g.idx]) }

// Name returns the residue name (e.g. "ALA").
func (g Group) Name() string { return g.groupType().Name }

// Code returns the one-letter code.
func (g Group) Code() byte { return g.groupType().Code() }

// ChemCompType returns the chemical component type.
func (g Group) ChemCompType() string { return g.groupType().ChemCompType }

// Number returns the author residue number.
func (g Group) Number() int32 { return g.s.arena.GroupNumber[g.idx] }

// InsCode returns the insertion code, "" if none.
func (g Group) InsCode() string { return g.s.arena.GroupInsCode[g.idx] }

// SequenceIndex returns the index into the entity sequence, -1 if unmapped.
func (g Group) SequenceIndex() int32 { return g.s.arena.GroupSeqIndex[g.idx] }

// SecStruct returns the secondary-structure slot. Unset slots read as Q8Unassigned.
func (g Group) SecStruct() Q8 { return Q8FromDSSP(int(g.s.arena.GroupSecStruct[g.idx])) }

// DSSP returns the raw numeric secondary-structure slot, -1 if unset.
func (g Group) DSSP() int8 { return g.s.arena.GroupSecStruct[g.idx] }

// NumAtoms returns the number of atoms in the group.
func (g Group) NumAtoms() int {
	return g.s.arena.GroupAtoms[g.idx+1] - g.s.arena.GroupAtoms[g.idx]
}

// Atom returns the i'th atom of the group.
func (g Group) Atom(i int) Atom {
	mustIndex("group atom", i, g.NumAtoms())
	return Atom{s: g.s, idx: g.s.arena.GroupAtoms[g.idx] + i, local: i, gtype: g.s.arena.GroupType[g.idx]}
}

// Atoms returns the group's atoms in source order.
func (g Group) Atoms() []Atom {
	n := g.NumAtoms()
	out := make([]Atom, n)
	for i := range out {
		out[i] = g.Atom(i)
	}
	return out
}

// AtomByName returns the first atom with the given name, preferring
// atoms without an alternate location.
func (g Group) AtomByName(name string) (Atom, bool) {
	var found Atom
	ok := false
	for _, a := range g.Atoms() {
		if a.Name() != name {
			continue
		}
		if a.AltLoc() == "" {
			return a, true
		}
		if !ok {
			found, ok = a, true
		}
	}
	return found, ok
}

// Atom is a view of one atom.
type Atom struct {
	s     *Structure
	idx   int
	local int
	gtype int32
}

// Index returns the global atom index.
func (a Atom) Index() int { return a.idx }

// Name returns the atom name (e.g. "CA").
func (a Atom) Name() string { return a.s.GroupTypes[a.gtype].AtomNames[a.local] }

// Element returns the element symbol.
func (a Atom) Element() string {
	els := a.s.GroupTypes[a.gtype].Elements
	if a.local < len(els) {
		return els[a.local]
	}
	return ""
}

// Coord returns the atom position.
func (a Atom) Coord() Vec3 {
	return Vec3{X: a.s.arena.AtomX[a.idx], Y: a.s.arena.AtomY[a.idx], Z: a.s.arena.AtomZ[a.idx]}
}

// Occupancy returns the occupancy.
func (a Atom) Occupancy() float32 { return a.s.arena.AtomOccupancy[a.idx] }

// BFactor returns the temperature factor.
func (a Atom) BFactor() float32 { return a.s.arena.AtomBFactor[a.idx] }

// AltLoc returns the alternate location indicator, "" if none.
func (a Atom) AltLoc() string { return a.s.arena.AtomAltLoc[a.idx] }

// Serial returns the atom serial number.
func (a Atom) Serial() int32 { return a.s.arena.AtomSerial[a.idx] }

// Vec3 is a point in Cartesian space (Ångström).
type Vec3 struct{ X, Y, Z float32 }
