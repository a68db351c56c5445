package mmtftest

import (
	"fmt"

	"github.com/custodia-labs/mmtf-derive/internal/core/domain"
)

const peptideLinking = "L-PEPTIDE LINKING"

var residueCycle = []struct{ name, code string }{
	{"ALA", "A"}, {"GLY", "G"}, {"LEU", "L"}, {"SER", "S"}, {"VAL", "V"},
	{"GLU", "E"}, {"LYS", "K"}, {"THR", "T"}, {"ASP", "D"}, {"ILE", "I"},
}

// place rounds a coordinate to the precision the coordinate codec keeps.
func place(v float64) float32 {
	return float32(float64(int64(v*1000)) / 1000)
}

// Residue returns an amino acid with a full N, CA, C, O backbone.
// The name cycles through common residues by position.
func Residue(pos int, dssp int8) GroupSpec {
	r := residueCycle[pos%len(residueCycle)]
	x := float64(pos) * 3.8
	return GroupSpec{
		Name:     r.name,
		Code:     r.code,
		ChemComp: peptideLinking,
		Number:   int32(pos + 1),
		SeqIndex: int32(pos),
		DSSP:     dssp,
		Atoms: []AtomSpec{
			{Name: "N", Element: "N", X: place(x - 1.2), Y: place(0.5), Z: place(0.1)},
			{Name: "CA", Element: "C", X: place(x), Y: place(0), Z: place(0)},
			{Name: "C", Element: "C", X: place(x + 1.5), Y: place(0.4), Z: place(-0.2)},
			{Name: "O", Element: "O", X: place(x + 1.9), Y: place(1.6), Z: place(-0.3)},
		},
	}
}

// CAOnly returns a residue that lost every backbone atom except CA.
func CAOnly(pos int, dssp int8) GroupSpec {
	g := Residue(pos, dssp)
	g.Atoms = g.Atoms[1:2]
	return g
}

// Water returns a water chain with n molecules.
func Water(id string, entity int, n int) ChainSpec {
	c := ChainSpec{ID: id, Entity: entity}
	for i := 0; i < n; i++ {
		c.Groups = append(c.Groups, GroupSpec{
			Name: "HOH", Code: "?", ChemComp: "NON-POLYMER", Number: int32(1000 + i), SeqIndex: -1, DSSP: -1,
			Atoms: []AtomSpec{{Name: "O", Element: "O", X: place(float64(i)), Y: 10, Z: 10}},
		})
	}
	return c
}

// Ligand returns a single-group non-polymer chain.
func Ligand(id string, entity int, name string) ChainSpec {
	return ChainSpec{ID: id, Entity: entity, Groups: []GroupSpec{{
		Name: name, Code: "?", ChemComp: "NON-POLYMER", Number: 500, SeqIndex: -1, DSSP: -1,
		Atoms: []AtomSpec{
			{Name: "C1", Element: "C", X: 5, Y: 5, Z: 5},
			{Name: "O1", Element: "O", X: 6, Y: 5, Z: 5},
		},
	}}}
}

// Chain returns a polymer chain built from the given residues.
func Chain(id, name string, entity int, groups []GroupSpec) ChainSpec {
	return ChainSpec{ID: id, Name: name, Entity: entity, Groups: groups}
}

// Residues returns n full-backbone residues, all coil.
func Residues(n int) []GroupSpec {
	out := make([]GroupSpec, n)
	for i := range out {
		out[i] = Residue(i, 7)
	}
	return out
}

// SequenceOf returns the one-letter sequence of the groups.
func SequenceOf(groups []GroupSpec) string {
	b := make([]byte, len(groups))
	for i, g := range groups {
		b[i] = g.Code[0]
	}
	return string(b)
}

// Protein returns a single-model X-ray structure with one polymer chain
// of n residues, a ligand and a few waters.
func Protein(id string, n int) StructureSpec {
	groups := Residues(n)
	return StructureSpec{
		ID:          id,
		Title:       fmt.Sprintf("test protein %s", id),
		ReleaseDate: "2019-05-01",
		Methods:     []string{"X-RAY DIFFRACTION"},
		Resolution:  domain.Some(2.0),
		RFree:       domain.Some(0.25),
		RWork:       domain.Some(0.2),
		Entities: []EntitySpec{
			{Type: domain.EntityPolymer, Description: "test protein", Sequence: SequenceOf(groups)},
			{Type: domain.EntityNonPolymer, Description: "ligand"},
			{Type: domain.EntityWater, Description: "water"},
		},
		Models: []ModelSpec{{Chains: []ChainSpec{
			Chain("A", "A", 0, groups),
			Ligand("B", 1, "HEM"),
			Water("C", 2, 3),
		}}},
	}
}

// Homodimer returns a structure with two chains of the same entity and
// sequence, A and B, with label ids A and C.
func Homodimer(id string, n int) StructureSpec {
	groups := Residues(n)
	s := Protein(id, n)
	s.Models[0].Chains = []ChainSpec{
		Chain("A", "A", 0, groups),
		Chain("C", "B", 0, groups),
		Water("D", 2, 2),
	}
	return s
}

// NMR returns a structure with the given number of models, each holding
// one polymer chain. Only the first model lists the chain in its entity.
func NMR(id string, n, models int) StructureSpec {
	s := Protein(id, n)
	s.Methods = []string{"SOLUTION NMR"}
	s.Resolution, s.RFree, s.RWork = domain.OptionalFloat{}, domain.OptionalFloat{}, domain.OptionalFloat{}
	s.Models = nil
	for m := 0; m < models; m++ {
		entity := 0
		if m > 0 {
			entity = -1
		}
		s.Models = append(s.Models, ModelSpec{Chains: []ChainSpec{Chain("A", "A", entity, Residues(n))}})
	}
	return s
}

// secStructRun is a stretch of residues sharing one DSSP code.
type secStructRun struct {
	dssp   int8
	n      int
	caOnly bool
}

var secStructRuns = []secStructRun{
	{dssp: 2, n: 10, caOnly: true},
	{dssp: 7, n: 6},
	{dssp: 2, n: 10},
	{dssp: 6, n: 6},
	{dssp: 3, n: 12},
	{dssp: 1, n: 4},
	{dssp: 7, n: 6},
	{dssp: -1, n: 9},
	{dssp: 4, n: 3},
	{dssp: 6, n: 6},
	{dssp: 3, n: 13},
	{dssp: 5, n: 1},
	{dssp: 1, n: 4},
	{dssp: 7, n: 12},
	{dssp: -1, n: 9},
	{dssp: 3, n: 10, caOnly: true},
}

// Expected Q8 counts for SecStruct after backbone-aware classification.
var SecStructQ8Counts = map[domain.Q8]int{
	domain.Q8Unassigned: 38,
	domain.Q8Coil:       24,
	domain.Q8Turn:       12,
	domain.Q8Bend:       8,
	domain.Q8Strand:     25,
	domain.Q8AlphaHelix: 10,
	domain.Q8Helix310:   3,
	domain.Q8Bridge:     1,
}

// SecStructLength is the chain length of SecStruct.
const SecStructLength = 121

// SecStruct returns a one-chain structure with recorded secondary
// structure, including unassigned residues and residues that are
// missing backbone atoms.
func SecStruct(id string) StructureSpec {
	var groups []GroupSpec
	for _, run := range secStructRuns {
		for i := 0; i < run.n; i++ {
			pos := len(groups)
			if run.caOnly {
				groups = append(groups, CAOnly(pos, run.dssp))
			} else {
				groups = append(groups, Residue(pos, run.dssp))
			}
		}
	}
	s := Protein(id, 0)
	s.Entities[0].Sequence = SequenceOf(groups)
	s.Models[0].Chains[0] = Chain("A", "A", 0, groups)
	return s
}
