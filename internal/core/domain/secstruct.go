package domain

// Q8 is an 8-class DSSP secondary-structure symbol, plus the
// unassigned sentinel.
type Q8 byte

// Q8 symbols.
const (
	Q8AlphaHelix Q8 = 'H'
	Q8Bridge     Q8 = 'B'
	Q8Strand     Q8 = 'E'
	Q8Helix310   Q8 = 'G'
	Q8PiHelix    Q8 = 'I'
	Q8Turn       Q8 = 'T'
	Q8Bend       Q8 = 'S'
	Q8Coil       Q8 = 'C'
	Q8Unassigned Q8 = 'X'
)

// Q8Symbols lists every Q8 symbol including the sentinel.
var Q8Symbols = []Q8{
	Q8AlphaHelix, Q8Bridge, Q8Strand, Q8Helix310, Q8PiHelix,
	Q8Turn, Q8Bend, Q8Coil, Q8Unassigned,
}

// Q3 is a 3-class secondary-structure symbol.
type Q3 byte

// Q3 symbols.
const (
	Q3Helix  Q3 = 'H'
	Q3Strand Q3 = 'E'
	Q3Coil   Q3 = 'C'
)

// dsspToQ8 follows the numeric DSSP codes stored in MMTF secStructList.
var dsspToQ8 = [...]Q8{
	0: Q8PiHelix,
	1: Q8Bend,
	2: Q8AlphaHelix,
	3: Q8Strand,
	4: Q8Helix310,
	5: Q8Bridge,
	6: Q8Turn,
	7: Q8Coil,
}

// Q8FromDSSP maps a numeric DSSP code to its symbol. Codes outside
// 0..7 (including the -1 "not assigned" value) map to Q8Unassigned.
func Q8FromDSSP(code int) Q8 {
	if code < 0 || code >= len(dsspToQ8) {
		return Q8Unassigned
	}
	return dsspToQ8[code]
}

// DSSP returns the numeric code for the symbol, -1 for the sentinel
// and for bytes that are not Q8 symbols.
func (q Q8) DSSP() int {
	for i, s := range dsspToQ8 {
		if s == q {
			return i
		}
	}
	return -1
}

// Q3 collapses the symbol to helix, strand or coil. The mapping is
// total: any byte that is not a helix or strand symbol, including the
// sentinel, is coil.
func (q Q8) Q3() Q3 {
	switch q {
	case Q8AlphaHelix, Q8Helix310, Q8PiHelix:
		return Q3Helix
	case Q8Strand, Q8Bridge:
		return Q3Strand
	default:
		return Q3Coil
	}
}

// Q8String renders codes as a string, one character per residue.
func Q8String(codes []Q8) string {
	b := make([]byte, len(codes))
	for i, c := range codes {
		b[i] = byte(c)
	}
	return string(b)
}

// Q3String reduces a Q8 string to Q3.
func Q3String(q8 string) string {
	b := make([]byte, len(q8))
	for i := 0; i < len(q8); i++ {
		b[i] = byte(Q8(q8[i]).Q3())
	}
	return string(b)
}
