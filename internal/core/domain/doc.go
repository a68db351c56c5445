// Package domain defines the core entities for mmtf-derive.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - RawRecord: Opaque (id, bytes) pairs from a record source
//   - Structure: The decoded macromolecular hierarchy
//     (Structure → Model → Chain → Group → Atom)
//   - ChainRecord: The per-chain unit fed to and emitted by derivers
//   - Predicate: Serialisable filter descriptors
//   - Result: Output records plus the error manifest of a run
//
// # Structure Layout
//
// A Structure stores every level of the hierarchy as flat columns
// (an arena per level) addressed by integer offsets. Model, Chain, Group
// and Atom are small value views into those columns. Extracting a chain
// copies a handful of scalars and the per-residue backbone, so the
// Structure can be released as soon as extraction completes.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
