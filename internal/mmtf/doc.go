// Package mmtf decodes and encodes Macromolecular Transmission Format
// records.
//
// A record is a MessagePack map. Scalar metadata is stored as plain
// values; per-atom, per-group and per-chain columns are stored as binary
// blobs with a 12-byte big-endian header (codec, length, parameter)
// followed by a payload packed with one of fifteen codecs. The decoder
// unpacks every column, checks that the per-level counts agree, and
// links the result into a domain.Structure.
package mmtf
