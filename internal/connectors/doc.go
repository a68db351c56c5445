// Package connectors provides record sources for encoded structures.
// Each connector knows how to fetch records from one kind of location
// (a directory tree, the RCSB download service, memory) and streams them
// as domain.RawRecord values on a channel, reporting per-record failures
// on a separate error channel.
//
// Factory builds the configurable sources from a domain.SourceSpec.
// The memory source holds in-process records and is constructed directly.
package connectors
