// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the pipeline to function:
//
//   - RecordSource: Produces (id, bytes) pairs
//   - StructureDecoder: Turns raw bytes into a Structure
//   - Deriver: Adds derived fields to a chain record
//
// # Optional Interfaces
//
// These can be nil - the pipeline degrades gracefully:
//
//   - RecordSink: Receives derived records as they are gathered
//   - ManifestStore: Persists run summaries and failure manifests
//   - ConfigStore: Application configuration
//
// # Factories
//
//   - SourceFactory: Builds a RecordSource from a "type:location" spec
//   - DeriverFactory: Builds a composed Deriver from configured names
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, connector, or decoder package
package driven
