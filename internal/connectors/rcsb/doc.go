// Package rcsb downloads MMTF records from the RCSB PDB.
//
// Records are fetched one ID at a time from the full-structure endpoint.
// Requests are throttled by a token bucket and retried on server errors
// and 429 responses, honouring Retry-After.
package rcsb
