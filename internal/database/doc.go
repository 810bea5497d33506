// Package database provides SQLite-based storage for ingested documents.
//
// This package implements the IngestDB, which stores:
//   - Ingest records keyed by content-address, doubling as dedup markers
//   - Document chunks for downstream vector indexing
//
// Design decision: We use SQLite (via modernc.org/sqlite) instead of other
// databases because:
// 1. No external dependencies - the database is a single file
// 2. CGO-free implementation allows easy cross-compilation
// 3. Sufficient performance for our use case
// 4. WAL mode provides good concurrent read performance
//
// A document and its chunks are written in one transaction so a dedup
// marker never exists without its chunks.
package database
