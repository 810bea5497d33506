// Package pipeline turns a fetched raw document into ingestible chunks.
//
// Processing is organized as ordered steps over a Document: sanitize the
// HTML, extract the title and readable text, then split the text into
// overlapping chunks. Steps share the Step interface so the sequence is
// testable in isolation and extensible without touching the runner.
package pipeline
