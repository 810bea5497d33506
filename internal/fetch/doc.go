// Package fetch drives the fetch-retry-ingest loop over a list of
// targets.
//
// The Orchestrator owns the control flow the rest of the system plugs
// into: a bounded worker pool takes targets, validates their addresses,
// skips known content-addresses, then runs sequential fetch attempts with
// per-attempt fingerprints, circuit rotation, backoff, and transport
// escalation until the target is ingested or abandoned. Every target
// resolves to exactly one outcome; no target failure aborts the run.
package fetch
