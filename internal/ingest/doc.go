// Package ingest coordinates deduplication and storage of fetched
// documents.
//
// The Coordinator guarantees at-most-once storage per content-address.
// An in-memory claim set serializes concurrent workers within a run, and
// the storage layer's primary key covers documents stored by earlier
// runs. Content-addresses hash the normalized target address, not the
// body, so the question answered is "have we fetched this address
// before", not "have we seen this content before".
package ingest
