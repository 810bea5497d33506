// Package fingerprint generates randomized client identities for fetch
// attempts. An identity bundles a user agent, an Accept-Language value,
// the accompanying request headers, a TLS configuration preset, and a
// pre-request jitter delay.
//
// Every attempt gets a fresh identity so that consecutive requests from
// the same harvester run do not present an identical client signature.
// The suggested values are drawn from common browser configurations;
// presenting a plausible but varying signature matters more than any
// individual value.
package fingerprint
