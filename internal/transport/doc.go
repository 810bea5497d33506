// Package transport performs single fetch attempts over the primary
// (Tor) or fallback (I2P) transport and classifies their failures.
//
// The Router does exactly one attempt per call; retry and escalation
// decisions belong to callers. Failures come back as *FetchError with a
// Kind that drives both retry eligibility and circuit rotation.
package transport
