// Package circuit decides when the Tor circuit should be rotated and
// delivers the rotation signal.
//
// Rotation is triggered by three conditions: a per-circuit request budget,
// a qualifying fetch failure, or a random pre-request coin flip. A minimum
// circuit lifespan floors how often rotation actually happens; Tor rate
// limits identity changes, so requests to rotate below the floor are
// silently skipped rather than queued.
package circuit
