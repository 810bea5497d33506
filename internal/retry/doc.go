// Package retry decides what happens after a failed fetch attempt:
// retry with backoff, escalate to the fallback transport, or abandon the
// target. The policy is stateless; per-target attempt state lives in a
// Tracker owned by the worker processing that target.
package retry
