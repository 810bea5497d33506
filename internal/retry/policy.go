package retry

import (
	"math"
	"time"

	"github.com/nao1215/onionharvest/internal/model"
	"github.com/nao1215/onionharvest/internal/transport"
)

// Action is what the caller should do after a failure.
type Action int

const (
	// ActionRetry means try again on the current transport after the
	// decision's backoff.
	ActionRetry Action = iota

	// ActionEscalate means try again on the fallback transport after the
	// decision's backoff.
	ActionEscalate

	// ActionAbandon means stop trying; the target failed.
	ActionAbandon
)

// String returns the action name used in logs.
func (a Action) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionEscalate:
		return "escalate"
	case ActionAbandon:
		return "abandon"
	default:
		return "unknown"
	}
}

// Decision is the outcome of evaluating one failure.
type Decision struct {
	// Action is what to do next.
	Action Action

	// Backoff is how long to wait before the next attempt.
	// Zero when Action is ActionAbandon.
	Backoff time.Duration

	// Transport is the transport for the next attempt.
	// Meaningless when Action is ActionAbandon.
	Transport model.TransportKind

	// RotateCircuit reports that the failure qualifies for circuit
	// rotation before the next attempt. Only set for failures on the
	// primary transport; the fallback does not use circuits.
	RotateCircuit bool
}

// Policy holds the retry parameters shared by all targets.
type Policy struct {
	// maxRetries is how many retries a target gets after its initial
	// attempt; a target makes at most maxRetries+1 attempts.
	maxRetries int

	// backoffFactor is the multiplier for the delay between attempts.
	// The delay after the nth failure is factor^(n-1) seconds.
	backoffFactor float64

	// escalationThreshold is the retry ordinal a failure count must
	// exceed before the target moves to the fallback transport.
	escalationThreshold int

	// fallbackEnabled controls whether escalation happens at all.
	fallbackEnabled bool
}

// NewPolicy creates a retry policy. Parameters are assumed validated by
// config.Validate.
func NewPolicy(maxRetries int, backoffFactor float64, escalationThreshold int, fallbackEnabled bool) *Policy {
	return &Policy{
		maxRetries:          maxRetries,
		backoffFactor:       backoffFactor,
		escalationThreshold: escalationThreshold,
		fallbackEnabled:     fallbackEnabled,
	}
}

// MaxRetries returns the per-target retry budget.
func (p *Policy) MaxRetries() int {
	return p.maxRetries
}

// Tracker holds the attempt state of one target. It is owned by the
// worker processing that target and is not safe for concurrent use.
type Tracker struct {
	// failures is how many attempts have failed so far.
	failures int

	// transport is the transport for the next attempt.
	transport model.TransportKind

	// escalated is set once the target moved to the fallback transport.
	// Escalation is one-way; a target never moves back.
	escalated bool
}

// NewTracker creates the attempt state for one target, starting on the
// primary transport.
func (p *Policy) NewTracker() *Tracker {
	return &Tracker{transport: model.TransportPrimary}
}

// Attempts returns how many attempts have been made (all failed so far).
func (t *Tracker) Attempts() int {
	return t.failures
}

// Transport returns the transport for the next attempt.
func (t *Tracker) Transport() model.TransportKind {
	return t.transport
}

// Escalated reports whether the target moved to the fallback transport.
func (t *Tracker) Escalated() bool {
	return t.escalated
}

// OnFailure records a failed attempt and decides what happens next.
//
// Order of checks matters: a non-retryable failure abandons immediately
// regardless of remaining budget, and an exhausted budget abandons even
// when the failure kind is retryable.
func (p *Policy) OnFailure(t *Tracker, fetchErr *transport.FetchError) Decision {
	t.failures++

	if !fetchErr.Retryable() {
		return Decision{Action: ActionAbandon}
	}
	if t.failures > p.maxRetries {
		return Decision{Action: ActionAbandon}
	}

	decision := Decision{
		Action:    ActionRetry,
		Backoff:   p.backoff(t.failures),
		Transport: t.transport,
	}

	if p.fallbackEnabled && !t.escalated && t.failures > p.escalationThreshold {
		t.escalated = true
		t.transport = model.TransportFallback
		decision.Action = ActionEscalate
		decision.Transport = model.TransportFallback
	}

	// Rotation only helps while the target is still fetched through Tor.
	if decision.Transport == model.TransportPrimary {
		decision.RotateCircuit = fetchErr.CircuitRelated()
	}

	return decision
}

// backoff computes the delay after the nth failure: factor^(n-1) seconds.
// The first retry comes after one second, later ones stretch out
// geometrically.
func (p *Policy) backoff(failures int) time.Duration {
	seconds := math.Pow(p.backoffFactor, float64(failures-1))
	return time.Duration(seconds * float64(time.Second))
}
