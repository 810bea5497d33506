package circuit

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"
)

// Signaler delivers a new-circuit request to the Tor daemon.
// *tor.ControlClient implements this interface.
type Signaler interface {
	SignalNewCircuit(ctx context.Context) error
}

// Manager tracks circuit usage and rotates the circuit when a budget,
// failure, or random trigger fires. It is safe for concurrent use by
// multiple fetch workers; all state transitions happen under one mutex.
type Manager struct {
	mu sync.Mutex

	// signaler sends NEWNYM to the daemon. nil disables rotation, which
	// is the right behavior when no control port is configured.
	signaler Signaler

	// maxRequests is the request budget of one circuit.
	maxRequests int

	// minLifespan is the minimum age a circuit must reach before it is
	// replaced.
	minLifespan time.Duration

	// rotationProbability is the chance of a pre-request random rotation.
	rotationProbability float64

	// requestCount is the number of requests the current circuit served.
	requestCount int

	// establishedAt is when the current circuit was adopted.
	establishedAt time.Time

	// rotations counts successful rotations, for the run summary.
	rotations int

	// rotating is set while a NEWNYM signal is in flight. Concurrent
	// Rotate calls return immediately instead of queueing signals.
	rotating bool

	rnd    *rand.Rand
	logger *slog.Logger
}

// NewManager creates a circuit manager.
// A nil signaler turns Rotate into a no-op; the manager still tracks
// request counts so behavior is observable in tests and logs.
func NewManager(signaler Signaler, maxRequests int, minLifespan time.Duration, rotationProbability float64, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		signaler:            signaler,
		maxRequests:         maxRequests,
		minLifespan:         minLifespan,
		rotationProbability: rotationProbability,
		establishedAt:       time.Now(),
		rnd:                 rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // non-cryptographic trigger
		logger:              logger,
	}
}

// RecordRequest counts one request against the current circuit.
// Call this after every attempt on the primary transport, successful or
// not; the budget measures exposure, not success.
func (m *Manager) RecordRequest() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount++
}

// ShouldRotate reports whether the circuit should be replaced before the
// next request. afterFailure marks that the previous attempt failed in a
// way that may be circuit-related (timeout, refused connection, protocol
// error); such failures always qualify.
func (m *Manager) ShouldRotate(afterFailure bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if afterFailure {
		return true
	}
	if m.requestCount >= m.maxRequests {
		return true
	}
	// The random trigger only applies once the circuit is old enough to
	// actually be replaced; drawing earlier would hint at rotations that
	// Rotate must skip anyway.
	if time.Since(m.establishedAt) < m.minLifespan {
		return false
	}
	return m.rnd.Float64() < m.rotationProbability
}

// Rotate requests a fresh circuit and resets the usage counters.
//
// If the current circuit is younger than the minimum lifespan, Rotate
// returns nil without signaling. Skipping is deliberate: the trigger
// conditions fire much more often than Tor accepts NEWNYM, and a skipped
// rotation costs nothing while a queued one would stall the fetch loop.
//
// The mutex guards only the eligibility check and the counter reset; the
// control port conversation happens outside it so concurrent workers can
// keep recording requests while a signal is in flight. A second Rotate
// arriving during the signal returns immediately.
func (m *Manager) Rotate(ctx context.Context) error {
	m.mu.Lock()

	if m.signaler == nil || m.rotating {
		m.mu.Unlock()
		return nil
	}

	age := time.Since(m.establishedAt)
	if age < m.minLifespan {
		m.mu.Unlock()
		m.logger.Debug("circuit rotation skipped",
			"age", age,
			"min_lifespan", m.minLifespan,
		)
		return nil
	}

	m.rotating = true
	served := m.requestCount
	m.mu.Unlock()

	err := m.signaler.SignalNewCircuit(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.rotating = false

	if err != nil {
		return err
	}

	m.logger.Debug("circuit rotated",
		"served_requests", served,
		"age", age,
	)

	m.requestCount = 0
	m.establishedAt = time.Now()
	m.rotations++

	return nil
}

// Rotations returns how many rotations succeeded so far.
func (m *Manager) Rotations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rotations
}

// RequestCount returns how many requests the current circuit served.
func (m *Manager) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestCount
}
