package anomaly

import (
	"log/slog"
	"sync"
)

// Kind classifies an observation.
type Kind int

const (
	// KindTruncatedBody marks a response body cut at the size limit.
	KindTruncatedBody Kind = iota

	// KindEmptyBody marks a success status with a body below the minimum
	// content length.
	KindEmptyBody

	// KindRetryStorm marks a target that exhausted its whole retry budget.
	KindRetryStorm

	// KindTransportEscalation marks a target that moved to the fallback
	// transport.
	KindTransportEscalation
)

// String returns the kind name used in logs and summaries.
func (k Kind) String() string {
	switch k {
	case KindTruncatedBody:
		return "truncated_body"
	case KindEmptyBody:
		return "empty_body"
	case KindRetryStorm:
		return "retry_storm"
	case KindTransportEscalation:
		return "transport_escalation"
	default:
		return "unknown"
	}
}

// Observation is one recorded anomaly. Target is the content address of
// the affected target, never the raw URL.
type Observation struct {
	Kind   Kind
	Target string
	Detail string
}

// Sink receives observations from the fetch path.
// Implementations must be safe for concurrent use and must not block;
// workers report inline.
type Sink interface {
	Report(obs Observation)
}

// LogSink writes observations to a structured logger at warn level.
type LogSink struct {
	logger *slog.Logger

	mu     sync.Mutex
	counts map[Kind]int
}

// NewLogSink creates a sink logging to the given logger.
// A nil logger uses slog.Default().
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{
		logger: logger,
		counts: make(map[Kind]int),
	}
}

// Report implements Sink.
func (s *LogSink) Report(obs Observation) {
	s.mu.Lock()
	s.counts[obs.Kind]++
	s.mu.Unlock()

	s.logger.Warn("anomaly observed",
		"kind", obs.Kind.String(),
		"target", obs.Target,
		"detail", obs.Detail,
	)
}

// Counts returns a snapshot of observation counts per kind.
func (s *LogSink) Counts() map[Kind]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make(map[Kind]int, len(s.counts))
	for k, v := range s.counts {
		snapshot[k] = v
	}
	return snapshot
}

// NopSink discards all observations. Useful in tests and when anomaly
// reporting is disabled.
type NopSink struct{}

// Report implements Sink.
func (NopSink) Report(Observation) {}
