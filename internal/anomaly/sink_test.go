package anomaly

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// TestKindString tests kind names.
func TestKindString(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		kind     Kind
		expected string
	}{
		{KindTruncatedBody, "truncated_body"},
		{KindEmptyBody, "empty_body"},
		{KindRetryStorm, "retry_storm"},
		{KindTransportEscalation, "transport_escalation"},
		{Kind(99), "unknown"},
	}

	for _, tc := range testCases {
		if tc.kind.String() != tc.expected {
			t.Errorf("Kind(%d).String() = %q, expected %q", tc.kind, tc.kind.String(), tc.expected)
		}
	}
}

// TestLogSink tests logging and counting.
func TestLogSink(t *testing.T) {
	t.Parallel()

	t.Run("logs at warn level with fields", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		sink := NewLogSink(slog.New(slog.NewTextHandler(&buf, nil)))

		sink.Report(Observation{
			Kind:   KindTruncatedBody,
			Target: "abc123def456",
			Detail: "body exceeded 5242880 bytes",
		})

		out := buf.String()
		if !strings.Contains(out, "level=WARN") {
			t.Errorf("expected WARN level, got: %s", out)
		}
		if !strings.Contains(out, "truncated_body") {
			t.Errorf("expected kind in output, got: %s", out)
		}
		if !strings.Contains(out, "abc123def456") {
			t.Errorf("expected target in output, got: %s", out)
		}
	})

	t.Run("counts per kind", func(t *testing.T) {
		t.Parallel()

		sink := NewLogSink(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
		sink.Report(Observation{Kind: KindEmptyBody})
		sink.Report(Observation{Kind: KindEmptyBody})
		sink.Report(Observation{Kind: KindRetryStorm})

		counts := sink.Counts()
		if counts[KindEmptyBody] != 2 {
			t.Errorf("empty body count = %d, expected 2", counts[KindEmptyBody])
		}
		if counts[KindRetryStorm] != 1 {
			t.Errorf("retry storm count = %d, expected 1", counts[KindRetryStorm])
		}
	})

	t.Run("safe for concurrent use", func(t *testing.T) {
		t.Parallel()

		sink := NewLogSink(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range 100 {
					sink.Report(Observation{Kind: KindEmptyBody})
				}
			}()
		}
		wg.Wait()

		if got := sink.Counts()[KindEmptyBody]; got != 800 {
			t.Errorf("count = %d, expected 800", got)
		}
	})
}

// TestNopSink just exercises the no-op path.
func TestNopSink(t *testing.T) {
	t.Parallel()

	var sink Sink = NopSink{}
	sink.Report(Observation{Kind: KindEmptyBody})
}
