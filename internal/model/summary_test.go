package model

import (
	"fmt"
	"testing"
)

// TestRunSummaryRecord tests counter folding.
func TestRunSummaryRecord(t *testing.T) {
	t.Parallel()

	t.Run("counts each outcome kind", func(t *testing.T) {
		t.Parallel()

		var s RunSummary
		s.Record(Outcome{Kind: OutcomeIngested, ChunkCount: 3})
		s.Record(Outcome{Kind: OutcomeIngested, ChunkCount: 2})
		s.Record(Outcome{Kind: OutcomeSkippedAlreadyIngested})
		s.Record(Outcome{Kind: OutcomeSkippedInvalid})
		s.Record(Outcome{Kind: OutcomeFailed, ContentAddress: "abc", Reason: "timeout"})

		if s.Ingested != 2 {
			t.Errorf("expected 2 ingested, got %d", s.Ingested)
		}
		if s.ChunksStored != 5 {
			t.Errorf("expected 5 chunks stored, got %d", s.ChunksStored)
		}
		if s.SkippedDuplicate != 1 {
			t.Errorf("expected 1 duplicate, got %d", s.SkippedDuplicate)
		}
		if s.SkippedInvalid != 1 {
			t.Errorf("expected 1 invalid, got %d", s.SkippedInvalid)
		}
		if s.Failed != 1 {
			t.Errorf("expected 1 failed, got %d", s.Failed)
		}
		if len(s.Failures) != 1 {
			t.Fatalf("expected 1 failure record, got %d", len(s.Failures))
		}
		if s.Failures[0].ContentAddress != "abc" || s.Failures[0].Reason != "timeout" {
			t.Errorf("unexpected failure record: %+v", s.Failures[0])
		}
	})

	t.Run("failure list is bounded", func(t *testing.T) {
		t.Parallel()

		var s RunSummary
		for i := range MaxSummaryFailures + 10 {
			s.Record(Outcome{
				Kind:           OutcomeFailed,
				ContentAddress: fmt.Sprintf("addr%d", i),
				Reason:         "timeout",
			})
		}

		if s.Failed != MaxSummaryFailures+10 {
			t.Errorf("failed counter must stay exact, got %d", s.Failed)
		}
		if len(s.Failures) != MaxSummaryFailures {
			t.Errorf("expected failure list capped at %d, got %d", MaxSummaryFailures, len(s.Failures))
		}
	})
}

// TestOutcomeKindString tests outcome names.
func TestOutcomeKindString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind OutcomeKind
		want string
	}{
		{OutcomeIngested, "ingested"},
		{OutcomeSkippedAlreadyIngested, "skipped_duplicate"},
		{OutcomeSkippedInvalid, "skipped_invalid"},
		{OutcomeFailed, "failed"},
		{OutcomeKind(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("OutcomeKind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

// TestTransportKindString tests transport names.
func TestTransportKindString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind TransportKind
		want string
	}{
		{TransportPrimary, "tor"},
		{TransportFallback, "i2p"},
		{TransportKind(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("TransportKind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}
