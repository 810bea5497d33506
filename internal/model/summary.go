package model

import "time"

// OutcomeKind is the terminal result classification for one target.
type OutcomeKind int

const (
	// OutcomeIngested means the target was fetched and its chunks stored.
	OutcomeIngested OutcomeKind = iota

	// OutcomeSkippedAlreadyIngested means the content-address was found
	// in the dedup store and no network call was made.
	OutcomeSkippedAlreadyIngested

	// OutcomeSkippedInvalid means the address failed validation and no
	// network call was made.
	OutcomeSkippedInvalid

	// OutcomeFailed means all attempts were exhausted or a terminal
	// failure occurred. The Reason field identifies the cause.
	OutcomeFailed
)

// String returns the outcome name for logging and reports.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeIngested:
		return "ingested"
	case OutcomeSkippedAlreadyIngested:
		return "skipped_duplicate"
	case OutcomeSkippedInvalid:
		return "skipped_invalid"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Failure reasons recorded on OutcomeFailed.
// These are stable strings used in summaries and persisted records.
const (
	// ReasonEmptyContent means the content pipeline extracted zero
	// characters of text. Retrying will not change content, so this
	// is terminal.
	ReasonEmptyContent = "empty_content"

	// ReasonRunCancelled means the run deadline expired or the run
	// was interrupted before the target could complete.
	ReasonRunCancelled = "run_cancelled"

	// ReasonStorageFailed means the storage collaborator failed after
	// its single retry.
	ReasonStorageFailed = "storage_failed"
)

// Outcome is the terminal result for one target in one run.
// It is produced exactly once per target and is immutable after creation.
type Outcome struct {
	// ContentAddress identifies the target. Raw addresses are never
	// stored in outcomes.
	ContentAddress string

	// Kind is the terminal classification.
	Kind OutcomeKind

	// Reason describes the failure cause when Kind is OutcomeFailed.
	Reason string

	// ChunkCount is the number of chunks stored when Kind is
	// OutcomeIngested.
	ChunkCount int

	// Attempts is the total number of fetch attempts made.
	Attempts int
}

// MaxSummaryFailures bounds the failure list kept in a run summary.
// Counters are always exact; only the per-target detail list is capped.
const MaxSummaryFailures = 50

// RunSummary aggregates per-target outcomes for one run.
// Raw addresses must not appear anywhere in this structure: failures
// reference targets by content-address only.
type RunSummary struct {
	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// Elapsed is the total run duration.
	Elapsed time.Duration `json:"elapsed"`

	// TargetsTotal is the number of targets in the input list.
	TargetsTotal int `json:"targets_total"`

	// Ingested counts targets whose chunks were stored.
	Ingested int `json:"ingested"`

	// SkippedDuplicate counts targets already present in the dedup store.
	SkippedDuplicate int `json:"skipped_duplicate"`

	// SkippedInvalid counts targets that failed address validation.
	SkippedInvalid int `json:"skipped_invalid"`

	// Failed counts targets abandoned after exhausting retries or
	// hitting a terminal failure.
	Failed int `json:"failed"`

	// ChunksStored is the total number of chunks stored across all
	// ingested targets.
	ChunksStored int `json:"chunks_stored"`

	// Failures lists (content-address, reason) pairs for failed targets,
	// capped at MaxSummaryFailures entries.
	Failures []FailureRecord `json:"failures,omitempty"`
}

// FailureRecord is one failed target in the run summary.
type FailureRecord struct {
	// ContentAddress is the hash of the failed target's address.
	ContentAddress string `json:"content_address"`

	// Reason is the terminal failure reason.
	Reason string `json:"reason"`
}

// Record folds one outcome into the summary counters.
func (s *RunSummary) Record(o Outcome) {
	switch o.Kind {
	case OutcomeIngested:
		s.Ingested++
		s.ChunksStored += o.ChunkCount
	case OutcomeSkippedAlreadyIngested:
		s.SkippedDuplicate++
	case OutcomeSkippedInvalid:
		s.SkippedInvalid++
	case OutcomeFailed:
		s.Failed++
		if len(s.Failures) < MaxSummaryFailures {
			s.Failures = append(s.Failures, FailureRecord{
				ContentAddress: o.ContentAddress,
				Reason:         o.Reason,
			})
		}
	}
}
