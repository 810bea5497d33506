package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/onionharvest/internal/anomaly"
	"github.com/nao1215/onionharvest/internal/fingerprint"
	"github.com/nao1215/onionharvest/internal/ingest"
	"github.com/nao1215/onionharvest/internal/model"
	"github.com/nao1215/onionharvest/internal/retry"
	"github.com/nao1215/onionharvest/internal/tor"
	"github.com/nao1215/onionharvest/internal/transport"
)

// Fetcher performs a single fetch attempt. *transport.Router satisfies it.
type Fetcher interface {
	// Fetch retrieves the target over the given transport using the
	// given identity.
	Fetch(ctx context.Context, target model.Target, kind model.TransportKind, id fingerprint.Identity) (*model.RawDocument, error)
}

// Ingestor deduplicates and stores fetched documents.
// *ingest.Coordinator satisfies it.
type Ingestor interface {
	// AlreadyIngested reports whether a target can be skipped outright.
	AlreadyIngested(ctx context.Context, target model.Target) (bool, error)

	// Ingest processes and stores a fetched document, returning the
	// chunk count. A duplicate returns zero chunks without error.
	Ingest(ctx context.Context, doc *model.Document) (int, error)
}

// Rotator manages circuit lifecycle for the primary transport.
// *circuit.Manager satisfies it.
type Rotator interface {
	// RecordRequest counts one request against the circuit budget.
	RecordRequest()

	// ShouldRotate decides whether the circuit is due for replacement.
	ShouldRotate(afterFailure bool) bool

	// Rotate requests a fresh circuit. Errors are never fatal to an
	// attempt; the attempt proceeds on the existing circuit.
	Rotate(ctx context.Context) error
}

// Orchestrator drives the full fetch-retry-ingest loop for a list of
// targets. Targets are processed by a bounded pool of workers; within one
// target, attempts are strictly sequential.
//
// Design decision: We use errgroup.SetLimit rather than a hand-built
// worker pool because circuits are a scarce shared resource and errgroup
// enforces the bound with the least machinery. Workers never return
// errors to the group; every failure is folded into the target's outcome
// so one bad target cannot cancel the rest of the run.
type Orchestrator struct {
	// fetcher performs single fetch attempts.
	fetcher Fetcher

	// ingestor deduplicates and stores documents.
	ingestor Ingestor

	// rotator manages the shared Tor circuit. May be nil when the run
	// uses a fixed circuit.
	rotator Rotator

	// policy decides retry, escalation, and abandonment.
	policy *retry.Policy

	// identities generates per-attempt request fingerprints.
	identities *fingerprint.Generator

	// sink receives anomaly observations.
	sink anomaly.Sink

	// concurrency bounds the number of in-flight targets.
	concurrency int

	// logger for structured logging.
	logger *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRotator sets the circuit rotator used before primary-transport
// attempts.
func WithRotator(r Rotator) Option {
	return func(o *Orchestrator) {
		o.rotator = r
	}
}

// WithAnomalySink sets the sink receiving anomaly observations.
func WithAnomalySink(sink anomaly.Sink) Option {
	return func(o *Orchestrator) {
		o.sink = sink
	}
}

// WithConcurrency bounds the number of targets processed at once.
// Values below one are ignored.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithLogger sets a custom logger for the orchestrator.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(fetcher Fetcher, ingestor Ingestor, policy *retry.Policy, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		fetcher:     fetcher,
		ingestor:    ingestor,
		policy:      policy,
		identities:  fingerprint.NewGenerator(),
		sink:        anomaly.NopSink{},
		concurrency: 8,
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.logger == nil {
		o.logger = slog.Default()
	}

	return o
}

// Run processes all targets and returns the aggregated summary.
// The summary is always returned, even when the context is cancelled
// mid-run; unfinished targets are recorded as failed with a cancellation
// reason.
func (o *Orchestrator) Run(ctx context.Context, rawTargets []string) *model.RunSummary {
	summary := &model.RunSummary{
		StartedAt:    time.Now(),
		TargetsTotal: len(rawTargets),
	}

	o.logger.Info("starting run",
		"targets", len(rawTargets),
		"concurrency", o.concurrency,
	)

	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(o.concurrency)

	for _, raw := range rawTargets {
		g.Go(func() error {
			outcome := o.processTarget(ctx, raw)

			mu.Lock()
			summary.Record(outcome)
			mu.Unlock()

			o.logger.Info("target resolved",
				"target", outcome.ContentAddress[:min(12, len(outcome.ContentAddress))],
				"outcome", outcome.Kind.String(),
				"reason", outcome.Reason,
				"attempts", outcome.Attempts,
			)
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // workers never return errors

	summary.Elapsed = time.Since(summary.StartedAt)

	o.logger.Info("run complete",
		"ingested", summary.Ingested,
		"skipped_duplicate", summary.SkippedDuplicate,
		"skipped_invalid", summary.SkippedInvalid,
		"failed", summary.Failed,
		"chunks_stored", summary.ChunksStored,
		"elapsed", summary.Elapsed,
	)

	return summary
}

// processTarget runs the full attempt loop for one target and returns its
// terminal outcome.
func (o *Orchestrator) processTarget(ctx context.Context, raw string) model.Outcome {
	target := model.NewTarget(raw)

	if err := tor.ValidateTargetURL(target.Raw); err != nil {
		o.logger.Debug("target rejected",
			"target", target.AddressHash(),
			"error", err,
		)
		return model.Outcome{
			ContentAddress: target.ContentAddress,
			Kind:           model.OutcomeSkippedInvalid,
			Reason:         err.Error(),
		}
	}

	ingested, err := o.ingestor.AlreadyIngested(ctx, target)
	if err != nil {
		return model.Outcome{
			ContentAddress: target.ContentAddress,
			Kind:           model.OutcomeFailed,
			Reason:         model.ReasonStorageFailed,
		}
	}
	if ingested {
		return model.Outcome{
			ContentAddress: target.ContentAddress,
			Kind:           model.OutcomeSkippedAlreadyIngested,
		}
	}

	rawDoc, attempts, failure := o.fetchWithRetries(ctx, target)
	if failure != nil {
		return *failure
	}

	return o.ingestDocument(ctx, target, rawDoc, attempts)
}

// fetchWithRetries runs sequential attempts for one target until success,
// abandonment, or cancellation. On success it returns the raw document and
// the attempt count; otherwise the terminal failure outcome.
func (o *Orchestrator) fetchWithRetries(ctx context.Context, target model.Target) (*model.RawDocument, int, *model.Outcome) {
	tracker := o.policy.NewTracker()

	for {
		if ctx.Err() != nil {
			return nil, tracker.Attempts(), o.cancelledOutcome(target, tracker.Attempts())
		}

		kind := tracker.Transport()

		// Circuit bookkeeping applies only while fetching through Tor.
		if kind == model.TransportPrimary && o.rotator != nil {
			if o.rotator.ShouldRotate(false) {
				_ = o.rotator.Rotate(ctx) //nolint:errcheck // rotation failure is never fatal, logged by the rotator
			}
			o.rotator.RecordRequest()
		}

		doc, err := o.fetcher.Fetch(ctx, target, kind, o.identities.Next())
		if err == nil {
			return doc, tracker.Attempts() + 1, nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			if ctx.Err() != nil {
				return nil, tracker.Attempts(), o.cancelledOutcome(target, tracker.Attempts())
			}
		}

		var fetchErr *transport.FetchError
		if !errors.As(err, &fetchErr) {
			// Not a classified transport failure (e.g. escalation with no
			// fallback configured). Terminal.
			return nil, tracker.Attempts() + 1, &model.Outcome{
				ContentAddress: target.ContentAddress,
				Kind:           model.OutcomeFailed,
				Reason:         failureReasonFromErr(err),
				Attempts:       tracker.Attempts() + 1,
			}
		}

		decision := o.policy.OnFailure(tracker, fetchErr)

		o.logger.Debug("attempt failed",
			"target", target.AddressHash(),
			"transport", kind.String(),
			"attempt", tracker.Attempts(),
			"failure", fetchErr.Kind.String(),
			"action", decision.Action.String(),
		)

		switch decision.Action {
		case retry.ActionAbandon:
			if fetchErr.Retryable() {
				o.sink.Report(anomaly.Observation{
					Kind:   anomaly.KindRetryStorm,
					Target: target.ContentAddress,
					Detail: fmt.Sprintf("abandoned after %d attempts, last failure %s", tracker.Attempts(), fetchErr.Kind),
				})
			}
			return nil, tracker.Attempts(), &model.Outcome{
				ContentAddress: target.ContentAddress,
				Kind:           model.OutcomeFailed,
				Reason:         failureReason(fetchErr),
				Attempts:       tracker.Attempts(),
			}

		case retry.ActionEscalate:
			o.sink.Report(anomaly.Observation{
				Kind:   anomaly.KindTransportEscalation,
				Target: target.ContentAddress,
				Detail: fmt.Sprintf("escalated after %d failures", tracker.Attempts()),
			})

		case retry.ActionRetry:
			if decision.RotateCircuit && o.rotator != nil && o.rotator.ShouldRotate(true) {
				_ = o.rotator.Rotate(ctx) //nolint:errcheck // rotation failure is never fatal, logged by the rotator
			}
		}

		select {
		case <-ctx.Done():
			return nil, tracker.Attempts(), o.cancelledOutcome(target, tracker.Attempts())
		case <-time.After(decision.Backoff):
		}
	}
}

// ingestDocument hands a fetched document to the ingestor and maps the
// result to a terminal outcome.
func (o *Orchestrator) ingestDocument(ctx context.Context, target model.Target, raw *model.RawDocument, attempts int) model.Outcome {
	doc := &model.Document{Target: target, Raw: raw}

	chunks, err := o.ingestor.Ingest(ctx, doc)
	switch {
	case errors.Is(err, ingest.ErrEmptyContent):
		return model.Outcome{
			ContentAddress: target.ContentAddress,
			Kind:           model.OutcomeFailed,
			Reason:         model.ReasonEmptyContent,
			Attempts:       attempts,
		}
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return *o.cancelledOutcome(target, attempts)
	case err != nil:
		return model.Outcome{
			ContentAddress: target.ContentAddress,
			Kind:           model.OutcomeFailed,
			Reason:         model.ReasonStorageFailed,
			Attempts:       attempts,
		}
	case chunks == 0:
		// Another worker claimed the address between the dedup check and
		// the store.
		return model.Outcome{
			ContentAddress: target.ContentAddress,
			Kind:           model.OutcomeSkippedAlreadyIngested,
			Attempts:       attempts,
		}
	}

	return model.Outcome{
		ContentAddress: target.ContentAddress,
		Kind:           model.OutcomeIngested,
		ChunkCount:     chunks,
		Attempts:       attempts,
	}
}

// cancelledOutcome builds the outcome for a target interrupted by run
// cancellation.
func (o *Orchestrator) cancelledOutcome(target model.Target, attempts int) *model.Outcome {
	return &model.Outcome{
		ContentAddress: target.ContentAddress,
		Kind:           model.OutcomeFailed,
		Reason:         model.ReasonRunCancelled,
		Attempts:       attempts,
	}
}

// failureReason renders a classified fetch failure as a stable summary
// reason string.
func failureReason(fetchErr *transport.FetchError) string {
	if fetchErr.Kind == transport.KindHTTPStatus {
		return fmt.Sprintf("http_%d", fetchErr.StatusCode)
	}
	return fetchErr.Kind.String()
}

// failureReasonFromErr renders an unclassified error as a reason string.
func failureReasonFromErr(err error) string {
	if errors.Is(err, transport.ErrFallbackUnavailable) {
		return "fallback_unavailable"
	}
	return "unknown"
}
