package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/onionharvest/internal/model"
)

// Step defines the interface that all processing steps must implement.
// Steps are executed in sequence, each receiving the document as left by
// the previous step.
//
// Design decision: We use an interface rather than function types because:
// 1. It allows steps to carry configuration state
// 2. It provides a Name() method for logging and debugging
// 3. It's more extensible for future features (e.g., language detection)
type Step interface {
	// Do executes the processing step, modifying the document in place.
	// Returns an error if the step fails; processing stops at the first
	// failing step because later steps depend on earlier output.
	Do(ctx context.Context, doc *model.Document) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of processing steps over one
// document at a time. Concurrency across documents belongs to the caller.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger
}

// Option is a function that configures a Pipeline.
// This follows the functional options pattern for clean API design.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
// If not set, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddSteps after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// NewDefault creates a pipeline with the standard step sequence:
// sanitize, extract, chunk.
func NewDefault(chunkSize, chunkOverlap int, opts ...Option) *Pipeline {
	p := New(opts...)
	p.AddSteps(
		NewSanitizeStep(),
		NewExtractStep(),
		NewChunkStep(chunkSize, chunkOverlap),
	)
	return p
}

// AddSteps appends steps to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all steps in sequence over the document.
//
// Design decision: We check context.Done() before each step rather than
// during, because steps are CPU-bound and short. This allows graceful
// cancellation between steps without instrumenting every step's inner
// loops.
func (p *Pipeline) Execute(ctx context.Context, doc *model.Document) error {
	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"target", doc.Target.AddressHash(),
			)
			return ctx.Err()
		default:
		}

		if err := step.Do(ctx, doc); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"target", doc.Target.AddressHash(),
				"error", err,
			)
			return err
		}

		p.logger.Debug("step completed",
			"step", step.Name(),
			"target", doc.Target.AddressHash(),
		)
	}

	return nil
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
