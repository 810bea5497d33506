package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages. Using errors.New() here rather than fmt.Errorf()
// because we don't need to include dynamic values in these messages.
var (
	// ErrNoTarget is returned when no target URL or list file is specified.
	// This error occurs when neither --list nor a positional argument provides a target.
	ErrNoTarget = errors.New("no target specified: provide a target URL or use --list")

	// ErrInvalidTimeout is returned when the request timeout is not positive.
	// A timeout of zero or negative would cause immediate connection failures.
	ErrInvalidTimeout = errors.New("invalid request timeout: must be positive")

	// ErrInvalidConcurrency is returned when the concurrent target limit is
	// not positive. A limit of zero would mean no fetching at all.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidMaxRetries is returned when the retry budget is not positive.
	// Every target needs at least one attempt.
	ErrInvalidMaxRetries = errors.New("invalid max retries: must be positive")

	// ErrInvalidBackoffFactor is returned when the backoff factor is below 1.
	// A factor below 1 would shrink delays between attempts.
	ErrInvalidBackoffFactor = errors.New("invalid backoff factor: must be at least 1")

	// ErrInvalidEscalationThreshold is returned when the escalation
	// threshold is outside [1, MaxRetries]. A threshold beyond the retry
	// budget would never trigger.
	ErrInvalidEscalationThreshold = errors.New("invalid escalation threshold: must be between 1 and max retries")

	// ErrInvalidCircuitBudget is returned when the per-circuit request
	// budget is not positive.
	ErrInvalidCircuitBudget = errors.New("invalid circuit request budget: must be positive")

	// ErrInvalidCircuitLifespan is returned when the minimum circuit
	// lifespan is negative.
	ErrInvalidCircuitLifespan = errors.New("invalid circuit lifespan: must be non-negative")

	// ErrInvalidRotationProbability is returned when the random rotation
	// probability is outside [0, 1].
	ErrInvalidRotationProbability = errors.New("invalid rotation probability: must be between 0 and 1")

	// ErrInvalidMinContentLength is returned when the minimum content
	// length is negative.
	ErrInvalidMinContentLength = errors.New("invalid min content length: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// A negative body size is invalid; use 0 to use the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidChunking is returned when the chunk size is not positive or
	// the overlap is negative or at least as large as the chunk size.
	// An overlap >= size would make chunking never advance.
	ErrInvalidChunking = errors.New("invalid chunking: size must be positive and overlap smaller than size")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")
)
