package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// These values are chosen based on typical Tor network characteristics;
// hidden services are slow and flaky, so timeouts are generous and retry
// budgets small.
const (
	// DefaultTorProxyAddress is the standard Tor SOCKS5 proxy address.
	// Port 9050 is the default for the Tor daemon's SOCKS port.
	// We use 127.0.0.1 instead of localhost to avoid DNS resolution overhead
	// and potential issues with IPv6 resolution on some systems.
	DefaultTorProxyAddress = "127.0.0.1:9050"

	// DefaultTorControlAddress is the standard Tor control port address.
	// The control port is used to request fresh circuits during rotation.
	DefaultTorControlAddress = "127.0.0.1:9051"

	// DefaultI2PProxyAddress is the standard I2P HTTP proxy address.
	// Used as the fallback transport when Tor fetches keep failing.
	DefaultI2PProxyAddress = "127.0.0.1:4444"

	// DefaultRequestTimeout is set to 60 seconds because hidden service
	// connections are inherently slower than clearnet connections due to
	// the multiple relay hops. A shorter timeout would misclassify slow
	// services as dead.
	DefaultRequestTimeout = 60 * time.Second

	// DefaultMaxConcurrentTargets bounds how many targets are fetched at
	// once. Higher values may overwhelm the local Tor daemon, and each
	// in-flight fetch holds a circuit.
	DefaultMaxConcurrentTargets = 8

	// DefaultMaxRetries is the number of retries per target after the
	// initial attempt. Transient hidden service failures usually clear
	// within a couple of retries; more attempts rarely change the outcome.
	DefaultMaxRetries = 3

	// DefaultBackoffFactor is the multiplier applied between retries.
	// The delay before attempt n is factor^(n-1) seconds.
	DefaultBackoffFactor = 1.5

	// DefaultEscalationRetryThreshold is the retry ordinal a failing
	// target must exceed before escalating to the fallback transport
	// (when enabled).
	DefaultEscalationRetryThreshold = 2

	// DefaultMaxRequestsPerCircuit is how many requests a circuit serves
	// before rotation. Reusing one circuit for too long makes request
	// patterns linkable.
	DefaultMaxRequestsPerCircuit = 10

	// DefaultMinCircuitLifespan is the minimum time between circuit
	// rotations. Tor rate limits NEWNYM; rotating faster burns the budget
	// without gaining anything.
	DefaultMinCircuitLifespan = 30 * time.Second

	// DefaultRotationProbability is the chance of rotating the circuit
	// before an eligible request even when no threshold was hit. Random
	// rotation breaks timing regularity.
	DefaultRotationProbability = 0.2

	// DefaultMinContentLength is the minimum body size in bytes for a
	// response to count as real content. Hidden services under load often
	// return empty 200s; those are retried, not ingested.
	DefaultMinContentLength = 50

	// DefaultMaxBodySize limits the maximum response body size to read.
	// 5MB is sufficient for most HTML pages while preventing memory
	// exhaustion from unexpectedly large responses.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultChunkSize is the target chunk length in characters used when
	// splitting extracted text for ingestion.
	DefaultChunkSize = 1000

	// DefaultChunkOverlap is how many characters adjacent chunks share.
	// Overlap keeps sentences that straddle a boundary retrievable from
	// either chunk.
	DefaultChunkOverlap = 200

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap. 3 minutes is typically sufficient for most
	// network conditions, but may need to be increased for slow connections.
	DefaultTorStartupTimeout = 3 * time.Minute

	// AppName is the application name used for XDG directory paths.
	AppName = "onionharvest"
)

// Config holds all configuration options for the harvester.
// This struct is designed to be populated from CLI flags and the optional
// config file, and passed through the application via dependency injection
// rather than global state.
//
// Design decision: We use a single flat struct instead of nested structs
// (e.g., TransportConfig, RetryConfig) for simplicity. The number of options
// is manageable, and nesting would add complexity without significant benefit.
type Config struct {
	// TorProxyAddress is the address of the Tor SOCKS5 proxy in "host:port"
	// format. All primary transport traffic goes through this proxy.
	TorProxyAddress string

	// TorControlAddress is the address of the Tor control port, used to
	// signal circuit rotation. Empty disables control-port rotation.
	TorControlAddress string

	// TorControlPassword is the control port password when Tor is
	// configured with HashedControlPassword. Empty means cookie or null
	// authentication.
	TorControlPassword string

	// I2PProxyAddress is the address of the I2P HTTP proxy used by the
	// fallback transport.
	I2PProxyAddress string

	// FallbackEnabled controls whether persistently failing targets
	// escalate to the I2P fallback transport.
	FallbackEnabled bool

	// RequestTimeout is the timeout for each fetch attempt.
	// This applies to individual requests, not the overall run duration.
	RequestTimeout time.Duration

	// MaxConcurrentTargets is the number of targets fetched concurrently.
	MaxConcurrentTargets int

	// MaxRetries is the number of retries a target gets after its
	// initial attempt before it is abandoned.
	MaxRetries int

	// BackoffFactor is the multiplier for the delay between retries.
	BackoffFactor float64

	// EscalationRetryThreshold is the retry ordinal a target must exceed
	// before switching to the fallback transport (when FallbackEnabled).
	EscalationRetryThreshold int

	// MaxRequestsPerCircuit is how many requests one circuit serves before
	// rotation.
	MaxRequestsPerCircuit int

	// MinCircuitLifespan is the minimum time between circuit rotations.
	MinCircuitLifespan time.Duration

	// RotationProbability is the chance in [0,1] of rotating the circuit
	// before an eligible request even when no threshold was hit.
	RotationProbability float64

	// MinContentLength is the minimum body size in bytes for a response to
	// count as real content rather than an empty placeholder.
	MinContentLength int

	// MaxBodySize is the maximum response body size in bytes to read.
	// Responses larger than this are truncated.
	MaxBodySize int64

	// ChunkSize is the target chunk length in characters for ingestion.
	ChunkSize int

	// ChunkOverlap is how many characters adjacent chunks share.
	// Must be smaller than ChunkSize.
	ChunkOverlap int

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .onionharvest in the current
	// directory and then in the user's home directory.
	ConfigFilePath string

	// Targets is the list of target URLs to fetch and ingest.
	Targets []string

	// UseExternalTor disables the embedded Tor daemon and uses an external
	// proxy. When false (default), an embedded Tor daemon is started
	// automatically.
	//
	// Note: The embedded Tor daemon takes 1-3 minutes to bootstrap and
	// connect to the Tor network on first start.
	UseExternalTor bool

	// TorStartupTimeout is the maximum time to wait for the embedded Tor
	// daemon to start and bootstrap. Only used when UseExternalTor is false.
	TorStartupTimeout time.Duration

	// DBDir is the directory path for storing the SQLite ingestion
	// database. Defaults to the XDG data directory.
	DBDir string

	// JSONReport enables JSON summary output instead of human-readable
	// format. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport enables Markdown summary output instead of
	// human-readable format. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the run summary.
	// When set, the summary is written to this file instead of stdout.
	ReportFile string
}

// NewConfig creates a new Config with default values.
// All fields are set to safe, sensible defaults that work for most use cases.
// Users can override specific values after creation.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero (e.g., timeout, port numbers).
// This also serves as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		TorProxyAddress:          DefaultTorProxyAddress,
		TorControlAddress:        DefaultTorControlAddress,
		I2PProxyAddress:          DefaultI2PProxyAddress,
		FallbackEnabled:          true,
		RequestTimeout:           DefaultRequestTimeout,
		MaxConcurrentTargets:     DefaultMaxConcurrentTargets,
		MaxRetries:               DefaultMaxRetries,
		BackoffFactor:            DefaultBackoffFactor,
		EscalationRetryThreshold: DefaultEscalationRetryThreshold,
		MaxRequestsPerCircuit:    DefaultMaxRequestsPerCircuit,
		MinCircuitLifespan:       DefaultMinCircuitLifespan,
		RotationProbability:      DefaultRotationProbability,
		MinContentLength:         DefaultMinContentLength,
		MaxBodySize:              DefaultMaxBodySize,
		ChunkSize:                DefaultChunkSize,
		ChunkOverlap:             DefaultChunkOverlap,
		TorStartupTimeout:        DefaultTorStartupTimeout,
	}
}

// XDGDataDir returns the XDG data directory for the harvester.
// This follows the XDG Base Directory Specification.
// On Linux: ~/.local/share/onionharvest
// On macOS: ~/Library/Application Support/onionharvest
// On Windows: %LOCALAPPDATA%\onionharvest
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for the harvester.
// This follows the XDG Base Directory Specification.
// On Linux: ~/.config/onionharvest
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for the harvester.
// This follows the XDG Base Directory Specification.
// On Linux: ~/.cache/onionharvest
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns a specific error describing what is invalid.
//
// Design decision: We validate at the config level rather than at each
// point of use to fail fast and provide clear error messages upfront.
// This is called once after CLI parsing, before any fetching begins.
//
// We chose to return the first error found rather than collecting all errors
// because fixing one error often makes others irrelevant.
func (c *Config) Validate() error {
	// We must have at least one target to fetch
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}

	// Timeout must be positive; zero timeout would cause immediate failures
	if c.RequestTimeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.MaxConcurrentTargets <= 0 {
		return ErrInvalidConcurrency
	}

	if c.MaxRetries <= 0 {
		return ErrInvalidMaxRetries
	}

	// A factor below 1 would make retries come faster and faster
	if c.BackoffFactor < 1 {
		return ErrInvalidBackoffFactor
	}

	if c.EscalationRetryThreshold < 1 || c.EscalationRetryThreshold > c.MaxRetries {
		return ErrInvalidEscalationThreshold
	}

	if c.MaxRequestsPerCircuit <= 0 {
		return ErrInvalidCircuitBudget
	}

	if c.MinCircuitLifespan < 0 {
		return ErrInvalidCircuitLifespan
	}

	if c.RotationProbability < 0 || c.RotationProbability > 1 {
		return ErrInvalidRotationProbability
	}

	if c.MinContentLength < 0 {
		return ErrInvalidMinContentLength
	}

	// MaxBodySize must be non-negative; 0 means use the default
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	if c.ChunkSize <= 0 || c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return ErrInvalidChunking
	}

	// JSONReport and MarkdownReport are mutually exclusive
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	return nil
}
