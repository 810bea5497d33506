package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".onionharvest"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// Duration wraps time.Duration so YAML values like "90s" or "2m" decode
// with time.ParseDuration semantics. Bare integers are rejected; a unit
// is always required to avoid second/nanosecond ambiguity.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return err
	}

	*d = Duration(parsed)
	return nil
}

// File represents the structure of the .onionharvest configuration file.
// Every field is optional; unset fields leave the corresponding Config
// value untouched. Durations use Go syntax (e.g. "90s", "2m").
type File struct {
	// Transport settings.
	TorProxyAddress    string `yaml:"torProxyAddress,omitempty"`
	TorControlAddress  string `yaml:"torControlAddress,omitempty"`
	TorControlPassword string `yaml:"torControlPassword,omitempty"`
	I2PProxyAddress    string `yaml:"i2pProxyAddress,omitempty"`
	FallbackEnabled    *bool  `yaml:"fallbackEnabled,omitempty"`

	// Fetch and retry settings.
	RequestTimeout           Duration `yaml:"requestTimeout,omitempty"`
	MaxConcurrentTargets     int      `yaml:"maxConcurrentTargets,omitempty"`
	MaxRetries               int      `yaml:"maxRetries,omitempty"`
	BackoffFactor            float64  `yaml:"backoffFactor,omitempty"`
	EscalationRetryThreshold int      `yaml:"escalationRetryThreshold,omitempty"`

	// Circuit rotation settings.
	MaxRequestsPerCircuit int      `yaml:"maxRequestsPerCircuit,omitempty"`
	MinCircuitLifespan    Duration `yaml:"minCircuitLifespan,omitempty"`
	RotationProbability   float64  `yaml:"rotationProbability,omitempty"`

	// Content settings.
	MinContentLength int   `yaml:"minContentLength,omitempty"`
	MaxBodySize      int64 `yaml:"maxBodySize,omitempty"`
	ChunkSize        int   `yaml:"chunkSize,omitempty"`
	ChunkOverlap     int   `yaml:"chunkOverlap,omitempty"`
}

// Apply overlays the file's set fields onto cfg.
// FallbackEnabled uses a pointer so "explicitly false" is distinguishable
// from "not set"; numeric fields treat zero as unset, which is safe here
// because zero is invalid for all of them.
func (f *File) Apply(cfg *Config) {
	if f.TorProxyAddress != "" {
		cfg.TorProxyAddress = f.TorProxyAddress
	}
	if f.TorControlAddress != "" {
		cfg.TorControlAddress = f.TorControlAddress
	}
	if f.TorControlPassword != "" {
		cfg.TorControlPassword = f.TorControlPassword
	}
	if f.I2PProxyAddress != "" {
		cfg.I2PProxyAddress = f.I2PProxyAddress
	}
	if f.FallbackEnabled != nil {
		cfg.FallbackEnabled = *f.FallbackEnabled
	}
	if f.RequestTimeout != 0 {
		cfg.RequestTimeout = time.Duration(f.RequestTimeout)
	}
	if f.MaxConcurrentTargets != 0 {
		cfg.MaxConcurrentTargets = f.MaxConcurrentTargets
	}
	if f.MaxRetries != 0 {
		cfg.MaxRetries = f.MaxRetries
	}
	if f.BackoffFactor != 0 {
		cfg.BackoffFactor = f.BackoffFactor
	}
	if f.EscalationRetryThreshold != 0 {
		cfg.EscalationRetryThreshold = f.EscalationRetryThreshold
	}
	if f.MaxRequestsPerCircuit != 0 {
		cfg.MaxRequestsPerCircuit = f.MaxRequestsPerCircuit
	}
	if f.MinCircuitLifespan != 0 {
		cfg.MinCircuitLifespan = time.Duration(f.MinCircuitLifespan)
	}
	if f.RotationProbability != 0 {
		cfg.RotationProbability = f.RotationProbability
	}
	if f.MinContentLength != 0 {
		cfg.MinContentLength = f.MinContentLength
	}
	if f.MaxBodySize != 0 {
		cfg.MaxBodySize = f.MaxBodySize
	}
	if f.ChunkSize != 0 {
		cfg.ChunkSize = f.ChunkSize
	}
	if f.ChunkOverlap != 0 {
		cfg.ChunkOverlap = f.ChunkOverlap
	}
}

// LoadConfigFile loads settings from a YAML file.
// If the file does not exist, it returns ErrConfigNotFound.
// Callers should handle this error appropriately based on whether
// the config file path was explicitly specified by the user.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}

	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .onionharvest in the current directory
// 3. Look for .onionharvest in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	// If explicit path is provided, use it
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	// Check current directory
	cwd, err := os.Getwd()
	if err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	// Check home directory
	home, err := os.UserHomeDir()
	if err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	return ""
}
