package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/onionharvest/internal/config"
	"github.com/nao1215/onionharvest/internal/model"
)

// TestNewIngestCmd tests the ingest command creation.
func TestNewIngestCmd(t *testing.T) {
	t.Parallel()

	cmd := NewIngestCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "ingest [target-url...]" {
			t.Errorf("expected use 'ingest [target-url...]', got %q", cmd.Use)
		}
	})

	t.Run("has short description", func(t *testing.T) {
		t.Parallel()
		if cmd.Short == "" {
			t.Error("expected non-empty short description")
		}
	})

	t.Run("has long description", func(t *testing.T) {
		t.Parallel()
		if cmd.Long == "" {
			t.Error("expected non-empty long description")
		}
	})

	t.Run("has external-tor flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("external-tor")
		if flag == nil {
			t.Fatal("expected external-tor flag")
		}
		if flag.Shorthand != "e" {
			t.Errorf("expected shorthand 'e', got %q", flag.Shorthand)
		}
	})

	t.Run("has tor-control flag", func(t *testing.T) {
		t.Parallel()
		if cmd.Flags().Lookup("tor-control") == nil {
			t.Fatal("expected tor-control flag")
		}
	})

	t.Run("has tor-timeout flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("tor-timeout")
		if flag == nil {
			t.Fatal("expected tor-timeout flag")
		}
		if flag.Shorthand != "T" {
			t.Errorf("expected shorthand 'T', got %q", flag.Shorthand)
		}
	})

	t.Run("has timeout flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("timeout")
		if flag == nil {
			t.Fatal("expected timeout flag")
		}
		if flag.Shorthand != "t" {
			t.Errorf("expected shorthand 't', got %q", flag.Shorthand)
		}
	})

	t.Run("has retries flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("retries")
		if flag == nil {
			t.Fatal("expected retries flag")
		}
		if flag.Shorthand != "r" {
			t.Errorf("expected shorthand 'r', got %q", flag.Shorthand)
		}
	})

	t.Run("has concurrency flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("concurrency")
		if flag == nil {
			t.Fatal("expected concurrency flag")
		}
		if flag.Shorthand != "b" {
			t.Errorf("expected shorthand 'b', got %q", flag.Shorthand)
		}
	})

	t.Run("has no-fallback flag", func(t *testing.T) {
		t.Parallel()
		if cmd.Flags().Lookup("no-fallback") == nil {
			t.Fatal("expected no-fallback flag")
		}
	})

	t.Run("has i2p-proxy flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("i2p-proxy")
		if flag == nil {
			t.Fatal("expected i2p-proxy flag")
		}
		if flag.DefValue != config.DefaultI2PProxyAddress {
			t.Errorf("expected default %q, got %q", config.DefaultI2PProxyAddress, flag.DefValue)
		}
	})

	t.Run("has targets flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("targets")
		if flag == nil {
			t.Fatal("expected targets flag")
		}
		if flag.Shorthand != "f" {
			t.Errorf("expected shorthand 'f', got %q", flag.Shorthand)
		}
	})

	t.Run("has config flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("config")
		if flag == nil {
			t.Fatal("expected config flag")
		}
		if flag.Shorthand != "c" {
			t.Errorf("expected shorthand 'c', got %q", flag.Shorthand)
		}
	})

	t.Run("has report flags", func(t *testing.T) {
		t.Parallel()
		for _, name := range []string{"json", "markdown", "output"} {
			if cmd.Flags().Lookup(name) == nil {
				t.Errorf("expected %s flag", name)
			}
		}
	})

	t.Run("does not have db-dir flag (uses XDG)", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("db-dir")
		if flag != nil {
			t.Error("db-dir flag should not exist (always uses XDG data directory)")
		}
	})
}

// TestGetVerboseFlag tests the verbose flag retrieval.
func TestGetVerboseFlag(t *testing.T) {
	t.Run("returns false when flag not set", func(t *testing.T) {
		cmd := NewIngestCmd()
		result := getVerboseFlag(cmd)
		if result {
			t.Error("expected false when flag not set")
		}
	})

	t.Run("returns value from parent verbose flag", func(t *testing.T) {
		root := NewRootCmd()
		// Set verbose flag to true
		_ = root.PersistentFlags().Set("verbose", "true")

		// Get ingest subcommand
		ingestCmd, _, err := root.Find([]string{"ingest"})
		if err != nil {
			t.Fatalf("failed to find ingest command: %v", err)
		}

		result := getVerboseFlag(ingestCmd)
		if !result {
			t.Error("expected true from parent verbose flag")
		}
	})
}

// TestBuildConfig tests configuration building from flags.
// These tests isolate HOME and the working directory so a developer's own
// .onionharvest file cannot leak into the assertions.
func TestBuildConfig(t *testing.T) {
	isolateConfigLookup(t)

	t.Run("builds config with default values", func(t *testing.T) {
		cmd := NewIngestCmd()
		cfg, err := buildConfig(cmd, []string{"http://example.onion/"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg == nil {
			t.Fatal("expected non-nil config")
		}
		if len(cfg.Targets) != 1 || cfg.Targets[0] != "http://example.onion/" {
			t.Errorf("expected targets [http://example.onion/], got %v", cfg.Targets)
		}
		if cfg.UseExternalTor {
			t.Error("expected UseExternalTor to be false")
		}
		if !cfg.FallbackEnabled {
			t.Error("expected FallbackEnabled to be true by default")
		}
		if cfg.MaxRetries != config.DefaultMaxRetries {
			t.Errorf("expected MaxRetries %d, got %d", config.DefaultMaxRetries, cfg.MaxRetries)
		}
		if cfg.DBDir == "" {
			t.Error("expected DBDir to be set")
		}
	})

	t.Run("builds config with external tor", func(t *testing.T) {
		cmd := NewIngestCmd()
		_ = cmd.Flags().Set("external-tor", "127.0.0.1:9150")
		cfg, err := buildConfig(cmd, []string{"http://example.onion/"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !cfg.UseExternalTor {
			t.Error("expected UseExternalTor to be true")
		}
		if cfg.TorProxyAddress != "127.0.0.1:9150" {
			t.Errorf("expected proxy address 127.0.0.1:9150, got %q", cfg.TorProxyAddress)
		}
	})

	t.Run("disables fallback with no-fallback flag", func(t *testing.T) {
		cmd := NewIngestCmd()
		_ = cmd.Flags().Set("no-fallback", "true")
		cfg, err := buildConfig(cmd, []string{"http://example.onion/"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.FallbackEnabled {
			t.Error("expected FallbackEnabled to be false")
		}
	})

	t.Run("loads settings from config file", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), ".onionharvest")
		content := "maxRetries: 5\nrequestTimeout: 90s\nfallbackEnabled: false\n"
		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write config file: %v", err)
		}

		cmd := NewIngestCmd()
		_ = cmd.Flags().Set("config", configPath)
		cfg, err := buildConfig(cmd, []string{"http://example.onion/"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.MaxRetries != 5 {
			t.Errorf("expected MaxRetries 5, got %d", cfg.MaxRetries)
		}
		if cfg.RequestTimeout != 90*time.Second {
			t.Errorf("expected RequestTimeout 90s, got %s", cfg.RequestTimeout)
		}
		if cfg.FallbackEnabled {
			t.Error("expected FallbackEnabled to be false from config file")
		}
	})

	t.Run("flags override config file", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), ".onionharvest")
		if err := os.WriteFile(configPath, []byte("maxRetries: 5\n"), 0600); err != nil {
			t.Fatalf("failed to write config file: %v", err)
		}

		cmd := NewIngestCmd()
		_ = cmd.Flags().Set("config", configPath)
		_ = cmd.Flags().Set("retries", "7")
		cfg, err := buildConfig(cmd, []string{"http://example.onion/"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.MaxRetries != 7 {
			t.Errorf("expected flag to override config file, got MaxRetries %d", cfg.MaxRetries)
		}
	})

	t.Run("errors on missing explicit config file", func(t *testing.T) {
		cmd := NewIngestCmd()
		_ = cmd.Flags().Set("config", filepath.Join(t.TempDir(), "does-not-exist.yaml"))
		_, err := buildConfig(cmd, []string{"http://example.onion/"})
		if err == nil {
			t.Error("expected error for missing explicit config file")
		}
	})
}

// isolateConfigLookup points HOME and the working directory at empty
// temporary directories so FindConfigFile cannot pick up a real file.
func isolateConfigLookup(t *testing.T) {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	if runtime.GOOS == "windows" {
		t.Setenv("USERPROFILE", home)
	}
	t.Chdir(t.TempDir())
}

// TestLoadTargets tests target list loading.
func TestLoadTargets(t *testing.T) {
	t.Parallel()

	t.Run("returns args when no file given", func(t *testing.T) {
		t.Parallel()
		targets, err := loadTargets([]string{"http://a.onion/", "http://b.onion/"}, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(targets) != 2 {
			t.Errorf("expected 2 targets, got %d", len(targets))
		}
	})

	t.Run("loads newline-delimited file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "targets.txt")
		content := "http://a.onion/\n\n# a comment\nhttp://b.onion/\n  http://c.onion/  \n"
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write targets file: %v", err)
		}

		targets, err := loadTargets(nil, path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []string{"http://a.onion/", "http://b.onion/", "http://c.onion/"}
		if len(targets) != len(want) {
			t.Fatalf("expected %d targets, got %d: %v", len(want), len(targets), targets)
		}
		for i, w := range want {
			if targets[i] != w {
				t.Errorf("target %d: expected %q, got %q", i, w, targets[i])
			}
		}
	})

	t.Run("loads JSON array file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "targets.json")
		content := `["http://a.onion/", "http://b.onion/"]`
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write targets file: %v", err)
		}

		targets, err := loadTargets(nil, path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(targets) != 2 || targets[0] != "http://a.onion/" || targets[1] != "http://b.onion/" {
			t.Errorf("unexpected targets: %v", targets)
		}
	})

	t.Run("combines args and file targets", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "targets.txt")
		if err := os.WriteFile(path, []byte("http://b.onion/\n"), 0600); err != nil {
			t.Fatalf("failed to write targets file: %v", err)
		}

		targets, err := loadTargets([]string{"http://a.onion/"}, path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(targets) != 2 || targets[0] != "http://a.onion/" || targets[1] != "http://b.onion/" {
			t.Errorf("unexpected targets: %v", targets)
		}
	})

	t.Run("errors on missing file", func(t *testing.T) {
		t.Parallel()
		_, err := loadTargets(nil, filepath.Join(t.TempDir(), "missing.txt"))
		if err == nil {
			t.Error("expected error for missing targets file")
		}
	})

	t.Run("errors on malformed JSON array", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "targets.json")
		if err := os.WriteFile(path, []byte(`["http://a.onion/"`), 0600); err != nil {
			t.Fatalf("failed to write targets file: %v", err)
		}

		_, err := loadTargets(nil, path)
		if err == nil {
			t.Error("expected error for malformed JSON")
		}
	})
}

// TestNewCircuitManager tests rotation wiring.
func TestNewCircuitManager(t *testing.T) {
	t.Parallel()

	t.Run("missing control client degrades to no rotation", func(t *testing.T) {
		t.Parallel()
		cfg := config.NewConfig()
		// Zero lifespan so Rotate reaches the signaling path directly
		cfg.MinCircuitLifespan = 0

		m := newCircuitManager(nil, cfg, testLogger())
		if err := m.Rotate(context.Background()); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if m.Rotations() != 0 {
			t.Errorf("Rotations() = %d, expected 0", m.Rotations())
		}
	})

	t.Run("builds manager with control client", func(t *testing.T) {
		t.Parallel()
		cfg := config.NewConfig()
		cfg.TorControlAddress = "127.0.0.1:9051"

		controlClient := newExternalControlClient(cfg, testLogger())
		if controlClient == nil {
			t.Fatal("expected non-nil control client")
		}
		if m := newCircuitManager(controlClient, cfg, testLogger()); m == nil {
			t.Error("expected non-nil manager")
		}
	})
}

// TestNewExternalControlClient tests control client construction for
// external Tor daemons.
func TestNewExternalControlClient(t *testing.T) {
	t.Parallel()

	logger := testLogger()

	t.Run("returns nil when no control address configured", func(t *testing.T) {
		t.Parallel()
		cfg := config.NewConfig()
		cfg.TorControlAddress = ""
		if got := newExternalControlClient(cfg, logger); got != nil {
			t.Error("expected nil control client")
		}
	})

	t.Run("returns nil for invalid control address", func(t *testing.T) {
		t.Parallel()
		cfg := config.NewConfig()
		cfg.TorControlAddress = "not-an-address"
		if got := newExternalControlClient(cfg, logger); got != nil {
			t.Error("expected nil control client for invalid address")
		}
	})

	t.Run("returns client for valid control address", func(t *testing.T) {
		t.Parallel()
		cfg := config.NewConfig()
		cfg.TorControlAddress = "127.0.0.1:9051"
		cfg.TorControlPassword = "secret"
		got := newExternalControlClient(cfg, logger)
		if got == nil {
			t.Fatal("expected non-nil control client")
		}
		if got.Address() != "127.0.0.1:9051" {
			t.Errorf("expected address 127.0.0.1:9051, got %q", got.Address())
		}
	})
}

// TestOutputSummary tests run summary output.
func TestOutputSummary(t *testing.T) {
	t.Parallel()

	newSummary := func() *model.RunSummary {
		return &model.RunSummary{
			StartedAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			Elapsed:      3 * time.Second,
			TargetsTotal: 2,
			Ingested:     1,
			Failed:       1,
			ChunksStored: 4,
			Failures: []model.FailureRecord{
				{ContentAddress: strings.Repeat("ab", 32), Reason: "http_503"},
			},
		}
	}

	t.Run("writes simple summary to file", func(t *testing.T) {
		t.Parallel()
		cfg := config.NewConfig()
		cfg.ReportFile = filepath.Join(t.TempDir(), "summary.txt")

		if err := outputSummary(cfg, newSummary()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		data, err := os.ReadFile(cfg.ReportFile)
		if err != nil {
			t.Fatalf("failed to read summary file: %v", err)
		}
		if !strings.Contains(string(data), "ONIONHARVEST RUN SUMMARY") {
			t.Error("expected simple summary header in output")
		}

		info, err := os.Stat(cfg.ReportFile)
		if err != nil {
			t.Fatalf("failed to stat summary file: %v", err)
		}
		if runtime.GOOS != "windows" && info.Mode().Perm() != 0600 {
			t.Errorf("expected file permissions 0600, got %o", info.Mode().Perm())
		}
	})

	t.Run("writes valid JSON summary", func(t *testing.T) {
		t.Parallel()
		cfg := config.NewConfig()
		cfg.JSONReport = true
		cfg.ReportFile = filepath.Join(t.TempDir(), "summary.json")

		if err := outputSummary(cfg, newSummary()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		data, err := os.ReadFile(cfg.ReportFile)
		if err != nil {
			t.Fatalf("failed to read summary file: %v", err)
		}
		var decoded map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("expected valid JSON output: %v", err)
		}
	})

	t.Run("writes markdown summary", func(t *testing.T) {
		t.Parallel()
		cfg := config.NewConfig()
		cfg.MarkdownReport = true
		cfg.ReportFile = filepath.Join(t.TempDir(), "summary.md")

		if err := outputSummary(cfg, newSummary()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		data, err := os.ReadFile(cfg.ReportFile)
		if err != nil {
			t.Fatalf("failed to read summary file: %v", err)
		}
		if !strings.Contains(string(data), "# Onionharvest Run Summary") {
			t.Error("expected markdown heading in output")
		}
	})

	t.Run("creates output directories", func(t *testing.T) {
		t.Parallel()
		cfg := config.NewConfig()
		cfg.ReportFile = filepath.Join(t.TempDir(), "nested", "dir", "summary.txt")

		if err := outputSummary(cfg, newSummary()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := os.Stat(cfg.ReportFile); err != nil {
			t.Errorf("expected summary file to exist: %v", err)
		}
	})
}

// TestSetupTorExternal tests the external Tor path without a daemon.
func TestSetupTorExternal(t *testing.T) {
	t.Parallel()

	t.Run("fails fast on invalid proxy address", func(t *testing.T) {
		t.Parallel()
		cfg := config.NewConfig()
		cfg.UseExternalTor = true
		cfg.TorProxyAddress = "not-an-address"

		_, _, _, err := setupTor(t.Context(), cfg, testLogger())
		if err == nil {
			t.Error("expected error for invalid proxy address")
		}
	})

	t.Run("fails when proxy is unreachable", func(t *testing.T) {
		t.Parallel()
		cfg := config.NewConfig()
		cfg.UseExternalTor = true
		// Reserved TEST-NET-1 address; nothing listens there
		cfg.TorProxyAddress = "192.0.2.1:9050"
		cfg.RequestTimeout = 500 * time.Millisecond

		_, _, _, err := setupTor(t.Context(), cfg, testLogger())
		if err == nil {
			t.Error("expected error for unreachable proxy")
		}
		if err != nil && !strings.Contains(err.Error(), "tor proxy check failed") {
			t.Errorf("expected proxy check failure, got %v", err)
		}
	})
}

// testLogger returns a logger that discards all output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
