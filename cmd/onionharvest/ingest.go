package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/nao1215/onionharvest/internal/anomaly"
	"github.com/nao1215/onionharvest/internal/circuit"
	"github.com/nao1215/onionharvest/internal/config"
	"github.com/nao1215/onionharvest/internal/database"
	"github.com/nao1215/onionharvest/internal/fetch"
	"github.com/nao1215/onionharvest/internal/i2p"
	"github.com/nao1215/onionharvest/internal/ingest"
	"github.com/nao1215/onionharvest/internal/log"
	"github.com/nao1215/onionharvest/internal/model"
	"github.com/nao1215/onionharvest/internal/pipeline"
	"github.com/nao1215/onionharvest/internal/report"
	"github.com/nao1215/onionharvest/internal/retry"
	"github.com/nao1215/onionharvest/internal/tor"
	"github.com/nao1215/onionharvest/internal/transport"
	"github.com/spf13/cobra"
)

// NewIngestCmd creates the ingest command.
func NewIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [target-url...]",
		Short: "Fetch hidden service pages and ingest their content",
		Long: `Ingest fetches the given .onion URLs through Tor and stores their
sanitized text content as overlapping chunks in a local SQLite database.

Each target is fetched with its own randomized client fingerprint. Transient
failures (timeouts, refused connections, 5xx responses) are retried with
exponential backoff, rotating the Tor circuit between attempts. When the
fallback transport is enabled, targets that keep failing over Tor escalate
to the I2P HTTP proxy for their remaining attempts. Pages already ingested
in a previous run are skipped.

Examples:
  # Ingest a single hidden service page
  onionharvest ingest http://exampleonionaddress.onion/

  # Ingest a list of targets from a file (one URL per line, or a JSON array)
  onionharvest ingest --targets targets.txt

  # Use an external Tor proxy instead of the embedded daemon
  onionharvest ingest --external-tor 127.0.0.1:9150 http://exampleonionaddress.onion/

  # Write a JSON run summary to a file
  onionharvest ingest --json --output summary.json http://exampleonionaddress.onion/

Configuration file (.onionharvest) example:
  requestTimeout: 90s
  maxRetries: 4
  fallbackEnabled: false
  maxRequestsPerCircuit: 5`,
		Args: cobra.ArbitraryArgs,
		RunE: runIngestCmd,
	}

	// Tor connection flags
	cmd.Flags().StringP("external-tor", "e", "",
		"Use external Tor SOCKS proxy at specified address (e.g., 127.0.0.1:9150)")
	cmd.Flags().String("tor-control", "",
		"Tor control port address for circuit rotation (external Tor only)")
	cmd.Flags().String("tor-control-password", "",
		"Tor control port password (external Tor only)")
	cmd.Flags().DurationP("tor-timeout", "T", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	// Fetch behavior flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultRequestTimeout,
		"Timeout for each fetch attempt")
	cmd.Flags().IntP("retries", "r", config.DefaultMaxRetries,
		"Number of retries per target after the initial attempt")
	cmd.Flags().IntP("concurrency", "b", config.DefaultMaxConcurrentTargets,
		"Number of targets fetched concurrently")

	// Fallback transport flags
	cmd.Flags().Bool("no-fallback", false,
		"Disable escalation to the I2P fallback transport")
	cmd.Flags().String("i2p-proxy", config.DefaultI2PProxyAddress,
		"I2P HTTP proxy address for the fallback transport")

	// Target list file
	cmd.Flags().StringP("targets", "f", "",
		"File containing target URLs (one per line, or a JSON array)")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .onionharvest in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON run summary (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown run summary (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write run summary to specified file path (creates directories if needed)")

	return cmd
}

// runIngestCmd executes the ingest command.
func runIngestCmd(cmd *cobra.Command, args []string) error {
	// Build config from the config file and flags
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// Set up structured logging with address redaction
	logger := log.NewSecureLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return runHarvest(ctx, cfg, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from the optional config file and cobra
// command flags. File values override defaults; flags override the file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// Load settings from the config file.
	// If the user explicitly specified a config file path, error if not
	// found. If no path was specified, silently run on defaults.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		file.Apply(cfg)
	} else if explicitConfigPath {
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	}

	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}

	// Always save to the database in the XDG data directory
	cfg.DBDir = config.XDGDataDir()

	// Positional arguments plus the optional targets file
	targetsFile, err := cmd.Flags().GetString("targets")
	if err != nil {
		return nil, err
	}
	cfg.Targets, err = loadTargets(args, targetsFile)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyFlags overlays explicitly set command line flags onto cfg.
// Flags left at their default do not override config file values.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	var err error

	externalTor, err := cmd.Flags().GetString("external-tor")
	if err != nil {
		return err
	}
	if externalTor != "" {
		cfg.UseExternalTor = true
		cfg.TorProxyAddress = externalTor
	}

	if cmd.Flags().Changed("tor-control") {
		cfg.TorControlAddress, err = cmd.Flags().GetString("tor-control")
		if err != nil {
			return err
		}
	}

	if cmd.Flags().Changed("tor-control-password") {
		cfg.TorControlPassword, err = cmd.Flags().GetString("tor-control-password")
		if err != nil {
			return err
		}
	}

	if cmd.Flags().Changed("tor-timeout") {
		cfg.TorStartupTimeout, err = cmd.Flags().GetDuration("tor-timeout")
		if err != nil {
			return err
		}
	}

	if cmd.Flags().Changed("timeout") {
		cfg.RequestTimeout, err = cmd.Flags().GetDuration("timeout")
		if err != nil {
			return err
		}
	}

	if cmd.Flags().Changed("retries") {
		cfg.MaxRetries, err = cmd.Flags().GetInt("retries")
		if err != nil {
			return err
		}
	}

	if cmd.Flags().Changed("concurrency") {
		cfg.MaxConcurrentTargets, err = cmd.Flags().GetInt("concurrency")
		if err != nil {
			return err
		}
	}

	noFallback, err := cmd.Flags().GetBool("no-fallback")
	if err != nil {
		return err
	}
	if noFallback {
		cfg.FallbackEnabled = false
	}

	if cmd.Flags().Changed("i2p-proxy") {
		cfg.I2PProxyAddress, err = cmd.Flags().GetString("i2p-proxy")
		if err != nil {
			return err
		}
	}

	cfg.JSONReport, err = cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}

	cfg.ReportFile, err = cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	cfg.Verbose = getVerboseFlag(cmd)

	return nil
}

// loadTargets combines positional arguments with targets from a file.
// The file may be either a JSON array of URL strings or a plain text file
// with one URL per line. Empty lines and lines starting with '#' are
// ignored in the plain text format.
func loadTargets(args []string, targetsFile string) ([]string, error) {
	targets := make([]string, 0, len(args))
	targets = append(targets, args...)

	if targetsFile == "" {
		return targets, nil
	}

	data, err := os.ReadFile(targetsFile) //nolint:gosec // path comes from the user's own flag
	if err != nil {
		return nil, fmt.Errorf("failed to read targets file: %w", err)
	}

	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var fromJSON []string
		if err := json.Unmarshal([]byte(trimmed), &fromJSON); err != nil {
			return nil, fmt.Errorf("failed to parse targets file %s as JSON array: %w", targetsFile, err)
		}
		for _, t := range fromJSON {
			if t = strings.TrimSpace(t); t != "" {
				targets = append(targets, t)
			}
		}
		return targets, nil
	}

	for _, line := range strings.Split(trimmed, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		targets = append(targets, line)
	}

	return targets, nil
}

// runHarvest wires the components together and executes the run.
func runHarvest(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting harvest",
		"target_count", len(cfg.Targets),
		"use_external_tor", cfg.UseExternalTor,
		"concurrency", cfg.MaxConcurrentTargets,
		"fallback_enabled", cfg.FallbackEnabled,
	)

	// Open the ingestion database
	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	logger.Info("database opened", "dir", cfg.DBDir)

	// Bring up the Tor transport
	torClient, controlClient, cleanup, err := setupTor(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	// Bring up the I2P fallback transport if enabled.
	// The fallback parameter must stay a nil interface when disabled,
	// otherwise the router would believe a fallback exists.
	var fallback transport.ClientFactory
	if cfg.FallbackEnabled {
		i2pClient, err := i2p.NewClient(cfg.I2PProxyAddress, cfg.RequestTimeout)
		if err != nil {
			return fmt.Errorf("failed to create I2P client: %w", err)
		}
		fallback = i2pClient
	}

	// Assemble the fetch and ingestion components
	sink := anomaly.NewLogSink(logger)
	router := transport.NewRouter(torClient, fallback, cfg.MaxBodySize, cfg.MinContentLength, sink, logger)
	policy := retry.NewPolicy(cfg.MaxRetries, cfg.BackoffFactor, cfg.EscalationRetryThreshold, cfg.FallbackEnabled)
	rotator := newCircuitManager(controlClient, cfg, logger)
	p := pipeline.NewDefault(cfg.ChunkSize, cfg.ChunkOverlap, pipeline.WithLogger(logger))
	coordinator := ingest.NewCoordinator(db, p, ingest.WithLogger(logger))

	orchestrator := fetch.NewOrchestrator(router, coordinator, policy,
		fetch.WithRotator(rotator),
		fetch.WithAnomalySink(sink),
		fetch.WithConcurrency(cfg.MaxConcurrentTargets),
		fetch.WithLogger(logger),
	)

	fmt.Printf("Harvesting %d targets (concurrency: %d)...\n\n", len(cfg.Targets), cfg.MaxConcurrentTargets)

	summary := orchestrator.Run(ctx, cfg.Targets)

	logger.Info("harvest finished",
		"ingested", summary.Ingested,
		"failed", summary.Failed,
		"elapsed", summary.Elapsed,
		"circuit_rotations", rotator.Rotations(),
	)

	return outputSummary(cfg, summary)
}

// setupTor brings up the Tor transport and, when possible, a control port
// client for circuit rotation. The returned cleanup function stops the
// embedded daemon if one was started; it is a no-op for external Tor.
// A nil control client disables rotation but does not fail the run.
func setupTor(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*tor.Client, *tor.ControlClient, func(), error) {
	if cfg.UseExternalTor {
		client, err := tor.NewClient(cfg.TorProxyAddress, cfg.RequestTimeout)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to create Tor client: %w", err)
		}

		status := client.CheckConnection(ctx)
		if status != tor.ProxyStatusOK {
			return nil, nil, nil, fmt.Errorf("tor proxy check failed: %s (make sure Tor is running at %s)",
				status, cfg.TorProxyAddress)
		}
		logger.Info("Tor proxy connection verified", "address", cfg.TorProxyAddress)

		controlClient := newExternalControlClient(cfg, logger)
		return client, controlClient, func() {}, nil
	}

	// Start the embedded Tor daemon (default)
	fmt.Println("Starting embedded Tor daemon...")
	fmt.Printf("This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

	embeddedTor := tor.NewEmbeddedTor(
		tor.WithStartupTimeout(cfg.TorStartupTimeout),
	)

	if err := embeddedTor.Start(ctx); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to start embedded Tor: %w", err)
	}

	cleanup := func() {
		logger.Info("stopping embedded Tor daemon...")
		if err := embeddedTor.Stop(); err != nil {
			logger.Error("failed to stop embedded Tor", "error", err)
		}
	}

	logger.Info("embedded Tor daemon started",
		"socks_addr", embeddedTor.SocksAddr(),
		"control_addr", embeddedTor.ControlAddr(),
	)
	fmt.Printf("Embedded Tor daemon started successfully!\n")
	fmt.Printf("SOCKS proxy: %s\n\n", embeddedTor.SocksAddr())

	client, err := embeddedTor.NewClient(cfg.RequestTimeout)
	if err != nil {
		cleanup()
		return nil, nil, nil, fmt.Errorf("failed to create Tor client: %w", err)
	}

	status := client.CheckConnection(ctx)
	if status != tor.ProxyStatusOK {
		cleanup()
		return nil, nil, nil, fmt.Errorf("embedded Tor proxy check failed: %s", status)
	}

	controlClient, err := embeddedTor.NewControlClient()
	if err != nil {
		// Rotation is an enhancement, not a requirement; continue without it
		logger.Warn("control port unavailable, circuit rotation disabled", "error", err)
		controlClient = nil
	}

	return client, controlClient, cleanup, nil
}

// newCircuitManager builds the rotation manager for the run.
// A missing control client must be handed over as a nil Signaler
// interface, not a nil *tor.ControlClient: a typed-nil pointer stored in
// the interface would slip past the manager's no-signaler guard and
// panic on the first signal.
func newCircuitManager(controlClient *tor.ControlClient, cfg *config.Config, logger *slog.Logger) *circuit.Manager {
	var signaler circuit.Signaler
	if controlClient != nil {
		signaler = controlClient
	}
	return circuit.NewManager(signaler, cfg.MaxRequestsPerCircuit, cfg.MinCircuitLifespan, cfg.RotationProbability, logger)
}

// newExternalControlClient builds a control client for an external Tor
// daemon, or nil when no control address is configured or the address is
// invalid.
func newExternalControlClient(cfg *config.Config, logger *slog.Logger) *tor.ControlClient {
	if cfg.TorControlAddress == "" {
		return nil
	}

	var auth tor.ControlAuth
	if cfg.TorControlPassword != "" {
		auth = tor.ControlAuthFromPassword(cfg.TorControlPassword)
	}

	controlClient, err := tor.NewControlClient(cfg.TorControlAddress, auth)
	if err != nil {
		logger.Warn("invalid control port address, circuit rotation disabled",
			"address", cfg.TorControlAddress,
			"error", err,
		)
		return nil
	}

	return controlClient
}

// outputSummary writes the run summary in the requested format.
func outputSummary(cfg *config.Config, summary *model.RunSummary) error {
	// Determine output destination
	var output *os.File
	if cfg.ReportFile != "" {
		// Create directories if they don't exist
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		// Create/overwrite the output file with secure permissions (0600).
		// Summaries name the targets that were fetched and should only be
		// readable by the owner.
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	} else {
		output = os.Stdout
	}

	var writer report.Writer
	switch {
	case cfg.JSONReport:
		writer = report.NewJSONWriter(output, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case cfg.MarkdownReport:
		writer = report.NewMarkdownWriter(output)
	default:
		writer = report.NewSimpleWriter(output)
	}

	if _, err := writer.Write(summary); err != nil {
		return fmt.Errorf("failed to write run summary: %w", err)
	}
	return nil
}
