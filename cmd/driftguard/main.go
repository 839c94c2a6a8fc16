// Package main implements the driftguard binary: regression and schema drift
// validation of a release's impacted models against their reference data.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/arkilian/driftguard/internal/app"
	"github.com/arkilian/driftguard/internal/config"
	"github.com/arkilian/driftguard/internal/engine"
)

var (
	version = "dev"
	commit  = "unknown"
)

// --- Global flag values ---
var (
	configFile  string
	dataDir     string
	mode        string
	logLevel    string
	concurrency int
	policy      string
	jsonOutput  bool

	rootCmd = &cobra.Command{
		Use:   "driftguard",
		Short: "Validate a release's impacted models against their reference data",
		Long: `driftguard resolves the models impacted by the latest release manifest,
diffs each one against its regression copy (data mode) or compares column
metadata (schema mode), persists one artifact per model and evaluates a
final verdict.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run a regression validation (exit 0 on Pass, 1 on Fail, 2 if aborted)",
		Args:  cobra.NoArgs,
		RunE:  runRegression,
	}

	scopeCmd = &cobra.Command{
		Use:   "scope",
		Short: "Print the release scope resolved from the latest manifest",
		Args:  cobra.NoArgs,
		RunE:  runScope,
	}

	verdictCmd = &cobra.Command{
		Use:   "verdict [run-id]",
		Short: "Re-evaluate and print the verdict of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  runVerdict,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "driftguard version %s (commit: %s)\n", version, commit)
		},
	}
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	pf.StringVar(&dataDir, "data-dir", "", "Base directory for local data files")
	pf.StringVar(&mode, "mode", "", "Validation mode: data or schema")
	pf.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.BoolVar(&jsonOutput, "json", false, "Print results as JSON")

	runCmd.Flags().IntVar(&concurrency, "concurrency", 0, "Models validated in parallel")
	runCmd.Flags().StringVar(&policy, "policy", "", "Outcome policy: uniform_baseline or all_pass")

	rootCmd.AddCommand(runCmd, scopeCmd, verdictCmd, versionCmd)
}

// exitError carries a process exit code through cobra.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return
	}

	var ee *exitError
	if errors.As(err, &ee) {
		stop()
		os.Exit(ee.code)
	}
	fmt.Fprintf(os.Stderr, "driftguard: %v\n", err)
	stop()
	os.Exit(engine.ExitAborted)
}

// loadConfig loads configuration from file, environment, and command line flags.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error

	// Start with defaults or load from file
	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	// Apply environment variables
	config.LoadFromEnv(cfg)

	// Apply command line flags (highest priority)
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if mode != "" {
		cfg.Mode = config.Mode(mode)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if concurrency > 0 {
		cfg.Engine.Concurrency = concurrency
	}
	if policy != "" {
		cfg.Outcome.Policy = policy
	}

	return cfg, nil
}

// openApp loads configuration and opens the application.
func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a, err := app.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := a.Open(ctx); err != nil {
		return nil, err
	}
	return a, nil
}
