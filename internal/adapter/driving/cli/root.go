// Package cli implements the workknow command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/AnalyzeActions/WorkKnow/internal/config"
	"github.com/AnalyzeActions/WorkKnow/internal/domain/port/driven"
	"github.com/AnalyzeActions/WorkKnow/internal/telemetry"
)

// BuildInfo is stamped into the binary via -ldflags.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// SourceFactory builds the run source for a loaded configuration.
type SourceFactory func(cfg *config.Config) (driven.RunSource, error)

// App owns the command tree and the resources commands open.
type App struct {
	build      BuildInfo
	newSource  SourceFactory
	stdout     io.Writer
	stderr     io.Writer
	debugLevel string
	configPath string
	shutdown   []func(context.Context) error
}

// Option configures an App.
type Option func(*App)

// WithSourceFactory replaces the GitHub client factory.
func WithSourceFactory(f SourceFactory) Option {
	return func(a *App) { a.newSource = f }
}

// WithOutput redirects command output and log output.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(a *App) {
		a.stdout = stdout
		a.stderr = stderr
	}
}

// New creates an App.
func New(build BuildInfo, opts ...Option) *App {
	if build.Version == "" {
		build.Version = "dev"
	}
	a := &App{
		build:     build,
		newSource: newGitHubSource,
		stdout:    os.Stdout,
		stderr:    os.Stderr,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Command builds the root command with all subcommands attached.
func (a *App) Command() *cobra.Command {
	root := &cobra.Command{
		Use:   "workknow",
		Short: "Collect the GitHub Actions run history of many repositories",
		Long: `WorkKnow downloads the workflow runs and jobs of GitHub repositories,
stores them in SQLite or PostgreSQL and exports them as CSV files.

Examples:
	# Collect two repositories and save CSV files to ./results
	workknow analyze https://github.com/octo/alpha octo/beta --save

	# Collect every repository listed in a CSV file
	workknow analyze --repos-csv-file repos.csv --concurrency 4

	# Merge per-repository CSV files into All-*.csv
	workknow combine --results-dir results`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       fmt.Sprintf("%s (%s) %s", a.build.Version, a.build.Commit, a.build.Date),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return configureLogging(a.debugLevel, a.stderr)
		},
	}
	root.SetVersionTemplate("{{.Version}}\n")
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	root.PersistentFlags().StringVar(&a.debugLevel, "debug-level", "off", "Log level: off, error, warn, info or debug")
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to a YAML config file (default $WORKKNOW_CONFIG)")

	root.AddCommand(
		a.analyzeCommand(),
		a.exportCommand(),
		a.combineCommand(),
		a.versionCommand(),
	)

	return root
}

// Execute runs the command line with args.
func (a *App) Execute(ctx context.Context, args []string) error {
	root := a.Command()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// Close flushes telemetry started by a command.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for _, fn := range a.shutdown {
		errs = append(errs, fn(ctx))
	}
	a.shutdown = nil
	return errors.Join(errs...)
}

// loadConfig reads the configuration, applies flag overrides and starts
// telemetry when an endpoint is configured.
func (a *App) loadConfig(ctx context.Context, override func(*config.Config)) (*config.Config, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if override != nil {
		override(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid flags: %w", err)
		}
	}

	shutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, "workknow", a.build.Version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	a.shutdown = append(a.shutdown, shutdown)

	slog.Debug("config loaded",
		"db_path", cfg.DBPath,
		"postgres", cfg.UsePostgres(),
		"results_dir", cfg.ResultsDir,
		"concurrency", cfg.Concurrency,
	)
	return cfg, nil
}
