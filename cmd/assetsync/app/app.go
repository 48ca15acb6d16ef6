// Package app provides the application context and dependency wiring for
// the assetsync CLI: configuration loading, logging, and the pipeline
// instance behind each command.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	assetsync "github.com/bcgov/bcparks-asset-sync"
	"github.com/bcgov/bcparks-asset-sync/internal/extract"
	"github.com/bcgov/bcparks-asset-sync/internal/transport"
)

// App represents the assetsync application with all its dependencies.
type App struct {
	version string
	commit  string
	date    string

	config *Config
	logger *zerolog.Logger
}

// New creates a new App instance with the given version information.
func New(version, commit, date string) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
	}

	config, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	app.config = config

	logger := NewLogger(config)
	app.logger = &logger

	return app, nil
}

// Version returns the version string.
func (a *App) Version() string { return a.version }

// Config returns the application configuration.
func (a *App) Config() *Config { return a.config }

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger { return a.logger }

// Execute runs the CLI with the given arguments.
func (a *App) Execute(ctx context.Context, args []string) error {
	rootCmd := a.createRootCommand()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

// createRootCommand builds the root cobra command and its subcommands.
func (a *App) createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "assetsync",
		Short:   "BC Parks asset location pipeline",
		Version: a.version,
		Long: `Assetsync extracts asset records from the operational Postgres store,
normalizes their geometries to WGS84 points, validates the points against
the provincial boundary, and publishes the resulting changes to the
remote feature service. A QA map report flags anything suspicious for
manual review.`,
		PersistentPreRunE: a.setupCommand,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	rootCmd.PersistentFlags().BoolVarP(&a.config.Verbose, "verbose", "v", false, "verbose output (shortcut for --log-level=debug)")
	rootCmd.PersistentFlags().BoolVarP(&a.config.Quiet, "quiet", "q", false, "minimal output (shortcut for --log-level=warn)")
	rootCmd.PersistentFlags().BoolVar(&a.config.NoColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&a.config.LogLevel, "log-level", a.config.LogLevel, "log level: trace, debug, info, warn, error (overrides -v/-q)")
	rootCmd.PersistentFlags().StringVar(&a.config.SchemaPath, "schema", a.config.SchemaPath, "schema overlay YAML file")
	rootCmd.PersistentFlags().StringVar(&a.config.BoundaryPath, "boundary", a.config.BoundaryPath, "jurisdictional boundary GeoJSON file")
	rootCmd.PersistentFlags().StringSliceVar(&a.config.Tables, "tables", nil, "restrict the run to these source tables")
	rootCmd.PersistentFlags().IntVar(&a.config.Workers, "workers", a.config.Workers, "normalize/validate worker count")

	rootCmd.SetVersionTemplate("assetsync {{.Version}}\n")

	a.registerCommands(rootCmd)

	return rootCmd
}

// setupCommand reinitializes the logger after cobra parsed the flags.
func (a *App) setupCommand(_ *cobra.Command, _ []string) error {
	logger := NewLogger(a.config)
	a.logger = &logger
	return nil
}

// pipeline assembles a Pipeline from the configuration. The remote flag
// controls whether feature service settings are required.
func (a *App) pipeline(remote bool) (assetsync.Pipeline, error) {
	if err := a.config.ValidateStore(); err != nil {
		return nil, err
	}

	opts := []assetsync.Option{
		assetsync.WithStore(extract.Config{
			Host:     a.config.PGHost,
			Port:     a.config.PGPort,
			Database: a.config.PGDatabase,
			User:     a.config.PGUser,
			Password: a.config.PGPassword,
		}),
		assetsync.WithLogger(a.logger),
		assetsync.WithMaxWorkers(a.config.Workers),
	}

	if a.config.SchemaPath != "" {
		opts = append(opts, assetsync.WithSchemaPath(a.config.SchemaPath))
	}
	if a.config.BoundaryPath != "" {
		opts = append(opts, assetsync.WithBoundaryPath(a.config.BoundaryPath))
	}
	if len(a.config.Tables) > 0 {
		opts = append(opts, assetsync.WithTables(a.config.Tables...))
	}
	if a.config.ReportPath != "" {
		opts = append(opts, assetsync.WithReport(a.config.ReportPath))
	}
	if a.config.DryRun {
		opts = append(opts, assetsync.WithDryRun(true))
	}

	if remote {
		if err := a.config.ValidateRemote(); err != nil {
			return nil, err
		}
		opts = append(opts, assetsync.WithRemote(transport.Config{
			Host:     a.config.AGOHost,
			Username: a.config.AGOUsername,
			Password: a.config.AGOPassword,
		}, a.config.LayerURL))
	}

	return assetsync.New(opts...)
}

// Context creates a context cancelled on SIGINT or SIGTERM.
func Context() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// ExitOnError prints the error and exits with a non-zero status.
func ExitOnError(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
