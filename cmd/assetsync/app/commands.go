package app

import (
	"fmt"

	"github.com/spf13/cobra"
)

// registerCommands attaches all subcommands to the root command.
func (a *App) registerCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(a.newSyncCommand())
	rootCmd.AddCommand(a.newQACommand())
	rootCmd.AddCommand(a.newVersionCommand())
}

// newSyncCommand runs the full pipeline against the feature service.
func (a *App) newSyncCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Extract, validate, and publish asset locations",
		Long: `Sync runs the full pipeline: extract asset records from the operational
store, normalize geometries to WGS84 points, validate against the
provincial boundary, and publish create/update operations to the remote
feature service. Records already up to date are skipped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pipeline, err := a.pipeline(true)
			if err != nil {
				return err
			}

			summary, err := pipeline.Sync(cmd.Context())
			if summary != nil {
				fmt.Fprintln(cmd.OutOrStdout(), summary.String())
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&a.config.DryRun, "dry-run", false, "compute the changeset without applying it")
	cmd.Flags().StringVar(&a.config.ReportPath, "report", "", "also write the QA map report to this path")

	return cmd
}

// newQACommand runs extraction and validation only.
func (a *App) newQACommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "qa",
		Short: "Render the QA map without publishing",
		Long: `QA runs extraction, normalization, and boundary validation, then writes
the QA map report. The remote feature service is never contacted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pipeline, err := a.pipeline(false)
			if err != nil {
				return err
			}

			summary, err := pipeline.QA(cmd.Context())
			if summary != nil {
				fmt.Fprintln(cmd.OutOrStdout(), summary.String())
			}
			return err
		},
	}

	cmd.Flags().StringVar(&a.config.ReportPath, "report", "asset_qa.html", "QA map report output path")

	return cmd
}

// newVersionCommand prints detailed version information.
func (a *App) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "assetsync %s (commit %s, built %s)\n", a.version, a.commit, a.date)
		},
	}
}
