package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AnalyzeActions/WorkKnow/internal/adapter/driven/csvexport"
	"github.com/AnalyzeActions/WorkKnow/internal/config"
)

func (a *App) combineCommand() *cobra.Command {
	var resultsDir string

	cmd := &cobra.Command{
		Use:   "combine",
		Short: "Merge per-repository CSV files into All-*.csv",
		Long: `Combine merges every <owner>-<name>-Workflows.csv, -Jobs.csv and -Commits.csv
file in the results directory into All-Workflows.csv, All-Jobs.csv and
All-Commits.csv, and writes All-Counts.csv with the number of runs per
repository.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig(cmd.Context(), func(cfg *config.Config) {
				if cmd.Flags().Changed("results-dir") {
					cfg.ResultsDir = resultsDir
				}
			})
			if err != nil {
				return err
			}

			summary, err := csvexport.Combine(cfg.ResultsDir)
			if err != nil {
				return fmt.Errorf("combine %s: %w", cfg.ResultsDir, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Combined %d repositories: %d runs, %d jobs, %d commits\n",
				summary.Repositories, summary.Runs, summary.Jobs, summary.Commits)
			return nil
		},
	}

	cmd.Flags().StringVar(&resultsDir, "results-dir", "", "Directory holding the CSV files (default from config)")

	return cmd
}
