package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AnalyzeActions/WorkKnow/internal/application"
	"github.com/AnalyzeActions/WorkKnow/internal/config"
	"github.com/AnalyzeActions/WorkKnow/internal/domain/model"
)

func (a *App) exportCommand() *cobra.Command {
	var resultsDir, dbPath string

	cmd := &cobra.Command{
		Use:   "export [repository-url...]",
		Short: "Write CSV files from previously collected runs",
		Long: `Export writes the Workflows, Jobs and Commits CSV files of stored repositories
and the combined All-*.csv files. Without arguments every stored repository is
exported.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := a.loadConfig(ctx, func(cfg *config.Config) {
				if cmd.Flags().Changed("results-dir") {
					cfg.ResultsDir = resultsDir
				}
				if cmd.Flags().Changed("db-path") {
					cfg.DBPath = dbPath
				}
			})
			if err != nil {
				return err
			}

			store, closeStore, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			var repos []model.RepositoryRef
			if len(args) == 0 {
				repos, err = store.ListRepositories(ctx)
				if err != nil {
					return err
				}
			} else {
				for _, id := range application.ResolveAll(args) {
					if !id.Valid() {
						return id.Err
					}
					repos = append(repos, id.Repository)
				}
			}

			if err := exportCollected(ctx, store, cfg.ResultsDir, repos); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d repositories to %s\n", len(repos), cfg.ResultsDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&resultsDir, "results-dir", "", "Directory for CSV files (default from config)")
	cmd.Flags().StringVar(&dbPath, "db-path", "", "SQLite database path (default from config)")

	return cmd
}
