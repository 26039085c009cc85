package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/AnalyzeActions/WorkKnow/internal/adapter/driven/csvexport"
	"github.com/AnalyzeActions/WorkKnow/internal/adapter/driving/report"
	"github.com/AnalyzeActions/WorkKnow/internal/application"
	"github.com/AnalyzeActions/WorkKnow/internal/config"
	"github.com/AnalyzeActions/WorkKnow/internal/domain/model"
)

type analyzeOptions struct {
	reposCSVFile string
	resultsDir   string
	save         bool
	concurrency  int
	reportFile   string
	dbPath       string
	databaseURL  string
}

func (a *App) analyzeCommand() *cobra.Command {
	var opts analyzeOptions

	cmd := &cobra.Command{
		Use:   "analyze [repository-url...]",
		Short: "Collect the workflow runs and jobs of GitHub repositories",
		Long: `Analyze collects the GitHub Actions history of every repository given as an
argument or listed in --repos-csv-file. Runs are upserted into the database, so
running analyze again refreshes the stored history without duplicating it.

A repository that cannot be collected is reported and skipped. Only a rejected
access token or an interruption stops the batch early.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAnalyze(cmd, args, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.reposCSVFile, "repos-csv-file", "", "CSV file listing repository URLs")
	f.StringVar(&opts.resultsDir, "results-dir", "", "Directory for CSV files (default from config)")
	f.BoolVar(&opts.save, "save", false, "Export CSV files for the collected repositories")
	f.IntVar(&opts.concurrency, "concurrency", 1, "Repositories collected in parallel")
	f.StringVar(&opts.reportFile, "report-file", "", "Write a markdown or .html report to this path")
	f.StringVar(&opts.dbPath, "db-path", "", "SQLite database path (default from config)")
	f.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL URL; overrides --db-path")

	return cmd
}

func (a *App) runAnalyze(cmd *cobra.Command, args []string, opts analyzeOptions) error {
	ctx := cmd.Context()

	cfg, err := a.loadConfig(ctx, func(cfg *config.Config) {
		flags := cmd.Flags()
		if flags.Changed("results-dir") {
			cfg.ResultsDir = opts.resultsDir
		}
		if flags.Changed("concurrency") {
			cfg.Concurrency = opts.concurrency
		}
		if flags.Changed("db-path") {
			cfg.DBPath = opts.dbPath
		}
		if flags.Changed("database-url") {
			cfg.DatabaseURL = opts.databaseURL
		}
	})
	if err != nil {
		return err
	}

	inputs := append([]string(nil), args...)
	if opts.reposCSVFile != "" {
		listed, err := ReadRepositoryCSV(opts.reposCSVFile)
		if err != nil {
			return err
		}
		inputs = append(inputs, listed...)
	}
	if len(inputs) == 0 {
		return errors.New("no repositories given: pass repository URLs or --repos-csv-file")
	}

	source, err := a.newSource(cfg)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	orchestrator := application.NewBatchOrchestrator(source, store,
		application.WithConcurrency(cfg.Concurrency),
	)

	rep, runErr := orchestrator.Run(ctx, inputs)

	report.WriteTable(cmd.OutOrStdout(), rep)

	// Exports and the report cover what was collected even after an interruption.
	outCtx := context.WithoutCancel(ctx)

	if opts.save {
		if err := exportCollected(outCtx, store, cfg.ResultsDir, rep.SucceededRefs()); err != nil {
			return errors.Join(runErr, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\nSaved CSV files to %s\n", cfg.ResultsDir)
	}

	if opts.reportFile != "" {
		if err := report.WriteFile(opts.reportFile, rep); err != nil {
			return errors.Join(runErr, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote report to %s\n", opts.reportFile)
	}

	return runErr
}

func exportCollected(ctx context.Context, store csvexport.RunReader, dir string, repos []model.RepositoryRef) error {
	exporter := csvexport.NewExporter(store, dir)

	for _, repo := range repos {
		if _, err := exporter.ExportRepository(ctx, repo); err != nil {
			return fmt.Errorf("export %s: %w", repo.FullName(), err)
		}
	}

	paths, err := exporter.ExportAll(ctx, repos)
	if err != nil {
		return fmt.Errorf("export combined files: %w", err)
	}

	slog.Info("csv export complete", "dir", dir, "repositories", len(repos), "files", len(paths)+3*len(repos))
	return nil
}
