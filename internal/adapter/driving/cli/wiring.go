package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	githubadapter "github.com/AnalyzeActions/WorkKnow/internal/adapter/driven/github"
	"github.com/AnalyzeActions/WorkKnow/internal/adapter/driven/postgres"
	sqliteadapter "github.com/AnalyzeActions/WorkKnow/internal/adapter/driven/sqlite"
	"github.com/AnalyzeActions/WorkKnow/internal/config"
	"github.com/AnalyzeActions/WorkKnow/internal/domain/model"
	"github.com/AnalyzeActions/WorkKnow/internal/domain/port/driven"
)

// newGitHubSource builds the GitHub client with one shared rate limit state.
func newGitHubSource(cfg *config.Config) (driven.RunSource, error) {
	if !cfg.HasGitHubCredentials() {
		return nil, fmt.Errorf("%w: no access token, set GITHUB_ACCESS_TOKEN", model.ErrAuthenticationFailure)
	}

	limits := githubadapter.NewRateLimitState(
		githubadapter.WithThreshold(cfg.RateLimitThreshold),
		githubadapter.WithMargin(cfg.RateLimitMargin),
	)

	client, err := githubadapter.NewClient(cfg.GitHubToken, cfg.APIBaseURL, cfg.RequestTimeout,
		githubadapter.WithRateLimitState(limits),
		githubadapter.WithRetryPolicy(githubadapter.RetryPolicy{
			MaxRetries:      uint64(cfg.MaxRetries),
			InitialInterval: cfg.RetryInitialInterval,
			MaxInterval:     30 * time.Second,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create github client: %w", err)
	}
	return client, nil
}

// openStore opens PostgreSQL when a database URL is configured and SQLite
// otherwise, and applies migrations. The returned function closes the store.
func openStore(ctx context.Context, cfg *config.Config) (driven.RunStore, func(), error) {
	if cfg.UsePostgres() {
		db, err := postgres.New(ctx, cfg.DatabaseURL, slog.Default())
		if err != nil {
			return nil, nil, err
		}
		if err := db.RunMigrations(); err != nil {
			db.Close()
			return nil, nil, err
		}
		slog.Info("database opened", "driver", "postgres")
		return postgres.NewRunRepo(db), db.Close, nil
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	slog.Info("database opened", "driver", "sqlite", "path", db.Path())

	closeDB := func() {
		if err := db.Close(); err != nil {
			slog.Error("error closing database", "error", err)
		}
	}
	return sqliteadapter.NewRunRepo(db), closeDB, nil
}
