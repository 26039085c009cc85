package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/AnalyzeActions/WorkKnow/internal/adapter/driving/cli"
)

// These variables are populated by the build via -ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		// The default logger may be discarding; fatal errors always reach stderr.
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// An optional .env file supplies GITHUB_ACCESS_TOKEN and WORKKNOW_* settings.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := cli.New(cli.BuildInfo{Version: version, Commit: commit, Date: date})
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := app.Close(shutdownCtx); err != nil {
			slog.Error("telemetry shutdown", "error", err)
		}
	}()

	return app.Execute(ctx, os.Args[1:])
}
