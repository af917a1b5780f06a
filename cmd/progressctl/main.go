// Command progressctl runs maintenance tasks against the progress database:
// schema migration, quiz-history backfill and spreadsheet export.
package main

import (
	"log/slog"
	"os"

	"github.com/p-n-ai/pai-progress/internal/platform/config"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if err := config.LoadEnvFile(".env"); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}

	if err := newRootCmd(openPostgres).Execute(); err != nil {
		os.Exit(1)
	}
}
