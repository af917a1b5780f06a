package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/p-n-ai/pai-progress/internal/platform/cache"
	"github.com/p-n-ai/pai-progress/internal/platform/config"
	"github.com/p-n-ai/pai-progress/internal/platform/database"
	"github.com/p-n-ai/pai-progress/internal/progress"
	"github.com/p-n-ai/pai-progress/internal/quiz"
)

// backend is the storage the commands operate on. Updates made through it
// must reach the same event log and listing cache the server uses.
type backend struct {
	progress progress.Store
	quizzes  quiz.Store
	events   progress.EventLog
	migrate  func(ctx context.Context) ([]string, error)
	close    func()
}

// updater returns a confidence updater that records every change in the
// backend's event log.
func (b *backend) updater() *progress.Updater {
	cfg := progress.UpdaterConfig{Store: b.progress}
	if b.events != nil {
		cfg.Listener = b.events
	}
	return progress.NewUpdater(cfg)
}

type openFunc func(ctx context.Context, cfg *config.Config) (*backend, error)

func newRootCmd(open openFunc) *cobra.Command {
	root := &cobra.Command{
		Use:          "progressctl",
		Short:        "Maintain concept progress data",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("database-url", "", "PostgreSQL URL (overrides LEARN_DATABASE_URL)")

	root.AddCommand(newMigrateCmd(open))
	root.AddCommand(newBackfillCmd(open))
	root.AddCommand(newExportCmd(open))
	return root
}

// openBackend loads LEARN_* configuration, applies --database-url on top
// and opens the backend.
func openBackend(cmd *cobra.Command, open openFunc) (*backend, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if url, _ := cmd.Flags().GetString("database-url"); url != "" {
		cfg.Database.URL = url
	}
	return open(cmd.Context(), cfg)
}

// openPostgres opens the database, its event log and, when LEARN_CACHE_URL
// is reachable, the listing cache so saves invalidate the server's cached
// listings.
func openPostgres(ctx context.Context, cfg *config.Config) (*backend, error) {
	db, err := database.New(ctx, database.Options{
		URL:             cfg.Database.URL,
		MaxConns:        4,
		ApplicationName: "progressctl",
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	ps, err := progress.NewPostgresStore(db.Pool)
	if err != nil {
		db.Close()
		return nil, err
	}
	qs, err := quiz.NewPostgresStore(db.Pool)
	if err != nil {
		db.Close()
		return nil, err
	}
	events, err := progress.NewPostgresEventLog(db.Pool)
	if err != nil {
		db.Close()
		return nil, err
	}

	b := &backend{
		progress: ps,
		quizzes:  qs,
		events:   events,
		migrate:  db.Migrate,
		close:    db.Close,
	}

	if cfg.Cache.URL != "" {
		c, err := cache.New(ctx, cache.Options{URL: cfg.Cache.URL, DialTimeout: 2 * time.Second})
		if err != nil {
			slog.Warn("cache unavailable, cached listings expire on their own", "error", err)
			return b, nil
		}
		b.progress = progress.NewCachedStore(ps, c, cfg.Cache.ProgressTTL)
		b.close = func() {
			_ = c.Close()
			db.Close()
		}
	}
	return b, nil
}

func newMigrateCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBackend(cmd, open)
			if err != nil {
				return err
			}
			defer b.close()

			applied, err := b.migrate(cmd.Context())
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			out := cmd.OutOrStdout()
			for _, v := range applied {
				fmt.Fprintf(out, "Applied %s\n", v)
			}
			fmt.Fprintln(out, "Schema is up to date.")
			return nil
		},
	}
}
