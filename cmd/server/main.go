package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/p-n-ai/pai-progress/internal/auth"
	"github.com/p-n-ai/pai-progress/internal/concept"
	"github.com/p-n-ai/pai-progress/internal/feed"
	"github.com/p-n-ai/pai-progress/internal/httpapi"
	"github.com/p-n-ai/pai-progress/internal/platform/cache"
	"github.com/p-n-ai/pai-progress/internal/platform/config"
	"github.com/p-n-ai/pai-progress/internal/platform/database"
	"github.com/p-n-ai/pai-progress/internal/progress"
	"github.com/p-n-ai/pai-progress/internal/quiz"
)

func main() {
	if err := config.LoadEnvFile(".env"); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(newLogger(cfg.Log))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	app, err := newApp(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer app.close()

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      app.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr, "storage", cfg.Storage)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

// newLogger builds the process logger from LEARN_LOG_LEVEL and
// LEARN_LOG_FORMAT.
func newLogger(cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

type app struct {
	handler http.Handler
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newApp connects the configured backends and assembles the HTTP handler.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}
	checks := make(map[string]httpapi.Check)

	var (
		progressStore progress.Store    = progress.NewMemoryStore()
		quizStore     quiz.Store        = quiz.NewMemoryStore()
		userStore     auth.UserStore    = auth.NewMemoryUserStore()
		eventLog      progress.EventLog = progress.NewMemoryEventLog()
		sessionStore  auth.SessionStore
	)

	if cfg.UsesPostgres() {
		db, err := database.New(ctx, database.Options{
			URL:      cfg.Database.URL,
			MaxConns: cfg.Database.MaxConns,
			MinConns: cfg.Database.MinConns,
		})
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		checks["database"] = db.HealthCheck

		if _, err := db.Migrate(ctx); err != nil {
			a.close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}

		ps, err := progress.NewPostgresStore(db.Pool)
		if err != nil {
			a.close()
			return nil, err
		}
		qs, err := quiz.NewPostgresStore(db.Pool)
		if err != nil {
			a.close()
			return nil, err
		}
		us, err := auth.NewPostgresUserStore(db.Pool)
		if err != nil {
			a.close()
			return nil, err
		}
		el, err := progress.NewPostgresEventLog(db.Pool)
		if err != nil {
			a.close()
			return nil, err
		}
		progressStore, quizStore, userStore, eventLog = ps, qs, us, el
	}

	if cfg.Cache.URL != "" {
		c, err := cache.New(ctx, cache.Options{URL: cfg.Cache.URL})
		if err != nil {
			// The cache only speeds up listings and holds sessions, so run
			// without it rather than refusing to start.
			slog.Warn("cache unavailable, continuing without it", "error", err)
		} else {
			a.closers = append(a.closers, func() { _ = c.Close() })
			checks["cache"] = c.HealthCheck
			progressStore = progress.NewCachedStore(progressStore, c, cfg.Cache.ProgressTTL)
			sessionStore = auth.NewRedisSessionStore(c.Client)
		}
	}

	catalog, err := concept.Load(cfg.ConceptsPath)
	if err != nil {
		slog.Warn("concept catalog not loaded", "path", cfg.ConceptsPath, "error", err)
		catalog = concept.NewCatalog()
	}

	hub := feed.NewHub()
	updater := progress.NewUpdater(progress.UpdaterConfig{
		Store:    progressStore,
		Listener: progress.Listeners{hub, eventLog},
	})

	api := httpapi.New(httpapi.Config{
		Updater: updater,
		Events:  eventLog,
		Quizzes: quiz.NewService(quizStore, updater),
		Auth: auth.NewService(auth.ServiceConfig{
			Users:      userStore,
			Sessions:   sessionStore,
			SessionTTL: cfg.Auth.SessionTTL,
		}),
		Catalog:       catalog,
		Feed:          hub,
		Checks:        checks,
		AllowedOrigin: cfg.Server.AllowedOrigin,
		CookieName:    cfg.Auth.CookieName,
		SecureCookie:  cfg.Auth.SecureCookie,
	})
	a.handler = api.Routes()
	return a, nil
}
