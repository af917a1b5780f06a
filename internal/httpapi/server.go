// Package httpapi exposes concept progress, quiz history and accounts over
// HTTP. Handlers resolve the caller once, through the auth middleware, and
// pass the user id explicitly into the services.
package httpapi

import (
	"context"
	"net/http"
	"net/url"

	"github.com/p-n-ai/pai-progress/internal/auth"
	"github.com/p-n-ai/pai-progress/internal/concept"
	"github.com/p-n-ai/pai-progress/internal/feed"
	"github.com/p-n-ai/pai-progress/internal/progress"
	"github.com/p-n-ai/pai-progress/internal/quiz"
)

// Check reports whether a dependency is ready to serve traffic.
type Check func(ctx context.Context) error

// Config holds the server's collaborators.
type Config struct {
	Updater *progress.Updater
	Events  progress.EventLog // optional; enables per-concept history
	Quizzes *quiz.Service
	Auth    *auth.Service
	Catalog *concept.Catalog
	Feed    *feed.Hub

	// Checks run on /readyz, keyed by dependency name.
	Checks map[string]Check

	AllowedOrigin string
	CookieName    string
	SecureCookie  bool
}

// Server serves the HTTP API.
type Server struct {
	updater *progress.Updater
	events  progress.EventLog
	quizzes *quiz.Service
	auth    *auth.Service
	catalog *concept.Catalog
	feed    *feed.Hub
	checks  map[string]Check

	allowedOrigin string
	cookieName    string
	secureCookie  bool
}

// New creates a server. Missing collaborators are replaced by in-memory
// defaults; a default updater feeds the default hub and event log.
func New(cfg Config) *Server {
	s := &Server{
		updater:       cfg.Updater,
		events:        cfg.Events,
		quizzes:       cfg.Quizzes,
		auth:          cfg.Auth,
		catalog:       cfg.Catalog,
		feed:          cfg.Feed,
		checks:        cfg.Checks,
		allowedOrigin: cfg.AllowedOrigin,
		cookieName:    cfg.CookieName,
		secureCookie:  cfg.SecureCookie,
	}
	if s.feed == nil {
		s.feed = feed.NewHub()
	}
	if s.updater == nil {
		if s.events == nil {
			s.events = progress.NewMemoryEventLog()
		}
		s.updater = progress.NewUpdater(progress.UpdaterConfig{
			Listener: progress.Listeners{s.feed, s.events},
		})
	}
	if s.quizzes == nil {
		s.quizzes = quiz.NewService(nil, s.updater)
	}
	if s.auth == nil {
		s.auth = auth.NewService(auth.ServiceConfig{})
	}
	if s.catalog == nil {
		s.catalog = concept.NewCatalog()
	}
	if s.cookieName == "" {
		s.cookieName = auth.DefaultCookieName
	}
	return s
}

// Routes returns the fully wrapped HTTP handler.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)

	mux.HandleFunc("POST /auth/signup", s.handleSignup)
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("POST /auth/logout", s.handleLogout)
	mux.HandleFunc("GET /auth/me", s.handleMe)

	mux.HandleFunc("POST /api/concept-progress/update", s.handleProgressUpdate)
	mux.HandleFunc("GET /api/concept-progress", s.handleProgressList)
	mux.HandleFunc("GET /api/concept-progress/export", s.handleProgressExport)
	mux.HandleFunc("GET /api/concept-progress/feed", s.handleProgressFeed)
	if s.events != nil {
		mux.HandleFunc("GET /api/concept-progress/{conceptId}/history", s.handleProgressHistory)
	}

	mux.HandleFunc("POST /api/quiz-history", s.handleQuizSave)
	mux.HandleFunc("GET /api/quiz-history", s.handleQuizList)
	mux.HandleFunc("GET /api/quiz-history/admin/all", s.handleQuizListAll)
	mux.HandleFunc("POST /api/quiz-history/process-all", s.handleQuizBackfill)
	mux.HandleFunc("GET /api/quiz-history/{id}", s.handleQuizGet)

	var h http.Handler = mux
	h = s.auth.Middleware(s.cookieName)(h)
	h = cors(s.allowedOrigin)(h)
	h = logRequests(h)
	return h
}

// originPatterns converts the configured front-end origin into websocket
// origin patterns (host[:port]).
func (s *Server) originPatterns() []string {
	if s.allowedOrigin == "" {
		return nil
	}
	u, err := url.Parse(s.allowedOrigin)
	if err != nil || u.Host == "" {
		return nil
	}
	return []string{u.Host}
}
