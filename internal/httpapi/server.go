// Package httpapi exposes the snapshot, the reconciliation trigger and the
// chat webhook over HTTP.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mfenderov/duyuru-watch/internal/reconcile"
	"github.com/mfenderov/duyuru-watch/pkg/models"
)

// Loader reads the current snapshot.
type Loader interface {
	Load(ctx context.Context) (models.Snapshot, error)
}

// Runner runs and resets reconciliation cycles.
type Runner interface {
	Run(ctx context.Context, opts reconcile.RunOptions) (*reconcile.Result, error)
	Reset(ctx context.Context) error
}

// ChatHandler answers chat webhook updates.
type ChatHandler interface {
	Handle(ctx context.Context, u tgbotapi.Update) error
}

// Seeder replaces the snapshot with sample data.
type Seeder func(ctx context.Context) (models.Snapshot, error)

// Config holds HTTP server configuration.
type Config struct {
	Addr          string
	CronSecret    string        // Bearer credential for trigger and admin routes; empty rejects all
	WebhookSecret string        // Expected X-Telegram-Bot-Api-Secret-Token, empty disables the check
	CycleTimeout  time.Duration // Upper bound for a triggered cycle
}

// Deps are the collaborators the server calls into.
type Deps struct {
	Store  Loader
	Runner Runner
	Chat   ChatHandler // nil disables the webhook route
	Seed   Seeder      // nil disables the seed route
}

// Server is the HTTP server.
type Server struct {
	cfg        Config
	deps       Deps
	logger     *slog.Logger
	router     chi.Router
	httpServer *http.Server
}

// NewServer creates a new HTTP server.
func NewServer(cfg Config, deps Deps, logger *slog.Logger) *Server {
	if cfg.CycleTimeout == 0 {
		cfg.CycleTimeout = 2 * time.Minute
	}
	s := &Server{cfg: cfg, deps: deps, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(withLogging(logger))
	r.Use(recoverJSON(logger))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/health", s.handleHealth)
	r.Get("/api/announcements", s.handleAnnouncements)

	r.Group(func(r chi.Router) {
		r.Use(s.requireSecret)
		r.Get("/api/cron", s.handleCron)
		r.Post("/api/cron", s.handleCron)
		r.Post("/api/admin/check", s.handleAdminCheck)
		if deps.Seed != nil {
			r.Post("/api/admin/seed", s.handleSeed)
		}
	})

	if deps.Chat != nil {
		r.Post("/api/telegram/webhook", s.handleTelegramWebhook)
	}

	s.router = r
	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.CycleTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening for HTTP requests. It blocks until the server is
// shut down or an error occurs.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
