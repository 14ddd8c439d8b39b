// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer: it connects handlers, middleware, and
// routes. It decides which URL patterns map to which handler functions,
// what middleware runs on which routes, and how the server stops.
//
// DEPENDENCY INJECTION FLOW:
// main.go builds the database, services, scheduler and worker, then hands
// them to New in a Deps value. New only builds handlers and routes, so a
// test can stand up the full API over an in-memory database.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/notekeeper/internal/auth"
	"github.com/sakif/notekeeper/internal/handler"
	"github.com/sakif/notekeeper/internal/middleware"
	"github.com/sakif/notekeeper/internal/notify"
	"github.com/sakif/notekeeper/internal/service"
	"github.com/sakif/notekeeper/internal/worker"
)

// Config holds server configuration.
type Config struct {
	Port           int
	SecureCookies  bool
	TokenTTL       time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
}

// Deps are the long-lived objects the routes need. Google may be nil, in
// which case the sign-in routes are not registered.
type Deps struct {
	App      *service.App
	Tokens   *auth.TokenService
	Google   *auth.GoogleProvider
	Feed     *notify.Feed
	DB       handler.Pinger
	Tasks    func() []worker.TaskInfo
	Registry *prometheus.Registry
	Clock    clockwork.Clock
}

// Server represents the HTTP server and its router.
type Server struct {
	router  *chi.Mux
	config  Config
	deps    Deps
	limiter *middleware.RateLimiter
	logger  *slog.Logger
}

// New creates a Server with every route registered.
func New(cfg Config, deps Deps, logger *slog.Logger) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		deps:    deps,
		limiter: middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, deps.Clock, logger),
		logger:  logger,
	}
	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /healthz                          → DB ping + worker status
// GET    /metrics                          → Prometheus
// GET    /auth/google/login                → redirect to Google
// GET    /auth/google/callback             → finish sign-in
// POST   /auth/logout                      → sign out
// GET    /api/me                           → current user
// ...    /api/notes, /api/reminders        → CRUD, bulk ops, streams
// GET    /api/notifications/stream         → fired notifications (SSE)
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns an id to each request (for tracing)
// 2. RealIP: extracts the client IP from proxy headers (the rate limiter keys on it)
// 3. Logger and metrics: see every request, including rejected ones
// 4. Recoverer: catches panics and returns 500 instead of crashing
// 5. Rate limit, then auth, on /api only
func (s *Server) setupRoutes() {
	d := s.deps
	metrics := middleware.NewHTTPMetrics(d.Registry)

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger, d.Clock))
	s.router.Use(metrics.Handler)
	s.router.Use(chimiddleware.Recoverer)

	health := handler.NewHealthHandler(d.DB, d.Tasks, s.logger)
	s.router.Get("/healthz", health.HandleHealth)
	s.router.Handle("/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{Registry: d.Registry}))

	notes := service.NewNoteService(d.App)
	reminders := service.NewReminderService(d.App)
	authSvc := service.NewAuthService(d.App, d.Tokens)

	authHandler := handler.NewAuthHandler(d.Google, authSvc, s.config.TokenTTL, s.config.SecureCookies, s.logger)
	noteHandler := handler.NewNoteHandler(d.App, notes, reminders, s.logger)
	reminderHandler := handler.NewReminderHandler(d.App, reminders, s.logger)
	streamHandler := handler.NewStreamHandler(d.App, d.Feed, s.logger)

	s.router.Route("/auth", func(r chi.Router) {
		if d.Google != nil {
			r.Get("/google/login", authHandler.HandleGoogleLogin)
			r.Get("/google/callback", authHandler.HandleGoogleCallback)
		}
		r.Post("/logout", authHandler.HandleLogout)
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Use(s.limiter.Handler)
		r.Use(auth.RequireAuth(d.Tokens, d.App.Session))

		r.Get("/me", authHandler.HandleMe)

		r.Route("/notes", func(r chi.Router) {
			r.Get("/", noteHandler.HandleList)
			r.Post("/", noteHandler.HandleCreate)
			r.Get("/today", noteHandler.HandleToday)
			r.Get("/today/stream", streamHandler.HandleToday)
			r.Get("/stream", noteHandler.HandleStream)
			r.Delete("/completed", noteHandler.HandleDeleteCompleted)
			r.Post("/delete", noteHandler.HandleDeleteMany)
			r.Get("/{id}", noteHandler.HandleGet)
			r.Put("/{id}", noteHandler.HandleUpdate)
			r.Delete("/{id}", noteHandler.HandleDelete)
			r.Put("/{id}/completion", noteHandler.HandleSetCompletion)
			r.Delete("/{id}/reminders", noteHandler.HandleDeleteReminders)
		})

		r.Route("/reminders", func(r chi.Router) {
			r.Get("/", reminderHandler.HandleList)
			r.Post("/", reminderHandler.HandleCreate)
			r.Delete("/", reminderHandler.HandleDeleteAll)
			r.Get("/counts", reminderHandler.HandleCounts)
			r.Get("/stream", reminderHandler.HandleStream)
			r.Post("/complete", reminderHandler.HandleCompleteMany)
			r.Post("/delete", reminderHandler.HandleDeleteMany)
			r.Get("/{id}", reminderHandler.HandleGet)
			r.Put("/{id}", reminderHandler.HandleUpdate)
			r.Delete("/{id}", reminderHandler.HandleDelete)
			r.Put("/{id}/completion", reminderHandler.HandleSetCompletion)
		})

		r.Get("/notifications/stream", streamHandler.HandleNotifications)
	})
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Return, so main can stop the worker and scheduler and close the database
//
// Start also returns when ctx is cancelled, which is how tests and main's
// own shutdown paths stop it.
func (s *Server) Start(ctx context.Context) error {
	ctx, cancelBase := context.WithCancel(ctx)
	defer cancelBase()
	s.limiter.StartCleanup(ctx, time.Minute)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	case <-ctx.Done():
		s.logger.Info("shutdown requested")
	}

	// Cancelling the base context ends open event streams so Shutdown does
	// not wait on them.
	cancelBase()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	s.logger.Info("server stopped gracefully")
	return nil
}
