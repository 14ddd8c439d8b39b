// Package main is the entry point for the notes server.
//
// MAIN PACKAGE IN GO:
// main's job is to read configuration, create the long-lived dependencies
// and start the server. All actual logic lives in the internal/ packages.
//
// STARTUP ORDER:
//  1. config + logger
//  2. database (migrations run on open), preferences, repository
//  3. notifiers → reminder sweeper → dispatcher → scheduler (+ Restore)
//  4. background worker (notification and reminder sweeps)
//  5. HTTP server, which blocks until SIGINT/SIGTERM
//
// Shutdown runs the same list backwards.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sakif/notekeeper/internal/auth"
	"github.com/sakif/notekeeper/internal/config"
	"github.com/sakif/notekeeper/internal/notify"
	"github.com/sakif/notekeeper/internal/prefs"
	"github.com/sakif/notekeeper/internal/repository"
	"github.com/sakif/notekeeper/internal/repository/sqlite"
	"github.com/sakif/notekeeper/internal/server"
	"github.com/sakif/notekeeper/internal/service"
	"github.com/sakif/notekeeper/internal/worker"
)

// workerResolution is how often the background worker checks for due tasks.
const workerResolution = 5 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "notekeeper:", err)
		os.Exit(1)
	}
}

func run() error {
	// === 1. CONFIGURATION AND LOGGING ===
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	clock := clockwork.NewRealClock()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// === 2. DATABASE ===
	// os.MkdirAll creates the data directory if needed (like `mkdir -p`).
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return fmt.Errorf("creating database directory: %w", err)
	}
	db, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	session, err := prefs.Open(ctx, db, logger)
	if err != nil {
		return err
	}
	repo := repository.New(db, clock, loc, logger)

	// === 3. NOTIFICATIONS ===
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	feed := notify.NewFeed(logger)
	notifier := notify.Multi{notify.LogNotifier{Logger: logger}, feed}
	sweeper := worker.NewReminderSweeper(repo, notifier, clock, logger)
	dispatcher := worker.NewDispatcher(notifier, sweeper, clock)

	if !cfg.ExactAlarms {
		logger.Warn("exact alarms disabled; notifications fire on the sweep interval",
			slog.Duration("interval", cfg.SweepInterval))
	}
	sched := notify.NewScheduler(db, clock, notify.StaticCapability(cfg.ExactAlarms), dispatcher, notify.NewMetrics(reg), logger)
	defer sched.Close()
	if _, err := sched.Restore(ctx); err != nil {
		return err
	}

	// === 4. BACKGROUND WORKER ===
	runner := worker.NewRunner(clock, workerResolution, logger)
	runner.Register("notifications", cfg.SweepInterval, func(ctx context.Context) error {
		_, err := sched.SweepDue(ctx)
		return err
	})
	runner.Register("reminders", cfg.SweepInterval, func(ctx context.Context) error {
		_, err := sweeper.Sweep(ctx)
		return err
	})
	// Catch up on anything that came due while the process was down.
	runner.RunAll(ctx)
	runner.Start(ctx)
	defer runner.Stop()

	// === 5. AUTH AND HTTP ===
	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL, clock)
	if err != nil {
		return err
	}
	var google *auth.GoogleProvider
	if cfg.GoogleEnabled() {
		google = auth.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleCallbackURL)
	} else {
		logger.Warn("GOOGLE_CLIENT_ID not set; sign-in routes are disabled")
	}

	app := &service.App{
		Repo:      repo,
		Session:   session,
		Scheduler: sched,
		Clock:     clock,
		Logger:    logger,
	}

	srv := server.New(server.Config{
		Port:           cfg.Port,
		SecureCookies:  cfg.SecureCookies || cfg.IsProduction(),
		TokenTTL:       cfg.TokenTTL,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	}, server.Deps{
		App:      app,
		Tokens:   tokens,
		Google:   google,
		Feed:     feed,
		DB:       db,
		Tasks:    runner.Tasks,
		Registry: reg,
		Clock:    clock,
	}, logger)

	logger.Info("notekeeper ready",
		slog.String("database", cfg.DBPath),
		slog.String("timezone", loc.String()),
		slog.Bool("exact_alarms", cfg.ExactAlarms),
	)
	// Start blocks until SIGINT/SIGTERM; the defers above then stop the
	// worker, close the scheduler and close the database, in that order.
	return srv.Start(ctx)
}
