// Package main is the entry point for the reminder service's HTTP server.
//
// It loads configuration, wires the shared application graph, mounts the
// trigger and calendar handlers on the core chassis, and serves until SIGINT
// or SIGTERM. Detached reminder runs are drained before the process exits.
//
// In the local environment an optional in-process cron (LOCAL_CRON_SPEC)
// replaces the external trigger.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/robfig/cron/v3"

	"clinicremind/internal/api/handlers"
	"clinicremind/internal/app"
	"clinicremind/internal/auth"
	"clinicremind/internal/config"
	"clinicremind/internal/core"
	"clinicremind/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := app.NewLogger(cfg.LogLevel)
	logger.Info("clinicremind API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	ctx := context.Background()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("building application: %w", err)
	}

	srv, reminders, err := buildServer(cfg, logger, a)
	if err != nil {
		a.Close()
		return err
	}

	stopCron, err := startLocalCron(cfg, a.Runner, logger)
	if err != nil {
		a.Close()
		return err
	}

	return runHTTPServer(srv, cfg, logger, func(ctx context.Context) {
		stopCron(ctx)
		if err := reminders.Drain(ctx); err != nil {
			logger.Warn("reminder runs still in progress at shutdown", "error", err)
		}
	})
}

// buildServer mounts the domain handlers on the core chassis.
func buildServer(cfg *config.Config, logger *slog.Logger, a *app.App) (*core.Server, *handlers.ReminderHandler, error) {
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("creating server: %w", err)
	}
	srv.HealthProbes = append(srv.HealthProbes, core.DatabaseProbe{DB: a.Pool})
	srv.Closers = append(srv.Closers, a.Close)

	reminders := handlers.NewReminderHandler(a.Runner, cfg.Scheduler.TriggerWait, logger.With("handler", "reminders"))
	calendarHandler := handlers.NewCalendarHandler(a.Gateway, a.Appointments, a.Tenants, srv.Validator, logger.With("handler", "calendar"))

	mountDomainRoutes(srv, cfg, reminders, calendarHandler)
	srv.MountRoutes()
	return srv, reminders, nil
}

// routeRegistrar is implemented by every domain handler.
type routeRegistrar interface {
	RegisterRoutes(r chi.Router)
}

// mountDomainRoutes registers the trigger behind the trigger secret and the
// calendar endpoints behind the admin key. Outside local, the calendar
// endpoints stay unmounted when no admin key hash is configured.
func mountDomainRoutes(srv *core.Server, cfg *config.Config, reminders, calendarHandler routeRegistrar) {
	trigger := auth.NewSecretVerifier("trigger", cfg.Security.TriggerSecretHash)
	admin := auth.NewSecretVerifier("admin", cfg.Security.AdminAPIKeyHash)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(srv.RequireSecret(trigger))
			reminders.RegisterRoutes(r)
		})
	})

	if !admin.Enabled() && !cfg.IsLocal() {
		srv.Logger.Warn("ADMIN_API_KEY_HASH is not set; calendar endpoints are disabled")
		return
	}
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(srv.RequireSecret(admin))
			calendarHandler.RegisterRoutes(r)
		})
	})
}

// localRunner is the part of scheduler.Runner the local cron drives.
type localRunner interface {
	Run(ctx context.Context, now time.Time) *types.RunReport
}

// startLocalCron schedules in-process reminder runs when running locally with
// LOCAL_CRON_SPEC set. Overlapping ticks are skipped. The returned stop
// function waits for a running tick up to ctx's deadline.
func startLocalCron(cfg *config.Config, runner localRunner, logger *slog.Logger) (func(context.Context), error) {
	noop := func(context.Context) {}
	if cfg.Scheduler.LocalCronSpec == "" {
		return noop, nil
	}
	if !cfg.IsLocal() {
		logger.Warn("LOCAL_CRON_SPEC ignored outside the local environment")
		return noop, nil
	}

	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	_, err := c.AddFunc(cfg.Scheduler.LocalCronSpec, func() {
		report := runner.Run(context.Background(), time.Now())
		logger.Info("local cron tick finished",
			"run_id", report.RunID,
			"success", report.Success,
			"sent", report.TotalSent(),
		)
	})
	if err != nil {
		return nil, fmt.Errorf("parsing LOCAL_CRON_SPEC %q: %w", cfg.Scheduler.LocalCronSpec, err)
	}
	c.Start()
	logger.Info("local cron started", "schedule", cfg.Scheduler.LocalCronSpec)

	return func(ctx context.Context) {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
		}
	}, nil
}

// runHTTPServer serves until a shutdown signal or server error, then stops
// accepting requests, runs drain, and releases the server's resources, all
// within the configured shutdown timeout.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger, drain func(context.Context)) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			runErr = fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	drain(ctx)
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource cleanup error", "error", err)
	}

	logger.Info("server stopped")
	return runErr
}
