package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"code2diagram/internal/app"
	"code2diagram/internal/auth"
	"code2diagram/internal/lifecycle"
	"code2diagram/internal/metrics"
	"code2diagram/internal/scheduler"
	"code2diagram/internal/tracing"
	u "code2diagram/internal/utils"
)

// ServeCmd runs the HTTP API until SIGINT or SIGTERM.
type ServeCmd struct{}

func (s *ServeCmd) Run(g *Globals) error {
	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigint)

	return s.serve(g, sigint)
}

// serve wires the service, listens until stop fires and then runs the
// shutdown hooks.
func (s *ServeCmd) serve(g *Globals, stop <-chan os.Signal) error {
	cfg := g.Config
	hooks := lifecycle.New()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := hooks.Shutdown(ctx); err != nil {
			u.Error("Shutdown finished with errors", "error", err)
		}
	}()

	shutdownTracing, err := tracing.Setup(context.Background(), cfg.Tracing, version)
	if err != nil {
		u.Error("Tracing setup failed, continuing without export", "error", err)
	}
	hooks.Register("tracing", func(ctx context.Context) error { return shutdownTracing(ctx) })

	exp := newExporter(cfg)
	hooks.Register("staging", func(context.Context) error { return exp.Staging().Sweep() })

	sched, err := scheduler.New()
	if err != nil {
		return err
	}
	if cfg.Export.StaleAfter > 0 && cfg.Export.SweepInterval > 0 {
		if err := sched.Every("staging-sweep", cfg.Export.SweepInterval, scheduler.SweepJob(exp.Staging(), cfg.Export.StaleAfter)); err != nil {
			return err
		}
	}

	var tokens *auth.TokenStore
	if cfg.Auth.Enabled {
		tokens = auth.NewTokenStore(cfg.Auth.Postgres)
		hooks.Register("tokens", tokens.Close)
		if err := tokens.Load(context.Background()); err != nil {
			u.Error("Failed to load API tokens", "error", err)
		}
		if err := sched.Every("token-reload", cfg.Auth.ReloadInterval, tokens.Reload); err != nil {
			return err
		}
	}
	sched.Start()
	hooks.Register("scheduler", sched.Stop)

	var rdb *redis.Client
	if cfg.Cache.DiagramCacheEnabled {
		rdb = redis.NewClient(&redis.Options{
			Addr: cfg.Cache.RedisHost,
			DB:   cfg.Cache.DiagramCacheDB,
		})
		hooks.Register("redis", func(context.Context) error { return rdb.Close() })
	}

	var rec *metrics.Recorder
	if cfg.Metrics.Enabled {
		rec = metrics.NewRecorder(nil)
	}

	fiberApp := app.SetupApp(cfg, app.Deps{
		Generator: newGenerator(cfg),
		Exporter:  exp,
		Tokens:    tokens,
		Redis:     rdb,
		Metrics:   rec,
	})

	return startServer(fiberApp, cfg, stop)
}

// startServer listens until the server fails or a signal arrives, then shuts
// the app down gracefully.
func startServer(fiberApp *fiber.App, cfg u.Config, stop <-chan os.Signal) error {
	listenErr := make(chan error, 1)
	go func() {
		u.Info("Server listening", "addr", cfg.Server.Host+cfg.Server.Port, "env", cfg.Server.Environment)
		listenErr <- fiberApp.Listen(cfg.Server.Host + cfg.Server.Port)
	}()

	select {
	case err := <-listenErr:
		if err != nil {
			u.Error("Server error", "error", err)
		}
		return err
	case sig := <-stop:
		u.Warn("Shutdown signal received, closing server...", "signal", sig.String())
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := fiberApp.ShutdownWithContext(ctx); err != nil {
		u.Error("Server forced to shutdown", "error", err)
		return err
	}

	u.Info("Server stopped cleanly")
	return nil
}
