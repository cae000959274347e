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
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	bchttp "github.com/Strob0t/BreachCache/internal/adapter/http"
	"github.com/Strob0t/BreachCache/internal/adapter/otel"
	"github.com/Strob0t/BreachCache/internal/config"
	"github.com/Strob0t/BreachCache/internal/logger"
	"github.com/Strob0t/BreachCache/internal/middleware"
	"github.com/Strob0t/BreachCache/internal/partition"
	"github.com/Strob0t/BreachCache/internal/resilience"
	"github.com/Strob0t/BreachCache/internal/service"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer logCloser.Close()

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"store", cfg.Store.Backend,
		"upstream", cfg.Upstream.Backend,
		"ttl_minutes", cfg.Cache.TTLMinutes,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Telemetry ---
	shutdownOtel, err := otel.Setup(ctx, cfg.OTEL, cfg.Logging.Service)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownOtel(flushCtx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	}()

	// --- Infrastructure ---
	deps, err := openInfra(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	rawSource, err := deps.upstream(cfg)
	if err != nil {
		return err
	}
	store, err := deps.stateStore(cfg)
	if err != nil {
		return err
	}

	// --- Core ---
	breaker := resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
	guarded := resilience.NewGuardedSource(rawSource, breaker, cfg.Upstream.Timeout)

	metrics, err := otel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	dir := partition.NewDirectory(otel.InstrumentSource(guarded, metrics), store, partition.Options{
		TTL:           cfg.Cache.TTL(),
		IdleTimeout:   cfg.Cache.IdleTimeout,
		SweepInterval: cfg.Cache.SweepInterval,
	})
	if err := metrics.ObservePartitions(dir.Len); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	breachSvc := service.NewBreachService(dir, deps.publisher(cfg), cfg.Events.Subject, metrics)

	// --- HTTP ---
	handlers := &bchttp.Handlers{
		Breaches: breachSvc,
		Health: func() bchttp.HealthStatus {
			st := bchttp.HealthStatus{
				Status:     "ok",
				Store:      cfg.Store.Backend,
				Upstream:   cfg.Upstream.Backend,
				Breaker:    breaker.State().String(),
				Partitions: dir.Len(),
				Events:     cfg.Events.Enabled,
			}
			if breaker.State() != resilience.StateClosed || !deps.healthy() {
				st.Status = "degraded"
			}
			return st
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(otel.HTTPMiddleware(cfg.Logging.Service))
	r.Use(bchttp.Logger)
	r.Use(chimw.Recoverer)
	r.Use(bchttp.SecurityHeaders)
	r.Use(bchttp.CORS(cfg.Server.CORSOrigin))
	r.Use(chimw.Timeout(cfg.Server.RequestTimeout))

	bchttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return dir.Run(gctx)
	})
	g.Go(func() error {
		return deps.reloadSecretsOnHUP(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("server stopped", "partitions", dir.Len())
	return nil
}
