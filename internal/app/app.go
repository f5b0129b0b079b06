package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/shopping-cart/internal/domain/cartsvc"
	"github.com/xenking/shopping-cart/internal/domain/catalog"
	"github.com/xenking/shopping-cart/internal/handler"
	"github.com/xenking/shopping-cart/internal/session"
	"github.com/xenking/shopping-cart/internal/storage/postgres"
	"github.com/xenking/shopping-cart/pkg/health"
	"github.com/xenking/shopping-cart/pkg/httpmiddleware"
)

const serviceName = "cart-api"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.Duration("session_ttl", cfg.Session.TTL),
		zap.Bool("postgres_catalog", cfg.DatabaseURL != ""),
	)

	healthSvc := health.New(lg.Named("health"))
	healthSvc.AddLivenessCheck("goroutines", health.GoroutineCountCheck(cfg.Health.MaxGoroutines))

	// Catalog source: PostgreSQL when configured, built-in entries otherwise.
	var entries catalog.Repository = catalog.NewStatic(catalog.Seed())
	if cfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return errors.Wrap(err, "create db pool")
		}
		defer pool.Close()

		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return errors.Wrap(err, "run migrations")
		}
		repo := postgres.NewCatalogRepository(pool)
		healthSvc.AddReadinessCheck("postgres", health.PingCheck(repo), health.WithTimeout(5*time.Second))
		entries = repo
	}

	registry, err := session.NewRegistry(entries, session.Config{
		TTL:           cfg.Session.TTL,
		SweepInterval: cfg.Session.SweepInterval,
		MaxSessions:   cfg.Session.MaxSessions,
	}, lg.Named("session"), m.MeterProvider())
	if err != nil {
		return errors.Wrap(err, "create session registry")
	}
	healthSvc.AddReadinessCheck("sessions", health.SessionCountCheck(registry.Len, cfg.Session.MaxSessions))

	carts, err := cartsvc.NewService(registry, m.TracerProvider(), m.MeterProvider())
	if err != nil {
		return errors.Wrap(err, "create cart service")
	}
	h := handler.NewHandler(carts, entries)

	router := chi.NewRouter()
	router.Get("/livez", healthSvc.LiveEndpoint)
	router.Get("/readyz", healthSvc.ReadyEndpoint)
	router.Mount("/api", h.Routes())

	middlewares := []httpmiddleware.Middleware{
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowHeaders:     []string{"Content-Type", httpmiddleware.RequestIDHeader},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
		httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
			Skip:   httpmiddleware.SkipPaths("/livez", "/readyz"),
		}),
		httpmiddleware.Routes(),
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.RequestID(),
		httpmiddleware.Instrument(serviceName, m.TracerProvider(), m.MeterProvider()),
		httpmiddleware.LogRequests(),
	}
	if cfg.GzipLevel > 0 {
		middlewares = append(middlewares, httpmiddleware.Gzip(cfg.GzipLevel))
	}

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           httpmiddleware.Wrap(router, middlewares...),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return healthSvc.Run(gctx, cfg.Health.Interval)
	})
	g.Go(func() error {
		return registry.Run(gctx)
	})
	g.Go(func() error {
		// Graceful shutdown: readiness off, drain, then stop accepting.
		<-gctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		if ctx.Err() != nil {
			time.Sleep(cfg.Graceful.ReadinessDelay)
		}

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		healthSvc.SetReady(true)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})

	return g.Wait()
}
