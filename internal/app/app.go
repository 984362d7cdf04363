package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"golang.org/x/sync/errgroup"

	"spcpulse/internal/config"
	"spcpulse/internal/infrastructure"
	"spcpulse/internal/license"
	custommw "spcpulse/internal/middleware"
	"spcpulse/internal/services"
	"spcpulse/internal/store"
	handlers "spcpulse/internal/transport/http"
)

// Application wires configuration, storage, services and the HTTP server
// together.
type Application struct {
	Config        *config.Config
	Logger        *slog.Logger
	Router        *chi.Mux
	Server        *http.Server
	Store         *store.Store
	OTelProviders *infrastructure.OTelProviders

	LicenseService services.LicenseService
	AuthService    services.AuthService
	SheetSync      *services.SheetSyncService
}

// New loads configuration from the environment and builds the application.
func New() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	return NewWithConfig(cfg, logger)
}

// NewWithConfig builds the application from an already loaded config and
// logger. Tests use it to inject both.
func NewWithConfig(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	logger.Info("license server starting",
		slog.String("version", infrastructure.ServiceVersion),
		slog.Int("port", cfg.Server.Port))

	otelProviders, err := infrastructure.InitializeOTel(cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize telemetry: %w", err)
	}

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open license store: %w", err)
	}

	signer := license.NewSigner([]byte(cfg.License.SigningSecret))

	app := &Application{
		Config:         cfg,
		Logger:         logger,
		Store:          st,
		OTelProviders:  otelProviders,
		LicenseService: services.NewLicenseService(st, signer, logger, otelProviders.Metrics),
		AuthService:    services.NewAuthService(cfg.Auth, logger),
	}

	sheetSync, err := services.NewSheetSyncService(context.Background(), cfg.Sheets, st, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize sheet sync: %w", err)
	}
	app.SheetSync = sheetSync

	app.setupRouter()
	app.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        app.Router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	return app, nil
}

// setupRouter configures the middleware chain and all routes.
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(custommw.RequestID)
	r.Use(custommw.RealIP)
	r.Use(custommw.StructuredLogger(a.Logger))
	r.Use(custommw.Recoverer(a.Logger))
	r.Use(custommw.SecurityHeaders)

	if a.Config.Security.EnableCORS {
		r.Use(custommw.CORS(custommw.CORSConfig{
			AllowedOrigins: a.Config.Security.AllowedOrigins,
			ExposedHeaders: []string{"X-Request-ID", "Content-Disposition"},
			Logger:         a.Logger,
		}))
	}
	if a.Config.Security.RateLimit.Enabled {
		r.Use(custommw.NewRateLimiter(
			a.Config.Security.RateLimit.RPS,
			a.Config.Security.RateLimit.Burst,
			a.Logger,
		).Handler)
	}

	validator := custommw.NewRequestValidator(a.Logger)
	licenseHandler := handlers.NewLicenseHandler(a.LicenseService, validator, a.Logger)
	adminHandler := handlers.NewAdminHandler(a.LicenseService, validator, a.Logger)
	authHandler := handlers.NewAuthHandler(a.AuthService, validator, a.Logger)
	healthHandler := handlers.NewHealthHandler(a.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Get("/health", healthHandler.HealthCheck)
		r.Get("/version", healthHandler.Version)
		r.Get("/fingerprint", handlers.FingerprintHandler)
		r.Post("/auth/login", authHandler.Login)

		// Public surface used by SPC Pulse installations.
		r.Mount("/license", licenseHandler.Routes())

		// Admin surface behind bearer auth.
		r.Group(func(r chi.Router) {
			r.Use(custommw.AdminAuth(a.AuthService))
			r.Mount("/licenses", adminHandler.Routes())
		})
	})

	// Prometheus scrape endpoint stays outside the API middleware chain.
	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
}

// Run starts the server and background jobs, blocking until the context
// is cancelled or a fatal error occurs.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfoContext(ctx, "http server listening",
			slog.String("addr", a.Server.Addr))
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return a.runExpirySweep(ctx)
	})

	if a.SheetSync != nil {
		g.Go(func() error {
			if err := a.SheetSync.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		})
	}

	<-ctx.Done()
	a.Logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
	}

	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	a.Logger.Info("license server stopped")
	return nil
}

// runExpirySweep periodically audits licenses that crossed their expiry.
// An immediate first sweep catches anything that expired while the server
// was down.
func (a *Application) runExpirySweep(ctx context.Context) error {
	sweep := func() {
		n, err := a.LicenseService.SweepExpired(ctx)
		if err != nil {
			a.Logger.ErrorContext(ctx, "expiry sweep failed",
				slog.String("error", err.Error()))
			return
		}
		if n > 0 {
			a.Logger.InfoContext(ctx, "expiry sweep completed",
				slog.Int("newly_expired", n))
		}
	}

	sweep()

	interval := a.Config.License.ExpirySweepInterval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			sweep()
		}
	}
}
