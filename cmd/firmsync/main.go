package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/firmsync/tenantcore/internal/adapter/auditlog"
	"github.com/firmsync/tenantcore/internal/adapter/dbaas"
	fshttp "github.com/firmsync/tenantcore/internal/adapter/http"
	fsnats "github.com/firmsync/tenantcore/internal/adapter/nats"
	"github.com/firmsync/tenantcore/internal/adapter/otel"
	"github.com/firmsync/tenantcore/internal/adapter/postgres"
	"github.com/firmsync/tenantcore/internal/adapter/ristretto"
	"github.com/firmsync/tenantcore/internal/config"
	"github.com/firmsync/tenantcore/internal/logger"
	"github.com/firmsync/tenantcore/internal/middleware"
	portaudit "github.com/firmsync/tenantcore/internal/port/audit"
	"github.com/firmsync/tenantcore/internal/secrets"
	"github.com/firmsync/tenantcore/internal/service"
)

func main() {
	if len(os.Args) > 1 {
		runAdmin(os.Args[1:])
		return
	}

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

	log, closeLog := logger.New(cfg.Logging)
	defer closeLog.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"auth_enabled", cfg.Auth.Enabled,
		"central_max_conns", cfg.CentralDB.MaxConns,
	)

	ctx := context.Background()

	// --- Telemetry ---
	shutdownTelemetry, err := otel.Setup(ctx, cfg.Telemetry, cfg.Logging.Service)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(shutdownCtx)
	}()

	metrics, err := otel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Central store ---
	pool, err := postgres.NewPool(ctx, cfg.CentralDB)
	if err != nil {
		return fmt.Errorf("central postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("central postgres connected")

	if err := postgres.RunCentralMigrations(ctx, cfg.CentralDB.DSN); err != nil {
		return fmt.Errorf("central migrations: %w", err)
	}
	slog.Info("central migrations applied")

	store := postgres.NewStore(pool)

	// --- Secrets ---
	sealer, err := secrets.NewSealer(cfg.Secrets.Key)
	if err != nil {
		return fmt.Errorf("secrets: %w", err)
	}

	// --- Firm lookup cache ---
	firmCache, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("firm cache: %w", err)
	}
	defer firmCache.Close()

	cachedDir := service.NewCachedDirectory(store, firmCache, cfg.Cache.FirmTTL, log)

	// --- Audit sinks ---
	sinks := []portaudit.Sink{auditlog.New(log)}
	if cfg.Audit.NATSURL != "" {
		natsSink, err := fsnats.Connect(ctx, cfg.Audit.NATSURL, cfg.Audit.Stream)
		if err != nil {
			return fmt.Errorf("audit nats: %w", err)
		}
		defer func() { _ = natsSink.Close() }()
		sinks = append(sinks, natsSink)
		slog.Info("audit stream connected", "stream", cfg.Audit.Stream)
	}
	auditSink := auditlog.NewFanout(log, sinks...)

	// --- Services ---
	provClient := dbaas.NewClient(cfg.Provisioner)
	manager := service.NewConnectionManager(
		store,
		postgres.NewTenantDialer(cfg.TenantPool),
		postgres.RunTenantBaseline,
		provClient,
		sealer,
		cfg.Migrate.MaxParallel,
		log,
		metrics,
	)
	defer manager.CloseAll()

	firms := service.NewFirmService(store, cachedDir, log)
	router := service.NewTenantRouter(cachedDir, manager)
	ghosts := service.NewGhostService(store, cfg.Ghost.TTL, log)

	handlers := &fshttp.Handlers{
		Firms:   firms,
		Manager: manager,
		Router:  router,
		Ghosts:  ghosts,
		Central: pool,
	}

	// --- HTTP ---
	r := chi.NewRouter()
	r.Use(fshttp.CORS(cfg.Server.CORSOrigin))
	r.Use(fshttp.SecurityHeaders)
	r.Use(middleware.RequestID)
	r.Use(fshttp.Logger)
	r.Use(otel.HTTPMiddleware("firmsync"))
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.Auth([]byte(cfg.Auth.JWTSecret), cfg.Auth.Enabled))

	fshttp.MountRoutes(r, handlers, cachedDir, store, auditSink, otel.NewGateMetrics(metrics))

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
