package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"listing-syndication/internal/infra/adapter/persistence/postgres"
	"listing-syndication/internal/infra/db"
	"listing-syndication/internal/kvstore"
	"listing-syndication/internal/provider"
	"listing-syndication/internal/ratelimit"
	"listing-syndication/internal/synclock"

	dlqUC "listing-syndication/internal/usecase/dlq"
	synUC "listing-syndication/internal/usecase/syndication"
	webhookUC "listing-syndication/internal/usecase/webhook"

	hhttp "listing-syndication/internal/handler/http"
	"listing-syndication/internal/handler/http/auth"
	hdlq "listing-syndication/internal/handler/http/dlq"
	"listing-syndication/internal/handler/http/requestid"
	hsyn "listing-syndication/internal/handler/http/syndication"
	hwebhook "listing-syndication/internal/handler/http/webhook"
)

func main() {
	logger := initLogger()
	validateJWTSecret(logger)

	database := initDatabase(logger)
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	store := initKVStore(logger)
	registry, portalCfg := initProviders(logger)

	listings := postgres.NewListingRepo(database)
	statuses := postgres.NewStatusRepo(database)
	audit := postgres.NewAuditRepo(database)
	deliveries := postgres.NewDeliveryRepo(database)

	limiter := ratelimit.NewPortalLimiter(store, portalCfg.RateLimits())
	locks := synclock.NewManager(store, synclock.DefaultTTL)

	synSvc := synUC.NewService(listings, statuses, audit, deliveries,
		registry, limiter, locks, synUC.DefaultCallTimeout, logger)
	webhookSvc := webhookUC.NewService(registry, statuses, deliveries, logger)
	dlqSvc := dlqUC.NewService(deliveries, statuses, listings, registry, dlqUC.Options{}, logger)

	retryWorker, err := dlqUC.NewWorker(dlqSvc, retrySchedule(), logger)
	if err != nil {
		logger.Error("failed to start dlq retry worker", slog.Any("error", err))
		os.Exit(1)
	}

	handler := setupRoutes(logger, database, store, registry, synSvc, webhookSvc, dlqSvc)
	runServer(logger, handler, retryWorker)
}

func initLogger() *slog.Logger {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// validateJWTSecret refuses to start with a missing or weak signing key.
func validateJWTSecret(logger *slog.Logger) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		logger.Error("JWT_SECRET must be set")
		os.Exit(1)
	}
	if len(secret) < 32 {
		logger.Error("JWT_SECRET must be at least 32 characters (256 bits)")
		os.Exit(1)
	}
	weakSecrets := []string{"secret", "password", "test", "admin", "default"}
	for _, weak := range weakSecrets {
		if secret == weak || secret == weak+"123" {
			logger.Error("JWT_SECRET must not be a common weak value", slog.String("weak_value", weak))
			os.Exit(1)
		}
	}
}

func initDatabase(logger *slog.Logger) *sql.DB {
	database := db.Open()
	if err := db.MigrateUp(database); err != nil {
		logger.Error("failed to migrate database", slog.Any("error", err))
		os.Exit(1)
	}
	return database
}

// initKVStore picks the shared store backing rate-limit buckets and sync
// locks. With REDIS_ADDR set, limits and locks hold across replicas;
// without it, the in-memory store serves single-instance deployments.
func initKVStore(logger *slog.Logger) kvstore.Store {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		logger.Warn("REDIS_ADDR not set, using in-memory store; rate limits and sync locks are per-instance")
		return kvstore.NewMemoryStore()
	}
	client := kvstore.NewRedisClient(addr, os.Getenv("REDIS_PASSWORD"))
	logger.Info("using redis shared store", slog.String("addr", addr))
	return kvstore.NewRedisStore(client)
}

func initProviders(logger *slog.Logger) (*provider.Registry, *provider.Config) {
	cfg, err := provider.LoadConfig(os.Getenv("PORTAL_CONFIG_PATH"))
	if err != nil {
		logger.Error("failed to load portal configuration", slog.Any("error", err))
		os.Exit(1)
	}

	state := provider.NewListingStateStore()
	registry := provider.NewRegistry(cfg, state, logger)

	for _, status := range registry.Statuses() {
		logger.Info("portal provider resolved",
			slog.String("portal", status.Portal.String()),
			slog.String("provider", status.Provider),
			slog.Bool("is_mock", status.IsMock))
	}
	return registry, cfg
}

func retrySchedule() string {
	if s := os.Getenv("DLQ_RETRY_SCHEDULE"); s != "" {
		return s
	}
	return dlqUC.DefaultSchedule
}

func getVersion() string {
	if v := os.Getenv("VERSION"); v != "" {
		return v
	}
	return "dev"
}

func setupRoutes(
	logger *slog.Logger,
	database *sql.DB,
	store kvstore.Store,
	registry *provider.Registry,
	synSvc *synUC.Service,
	webhookSvc *webhookUC.Service,
	dlqSvc *dlqUC.Service,
) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /healthz", &hhttp.HealthHandler{DB: database, KV: store, Version: getVersion()})
	mux.Handle("GET /ready", hhttp.ReadyHandler{DB: database})
	mux.Handle("GET /live", hhttp.LiveHandler{})
	mux.Handle("GET /metrics", hhttp.MetricsHandler())

	hsyn.Register(mux, synSvc, registry)
	hwebhook.Register(mux, webhookSvc)
	hdlq.Register(mux, dlqSvc, auth.Authz)

	return hhttp.Chain(mux,
		requestid.Middleware,
		hhttp.Recover(logger),
		hhttp.Logging(logger),
		hhttp.InputValidation(),
		hhttp.Metrics,
	)
}

func runServer(logger *slog.Logger, handler http.Handler, retryWorker *dlqUC.Worker) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	retryWorker.Start()

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		logger.Info("server starting",
			slog.String("addr", addr),
			slog.String("version", getVersion()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	retryWorker.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", slog.Any("error", err))
	}
	logger.Info("server stopped")
}
