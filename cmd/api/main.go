package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/api"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/api/handlers"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/audit"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/cache"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/config"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/database"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/docstore"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/identity"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/metrics"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/onboarding"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/queue"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/storage"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/tenant"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/violation"
)

// cachePrefix namespaces this service's keys in a shared redis.
const cachePrefix = "hoa-tracker:"

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	checks := map[string]handlers.Check{}

	// Document store: Postgres when DATABASE_URL is set, otherwise in memory.
	var store docstore.Store
	if cfg.Database.URL != "" {
		db, err := database.NewPool(ctx, cfg.Database)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := database.RunMigrations(ctx, db, database.Migrations()); err != nil {
			slog.Error("migrations failed", "error", err)
			os.Exit(1)
		}

		pg := docstore.NewPostgresStore(db)
		defer pg.Close()
		store = pg
		checks["database"] = db.Ping
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory document store")
		store = docstore.NewMemoryStore()
	}

	// Redis backs the HOA cache and the email queue.
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }

	tenants := tenant.NewService(store)
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Warn("redis unavailable, running without cache", "error", err)
	} else {
		tenants.WithCache(cache.NewCache(rdb, cachePrefix), cfg.Redis.CacheTTL)
	}

	var ids identity.Provider
	switch cfg.Auth.Provider {
	case "memory":
		slog.Warn("using in-memory identity provider")
		ids = identity.NewMemoryProvider(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	default:
		ids = identity.NewSupabaseProvider(cfg.Auth.SupabaseURL, cfg.Auth.ServiceKey)
	}

	var blobs storage.Storage
	if cfg.Storage.SupabaseURL != "" {
		blobs = storage.NewSupabaseStorage(cfg.Storage.SupabaseURL, cfg.Storage.SupabaseKey, cfg.Storage.Bucket)
	} else {
		slog.Warn("SUPABASE_URL not set, keeping photos in memory")
		blobs = storage.NewMemoryStorage(cfg.App.BaseURL + "/photos")
	}

	jobs := queue.NewClient(cfg.Redis)
	defer jobs.Close()

	auditSvc := audit.NewService(store)

	orchestrator := onboarding.NewOrchestrator(tenants, ids, onboarding.Config{
		TrialPeriod:     time.Duration(cfg.Onboarding.TrialDays) * 24 * time.Hour,
		MaxSlugAttempts: cfg.Onboarding.MaxSlugAttempts,
		Compensate:      cfg.Onboarding.Compensate,
	}).WithMailer(jobs).WithAuditor(auditSvc)

	violations := violation.NewService(store, tenants, blobs).
		WithNotifier(jobs).
		WithAuditor(auditSvc)

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		slog.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}

	router := api.NewRouter(cfg, api.Services{
		Tenants:      tenants,
		Identity:     ids,
		Onboarding:   orchestrator,
		Violations:   violations,
		Audit:        auditSvc,
		Mailer:       jobs,
		HealthChecks: checks,
	})
	defer router.Close()
	handler := router.Setup()

	// No write timeout: the violations stream holds responses open.
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("starting API server", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	slog.Info("server stopped")
}
