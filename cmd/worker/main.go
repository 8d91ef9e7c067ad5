package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/config"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/database"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/docstore"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/notify"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/queue"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/queue/workers"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/storage"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/tenant"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/violation"
)

const concurrency = 10

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

	// The worker reads the documents the API wrote, so it needs the shared store.
	if cfg.Database.URL == "" {
		slog.Error("DATABASE_URL is required for the worker")
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	store := docstore.NewPostgresStore(db)
	defer store.Close()

	tenants := tenant.NewService(store)
	// Photos are only read by URL here; nothing is uploaded.
	violations := violation.NewService(store, tenants, storage.NewSupabaseStorage(
		cfg.Storage.SupabaseURL, cfg.Storage.SupabaseKey, cfg.Storage.Bucket,
	))

	renderer, err := notify.NewRenderer(cfg.App.BaseURL)
	if err != nil {
		slog.Error("failed to load email templates", "error", err)
		os.Exit(1)
	}

	mailer, err := notify.NewMailer(cfg.Email)
	if err != nil {
		slog.Error("invalid email config", "error", err)
		os.Exit(1)
	}
	if cfg.Email.Provider == "log" {
		slog.Warn("EMAIL_PROVIDER is log, emails will be logged instead of sent")
	}

	srv := asynq.NewServer(
		queue.RedisOpt(cfg.Redis),
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				queue.QueueEmail: 1,
			},
		},
	)

	registry := queue.NewHandlersRegistry()
	workers.NewEmailWorker(tenants, violations, renderer, mailer).Register(registry)

	slog.Info("starting worker", "concurrency", concurrency)
	if err := srv.Run(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
