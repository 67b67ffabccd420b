package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pipeflowhq/pipeflow-backend/internal/dispatch"
	"github.com/pipeflowhq/pipeflow-backend/internal/notifications"
	"github.com/pipeflowhq/pipeflow-backend/pkg/config"
	"github.com/pipeflowhq/pipeflow-backend/pkg/db"
	"github.com/pipeflowhq/pipeflow-backend/pkg/logger"
	"github.com/pipeflowhq/pipeflow-backend/pkg/metrics"
	"github.com/pipeflowhq/pipeflow-backend/pkg/migrate"
	"github.com/pipeflowhq/pipeflow-backend/pkg/outbox"
	"github.com/pipeflowhq/pipeflow-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "outbox-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "outbox-worker"

	logg = logger.New(logger.Options{
		ServiceName: "outbox-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	notificationsService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	registry, err := dispatch.NewRegistry(dispatch.Params{
		Notifications: notificationsService,
		Logger:        logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build handler registry", err)
		os.Exit(1)
	}

	runner, err := outbox.NewRunner(outbox.RunnerParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outbox.NewRepository(dbClient.DB()),
		Registry:   registry,
		Metrics:    metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
		BatchSize:  cfg.Jobs.BatchSize,
		MaxRetries: cfg.Jobs.MaxRetries,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox runner", err)
		os.Exit(1)
	}

	service, err := NewService(ServiceParams{
		Logger:       logg,
		Runner:       runner,
		Subscriber:   redisClient,
		PollInterval: cfg.Jobs.PollInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox worker", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": "outbox-worker",
	})
	logg.Info(ctx, "starting outbox worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "outbox worker shutting down gracefully")
}
