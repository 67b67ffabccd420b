package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pipeflowhq/pipeflow-backend/internal/cron"
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
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	requireResource(ctx, logg, "migrations", migrate.MaybeRunDev(ctx, cfg, logg, dbClient))

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	outboxRepo := outbox.NewRepository(dbClient.DB())
	notificationsRepo := notifications.NewRepository(dbClient.DB())

	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outboxRepo,
		Retention:  cfg.Jobs.RetentionDays,
	})
	requireResource(ctx, logg, "outbox retention job", err)

	cleanupJob, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:     logg,
		Repository: notificationsRepo,
	})
	requireResource(ctx, logg, "notification cleanup job", err)

	registry := cron.NewRegistry(retentionJob, cleanupJob)

	if cfg.Jobs.StaleReclaim {
		reclaimJob, err := cron.NewStaleReclaimJob(cron.StaleReclaimJobParams{
			Logger:     logg,
			Repository: outboxRepo,
			Timeout:    cfg.Jobs.ProcessingTimeout,
		})
		requireResource(ctx, logg, "stale reclaim job", err)
		registry.Register(reclaimJob)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron"), 0)
	requireResource(ctx, logg, "cron lock", err)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	requireResource(ctx, logg, "cron service", err)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": "cron-worker",
	})
	logg.Info(runCtx, "starting cron worker")

	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(runCtx, "cron worker shutting down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(logg.WithField(ctx, "resource", name), "failed to bootstrap", err)
	os.Exit(1)
}
