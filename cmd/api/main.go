package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pipeflowhq/pipeflow-backend/api/routes"
	"github.com/pipeflowhq/pipeflow-backend/internal/contacts"
	"github.com/pipeflowhq/pipeflow-backend/internal/dispatch"
	"github.com/pipeflowhq/pipeflow-backend/internal/invoices"
	"github.com/pipeflowhq/pipeflow-backend/internal/notifications"
	"github.com/pipeflowhq/pipeflow-backend/internal/opportunities"
	"github.com/pipeflowhq/pipeflow-backend/internal/pipelines"
	"github.com/pipeflowhq/pipeflow-backend/pkg/config"
	"github.com/pipeflowhq/pipeflow-backend/pkg/db"
	"github.com/pipeflowhq/pipeflow-backend/pkg/logger"
	"github.com/pipeflowhq/pipeflow-backend/pkg/metrics"
	"github.com/pipeflowhq/pipeflow-backend/pkg/migrate"
	"github.com/pipeflowhq/pipeflow-backend/pkg/outbox"
	"github.com/pipeflowhq/pipeflow-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	outboxRepo := outbox.NewRepository(dbClient.DB())
	publisher := outbox.NewService(outboxRepo, outbox.NewRedisNotifier(redisClient), logg)

	contactsService, err := contacts.NewService(contacts.ServiceParams{
		Repository: contacts.NewRepository(dbClient.DB()),
		DB:         dbClient,
		Publisher:  publisher,
	})
	requireService(logg, "contacts", err)

	pipelinesService, err := pipelines.NewService(pipelines.NewRepository(dbClient.DB()))
	requireService(logg, "pipelines", err)

	opportunitiesService, err := opportunities.NewService(opportunities.ServiceParams{
		Repository:    opportunities.NewRepository(dbClient.DB()),
		PipelinesRepo: pipelines.NewRepository(dbClient.DB()),
		DB:            dbClient,
		Publisher:     publisher,
	})
	requireService(logg, "opportunities", err)

	invoicesService, err := invoices.NewService(invoices.ServiceParams{
		Repository: invoices.NewRepository(dbClient.DB()),
		DB:         dbClient,
		Publisher:  publisher,
	})
	requireService(logg, "invoices", err)

	notificationsService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	requireService(logg, "notifications", err)

	registry, err := dispatch.NewRegistry(dispatch.Params{
		Notifications: notificationsService,
		Logger:        logg,
	})
	requireService(logg, "dispatch registry", err)

	runner, err := outbox.NewRunner(outbox.RunnerParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outboxRepo,
		Registry:   registry,
		Metrics:    metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
		BatchSize:  cfg.Jobs.BatchSize,
		MaxRetries: cfg.Jobs.MaxRetries,
	})
	requireService(logg, "outbox runner", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:        cfg,
			Logger:        logg,
			DB:            dbClient,
			Redis:         redisClient,
			Contacts:      contactsService,
			Pipelines:     pipelinesService,
			Opportunities: opportunitiesService,
			Invoices:      invoicesService,
			Notifications: notificationsService,
			OutboxRunner:  runner,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func requireService(logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	ctx := logg.WithField(context.Background(), "service", name)
	logg.Error(ctx, "failed to wire service", err)
	os.Exit(1)
}
