package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kitlyhq/kitly-backend/internal/cron"
	"github.com/kitlyhq/kitly-backend/internal/entitlements"
	"github.com/kitlyhq/kitly-backend/internal/inbox"
	"github.com/kitlyhq/kitly-backend/internal/invoices"
	"github.com/kitlyhq/kitly-backend/internal/processor"
	"github.com/kitlyhq/kitly-backend/internal/subscriptions"
	"github.com/kitlyhq/kitly-backend/pkg/config"
	"github.com/kitlyhq/kitly-backend/pkg/db"
	"github.com/kitlyhq/kitly-backend/pkg/logger"
	"github.com/kitlyhq/kitly-backend/pkg/metrics"
	"github.com/kitlyhq/kitly-backend/pkg/migrate"
	"github.com/kitlyhq/kitly-backend/pkg/outbox"
	"github.com/kitlyhq/kitly-backend/pkg/redis"
	"github.com/kitlyhq/kitly-backend/pkg/stripe"
)

const workerLockTTL = 5 * time.Minute

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "worker"

	logg = logger.New(logger.Options{
		ServiceName: "worker",
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

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	gormDB := dbClient.DB()
	ledger, err := entitlements.NewLedger(entitlements.NewVersionRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create entitlement ledger", err)
		os.Exit(1)
	}
	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)
	subsRepo := subscriptions.NewRepository(gormDB)

	subscriptionHandler, err := processor.NewSubscriptionHandler(processor.SubscriptionHandlerParams{
		Subscriptions: subsRepo,
		Ledger:        ledger,
		Outbox:        outboxService,
		Plans:         stripeClient,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create subscription handler", err)
		os.Exit(1)
	}
	invoiceHandler, err := processor.NewInvoiceHandler(processor.InvoiceHandlerParams{
		Invoices:      invoices.NewRepository(gormDB),
		Subscriptions: subsRepo,
		Ledger:        ledger,
		Outbox:        outboxService,
		Logger:        logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create invoice handler", err)
		os.Exit(1)
	}

	handlerRegistry := processor.NewRegistry()
	handlerRegistry.Register(processor.EventTypeSubscriptionCreated, subscriptionHandler)
	handlerRegistry.Register(processor.EventTypeSubscriptionUpdated, subscriptionHandler)
	handlerRegistry.Register(processor.EventTypeSubscriptionDeleted, subscriptionHandler)
	handlerRegistry.Register(processor.EventTypeInvoicePaymentSucceeded, invoiceHandler)
	handlerRegistry.Register(processor.EventTypeInvoicePaymentFailed, invoiceHandler)

	processorService, err := processor.NewService(processor.ServiceParams{
		Config:   cfg,
		Logger:   logg,
		DB:       dbClient,
		Inbox:    inbox.NewRepository(gormDB),
		Registry: handlerRegistry,
		Metrics:  metrics.NewSweepMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create processor service", err)
		os.Exit(1)
	}

	sweepLock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("inbox-sweep"), workerLockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create sweep lock", err)
		os.Exit(1)
	}
	retryLock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("inbox-retry"), workerLockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create retry lock", err)
		os.Exit(1)
	}

	service, err := NewService(ServiceParams{
		Config:    cfg,
		Logger:    logg,
		DB:        dbClient,
		Redis:     redisClient,
		Processor: processorService,
		SweepLock: sweepLock,
		RetryLock: retryLock,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create worker service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": "worker",
	})
	logg.Info(ctx, "starting worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "worker shutting down gracefully")
}
