package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/kitlyhq/kitly-backend/api/routes"
	"github.com/kitlyhq/kitly-backend/internal/entitlements"
	"github.com/kitlyhq/kitly-backend/internal/inbox"
	"github.com/kitlyhq/kitly-backend/internal/memberships"
	"github.com/kitlyhq/kitly-backend/internal/session"
	"github.com/kitlyhq/kitly-backend/internal/subscriptions"
	"github.com/kitlyhq/kitly-backend/internal/tenants"
	"github.com/kitlyhq/kitly-backend/pkg/config"
	"github.com/kitlyhq/kitly-backend/pkg/db"
	"github.com/kitlyhq/kitly-backend/pkg/logger"
	"github.com/kitlyhq/kitly-backend/pkg/migrate"
	"github.com/kitlyhq/kitly-backend/pkg/outbox"
	"github.com/kitlyhq/kitly-backend/pkg/redis"
	"github.com/kitlyhq/kitly-backend/pkg/stripe"
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

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	gormDB := dbClient.DB()
	inboxRepo := inbox.NewRepository(gormDB)
	inboxStore, err := inbox.NewStore(inboxRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create inbox store", err)
		os.Exit(1)
	}

	ledger, err := entitlements.NewLedger(entitlements.NewVersionRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create entitlement ledger", err)
		os.Exit(1)
	}

	catalog := entitlements.NewCatalog()
	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)
	subsRepo := subscriptions.NewRepository(gormDB)
	membershipsRepo := memberships.NewRepository(gormDB)
	overridesRepo := entitlements.NewOverrideRepository(gormDB)

	computer, err := entitlements.NewComputer(entitlements.ComputerParams{
		Catalog:       catalog,
		Subscriptions: subsRepo,
		Overrides:     overridesRepo,
		Ledger:        ledger,
		Seats:         membershipsRepo,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create entitlement computer", err)
		os.Exit(1)
	}

	overrideService, err := entitlements.NewService(entitlements.ServiceParams{
		DB:            dbClient,
		Overrides:     overridesRepo,
		Ledger:        ledger,
		Outbox:        outboxService,
		Subscriptions: subsRepo,
		Logger:        logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create override service", err)
		os.Exit(1)
	}

	membershipService, err := memberships.NewService(memberships.ServiceParams{
		DB:     dbClient,
		Repo:   membershipsRepo,
		Ledger: ledger,
		Outbox: outboxService,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create membership service", err)
		os.Exit(1)
	}

	sessionService, err := session.NewService(session.ServiceParams{
		Config:      cfg,
		Logger:      logg,
		Ledger:      ledger,
		Memberships: membershipsRepo,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create session service", err)
		os.Exit(1)
	}

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
			Config:       cfg,
			Logger:       logg,
			DBPinger:     dbClient,
			RedisPinger:  redisClient,
			StripeClient: stripeClient,
			InboxStore:   inboxStore,
			InboxRepo:    inboxRepo,
			Catalog:      catalog,
			Computer:     computer,
			Overrides:    overrideService,
			Sessions:     sessionService,
			Tenants:      tenants.NewRepository(gormDB),
			Memberships:  membershipService,
			Ledger:       ledger,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
