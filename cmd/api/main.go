package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gpuoptimizer/revenue-core/api/routes"
	"github.com/gpuoptimizer/revenue-core/internal/guard"
	"github.com/gpuoptimizer/revenue-core/internal/identity"
	"github.com/gpuoptimizer/revenue-core/internal/notify"
	"github.com/gpuoptimizer/revenue-core/internal/payments"
	"github.com/gpuoptimizer/revenue-core/internal/payments/gateway"
	"github.com/gpuoptimizer/revenue-core/internal/revenue"
	"github.com/gpuoptimizer/revenue-core/internal/usage"
	"github.com/gpuoptimizer/revenue-core/pkg/cache"
	"github.com/gpuoptimizer/revenue-core/pkg/config"
	"github.com/gpuoptimizer/revenue-core/pkg/db"
	"github.com/gpuoptimizer/revenue-core/pkg/db/pool"
	"github.com/gpuoptimizer/revenue-core/pkg/logger"
	"github.com/gpuoptimizer/revenue-core/pkg/metrics"
	"github.com/gpuoptimizer/revenue-core/pkg/migrate"
	"github.com/gpuoptimizer/revenue-core/pkg/redis"
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

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags, logg)
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

	// Redis is optional; the webhook idempotency guard degrades to
	// best-effort processing without it.
	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	} else {
		logg.Warn(context.Background(), "redis not configured, webhook replay suppression disabled")
	}

	storagePool, err := pool.New(context.Background(), pool.Options{
		Size:           cfg.Pool.Size,
		AcquireTimeout: cfg.Pool.AcquireTimeout,
		Factory: func(ctx context.Context) (*db.Client, error) {
			return db.New(ctx, cfg.DB, cfg.FeatureFlags, logg)
		},
	})
	if err != nil {
		logg.Error(context.Background(), "failed to fill storage pool", err)
		os.Exit(1)
	}
	defer storagePool.Close()

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	customerCache := cache.New(cfg.Cache.CustomerTTL)
	if cfg.Cache.SweepInterval > 0 {
		stop := customerCache.StartSweeper(cfg.Cache.SweepInterval)
		defer stop()
	}

	httpClient := &http.Client{Timeout: cfg.Gateways.RequestTimeout}
	nowpayments := gateway.NewNOWPayments(cfg.Gateways.NOWPayments, httpClient)
	gatewayRegistry := gateway.NewRegistry(
		nowpayments,
		gateway.NewFlutterwave(cfg.Gateways.Flutterwave, cfg.App.BaseURL, httpClient),
		gateway.NewPaddle(cfg.Gateways.Paddle, httpClient),
		gateway.NewDemo(),
	)

	identityRepo := identity.NewRepository(dbClient.DB())
	revenueRepo := revenue.NewRepository(dbClient.DB())

	identitySvc, err := identity.NewService(identity.ServiceParams{
		Client:      dbClient,
		Repo:        identityRepo,
		RevenueRepo: revenueRepo,
		Cache:       customerCache,
		CacheTTL:    cfg.Cache.CustomerTTL,
		Notifier:    notify.NewSMTPSender(cfg.SMTP, logg),
		Logger:      logg,
	})
	requireService(logg, "identity", err)

	usageSvc, err := usage.NewService(usage.ServiceParams{
		Pool:         storagePool,
		Repo:         usage.NewRepository(dbClient.DB()),
		Identity:     identitySvc,
		IdentityRepo: identityRepo,
		Metrics:      m,
	})
	requireService(logg, "usage", err)

	var idempotency redis.IdempotencyStore
	if redisClient != nil {
		idempotency = redisClient
	}
	paymentsSvc, err := payments.NewService(payments.ServiceParams{
		Repo:        payments.NewRepository(dbClient.DB()),
		Identity:    identitySvc,
		Registry:    gatewayRegistry,
		NOWPayments: nowpayments,
		Idempotency: idempotency,
		Metrics:     m,
		Logger:      logg,
	})
	requireService(logg, "payments", err)

	revenueSvc, err := revenue.NewService(revenueRepo)
	requireService(logg, "revenue", err)

	blocklist, err := guard.NewBlocklist(guard.NewBlocklistRepository(dbClient.DB()))
	requireService(logg, "blocklist", err)

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
		Handler: routes.NewRouter(routes.Deps{
			Config:    cfg,
			Logger:    logg,
			DB:        dbClient,
			Redis:     redisClient,
			Metrics:   m,
			Gatherer:  registry,
			Limiter:   guard.NewRateLimiter(),
			Blocklist: blocklist,
			Identity:  identitySvc,
			Usage:     usageSvc,
			Payments:  paymentsSvc,
			Revenue:   revenueSvc,
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
