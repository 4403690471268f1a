package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/homecafe-backend/internal/cart"
	"github.com/angelmondragon/homecafe-backend/internal/cron"
	"github.com/angelmondragon/homecafe-backend/internal/orders"
	"github.com/angelmondragon/homecafe-backend/pkg/config"
	"github.com/angelmondragon/homecafe-backend/pkg/db"
	"github.com/angelmondragon/homecafe-backend/pkg/instance"
	"github.com/angelmondragon/homecafe-backend/pkg/logger"
	"github.com/angelmondragon/homecafe-backend/pkg/metrics"
	"github.com/angelmondragon/homecafe-backend/pkg/migrate"
	"github.com/angelmondragon/homecafe-backend/pkg/redis"
)

const lockKeyFormat = "hc:cron-worker:lock:%s"

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Env:         cfg.App.Env,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
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

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	orderMetrics := metrics.NewOrderMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	cartGC, err := cron.NewCartGCJob(cron.CartGCJobParams{
		Logger:    logg,
		Carts:     cart.NewRepository(dbClient.DB()),
		Metrics:   orderMetrics,
		TTL:       cfg.Cart.GuestCartTTL,
		BatchSize: cfg.Cart.GCBatchSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cart gc job", err)
		os.Exit(1)
	}
	pendingAudit, err := cron.NewPendingOrderAuditJob(cron.PendingOrderAuditJobParams{
		Logger:  logg,
		Orders:  orders.NewRepository(dbClient.DB()),
		Metrics: orderMetrics,
		MaxAge:  cfg.Cron.PendingOrderAuditAge,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create pending order audit job", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry(pendingAudit)
	if err := registry.Schedule(cartGC, cfg.Cron.CartGCEvery); err != nil {
		logg.Error(context.Background(), "failed to schedule cart gc job", err)
		os.Exit(1)
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.ID("local"),
	})

	if *once {
		logg.Info(ctx, "running single cron cycle")
		if err := service.RunOnce(ctx); err != nil {
			logg.Error(ctx, "cron cycle failed", err)
			os.Exit(1)
		}
		return
	}

	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
