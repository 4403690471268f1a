package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/homecafe-backend/api"
	"github.com/angelmondragon/homecafe-backend/api/routes"
	"github.com/angelmondragon/homecafe-backend/internal/cart"
	"github.com/angelmondragon/homecafe-backend/internal/checkout"
	"github.com/angelmondragon/homecafe-backend/internal/inventory"
	"github.com/angelmondragon/homecafe-backend/internal/notifications"
	"github.com/angelmondragon/homecafe-backend/internal/orders"
	"github.com/angelmondragon/homecafe-backend/internal/payments"
	"github.com/angelmondragon/homecafe-backend/internal/users"
	stripewebhook "github.com/angelmondragon/homecafe-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/homecafe-backend/pkg/config"
	"github.com/angelmondragon/homecafe-backend/pkg/db"
	"github.com/angelmondragon/homecafe-backend/pkg/instance"
	"github.com/angelmondragon/homecafe-backend/pkg/logger"
	"github.com/angelmondragon/homecafe-backend/pkg/metrics"
	"github.com/angelmondragon/homecafe-backend/pkg/migrate"
	"github.com/angelmondragon/homecafe-backend/pkg/pubsub"
	"github.com/angelmondragon/homecafe-backend/pkg/redis"
	pkgstripe "github.com/angelmondragon/homecafe-backend/pkg/stripe"
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
	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Env:         cfg.App.Env,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	requireResource(logg, "database", err)
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
	requireResource(logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	orderMetrics := metrics.NewOrderMetrics(prometheus.DefaultRegisterer)

	var pubsubClient *pubsub.Client
	if cfg.Notifications.TransportName() == config.NotificationTransportPubSub {
		pubsubClient, err = pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, pubsub.Options{RequireTopic: true}, logg)
		requireResource(logg, "pubsub", err)
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()
	}
	transport, err := notifications.NewTransport(cfg, pubsubClient.NotificationPublisher(), logg)
	requireResource(logg, "notification transport", err)
	if closer, ok := transport.(interface{ Close() error }); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				logg.Error(context.Background(), "error closing notification transport", err)
			}
		}()
	}
	notifier, err := notifications.NewDispatcher(transport, logg, orderMetrics)
	requireResource(logg, "notification dispatcher", err)

	conn := dbClient.DB()
	productRepo := inventory.NewRepository(conn)
	ordersRepo := orders.NewRepository(conn)

	inventoryService, err := inventory.NewService(inventory.ServiceParams{Repo: productRepo, Logger: logg, Metrics: orderMetrics})
	requireResource(logg, "inventory service", err)

	cartService, err := cart.NewService(cart.ServiceParams{
		Repo:     cart.NewRepository(conn),
		Products: productRepo,
		Orders:   ordersRepo,
		Tx:       dbClient,
		Logger:   logg,
	})
	requireResource(logg, "cart service", err)

	ordersService, err := orders.NewService(orders.ServiceParams{
		Repo:      ordersRepo,
		Tx:        dbClient,
		Inventory: inventoryService,
		Notifier:  notifier,
		Logger:    logg,
	})
	requireResource(logg, "orders service", err)

	deps := routes.Dependencies{
		DB:       dbClient,
		Redis:    redisClient,
		Products: productRepo,
		Cart:     cartService,
		Orders:   ordersService,

		HTTPMetrics: metrics.NewHTTPMetrics(prometheus.DefaultRegisterer),
	}

	// online payment stays disabled until Stripe credentials are configured
	var gateway payments.Gateway
	if strings.TrimSpace(cfg.Stripe.APIKey) != "" {
		stripeClient, err := pkgstripe.NewClient(context.Background(), cfg.Stripe, logg)
		requireResource(logg, "stripe", err)

		stripeGateway, err := payments.NewStripeGateway(stripeClient, cfg.Checkout)
		requireResource(logg, "stripe gateway", err)
		gateway = stripeGateway

		reconciler, err := payments.NewReconciler(payments.ReconcilerParams{
			Orders:    ordersRepo,
			Tx:        dbClient,
			Inventory: inventoryService,
			Notifier:  notifier,
			Logger:    logg,
			Metrics:   orderMetrics,
		})
		requireResource(logg, "payment reconciler", err)

		webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{Reconciler: reconciler, Logger: logg})
		requireResource(logg, "stripe webhook service", err)

		guard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Webhook.IdempotencyTTL, "stripe-webhook")
		requireResource(logg, "stripe webhook guard", err)

		deps.StripeSigner = stripeClient
		deps.StripeWebhooks = webhookService
		deps.StripeWebhookGuard = guard
	} else {
		logg.Warn(context.Background(), "stripe not configured; online payment disabled")
	}

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Tx:        dbClient,
		Carts:     cartService,
		Orders:    ordersRepo,
		Users:     users.NewRepository(conn),
		Inventory: inventoryService,
		Gateway:   gateway,
		Notifier:  notifier,
		Config:    cfg.Checkout,
		Logger:    logg,
		Metrics:   orderMetrics,
	})
	requireResource(logg, "checkout service", err)
	deps.Checkout = checkoutService

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := instance.ID("local")
	ctx := logg.WithFields(context.Background(), map[string]any{
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := api.NewServer(cfg, addr, routes.NewRouter(cfg, logg, deps))

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-sigCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server stopped")
}

func requireResource(logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), "failed to initialize "+name, err)
	os.Exit(1)
}
