package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/homecafe-backend/internal/notifications"
	"github.com/angelmondragon/homecafe-backend/pkg/config"
	"github.com/angelmondragon/homecafe-backend/pkg/instance"
	"github.com/angelmondragon/homecafe-backend/pkg/logger"
	"github.com/angelmondragon/homecafe-backend/pkg/pubsub"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "notification-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "notification-worker"

	logg = logger.New(logger.Options{
		ServiceName: "notification-worker",
		Env:         cfg.App.Env,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	sender, err := buildSender(cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build notification sender", err)
		os.Exit(1)
	}
	consumer, err := notifications.NewConsumer(sender, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notification consumer", err)
		os.Exit(1)
	}

	params := ServiceParams{Config: cfg, Logger: logg, Consumer: consumer}
	switch cfg.Notifications.TransportName() {
	case config.NotificationTransportKafka:
		params.KafkaReader = notifications.NewKafkaReader(cfg.Kafka)
	case config.NotificationTransportPubSub:
		client, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, pubsub.Options{RequireSubscription: true}, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer func() {
			if err := client.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()
		params.PubSub = client
	}

	service, err := NewService(params)
	if err != nil {
		logg.Error(context.Background(), "failed to create notification worker", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.ID("local"),
		"source":      cfg.Notifications.TransportName(),
	})
	logg.Info(ctx, "starting notification worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "notification worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "notification worker shutting down gracefully")
}

// buildSender delivers over SMTP when a host is configured and only logs otherwise.
func buildSender(cfg *config.Config, logg *logger.Logger) (notifications.Transport, error) {
	if strings.TrimSpace(cfg.Notifications.SMTPHost) == "" {
		logg.Warn(context.Background(), "smtp host not configured; queued notifications will only be logged")
		return notifications.NewLogTransport(logg), nil
	}
	renderer, err := notifications.NewRenderer()
	if err != nil {
		return nil, err
	}
	return notifications.NewSMTPTransport(cfg.Notifications, renderer)
}
