package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/homecafe-backend/internal/notifications"
	"github.com/angelmondragon/homecafe-backend/pkg/config"
	"github.com/angelmondragon/homecafe-backend/pkg/logger"
	"github.com/angelmondragon/homecafe-backend/pkg/pubsub"
)

type consumer interface {
	RunKafka(ctx context.Context, reader notifications.KafkaReader) error
	RunPubSub(ctx context.Context, sub notifications.PubSubReceiver) error
}

type ServiceParams struct {
	Config      *config.Config
	Logger      *logger.Logger
	Consumer    consumer
	KafkaReader notifications.KafkaReader
	PubSub      *pubsub.Client
}

// Service drains the queue selected by the notification transport.
type Service struct {
	cfg      *config.Config
	logg     *logger.Logger
	consumer consumer
	reader   notifications.KafkaReader
	pubsub   *pubsub.Client
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Consumer == nil {
		return nil, errors.New("notification consumer is required")
	}
	switch params.Config.Notifications.TransportName() {
	case config.NotificationTransportKafka:
		if params.KafkaReader == nil {
			return nil, errors.New("kafka reader is required")
		}
	case config.NotificationTransportPubSub:
		if params.PubSub == nil {
			return nil, errors.New("pubsub client is required")
		}
	default:
		return nil, fmt.Errorf("notification transport %q is not a queue", params.Config.Notifications.Transport)
	}
	return &Service{
		cfg:      params.Config,
		logg:     params.Logger,
		consumer: params.Consumer,
		reader:   params.KafkaReader,
		pubsub:   params.PubSub,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	if s.pubsub == nil {
		return nil
	}
	if err := s.pubsub.Ping(ctx); err != nil {
		s.logg.Error(ctx, "pubsub ping failed", err)
		return fmt.Errorf("pubsub ping failed: %w", err)
	}
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	var err error
	switch s.cfg.Notifications.TransportName() {
	case config.NotificationTransportKafka:
		defer func() {
			if cerr := s.reader.Close(); cerr != nil {
				s.logg.Error(ctx, "error closing kafka reader", cerr)
			}
		}()
		err = s.consumer.RunKafka(ctx, s.reader)
	case config.NotificationTransportPubSub:
		sub := s.pubsub.NotificationSubscription()
		if sub == nil {
			return errors.New("pubsub notification subscription not configured")
		}
		err = s.consumer.RunPubSub(ctx, sub)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logg.Error(ctx, "consumer stopped unexpectedly", err)
		return err
	}
	return nil
}
