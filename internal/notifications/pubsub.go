package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/homecafe-backend/pkg/config"
)

type messagePublisher interface {
	Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error)
}

type gcpPublisher struct {
	publisher *pubsub.Publisher
}

func (p gcpPublisher) Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error) {
	return p.publisher.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs}).Get(ctx)
}

// PubSubTransport queues messages on a Pub/Sub topic.
type PubSubTransport struct {
	publisher messagePublisher
}

func NewPubSubTransport(publisher *pubsub.Publisher) (*PubSubTransport, error) {
	if publisher == nil {
		return nil, fmt.Errorf("pubsub publisher required")
	}
	return &PubSubTransport{publisher: gcpPublisher{publisher: publisher}}, nil
}

func (t *PubSubTransport) Name() string { return config.NotificationTransportPubSub }

func (t *PubSubTransport) Deliver(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if _, err := t.publisher.Publish(ctx, data, map[string]string{"template": msg.Template.String()}); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}
