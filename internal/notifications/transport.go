package notifications

import (
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/homecafe-backend/pkg/config"
	"github.com/angelmondragon/homecafe-backend/pkg/logger"
)

// NewTransport builds the transport selected by configuration. publisher is only used for
// the pubsub transport and may be nil otherwise.
func NewTransport(cfg *config.Config, publisher *pubsub.Publisher, logg *logger.Logger) (Transport, error) {
	switch cfg.Notifications.TransportName() {
	case config.NotificationTransportLog:
		return NewLogTransport(logg), nil
	case config.NotificationTransportSMTP:
		renderer, err := NewRenderer()
		if err != nil {
			return nil, err
		}
		return NewSMTPTransport(cfg.Notifications, renderer)
	case config.NotificationTransportKafka:
		return NewKafkaTransport(cfg.Kafka)
	case config.NotificationTransportPubSub:
		return NewPubSubTransport(publisher)
	default:
		return nil, fmt.Errorf("unknown notification transport %q", cfg.Notifications.Transport)
	}
}
