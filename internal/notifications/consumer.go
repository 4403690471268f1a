package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/segmentio/kafka-go"

	"github.com/angelmondragon/homecafe-backend/pkg/config"
	"github.com/angelmondragon/homecafe-backend/pkg/logger"
)

const (
	kafkaReadBackoff    = time.Second
	kafkaReadBackoffMax = 30 * time.Second
)

// errPoison marks payloads that can never be delivered and must not be redelivered.
var errPoison = errors.New("undeliverable notification payload")

// Consumer drains queued messages and sends them through a direct transport (SMTP).
type Consumer struct {
	sender      Transport
	logg        *logger.Logger
	readBackoff time.Duration
}

func NewConsumer(sender Transport, logg *logger.Logger) (*Consumer, error) {
	if sender == nil {
		return nil, fmt.Errorf("sender transport required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{sender: sender, logg: logg, readBackoff: kafkaReadBackoff}, nil
}

func (c *Consumer) handle(ctx context.Context, payload []byte) error {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("%w: decode: %v", errPoison, err)
	}
	if msg.To == "" || !msg.Template.IsValid() {
		return fmt.Errorf("%w: missing recipient or unknown template %q", errPoison, msg.Template)
	}
	logCtx := c.logg.WithFields(ctx, map[string]any{"to": msg.To, "template": msg.Template.String()})
	if err := c.sender.Deliver(ctx, msg); err != nil {
		return err
	}
	c.logg.Info(logCtx, "queued notification sent")
	return nil
}

// KafkaReader is the part of *kafka.Reader the consumer uses.
type KafkaReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// PubSubReceiver is the part of *pubsub.Subscriber the consumer uses.
type PubSubReceiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

// NewKafkaReader builds the consumer-group reader for the notification topic.
func NewKafkaReader(cfg config.KafkaConfig) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:           cfg.Brokers,
		GroupID:           cfg.NotificationGroupID,
		Topic:             cfg.NotificationTopic,
		MinBytes:          10e3,
		MaxBytes:          10e6,
		CommitInterval:    time.Second,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    30 * time.Second,
	})
}

// RunKafka reads until ctx is cancelled. Failed sends are logged and skipped. Read errors
// back off, doubling up to kafkaReadBackoffMax, until a read succeeds.
func (c *Consumer) RunKafka(ctx context.Context, reader KafkaReader) error {
	c.logg.Info(ctx, "kafka notification consumer started")
	wait := c.readBackoff
	for {
		m, err := reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			c.logg.Error(c.logg.WithField(ctx, "retry_in_ms", wait.Milliseconds()), "read notification message", err)
			if !sleepCtx(ctx, wait) {
				return nil
			}
			wait = min(wait*2, kafkaReadBackoffMax)
			continue
		}
		wait = c.readBackoff
		if err := c.handle(ctx, m.Value); err != nil {
			logCtx := c.logg.WithFields(ctx, map[string]any{"partition": m.Partition, "offset": m.Offset})
			c.logg.Error(logCtx, "queued notification dropped", err)
		}
	}
}

// RunPubSub receives until ctx is cancelled. Poison payloads are acked; send failures
// are nacked for redelivery.
func (c *Consumer) RunPubSub(ctx context.Context, sub PubSubReceiver) error {
	if sub == nil {
		return fmt.Errorf("pubsub subscriber required")
	}
	c.logg.Info(ctx, "pubsub notification consumer started")
	return sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.ackPubSub(ctx, msg.ID, msg.Data) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

func (c *Consumer) ackPubSub(ctx context.Context, id string, data []byte) bool {
	err := c.handle(ctx, data)
	if err == nil {
		return true
	}
	logCtx := c.logg.WithField(ctx, "message_id", id)
	c.logg.Error(logCtx, "queued notification failed", err)
	return errors.Is(err, errPoison)
}

// sleepCtx waits for d and reports false when ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
