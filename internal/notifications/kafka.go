package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/angelmondragon/homecafe-backend/pkg/config"
)

type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaTransport queues messages for the notification worker.
type KafkaTransport struct {
	writer  kafkaWriter
	timeout time.Duration
}

func NewKafkaTransport(cfg config.KafkaConfig) (*KafkaTransport, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers required")
	}
	if cfg.NotificationTopic == "" {
		return nil, fmt.Errorf("kafka notification topic required")
	}
	return &KafkaTransport{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.NotificationTopic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
		},
		timeout: 5 * time.Second,
	}, nil
}

func (t *KafkaTransport) Name() string { return config.NotificationTransportKafka }

// Deliver keys by recipient so one customer's messages stay ordered on a partition.
func (t *KafkaTransport) Deliver(ctx context.Context, msg Message) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.To),
		Value: value,
		Headers: []kafka.Header{
			{Key: "template", Value: []byte(msg.Template)},
		},
	})
}

func (t *KafkaTransport) Close() error {
	return t.writer.Close()
}
