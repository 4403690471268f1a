package main

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/segmentio/kafka-go"

	"github.com/angelmondragon/homecafe-backend/internal/notifications"
	"github.com/angelmondragon/homecafe-backend/pkg/config"
	"github.com/angelmondragon/homecafe-backend/pkg/logger"
)

type stubConsumer struct {
	kafkaRuns int
	err       error
}

func (s *stubConsumer) RunKafka(ctx context.Context, reader notifications.KafkaReader) error {
	s.kafkaRuns++
	return s.err
}

func (s *stubConsumer) RunPubSub(ctx context.Context, sub notifications.PubSubReceiver) error {
	return s.err
}

type stubReader struct {
	closed bool
}

func (r *stubReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *stubReader) Close() error {
	r.closed = true
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("error"), Output: io.Discard})
}

func kafkaConfig() *config.Config {
	return &config.Config{Notifications: config.NotificationsConfig{Transport: config.NotificationTransportKafka}}
}

func TestNewServiceValidatesSource(t *testing.T) {
	consumer := &stubConsumer{}

	if _, err := NewService(ServiceParams{Config: kafkaConfig(), Logger: testLogger(), Consumer: consumer}); err == nil {
		t.Fatal("expected error without kafka reader")
	}

	pubsubCfg := &config.Config{Notifications: config.NotificationsConfig{Transport: config.NotificationTransportPubSub}}
	if _, err := NewService(ServiceParams{Config: pubsubCfg, Logger: testLogger(), Consumer: consumer}); err == nil {
		t.Fatal("expected error without pubsub client")
	}

	logCfg := &config.Config{Notifications: config.NotificationsConfig{Transport: config.NotificationTransportLog}}
	if _, err := NewService(ServiceParams{Config: logCfg, Logger: testLogger(), Consumer: consumer, KafkaReader: &stubReader{}}); err == nil {
		t.Fatal("expected error for non-queue transport")
	}
}

func TestRunDrainsKafkaAndClosesReader(t *testing.T) {
	consumer := &stubConsumer{}
	reader := &stubReader{}
	svc, err := NewService(ServiceParams{Config: kafkaConfig(), Logger: testLogger(), Consumer: consumer, KafkaReader: reader})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if err := svc.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if consumer.kafkaRuns != 1 {
		t.Fatalf("expected one kafka run, got %d", consumer.kafkaRuns)
	}
	if !reader.closed {
		t.Fatal("expected reader to be closed")
	}
}

func TestRunSurfacesConsumerFailure(t *testing.T) {
	consumer := &stubConsumer{err: errors.New("broker unreachable")}
	svc, err := NewService(ServiceParams{Config: kafkaConfig(), Logger: testLogger(), Consumer: consumer, KafkaReader: &stubReader{}})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if err := svc.Run(context.Background()); err == nil {
		t.Fatal("expected consumer error")
	}
}
