package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomail "gopkg.in/gomail.v2"

	"github.com/angelmondragon/homecafe-backend/pkg/config"
	"github.com/angelmondragon/homecafe-backend/pkg/db/models"
	"github.com/angelmondragon/homecafe-backend/pkg/enums"
	"github.com/angelmondragon/homecafe-backend/pkg/logger"
)

type recordingTransport struct {
	messages []Message
	err      error
}

func (r *recordingTransport) Name() string { return "recording" }

func (r *recordingTransport) Deliver(_ context.Context, msg Message) error {
	r.messages = append(r.messages, msg)
	return r.err
}

func sampleOrder(delivery enums.DeliveryType, payment enums.PaymentMethod, status enums.OrderStatus) *models.Order {
	return &models.Order{
		ID:            uuid.New(),
		Status:        status,
		PaymentMethod: payment,
		DeliveryType:  delivery,
		DeliveryCost:  200,
		GoodsTotal:    500,
		BonusSpent:    50,
		Name:          "Ann",
		Email:         "ann@example.com",
		Address:       "1 Main St",
		Items: []models.OrderItem{
			{ProductName: "latte", ProductPrice: 250, ProductQuantity: 2},
		},
	}
}

func TestSelectTable(t *testing.T) {
	cases := []struct {
		key  Key
		want enums.NotificationTemplate
	}{
		{Key{enums.DeliveryTypePickup, enums.PaymentMethodOnline, enums.OrderStatusPending}, enums.NotificationPendingPayment},
		{Key{enums.DeliveryTypeDelivery, enums.PaymentMethodOnline, enums.OrderStatusPending}, enums.NotificationPendingPayment},
		{Key{enums.DeliveryTypePickup, enums.PaymentMethodOffline, enums.OrderStatusPending}, enums.NotificationAcceptedForPreparation},
		{Key{enums.DeliveryTypeDelivery, enums.PaymentMethodOnline, enums.OrderStatusSucceeded}, enums.NotificationPaymentConfirmed},
		{Key{enums.DeliveryTypeDelivery, enums.PaymentMethodOffline, enums.OrderStatusDelivery}, enums.NotificationInTransit},
		{Key{enums.DeliveryTypePickup, enums.PaymentMethodOnline, enums.OrderStatusReady}, enums.NotificationReadyForPickup},
		{Key{enums.DeliveryTypePickup, enums.PaymentMethodOffline, enums.OrderStatusCompleted}, enums.NotificationCompleted},
		{Key{enums.DeliveryTypeDelivery, enums.PaymentMethodOnline, enums.OrderStatusCancelled}, enums.NotificationCancelled},
	}
	for _, tc := range cases {
		got, err := Select(tc.key)
		require.NoError(t, err, "key %+v", tc.key)
		assert.Equal(t, tc.want, got, "key %+v", tc.key)
	}
}

func TestSelectUnmapped(t *testing.T) {
	unmapped := []Key{
		{enums.DeliveryTypePickup, enums.PaymentMethodOffline, enums.OrderStatusSucceeded},
		{enums.DeliveryTypePickup, enums.PaymentMethodOffline, enums.OrderStatusDelivery},
		{enums.DeliveryTypeDelivery, enums.PaymentMethodOnline, enums.OrderStatusReady},
	}
	for _, k := range unmapped {
		_, err := Select(k)
		assert.ErrorIs(t, err, ErrUnmappedTransition, "key %+v", k)
	}
}

func TestEveryTemplateHasSubjectAndRenders(t *testing.T) {
	renderer, err := NewRenderer()
	require.NoError(t, err)

	order := sampleOrder(enums.DeliveryTypeDelivery, enums.PaymentMethodOnline, enums.OrderStatusPending)
	for _, tmpl := range enums.NotificationTemplates() {
		assert.NotEqual(t, "Order update", Subject(tmpl), "template %s", tmpl)

		msg := BuildMessage(order, tmpl, Extras{ConfirmationURL: "https://pay.example/123"})
		html, plain, err := renderer.Render(msg)
		require.NoError(t, err, "template %s", tmpl)
		assert.Contains(t, html, order.ID.String())
		assert.Contains(t, plain, "latte x2: 500")
		assert.Contains(t, plain, "Total: 650")
	}
}

func TestRenderAfterQueueRoundTrip(t *testing.T) {
	renderer, err := NewRenderer()
	require.NoError(t, err)
	order := sampleOrder(enums.DeliveryTypePickup, enums.PaymentMethodOnline, enums.OrderStatusPending)

	raw, err := json.Marshal(BuildMessage(order, enums.NotificationPendingPayment, Extras{ConfirmationURL: "https://pay.example/x"}))
	require.NoError(t, err)
	var decoded Message
	require.NoError(t, json.Unmarshal(raw, &decoded))

	html, plain, err := renderer.Render(decoded)
	require.NoError(t, err)
	assert.Contains(t, html, `href="https://pay.example/x"`)
	assert.Contains(t, plain, "latte x2: 500")
}

func TestMoneyFormatsDecodedAmounts(t *testing.T) {
	assert.Equal(t, "1000000", money(float64(1000000)))
	assert.Equal(t, "650", money(650))
	assert.Equal(t, "42", money(json.Number("42")))
	assert.Equal(t, "n/a", money("n/a"))
}

func TestDispatchSwallowsTransportFailure(t *testing.T) {
	transport := &recordingTransport{err: errors.New("smtp down")}
	d, err := NewDispatcher(transport, logger.Nop(), nil)
	require.NoError(t, err)

	order := sampleOrder(enums.DeliveryTypePickup, enums.PaymentMethodOffline, enums.OrderStatusReady)
	require.NoError(t, d.Dispatch(context.Background(), order, Extras{}))
	require.Len(t, transport.messages, 1)
	assert.Equal(t, enums.NotificationReadyForPickup, transport.messages[0].Template)
	assert.Equal(t, "ann@example.com", transport.messages[0].To)
}

func TestDispatchUnmappedIsError(t *testing.T) {
	transport := &recordingTransport{}
	d, err := NewDispatcher(transport, logger.Nop(), nil)
	require.NoError(t, err)

	order := sampleOrder(enums.DeliveryTypePickup, enums.PaymentMethodOffline, enums.OrderStatusSucceeded)
	err = d.Dispatch(context.Background(), order, Extras{})
	assert.ErrorIs(t, err, ErrUnmappedTransition)
	assert.Empty(t, transport.messages)
}

func TestDispatchSkipsOrderWithoutEmail(t *testing.T) {
	transport := &recordingTransport{}
	d, err := NewDispatcher(transport, nil, nil)
	require.NoError(t, err)

	order := sampleOrder(enums.DeliveryTypePickup, enums.PaymentMethodOffline, enums.OrderStatusCompleted)
	order.Email = ""
	require.NoError(t, d.Dispatch(context.Background(), order, Extras{}))
	assert.Empty(t, transport.messages)
}

type fakeMailSender struct {
	sent []*gomail.Message
}

func (f *fakeMailSender) DialAndSend(m ...*gomail.Message) error {
	f.sent = append(f.sent, m...)
	return nil
}

func TestSMTPTransportBuildsMultipartMail(t *testing.T) {
	renderer, err := NewRenderer()
	require.NoError(t, err)
	sender := &fakeMailSender{}
	transport, err := newSMTPTransport("orders@homecafe.local", renderer, sender)
	require.NoError(t, err)

	msg := BuildMessage(sampleOrder(enums.DeliveryTypePickup, enums.PaymentMethodOffline, enums.OrderStatusCompleted), enums.NotificationCompleted, Extras{})
	require.NoError(t, transport.Deliver(context.Background(), msg))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, []string{"ann@example.com"}, sender.sent[0].GetHeader("To"))
	assert.Equal(t, []string{Subject(enums.NotificationCompleted)}, sender.sent[0].GetHeader("Subject"))

	_, err = NewSMTPTransport(config.NotificationsConfig{}, renderer)
	assert.Error(t, err)
}

type fakeKafkaWriter struct {
	messages []kafka.Message
}

func (f *fakeKafkaWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeKafkaWriter) Close() error { return nil }

func TestKafkaTransportEncodesMessage(t *testing.T) {
	writer := &fakeKafkaWriter{}
	transport := &KafkaTransport{writer: writer, timeout: time.Second}

	msg := BuildMessage(sampleOrder(enums.DeliveryTypeDelivery, enums.PaymentMethodOffline, enums.OrderStatusDelivery), enums.NotificationInTransit, Extras{})
	require.NoError(t, transport.Deliver(context.Background(), msg))
	require.Len(t, writer.messages, 1)
	assert.Equal(t, "ann@example.com", string(writer.messages[0].Key))

	var decoded Message
	require.NoError(t, json.Unmarshal(writer.messages[0].Value, &decoded))
	assert.Equal(t, enums.NotificationInTransit, decoded.Template)

	_, err := NewKafkaTransport(config.KafkaConfig{})
	assert.Error(t, err)
}

type fakePublisher struct {
	data  [][]byte
	attrs []map[string]string
	err   error
}

func (f *fakePublisher) Publish(_ context.Context, data []byte, attrs map[string]string) (string, error) {
	f.data = append(f.data, data)
	f.attrs = append(f.attrs, attrs)
	return "msg-1", f.err
}

func TestPubSubTransportPublishes(t *testing.T) {
	pub := &fakePublisher{}
	transport := &PubSubTransport{publisher: pub}

	msg := BuildMessage(sampleOrder(enums.DeliveryTypePickup, enums.PaymentMethodOnline, enums.OrderStatusCancelled), enums.NotificationCancelled, Extras{})
	require.NoError(t, transport.Deliver(context.Background(), msg))
	require.Len(t, pub.data, 1)
	assert.Equal(t, "cancelled", pub.attrs[0]["template"])

	pub.err = errors.New("unavailable")
	assert.Error(t, transport.Deliver(context.Background(), msg))

	_, err := NewPubSubTransport(nil)
	assert.Error(t, err)
}

func TestNewTransportSelectsByConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Notifications.Transport = "log"
	transport, err := NewTransport(cfg, nil, logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, config.NotificationTransportLog, transport.Name())

	cfg.Notifications.Transport = "pubsub"
	_, err = NewTransport(cfg, nil, logger.Nop())
	assert.Error(t, err, "pubsub needs a publisher")

	cfg.Notifications.Transport = "fax"
	_, err = NewTransport(cfg, nil, logger.Nop())
	assert.Error(t, err)
}

type fakeKafkaReader struct {
	messages []kafka.Message
	cancel   context.CancelFunc
}

func (f *fakeKafkaReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(f.messages) == 0 {
		f.cancel()
		return kafka.Message{}, ctx.Err()
	}
	m := f.messages[0]
	f.messages = f.messages[1:]
	return m, nil
}

func (f *fakeKafkaReader) Close() error { return nil }

func TestConsumerRunKafkaDeliversValidMessages(t *testing.T) {
	sender := &recordingTransport{}
	consumer, err := NewConsumer(sender, logger.Nop())
	require.NoError(t, err)

	valid, err := json.Marshal(BuildMessage(sampleOrder(enums.DeliveryTypePickup, enums.PaymentMethodOffline, enums.OrderStatusCompleted), enums.NotificationCompleted, Extras{}))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	reader := &fakeKafkaReader{
		cancel: cancel,
		messages: []kafka.Message{
			{Value: []byte("{not json")},
			{Value: []byte(`{"to":"x@example.com","template":"welcome"}`)},
			{Value: valid},
		},
	}
	require.NoError(t, consumer.RunKafka(ctx, reader))
	require.Len(t, sender.messages, 1)
	assert.Equal(t, enums.NotificationCompleted, sender.messages[0].Template)
}

type failingKafkaReader struct {
	calls  []time.Time
	stopAt int
	cancel context.CancelFunc
}

func (f *failingKafkaReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	f.calls = append(f.calls, time.Now())
	if len(f.calls) == f.stopAt {
		f.cancel()
		return kafka.Message{}, ctx.Err()
	}
	return kafka.Message{}, errors.New("broker unreachable")
}

func (f *failingKafkaReader) Close() error { return nil }

func TestConsumerRunKafkaBacksOffOnReadErrors(t *testing.T) {
	consumer, err := NewConsumer(&recordingTransport{}, logger.Nop())
	require.NoError(t, err)
	consumer.readBackoff = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	reader := &failingKafkaReader{stopAt: 3, cancel: cancel}
	require.NoError(t, consumer.RunKafka(ctx, reader))

	require.Len(t, reader.calls, 3)
	assert.GreaterOrEqual(t, reader.calls[1].Sub(reader.calls[0]), 10*time.Millisecond)
	assert.GreaterOrEqual(t, reader.calls[2].Sub(reader.calls[1]), 20*time.Millisecond, "backoff doubles")
}

func TestConsumerRunKafkaStopsDuringBackoff(t *testing.T) {
	consumer, err := NewConsumer(&recordingTransport{}, logger.Nop())
	require.NoError(t, err)
	consumer.readBackoff = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	reader := &failingKafkaReader{stopAt: -1, cancel: cancel}

	done := make(chan error, 1)
	go func() { done <- consumer.RunKafka(ctx, reader) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("consumer kept sleeping after cancellation")
	}
	assert.Len(t, reader.calls, 1)
}

func TestConsumerPubSubAckDecision(t *testing.T) {
	sender := &recordingTransport{}
	consumer, err := NewConsumer(sender, logger.Nop())
	require.NoError(t, err)

	assert.True(t, consumer.ackPubSub(context.Background(), "1", []byte("garbage")), "poison payload is acked")

	valid := `{"to":"a@example.com","subject":"s","template":"completed","data":{"items":[]}}`
	assert.True(t, consumer.ackPubSub(context.Background(), "2", []byte(valid)))

	sender.err = errors.New("smtp down")
	assert.False(t, consumer.ackPubSub(context.Background(), "3", []byte(valid)), "send failure is nacked")
	assert.True(t, strings.Contains(sender.messages[0].To, "@"))
}
