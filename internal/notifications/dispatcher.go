package notifications

import (
	"context"
	"fmt"

	"github.com/angelmondragon/homecafe-backend/pkg/db/models"
	"github.com/angelmondragon/homecafe-backend/pkg/logger"
	"github.com/angelmondragon/homecafe-backend/pkg/metrics"
)

// Transport hands a message to its delivery channel.
type Transport interface {
	Name() string
	Deliver(ctx context.Context, msg Message) error
}

// Dispatcher picks the template for an order's current state and sends it. Delivery is
// best effort: transport failures are logged and never returned.
type Dispatcher struct {
	transport Transport
	logg      *logger.Logger
	metrics   *metrics.OrderMetrics
}

func NewDispatcher(transport Transport, logg *logger.Logger, m *metrics.OrderMetrics) (*Dispatcher, error) {
	if transport == nil {
		return nil, fmt.Errorf("notification transport required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Dispatcher{transport: transport, logg: logg, metrics: m}, nil
}

// Dispatch returns an error only when the order state has no template.
func (d *Dispatcher) Dispatch(ctx context.Context, order *models.Order, extras Extras) error {
	if order == nil {
		return fmt.Errorf("order required")
	}
	tmpl, err := Select(Key{
		DeliveryType:  order.DeliveryType,
		PaymentMethod: order.PaymentMethod,
		Status:        order.Status,
	})
	if err != nil {
		d.metrics.IncNotification("unmapped", "unmapped")
		return err
	}

	logCtx := d.logg.WithFields(d.logg.WithOrderID(ctx, order.ID.String()), map[string]any{
		"template":  tmpl.String(),
		"transport": d.transport.Name(),
	})
	if order.Email == "" {
		d.logg.Warn(logCtx, "order has no email, notification skipped")
		d.metrics.IncNotification(tmpl.String(), "skipped")
		return nil
	}

	if err := d.transport.Deliver(ctx, BuildMessage(order, tmpl, extras)); err != nil {
		d.logg.Error(logCtx, "notification delivery failed", err)
		d.metrics.IncNotification(tmpl.String(), "failed")
		return nil
	}
	d.metrics.IncNotification(tmpl.String(), "delivered")
	d.logg.Info(logCtx, "notification sent")
	return nil
}

// Notifier is the dispatch surface order flows depend on.
type Notifier interface {
	Dispatch(ctx context.Context, order *models.Order, extras Extras) error
}

// NotifyCommitted dispatches after the order change is already committed, so an unmapped
// state is logged at error level instead of failing the caller.
func NotifyCommitted(ctx context.Context, n Notifier, logg *logger.Logger, order *models.Order, extras Extras) {
	if n == nil || order == nil {
		return
	}
	if err := n.Dispatch(ctx, order, extras); err != nil {
		if logg == nil {
			return
		}
		logCtx := logg.WithFields(logg.WithOrderID(ctx, order.ID.String()), map[string]any{
			"status":         string(order.Status),
			"payment_method": string(order.PaymentMethod),
			"delivery_type":  string(order.DeliveryType),
		})
		logg.Error(logCtx, "order notification not dispatched", err)
	}
}
