package notifications

import (
	"errors"
	"fmt"

	"github.com/angelmondragon/homecafe-backend/pkg/enums"
)

// ErrUnmappedTransition means an order reached a state no template is defined for.
var ErrUnmappedTransition = errors.New("no notification template for order state")

// Key identifies an order state for template lookup. Empty fields are wildcards in the table.
type Key struct {
	DeliveryType  enums.DeliveryType
	PaymentMethod enums.PaymentMethod
	Status        enums.OrderStatus
}

type rule struct {
	key      Key
	template enums.NotificationTemplate
}

// table is evaluated top to bottom; the first matching row wins.
var table = []rule{
	{Key{PaymentMethod: enums.PaymentMethodOnline, Status: enums.OrderStatusPending}, enums.NotificationPendingPayment},
	{Key{PaymentMethod: enums.PaymentMethodOffline, Status: enums.OrderStatusPending}, enums.NotificationAcceptedForPreparation},
	{Key{PaymentMethod: enums.PaymentMethodOnline, Status: enums.OrderStatusSucceeded}, enums.NotificationPaymentConfirmed},
	{Key{DeliveryType: enums.DeliveryTypeDelivery, Status: enums.OrderStatusDelivery}, enums.NotificationInTransit},
	{Key{DeliveryType: enums.DeliveryTypePickup, Status: enums.OrderStatusReady}, enums.NotificationReadyForPickup},
	{Key{Status: enums.OrderStatusCompleted}, enums.NotificationCompleted},
	{Key{Status: enums.OrderStatusCancelled}, enums.NotificationCancelled},
}

func (r rule) matches(k Key) bool {
	if r.key.Status != k.Status {
		return false
	}
	if r.key.DeliveryType != "" && r.key.DeliveryType != k.DeliveryType {
		return false
	}
	if r.key.PaymentMethod != "" && r.key.PaymentMethod != k.PaymentMethod {
		return false
	}
	return true
}

// Select returns the template for an order state or ErrUnmappedTransition.
func Select(k Key) (enums.NotificationTemplate, error) {
	for _, r := range table {
		if r.matches(k) {
			return r.template, nil
		}
	}
	return "", fmt.Errorf("%w: delivery=%s payment=%s status=%s", ErrUnmappedTransition, k.DeliveryType, k.PaymentMethod, k.Status)
}

var subjects = map[enums.NotificationTemplate]string{
	enums.NotificationPendingPayment:         "Your order is waiting for payment",
	enums.NotificationPaymentConfirmed:       "Payment received",
	enums.NotificationInTransit:              "Your order is on the way",
	enums.NotificationReadyForPickup:         "Your order is ready for pickup",
	enums.NotificationAcceptedForPreparation: "We are preparing your order",
	enums.NotificationCompleted:              "Thank you for your order",
	enums.NotificationCancelled:              "Your order was cancelled",
}

// Subject returns the email subject line for a template.
func Subject(t enums.NotificationTemplate) string {
	if s, ok := subjects[t]; ok {
		return s
	}
	return "Order update"
}
