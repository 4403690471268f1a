package orders

import (
	"github.com/angelmondragon/homecafe-backend/pkg/db/models"
	"github.com/angelmondragon/homecafe-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/homecafe-backend/pkg/errors"
)

// transition is allowed when the order's payment method and delivery type match the guards.
// Empty guards match anything.
type transition struct {
	to       enums.OrderStatus
	payment  enums.PaymentMethod
	delivery enums.DeliveryType
}

var transitions = map[enums.OrderStatus][]transition{
	enums.OrderStatusPending: {
		{to: enums.OrderStatusSucceeded, payment: enums.PaymentMethodOnline},
		{to: enums.OrderStatusReady, payment: enums.PaymentMethodOffline, delivery: enums.DeliveryTypePickup},
		{to: enums.OrderStatusDelivery, payment: enums.PaymentMethodOffline, delivery: enums.DeliveryTypeDelivery},
		{to: enums.OrderStatusCancelled},
	},
	enums.OrderStatusSucceeded: {
		{to: enums.OrderStatusReady, delivery: enums.DeliveryTypePickup},
		{to: enums.OrderStatusDelivery, delivery: enums.DeliveryTypeDelivery},
		{to: enums.OrderStatusCancelled},
	},
	enums.OrderStatusReady: {
		{to: enums.OrderStatusCompleted},
	},
	enums.OrderStatusDelivery: {
		{to: enums.OrderStatusCompleted},
	},
}

// CanTransition returns STATE_CONFLICT with {from,to} unless the move is in the table.
func CanTransition(order *models.Order, to enums.OrderStatus) error {
	for _, t := range transitions[order.Status] {
		if t.to != to {
			continue
		}
		if t.payment != "" && t.payment != order.PaymentMethod {
			continue
		}
		if t.delivery != "" && t.delivery != order.DeliveryType {
			continue
		}
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, "order status change not allowed").
		WithDetails(map[string]any{"from": order.Status, "to": to})
}

// NextStatuses lists the statuses reachable from the order's current state.
func NextStatuses(order *models.Order) []enums.OrderStatus {
	var out []enums.OrderStatus
	for _, t := range transitions[order.Status] {
		if CanTransition(order, t.to) == nil {
			out = append(out, t.to)
		}
	}
	return out
}
