package notifications

import (
	"time"

	"github.com/angelmondragon/homecafe-backend/pkg/db/models"
	"github.com/angelmondragon/homecafe-backend/pkg/enums"
)

// Message is a rendered-ready notification. It is also the queue payload for the
// kafka and pubsub transports.
type Message struct {
	To       string                     `json:"to"`
	Subject  string                     `json:"subject"`
	Template enums.NotificationTemplate `json:"template"`
	Data     map[string]any             `json:"data"`
}

// Extras carries values that are not stored on the order.
type Extras struct {
	ConfirmationURL string
}

// BuildMessage assembles the template data for an order.
func BuildMessage(order *models.Order, tmpl enums.NotificationTemplate, extras Extras) Message {
	// Lines are plain maps so templates read the same keys before and after a JSON round trip.
	lines := make([]map[string]any, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, map[string]any{
			"name":      item.ProductName,
			"price":     item.ProductPrice,
			"quantity":  item.ProductQuantity,
			"lineTotal": item.LineTotal(),
		})
	}
	data := map[string]any{
		"orderId":       order.ID.String(),
		"name":          order.Name,
		"status":        string(order.Status),
		"deliveryType":  string(order.DeliveryType),
		"paymentMethod": string(order.PaymentMethod),
		"address":       order.Address,
		"items":         lines,
		"goodsTotal":    order.GoodsTotal,
		"deliveryCost":  order.DeliveryCost,
		"bonusSpent":    order.BonusSpent,
		"amountDue":     order.AmountDue(),
	}
	if order.DeliveryTime != nil {
		data["deliveryTime"] = order.DeliveryTime.UTC().Format(time.RFC3339)
	}
	if extras.ConfirmationURL != "" {
		data["confirmationUrl"] = extras.ConfirmationURL
	}
	return Message{
		To:       order.Email,
		Subject:  Subject(tmpl),
		Template: tmpl,
		Data:     data,
	}
}
