package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/homecafe-backend/internal/inventory"
	"github.com/angelmondragon/homecafe-backend/pkg/db/models"
	"github.com/angelmondragon/homecafe-backend/pkg/enums"
)

type ItemDTO struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"productId"`
	Name      string    `json:"name"`
	Price     int       `json:"price"`
	Quantity  int       `json:"quantity"`
	LineTotal int       `json:"lineTotal"`
}

// OrderDTO is the transport shape of an order.
type OrderDTO struct {
	ID                 uuid.UUID           `json:"id"`
	UserID             *uuid.UUID          `json:"userId,omitempty"`
	Status             enums.OrderStatus   `json:"status"`
	NextStatuses       []enums.OrderStatus `json:"nextStatuses"`
	PaymentMethod      enums.PaymentMethod `json:"paymentMethod"`
	DeliveryType       enums.DeliveryType  `json:"deliveryType"`
	DeliveryTime       *time.Time          `json:"deliveryTime,omitempty"`
	DeliveryCost       int                 `json:"deliveryCost"`
	GoodsTotal         int                 `json:"goodsTotal"`
	BonusDelta         int                 `json:"bonusDelta"`
	BonusSpent         int                 `json:"bonusSpent"`
	AmountDue          int                 `json:"amountDue"`
	Name               string              `json:"name"`
	Email              string              `json:"email"`
	Phone              string              `json:"phone"`
	Address            string              `json:"address"`
	Comment            string              `json:"comment"`
	PaymentID          *string             `json:"paymentId,omitempty"`
	InventoryCommitted bool                `json:"inventoryCommitted"`
	Items              []ItemDTO           `json:"items"`
	CreatedAt          time.Time           `json:"createdAt"`
	UpdatedAt          time.Time           `json:"updatedAt"`
}

// FromModel maps the persistence model to the transport DTO.
func FromModel(o *models.Order) OrderDTO {
	dto := OrderDTO{
		ID:                 o.ID,
		UserID:             o.UserID,
		Status:             o.Status,
		NextStatuses:       NextStatuses(o),
		PaymentMethod:      o.PaymentMethod,
		DeliveryType:       o.DeliveryType,
		DeliveryTime:       o.DeliveryTime,
		DeliveryCost:       o.DeliveryCost,
		GoodsTotal:         o.GoodsTotal,
		BonusDelta:         o.BonusDelta,
		BonusSpent:         o.BonusSpent,
		AmountDue:          o.AmountDue(),
		Name:               o.Name,
		Email:              o.Email,
		Phone:              o.Phone,
		Address:            o.Address,
		Comment:            o.Comment,
		PaymentID:          o.PaymentID,
		InventoryCommitted: o.InventoryCommitted,
		Items:              make([]ItemDTO, 0, len(o.Items)),
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
	}
	if dto.NextStatuses == nil {
		dto.NextStatuses = []enums.OrderStatus{}
	}
	for _, item := range o.Items {
		dto.Items = append(dto.Items, ItemDTO{
			ID:        item.ID,
			ProductID: item.ProductID,
			Name:      item.ProductName,
			Price:     item.ProductPrice,
			Quantity:  item.ProductQuantity,
			LineTotal: item.LineTotal(),
		})
	}
	return dto
}

// OrderList wraps a page of orders plus the cursor for the next page.
type OrderList struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

// CreateOrderInput is an admin-entered order that bypasses the cart.
type CreateOrderInput struct {
	UserID        *uuid.UUID
	Name          string
	Email         string
	Phone         string
	Address       string
	Comment       string
	DeliveryType  enums.DeliveryType
	DeliveryTime  *time.Time
	PaymentMethod enums.PaymentMethod
	DeliveryCost  int
	Lines         []inventory.Line
}

// UpdateOrderInput carries editable contact and delivery fields; nil leaves a field as is.
type UpdateOrderInput struct {
	Name         *string
	Email        *string
	Phone        *string
	Address      *string
	Comment      *string
	DeliveryTime *time.Time
}

// AdminOrderResult reports the created order and any lines stock could not cover.
type AdminOrderResult struct {
	Order   OrderDTO           `json:"order"`
	Clamped []inventory.Result `json:"clamped"`
}
