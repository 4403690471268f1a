package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/homecafe-backend/pkg/enums"
)

// Order is the record of a purchase; only status and contact/delivery fields change after creation.
type Order struct {
	ID                   uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	UserID               *uuid.UUID          `gorm:"column:user_id;type:uuid;index"`
	Status               enums.OrderStatus   `gorm:"column:status;not null;index"`
	PaymentMethod        enums.PaymentMethod `gorm:"column:payment_method;not null"`
	DeliveryType         enums.DeliveryType  `gorm:"column:delivery_type;not null"`
	DeliveryTime         *time.Time          `gorm:"column:delivery_time"`
	DeliveryCost         int                 `gorm:"column:delivery_cost;not null;default:0"`
	GoodsTotal           int                 `gorm:"column:goods_total;not null;default:0"`
	BonusDelta           int                 `gorm:"column:bonus_delta;not null;default:0"`
	BonusSpent           int                 `gorm:"column:bonus_spent;not null;default:0"`
	Name                 string              `gorm:"column:name;not null"`
	Email                string              `gorm:"column:email;not null"`
	Phone                string              `gorm:"column:phone;not null"`
	Address              string              `gorm:"column:address;not null;default:''"`
	Comment              string              `gorm:"column:comment;not null;default:''"`
	PaymentID            *string             `gorm:"column:payment_id;uniqueIndex:ux_orders_payment_id"`
	InventoryCommitted   bool                `gorm:"column:inventory_committed;not null;default:false"`
	InventoryCommittedAt *time.Time          `gorm:"column:inventory_committed_at"`
	Items                []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt            time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// AmountDue is what the customer pays: goods minus spent bonus plus delivery.
func (o Order) AmountDue() int {
	return o.GoodsTotal - o.BonusSpent + o.DeliveryCost
}

// OrderItem is an append-only snapshot of a product at order time.
type OrderItem struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID         uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID       uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	ProductName     string    `gorm:"column:product_name;not null"`
	ProductPrice    int       `gorm:"column:product_price;not null"`
	ProductQuantity int       `gorm:"column:product_quantity;not null"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// LineTotal is price times quantity from the snapshot.
func (i OrderItem) LineTotal() int {
	return i.ProductPrice * i.ProductQuantity
}

// All lists every persisted model, used by AutoMigrate in tests and sqlite dev runs.
func All() []any {
	return []any{&User{}, &Product{}, &Cart{}, &CartItem{}, &Order{}, &OrderItem{}}
}
