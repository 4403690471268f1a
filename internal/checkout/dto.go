package checkout

import (
	"time"

	"github.com/angelmondragon/homecafe-backend/internal/cart"
	"github.com/angelmondragon/homecafe-backend/internal/inventory"
	"github.com/angelmondragon/homecafe-backend/internal/orders"
	"github.com/angelmondragon/homecafe-backend/pkg/enums"
)

// Input is the contact and delivery form submitted with a checkout.
type Input struct {
	Name          string
	Email         string
	Phone         string
	Address       string
	Comment       string
	DeliveryType  enums.DeliveryType
	DeliveryTime  *time.Time
	PaymentMethod enums.PaymentMethod
	BonusSpend    int
}

// Result is either a confirmed offline order or an online order awaiting payment.
type Result struct {
	Order           orders.OrderDTO `json:"order"`
	Confirmed       bool            `json:"confirmed"`
	ConfirmationURL string          `json:"confirmationUrl,omitempty"`

	IssuedToken  string `json:"-"`
	TokenCleared bool   `json:"-"`
}

// ConflictReport is attached to STOCK_CONFLICT so the client can re-render the cart.
type ConflictReport struct {
	Adjustments cart.Adjustments     `json:"adjustments"`
	Conflicts   []inventory.Conflict `json:"conflicts,omitempty"`
}
