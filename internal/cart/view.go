package cart

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/homecafe-backend/pkg/db/models"
)

// ProductView is the live product state shown next to a cart line.
type ProductView struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Price       int       `json:"price"`
	Stock       int       `json:"stock"`
	IsAvailable bool      `json:"isAvailable"`
}

type ItemView struct {
	ID        uuid.UUID   `json:"id"`
	Product   ProductView `json:"product"`
	Quantity  int         `json:"quantity"`
	LineTotal int         `json:"lineTotal"`
}

// Adjustment records one line changed by drift correction.
type Adjustment struct {
	ItemID      uuid.UUID `json:"itemId"`
	ProductID   uuid.UUID `json:"productId"`
	ProductName string    `json:"productName,omitempty"`
	Requested   int       `json:"requested"`
	Available   int       `json:"available"`
}

// Adjustments lists lines removed for being unsellable and lines reduced to stock.
type Adjustments struct {
	Removed []Adjustment `json:"removed"`
	Reduced []Adjustment `json:"reduced"`
}

func (a Adjustments) Empty() bool {
	return len(a.Removed) == 0 && len(a.Reduced) == 0
}

// CartView is the cart as returned to clients. The token fields are for the transport
// layer and never serialized.
type CartView struct {
	ID          uuid.UUID   `json:"id"`
	Items       []ItemView  `json:"items"`
	TotalAmount int         `json:"totalAmount"`
	Adjustments Adjustments `json:"adjustments"`

	IssuedToken  string `json:"-"`
	TokenCleared bool   `json:"-"`
}

func newAdjustments() Adjustments {
	return Adjustments{Removed: []Adjustment{}, Reduced: []Adjustment{}}
}

// buildView derives totals from the live product rows; the total is never stored.
func buildView(cart *models.Cart, items []models.CartItem, adj Adjustments) *CartView {
	view := &CartView{ID: cart.ID, Items: make([]ItemView, 0, len(items)), Adjustments: adj}
	for _, item := range items {
		iv := ItemView{ID: item.ID, Quantity: item.Quantity}
		if item.Product != nil {
			iv.Product = ProductView{
				ID:          item.Product.ID,
				Name:        item.Product.Name,
				Price:       item.Product.Price,
				Stock:       item.Product.StockQuantity,
				IsAvailable: item.Product.IsAvailable,
			}
			iv.LineTotal = item.Product.Price * item.Quantity
		} else {
			iv.Product = ProductView{ID: item.ProductID}
		}
		view.TotalAmount += iv.LineTotal
		view.Items = append(view.Items, iv)
	}
	return view
}
