package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product is a menu item with finite stock.
type Product struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name          string    `gorm:"column:name;not null"`
	Price         int       `gorm:"column:price;not null"`
	StockQuantity int       `gorm:"column:stock_quantity;not null;default:0"`
	IsAvailable   bool      `gorm:"column:is_available;not null;default:false"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	if p.StockQuantity <= 0 {
		p.IsAvailable = false
	}
	return nil
}

// Sellable reports whether the product can be put into a cart at all.
func (p Product) Sellable() bool {
	return p.IsAvailable && p.StockQuantity > 0
}
