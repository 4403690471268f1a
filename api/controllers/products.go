package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/homecafe-backend/api/responses"
	"github.com/angelmondragon/homecafe-backend/api/validators"
	"github.com/angelmondragon/homecafe-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/homecafe-backend/pkg/errors"
	"github.com/angelmondragon/homecafe-backend/pkg/logger"
)

type ProductStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	SetStock(ctx context.Context, id uuid.UUID, qty int, available bool) (*models.Product, error)
}

type productResponse struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Price         int       `json:"price"`
	StockQuantity int       `json:"stockQuantity"`
	IsAvailable   bool      `json:"isAvailable"`
}

func toProductResponse(p *models.Product) productResponse {
	return productResponse{
		ID:            p.ID,
		Name:          p.Name,
		Price:         p.Price,
		StockQuantity: p.StockQuantity,
		IsAvailable:   p.IsAvailable,
	}
}

type setStockRequest struct {
	Quantity    *int  `json:"quantity" validate:"required,gte=0"`
	IsAvailable *bool `json:"isAvailable,omitempty"`
}

// ProductDetail is the public read of a product's price, stock and availability.
func ProductDetail(store ProductStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product store unavailable"))
			return
		}
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := store.FindByID(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toProductResponse(product))
	}
}

// AdminSetStock overwrites a product's stock. Omitting isAvailable makes the product
// available whenever stock is positive.
func AdminSetStock(store ProductStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product store unavailable"))
			return
		}
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload setStockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		qty := *payload.Quantity
		available := qty > 0
		if payload.IsAvailable != nil {
			available = *payload.IsAvailable
		}
		product, err := store.SetStock(r.Context(), productID, qty, available)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if logg != nil {
			ctx := logg.WithFields(r.Context(), map[string]any{
				"product_id":   productID.String(),
				"stock":        product.StockQuantity,
				"is_available": product.IsAvailable,
			})
			logg.Info(ctx, "product stock updated")
		}
		responses.WriteSuccess(w, toProductResponse(product))
	}
}
