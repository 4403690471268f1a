package cart

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/homecafe-backend/api/middleware"
	"github.com/angelmondragon/homecafe-backend/api/responses"
	"github.com/angelmondragon/homecafe-backend/api/validators"
	cartsvc "github.com/angelmondragon/homecafe-backend/internal/cart"
	"github.com/angelmondragon/homecafe-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/homecafe-backend/pkg/errors"
	"github.com/angelmondragon/homecafe-backend/pkg/logger"
)

// Service is the cart surface the handlers need.
type Service interface {
	GetCart(ctx context.Context, caller cartsvc.Caller) (*cartsvc.CartView, error)
	AddItem(ctx context.Context, caller cartsvc.Caller, productID uuid.UUID, qty int) (*cartsvc.CartView, error)
	UpdateItem(ctx context.Context, caller cartsvc.Caller, itemID uuid.UUID, qty int) (*cartsvc.CartView, error)
	RemoveItem(ctx context.Context, caller cartsvc.Caller, itemID uuid.UUID) (*cartsvc.CartView, error)
	RepeatOrder(ctx context.Context, caller cartsvc.Caller, orderID uuid.UUID) (*cartsvc.CartView, error)
}

type addItemRequest struct {
	ProductID uuid.UUID `json:"productId" validate:"required"`
	Quantity  *int      `json:"quantity,omitempty" validate:"omitempty,gte=1"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity" validate:"gte=1"`
}

// Caller builds the cart caller from the authenticated user and the guest token.
func Caller(r *http.Request, cfg config.CartConfig) cartsvc.Caller {
	return cartsvc.Caller{
		UserID: middleware.UserUUIDFromContext(r.Context()),
		Token:  middleware.CartTokenFromRequest(r, cfg),
	}
}

func writeView(w http.ResponseWriter, cfg config.CartConfig, view *cartsvc.CartView) {
	middleware.WriteCartToken(w, cfg, view.IssuedToken, view.TokenCleared)
	responses.WriteSuccess(w, view)
}

// CartFetch returns the caller's cart after drift correction.
func CartFetch(svc Service, cfg config.CartConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		view, err := svc.GetCart(r.Context(), Caller(r, cfg))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeView(w, cfg, view)
	}
}

// CartAddItem adds a product to the cart; quantity defaults to one.
func CartAddItem(svc Service, cfg config.CartConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		var payload addItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		qty := 1
		if payload.Quantity != nil {
			qty = *payload.Quantity
		}
		view, err := svc.AddItem(r.Context(), Caller(r, cfg), payload.ProductID, qty)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeView(w, cfg, view)
	}
}

func CartUpdateItem(svc Service, cfg config.CartConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		itemID, err := validators.ParseUUIDParam(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updateItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.UpdateItem(r.Context(), Caller(r, cfg), itemID, payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeView(w, cfg, view)
	}
}

func CartRemoveItem(svc Service, cfg config.CartConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		itemID, err := validators.ParseUUIDParam(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.RemoveItem(r.Context(), Caller(r, cfg), itemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeView(w, cfg, view)
	}
}

// CartMerge folds the caller's guest cart into their account cart and expires the
// guest cookie. Resolving an authenticated caller that still carries a token runs the
// merge; replays without a token are no-ops.
func CartMerge(svc Service, cfg config.CartConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		caller := Caller(r, cfg)
		if !caller.Authenticated() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}
		view, err := svc.GetCart(r.Context(), caller)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view.IssuedToken = ""
		view.TokenCleared = true
		writeView(w, cfg, view)
	}
}

// CartRepeatOrder re-adds a past order's items to the caller's cart.
func CartRepeatOrder(svc Service, cfg config.CartConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.RepeatOrder(r.Context(), Caller(r, cfg), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeView(w, cfg, view)
	}
}
