package controllers

import (
	"context"
	"net/http"
	"time"

	cartcontrollers "github.com/angelmondragon/homecafe-backend/api/controllers/cart"
	"github.com/angelmondragon/homecafe-backend/api/middleware"
	"github.com/angelmondragon/homecafe-backend/api/responses"
	"github.com/angelmondragon/homecafe-backend/api/validators"
	cartsvc "github.com/angelmondragon/homecafe-backend/internal/cart"
	checkoutsvc "github.com/angelmondragon/homecafe-backend/internal/checkout"
	"github.com/angelmondragon/homecafe-backend/pkg/config"
	"github.com/angelmondragon/homecafe-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/homecafe-backend/pkg/errors"
	"github.com/angelmondragon/homecafe-backend/pkg/logger"
)

type CheckoutService interface {
	Checkout(ctx context.Context, caller cartsvc.Caller, input checkoutsvc.Input) (*checkoutsvc.Result, error)
}

type checkoutRequest struct {
	Name          string     `json:"name" validate:"required,max=200"`
	Email         string     `json:"email" validate:"omitempty,email,max=320"`
	Phone         string     `json:"phone" validate:"required,max=32"`
	Address       string     `json:"address" validate:"required_if=DeliveryType delivery,max=500"`
	Comment       string     `json:"comment" validate:"max=1000"`
	DeliveryType  string     `json:"deliveryType" validate:"required,oneof=delivery pickup"`
	DeliveryTime  *time.Time `json:"deliveryTime,omitempty"`
	PaymentMethod string     `json:"paymentMethod" validate:"required,oneof=online offline"`
	BonusSpend    int        `json:"bonusSpend" validate:"gte=0"`
}

// Checkout turns the caller's cart into an order. Offline orders come back confirmed;
// online orders come back PENDING with the payment confirmation URL.
func Checkout(svc CheckoutService, cartCfg config.CartConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Checkout(r.Context(), cartcontrollers.Caller(r, cartCfg), checkoutsvc.Input{
			Name:          validators.SanitizeString(payload.Name, 200),
			Email:         validators.SanitizeString(payload.Email, 320),
			Phone:         validators.SanitizeString(payload.Phone, 32),
			Address:       validators.SanitizeString(payload.Address, 500),
			Comment:       validators.SanitizeString(payload.Comment, 1000),
			DeliveryType:  enums.DeliveryType(payload.DeliveryType),
			DeliveryTime:  payload.DeliveryTime,
			PaymentMethod: enums.PaymentMethod(payload.PaymentMethod),
			BonusSpend:    payload.BonusSpend,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		middleware.WriteCartToken(w, cartCfg, result.IssuedToken, result.TokenCleared)
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
