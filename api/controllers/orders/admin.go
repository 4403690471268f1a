package orders

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/homecafe-backend/api/responses"
	"github.com/angelmondragon/homecafe-backend/api/validators"
	"github.com/angelmondragon/homecafe-backend/internal/inventory"
	ordersvc "github.com/angelmondragon/homecafe-backend/internal/orders"
	"github.com/angelmondragon/homecafe-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/homecafe-backend/pkg/errors"
	"github.com/angelmondragon/homecafe-backend/pkg/logger"
)

type lineRequest struct {
	ProductID uuid.UUID `json:"productId" validate:"required"`
	Quantity  int       `json:"quantity" validate:"gte=1"`
}

type adminCreateRequest struct {
	UserID        *uuid.UUID    `json:"userId,omitempty"`
	Name          string        `json:"name" validate:"required,max=200"`
	Email         string        `json:"email" validate:"omitempty,email,max=320"`
	Phone         string        `json:"phone" validate:"required,max=32"`
	Address       string        `json:"address" validate:"max=500"`
	Comment       string        `json:"comment" validate:"max=1000"`
	DeliveryType  string        `json:"deliveryType" validate:"required,oneof=delivery pickup"`
	DeliveryTime  *time.Time    `json:"deliveryTime,omitempty"`
	PaymentMethod string        `json:"paymentMethod" validate:"omitempty,oneof=online offline"`
	DeliveryCost  int           `json:"deliveryCost" validate:"gte=0"`
	Items         []lineRequest `json:"items" validate:"required,min=1,dive"`
}

type adminUpdateRequest struct {
	Name         *string    `json:"name,omitempty" validate:"omitempty,max=200"`
	Email        *string    `json:"email,omitempty" validate:"omitempty,email,max=320"`
	Phone        *string    `json:"phone,omitempty" validate:"omitempty,max=32"`
	Address      *string    `json:"address,omitempty" validate:"omitempty,max=500"`
	Comment      *string    `json:"comment,omitempty" validate:"omitempty,max=1000"`
	DeliveryTime *time.Time `json:"deliveryTime,omitempty"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

type decrementRequest struct {
	Items []lineRequest `json:"items" validate:"required,min=1,dive"`
}

func toLines(items []lineRequest) []inventory.Line {
	lines := make([]inventory.Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, inventory.Line{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}

// AdminList lists all orders, optionally filtered by ?status=.
func AdminList(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var filter ordersvc.ListFilter
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseOrderStatus(strings.ToLower(raw))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			filter.Status = &status
		}
		list, err := svc.ListOrders(r.Context(), filter, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func AdminDetail(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.GetOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// AdminCreate records a staff-entered order without a cart. Stock shortfalls are clamped
// and reported back rather than rejected.
func AdminCreate(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		var payload adminCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		method := enums.PaymentMethod(payload.PaymentMethod)
		if method == "" {
			method = enums.PaymentMethodOffline
		}
		result, err := svc.CreateOrder(r.Context(), ordersvc.CreateOrderInput{
			UserID:        payload.UserID,
			Name:          validators.SanitizeString(payload.Name, 200),
			Email:         validators.SanitizeString(payload.Email, 320),
			Phone:         validators.SanitizeString(payload.Phone, 32),
			Address:       validators.SanitizeString(payload.Address, 500),
			Comment:       validators.SanitizeString(payload.Comment, 1000),
			DeliveryType:  enums.DeliveryType(payload.DeliveryType),
			DeliveryTime:  payload.DeliveryTime,
			PaymentMethod: method,
			DeliveryCost:  payload.DeliveryCost,
			Lines:         toLines(payload.Items),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func AdminUpdate(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload adminUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.UpdateOrder(r.Context(), orderID, ordersvc.UpdateOrderInput{
			Name:         payload.Name,
			Email:        payload.Email,
			Phone:        payload.Phone,
			Address:      payload.Address,
			Comment:      payload.Comment,
			DeliveryTime: payload.DeliveryTime,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// AdminChangeStatus moves an order along the status machine.
func AdminChangeStatus(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload statusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseOrderStatus(strings.ToLower(strings.TrimSpace(payload.Status)))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}
		order, err := svc.ChangeStatus(r.Context(), orderID, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// AdminDecrementStock removes stock in bulk through the shared decrement primitive.
func AdminDecrementStock(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		var payload decrementRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		results, err := svc.DecrementStock(r.Context(), toLines(payload.Items))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"results": results})
	}
}
