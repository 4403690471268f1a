package orders

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/homecafe-backend/api/middleware"
	"github.com/angelmondragon/homecafe-backend/api/responses"
	"github.com/angelmondragon/homecafe-backend/api/validators"
	"github.com/angelmondragon/homecafe-backend/internal/inventory"
	ordersvc "github.com/angelmondragon/homecafe-backend/internal/orders"
	"github.com/angelmondragon/homecafe-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/homecafe-backend/pkg/errors"
	"github.com/angelmondragon/homecafe-backend/pkg/logger"
	"github.com/angelmondragon/homecafe-backend/pkg/pagination"
)

// Service is the order surface shared by the customer and admin handlers.
type Service interface {
	GetOrder(ctx context.Context, id uuid.UUID) (*ordersvc.OrderDTO, error)
	GetMyOrder(ctx context.Context, userID, id uuid.UUID) (*ordersvc.OrderDTO, error)
	ListOrders(ctx context.Context, filter ordersvc.ListFilter, params pagination.Params) (*ordersvc.OrderList, error)
	ListMyOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) (*ordersvc.OrderList, error)
	CreateOrder(ctx context.Context, input ordersvc.CreateOrderInput) (*ordersvc.AdminOrderResult, error)
	UpdateOrder(ctx context.Context, id uuid.UUID, input ordersvc.UpdateOrderInput) (*ordersvc.OrderDTO, error)
	ChangeStatus(ctx context.Context, id uuid.UUID, to enums.OrderStatus) (*ordersvc.OrderDTO, error)
	DecrementStock(ctx context.Context, lines []inventory.Line) ([]inventory.Result, error)
}

func pageParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	cursor, err := validators.ParseQueryToken(r, "cursor", 256)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{Limit: limit, Cursor: cursor}, nil
}

func requireUser(r *http.Request) (uuid.UUID, error) {
	id := middleware.UserUUIDFromContext(r.Context())
	if id == nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return *id, nil
}

// List returns the authenticated user's orders, newest first.
func List(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		userID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListMyOrders(r.Context(), userID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// Detail returns one of the authenticated user's orders. Orders of other users read as
// missing.
func Detail(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		userID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.GetMyOrder(r.Context(), userID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}
