package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/homecafe-backend/internal/inventory"
	"github.com/angelmondragon/homecafe-backend/internal/notifications"
	"github.com/angelmondragon/homecafe-backend/pkg/db/models"
	"github.com/angelmondragon/homecafe-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/homecafe-backend/pkg/errors"
	"github.com/angelmondragon/homecafe-backend/pkg/logger"
	"github.com/angelmondragon/homecafe-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service covers customer order reads and the admin back-office mutations.
type Service struct {
	repo      Repository
	tx        txRunner
	inventory *inventory.Service
	notifier  notifications.Notifier
	logg      *logger.Logger
}

type ServiceParams struct {
	Repo      Repository
	Tx        txRunner
	Inventory *inventory.Service
	Notifier  notifications.Notifier
	Logger    *logger.Logger
}

// NewService builds an order service with the required dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		repo:      params.Repo,
		tx:        params.Tx,
		inventory: params.Inventory,
		notifier:  params.Notifier,
		logg:      logg,
	}, nil
}

func (s *Service) GetOrder(ctx context.Context, id uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := FromModel(order)
	return &dto, nil
}

// GetMyOrder hides orders of other users behind NOT_FOUND.
func (s *Service) GetMyOrder(ctx context.Context, userID, id uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.UserID == nil || *order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	dto := FromModel(order)
	return &dto, nil
}

func (s *Service) ListOrders(ctx context.Context, filter ListFilter, params pagination.Params) (*OrderList, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status")
	}
	rows, next, err := s.repo.List(ctx, filter, params)
	if err != nil {
		return nil, err
	}
	out := &OrderList{Orders: make([]OrderDTO, 0, len(rows)), NextCursor: next}
	for i := range rows {
		out.Orders = append(out.Orders, FromModel(&rows[i]))
	}
	return out, nil
}

func (s *Service) ListMyOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return s.ListOrders(ctx, ListFilter{UserID: &userID}, params)
}

// CreateOrder records an order entered by staff. Live product rows are snapshotted and
// stock is committed with the clamp policy; lines stock could not cover are reported.
func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput) (*AdminOrderResult, error) {
	if err := validateCreate(input); err != nil {
		return nil, err
	}

	var (
		order  *models.Order
		commit *inventory.CommitResult
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ids := make([]uuid.UUID, 0, len(input.Lines))
		for _, line := range input.Lines {
			ids = append(ids, line.ProductID)
		}
		products, err := s.inventory.Repository().WithTx(tx).FindByIDs(ctx, ids)
		if err != nil {
			return err
		}

		order = &models.Order{
			UserID:        input.UserID,
			Status:        enums.OrderStatusPending,
			PaymentMethod: input.PaymentMethod,
			DeliveryType:  input.DeliveryType,
			DeliveryTime:  input.DeliveryTime,
			DeliveryCost:  input.DeliveryCost,
			Name:          strings.TrimSpace(input.Name),
			Email:         strings.TrimSpace(input.Email),
			Phone:         strings.TrimSpace(input.Phone),
			Address:       strings.TrimSpace(input.Address),
			Comment:       strings.TrimSpace(input.Comment),
		}
		if order.DeliveryType == enums.DeliveryTypePickup {
			order.DeliveryCost = 0
		}
		for _, line := range input.Lines {
			product, ok := products[line.ProductID]
			if !ok {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
					WithDetails(map[string]any{"productId": line.ProductID})
			}
			order.Items = append(order.Items, models.OrderItem{
				ProductID:       product.ID,
				ProductName:     product.Name,
				ProductPrice:    product.Price,
				ProductQuantity: line.Quantity,
			})
			order.GoodsTotal += product.Price * line.Quantity
		}

		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		commit, err = s.inventory.CommitForOrder(ctx, tx, order.ID, inventory.PolicyClamp)
		if err != nil {
			return err
		}
		order, err = repo.FindByID(ctx, order.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	clamped := commit.Clamped()
	if len(clamped) > 0 {
		s.logg.Warn(s.logg.WithField(logCtx, "clamped_lines", len(clamped)), "admin order created with clamped stock")
	} else {
		s.logg.Info(logCtx, "admin order created")
	}
	notifications.NotifyCommitted(ctx, s.notifier, s.logg, order, notifications.Extras{})

	if clamped == nil {
		clamped = []inventory.Result{}
	}
	return &AdminOrderResult{Order: FromModel(order), Clamped: clamped}, nil
}

func validateCreate(input CreateOrderInput) error {
	if strings.TrimSpace(input.Name) == "" || strings.TrimSpace(input.Phone) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name and phone are required")
	}
	if !input.DeliveryType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown delivery type")
	}
	if input.DeliveryType == enums.DeliveryTypeDelivery && strings.TrimSpace(input.Address) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "address is required for delivery")
	}
	if input.PaymentMethod != enums.PaymentMethodOffline {
		return pkgerrors.New(pkgerrors.CodeValidation, "staff orders are paid on receipt")
	}
	if input.DeliveryCost < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "delivery cost must be non-negative")
	}
	if len(input.Lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one line is required")
	}
	for _, line := range input.Lines {
		if line.ProductID == uuid.Nil || line.Quantity < 1 {
			return pkgerrors.New(pkgerrors.CodeValidation, "each line needs a product and a positive quantity")
		}
	}
	return nil
}

// UpdateOrder edits contact and delivery fields. Item snapshots never change.
func (s *Service) UpdateOrder(ctx context.Context, id uuid.UUID, input UpdateOrderInput) (*OrderDTO, error) {
	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if current.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is closed").
				WithDetails(map[string]any{"status": current.Status})
		}
		updates := map[string]any{}
		setString(updates, "name", input.Name)
		setString(updates, "email", input.Email)
		setString(updates, "phone", input.Phone)
		setString(updates, "address", input.Address)
		setString(updates, "comment", input.Comment)
		if input.DeliveryTime != nil {
			updates["delivery_time"] = input.DeliveryTime.UTC()
		}
		if v, ok := updates["name"]; ok && v == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
		}
		if v, ok := updates["address"]; ok && v == "" && current.DeliveryType == enums.DeliveryTypeDelivery {
			return pkgerrors.New(pkgerrors.CodeValidation, "address is required for delivery")
		}
		if err := repo.UpdateFields(ctx, id, updates); err != nil {
			return err
		}
		order, err = repo.FindByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	dto := FromModel(order)
	return &dto, nil
}

func setString(updates map[string]any, column string, value *string) {
	if value != nil {
		updates[column] = strings.TrimSpace(*value)
	}
}

// ChangeStatus applies one state-machine transition. Cancelling never returns stock.
func (s *Service) ChangeStatus(ctx context.Context, id uuid.UUID, to enums.OrderStatus) (*OrderDTO, error) {
	if !to.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status")
	}
	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := CanTransition(current, to); err != nil {
			return err
		}
		ok, err := repo.UpdateStatusIf(ctx, id, current.Status, to)
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently").
				WithDetails(map[string]any{"from": current.Status, "to": to})
		}
		order, err = repo.FindByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, id.String()), map[string]any{"status": string(to)})
	s.logg.Info(logCtx, "order status changed")
	notifications.NotifyCommitted(ctx, s.notifier, s.logg, order, notifications.Extras{})
	dto := FromModel(order)
	return &dto, nil
}

// DecrementStock applies a bulk stock write-off through the shared primitive.
func (s *Service) DecrementStock(ctx context.Context, lines []inventory.Line) ([]inventory.Result, error) {
	var results []inventory.Result
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		results, err = s.inventory.Decrement(ctx, tx, lines, inventory.PolicyClamp)
		return err
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
