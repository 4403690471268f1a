package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/homecafe-backend/internal/cart"
	"github.com/angelmondragon/homecafe-backend/internal/inventory"
	"github.com/angelmondragon/homecafe-backend/internal/notifications"
	"github.com/angelmondragon/homecafe-backend/internal/orders"
	"github.com/angelmondragon/homecafe-backend/internal/payments"
	"github.com/angelmondragon/homecafe-backend/internal/users"
	"github.com/angelmondragon/homecafe-backend/pkg/config"
	"github.com/angelmondragon/homecafe-backend/pkg/db/models"
	"github.com/angelmondragon/homecafe-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/homecafe-backend/pkg/errors"
	"github.com/angelmondragon/homecafe-backend/pkg/logger"
	"github.com/angelmondragon/homecafe-backend/pkg/metrics"
)

const (
	outcomeConfirmed      = "confirmed"
	outcomePaymentPending = "payment_pending"
	outcomeStockConflict  = "stock_conflict"
	outcomeRejected       = "rejected"
	outcomeDependency     = "dependency_error"
	outcomeError          = "error"

	msgCartChanged = "cart changed, review and retry"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service turns the caller's cart into an order.
type Service struct {
	tx        txRunner
	carts     *cart.Service
	orders    orders.Repository
	users     *users.Repository
	inventory *inventory.Service
	gateway   payments.Gateway
	notifier  notifications.Notifier
	cfg       config.CheckoutConfig
	logg      *logger.Logger
	metrics   *metrics.OrderMetrics
}

type ServiceParams struct {
	Tx        txRunner
	Carts     *cart.Service
	Orders    orders.Repository
	Users     *users.Repository
	Inventory *inventory.Service
	Gateway   payments.Gateway
	Notifier  notifications.Notifier
	Config    config.CheckoutConfig
	Logger    *logger.Logger
	Metrics   *metrics.OrderMetrics
}

// NewService builds the checkout service. Gateway may be nil when online payment is disabled.
func NewService(params ServiceParams) (*Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("users repository required")
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
		tx:        params.Tx,
		carts:     params.Carts,
		orders:    params.Orders,
		users:     params.Users,
		inventory: params.Inventory,
		gateway:   params.Gateway,
		notifier:  params.Notifier,
		cfg:       params.Config,
		logg:      logg,
		metrics:   params.Metrics,
	}, nil
}

// Checkout validates the cart against live stock, writes the order in one transaction, and
// then either confirms it (offline) or opens a gateway payment (online).
func (s *Service) Checkout(ctx context.Context, caller cart.Caller, input Input) (*Result, error) {
	result, err := s.checkout(ctx, caller, input)
	if err != nil {
		s.metrics.IncCheckout(outcomeFor(err))
		return nil, err
	}
	if result.Confirmed {
		s.metrics.IncCheckout(outcomeConfirmed)
	} else {
		s.metrics.IncCheckout(outcomePaymentPending)
	}
	return result, nil
}

func (s *Service) checkout(ctx context.Context, caller cart.Caller, input Input) (*Result, error) {
	input = normalize(input)
	if err := s.validate(caller, input); err != nil {
		return nil, err
	}

	res, err := s.carts.Resolve(ctx, caller)
	if err != nil {
		return nil, err
	}
	cartID := res.Cart.ID
	ctx = s.logg.WithCartID(ctx, cartID.String())
	if caller.Authenticated() {
		ctx = s.logg.WithUserID(ctx, caller.UserID.String())
	}

	snapshot, err := s.validateCart(ctx, cartID)
	if err != nil {
		return nil, err
	}

	order, err := s.placeOrder(ctx, caller, cartID, snapshot, input)
	if err != nil {
		var conflict *pkgerrors.Error
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeStockConflict {
			conflict = typed
		}
		if conflict == nil {
			return nil, err
		}
		if _, final := conflict.Details().(ConflictReport); final {
			return nil, err
		}
		return nil, s.correctAfterConflict(ctx, cartID, conflict)
	}
	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"payment_method": string(order.PaymentMethod),
		"delivery_type":  string(order.DeliveryType),
		"amount_due":     order.AmountDue(),
	}), "order created")

	result := &Result{IssuedToken: res.IssuedToken, TokenCleared: res.TokenCleared}
	if order.PaymentMethod == enums.PaymentMethodOffline {
		notifications.NotifyCommitted(ctx, s.notifier, s.logg, order, notifications.Extras{})
		result.Order = orders.FromModel(order)
		result.Confirmed = true
		return result, nil
	}

	session, err := s.gateway.CreatePayment(ctx, payments.PaymentRequest{
		Amount:      int64(order.AmountDue()),
		OrderID:     order.ID,
		Description: "Order " + order.ID.String(),
	})
	if err != nil {
		s.logg.Error(ctx, "payment gateway failed, order left pending", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment gateway unavailable").
			WithDetails(map[string]any{"order_id": order.ID})
	}
	if err := s.orders.SetPaymentID(ctx, order.ID, session.ID); err != nil {
		s.logg.Error(ctx, "store payment id failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store payment id").
			WithDetails(map[string]any{"order_id": order.ID})
	}
	paymentID := session.ID
	order.PaymentID = &paymentID

	notifications.NotifyCommitted(ctx, s.notifier, s.logg, order, notifications.Extras{ConfirmationURL: session.ConfirmationURL})
	result.Order = orders.FromModel(order)
	result.ConfirmationURL = session.ConfirmationURL
	return result, nil
}

func normalize(in Input) Input {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Address = strings.TrimSpace(in.Address)
	in.Comment = strings.TrimSpace(in.Comment)
	return in
}

func (s *Service) validate(caller cart.Caller, in Input) error {
	if in.Name == "" || in.Phone == "" || in.Email == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name, email and phone are required")
	}
	if !in.DeliveryType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown delivery type")
	}
	if in.DeliveryType == enums.DeliveryTypeDelivery && in.Address == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "address is required for delivery")
	}
	if !in.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown payment method")
	}
	if in.PaymentMethod == enums.PaymentMethodOnline && s.gateway == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "online payment is not available")
	}
	if in.BonusSpend < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "bonus spend must be non-negative")
	}
	if in.BonusSpend > 0 && !caller.Authenticated() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "bonus spending requires an account")
	}
	return nil
}

// validateCart is the opportunistic pass: corrections are committed and reported, and the
// checkout stops so the client confirms the new cart.
func (s *Service) validateCart(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error) {
	var (
		items []models.CartItem
		adj   cart.Adjustments
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		items, err = s.carts.Items(ctx, tx, cartID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart empty")
		}
		adj, err = s.carts.Reconcile(ctx, tx, cartID)
		return err
	})
	if err != nil {
		return nil, wrapDependency(err, "validate cart")
	}
	if !adj.Empty() {
		return nil, stockConflict(msgCartChanged, ConflictReport{Adjustments: adj})
	}
	return items, nil
}

// placeOrder is the authoritative pass. Any error rolls back the order, the stock, the
// cart clear and the bonus entry together.
func (s *Service) placeOrder(ctx context.Context, caller cart.Caller, cartID uuid.UUID, snapshot []models.CartItem, in Input) (*models.Order, error) {
	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		live, err := s.carts.Items(ctx, tx, cartID)
		if err != nil {
			return err
		}
		if !sameLines(snapshot, live) {
			return stockConflict(msgCartChanged, ConflictReport{})
		}

		goods := 0
		items := make([]models.OrderItem, 0, len(live))
		ordered := make([]uuid.UUID, 0, len(live))
		for _, line := range live {
			ordered = append(ordered, line.ID)
			product := line.Product
			items = append(items, models.OrderItem{
				ProductID:       product.ID,
				ProductName:     product.Name,
				ProductPrice:    product.Price,
				ProductQuantity: line.Quantity,
			})
			goods += product.Price * line.Quantity
		}

		var (
			userID  *uuid.UUID
			balance *int
		)
		userRepo := s.users.WithTx(tx)
		if caller.Authenticated() {
			user, err := userRepo.FindByID(ctx, *caller.UserID)
			if err != nil {
				return err
			}
			userID = &user.ID
			balance = &user.BonusBalance
		}
		p, err := price(s.cfg, goods, in.DeliveryType, in.BonusSpend, balance)
		if err != nil {
			return err
		}
		if in.PaymentMethod == enums.PaymentMethodOnline && p.amountDue() <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "nothing to pay online, choose offline payment")
		}

		order = &models.Order{
			UserID:        userID,
			Status:        enums.OrderStatusPending,
			PaymentMethod: in.PaymentMethod,
			DeliveryType:  in.DeliveryType,
			DeliveryTime:  in.DeliveryTime,
			DeliveryCost:  p.deliveryCost,
			GoodsTotal:    p.goods,
			BonusDelta:    p.bonusDelta,
			BonusSpent:    p.bonusSpent,
			Name:          in.Name,
			Email:         in.Email,
			Phone:         in.Phone,
			Address:       in.Address,
			Comment:       in.Comment,
			Items:         items,
		}
		repo := s.orders.WithTx(tx)
		if err := repo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		if _, err := s.inventory.CommitForOrder(ctx, tx, order.ID, inventory.PolicyStrict); err != nil {
			return err
		}
		if err := s.carts.RemoveOrdered(ctx, tx, cartID, ordered); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}
		if p.bonusDelta != 0 {
			if userID == nil {
				return pkgerrors.New(pkgerrors.CodeForbidden, "bonus operations require an account")
			}
			if err := userRepo.ApplyBonusDelta(ctx, *userID, p.bonusDelta); err != nil {
				return err
			}
		}
		order, err = repo.FindByID(ctx, order.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// correctAfterConflict runs when stock moved between validation and decrement. The order
// transaction is already rolled back; the cart is corrected and the report returned.
func (s *Service) correctAfterConflict(ctx context.Context, cartID uuid.UUID, conflict *pkgerrors.Error) error {
	report := ConflictReport{}
	if details, ok := conflict.Details().(map[string]any); ok {
		if conflicts, ok := details["conflicts"].([]inventory.Conflict); ok {
			report.Conflicts = conflicts
		}
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		report.Adjustments, err = s.carts.Reconcile(ctx, tx, cartID)
		return err
	})
	if err != nil {
		return wrapDependency(err, "correct cart after stock conflict")
	}
	s.logg.Warn(s.logg.WithField(ctx, "conflicts", len(report.Conflicts)), "checkout lost stock race")
	return stockConflict("stock changed during checkout, review and retry", report)
}

// sameLines reports whether the cart still holds exactly the validated lines with the same
// quantities and sellable products.
func sameLines(snapshot, live []models.CartItem) bool {
	if len(snapshot) != len(live) {
		return false
	}
	want := make(map[uuid.UUID]models.CartItem, len(snapshot))
	for _, line := range snapshot {
		want[line.ID] = line
	}
	for _, line := range live {
		prev, ok := want[line.ID]
		if !ok || prev.ProductID != line.ProductID || prev.Quantity != line.Quantity {
			return false
		}
		if line.Product == nil || !line.Product.Sellable() {
			return false
		}
	}
	return true
}

func stockConflict(msg string, report ConflictReport) error {
	return pkgerrors.New(pkgerrors.CodeStockConflict, msg).WithDetails(report)
}

func wrapDependency(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}

func outcomeFor(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return outcomeError
	}
	switch typed.Code() {
	case pkgerrors.CodeStockConflict:
		return outcomeStockConflict
	case pkgerrors.CodeValidation, pkgerrors.CodeForbidden, pkgerrors.CodeUnauthorized:
		return outcomeRejected
	case pkgerrors.CodeDependency:
		return outcomeDependency
	default:
		return outcomeError
	}
}
