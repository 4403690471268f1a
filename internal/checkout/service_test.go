package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/homecafe-backend/internal/cart"
	"github.com/angelmondragon/homecafe-backend/internal/inventory"
	"github.com/angelmondragon/homecafe-backend/internal/notifications"
	"github.com/angelmondragon/homecafe-backend/internal/orders"
	"github.com/angelmondragon/homecafe-backend/internal/payments"
	"github.com/angelmondragon/homecafe-backend/internal/users"
	"github.com/angelmondragon/homecafe-backend/pkg/config"
	"github.com/angelmondragon/homecafe-backend/pkg/db"
	"github.com/angelmondragon/homecafe-backend/pkg/db/dbtest"
	"github.com/angelmondragon/homecafe-backend/pkg/db/models"
	"github.com/angelmondragon/homecafe-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/homecafe-backend/pkg/errors"
)

// hookTx runs before[n] right before the n-th transaction starts.
type hookTx struct {
	inner  *db.Client
	calls  int
	before map[int]func()
}

func (h *hookTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	h.calls++
	if hook, ok := h.before[h.calls]; ok {
		hook()
	}
	return h.inner.WithTx(ctx, fn)
}

type stubGateway struct {
	requests []payments.PaymentRequest
	err      error
}

func (g *stubGateway) CreatePayment(_ context.Context, req payments.PaymentRequest) (*payments.Session, error) {
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	return &payments.Session{ID: "cs_" + req.OrderID.String(), ConfirmationURL: "https://pay.test/" + req.OrderID.String()}, nil
}

type sentNotification struct {
	status enums.OrderStatus
	extras notifications.Extras
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (r *recordingNotifier) Dispatch(_ context.Context, order *models.Order, extras notifications.Extras) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentNotification{status: order.Status, extras: extras})
	return nil
}

type fixture struct {
	conn     *gorm.DB
	tx       *hookTx
	carts    *cart.Service
	svc      *Service
	gateway  *stubGateway
	notifier *recordingNotifier
}

func newFixture(t *testing.T, cfg config.CheckoutConfig) *fixture {
	t.Helper()
	conn := dbtest.OpenSQLite(t)
	inv, err := inventory.NewService(inventory.ServiceParams{Repo: inventory.NewRepository(conn)})
	require.NoError(t, err)
	orderRepo := orders.NewRepository(conn)
	carts, err := cart.NewService(cart.ServiceParams{
		Repo:     cart.NewRepository(conn),
		Products: inventory.NewRepository(conn),
		Orders:   orderRepo,
		Tx:       db.Wrap(conn),
	})
	require.NoError(t, err)

	f := &fixture{
		conn:     conn,
		tx:       &hookTx{inner: db.Wrap(conn), before: map[int]func(){}},
		carts:    carts,
		gateway:  &stubGateway{},
		notifier: &recordingNotifier{},
	}
	f.svc, err = NewService(ServiceParams{
		Tx:        f.tx,
		Carts:     carts,
		Orders:    orderRepo,
		Users:     users.NewRepository(conn),
		Inventory: inv,
		Gateway:   f.gateway,
		Notifier:  f.notifier,
		Config:    cfg,
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) guestCart(t *testing.T, product models.Product, qty int) cart.Caller {
	t.Helper()
	view, err := f.carts.AddItem(context.Background(), cart.Caller{}, product.ID, qty)
	require.NoError(t, err)
	require.NotEmpty(t, view.IssuedToken)
	return cart.Caller{Token: view.IssuedToken}
}

func pickupInput(method enums.PaymentMethod) Input {
	return Input{
		Name:          " Ann ",
		Email:         "ann@example.com",
		Phone:         "+70000000003",
		DeliveryType:  enums.DeliveryTypePickup,
		PaymentMethod: method,
	}
}

func countOrders(t *testing.T, conn *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(&models.Order{}).Count(&n).Error)
	return n
}

func TestGuestOfflineCheckoutConfirmsAndClearsCart(t *testing.T) {
	f := newFixture(t, config.CheckoutConfig{})
	ctx := context.Background()

	product := dbtest.SeedProduct(t, f.conn, "latte", 250, 5)
	caller := f.guestCart(t, product, 2)
	assert.Equal(t, 5, dbtest.ReloadProduct(t, f.conn, product.ID).StockQuantity, "adding to cart does not touch stock")

	res, err := f.svc.Checkout(ctx, caller, pickupInput(enums.PaymentMethodOffline))
	require.NoError(t, err)
	assert.True(t, res.Confirmed)
	assert.Empty(t, res.ConfirmationURL)
	assert.Equal(t, "Ann", res.Order.Name)
	assert.Equal(t, 500, res.Order.GoodsTotal)
	assert.Equal(t, 0, res.Order.DeliveryCost)
	assert.True(t, res.Order.InventoryCommitted)
	assert.Nil(t, res.Order.UserID)

	assert.Equal(t, 3, dbtest.ReloadProduct(t, f.conn, product.ID).StockQuantity)

	view, err := f.carts.GetCart(ctx, caller)
	require.NoError(t, err)
	assert.Empty(t, view.Items, "cart is emptied but kept")
	assert.Empty(t, view.IssuedToken, "same guest cart is reused")

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, enums.OrderStatusPending, f.notifier.sent[0].status)
	assert.Empty(t, f.gateway.requests)
}

func TestCheckoutEmptyCart(t *testing.T) {
	f := newFixture(t, config.CheckoutConfig{})
	_, err := f.svc.Checkout(context.Background(), cart.Caller{}, pickupInput(enums.PaymentMethodOffline))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
}

func TestCheckoutValidation(t *testing.T) {
	f := newFixture(t, config.CheckoutConfig{})
	product := dbtest.SeedProduct(t, f.conn, "bun", 90, 5)
	caller := f.guestCart(t, product, 1)

	noAddress := pickupInput(enums.PaymentMethodOffline)
	noAddress.DeliveryType = enums.DeliveryTypeDelivery
	noEmail := pickupInput(enums.PaymentMethodOffline)
	noEmail.Email = ""
	badPayment := pickupInput("cash")
	negative := pickupInput(enums.PaymentMethodOffline)
	negative.BonusSpend = -1

	for name, in := range map[string]Input{
		"delivery without address": noAddress,
		"missing email":            noEmail,
		"unknown payment":          badPayment,
		"negative bonus":           negative,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Checkout(context.Background(), caller, in)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
		})
	}
	assert.Zero(t, countOrders(t, f.conn))
}

func TestGuestBonusSpendIsForbidden(t *testing.T) {
	f := newFixture(t, config.CheckoutConfig{})
	product := dbtest.SeedProduct(t, f.conn, "cake", 400, 5)
	caller := f.guestCart(t, product, 1)

	in := pickupInput(enums.PaymentMethodOffline)
	in.BonusSpend = 10
	_, err := f.svc.Checkout(context.Background(), caller, in)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden), "got %v", err)
	assert.Zero(t, countOrders(t, f.conn))
	assert.Equal(t, 5, dbtest.ReloadProduct(t, f.conn, product.ID).StockQuantity)
}

func TestUserSpendsBonus(t *testing.T) {
	f := newFixture(t, config.CheckoutConfig{})
	ctx := context.Background()

	user := dbtest.SeedUser(t, f.conn, 100)
	product := dbtest.SeedProduct(t, f.conn, "pie", 300, 5)
	caller := cart.Caller{UserID: &user.ID}
	_, err := f.carts.AddItem(ctx, caller, product.ID, 1)
	require.NoError(t, err)

	in := pickupInput(enums.PaymentMethodOffline)
	in.BonusSpend = 50
	res, err := f.svc.Checkout(ctx, caller, in)
	require.NoError(t, err)
	assert.Equal(t, -50, res.Order.BonusDelta)
	assert.Equal(t, 50, res.Order.BonusSpent)
	assert.Equal(t, 250, res.Order.AmountDue)
	require.NotNil(t, res.Order.UserID)
	assert.Equal(t, user.ID, *res.Order.UserID)

	got, err := users.NewRepository(f.conn).FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, got.BonusBalance)
}

func TestUserBonusAccrualAndLimits(t *testing.T) {
	f := newFixture(t, config.CheckoutConfig{BonusAccrualPercent: 5})
	ctx := context.Background()

	user := dbtest.SeedUser(t, f.conn, 30)
	product := dbtest.SeedProduct(t, f.conn, "beans", 210, 10)
	caller := cart.Caller{UserID: &user.ID}
	_, err := f.carts.AddItem(ctx, caller, product.ID, 1)
	require.NoError(t, err)

	over := pickupInput(enums.PaymentMethodOffline)
	over.BonusSpend = 31
	_, err = f.svc.Checkout(ctx, caller, over)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
	assert.Equal(t, 10, dbtest.ReloadProduct(t, f.conn, product.ID).StockQuantity)

	in := pickupInput(enums.PaymentMethodOffline)
	in.BonusSpend = 10
	res, err := f.svc.Checkout(ctx, caller, in)
	require.NoError(t, err)
	// accrual = floor((210-10)*5/100) = 10
	assert.Equal(t, 0, res.Order.BonusDelta)

	_, err = f.carts.AddItem(ctx, caller, product.ID, 1)
	require.NoError(t, err)
	res, err = f.svc.Checkout(ctx, caller, pickupInput(enums.PaymentMethodOffline))
	require.NoError(t, err)
	assert.Equal(t, 10, res.Order.BonusDelta)

	got, err := users.NewRepository(f.conn).FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, got.BonusBalance)
}

func TestDeliveryCostAndFreeThreshold(t *testing.T) {
	f := newFixture(t, config.CheckoutConfig{DeliveryCost: 200, FreeDeliveryThreshold: 1000})
	ctx := context.Background()
	product := dbtest.SeedProduct(t, f.conn, "box", 600, 10)

	in := pickupInput(enums.PaymentMethodOffline)
	in.DeliveryType = enums.DeliveryTypeDelivery
	in.Address = "1 Bean St"

	caller := f.guestCart(t, product, 1)
	res, err := f.svc.Checkout(ctx, caller, in)
	require.NoError(t, err)
	assert.Equal(t, 200, res.Order.DeliveryCost)
	assert.Equal(t, 800, res.Order.AmountDue)

	_, err = f.carts.AddItem(ctx, caller, product.ID, 2)
	require.NoError(t, err)
	res, err = f.svc.Checkout(ctx, caller, in)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Order.DeliveryCost)
}

func TestOnlineCheckoutOpensPayment(t *testing.T) {
	f := newFixture(t, config.CheckoutConfig{})
	ctx := context.Background()
	product := dbtest.SeedProduct(t, f.conn, "latte", 250, 5)
	caller := f.guestCart(t, product, 2)

	res, err := f.svc.Checkout(ctx, caller, pickupInput(enums.PaymentMethodOnline))
	require.NoError(t, err)
	assert.False(t, res.Confirmed)
	assert.Equal(t, "https://pay.test/"+res.Order.ID.String(), res.ConfirmationURL)
	require.NotNil(t, res.Order.PaymentID)
	assert.Equal(t, "cs_"+res.Order.ID.String(), *res.Order.PaymentID)
	assert.Equal(t, enums.OrderStatusPending, res.Order.Status)

	require.Len(t, f.gateway.requests, 1)
	assert.Equal(t, int64(500), f.gateway.requests[0].Amount)
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, res.ConfirmationURL, f.notifier.sent[0].extras.ConfirmationURL)

	stored, err := orders.NewRepository(f.conn).FindByPaymentID(ctx, *res.Order.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, res.Order.ID, stored.ID)
}

func TestGatewayFailureLeavesPendingOrder(t *testing.T) {
	f := newFixture(t, config.CheckoutConfig{})
	f.gateway.err = errors.New("gateway timeout")
	product := dbtest.SeedProduct(t, f.conn, "latte", 250, 5)
	caller := f.guestCart(t, product, 1)

	_, err := f.svc.Checkout(context.Background(), caller, pickupInput(enums.PaymentMethodOnline))
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeDependency, typed.Code())
	details := typed.Details().(map[string]any)
	orderID, ok := details["order_id"].(uuid.UUID)
	require.True(t, ok)

	var order models.Order
	require.NoError(t, f.conn.First(&order, "id = ?", orderID).Error)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.Nil(t, order.PaymentID)
	assert.Empty(t, f.notifier.sent)
}

func TestCheckoutRemovesUnavailableItemsAndStops(t *testing.T) {
	f := newFixture(t, config.CheckoutConfig{})
	ctx := context.Background()
	keep := dbtest.SeedProduct(t, f.conn, "tea", 150, 5)
	gone := dbtest.SeedProduct(t, f.conn, "scone", 120, 5)

	caller := f.guestCart(t, keep, 1)
	_, err := f.carts.AddItem(ctx, caller, gone.ID, 1)
	require.NoError(t, err)
	require.NoError(t, f.conn.Model(&models.Product{}).Where("id = ?", gone.ID).Update("is_available", false).Error)

	_, err = f.svc.Checkout(ctx, caller, pickupInput(enums.PaymentMethodOffline))
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStockConflict, typed.Code())
	report := typed.Details().(ConflictReport)
	require.Len(t, report.Adjustments.Removed, 1)
	assert.Equal(t, gone.ID, report.Adjustments.Removed[0].ProductID)
	assert.Zero(t, countOrders(t, f.conn))

	res, err := f.svc.Checkout(ctx, caller, pickupInput(enums.PaymentMethodOffline))
	require.NoError(t, err, "retry after the report succeeds")
	assert.Len(t, res.Order.Items, 1)
}

// Stock drops between validation and decrement: nothing is written and the cart is
// corrected to what is left.
func TestCheckoutLosesStockRace(t *testing.T) {
	f := newFixture(t, config.CheckoutConfig{})
	ctx := context.Background()
	product := dbtest.SeedProduct(t, f.conn, "croissant", 180, 5)
	caller := f.guestCart(t, product, 2)

	f.tx.calls = 0
	f.tx.before[2] = func() {
		_, err := inventory.NewRepository(f.conn).SetStock(ctx, product.ID, 1, true)
		require.NoError(t, err)
	}

	_, err := f.svc.Checkout(ctx, caller, pickupInput(enums.PaymentMethodOffline))
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "got %v", err)
	assert.Equal(t, pkgerrors.CodeStockConflict, typed.Code())
	report := typed.Details().(ConflictReport)
	require.Len(t, report.Conflicts, 1)
	assert.Equal(t, inventory.Conflict{ProductID: product.ID, Requested: 2, Available: 1}, report.Conflicts[0])
	require.Len(t, report.Adjustments.Reduced, 1)

	assert.Zero(t, countOrders(t, f.conn))
	assert.Equal(t, 1, dbtest.ReloadProduct(t, f.conn, product.ID).StockQuantity)

	view, err := f.carts.GetCart(ctx, caller)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 1, view.Items[0].Quantity)
	assert.Empty(t, f.notifier.sent)
}

// A line added between validation and the order write stops the checkout; nothing is ordered
// and the new line stays in the cart.
func TestCheckoutStopsWhenCartChangesMidway(t *testing.T) {
	f := newFixture(t, config.CheckoutConfig{})
	ctx := context.Background()
	latte := dbtest.SeedProduct(t, f.conn, "latte", 250, 5)
	bun := dbtest.SeedProduct(t, f.conn, "bun", 90, 5)
	caller := f.guestCart(t, latte, 1)

	f.tx.calls = 0
	f.tx.before[2] = func() {
		_, err := f.carts.AddItem(ctx, caller, bun.ID, 3)
		require.NoError(t, err)
	}

	_, err := f.svc.Checkout(ctx, caller, pickupInput(enums.PaymentMethodOffline))
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "got %v", err)
	assert.Equal(t, pkgerrors.CodeStockConflict, typed.Code())
	assert.Equal(t, "cart changed, review and retry", typed.Message())
	assert.Zero(t, countOrders(t, f.conn))
	assert.Equal(t, 5, dbtest.ReloadProduct(t, f.conn, latte.ID).StockQuantity)
	assert.Equal(t, 5, dbtest.ReloadProduct(t, f.conn, bun.ID).StockQuantity)

	view, err := f.carts.GetCart(ctx, caller)
	require.NoError(t, err)
	assert.Len(t, view.Items, 2, "the added line is kept")

	delete(f.tx.before, 2)
	res, err := f.svc.Checkout(ctx, caller, pickupInput(enums.PaymentMethodOffline))
	require.NoError(t, err)
	assert.Len(t, res.Order.Items, 2)
	assert.Equal(t, 250+3*90, res.Order.GoodsTotal)
	assert.Equal(t, 2, dbtest.ReloadProduct(t, f.conn, bun.ID).StockQuantity)

	view, err = f.carts.GetCart(ctx, caller)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
}

func TestOnlineCheckoutWithNothingDue(t *testing.T) {
	f := newFixture(t, config.CheckoutConfig{})
	ctx := context.Background()
	user := dbtest.SeedUser(t, f.conn, 500)
	product := dbtest.SeedProduct(t, f.conn, "cookie", 50, 5)
	caller := cart.Caller{UserID: &user.ID}
	_, err := f.carts.AddItem(ctx, caller, product.ID, 1)
	require.NoError(t, err)

	in := pickupInput(enums.PaymentMethodOnline)
	in.BonusSpend = 50
	_, err = f.svc.Checkout(ctx, caller, in)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
	assert.Equal(t, 5, dbtest.ReloadProduct(t, f.conn, product.ID).StockQuantity)

	got, err := users.NewRepository(f.conn).FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 500, got.BonusBalance)
}

func TestPriceRules(t *testing.T) {
	cfg := config.CheckoutConfig{DeliveryCost: 200, BonusAccrualPercent: 10}
	balance := 100

	p, err := price(cfg, 999, enums.DeliveryTypeDelivery, 0, &balance)
	require.NoError(t, err)
	assert.Equal(t, 200, p.deliveryCost)
	assert.Equal(t, 99, p.bonusDelta)
	assert.Equal(t, 1199, p.amountDue())

	p, err = price(cfg, 999, enums.DeliveryTypePickup, 0, nil)
	require.NoError(t, err)
	assert.Zero(t, p.bonusDelta, "guests never accrue")

	_, err = price(cfg, 40, enums.DeliveryTypePickup, 50, &balance)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
