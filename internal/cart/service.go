package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/homecafe-backend/internal/inventory"
	"github.com/angelmondragon/homecafe-backend/pkg/db"
	"github.com/angelmondragon/homecafe-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/homecafe-backend/pkg/errors"
	"github.com/angelmondragon/homecafe-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type orderLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

// Service owns cart identity, merging, and mutation.
type Service struct {
	repo     *Repository
	products *inventory.Repository
	orders   orderLoader
	tx       txRunner
	logg     *logger.Logger
}

type ServiceParams struct {
	Repo     *Repository
	Products *inventory.Repository
	Orders   orderLoader
	Tx       txRunner
	Logger   *logger.Logger
}

// NewService builds a cart service backed by the provided stack.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		repo:     params.Repo,
		products: params.Products,
		orders:   params.Orders,
		tx:       params.Tx,
		logg:     logg,
	}, nil
}

// GetCart resolves the caller's cart, corrects drift against live stock, and returns the view.
func (s *Service) GetCart(ctx context.Context, caller Caller) (*CartView, error) {
	res, err := s.Resolve(ctx, caller)
	if err != nil {
		return nil, err
	}
	var view *CartView
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		adj, err := s.Reconcile(ctx, tx, res.Cart.ID)
		if err != nil {
			return err
		}
		view, err = s.load(ctx, tx, res.Cart, adj)
		return err
	})
	if err != nil {
		return nil, wrapDependency(err, "load cart")
	}
	return withIdentity(view, res), nil
}

// AddItem puts qty more of a product into the caller's cart. The check counts what the
// cart already holds, so the line never exceeds current stock.
func (s *Service) AddItem(ctx context.Context, caller Caller, productID uuid.UUID, qty int) (*CartView, error) {
	if qty == 0 {
		qty = 1
	}
	if qty < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	res, err := s.Resolve(ctx, caller)
	if err != nil {
		return nil, err
	}

	view, err := s.addItem(ctx, res.Cart, productID, qty)
	if err != nil && db.IsUniqueViolation(err, "ux_cart_items_cart_product") {
		// A concurrent add inserted the line first; the retry increments it.
		view, err = s.addItem(ctx, res.Cart, productID, qty)
	}
	if err != nil {
		return nil, wrapDependency(err, "add cart item")
	}
	return withIdentity(view, res), nil
}

func (s *Service) addItem(ctx context.Context, cart *models.Cart, productID uuid.UUID, qty int) (*CartView, error) {
	var view *CartView
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		product, err := s.products.WithTx(tx).FindByID(ctx, productID)
		if err != nil {
			return err
		}
		existing, err := repo.FindItemByProduct(ctx, cart.ID, productID)
		if err != nil {
			return err
		}
		total := qty
		if existing != nil {
			total += existing.Quantity
		}
		if err := checkStock(product, total); err != nil {
			return err
		}
		if existing != nil {
			err = repo.SetItemQuantity(ctx, existing.ID, total)
		} else {
			err = repo.CreateItem(ctx, &models.CartItem{CartID: cart.ID, ProductID: productID, Quantity: total})
		}
		if err != nil {
			return err
		}
		if err := repo.Touch(ctx, cart.ID); err != nil {
			return err
		}
		view, err = s.load(ctx, tx, cart, newAdjustments())
		return err
	})
	return view, err
}

// UpdateItem sets the quantity of a line in the caller's cart.
func (s *Service) UpdateItem(ctx context.Context, caller Caller, itemID uuid.UUID, qty int) (*CartView, error) {
	if qty < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	res, err := s.Resolve(ctx, caller)
	if err != nil {
		return nil, err
	}
	var view *CartView
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := ownedItem(ctx, repo, res.Cart.ID, itemID)
		if err != nil {
			return err
		}
		if item.Product == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		if err := checkStock(item.Product, qty); err != nil {
			return err
		}
		if err := repo.SetItemQuantity(ctx, item.ID, qty); err != nil {
			return err
		}
		if err := repo.Touch(ctx, res.Cart.ID); err != nil {
			return err
		}
		view, err = s.load(ctx, tx, res.Cart, newAdjustments())
		return err
	})
	if err != nil {
		return nil, wrapDependency(err, "update cart item")
	}
	return withIdentity(view, res), nil
}

// RemoveItem deletes a line from the caller's cart.
func (s *Service) RemoveItem(ctx context.Context, caller Caller, itemID uuid.UUID) (*CartView, error) {
	res, err := s.Resolve(ctx, caller)
	if err != nil {
		return nil, err
	}
	var view *CartView
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := ownedItem(ctx, repo, res.Cart.ID, itemID)
		if err != nil {
			return err
		}
		if err := repo.DeleteItem(ctx, item.ID); err != nil {
			return err
		}
		if err := repo.Touch(ctx, res.Cart.ID); err != nil {
			return err
		}
		view, err = s.load(ctx, tx, res.Cart, newAdjustments())
		return err
	})
	if err != nil {
		return nil, wrapDependency(err, "remove cart item")
	}
	return withIdentity(view, res), nil
}

// RemoveOrdered deletes the given lines from a cart inside tx. Checkout calls this after the
// order is written; lines it did not order stay in the cart.
func (s *Service) RemoveOrdered(ctx context.Context, tx *gorm.DB, cartID uuid.UUID, itemIDs []uuid.UUID) error {
	repo := s.repo.WithTx(tx)
	if err := repo.DeleteItems(ctx, cartID, itemIDs); err != nil {
		return err
	}
	return repo.Touch(ctx, cartID)
}

// Items returns the cart lines with their live products inside tx.
func (s *Service) Items(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) ([]models.CartItem, error) {
	return s.repo.WithTx(tx).ListItems(ctx, cartID)
}

// Reconcile removes lines whose product is gone or unsellable and clamps lines that exceed
// stock. Corrections are written through tx.
func (s *Service) Reconcile(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) (Adjustments, error) {
	repo := s.repo.WithTx(tx)
	adj := newAdjustments()
	items, err := repo.ListItems(ctx, cartID)
	if err != nil {
		return adj, err
	}
	for _, item := range items {
		entry := Adjustment{ItemID: item.ID, ProductID: item.ProductID, Requested: item.Quantity}
		if item.Product != nil {
			entry.ProductName = item.Product.Name
			entry.Available = item.Product.StockQuantity
		}
		switch {
		case item.Product == nil || !item.Product.Sellable():
			entry.Available = 0
			if err := repo.DeleteItem(ctx, item.ID); err != nil {
				return adj, err
			}
			adj.Removed = append(adj.Removed, entry)
		case item.Quantity > item.Product.StockQuantity:
			if err := repo.SetItemQuantity(ctx, item.ID, item.Product.StockQuantity); err != nil {
				return adj, err
			}
			adj.Reduced = append(adj.Reduced, entry)
		}
	}
	if !adj.Empty() {
		logCtx := s.logg.WithFields(s.logg.WithCartID(ctx, cartID.String()), map[string]any{
			"removed": len(adj.Removed),
			"reduced": len(adj.Reduced),
		})
		s.logg.Info(logCtx, "cart corrected against stock")
		if err := repo.Touch(ctx, cartID); err != nil {
			return adj, err
		}
	}
	return adj, nil
}

// RepeatOrder adds a previous order's lines to the caller's cart, clamped to current stock.
func (s *Service) RepeatOrder(ctx context.Context, caller Caller, orderID uuid.UUID) (*CartView, error) {
	if !caller.Authenticated() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if s.orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order lookup not configured")
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID == nil || *order.UserID != *caller.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another user")
	}
	res, err := s.Resolve(ctx, caller)
	if err != nil {
		return nil, err
	}

	var view *CartView
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ids := make([]uuid.UUID, 0, len(order.Items))
		for _, item := range order.Items {
			ids = append(ids, item.ProductID)
		}
		products, err := s.products.WithTx(tx).FindByIDs(ctx, ids)
		if err != nil {
			return err
		}
		adj := newAdjustments()
		for _, line := range order.Items {
			entry := Adjustment{ProductID: line.ProductID, ProductName: line.ProductName, Requested: line.ProductQuantity}
			product, ok := products[line.ProductID]
			if !ok || !product.Sellable() {
				adj.Removed = append(adj.Removed, entry)
				continue
			}
			existing, err := repo.FindItemByProduct(ctx, res.Cart.ID, line.ProductID)
			if err != nil {
				return err
			}
			current := 0
			if existing != nil {
				current = existing.Quantity
				entry.ItemID = existing.ID
			}
			want := current + line.ProductQuantity
			if want > product.StockQuantity {
				entry.Requested = want
				entry.Available = product.StockQuantity
				want = product.StockQuantity
				adj.Reduced = append(adj.Reduced, entry)
			}
			if want == current {
				continue
			}
			if existing != nil {
				err = repo.SetItemQuantity(ctx, existing.ID, want)
			} else {
				err = repo.CreateItem(ctx, &models.CartItem{CartID: res.Cart.ID, ProductID: line.ProductID, Quantity: want})
			}
			if err != nil {
				return err
			}
		}
		if err := repo.Touch(ctx, res.Cart.ID); err != nil {
			return err
		}
		view, err = s.load(ctx, tx, res.Cart, adj)
		return err
	})
	if err != nil {
		return nil, wrapDependency(err, "repeat order")
	}
	return withIdentity(view, res), nil
}

func (s *Service) load(ctx context.Context, tx *gorm.DB, cart *models.Cart, adj Adjustments) (*CartView, error) {
	items, err := s.repo.WithTx(tx).ListItems(ctx, cart.ID)
	if err != nil {
		return nil, err
	}
	return buildView(cart, items, adj), nil
}

func ownedItem(ctx context.Context, repo *Repository, cartID, itemID uuid.UUID) (*models.CartItem, error) {
	item, err := repo.FindItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	if item.CartID != cartID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cart item belongs to another cart")
	}
	return item, nil
}

func checkStock(product *models.Product, requested int) error {
	available := product.StockQuantity
	if !product.Sellable() {
		available = 0
	}
	if requested <= available {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeStockConflict, "insufficient stock").
		WithDetails(map[string]any{
			"productId": product.ID,
			"requested": requested,
			"available": available,
		})
}

func withIdentity(view *CartView, res *Resolution) *CartView {
	view.IssuedToken = res.IssuedToken
	view.TokenCleared = res.TokenCleared
	return view
}

func wrapDependency(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
