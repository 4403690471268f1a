package inventory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/homecafe-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/homecafe-backend/pkg/errors"
	"github.com/angelmondragon/homecafe-backend/pkg/logger"
	"github.com/angelmondragon/homecafe-backend/pkg/metrics"
)

// Policy decides what happens when a line asks for more than is in stock.
type Policy int

const (
	// PolicyStrict fails with STOCK_CONFLICT; the caller rolls the transaction back.
	PolicyStrict Policy = iota
	// PolicyClamp drains the product to zero and records an integrity violation.
	PolicyClamp
)

func (p Policy) String() string {
	if p == PolicyClamp {
		return "clamp"
	}
	return "strict"
}

// Line is one product quantity to remove from stock.
type Line struct {
	ProductID uuid.UUID `json:"productId"`
	Quantity  int       `json:"quantity"`
}

// Result describes what a decrement did to one product.
type Result struct {
	ProductID   uuid.UUID `json:"productId"`
	Requested   int       `json:"requested"`
	Decremented int       `json:"decremented"`
	Remaining   int       `json:"remaining"`
	Clamped     bool      `json:"clamped"`
	Shortfall   int       `json:"shortfall,omitempty"`
}

// Conflict is returned as STOCK_CONFLICT details.
type Conflict struct {
	ProductID uuid.UUID `json:"productId"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
}

// CommitResult is the outcome of committing an order's items against stock.
type CommitResult struct {
	OrderID          uuid.UUID `json:"orderId"`
	AlreadyCommitted bool      `json:"alreadyCommitted"`
	Results          []Result  `json:"results,omitempty"`
}

// Clamped returns the lines that could not be fully served.
func (c *CommitResult) Clamped() []Result {
	if c == nil {
		return nil
	}
	var out []Result
	for _, r := range c.Results {
		if r.Clamped {
			out = append(out, r)
		}
	}
	return out
}

// Service owns the single stock-decrement primitive and the per-order commit.
type Service struct {
	repo    *Repository
	logg    *logger.Logger
	metrics *metrics.OrderMetrics
}

type ServiceParams struct {
	Repo    *Repository
	Logger  *logger.Logger
	Metrics *metrics.OrderMetrics
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{repo: params.Repo, logg: logg, metrics: params.Metrics}, nil
}

// Repository exposes the read side for callers that share the service.
func (s *Service) Repository() *Repository {
	return s.repo
}

// Decrement removes stock for every line inside tx. Lines for the same product are merged
// and applied in product id order. With PolicyStrict the returned error carries every
// conflicting line and rows already updated in tx must be rolled back by the caller.
func (s *Service) Decrement(ctx context.Context, tx *gorm.DB, lines []Line, policy Policy) ([]Result, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	merged, err := mergeLines(lines)
	if err != nil {
		return nil, err
	}
	repo := s.repo.WithTx(tx)

	results := make([]Result, 0, len(merged))
	var conflicts []Conflict
	for _, line := range merged {
		ok, err := repo.decrementIf(ctx, line.ProductID, line.Quantity)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
		}
		remaining, exists, err := repo.stockOf(ctx, line.ProductID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read stock")
		}
		if !exists {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"productId": line.ProductID})
		}
		if ok {
			results = append(results, Result{
				ProductID:   line.ProductID,
				Requested:   line.Quantity,
				Decremented: line.Quantity,
				Remaining:   remaining,
			})
			continue
		}

		s.metrics.IncStockConflict()
		if policy == PolicyStrict {
			conflicts = append(conflicts, Conflict{
				ProductID: line.ProductID,
				Requested: line.Quantity,
				Available: remaining,
			})
			continue
		}

		if err := repo.zeroOut(ctx, line.ProductID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clamp stock")
		}
		s.metrics.IncIntegrityViolation()
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"product_id": line.ProductID.String(),
			"requested":  line.Quantity,
			"available":  remaining,
		})
		s.logg.Warn(logCtx, "stock integrity violation: decrement clamped at zero")
		results = append(results, Result{
			ProductID:   line.ProductID,
			Requested:   line.Quantity,
			Decremented: remaining,
			Remaining:   0,
			Clamped:     true,
			Shortfall:   line.Quantity - remaining,
		})
	}

	if len(conflicts) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStockConflict, "insufficient stock").
			WithDetails(map[string]any{"conflicts": conflicts})
	}
	return results, nil
}

// CommitForOrder decrements stock for the order's items exactly once. The first caller
// flips inventory_committed; later callers get AlreadyCommitted and change nothing.
func (s *Service) CommitForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, policy Policy) (*CommitResult, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	now := time.Now().UTC()
	res := tx.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND inventory_committed = ?", orderID, false).
		Updates(map[string]any{
			"inventory_committed":    true,
			"inventory_committed_at": now,
		})
	if res.Error != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "claim inventory commit")
	}
	if res.RowsAffected == 0 {
		var order models.Order
		err := tx.WithContext(ctx).Select("id").First(&order, "id = ?", orderID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		return &CommitResult{OrderID: orderID, AlreadyCommitted: true}, nil
	}

	var items []models.OrderItem
	if err := tx.WithContext(ctx).Where("order_id = ?", orderID).Find(&items).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
	}
	lines := make([]Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, Line{ProductID: item.ProductID, Quantity: item.ProductQuantity})
	}
	if len(lines) == 0 {
		return &CommitResult{OrderID: orderID}, nil
	}

	results, err := s.Decrement(s.logg.WithOrderID(ctx, orderID.String()), tx, lines, policy)
	if err != nil {
		return nil, err
	}
	return &CommitResult{OrderID: orderID, Results: results}, nil
}

func mergeLines(lines []Line) ([]Line, error) {
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one line is required")
	}
	totals := make(map[uuid.UUID]int, len(lines))
	for _, line := range lines {
		if line.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
		}
		if line.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
		}
		totals[line.ProductID] += line.Quantity
	}
	merged := make([]Line, 0, len(totals))
	for id, qty := range totals {
		merged = append(merged, Line{ProductID: id, Quantity: qty})
	}
	sort.Slice(merged, func(i, j int) bool {
		return bytes.Compare(merged[i].ProductID[:], merged[j].ProductID[:]) < 0
	})
	return merged, nil
}
