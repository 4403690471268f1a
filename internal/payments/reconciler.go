package payments

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/homecafe-backend/internal/inventory"
	"github.com/angelmondragon/homecafe-backend/internal/notifications"
	"github.com/angelmondragon/homecafe-backend/internal/orders"
	"github.com/angelmondragon/homecafe-backend/pkg/db/models"
	"github.com/angelmondragon/homecafe-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/homecafe-backend/pkg/errors"
	"github.com/angelmondragon/homecafe-backend/pkg/logger"
	"github.com/angelmondragon/homecafe-backend/pkg/metrics"
)

// Outcome labels what a callback did to the order.
type Outcome string

const (
	OutcomeUnknownOrder Outcome = "unknown_order"
	OutcomeAlreadyFinal Outcome = "already_final"
	OutcomeSucceeded    Outcome = "succeeded"
	OutcomeCancelled    Outcome = "cancelled"
)

// PaymentResult is a gateway callback reduced to what the reconciler needs.
type PaymentResult struct {
	GatewayRef string
	OrderID    *uuid.UUID
	Succeeded  bool
	Status     string
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Reconciler applies asynchronous payment results to PENDING orders.
type Reconciler struct {
	orders    orders.Repository
	tx        txRunner
	inventory *inventory.Service
	notifier  notifications.Notifier
	logg      *logger.Logger
	metrics   *metrics.OrderMetrics
}

type ReconcilerParams struct {
	Orders    orders.Repository
	Tx        txRunner
	Inventory *inventory.Service
	Notifier  notifications.Notifier
	Logger    *logger.Logger
	Metrics   *metrics.OrderMetrics
}

func NewReconciler(params ReconcilerParams) (*Reconciler, error) {
	if params.Orders == nil {
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
	return &Reconciler{
		orders:    params.Orders,
		tx:        params.Tx,
		inventory: params.Inventory,
		notifier:  params.Notifier,
		logg:      logg,
		metrics:   params.Metrics,
	}, nil
}

// Reconcile is safe to call repeatedly for the same result. An unknown order is not an
// error: the gateway gets a 2xx and stops retrying.
func (r *Reconciler) Reconcile(ctx context.Context, result PaymentResult) (Outcome, error) {
	logCtx := r.logg.WithFields(ctx, map[string]any{
		"gateway_ref":    result.GatewayRef,
		"gateway_status": result.Status,
		"succeeded":      result.Succeeded,
	})

	order, err := r.lookup(ctx, result)
	if err != nil {
		return "", err
	}
	if order == nil {
		r.logg.Warn(logCtx, "payment callback for unknown order")
		r.metrics.IncPaymentCallback(string(OutcomeUnknownOrder))
		return OutcomeUnknownOrder, nil
	}
	logCtx = r.logg.WithOrderID(logCtx, order.ID.String())

	if order.Status != enums.OrderStatusPending {
		r.logg.Info(logCtx, "payment callback ignored, order already final")
		r.metrics.IncPaymentCallback(string(OutcomeAlreadyFinal))
		return OutcomeAlreadyFinal, nil
	}

	outcome := OutcomeCancelled
	target := enums.OrderStatusCancelled
	if result.Succeeded {
		outcome = OutcomeSucceeded
		target = enums.OrderStatusSucceeded
	}

	var (
		updated *models.Order
		clamped []inventory.Result
	)
	err = r.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := r.orders.WithTx(tx)
		moved, err := repo.UpdateStatusIf(ctx, order.ID, enums.OrderStatusPending, target)
		if err != nil {
			return err
		}
		if !moved {
			outcome = OutcomeAlreadyFinal
			return nil
		}
		if order.PaymentID == nil && result.GatewayRef != "" {
			if err := repo.SetPaymentID(ctx, order.ID, result.GatewayRef); err != nil {
				return err
			}
		}
		if result.Succeeded {
			commit, err := r.inventory.CommitForOrder(ctx, tx, order.ID, inventory.PolicyClamp)
			if err != nil {
				return err
			}
			clamped = commit.Clamped()
		}
		updated, err = repo.FindByID(ctx, order.ID)
		return err
	})
	if err != nil {
		r.logg.Error(logCtx, "payment callback failed", err)
		return "", err
	}

	r.metrics.IncPaymentCallback(string(outcome))
	if outcome == OutcomeAlreadyFinal {
		r.logg.Info(logCtx, "payment callback lost status race, order already final")
		return outcome, nil
	}
	if len(clamped) > 0 {
		r.logg.Warn(r.logg.WithField(logCtx, "clamped_lines", len(clamped)), "paid order committed with clamped stock")
	}
	r.logg.Info(r.logg.WithField(logCtx, "outcome", string(outcome)), "payment callback applied")
	notifications.NotifyCommitted(ctx, r.notifier, r.logg, updated, notifications.Extras{})
	return outcome, nil
}

func (r *Reconciler) lookup(ctx context.Context, result PaymentResult) (*models.Order, error) {
	if result.GatewayRef != "" {
		order, err := r.orders.FindByPaymentID(ctx, result.GatewayRef)
		if err == nil {
			return order, nil
		}
		if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, err
		}
	}
	if result.OrderID == nil {
		return nil, nil
	}
	order, err := r.orders.FindByID(ctx, *result.OrderID)
	if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// a client reference must not redirect another session's payment
	if order.PaymentID != nil && result.GatewayRef != "" && *order.PaymentID != result.GatewayRef {
		return nil, nil
	}
	return order, nil
}
