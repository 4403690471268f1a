package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/homecafe-backend/pkg/db/models"
	"github.com/angelmondragon/homecafe-backend/pkg/logger"
	"github.com/angelmondragon/homecafe-backend/pkg/metrics"
)

const (
	defaultPendingAuditAge = 24 * time.Hour
	pendingAuditLimit      = 500
)

type stalePendingReader interface {
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

// PendingOrderAuditJobParams configure the stale PENDING order report.
type PendingOrderAuditJobParams struct {
	Logger  *logger.Logger
	Orders  stalePendingReader
	Metrics *metrics.OrderMetrics
	MaxAge  time.Duration
}

type pendingOrderAuditJob struct {
	logg    *logger.Logger
	orders  stalePendingReader
	metrics *metrics.OrderMetrics
	maxAge  time.Duration
	now     func() time.Time
}

// NewPendingOrderAuditJob reports orders stuck in PENDING for manual reconciliation.
// It never changes an order.
func NewPendingOrderAuditJob(params PendingOrderAuditJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	maxAge := params.MaxAge
	if maxAge <= 0 {
		maxAge = defaultPendingAuditAge
	}
	return &pendingOrderAuditJob{
		logg:    params.Logger,
		orders:  params.Orders,
		metrics: params.Metrics,
		maxAge:  maxAge,
		now:     time.Now,
	}, nil
}

func (j *pendingOrderAuditJob) Name() string { return "pending-order-audit" }

func (j *pendingOrderAuditJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	stale, err := j.orders.ListStalePending(ctx, now.Add(-j.maxAge), pendingAuditLimit)
	if err != nil {
		return fmt.Errorf("query stale pending orders: %w", err)
	}
	j.metrics.SetStalePending(len(stale))
	for _, order := range stale {
		fields := map[string]any{
			"payment_method": string(order.PaymentMethod),
			"age_hours":      int(now.Sub(order.CreatedAt).Hours()),
			"amount_due":     order.AmountDue(),
		}
		if order.PaymentID != nil {
			fields["payment_id"] = *order.PaymentID
		}
		j.logg.Warn(j.logg.WithFields(j.logg.WithOrderID(ctx, order.ID.String()), fields), "order pending past audit age")
	}
	j.logg.Info(j.logg.WithField(ctx, "stale", len(stale)), "pending order audit finished")
	return nil
}
