package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/homecafe-backend/pkg/logger"
	"github.com/angelmondragon/homecafe-backend/pkg/metrics"
)

const (
	defaultGuestCartTTL = 30 * 24 * time.Hour
	defaultGCBatchSize  = 200
	maxGCBatches        = 50
)

type guestCartCollector interface {
	DeleteGuestCartsBefore(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// CartGCJobParams configure abandoned guest cart collection.
type CartGCJobParams struct {
	Logger    *logger.Logger
	Carts     guestCartCollector
	Metrics   *metrics.OrderMetrics
	TTL       time.Duration
	BatchSize int
}

type cartGCJob struct {
	logg      *logger.Logger
	carts     guestCartCollector
	metrics   *metrics.OrderMetrics
	ttl       time.Duration
	batchSize int
	now       func() time.Time
}

// NewCartGCJob deletes guest carts untouched for longer than the cart token lifetime.
// User carts are kept forever.
func NewCartGCJob(params CartGCJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultGuestCartTTL
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultGCBatchSize
	}
	return &cartGCJob{
		logg:      params.Logger,
		carts:     params.Carts,
		metrics:   params.Metrics,
		ttl:       ttl,
		batchSize: batch,
		now:       time.Now,
	}, nil
}

func (j *cartGCJob) Name() string { return "guest-cart-gc" }

func (j *cartGCJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	total := 0
	for i := 0; i < maxGCBatches; i++ {
		deleted, err := j.carts.DeleteGuestCartsBefore(ctx, cutoff, j.batchSize)
		total += deleted
		if err != nil {
			j.metrics.AddCartsCollected(total)
			return fmt.Errorf("delete guest carts: %w", err)
		}
		if deleted < j.batchSize {
			break
		}
	}
	j.metrics.AddCartsCollected(total)
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"deleted": total,
		"cutoff":  cutoff.Format(time.RFC3339),
	}), "guest cart gc finished")
	return nil
}
