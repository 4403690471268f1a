package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/homecafe-backend/internal/cart"
	"github.com/angelmondragon/homecafe-backend/internal/orders"
	"github.com/angelmondragon/homecafe-backend/pkg/db/dbtest"
	"github.com/angelmondragon/homecafe-backend/pkg/db/models"
	"github.com/angelmondragon/homecafe-backend/pkg/enums"
	"github.com/angelmondragon/homecafe-backend/pkg/logger"
	"github.com/angelmondragon/homecafe-backend/pkg/metrics"
)

func quietLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

type batchCollector struct {
	batches []int
	cutoffs []time.Time
	err     error
}

func (b *batchCollector) DeleteGuestCartsBefore(_ context.Context, cutoff time.Time, limit int) (int, error) {
	b.cutoffs = append(b.cutoffs, cutoff)
	if len(b.batches) == 0 {
		return 0, b.err
	}
	n := b.batches[0]
	b.batches = b.batches[1:]
	if n > limit {
		n = limit
	}
	return n, nil
}

func TestCartGCJobDrainsInBatches(t *testing.T) {
	collector := &batchCollector{batches: []int{2, 2, 1}}
	job, err := NewCartGCJob(CartGCJobParams{
		Logger:    quietLogger(),
		Carts:     collector,
		Metrics:   metrics.NewOrderMetrics(prometheus.NewRegistry()),
		TTL:       48 * time.Hour,
		BatchSize: 2,
	})
	require.NoError(t, err)
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	job.(*cartGCJob).now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.Len(t, collector.cutoffs, 3)
	assert.Equal(t, now.Add(-48*time.Hour), collector.cutoffs[0])
}

func TestCartGCJobReportsErrors(t *testing.T) {
	job, err := NewCartGCJob(CartGCJobParams{
		Logger: quietLogger(),
		Carts:  &batchCollector{err: errors.New("db gone")},
	})
	require.NoError(t, err)
	require.ErrorContains(t, job.Run(context.Background()), "db gone")

	_, err = NewCartGCJob(CartGCJobParams{Logger: quietLogger()})
	require.Error(t, err)
}

func TestCartGCJobKeepsUserAndFreshCarts(t *testing.T) {
	conn := dbtest.OpenSQLite(t)
	user := dbtest.SeedUser(t, conn, 0)
	old := time.Now().UTC().Add(-60 * 24 * time.Hour)

	staleToken, freshToken := "stale-token", "fresh-token"
	stale := models.Cart{Token: &staleToken}
	fresh := models.Cart{Token: &freshToken}
	owned := models.Cart{UserID: &user.ID}
	for _, c := range []*models.Cart{&stale, &fresh, &owned} {
		require.NoError(t, conn.Create(c).Error)
	}
	require.NoError(t, conn.Model(&models.Cart{}).Where("id IN ?", []uuid.UUID{stale.ID, owned.ID}).
		UpdateColumn("updated_at", old).Error)

	job, err := NewCartGCJob(CartGCJobParams{Logger: quietLogger(), Carts: cart.NewRepository(conn)})
	require.NoError(t, err)
	require.NoError(t, job.Run(context.Background()))

	var ids []uuid.UUID
	require.NoError(t, conn.Model(&models.Cart{}).Pluck("id", &ids).Error)
	assert.ElementsMatch(t, []uuid.UUID{fresh.ID, owned.ID}, ids)
}

func TestPendingOrderAuditJobNeverMutates(t *testing.T) {
	conn := dbtest.OpenSQLite(t)
	old := models.Order{
		Status:        enums.OrderStatusPending,
		PaymentMethod: enums.PaymentMethodOnline,
		DeliveryType:  enums.DeliveryTypePickup,
		Name:          "Late",
		Email:         "late@example.com",
		Phone:         "+70000000004",
	}
	recent := old
	recent.Name = "Recent"
	require.NoError(t, conn.Create(&old).Error)
	require.NoError(t, conn.Create(&recent).Error)
	require.NoError(t, conn.Model(&models.Order{}).Where("id = ?", old.ID).
		UpdateColumn("created_at", time.Now().UTC().Add(-72*time.Hour)).Error)

	reader := &countingReader{inner: orders.NewRepository(conn)}
	job, err := NewPendingOrderAuditJob(PendingOrderAuditJobParams{
		Logger:  quietLogger(),
		Orders:  reader,
		Metrics: metrics.NewOrderMetrics(prometheus.NewRegistry()),
		MaxAge:  24 * time.Hour,
	})
	require.NoError(t, err)
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, reader.found)

	var statuses []enums.OrderStatus
	require.NoError(t, conn.Model(&models.Order{}).Pluck("status", &statuses).Error)
	assert.Equal(t, []enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusPending}, statuses)
}

type countingReader struct {
	inner stalePendingReader
	found int
}

func (c *countingReader) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	rows, err := c.inner.ListStalePending(ctx, cutoff, limit)
	c.found = len(rows)
	return rows, err
}
