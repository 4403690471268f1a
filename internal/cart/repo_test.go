package cart

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/homecafe-backend/pkg/db/dbtest"
	"github.com/angelmondragon/homecafe-backend/pkg/db/models"
)

func seedStaleGuestCart(t *testing.T, svc *Service, conn *gorm.DB, product models.Product, lastSeen time.Time) *models.Cart {
	t.Helper()
	view, err := svc.AddItem(context.Background(), Caller{}, product.ID, 1)
	require.NoError(t, err)
	cart, err := NewRepository(conn).FindByToken(context.Background(), view.IssuedToken)
	require.NoError(t, err)
	require.NotNil(t, cart)
	require.NoError(t, conn.Model(&models.Cart{}).Where("id = ?", cart.ID).UpdateColumn("updated_at", lastSeen).Error)
	return cart
}

func countItems(t *testing.T, conn *gorm.DB, cartID any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(&models.CartItem{}).Where("cart_id = ?", cartID).Count(&n).Error)
	return n
}

func TestDeleteGuestCartsBeforeSkipsRecentCarts(t *testing.T) {
	conn := dbtest.OpenSQLite(t)
	svc := newTestService(t, conn, nil)
	ctx := context.Background()
	now := time.Now().UTC()
	mocha := dbtest.SeedProduct(t, conn, "mocha", 280, 10)

	old := seedStaleGuestCart(t, svc, conn, mocha, now.Add(-40*24*time.Hour))
	fresh := seedStaleGuestCart(t, svc, conn, mocha, now.Add(-time.Hour))

	deleted, err := NewRepository(conn).DeleteGuestCartsBefore(ctx, now.Add(-30*24*time.Hour), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	assert.Zero(t, countItems(t, conn, old.ID))
	assert.Equal(t, int64(1), countItems(t, conn, fresh.ID))
}

// A cart adopted by a user after it was selected for collection keeps its items.
func TestDeleteGuestCartsBeforeSparesCartAdoptedMidway(t *testing.T) {
	conn := dbtest.OpenSQLite(t)
	svc := newTestService(t, conn, nil)
	ctx := context.Background()
	now := time.Now().UTC()
	mocha := dbtest.SeedProduct(t, conn, "mocha", 280, 10)
	user := dbtest.SeedUser(t, conn, 0)

	adopted := seedStaleGuestCart(t, svc, conn, mocha, now.Add(-40*24*time.Hour))
	abandoned := seedStaleGuestCart(t, svc, conn, mocha, now.Add(-50*24*time.Hour))

	fired := false
	require.NoError(t, conn.Callback().Delete().Before("gorm:delete").Register("test:adopt_midway", func(tx *gorm.DB) {
		if fired || tx.Statement.Table != "cart_items" {
			return
		}
		fired = true
		err := tx.Session(&gorm.Session{NewDB: true}).
			Exec("UPDATE carts SET user_id = ?, token = NULL WHERE id = ?", user.ID, adopted.ID).Error
		require.NoError(t, err)
	}))

	deleted, err := NewRepository(conn).DeleteGuestCartsBefore(ctx, now.Add(-30*24*time.Hour), 10)
	require.NoError(t, err)
	require.True(t, fired)
	assert.Equal(t, 1, deleted)
	assert.Zero(t, countItems(t, conn, abandoned.ID))
	assert.Equal(t, int64(1), countItems(t, conn, adopted.ID), "adopted cart keeps its items")

	var owned models.Cart
	require.NoError(t, conn.First(&owned, "id = ?", adopted.ID).Error)
	require.NotNil(t, owned.UserID)
	assert.Equal(t, user.ID, *owned.UserID)
}
