// Package dbtest opens throwaway databases for repository and service tests.
package dbtest

import (
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/homecafe-backend/pkg/config"
	"github.com/angelmondragon/homecafe-backend/pkg/db/models"
)

// OpenSQLite returns an isolated in-memory database with every model migrated.
func OpenSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:dbtest_" + uuid.NewString() + "?mode=memory&cache=shared&_busy_timeout=5000"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}

// OpenPostgres connects to HOMECAFE_TEST_DB_DSN or skips the test. The schema is
// expected to be migrated with goose beforehand.
func OpenPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv(config.EnvTestDBDSN)
	if dsn == "" {
		t.Skipf("%s is not set", config.EnvTestDBDSN)
	}
	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	return conn
}

// SeedProduct inserts a product with the given stock and price.
func SeedProduct(t *testing.T, conn *gorm.DB, name string, price, stock int) models.Product {
	t.Helper()
	product := models.Product{Name: name, Price: price, StockQuantity: stock, IsAvailable: stock > 0}
	if err := conn.Create(&product).Error; err != nil {
		t.Fatalf("seed product %s: %v", name, err)
	}
	return product
}

// SeedUser inserts a customer with the given bonus balance.
func SeedUser(t *testing.T, conn *gorm.DB, bonus int) models.User {
	t.Helper()
	user := models.User{Email: uuid.NewString() + "@example.com", Name: "Test User", BonusBalance: bonus}
	if err := conn.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

// ReloadProduct reads the current product row.
func ReloadProduct(t *testing.T, conn *gorm.DB, id uuid.UUID) models.Product {
	t.Helper()
	var product models.Product
	if err := conn.First(&product, "id = ?", id).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	return product
}
