package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/homecafe-backend/pkg/db/models"
	"github.com/angelmondragon/homecafe-backend/pkg/enums"
	"github.com/angelmondragon/homecafe-backend/pkg/pagination"
)

// Repository defines persistence operations for orders and their item snapshots.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByPaymentID(ctx context.Context, paymentID string) (*models.Order, error)
	List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Order, string, error)
	UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus) (bool, error)
	SetPaymentID(ctx context.Context, id uuid.UUID, paymentID string) error
	UpdateFields(ctx context.Context, id uuid.UUID, updates map[string]any) error
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

// ListFilter narrows order listings; zero values mean no filter.
type ListFilter struct {
	UserID *uuid.UUID
	Status *enums.OrderStatus
}
