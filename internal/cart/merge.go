package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/homecafe-backend/pkg/db"
	"github.com/angelmondragon/homecafe-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/homecafe-backend/pkg/errors"
)

// Merge folds the guest cart behind token into the user's cart. When the user already has a
// cart it wins and the guest cart is discarded; otherwise the guest cart is adopted.
// Replaying a merge is a no-op, and so is a merge without a user. The returned cart may be
// nil when neither cart exists.
func (s *Service) Merge(ctx context.Context, userID uuid.UUID, token string) (*models.Cart, error) {
	if userID == uuid.Nil {
		return nil, nil
	}
	cart, err := s.merge(ctx, userID, token)
	if err != nil && db.IsUniqueViolation(err, "ux_carts_user_id") {
		// Lost an adopt race; the user cart exists now so the retry discards the guest cart.
		cart, err = s.merge(ctx, userID, token)
	}
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "merge carts")
	}
	return cart, nil
}

func (s *Service) merge(ctx context.Context, userID uuid.UUID, token string) (*models.Cart, error) {
	var result *models.Cart
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		userCart, err := repo.FindByUserID(ctx, userID)
		if err != nil {
			return err
		}
		result = userCart
		if token == "" {
			return nil
		}
		guest, err := repo.FindByToken(ctx, token)
		if err != nil {
			return err
		}
		if guest == nil || !guest.IsGuest() {
			return nil
		}

		logCtx := s.logg.WithFields(ctx, map[string]any{
			"user_id":       userID.String(),
			"guest_cart_id": guest.ID.String(),
		})
		if userCart != nil {
			if err := repo.Delete(ctx, guest.ID); err != nil {
				return err
			}
			s.logg.Info(logCtx, "guest cart discarded on merge")
			return nil
		}

		if err := repo.Adopt(ctx, guest.ID, userID); err != nil {
			return err
		}
		guest.UserID = &userID
		guest.Token = nil
		result = guest
		s.logg.Info(logCtx, "guest cart adopted on merge")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
