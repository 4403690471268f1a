package cart

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/homecafe-backend/pkg/db"
	"github.com/angelmondragon/homecafe-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/homecafe-backend/pkg/errors"
)

// Caller identifies who is acting on a cart: an authenticated user, a guest token, or both.
type Caller struct {
	UserID *uuid.UUID
	Token  string
}

func (c Caller) Authenticated() bool {
	return c.UserID != nil && *c.UserID != uuid.Nil
}

// Resolution is the cart bound to a caller plus any token change the transport must apply.
type Resolution struct {
	Cart         *models.Cart
	IssuedToken  string
	TokenCleared bool
}

// Resolve returns the caller's cart, creating it when absent. An authenticated caller that
// still carries a guest token has the guest cart merged first.
func (s *Service) Resolve(ctx context.Context, caller Caller) (*Resolution, error) {
	if caller.Authenticated() {
		userID := *caller.UserID
		res := &Resolution{}
		if caller.Token != "" {
			if _, err := s.Merge(ctx, userID, caller.Token); err != nil {
				return nil, err
			}
			res.TokenCleared = true
		}
		cart, err := s.findOrCreateUserCart(ctx, userID)
		if err != nil {
			return nil, err
		}
		res.Cart = cart
		return res, nil
	}

	if caller.Token != "" {
		cart, err := s.repo.FindByToken(ctx, caller.Token)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load guest cart")
		}
		if cart != nil {
			return &Resolution{Cart: cart}, nil
		}
	}

	token, err := NewToken()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "issue cart token")
	}
	cart := &models.Cart{Token: &token}
	if err := s.repo.Create(ctx, cart); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create guest cart")
	}
	s.logg.Info(s.logg.WithCartID(ctx, cart.ID.String()), "guest cart created")
	return &Resolution{Cart: cart, IssuedToken: token}, nil
}

func (s *Service) findOrCreateUserCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	cart, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user cart")
	}
	if cart != nil {
		return cart, nil
	}

	cart = &models.Cart{UserID: &userID}
	if err := s.repo.Create(ctx, cart); err != nil {
		if !db.IsUniqueViolation(err, "ux_carts_user_id") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user cart")
		}
		// A concurrent request created it first.
		cart, err = s.repo.FindByUserID(ctx, userID)
		if err != nil || cart == nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload user cart")
		}
	}
	return cart, nil
}
