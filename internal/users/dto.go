package users

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/homecafe-backend/pkg/db/models"
	"github.com/angelmondragon/homecafe-backend/pkg/enums"
)

// UserDTO is the transport shape of an account.
type UserDTO struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	Role         enums.Role `json:"role"`
	BonusBalance int        `json:"bonusBalance"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Email        string
	Name         string
	Role         enums.Role
	BonusBalance int
}

// ToModel converts the DTO into the persistence model.
func (dto CreateUserDTO) ToModel() *models.User {
	role := dto.Role
	if !role.IsValid() {
		role = enums.RoleCustomer
	}
	return &models.User{
		Email:        strings.ToLower(strings.TrimSpace(dto.Email)),
		Name:         strings.TrimSpace(dto.Name),
		Role:         role,
		BonusBalance: dto.BonusBalance,
	}
}

// FromModel maps the persistence model to the transport DTO.
func FromModel(u *models.User) UserDTO {
	if u == nil {
		return UserDTO{}
	}
	return UserDTO{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		Role:         u.Role,
		BonusBalance: u.BonusBalance,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}
