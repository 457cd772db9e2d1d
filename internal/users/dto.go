package users

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/anucarts/marketplace-backend/internal/accounts"
	"github.com/anucarts/marketplace-backend/pkg/db/models"
)

// UserDTO is a buyer as returned by the API. The password hash never leaves
// the repository layer.
type UserDTO struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

type CreateUserDTO struct {
	Name         string
	Email        string
	PasswordHash string
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{ID: u.ID, Name: u.Name, Email: u.Email, LastLoginAt: u.LastLoginAt, CreatedAt: u.CreatedAt}
}

// ToModel assigns the id client side so it is known before the insert.
func (in CreateUserDTO) ToModel() *models.User {
	return &models.User{
		ID:           uuid.New(),
		Name:         strings.TrimSpace(in.Name),
		Email:        accounts.NormalizeEmail(in.Email),
		PasswordHash: in.PasswordHash,
	}
}
