package users

import (
	"context"

	"gorm.io/gorm"

	"github.com/anucarts/marketplace-backend/internal/accounts"
	"github.com/anucarts/marketplace-backend/pkg/db/models"
)

// Repository persists buyers.
type Repository struct {
	accounts.Store[models.User]
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Store: accounts.NewStore[models.User](db)}
}

func (r *Repository) Create(ctx context.Context, in CreateUserDTO) (*models.User, error) {
	user := in.ToModel()
	if err := r.Insert(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
