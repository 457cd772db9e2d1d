package sellers

import (
	"context"

	"gorm.io/gorm"

	"github.com/anucarts/marketplace-backend/internal/accounts"
	"github.com/anucarts/marketplace-backend/pkg/db/models"
)

// Repository persists sellers.
type Repository struct {
	accounts.Store[models.Seller]
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Store: accounts.NewStore[models.Seller](db)}
}

func (r *Repository) Create(ctx context.Context, in CreateSellerDTO) (*models.Seller, error) {
	seller := in.ToModel()
	if err := r.Insert(ctx, seller); err != nil {
		return nil, err
	}
	return seller, nil
}
