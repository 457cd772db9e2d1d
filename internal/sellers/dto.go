package sellers

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/anucarts/marketplace-backend/internal/accounts"
	"github.com/anucarts/marketplace-backend/pkg/db/models"
)

// SellerDTO is the public seller profile.
type SellerDTO struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	CompanyName string     `json:"companyName"`
	Email       string     `json:"email"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// CreateSellerDTO holds the data required by the repo to persist a new seller.
type CreateSellerDTO struct {
	Name         string
	CompanyName  string
	Email        string
	PasswordHash string
}

func FromModel(s *models.Seller) *SellerDTO {
	if s == nil {
		return nil
	}
	return &SellerDTO{
		ID:          s.ID,
		Name:        s.Name,
		CompanyName: s.CompanyName,
		Email:       s.Email,
		LastLoginAt: s.LastLoginAt,
		CreatedAt:   s.CreatedAt,
	}
}

func (c CreateSellerDTO) ToModel() *models.Seller {
	return &models.Seller{
		ID:           uuid.New(),
		Name:         strings.TrimSpace(c.Name),
		CompanyName:  strings.TrimSpace(c.CompanyName),
		Email:        accounts.NormalizeEmail(c.Email),
		PasswordHash: c.PasswordHash,
	}
}
