package sellers

import (
	"context"
	"errors"
	"fmt"

	"github.com/anucarts/marketplace-backend/pkg/db/models"
	pkgerrors "github.com/anucarts/marketplace-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service exposes the seller profile read used by the seller home screen.
type Service interface {
	GetProfile(ctx context.Context, sellerID uuid.UUID) (*SellerDTO, error)
}

type sellerReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Seller, error)
}

type service struct {
	repo sellerReader
}

func NewService(repo sellerReader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("seller repository is required")
	}
	return &service{repo: repo}, nil
}

func (s *service) GetProfile(ctx context.Context, sellerID uuid.UUID) (*SellerDTO, error) {
	seller, err := s.repo.FindByID(ctx, sellerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "seller not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load seller")
	}
	return FromModel(seller), nil
}
