package product

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anucarts/marketplace-backend/internal/media"
	"github.com/anucarts/marketplace-backend/pkg/db/models"
	pkgerrors "github.com/anucarts/marketplace-backend/pkg/errors"
	"github.com/anucarts/marketplace-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service exposes seller product management and the public catalog reads.
type Service interface {
	CreateProduct(ctx context.Context, sellerID uuid.UUID, input CreateProductInput) (*ProductDTO, error)
	UpdateProduct(ctx context.Context, sellerID, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	DeleteProduct(ctx context.Context, sellerID, productID uuid.UUID) error
	GetProduct(ctx context.Context, productID uuid.UUID) (*ProductDTO, error)
	ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error)
	ListSellerProducts(ctx context.Context, sellerID uuid.UUID) ([]ProductDTO, error)
}

// CreateProductInput holds the validated payload to create a product.
// Image, when present, is uploaded and wins over ImageURL.
type CreateProductInput struct {
	Name        string
	Description string
	PriceCents  int64
	Stock       int
	ImageURL    string
	Image       []byte
}

// UpdateProductInput holds optional mutation values for a product.
type UpdateProductInput struct {
	Name        *string
	Description *string
	PriceCents  *int64
	Stock       *int
	ImageURL    *string
	Image       []byte
}

type imageStorer interface {
	StoreImage(ctx context.Context, scope media.Scope, ownerID uuid.UUID, data []byte) (string, error)
}

type service struct {
	repo   *Repository
	images imageStorer
}

// NewService constructs a product service instance. images may be nil when
// uploads are disabled, in which case only image URLs are accepted.
func NewService(repo *Repository, images imageStorer) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &service{repo: repo, images: images}, nil
}

func (s *service) CreateProduct(ctx context.Context, sellerID uuid.UUID, input CreateProductInput) (*ProductDTO, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "seller identity missing")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if err := validatePrice(input.PriceCents); err != nil {
		return nil, err
	}
	if err := validateStock(input.Stock); err != nil {
		return nil, err
	}

	imageURL := strings.TrimSpace(input.ImageURL)
	if len(input.Image) > 0 {
		uploaded, err := s.storeImage(ctx, sellerID, input.Image)
		if err != nil {
			return nil, err
		}
		imageURL = uploaded
	}

	created, err := s.repo.CreateProduct(ctx, &models.Product{
		SellerID:    sellerID,
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		PriceCents:  input.PriceCents,
		Stock:       input.Stock,
		ImageURL:    imageURL,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "insert product")
	}
	return NewProductDTO(created), nil
}

func (s *service) UpdateProduct(ctx context.Context, sellerID, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	if input.PriceCents != nil {
		if err := validatePrice(*input.PriceCents); err != nil {
			return nil, err
		}
	}
	if input.Stock != nil {
		if err := validateStock(*input.Stock); err != nil {
			return nil, err
		}
	}
	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
	}

	product, err := s.loadOwned(ctx, sellerID, productID)
	if err != nil {
		return nil, err
	}

	if len(input.Image) > 0 {
		uploaded, err := s.storeImage(ctx, sellerID, input.Image)
		if err != nil {
			return nil, err
		}
		input.ImageURL = &uploaded
	}

	applyUpdateToProduct(product, input)
	updated, err := s.repo.UpdateProduct(ctx, product)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update product")
	}
	return NewProductDTO(updated), nil
}

// DeleteProduct removes the listing. Cart items and order lines keep their
// snapshots.
func (s *service) DeleteProduct(ctx context.Context, sellerID, productID uuid.UUID) error {
	if _, err := s.loadOwned(ctx, sellerID, productID); err != nil {
		return err
	}
	if err := s.repo.DeleteProduct(ctx, productID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete product")
	}
	return nil
}

func (s *service) GetProduct(ctx context.Context, productID uuid.UUID) (*ProductDTO, error) {
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	return NewProductDTO(product), nil
}

func (s *service) ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error) {
	rows, next, err := s.repo.ListPage(ctx, input.Pagination)
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidCursor) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list products")
	}
	return &ProductListResult{
		Products:   newProductDTOs(rows),
		NextCursor: next,
	}, nil
}

func (s *service) ListSellerProducts(ctx context.Context, sellerID uuid.UUID) ([]ProductDTO, error) {
	rows, err := s.repo.ListBySeller(ctx, sellerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list seller products")
	}
	return newProductDTOs(rows), nil
}

func (s *service) loadOwned(ctx context.Context, sellerID, productID uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	if product.SellerID != sellerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "product does not belong to seller")
	}
	return product, nil
}

func (s *service) storeImage(ctx context.Context, sellerID uuid.UUID, data []byte) (string, error) {
	if s.images == nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "image uploads are not enabled")
	}
	return s.images.StoreImage(ctx, media.ScopeProduct, sellerID, data)
}

func applyUpdateToProduct(product *models.Product, input UpdateProductInput) {
	if input.Name != nil {
		product.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		product.Description = strings.TrimSpace(*input.Description)
	}
	if input.PriceCents != nil {
		product.PriceCents = *input.PriceCents
	}
	if input.Stock != nil {
		product.Stock = *input.Stock
	}
	if input.ImageURL != nil {
		product.ImageURL = strings.TrimSpace(*input.ImageURL)
	}
}

func validatePrice(cents int64) error {
	if cents < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must be non-negative")
	}
	return nil
}

func validateStock(stock int) error {
	if stock < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "stock must be non-negative")
	}
	return nil
}
