package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anucarts/marketplace-backend/pkg/db/models"
	pkgerrors "github.com/anucarts/marketplace-backend/pkg/errors"
	"github.com/anucarts/marketplace-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const cartNotFoundMessage = "cart not found"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type viewCache interface {
	Get(ctx context.Context, buyerID uuid.UUID) (*CartDTO, error)
	Set(ctx context.Context, view *CartDTO) error
	Delete(ctx context.Context, buyerID uuid.UUID) error
}

// Service exposes the buyer cart operations.
type Service interface {
	AddItem(ctx context.Context, buyerID, productID uuid.UUID, quantity int) (*CartDTO, error)
	RemoveItem(ctx context.Context, buyerID, productID uuid.UUID) (*CartDTO, error)
	SetQuantity(ctx context.Context, buyerID, productID uuid.UUID, quantity int) (*CartDTO, error)
	GetCart(ctx context.Context, buyerID uuid.UUID) (*CartDTO, error)
	Invalidate(ctx context.Context, buyerID uuid.UUID)
}

type service struct {
	repo     *Repository
	tx       txRunner
	products productLoader
	cache    viewCache
	logg     *logger.Logger
	now      func() time.Time
}

// ServiceParams bundles the cart service dependencies. Cache and Logger are optional.
type ServiceParams struct {
	Repo     *Repository
	DB       txRunner
	Products productLoader
	Cache    viewCache
	Logger   *logger.Logger
}

// NewService builds a cart service backed by the provided stack.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	return &service{
		repo:     params.Repo,
		tx:       params.DB,
		products: params.Products,
		cache:    params.Cache,
		logg:     params.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// AddItem puts the product in the buyer's cart, merging with an existing entry
// by summing quantities.
func (s *service) AddItem(ctx context.Context, buyerID, productID uuid.UUID, quantity int) (*CartDTO, error) {
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}

	var view *CartDTO
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := repo.GetOrCreate(ctx, buyerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
		}
		now := s.now()
		if err := repo.UpsertItem(ctx, &models.CartItem{
			CartID:         cart.ID,
			ProductID:      product.ID,
			SellerID:       product.SellerID,
			Name:           product.Name,
			ImageURL:       product.ImageURL,
			UnitPriceCents: product.PriceCents,
			Quantity:       quantity,
			CreatedAt:      now,
			UpdatedAt:      now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "upsert cart item")
		}
		view, err = s.reload(ctx, repo, buyerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.Invalidate(ctx, buyerID)
	return view, nil
}

// RemoveItem drops the product from the cart. Removing an absent product is a no-op.
func (s *service) RemoveItem(ctx context.Context, buyerID, productID uuid.UUID) (*CartDTO, error) {
	var view *CartDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := s.loadCart(ctx, repo, buyerID)
		if err != nil {
			return err
		}
		if _, err := repo.DeleteItems(ctx, cart.ID, []uuid.UUID{productID}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete cart item")
		}
		view, err = s.reload(ctx, repo, buyerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.Invalidate(ctx, buyerID)
	return view, nil
}

// SetQuantity replaces the quantity of an existing entry.
func (s *service) SetQuantity(ctx context.Context, buyerID, productID uuid.UUID, quantity int) (*CartDTO, error) {
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	var view *CartDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := s.loadCart(ctx, repo, buyerID)
		if err != nil {
			return err
		}
		found, err := repo.SetQuantity(ctx, cart.ID, productID, quantity, s.now())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update cart item")
		}
		if !found {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		view, err = s.reload(ctx, repo, buyerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.Invalidate(ctx, buyerID)
	return view, nil
}

func (s *service) GetCart(ctx context.Context, buyerID uuid.UUID) (*CartDTO, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, buyerID)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			s.warn(ctx, "cart cache read failed", err)
		}
	}

	cart, err := s.loadCart(ctx, s.repo, buyerID)
	if err != nil {
		return nil, err
	}
	view := FromModel(cart)

	if s.cache != nil {
		if err := s.cache.Set(ctx, view); err != nil {
			s.warn(ctx, "cart cache write failed", err)
		}
	}
	return view, nil
}

// Invalidate drops the cached view. Failures are logged, not returned; the
// cache TTL bounds staleness.
func (s *service) Invalidate(ctx context.Context, buyerID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, buyerID); err != nil {
		s.warn(ctx, "cart cache invalidate failed", err)
	}
}

func (s *service) loadCart(ctx context.Context, repo *Repository, buyerID uuid.UUID) (*models.Cart, error) {
	cart, err := repo.FindByBuyer(ctx, buyerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, cartNotFoundMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	return cart, nil
}

func (s *service) reload(ctx context.Context, repo *Repository, buyerID uuid.UUID) (*CartDTO, error) {
	cart, err := s.loadCart(ctx, repo, buyerID)
	if err != nil {
		return nil, err
	}
	return FromModel(cart), nil
}

func (s *service) warn(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), msg)
}
