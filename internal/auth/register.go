package auth

import (
	"context"
	"errors"
	"time"

	"github.com/anucarts/marketplace-backend/internal/accounts"
	"github.com/anucarts/marketplace-backend/internal/sellers"
	"github.com/anucarts/marketplace-backend/internal/users"
	"github.com/anucarts/marketplace-backend/pkg/db"
	"github.com/anucarts/marketplace-backend/pkg/db/models"
	"github.com/anucarts/marketplace-backend/pkg/enums"
	pkgerrors "github.com/anucarts/marketplace-backend/pkg/errors"
	"gorm.io/gorm"
)

const emailTakenMessage = "email already registered"

func (s *service) RegisterUser(ctx context.Context, req RegisterUserRequest) (*LoginResponse, error) {
	email := accounts.NormalizeEmail(req.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}

	passwordHash, err := s.passwords.Hash(req.Password)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	var user *models.User
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := users.NewRepository(tx)
		if _, err := repo.FindByEmail(ctx, email); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, emailTakenMessage)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check user email")
		}

		created, err := repo.Create(ctx, users.CreateUserDTO{
			Name:         req.Name,
			Email:        email,
			PasswordHash: passwordHash,
		})
		if err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, emailTakenMessage)
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
		}
		user = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp, err := s.issueTokens(ctx, time.Now().UTC(), user.ID, enums.RoleBuyer)
	if err != nil {
		return nil, err
	}
	resp.User = users.FromModel(user)
	return resp, nil
}

func (s *service) RegisterSeller(ctx context.Context, req RegisterSellerRequest) (*LoginResponse, error) {
	email := accounts.NormalizeEmail(req.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}

	passwordHash, err := s.passwords.Hash(req.Password)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	var seller *models.Seller
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := sellers.NewRepository(tx)
		if _, err := repo.FindByEmail(ctx, email); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, emailTakenMessage)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check seller email")
		}

		created, err := repo.Create(ctx, sellers.CreateSellerDTO{
			Name:         req.Name,
			CompanyName:  req.CompanyName,
			Email:        email,
			PasswordHash: passwordHash,
		})
		if err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, emailTakenMessage)
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create seller")
		}
		seller = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp, err := s.issueTokens(ctx, time.Now().UTC(), seller.ID, enums.RoleSeller)
	if err != nil {
		return nil, err
	}
	resp.Seller = sellers.FromModel(seller)
	return resp, nil
}
