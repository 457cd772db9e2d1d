package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anucarts/marketplace-backend/internal/accounts"
	"github.com/anucarts/marketplace-backend/internal/sellers"
	"github.com/anucarts/marketplace-backend/internal/users"
	pkgAuth "github.com/anucarts/marketplace-backend/pkg/auth"
	"github.com/anucarts/marketplace-backend/pkg/auth/session"
	"github.com/anucarts/marketplace-backend/pkg/config"
	"github.com/anucarts/marketplace-backend/pkg/db/models"
	"github.com/anucarts/marketplace-backend/pkg/enums"
	pkgerrors "github.com/anucarts/marketplace-backend/pkg/errors"
	"github.com/anucarts/marketplace-backend/pkg/security"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service defines the behavior needed by the auth controllers.
type Service interface {
	RegisterUser(ctx context.Context, req RegisterUserRequest) (*LoginResponse, error)
	RegisterSeller(ctx context.Context, req RegisterSellerRequest) (*LoginResponse, error)
	LoginUser(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	LoginSeller(ctx context.Context, req LoginRequest) (*LoginResponse, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type userRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

type sellerRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.Seller, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

type sessionManager interface {
	Generate(ctx context.Context, accessID string) (string, error)
}

type service struct {
	tx        txRunner
	users     userRepository
	sellers   sellerRepository
	session   sessionManager
	jwtCfg    config.JWTConfig
	passwords *security.Hasher
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	DB             txRunner
	UserRepo       userRepository
	SellerRepo     sellerRepository
	SessionManager sessionManager
	JWTConfig      config.JWTConfig
	PasswordConfig config.PasswordConfig
}

// NewService constructs the signup/login service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("database client is required")
	}
	if params.UserRepo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if params.SellerRepo == nil {
		return nil, fmt.Errorf("seller repository is required")
	}
	if params.SessionManager == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	return &service{
		tx:        params.DB,
		users:     params.UserRepo,
		sellers:   params.SellerRepo,
		session:   params.SessionManager,
		jwtCfg:    params.JWTConfig,
		passwords: security.NewHasher(params.PasswordConfig),
	}, nil
}

// LoginUser and LoginSeller answer every credential failure, unknown email
// included, with the same error so callers cannot probe for accounts.
func (s *service) LoginUser(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	user, err := verifyLogin[models.User](ctx, s.passwords, s.users, req, func(u *models.User) string { return u.PasswordHash })
	if err != nil {
		return nil, err
	}
	resp, err := s.signIn(ctx, s.users, user.ID, enums.RoleBuyer, &user.LastLoginAt)
	if err != nil {
		return nil, err
	}
	resp.User = users.FromModel(user)
	return resp, nil
}

func (s *service) LoginSeller(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	seller, err := verifyLogin[models.Seller](ctx, s.passwords, s.sellers, req, func(sl *models.Seller) string { return sl.PasswordHash })
	if err != nil {
		return nil, err
	}
	resp, err := s.signIn(ctx, s.sellers, seller.ID, enums.RoleSeller, &seller.LastLoginAt)
	if err != nil {
		return nil, err
	}
	resp.Seller = sellers.FromModel(seller)
	return resp, nil
}

type emailLookup[P any] interface {
	FindByEmail(ctx context.Context, email string) (*P, error)
}

type loginStamper interface {
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

func verifyLogin[P any](ctx context.Context, hasher *security.Hasher, repo emailLookup[P], req LoginRequest, hashOf func(*P) string) (*P, error) {
	email := accounts.NormalizeEmail(req.Email)
	if email == "" {
		return nil, errInvalidCredentials()
	}
	row, err := repo.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, errInvalidCredentials()
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup account")
	}
	valid, err := hasher.Verify(req.Password, hashOf(row))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid {
		return nil, errInvalidCredentials()
	}
	return row, nil
}

// signIn stamps the login time on the row and opens a session for it.
func (s *service) signIn(ctx context.Context, stamper loginStamper, id uuid.UUID, role enums.Role, lastLogin **time.Time) (*LoginResponse, error) {
	now := time.Now().UTC()
	if err := stamper.UpdateLastLogin(ctx, id, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update last login")
	}
	*lastLogin = &now
	return s.issueTokens(ctx, now, id, role)
}

func errInvalidCredentials() error {
	return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
}

func (s *service) issueTokens(ctx context.Context, now time.Time, principalID uuid.UUID, role enums.Role) (*LoginResponse, error) {
	accessID := session.NewAccessID()
	accessToken, err := pkgAuth.MintAccessToken(s.jwtCfg, now, pkgAuth.AccessTokenPayload{
		PrincipalID: principalID,
		Role:        role,
		JTI:         accessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	refreshToken, err := s.session.Generate(ctx, accessID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store refresh token")
	}
	return &LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Role:         role,
	}, nil
}
