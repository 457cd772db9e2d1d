package auth

import (
	"github.com/anucarts/marketplace-backend/internal/sellers"
	"github.com/anucarts/marketplace-backend/internal/users"
	"github.com/anucarts/marketplace-backend/pkg/enums"
)

// LoginRequest captures the credentials sent to either login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterUserRequest is the buyer signup payload.
type RegisterUserRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// RegisterSellerRequest is the seller signup payload.
type RegisterSellerRequest struct {
	Name        string `json:"name" validate:"required"`
	CompanyName string `json:"companyName" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
}

// LoginResponse contains the tokens and the authenticated principal.
// Exactly one of User or Seller is set, matching Role.
type LoginResponse struct {
	AccessToken  string             `json:"accessToken"`
	RefreshToken string             `json:"refreshToken"`
	Role         enums.Role         `json:"role"`
	User         *users.UserDTO     `json:"user,omitempty"`
	Seller       *sellers.SellerDTO `json:"seller,omitempty"`
}
