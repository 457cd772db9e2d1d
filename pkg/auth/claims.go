package auth

import (
	"github.com/anucarts/marketplace-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	PrincipalID uuid.UUID
	Role        enums.Role
	JTI         string
}

// AccessTokenClaims represents the typed JWT issued to buyers and sellers.
// The principal id travels in the registered subject claim.
type AccessTokenClaims struct {
	Role enums.Role `json:"role"`
	jwt.RegisteredClaims
}

// PrincipalID parses the subject claim.
func (c *AccessTokenClaims) PrincipalID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}
