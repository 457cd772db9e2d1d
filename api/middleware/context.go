package middleware

import (
	"context"

	"github.com/anucarts/marketplace-backend/pkg/enums"
	pkgerrors "github.com/anucarts/marketplace-backend/pkg/errors"
	"github.com/google/uuid"
)

type contextKey string

const (
	ctxPrincipalID contextKey = "principal_id"
	ctxRole        contextKey = "actor_role"
	ctxAccessID    contextKey = "access_id"
)

// PrincipalIDFromContext returns the authenticated buyer or seller id, or
// uuid.Nil outside an authenticated route.
func PrincipalIDFromContext(ctx context.Context) uuid.UUID {
	if ctx == nil {
		return uuid.Nil
	}
	if v, ok := ctx.Value(ctxPrincipalID).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}

// RequirePrincipal returns the authenticated principal or an unauthorized error.
func RequirePrincipal(ctx context.Context) (uuid.UUID, error) {
	id := PrincipalIDFromContext(ctx)
	if id == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return id, nil
}

func RoleFromContext(ctx context.Context) enums.Role {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(enums.Role); ok {
		return v
	}
	return ""
}

// AccessIDFromContext returns the session id (jti) of the presented token.
func AccessIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxAccessID).(string); ok {
		return v
	}
	return ""
}

// WithPrincipal injects the principal into the context. Tests use it to
// bypass token parsing.
func WithPrincipal(ctx context.Context, principalID uuid.UUID, role enums.Role) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxPrincipalID, principalID)
	return context.WithValue(ctx, ctxRole, role)
}

// WithAccessID records the session id of the presented token.
func WithAccessID(ctx context.Context, accessID string) context.Context {
	return context.WithValue(ctx, ctxAccessID, accessID)
}
