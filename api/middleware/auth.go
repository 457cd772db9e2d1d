package middleware

import (
	"context"
	"net/http"

	"github.com/anucarts/marketplace-backend/api/responses"
	"github.com/anucarts/marketplace-backend/api/validators"
	pkgAuth "github.com/anucarts/marketplace-backend/pkg/auth"
	"github.com/anucarts/marketplace-backend/pkg/auth/session"
	"github.com/anucarts/marketplace-backend/pkg/config"
	pkgerrors "github.com/anucarts/marketplace-backend/pkg/errors"
	"github.com/anucarts/marketplace-backend/pkg/logger"
)

// Auth admits requests bearing a valid access token whose session is still
// live, and stores the principal on the request context.
func Auth(cfg config.JWTConfig, verifier session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, err := authenticate(r.Context(), cfg, verifier, r.Header.Get("Authorization"))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			if logg != nil {
				ctx = logg.WithPrincipal(ctx, PrincipalIDFromContext(ctx).String(), string(RoleFromContext(ctx)))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(ctx context.Context, cfg config.JWTConfig, verifier session.AccessSessionChecker, header string) (context.Context, error) {
	unauthorized := func(err error, msg string) error {
		if err == nil {
			return pkgerrors.New(pkgerrors.CodeUnauthorized, msg)
		}
		return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, msg)
	}

	token, err := validators.BearerToken(header)
	if err != nil {
		return nil, unauthorized(err, "missing credentials")
	}
	claims, err := pkgAuth.ParseAccessToken(cfg, token)
	if err != nil {
		return nil, unauthorized(err, "invalid token")
	}
	if claims.ID == "" {
		return nil, unauthorized(nil, "missing session id")
	}
	principalID, err := claims.PrincipalID()
	if err != nil {
		return nil, unauthorized(err, "invalid subject")
	}

	// Logout deletes the session, so a signed but revoked token stops here.
	if verifier != nil {
		live, err := verifier.HasSession(ctx, claims.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "validate session")
		}
		if !live {
			return nil, unauthorized(nil, "session unavailable")
		}
	}

	return WithAccessID(WithPrincipal(ctx, principalID, claims.Role), claims.ID), nil
}
