package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/anucarts/marketplace-backend/api/middleware"
	"github.com/anucarts/marketplace-backend/api/responses"
	"github.com/anucarts/marketplace-backend/api/validators"
	pkgAuth "github.com/anucarts/marketplace-backend/pkg/auth"
	"github.com/anucarts/marketplace-backend/pkg/auth/session"
	"github.com/anucarts/marketplace-backend/pkg/config"
	pkgerrors "github.com/anucarts/marketplace-backend/pkg/errors"
	"github.com/anucarts/marketplace-backend/pkg/logger"
)

type sessionTokenRotator interface {
	Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error)
	Revoke(ctx context.Context, accessID string) error
}

type refreshRequest struct {
	AccessToken  string `json:"accessToken" validate:"required"`
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// AuthLogout revokes the session of the token that authenticated the request.
// Later requests with that token fail the session check in middleware.Auth.
func AuthLogout(manager sessionTokenRotator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		accessID := middleware.AccessIDFromContext(ctx)
		switch {
		case manager == nil:
			responses.WriteError(ctx, logg, w, errNoSessions)
		case accessID == "":
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id"))
		default:
			if err := manager.Revoke(ctx, accessID); err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "revoke session"))
				return
			}
			responses.WriteSuccess(w, map[string]string{"status": "logged_out"})
		}
	}
}

// AuthRefresh trades a refresh token for a new token pair. The presented
// access token may be expired but must carry a valid signature.
func AuthRefresh(manager sessionTokenRotator, cfg config.JWTConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if manager == nil {
			responses.WriteError(r.Context(), logg, w, errNoSessions)
			return
		}
		var body refreshRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		pair, err := refresh(r.Context(), manager, cfg, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.Header().Set(accessTokenHeader, pair.AccessToken)
		responses.WriteSuccess(w, pair)
	}
}

var errNoSessions = pkgerrors.New(pkgerrors.CodeInternal, "session manager unavailable")

func refresh(ctx context.Context, manager sessionTokenRotator, cfg config.JWTConfig, body refreshRequest) (refreshResponse, error) {
	claims, err := pkgAuth.ParseAccessTokenAllowExpired(cfg, body.AccessToken)
	if err != nil {
		return refreshResponse{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	principalID, err := claims.PrincipalID()
	if err != nil || claims.ID == "" {
		return refreshResponse{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid token claims")
	}

	accessID, refreshToken, err := manager.Rotate(ctx, claims.ID, body.RefreshToken)
	switch {
	case errors.Is(err, session.ErrInvalidRefreshToken):
		return refreshResponse{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
	case err != nil:
		return refreshResponse{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "rotate session")
	}

	accessToken, err := pkgAuth.MintAccessToken(cfg, time.Now().UTC(), pkgAuth.AccessTokenPayload{
		PrincipalID: principalID,
		Role:        claims.Role,
		JTI:         accessID,
	})
	if err != nil {
		return refreshResponse{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	return refreshResponse{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}
