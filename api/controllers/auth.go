package controllers

import (
	"context"
	"net/http"

	"github.com/anucarts/marketplace-backend/api/responses"
	"github.com/anucarts/marketplace-backend/api/validators"
	"github.com/anucarts/marketplace-backend/internal/auth"
	pkgerrors "github.com/anucarts/marketplace-backend/pkg/errors"
	"github.com/anucarts/marketplace-backend/pkg/logger"
)

// accessTokenHeader mirrors the issued access token for clients that read headers.
const accessTokenHeader = "X-Anucarts-Token"

// UserSignup registers a buyer account and signs it in.
func UserSignup(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body auth.RegisterUserRequest
		if !decodeAuthBody(w, r, svc, logg, &body) {
			return
		}
		result, err := svc.RegisterUser(r.Context(), body)
		writeLoginResult(r.Context(), w, logg, http.StatusCreated, result, err)
	}
}

// UserLogin signs a buyer in.
func UserLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body auth.LoginRequest
		if !decodeAuthBody(w, r, svc, logg, &body) {
			return
		}
		result, err := svc.LoginUser(r.Context(), body)
		writeLoginResult(r.Context(), w, logg, http.StatusOK, result, err)
	}
}

// SellerSignup registers a seller account and signs it in.
func SellerSignup(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body auth.RegisterSellerRequest
		if !decodeAuthBody(w, r, svc, logg, &body) {
			return
		}
		result, err := svc.RegisterSeller(r.Context(), body)
		writeLoginResult(r.Context(), w, logg, http.StatusCreated, result, err)
	}
}

// SellerLogin signs a seller in.
func SellerLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body auth.LoginRequest
		if !decodeAuthBody(w, r, svc, logg, &body) {
			return
		}
		result, err := svc.LoginSeller(r.Context(), body)
		writeLoginResult(r.Context(), w, logg, http.StatusOK, result, err)
	}
}

func decodeAuthBody(w http.ResponseWriter, r *http.Request, svc auth.Service, logg *logger.Logger, dest any) bool {
	if svc == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
		return false
	}
	if err := validators.DecodeJSONBody(r, dest); err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return false
	}
	return true
}

func writeLoginResult(ctx context.Context, w http.ResponseWriter, logg *logger.Logger, status int, result *auth.LoginResponse, err error) {
	if err != nil {
		responses.WriteError(ctx, logg, w, err)
		return
	}
	w.Header().Set(accessTokenHeader, result.AccessToken)
	responses.WriteSuccessStatus(w, status, result)
}
