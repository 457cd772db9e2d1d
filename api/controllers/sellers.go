package controllers

import (
	"net/http"

	"github.com/anucarts/marketplace-backend/api/middleware"
	"github.com/anucarts/marketplace-backend/api/responses"
	"github.com/anucarts/marketplace-backend/internal/sellers"
	pkgerrors "github.com/anucarts/marketplace-backend/pkg/errors"
	"github.com/anucarts/marketplace-backend/pkg/logger"
)

// SellerHome returns the authenticated seller's profile.
func SellerHome(svc sellers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "seller service unavailable"))
			return
		}
		sellerID, err := middleware.RequirePrincipal(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		profile, err := svc.GetProfile(r.Context(), sellerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}
