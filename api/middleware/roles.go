package middleware

import (
	"net/http"

	"github.com/anucarts/marketplace-backend/api/responses"
	"github.com/anucarts/marketplace-backend/pkg/enums"
	pkgerrors "github.com/anucarts/marketplace-backend/pkg/errors"
	"github.com/anucarts/marketplace-backend/pkg/logger"
)

// RequireRole rejects principals whose token carries a different role.
func RequireRole(role enums.Role, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if RoleFromContext(r.Context()) != role {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, string(role)+" role required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
