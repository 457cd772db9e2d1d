package middleware

import (
	"net/http"
	"regexp"

	"github.com/google/uuid"

	"github.com/anucarts/marketplace-backend/pkg/logger"
)

const requestIDHeader = "X-Request-Id"

// Inbound ids are echoed only when they look like ids; anything else is
// replaced so arbitrary header content never reaches the logs.
var acceptableRequestID = regexp.MustCompile(`^[A-Za-z0-9._-]{8,64}$`)

// RequestID assigns every request an id, returns it in X-Request-Id and tags
// the request logger with it.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(requestIDHeader)
			if !acceptableRequestID.MatchString(id) {
				id = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, id)

			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithRequestID(ctx, id)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

