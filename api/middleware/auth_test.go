package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anucarts/marketplace-backend/pkg/auth"
	"github.com/anucarts/marketplace-backend/pkg/auth/session"
	"github.com/anucarts/marketplace-backend/pkg/config"
	"github.com/anucarts/marketplace-backend/pkg/enums"
	pkgerrors "github.com/anucarts/marketplace-backend/pkg/errors"
)

var jwtCfg = config.JWTConfig{Secret: "secret", Issuer: "anucarts", ExpirationMinutes: 60}

type sessionSet struct {
	live map[string]bool
	err  error
}

func (s sessionSet) HasSession(_ context.Context, accessID string) (bool, error) {
	return s.live[accessID], s.err
}

func mint(t *testing.T, cfg config.JWTConfig, now time.Time, principal uuid.UUID, role enums.Role, jti string) string {
	t.Helper()
	token, err := auth.MintAccessToken(cfg, now, auth.AccessTokenPayload{PrincipalID: principal, Role: role, JTI: jti})
	require.NoError(t, err)
	return token
}

func TestAuth(t *testing.T) {
	principal := uuid.New()
	jti := session.NewAccessID()
	now := time.Now()
	live := sessionSet{live: map[string]bool{jti: true}}

	otherIssuer := jwtCfg
	otherIssuer.Issuer = "someone-else"

	cases := []struct {
		name     string
		header   string
		sessions session.AccessSessionChecker
		status   int
		code     pkgerrors.Code
	}{
		{name: "no header", sessions: live, status: http.StatusUnauthorized, code: pkgerrors.CodeUnauthorized},
		{name: "garbage token", header: "Bearer invalid", sessions: live, status: http.StatusUnauthorized, code: pkgerrors.CodeUnauthorized},
		{
			name:     "foreign issuer",
			header:   "Bearer " + mint(t, otherIssuer, now, principal, enums.RoleSeller, jti),
			sessions: live,
			status:   http.StatusUnauthorized,
			code:     pkgerrors.CodeUnauthorized,
		},
		{
			name:     "expired",
			header:   "Bearer " + mint(t, jwtCfg, now.Add(-2*time.Hour), principal, enums.RoleSeller, jti),
			sessions: live,
			status:   http.StatusUnauthorized,
			code:     pkgerrors.CodeUnauthorized,
		},
		{
			name:     "logged out",
			header:   "Bearer " + mint(t, jwtCfg, now, principal, enums.RoleSeller, jti),
			sessions: sessionSet{},
			status:   http.StatusUnauthorized,
			code:     pkgerrors.CodeUnauthorized,
		},
		{
			name:     "session store down",
			header:   "Bearer " + mint(t, jwtCfg, now, principal, enums.RoleSeller, jti),
			sessions: sessionSet{err: errors.New("redis down")},
			status:   http.StatusInternalServerError,
			code:     pkgerrors.CodeInternal,
		},
		{
			name:     "valid",
			header:   "Bearer " + mint(t, jwtCfg, now, principal, enums.RoleSeller, jti),
			sessions: live,
			status:   http.StatusOK,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var gotPrincipal uuid.UUID
			var gotRole enums.Role
			var gotAccess string
			handler := Auth(jwtCfg, tc.sessions, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPrincipal = PrincipalIDFromContext(r.Context())
				gotRole = RoleFromContext(r.Context())
				gotAccess = AccessIDFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/orders", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			require.Equal(t, tc.status, rec.Code)
			if tc.status != http.StatusOK {
				assert.Equal(t, string(tc.code), errorCode(t, rec))
				assert.Equal(t, uuid.Nil, gotPrincipal)
				return
			}
			assert.Equal(t, principal, gotPrincipal)
			assert.Equal(t, enums.RoleSeller, gotRole)
			assert.Equal(t, jti, gotAccess)
		})
	}
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole(enums.RoleSeller, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for role, want := range map[enums.Role]int{
		enums.RoleSeller: http.StatusNoContent,
		enums.RoleBuyer:  http.StatusForbidden,
		"":               http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithPrincipal(req.Context(), uuid.New(), role))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, "role %q", role)
	}
}
