package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/anucarts/marketplace-backend/pkg/config"
	"github.com/anucarts/marketplace-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var tokenCfg = config.JWTConfig{Secret: "s3cret", Issuer: "anucarts", ExpirationMinutes: 30}

func mint(t *testing.T, cfg config.JWTConfig, at time.Time, payload AccessTokenPayload) string {
	t.Helper()
	token, err := MintAccessToken(cfg, at, payload)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	return token
}

func TestAccessTokenCarriesPrincipal(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	sellerID := uuid.New()
	token := mint(t, tokenCfg, now, AccessTokenPayload{PrincipalID: sellerID, Role: enums.RoleSeller, JTI: " jti-7 "})

	claims, err := ParseAccessToken(tokenCfg, token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	got, err := claims.PrincipalID()
	if err != nil || got != sellerID {
		t.Fatalf("principal = %v (%v), want %v", got, err, sellerID)
	}
	if claims.Role != enums.RoleSeller || claims.ID != "jti-7" || claims.Issuer != "anucarts" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if want := now.Add(30 * time.Minute); !claims.ExpiresAt.Time.Equal(want) {
		t.Fatalf("exp = %v, want %v", claims.ExpiresAt.Time, want)
	}
}

func TestMintFillsMissingJTI(t *testing.T) {
	claims, err := ParseAccessToken(tokenCfg, mint(t, tokenCfg, time.Now(), AccessTokenPayload{PrincipalID: uuid.New(), Role: enums.RoleBuyer}))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := uuid.Parse(claims.ID); err != nil {
		t.Fatalf("jti %q is not a uuid", claims.ID)
	}
}

func TestMintRejectsBadInput(t *testing.T) {
	good := AccessTokenPayload{PrincipalID: uuid.New(), Role: enums.RoleBuyer}
	cases := map[string]struct {
		cfg     config.JWTConfig
		payload AccessTokenPayload
	}{
		"no secret":  {config.JWTConfig{Issuer: "x", ExpirationMinutes: 1}, good},
		"no issuer":  {config.JWTConfig{Secret: "x", ExpirationMinutes: 1}, good},
		"no ttl":     {config.JWTConfig{Secret: "x", Issuer: "x"}, good},
		"no subject": {tokenCfg, AccessTokenPayload{Role: enums.RoleBuyer}},
		"bogus role": {tokenCfg, AccessTokenPayload{PrincipalID: uuid.New(), Role: "admin"}},
		"empty role": {tokenCfg, AccessTokenPayload{PrincipalID: uuid.New()}},
	}
	for name, tc := range cases {
		if _, err := MintAccessToken(tc.cfg, time.Now(), tc.payload); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestParseRejectsForeignTokens(t *testing.T) {
	token := mint(t, tokenCfg, time.Now(), AccessTokenPayload{PrincipalID: uuid.New(), Role: enums.RoleBuyer})

	otherSecret := tokenCfg
	otherSecret.Secret = "different"
	otherIssuer := tokenCfg
	otherIssuer.Issuer = "elsewhere"

	if _, err := ParseAccessToken(tokenCfg, token+"x"); err == nil {
		t.Error("tampered signature accepted")
	}
	if _, err := ParseAccessToken(otherSecret, token); !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
		t.Errorf("wrong secret: got %v", err)
	}
	if _, err := ParseAccessToken(otherIssuer, token); !errors.Is(err, jwt.ErrTokenInvalidIssuer) {
		t.Errorf("wrong issuer: got %v", err)
	}
	if _, err := ParseAccessTokenAllowExpired(otherIssuer, token); !errors.Is(err, jwt.ErrTokenInvalidIssuer) {
		t.Errorf("wrong issuer on refresh path: got %v", err)
	}
	if _, err := ParseAccessToken(config.JWTConfig{}, token); !errors.Is(err, ErrSecretMissing) {
		t.Errorf("missing secret: got %v", err)
	}
}

func TestParseRejectsOtherAlgorithms(t *testing.T) {
	claims := AccessTokenClaims{Role: enums.RoleBuyer, RegisteredClaims: jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		Issuer:    tokenCfg.Issuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(tokenCfg.Secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseAccessToken(tokenCfg, token); err == nil {
		t.Fatal("HS512 token accepted")
	}
}

func TestExpiredTokenOnlyParsesOnRefreshPath(t *testing.T) {
	token := mint(t, tokenCfg, time.Now().Add(-2*time.Hour), AccessTokenPayload{PrincipalID: uuid.New(), Role: enums.RoleBuyer, JTI: "old"})

	if _, err := ParseAccessToken(tokenCfg, token); !errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("expected expiry error, got %v", err)
	}
	claims, err := ParseAccessTokenAllowExpired(tokenCfg, token)
	if err != nil {
		t.Fatalf("refresh parse: %v", err)
	}
	if claims.ID != "old" {
		t.Fatalf("jti = %q", claims.ID)
	}
}
