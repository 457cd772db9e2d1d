package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anucarts/marketplace-backend/pkg/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	errNoAccessID          = errors.New("access id is required")
)

// Store is the Redis surface sessions live in. Each access token id maps to
// the digest of the refresh token issued with it.
type Store interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	AccessSessionKey(accessID string) string
}

// AccessSessionChecker is what the auth middleware needs to reject tokens
// whose session was revoked.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

// Manager issues, rotates and revokes refresh tokens.
type Manager struct {
	store Store
	ttl   time.Duration
}

// NewManager requires the refresh lifetime to outlast the access token, or a
// client could be left holding a valid access token with nothing to refresh.
func NewManager(store Store, cfg config.JWTConfig) (*Manager, error) {
	if store == nil {
		return nil, errors.New("session store is required")
	}
	refresh := cfg.RefreshTokenTTL()
	access := time.Duration(cfg.ExpirationMinutes) * time.Minute
	if refresh <= 0 || refresh <= access {
		return nil, fmt.Errorf("refresh ttl %s must be positive and exceed access ttl %s", refresh, access)
	}
	return &Manager{store: store, ttl: refresh}, nil
}

// NewAccessID returns a fresh jti for an access token.
func NewAccessID() string {
	return uuid.NewString()
}

// Generate opens a session for accessID and returns its refresh token. Only
// a digest of the token is kept in Redis.
func (m *Manager) Generate(ctx context.Context, accessID string) (string, error) {
	if strings.TrimSpace(accessID) == "" {
		return "", errNoAccessID
	}
	token, err := newRefreshToken()
	if err != nil {
		return "", err
	}
	if err := m.store.Set(ctx, m.store.AccessSessionKey(accessID), digest(token), m.ttl); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return token, nil
}

// Rotate trades a refresh token for a new session. The old session is
// removed once the new one is stored, so a refresh token works exactly once.
func (m *Manager) Rotate(ctx context.Context, accessID, refreshToken string) (newAccessID, newRefreshToken string, err error) {
	if strings.TrimSpace(accessID) == "" || strings.TrimSpace(refreshToken) == "" {
		return "", "", ErrInvalidRefreshToken
	}
	oldKey := m.store.AccessSessionKey(accessID)
	stored, err := m.store.Get(ctx, oldKey)
	if errors.Is(err, redis.Nil) {
		return "", "", ErrInvalidRefreshToken
	}
	if err != nil {
		return "", "", fmt.Errorf("load session: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(digest(refreshToken))) != 1 {
		return "", "", ErrInvalidRefreshToken
	}

	newAccessID = NewAccessID()
	if newRefreshToken, err = m.Generate(ctx, newAccessID); err != nil {
		return "", "", err
	}
	if err := m.store.Del(ctx, oldKey); err != nil {
		return "", "", fmt.Errorf("drop rotated session: %w", err)
	}
	return newAccessID, newRefreshToken, nil
}

// Revoke ends the session tied to accessID. Revoking twice is not an error.
func (m *Manager) Revoke(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return errNoAccessID
	}
	return m.store.Del(ctx, m.store.AccessSessionKey(accessID))
}

func (m *Manager) HasSession(ctx context.Context, accessID string) (bool, error) {
	if strings.TrimSpace(accessID) == "" {
		return false, errNoAccessID
	}
	_, err := m.store.Get(ctx, m.store.AccessSessionKey(accessID))
	switch {
	case errors.Is(err, redis.Nil):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

func newRefreshToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read refresh token entropy: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
