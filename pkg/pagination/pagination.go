// Package pagination implements keyset paging over (created_at, id) ordered
// listings such as the public catalog.
package pagination

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100

	cursorSep = "~"
)

var ErrInvalidCursor = errors.New("invalid cursor")

// Params is the raw page request as received from the client.
type Params struct {
	Limit  int
	Cursor string
}

// Size clamps the requested limit into [1, MaxLimit].
func (p Params) Size() int {
	switch {
	case p.Limit <= 0:
		return DefaultLimit
	case p.Limit > MaxLimit:
		return MaxLimit
	default:
		return p.Limit
	}
}

// Probe is the row count to fetch: one past the page size, so the caller can
// tell whether another page exists without a COUNT query.
func (p Params) Probe() int {
	return p.Size() + 1
}

// Key is the position of the last row on a page.
type Key struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// Encode renders the key as an opaque URL-safe token.
func (k Key) Encode() string {
	raw := strconv.FormatInt(k.CreatedAt.UTC().UnixNano(), 10) + cursorSep + k.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// Decode parses a token produced by Key.Encode. An empty token means the first
// page and yields a nil key.
func Decode(token string) (*Key, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	nanos, id, ok := strings.Cut(string(raw), cursorSep)
	if !ok {
		return nil, ErrInvalidCursor
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	return &Key{CreatedAt: time.Unix(0, n).UTC(), ID: parsed}, nil
}

// Cut trims a probe-sized result down to the page and returns the token for
// the following page, or "" when rows was the last page.
func Cut[T any](rows []T, p Params, keyOf func(T) Key) ([]T, string) {
	size := p.Size()
	if len(rows) <= size {
		return rows, ""
	}
	rows = rows[:size]
	return rows, keyOf(rows[size-1]).Encode()
}
