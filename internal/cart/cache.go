package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned when no cached view exists for the buyer.
var ErrCacheMiss = errors.New("cart cache miss")

type cacheStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

type cacheKeyer interface {
	CartKey(buyerID string) string
}

// Cache is a read-through cache of rendered cart views.
type Cache struct {
	store   cacheStore
	keyer   cacheKeyer
	baseTTL time.Duration
}

// NewCache builds a cart view cache. A non-positive ttl falls back to 10 minutes.
func NewCache(store cacheStore, keyer cacheKeyer, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Cache{store: store, keyer: keyer, baseTTL: ttl}
}

func (c *Cache) Get(ctx context.Context, buyerID uuid.UUID) (*CartDTO, error) {
	raw, err := c.store.Get(ctx, c.keyer.CartKey(buyerID.String()))
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var view CartDTO
	if err := json.Unmarshal([]byte(raw), &view); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return &view, nil
}

func (c *Cache) Set(ctx context.Context, view *CartDTO) error {
	payload, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}
	if err := c.store.Set(ctx, c.keyer.CartKey(view.BuyerID.String()), string(payload), c.ttl()); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, buyerID uuid.UUID) error {
	if err := c.store.Del(ctx, c.keyer.CartKey(buyerID.String())); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// ttl spreads expiry over up to a fifth of the base TTL.
func (c *Cache) ttl() time.Duration {
	spread := int64(c.baseTTL / 5)
	if spread <= 0 {
		return c.baseTTL
	}
	return c.baseTTL + time.Duration(rand.Int63n(spread))
}
