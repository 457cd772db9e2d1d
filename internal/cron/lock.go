package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const defaultLockTTL = 2 * time.Minute

// ErrLockHeld means another worker owns the current cycle.
var ErrLockHeld = errors.New("cron lock held by another worker")

// Locker hands out exclusive leases on the cron cycle. The returned unlock
// func gives up the lease; it is a no-op once the lease has expired and
// been taken by someone else.
type Locker interface {
	Lock(ctx context.Context) (unlock func(context.Context) error, err error)
}

type leaseStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	ReleaseIfOwner(ctx context.Context, key, owner string) (bool, error)
}

// RedisLocker leases a single Redis key. Each lease carries its own owner
// token and release is a compare-and-delete, so a worker whose lease lapsed
// mid-cycle cannot free a lease that now belongs to another worker.
type RedisLocker struct {
	store leaseStore
	key   string
	ttl   time.Duration
}

func NewRedisLocker(store leaseStore, key string, ttl time.Duration) (*RedisLocker, error) {
	if store == nil {
		return nil, errors.New("lock store is required")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLocker{store: store, key: key, ttl: ttl}, nil
}

func (l *RedisLocker) Lock(ctx context.Context) (func(context.Context) error, error) {
	owner := uuid.NewString()
	ok, err := l.store.SetNX(ctx, l.key, owner, l.ttl)
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return func(ctx context.Context) error {
		if _, err := l.store.ReleaseIfOwner(ctx, l.key, owner); err != nil {
			return fmt.Errorf("release %s: %w", l.key, err)
		}
		return nil
	}, nil
}
