package redis

import (
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/anucarts/marketplace-backend/pkg/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore emulates the handful of commands and the two Lua scripts the
// client relies on.
type fakeStore struct {
	data    map[string]string
	ttl     map[string]time.Duration
	evalSha int
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (f *fakeStore) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeStore) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	f.data[key] = fmt.Sprint(value)
	f.ttl[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeStore) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd {
	if _, ok := f.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = fmt.Sprint(value)
	f.ttl[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (f *fakeStore) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			n++
		}
		delete(f.data, k)
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeStore) EvalSha(_ context.Context, sha string, keys []string, args ...any) *redis.Cmd {
	f.evalSha++
	key := keys[0]
	switch sha {
	case windowIncr.Hash():
		n, _ := strconv.ParseInt(f.data[key], 10, 64)
		n++
		f.data[key] = strconv.FormatInt(n, 10)
		if n == 1 {
			f.ttl[key] = time.Duration(args[0].(int64)) * time.Millisecond
		}
		return redis.NewCmdResult(n, nil)
	case releaseOwned.Hash():
		if v, ok := f.data[key]; ok && v == args[0] {
			delete(f.data, key)
			return redis.NewCmdResult(int64(1), nil)
		}
		return redis.NewCmdResult(int64(0), nil)
	}
	return redis.NewCmdResult(nil, fmt.Errorf("NOSCRIPT %s", sha))
}

func (f *fakeStore) Eval(ctx context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	return redis.NewCmdResult(nil, fmt.Errorf("unexpected EVAL"))
}

func (f *fakeStore) EvalRO(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	return f.Eval(ctx, script, keys, args...)
}

func (f *fakeStore) EvalShaRO(ctx context.Context, sha string, keys []string, args ...any) *redis.Cmd {
	return f.EvalSha(ctx, sha, keys, args...)
}

func (f *fakeStore) ScriptExists(_ context.Context, hashes ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceResult(make([]bool, len(hashes)), nil)
}

func (f *fakeStore) ScriptLoad(_ context.Context, script string) *redis.StringCmd {
	return redis.NewStringResult("", nil)
}

func TestIncrWithTTLStartsWindowOnce(t *testing.T) {
	ctx := context.Background()
	fake := newFakeStore()
	client := &Client{store: fake}
	key := client.RateLimitKey("login:email:buyer@example.com")

	for want := int64(1); want <= 3; want++ {
		got, err := client.IncrWithTTL(ctx, key, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, time.Minute, fake.ttl[key])
	assert.Equal(t, 3, fake.evalSha)
}

func TestReleaseIfOwner(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newFakeStore()}
	key := client.LockKey("cron-worker:dev")

	ok, err := client.SetNX(ctx, key, "owner-a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	released, err := client.ReleaseIfOwner(ctx, key, "owner-b")
	require.NoError(t, err)
	assert.False(t, released, "a stranger must not release the lock")

	released, err = client.ReleaseIfOwner(ctx, key, "owner-a")
	require.NoError(t, err)
	assert.True(t, released)

	_, err = client.Get(ctx, key)
	assert.ErrorIs(t, err, redis.Nil)
}

func TestSetGetDel(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newFakeStore()}
	key := client.AccessSessionKey("jti-1")

	require.NoError(t, client.Set(ctx, key, "refresh-value", 10*time.Minute))
	got, err := client.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "refresh-value", got)

	require.NoError(t, client.Del(ctx, key))
	_, err = client.Get(ctx, key)
	assert.ErrorIs(t, err, redis.Nil)
}

func TestNilClientFailsFast(t *testing.T) {
	var client *Client
	assert.ErrorIs(t, client.Ping(context.Background()), errNotConnected)
	_, err := (&Client{}).IncrWithTTL(context.Background(), "k", time.Second)
	assert.ErrorIs(t, err, errNotConnected)
	assert.NoError(t, client.Close())
}

func TestKeyspace(t *testing.T) {
	var keys Keyspace
	assert.Equal(t, "ac:idempotency:POST /orders:buyer-1:abc", keys.IdempotencyKey("POST /orders:buyer-1", "abc"))
	assert.Equal(t, "ac:rate_limit:signup:ip:10.0.0.1", keys.RateLimitKey("signup:ip:10.0.0.1"))
	assert.Equal(t, "ac:session:access:jti", keys.AccessSessionKey("jti"))
	assert.Equal(t, "ac:cart:buyer-1", keys.CartKey(" buyer-1 "))
	assert.Equal(t, "ac:lock", keys.LockKey(""))
	assert.Equal(t, "staging:cart:b", Keyspace{Namespace: "staging"}.CartKey("b"))
}

func TestOptionsFromConfig(t *testing.T) {
	opts, err := optionsFromConfig(config.RedisConfig{
		URL:          "redis://localhost:6379/2",
		PoolSize:     7,
		ReadTimeout:  time.Second,
		WriteTimeout: 2 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 7, opts.PoolSize)
	assert.Equal(t, time.Second, opts.ReadTimeout)
	assert.Equal(t, 2*time.Second, opts.WriteTimeout)

	opts, err = optionsFromConfig(config.RedisConfig{Address: "cache:6379", DB: 4})
	require.NoError(t, err)
	assert.Equal(t, "cache:6379", opts.Addr)
	assert.Equal(t, 4, opts.DB)

	_, err = optionsFromConfig(config.RedisConfig{})
	assert.Error(t, err)
}
