package tokenstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	store := NewRedisStore(RedisConfig{Addr: mr.Addr()}, zap.NewNop())
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestStores(t *testing.T) {
	redisStore, _ := newRedisStore(t)

	stores := map[string]Store{
		"memory": NewMemoryStore(time.Minute),
		"redis":  redisStore,
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, ok := store.Get(ctx, "missing")
			assert.False(t, ok)

			store.Put(ctx, "k", "abc", time.Hour)
			token, ok := store.Get(ctx, "k")
			require.True(t, ok)
			assert.Equal(t, "abc", token)

			store.Put(ctx, "k", "def", time.Hour)
			token, _ = store.Get(ctx, "k")
			assert.Equal(t, "def", token)

			store.Forget(ctx, "k")
			_, ok = store.Get(ctx, "k")
			assert.False(t, ok)

			// 删除不存在的 key 不报错
			store.Forget(ctx, "k")
		})
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()

	store.Put(ctx, "k", "abc", 20*time.Millisecond)
	time.Sleep(40 * time.Millisecond)

	_, ok := store.Get(ctx, "k")
	assert.False(t, ok)
}

func TestRedisStoreExpiry(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	store.Put(ctx, "k", "abc", 10*time.Second)
	assert.Equal(t, 10*time.Second, mr.TTL("k"))

	mr.FastForward(11 * time.Second)
	_, ok := store.Get(ctx, "k")
	assert.False(t, ok)
}

func TestRedisStoreUnavailableIsMiss(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	store.Put(ctx, "k", "abc", time.Hour)
	mr.Close()

	_, ok := store.Get(ctx, "k")
	assert.False(t, ok)
	store.Put(ctx, "k", "abc", time.Hour)
	store.Forget(ctx, "k")
}
