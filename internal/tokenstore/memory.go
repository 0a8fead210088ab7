package tokenstore

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryStore 进程内令牌缓存
type MemoryStore struct {
	cache *cache.Cache
}

// NewMemoryStore 创建进程内缓存，cleanupInterval 为过期条目的清理周期
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	return &MemoryStore{
		cache: cache.New(cache.NoExpiration, cleanupInterval),
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool) {
	v, found := s.cache.Get(key)
	if !found {
		return "", false
	}
	token, ok := v.(string)
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

func (s *MemoryStore) Put(_ context.Context, key, token string, ttl time.Duration) {
	s.cache.Set(key, token, ttl)
}

func (s *MemoryStore) Forget(_ context.Context, key string) {
	s.cache.Delete(key)
}
