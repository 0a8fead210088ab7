package tokenstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisStore 多实例共享的令牌缓存
type RedisStore struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisStore 创建 Redis 令牌缓存
func NewRedisStore(cfg RedisConfig, logger *zap.Logger) *RedisStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisStore{client: rdb, logger: logger}
}

// Ping 检查连接
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close 关闭连接
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false
	}
	if err != nil {
		s.logger.Warn("Failed to read cached token", zap.String("key", key), zap.Error(err))
		return "", false
	}
	return val, val != ""
}

func (s *RedisStore) Put(ctx context.Context, key, token string, ttl time.Duration) {
	if err := s.client.Set(ctx, key, token, ttl).Err(); err != nil {
		s.logger.Warn("Failed to cache token", zap.String("key", key), zap.Error(err))
	}
}

func (s *RedisStore) Forget(ctx context.Context, key string) {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		s.logger.Warn("Failed to forget cached token", zap.String("key", key), zap.Error(err))
	}
}
