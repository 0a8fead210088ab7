// Package tokenstore 缓存外部价格 API 的访问令牌。
//
// 缓存只是尽力而为：读取失败视为未命中，写入失败只记录日志，
// 调用方随时可以重新换取令牌。
package tokenstore

import (
	"context"
	"time"
)

// Store 令牌缓存
type Store interface {
	// Get 返回缓存的令牌，未命中或已过期时 ok 为 false
	Get(ctx context.Context, key string) (token string, ok bool)
	// Put 写入令牌，ttl 到期后自动失效
	Put(ctx context.Context, key, token string, ttl time.Duration)
	// Forget 删除令牌
	Forget(ctx context.Context, key string)
}
