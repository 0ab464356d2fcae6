// Package redisdb 编辑器的 Redis 侧：下拉数据源缓存与触发事件队列。
package redisdb

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	applog "textflow/internal/platform/log"
)

// LookupCache 节点配置下拉数据源（标签/成员/活动）的 Redis 缓存。
// 缓存层任何失败都只降级为未命中，绝不向上抛错。
type LookupCache struct {
	redis  *redis.Client
	ttl    time.Duration
	prefix string
}

// NewLookupCache 创建缓存
func NewLookupCache(rdb *redis.Client, ttlSeconds int) *LookupCache {
	ttl := 5 * time.Minute
	if ttlSeconds > 0 {
		ttl = time.Duration(ttlSeconds) * time.Second
	}
	return &LookupCache{
		redis:  rdb,
		ttl:    ttl,
		prefix: "lookup:",
	}
}

// Get 读取某账户某类列表的缓存，out 为目标切片指针
func (c *LookupCache) Get(ctx context.Context, kind, accountID string, out any) bool {
	data, err := c.redis.Get(ctx, c.key(kind, accountID)).Bytes()
	if err != nil {
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		applog.Warn("[Lookup/Cache] Failed to unmarshal cached list", "kind", kind, "error", err)
		return false
	}
	applog.Debug("[Lookup/Cache] Hit", "kind", kind, "account_id", accountID)
	return true
}

// Set 写入缓存
func (c *LookupCache) Set(ctx context.Context, kind, accountID string, items any) {
	data, err := json.Marshal(items)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, c.key(kind, accountID), data, c.ttl).Err(); err != nil {
		applog.Warn("[Lookup/Cache] Failed to set cache", "kind", kind, "error", err)
	}
}

// Invalidate 清除某账户某类列表的缓存（如创建标签后）
func (c *LookupCache) Invalidate(ctx context.Context, kind, accountID string) {
	if err := c.redis.Del(ctx, c.key(kind, accountID)).Err(); err != nil {
		applog.Warn("[Lookup/Cache] Failed to invalidate", "kind", kind, "error", err)
	}
}

func (c *LookupCache) key(kind, accountID string) string {
	return c.prefix + kind + ":" + accountID
}
