package cache

import (
	"context"
	"encoding/json"
	"time"

	"PulseFM/core/player"
	"PulseFM/logger"

	"github.com/redis/go-redis/v9"
)

const resolveKeyPrefix = "resolve:"

// ResolveCache 解析结果的Redis缓存。
// 解析出的串流地址上游会过期，TTL与之对齐。
type ResolveCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewResolveCache 创建解析缓存
func NewResolveCache(client *redis.Client, ttl time.Duration) *ResolveCache {
	return &ResolveCache{client: client, ttl: ttl}
}

// Get 查缓存
func (c *ResolveCache) Get(ctx context.Context, locator string) (player.Resolved, bool) {
	var r player.Resolved
	if c.client == nil {
		return r, false
	}
	data, err := c.client.Get(ctx, resolveKeyPrefix+locator).Bytes()
	if err != nil {
		return r, false
	}
	if err := json.Unmarshal(data, &r); err != nil {
		logger.Warn("resolve cache entry corrupt", logger.String("locator", locator))
		return player.Resolved{}, false
	}
	return r, true
}

// Put 写缓存，失败只记日志
func (c *ResolveCache) Put(ctx context.Context, locator string, r player.Resolved) {
	if c.client == nil {
		return
	}
	data, err := json.Marshal(r)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, resolveKeyPrefix+locator, data, c.ttl).Err(); err != nil {
		logger.Warn("resolve cache put failed", logger.ErrorField(err))
	}
}
