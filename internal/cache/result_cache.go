package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"vasset/parsing-service/internal/models"
	"vasset/parsing-service/internal/utils"
)

// ResultCache 按视频ID缓存解析结果并统计命中率
//
// 后端错误只记录日志, 读取时按未命中处理.
type ResultCache struct {
	store   Store
	backend string
	ttl     time.Duration
	hits    atomic.Int64
	misses  atomic.Int64
	logger  *zap.Logger
}

// NewResultCache 创建结果缓存
func NewResultCache(store Store, backend string, ttl time.Duration, logger *zap.Logger) *ResultCache {
	return &ResultCache{
		store:   store,
		backend: backend,
		ttl:     ttl,
		logger:  logger.Named("cache"),
	}
}

// Get 读取缓存
func (c *ResultCache) Get(ctx context.Context, videoID string) (*models.VideoMetadata, bool) {
	value, err := c.store.Get(ctx, videoID)
	if err != nil {
		if !errors.Is(err, utils.ErrCacheMiss) {
			c.logger.Warn("cache get failed", zap.String("video_id", videoID), zap.Error(err))
		}
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return value, true
}

// Put 写入缓存, ttl 为0时使用默认TTL
func (c *ResultCache) Put(ctx context.Context, videoID string, value *models.VideoMetadata, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	if err := c.store.Set(ctx, videoID, value, ttl); err != nil {
		c.logger.Warn("cache set failed", zap.String("video_id", videoID), zap.Error(err))
	}
}

// Invalidate 删除单个条目
func (c *ResultCache) Invalidate(ctx context.Context, videoID string) {
	if err := c.store.Delete(ctx, videoID); err != nil {
		c.logger.Warn("cache delete failed", zap.String("video_id", videoID), zap.Error(err))
	}
}

// Clear 清空缓存
func (c *ResultCache) Clear(ctx context.Context) error {
	return c.store.Clear(ctx)
}

// Stats 命中统计
func (c *ResultCache) Stats(ctx context.Context) models.CacheStats {
	hits, misses := c.hits.Load(), c.misses.Load()
	stats := models.CacheStats{
		Backend: c.backend,
		Hits:    hits,
		Misses:  misses,
	}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}
	if n, err := c.store.Len(ctx); err == nil {
		stats.Entries = n
	}
	return stats
}
