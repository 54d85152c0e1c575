package cache

import (
	"context"
	"time"

	"vasset/parsing-service/internal/models"
)

// Store 缓存后端
//
// Get 在未命中或已过期时返回 utils.ErrCacheMiss.
type Store interface {
	Get(ctx context.Context, key string) (*models.VideoMetadata, error)
	Set(ctx context.Context, key string, value *models.VideoMetadata, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Len(ctx context.Context) (int, error)
}
