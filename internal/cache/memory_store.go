package cache

import (
	"context"
	"sync"
	"time"

	"vasset/parsing-service/internal/models"
	"vasset/parsing-service/internal/utils"
)

type memoryEntry struct {
	value      *models.VideoMetadata
	insertedAt time.Time
	ttl        time.Duration
}

func (e memoryEntry) expired(now time.Time) bool {
	return e.ttl > 0 && now.Sub(e.insertedAt) >= e.ttl
}

// MemoryStore 进程内缓存, 过期条目在下次读取时淘汰
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore 创建内存缓存
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get 读取缓存
func (s *MemoryStore) Get(_ context.Context, key string) (*models.VideoMetadata, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, utils.ErrCacheMiss
	}

	if entry.expired(s.now()) {
		s.mu.Lock()
		// 期间可能已被覆盖
		if cur, ok := s.entries[key]; ok && cur.value == entry.value {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, utils.ErrCacheMiss
	}
	return entry.value.Clone(), nil
}

// Set 写入缓存, 同一key后写覆盖
func (s *MemoryStore) Set(_ context.Context, key string, value *models.VideoMetadata, ttl time.Duration) error {
	s.mu.Lock()
	s.entries[key] = memoryEntry{
		value:      value.Clone(),
		insertedAt: s.now(),
		ttl:        ttl,
	}
	s.mu.Unlock()
	return nil
}

// Delete 删除缓存
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Clear 清空缓存
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.entries = make(map[string]memoryEntry)
	s.mu.Unlock()
	return nil
}

// Len 当前条目数(含尚未淘汰的过期条目)
func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

// Sweep 淘汰所有过期条目, 返回淘汰数量
func (s *MemoryStore) Sweep() int {
	now := s.now()
	removed := 0

	s.mu.Lock()
	for key, entry := range s.entries {
		if entry.expired(now) {
			delete(s.entries, key)
			removed++
		}
	}
	s.mu.Unlock()
	return removed
}

// RunSweeper 定期清理过期条目, ctx 取消后退出
func (s *MemoryStore) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
