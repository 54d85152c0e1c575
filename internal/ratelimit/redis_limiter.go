package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// slidingWindowScript 与 SlidingWindow 相同的算法, 在一个事务内完成
//
// KEYS[1] 有序集合, ARGV: now(ms), window(ms), limit, member
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
if count >= limit then
  return 0
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
return 1
`)

// RedisSlidingWindow 基于Redis有序集合的分布式滑动窗口
//
// Redis 不可用时放行.
type RedisSlidingWindow struct {
	redis     redis.UniversalClient
	prefix    string
	rule      Rule
	overrides map[string]Rule
	now       func() time.Time
	logger    *zap.Logger
}

// NewRedisSlidingWindow 创建分布式限流器
func NewRedisSlidingWindow(client redis.UniversalClient, rule Rule, overrides map[string]Rule, logger *zap.Logger) *RedisSlidingWindow {
	return &RedisSlidingWindow{
		redis:     client,
		prefix:    "parser:ratelimit:",
		rule:      rule,
		overrides: overrides,
		now:       time.Now,
		logger:    logger.Named("ratelimit"),
	}
}

// Admit 执行Lua脚本判断是否准入
func (w *RedisSlidingWindow) Admit(ctx context.Context, key string) bool {
	rule := w.rule
	if r, ok := w.overrides[key]; ok {
		rule = r
	}

	now := w.now().UnixMilli()
	member := fmt.Sprintf("%d-%s", now, uuid.NewString())

	admitted, err := slidingWindowScript.Run(ctx, w.redis,
		[]string{w.prefix + key},
		now, rule.Window.Milliseconds(), rule.Limit, member,
	).Int()
	if err != nil {
		w.logger.Warn("rate limit check failed, admitting", zap.String("key", key), zap.Error(err))
		return true
	}
	return admitted == 1
}
