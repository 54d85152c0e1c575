package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter 按目标key的准入控制
type Limiter interface {
	Admit(ctx context.Context, key string) bool
}

// Rule 窗口内最多 Limit 次准入
type Rule struct {
	Limit  int
	Window time.Duration
}

// SlidingWindow 进程内滑动窗口限流, 每个key保存准入时间戳
type SlidingWindow struct {
	mu        sync.Mutex
	rule      Rule
	overrides map[string]Rule
	logs      map[string][]time.Time
	now       func() time.Time
}

// NewSlidingWindow 创建滑动窗口限流器
func NewSlidingWindow(rule Rule, overrides map[string]Rule) *SlidingWindow {
	return &SlidingWindow{
		rule:      rule,
		overrides: overrides,
		logs:      make(map[string][]time.Time),
		now:       time.Now,
	}
}

// Admit 剪除窗口外的时间戳后与上限比较
func (w *SlidingWindow) Admit(_ context.Context, key string) bool {
	rule := w.ruleFor(key)
	now := w.now()
	cutoff := now.Add(-rule.Window)

	w.mu.Lock()
	defer w.mu.Unlock()

	log := w.logs[key]
	i := 0
	for i < len(log) && !log[i].After(cutoff) {
		i++
	}
	log = log[i:]

	if len(log) >= rule.Limit {
		w.logs[key] = log
		return false
	}
	w.logs[key] = append(log, now)
	return true
}

// Count 窗口内已准入次数
func (w *SlidingWindow) Count(key string) int {
	cutoff := w.now().Add(-w.ruleFor(key).Window)

	w.mu.Lock()
	defer w.mu.Unlock()

	n := 0
	for _, ts := range w.logs[key] {
		if ts.After(cutoff) {
			n++
		}
	}
	return n
}

func (w *SlidingWindow) ruleFor(key string) Rule {
	if r, ok := w.overrides[key]; ok {
		return r
	}
	return w.rule
}
