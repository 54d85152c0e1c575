package proxy

import (
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"vasset/parsing-service/internal/models"
	"vasset/parsing-service/internal/utils"
)

// 选择策略
const (
	SelectRoundRobin = "round_robin"
	SelectRandom     = "random"
)

// Options 代理池参数
type Options struct {
	Selection        string
	FailureThreshold int
	Cooldown         time.Duration
}

// Pool 代理池
//
// Acquire 返回条目快照, Release 按地址回写结果.
type Pool struct {
	mu        sync.Mutex
	entries   []*Entry
	index     map[string]*Entry
	next      int
	selection string
	threshold int
	cooldown  time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// NewPool 创建代理池
func NewPool(entries []Entry, opts Options, logger *zap.Logger) *Pool {
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = 3
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = 5 * time.Minute
	}
	if opts.Selection == "" {
		opts.Selection = SelectRoundRobin
	}

	p := &Pool{
		index:     make(map[string]*Entry),
		selection: opts.Selection,
		threshold: opts.FailureThreshold,
		cooldown:  opts.Cooldown,
		now:       time.Now,
		logger:    logger.Named("proxy"),
	}
	p.Load(entries)
	return p
}

// Load 替换池内代理, 保留已存在条目的状态
func (p *Pool) Load(entries []Entry) {
	p.mu.Lock()
	defer p.mu.Unlock()

	list := make([]*Entry, 0, len(entries))
	index := make(map[string]*Entry, len(entries))
	for i := range entries {
		e := entries[i]
		if old, ok := p.index[e.key()]; ok {
			e = *old
		} else {
			e.Healthy = true
		}
		ep := &e
		list = append(list, ep)
		index[ep.key()] = ep
	}
	p.entries = list
	p.index = index
	p.next = 0
}

// Len 代理总数
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Acquire 选择一个健康代理, 没有时返回 utils.ErrProxyUnavailable
func (p *Pool) Acquire() (*Entry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	healthy := make([]*Entry, 0, len(p.entries))
	for _, e := range p.entries {
		if !e.Healthy && !now.Before(e.QuarantinedUntil) {
			// 冷却结束, 重新加入
			e.Healthy = true
			e.Failures = 0
			e.QuarantinedUntil = time.Time{}
			p.logger.Info("proxy readmitted", zap.String("proxy", e.Masked()))
		}
		if e.Healthy {
			healthy = append(healthy, e)
		}
	}
	if len(healthy) == 0 {
		return nil, utils.ErrProxyUnavailable
	}

	var chosen *Entry
	switch p.selection {
	case SelectRandom:
		chosen = healthy[rand.IntN(len(healthy))]
	default:
		chosen = healthy[p.next%len(healthy)]
		p.next++
	}
	chosen.LastUsed = now

	snapshot := *chosen
	return &snapshot, nil
}

// Release 归还代理并记录结果, 连续失败达到阈值后隔离
func (p *Pool) Release(entry *Entry, success bool) {
	if entry == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.index[entry.key()]
	if !ok {
		return
	}

	if success {
		e.Failures = 0
		e.Successes++
		return
	}

	e.Failures++
	if e.Healthy && e.Failures >= p.threshold {
		e.Healthy = false
		e.QuarantinedUntil = p.now().Add(p.cooldown)
		p.logger.Warn("proxy quarantined",
			zap.String("proxy", e.Masked()),
			zap.Int("failures", e.Failures),
			zap.Duration("cooldown", p.cooldown))
	}
}

// Entries 所有条目的快照
func (p *Pool) Entries() []Entry {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Entry, 0, len(p.entries))
	for _, e := range p.entries {
		out = append(out, *e)
	}
	return out
}

// Stats 代理池统计
func (p *Pool) Stats() models.ProxyStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	stats := models.ProxyStats{
		Total:   len(p.entries),
		Proxies: make([]models.ProxyDetail, 0, len(p.entries)),
	}
	for _, e := range p.entries {
		healthy := e.Healthy || !now.Before(e.QuarantinedUntil)
		if healthy {
			stats.Healthy++
		} else {
			stats.Quarantined++
		}

		detail := models.ProxyDetail{
			Address:   e.Masked(),
			Healthy:   healthy,
			Failures:  e.Failures,
			Successes: e.Successes,
		}
		if !healthy {
			detail.QuarantinedUntil = e.QuarantinedUntil.Format(time.RFC3339)
		}
		if !e.LastUsed.IsZero() {
			detail.LastUsed = e.LastUsed.Format(time.RFC3339)
		}
		stats.Proxies = append(stats.Proxies, detail)
	}
	return stats
}
