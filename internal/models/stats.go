package models

// StrategyStat 单个策略的统计
type StrategyStat struct {
	Name        string  `json:"name"`
	Enabled     bool    `json:"enabled"`
	Priority    int     `json:"priority"`
	Weight      float64 `json:"weight"`
	Success     int64   `json:"success"`
	Failure     int64   `json:"failure"`
	Total       int64   `json:"total"`
	SuccessRate float64 `json:"success_rate"`
	WindowRate  float64 `json:"window_rate"`
	Score       float64 `json:"score"`
}

// CacheStats 缓存统计
type CacheStats struct {
	Backend string  `json:"backend"`
	Entries int     `json:"entries"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// ProxyDetail 单个代理的状态
type ProxyDetail struct {
	Address          string `json:"address"`
	Healthy          bool   `json:"healthy"`
	Failures         int    `json:"failures"`
	Successes        int64  `json:"successes"`
	QuarantinedUntil string `json:"quarantined_until,omitempty"`
	LastUsed         string `json:"last_used,omitempty"`
}

// ProxyStats 代理池统计
type ProxyStats struct {
	Total       int           `json:"total"`
	Healthy     int           `json:"healthy"`
	Quarantined int           `json:"quarantined"`
	Proxies     []ProxyDetail `json:"proxies"`
}

// RequestStats 请求聚合统计
type RequestStats struct {
	Total         int64   `json:"total"`
	Succeeded     int64   `json:"succeeded"`
	Failed        int64   `json:"failed"`
	CacheHits     int64   `json:"cache_hits"`
	SuccessRate   float64 `json:"success_rate"`
	UptimeSeconds int64   `json:"uptime_seconds"`
}

// StatsSnapshot /stats 返回的完整快照
type StatsSnapshot struct {
	Strategies map[string]StrategyStat `json:"strategies"`
	Order      []string                `json:"order"`
	Cache      CacheStats              `json:"cache_stats"`
	Proxy      *ProxyStats             `json:"proxy_stats,omitempty"`
	Requests   RequestStats            `json:"requests"`
	Metrics    any                     `json:"metrics,omitempty"`
}
