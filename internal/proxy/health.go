package proxy

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// ProbeFunc 通过代理发起一次探测
type ProbeFunc func(ctx context.Context, proxyURL string) error

// HealthChecker 定期探测代理可用性, 结果通过 Release 回写
type HealthChecker struct {
	pool   *Pool
	probe  ProbeFunc
	logger *zap.Logger
}

// NewHealthChecker 创建健康检查器
func NewHealthChecker(pool *Pool, testURL string, timeout time.Duration, logger *zap.Logger) *HealthChecker {
	return &HealthChecker{
		pool:   pool,
		probe:  HTTPProbe(testURL, timeout),
		logger: logger.Named("proxy_health"),
	}
}

// HTTPProbe 通过代理发送 HEAD 请求, 2xx/3xx 视为健康
func HTTPProbe(testURL string, timeout time.Duration) ProbeFunc {
	return func(ctx context.Context, proxyURL string) error {
		parsedProxyURL, err := url.Parse(proxyURL)
		if err != nil {
			return fmt.Errorf("invalid proxy URL: %w", err)
		}

		client := &http.Client{
			Transport: &http.Transport{Proxy: http.ProxyURL(parsedProxyURL)},
			Timeout:   timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodHead, testURL, nil)
		if err != nil {
			return fmt.Errorf("create request failed: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("health check request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 400 {
			return fmt.Errorf("health check returned %d", resp.StatusCode)
		}
		return nil
	}
}

// CheckOnce 探测所有健康代理, 返回健康数量
func (h *HealthChecker) CheckOnce(ctx context.Context) int {
	healthy := 0
	for _, e := range h.pool.Entries() {
		if !e.Healthy {
			continue
		}
		entry := e
		if err := h.probe(ctx, entry.URL()); err != nil {
			h.logger.Debug("proxy probe failed", zap.String("proxy", entry.Masked()), zap.Error(err))
			h.pool.Release(&entry, false)
			continue
		}
		h.pool.Release(&entry, true)
		healthy++
	}
	return healthy
}

// Run 按间隔探测, ctx 取消后退出
func (h *HealthChecker) Run(ctx context.Context, interval time.Duration) {
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
			n := h.CheckOnce(ctx)
			h.logger.Info("proxy health check finished", zap.Int("healthy", n), zap.Int("total", h.pool.Len()))
		}
	}
}
