package strategy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"vasset/parsing-service/internal/config"
	"vasset/parsing-service/internal/models"
	"vasset/parsing-service/internal/utils"
)

const maxAPIBody = 8 << 20

// 默认详情接口, 按顺序回退
var defaultAPIEndpoints = []string{
	"https://www.douyin.com/aweme/v1/web/aweme/detail/",
	"https://www.iesdouyin.com/web/api/v2/aweme/iteminfo/",
}

// Signer 为接口请求参数签名
type Signer interface {
	Sign(ctx context.Context, endpoint string, params url.Values, userAgent string) (url.Values, error)
}

// NoopSigner 不做签名
type NoopSigner struct{}

// Sign 原样返回参数
func (NoopSigner) Sign(_ context.Context, _ string, params url.Values, _ string) (url.Values, error) {
	return params, nil
}

// APIStrategy 直接调用详情接口
type APIStrategy struct {
	endpoints []string
	userAgent string
	signer    Signer
	logger    *zap.Logger
}

// NewAPIStrategy 创建接口策略
func NewAPIStrategy(cfg config.StrategyConfig, signer Signer, logger *zap.Logger) *APIStrategy {
	endpoints := cfg.Endpoints
	if len(endpoints) == 0 {
		endpoints = defaultAPIEndpoints
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = desktopUserAgent
	}
	if signer == nil {
		signer = NoopSigner{}
	}
	return &APIStrategy{
		endpoints: endpoints,
		userAgent: ua,
		signer:    signer,
		logger:    logger.Named(config.StrategyAPI),
	}
}

// Name 策略名称
func (s *APIStrategy) Name() string { return config.StrategyAPI }

// Attempt 依次请求各个接口, 返回第一个有效结果
func (s *APIStrategy) Attempt(ctx context.Context, in Input) (*models.VideoMetadata, error) {
	client, err := newHTTPClient(in.ProxyURL)
	if err != nil {
		return nil, err
	}
	defer client.CloseIdleConnections()

	var lastErr error
	for _, endpoint := range s.endpoints {
		meta, err := s.fetch(ctx, client, endpoint, in)
		if err == nil {
			return meta, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Debug("Endpoint failed",
			zap.String("endpoint", endpoint),
			zap.String("video_id", in.VideoID),
			zap.Error(err),
		)
		lastErr = err
	}
	return nil, lastErr
}

func (s *APIStrategy) fetch(ctx context.Context, client *http.Client, endpoint string, in Input) (*models.VideoMetadata, error) {
	params, err := s.signer.Sign(ctx, endpoint, buildParams(endpoint, in.VideoID), s.userAgent)
	if err != nil {
		return nil, fmt.Errorf("sign request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Referer", "https://www.douyin.com/")
	if cookie := cookieHeader(in.Cookies); cookie != "" {
		req.Header.Set("Cookie", cookie)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &utils.StatusError{Code: resp.StatusCode, URL: endpoint}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAPIBody))
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		// 未签名的请求通常得到空响应
		return nil, utils.ErrNoData
	}

	v, err := decodeJSON(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	doc, ok := v.(map[string]any)
	if !ok {
		return nil, utils.ErrNoData
	}
	if code := asInt64(doc["status_code"]); code != 0 {
		return nil, fmt.Errorf("api status_code %d: %w", code, utils.ErrNoData)
	}
	if d, present := doc["aweme_detail"]; present && d == nil {
		return nil, utils.ErrVideoNotFound
	}

	meta, err := NormalizeAwemeDetail(doc)
	if err != nil {
		return nil, err
	}
	return meta, nil
}

// buildParams 详情接口的查询参数
func buildParams(endpoint, videoID string) url.Values {
	params := url.Values{}
	if strings.Contains(endpoint, "iteminfo") {
		params.Set("item_ids", videoID)
		return params
	}

	params.Set("aweme_id", videoID)
	for k, v := range webParams {
		params.Set(k, v)
	}
	return params
}

// webParams 模拟桌面浏览器的固定参数
var webParams = map[string]string{
	"device_platform":     "webapp",
	"aid":                 "6383",
	"channel":             "channel_pc_web",
	"pc_client_type":      "1",
	"version_code":        "170400",
	"version_name":        "17.4.0",
	"cookie_enabled":      "true",
	"screen_width":        "1920",
	"screen_height":       "1080",
	"browser_language":    "zh-CN",
	"browser_platform":    "MacIntel",
	"browser_name":        "Chrome",
	"browser_version":     "122.0.0.0",
	"browser_online":      "true",
	"engine_name":         "Blink",
	"engine_version":      "122.0.0.0",
	"os_name":             "Mac",
	"os_version":          "10.15.7",
	"cpu_core_num":        "8",
	"device_memory":       "8",
	"platform":            "PC",
	"downlink":            "10",
	"effective_type":      "4g",
	"round_trip_time":     "50",
	"update_version_code": "170400",
}

// newHTTPClient 按代理创建一次性客户端, 超时由 ctx 控制
func newHTTPClient(proxyURL string) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy %s: %w", utils.MaskProxy(proxyURL), err)
		}
		transport.Proxy = http.ProxyURL(u)
	}
	return &http.Client{Transport: transport}, nil
}
