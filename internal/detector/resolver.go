package detector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"vasset/parsing-service/internal/utils"
)

// Resolver 短链接跳转解析
type Resolver interface {
	Resolve(ctx context.Context, rawURL string) (string, error)
}

const defaultUserAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 16_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Mobile/15E148 Safari/604.1"

// HTTPResolver 发起一次不跟随跳转的GET, 返回 Location
type HTTPResolver struct {
	client    *http.Client
	userAgent string
}

// NewHTTPResolver 创建短链接解析器
func NewHTTPResolver(timeout time.Duration, userAgent string) *HTTPResolver {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &HTTPResolver{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		userAgent: userAgent,
	}
}

// Resolve 解析短链接的跳转目标
func (r *HTTPResolver) Resolve(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	location := resp.Header.Get("Location")
	if location == "" {
		return "", fmt.Errorf("%w: status %d", utils.ErrShortLinkRedir, resp.StatusCode)
	}

	// 相对地址按请求地址补全
	target, err := resp.Request.URL.Parse(location)
	if err != nil {
		return "", fmt.Errorf("invalid Location header %q: %w", location, err)
	}
	return target.String(), nil
}
