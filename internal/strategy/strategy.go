package strategy

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"vasset/parsing-service/internal/models"
)

const (
	desktopUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"
	mobileUserAgent  = "Mozilla/5.0 (iPhone; CPU iPhone OS 16_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Mobile/15E148 Safari/604.1"
)

// Input 单次尝试的输入
type Input struct {
	URL      string // 规范化后的视频页地址
	VideoID  string
	Cookies  map[string]string
	ProxyURL string // 为空时直连
}

// Strategy 将分享链接解析为视频元数据的一种手段
//
// 超时由 ctx 携带, ctx 结束后调用方不再等待结果. 实现不得持有跨请求的可变状态.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, in Input) (*models.VideoMetadata, error)
}

// Registry 按名称登记的策略集合
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry 创建策略集合
func NewRegistry(strategies ...Strategy) *Registry {
	r := &Registry{strategies: make(map[string]Strategy, len(strategies))}
	for _, s := range strategies {
		r.Register(s)
	}
	return r
}

// Register 登记策略, 同名覆盖
func (r *Registry) Register(s Strategy) {
	r.strategies[s.Name()] = s
}

// Get 按名称获取策略
func (r *Registry) Get(name string) (Strategy, bool) {
	s, ok := r.strategies[name]
	return s, ok
}

// Names 已登记的策略名称, 按字母排序
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// cookieHeader 将cookie序列化为请求头, 按名称排序
func cookieHeader(cookies map[string]string) string {
	if len(cookies) == 0 {
		return ""
	}
	names := make([]string, 0, len(cookies))
	for name := range cookies {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%s", name, cookies[name]))
	}
	return strings.Join(parts, "; ")
}
