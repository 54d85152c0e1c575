package detector

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"vasset/parsing-service/internal/utils"
)

const (
	canonicalPrefix = "https://www.douyin.com/video/"
	maxRedirectHops = 3
)

var (
	bareID = regexp.MustCompile(`^\d{15,20}$`)

	// 分享文案中的链接, 如 "1@小明:这是视频 https://v.douyin.com/xxx/ 复制此链接"
	embeddedURL = regexp.MustCompile(`https?://[^\s]+`)

	// idPatterns 按顺序匹配
	idPatterns = []*regexp.Regexp{
		regexp.MustCompile(`/video/(\d+)`),
		regexp.MustCompile(`/note/(\d+)`),
		regexp.MustCompile(`modal_id=(\d+)`),
		regexp.MustCompile(`aweme_id=(\d+)`),
		regexp.MustCompile(`/share/video/(\d+)`),
		regexp.MustCompile(`/(\d{15,20})`),
	}

	shortLinkHosts = []string{"v.douyin.com", "vm.tiktok.com", "vt.tiktok.com", "iesdouyin.com"}
)

// IDExtractor 从分享链接推导视频ID
type IDExtractor struct {
	resolver Resolver
	logger   *zap.Logger
}

// NewIDExtractor 创建ID提取器, resolver 为 nil 时不解析短链接
func NewIDExtractor(resolver Resolver, logger *zap.Logger) *IDExtractor {
	return &IDExtractor{
		resolver: resolver,
		logger:   logger.Named("detector"),
	}
}

// Extract 返回视频ID和规范化URL
func (e *IDExtractor) Extract(ctx context.Context, rawURL string) (string, string, error) {
	raw := strings.TrimSpace(rawURL)
	if bareID.MatchString(raw) {
		return raw, CanonicalURL(raw), nil
	}

	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		if m := embeddedURL.FindString(raw); m != "" {
			raw = m
		}
	}

	normalized := utils.NormalizeURL(raw)
	if !utils.IsValidURL(normalized) {
		return "", "", utils.ErrInvalidURL
	}

	current := normalized
	for hop := 0; ; hop++ {
		if id := MatchID(current); id != "" {
			return id, CanonicalURL(id), nil
		}
		if hop >= maxRedirectHops || e.resolver == nil || !IsShortLink(current) {
			return "", "", utils.ErrInvalidURL
		}

		target, err := e.resolver.Resolve(ctx, current)
		if err != nil {
			e.logger.Warn("short link resolve failed", zap.String("url", current), zap.Error(err))
			return "", "", fmt.Errorf("%w: %v", utils.ErrInvalidURL, err)
		}
		e.logger.Debug("short link resolved", zap.String("from", current), zap.String("to", target))
		current = utils.NormalizeURL(target)
	}
}

// MatchID 按模式顺序从URL中取出视频ID
func MatchID(rawURL string) string {
	for _, p := range idPatterns {
		if m := p.FindStringSubmatch(rawURL); m != nil {
			return m[1]
		}
	}
	return ""
}

// IsShortLink 判断是否为需要跳转解析的短链接
func IsShortLink(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range shortLinkHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// CanonicalURL 视频ID对应的规范地址
func CanonicalURL(id string) string {
	return canonicalPrefix + id
}
