package detector

import (
	"regexp"

	"vasset/parsing-service/internal/utils"
)

// 平台名称
const (
	PlatformDouyin  = "douyin"
	PlatformTikTok  = "tiktok"
	PlatformGeneric = "generic"
)

type platformPattern struct {
	name    string
	pattern *regexp.Regexp
}

// PlatformDetector 平台检测器
type PlatformDetector struct {
	patterns []platformPattern
}

// NewPlatformDetector 创建平台检测器
func NewPlatformDetector() *PlatformDetector {
	return &PlatformDetector{
		patterns: []platformPattern{
			{PlatformDouyin, regexp.MustCompile(`^https?://([a-z0-9-]+\.)*(douyin\.com|iesdouyin\.com)(:\d+)?/`)},
			{PlatformTikTok, regexp.MustCompile(`^https?://([a-z0-9-]+\.)*tiktok\.com(:\d+)?/`)},
		},
	}
}

// Detect 检测URL所属平台
func (d *PlatformDetector) Detect(url string) (string, error) {
	if bareID.MatchString(url) {
		return PlatformDouyin, nil
	}

	// 先验证URL格式
	if !utils.IsValidURL(url) {
		return "", utils.ErrInvalidURL
	}

	// 匹配已知平台
	for _, p := range d.patterns {
		if p.pattern.MatchString(url) {
			return p.name, nil
		}
	}

	// 未匹配到特定平台
	return PlatformGeneric, nil
}
