package strategy

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/device"
	"go.uber.org/zap"

	"vasset/parsing-service/internal/config"
	"vasset/parsing-service/internal/models"
	"vasset/parsing-service/internal/utils"
)

const shareURLTemplate = "https://www.iesdouyin.com/share/video/%s/"

// mobileDevices 可模拟的设备
var mobileDevices = map[string]chromedp.Device{
	"iPhone X":  device.IPhoneX,
	"iPhone 8":  device.IPhone8,
	"Pixel 2":   device.Pixel2,
	"Galaxy S5": device.GalaxyS5,
}

// MobileBrowserStrategy 模拟移动设备打开分享页, 读取 window._ROUTER_DATA
type MobileBrowserStrategy struct {
	launcher chromeLauncher
	device   chromedp.Device
	logger   *zap.Logger
}

// NewMobileBrowserStrategy 创建移动浏览器策略
func NewMobileBrowserStrategy(cfg config.StrategyConfig, browser config.BrowserConfig, logger *zap.Logger) *MobileBrowserStrategy {
	dev, ok := mobileDevices[browser.MobileDevice]
	if !ok {
		dev = device.IPhoneX
	}
	return &MobileBrowserStrategy{
		// UA 由设备模拟决定
		launcher: newChromeLauncher(browser, cfg.UserAgent),
		device:   dev,
		logger:   logger.Named(config.StrategyBrowserMobile),
	}
}

// Name 策略名称
func (s *MobileBrowserStrategy) Name() string { return config.StrategyBrowserMobile }

// Attempt 打开分享页并读取路由数据
func (s *MobileBrowserStrategy) Attempt(ctx context.Context, in Input) (*models.VideoMetadata, error) {
	bctx, cancel, err := s.launcher.launch(ctx, in.ProxyURL)
	if err != nil {
		return nil, err
	}
	defer cancel()

	var raw string
	err = chromedp.Run(bctx,
		chromedp.Emulate(s.device),
		setCookies(in.Cookies),
		chromedp.Navigate(fmt.Sprintf(shareURLTemplate, in.VideoID)),
		chromedp.WaitReady("body"),
		chromedp.Evaluate(`JSON.stringify(window._ROUTER_DATA || null)`, &raw),
	)
	if err != nil {
		return nil, err
	}

	if doc, err := parseRouterData(raw); err == nil {
		return NormalizeAwemeDetail(doc)
	}
	s.logger.Debug("Router data missing, falling back to page HTML", zap.String("video_id", in.VideoID))

	var html string
	if err := chromedp.Run(bctx, chromedp.OuterHTML("html", &html)); err != nil {
		return nil, err
	}
	return ParseHTML([]byte(html))
}

// parseRouterData 从路由数据中找出详情对象
func parseRouterData(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return nil, utils.ErrNoData
	}
	v, err := decodeJSON(strings.NewReader(raw))
	if err != nil {
		return nil, err
	}
	detail := findDetail(v, 0)
	if detail == nil {
		return nil, utils.ErrNoData
	}
	return map[string]any{"aweme_detail": detail}, nil
}
