package strategy

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"vasset/parsing-service/internal/config"
	"vasset/parsing-service/internal/models"
	"vasset/parsing-service/internal/utils"
)

// BrowserStrategy 桌面版无头浏览器, 截获页面发出的详情接口响应
type BrowserStrategy struct {
	launcher chromeLauncher
	logger   *zap.Logger
}

// NewBrowserStrategy 创建桌面浏览器策略
func NewBrowserStrategy(cfg config.StrategyConfig, browser config.BrowserConfig, logger *zap.Logger) *BrowserStrategy {
	ua := cfg.UserAgent
	if ua == "" {
		ua = browser.UserAgent
	}
	if ua == "" {
		ua = desktopUserAgent
	}
	return &BrowserStrategy{
		launcher: newChromeLauncher(browser, ua),
		logger:   logger.Named(config.StrategyBrowser),
	}
}

// Name 策略名称
func (s *BrowserStrategy) Name() string { return config.StrategyBrowser }

// Attempt 打开视频页, 优先使用截获的接口数据, 否则解析页面HTML
func (s *BrowserStrategy) Attempt(ctx context.Context, in Input) (*models.VideoMetadata, error) {
	bctx, cancel, err := s.launcher.launch(ctx, in.ProxyURL)
	if err != nil {
		return nil, err
	}
	defer cancel()

	captured := captureDetailResponses(bctx)

	err = chromedp.Run(bctx,
		network.Enable(),
		setCookies(in.Cookies),
		chromedp.Navigate(in.URL),
		chromedp.WaitReady("body"),
	)
	if err != nil {
		return nil, err
	}

	timer := time.NewTimer(captureWait)
	defer timer.Stop()

	select {
	case body := <-captured:
		meta, err := parseDetailBody(body)
		if err == nil {
			return meta, nil
		}
		s.logger.Debug("Captured response unusable",
			zap.String("video_id", in.VideoID),
			zap.Error(err),
		)
	case <-timer.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var html string
	if err := chromedp.Run(bctx, chromedp.OuterHTML("html", &html)); err != nil {
		return nil, err
	}
	return ParseHTML([]byte(html))
}

// captureDetailResponses 监听详情接口, 响应体加载完成后送入通道
func captureDetailResponses(ctx context.Context) <-chan []byte {
	out := make(chan []byte, 1)
	var mu sync.Mutex
	pending := make(map[network.RequestID]struct{})

	chromedp.ListenTarget(ctx, func(ev any) {
		switch e := ev.(type) {
		case *network.EventResponseReceived:
			if e.Response != nil && isDetailAPI(e.Response.URL) {
				mu.Lock()
				pending[e.RequestID] = struct{}{}
				mu.Unlock()
			}
		case *network.EventLoadingFinished:
			mu.Lock()
			_, ok := pending[e.RequestID]
			delete(pending, e.RequestID)
			mu.Unlock()
			if !ok {
				return
			}
			go func() {
				body, err := network.GetResponseBody(e.RequestID).Do(targetExecutor(ctx))
				if err != nil || len(body) == 0 {
					return
				}
				select {
				case out <- body:
				default:
				}
			}()
		}
	})
	return out
}

// parseDetailBody 解析详情接口响应
func parseDetailBody(body []byte) (*models.VideoMetadata, error) {
	v, err := decodeJSON(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	doc, ok := v.(map[string]any)
	if !ok {
		return nil, utils.ErrNoData
	}
	if code := asInt64(doc["status_code"]); code != 0 {
		return nil, utils.ErrNoData
	}
	return NormalizeAwemeDetail(doc)
}
