package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"vasset/parsing-service/internal/config"
	"vasset/parsing-service/internal/models"
	"vasset/parsing-service/internal/utils"
)

const defaultHTMLTimeout = 15 * time.Second

// HTMLStrategy 抓取视频页并从内嵌数据中提取元数据
type HTMLStrategy struct {
	userAgent string
	timeout   time.Duration
	logger    *zap.Logger
}

// NewHTMLStrategy 创建页面抓取策略
func NewHTMLStrategy(cfg config.StrategyConfig, logger *zap.Logger) *HTMLStrategy {
	ua := cfg.UserAgent
	if ua == "" {
		ua = desktopUserAgent
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTMLTimeout
	}
	return &HTMLStrategy{
		userAgent: ua,
		timeout:   timeout,
		logger:    logger.Named(config.StrategyHTML),
	}
}

// Name 策略名称
func (s *HTMLStrategy) Name() string { return config.StrategyHTML }

type fetchResult struct {
	body []byte
	err  error
}

// Attempt 抓取页面并解析
func (s *HTMLStrategy) Attempt(ctx context.Context, in Input) (*models.VideoMetadata, error) {
	body, err := s.fetch(ctx, in)
	if err != nil {
		return nil, err
	}

	doc, extractor, err := ExtractFromHTML(body)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Page data extracted",
		zap.String("video_id", in.VideoID),
		zap.String("extractor", extractor),
	)
	return NormalizeAwemeDetail(doc)
}

// fetch 每次尝试使用独立的 collector
func (s *HTMLStrategy) fetch(ctx context.Context, in Input) ([]byte, error) {
	c := colly.NewCollector(
		colly.UserAgent(s.userAgent),
		colly.AllowURLRevisit(),
	)

	timeout := s.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	c.SetRequestTimeout(timeout)

	if in.ProxyURL != "" {
		if err := c.SetProxy(in.ProxyURL); err != nil {
			return nil, fmt.Errorf("invalid proxy %s: %w", utils.MaskProxy(in.ProxyURL), err)
		}
	}

	cookie := cookieHeader(in.Cookies)
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "zh-CN,zh;q=0.9")
		r.Headers.Set("Referer", "https://www.douyin.com/")
		if cookie != "" {
			r.Headers.Set("Cookie", cookie)
		}
	})

	var body []byte
	var statusErr error
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			statusErr = &utils.StatusError{Code: r.StatusCode, URL: in.URL}
		}
	})

	done := make(chan fetchResult, 1)
	go func() {
		err := c.Visit(in.URL)
		if statusErr != nil {
			err = statusErr
		}
		done <- fetchResult{body: body, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		if res.err != nil {
			return nil, res.err
		}
		if len(res.body) == 0 {
			return nil, utils.ErrNoData
		}
		return res.body, nil
	}
}
