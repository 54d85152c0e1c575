package strategy

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"vasset/parsing-service/internal/config"
	"vasset/parsing-service/internal/utils"
)

// 浏览器策略等待接口响应的上限
const captureWait = 5 * time.Second

// cookieDomains 注入cookie的站点
var cookieDomains = []string{".douyin.com", ".iesdouyin.com"}

// chromeLauncher 为每次尝试启动独立的浏览器实例
type chromeLauncher struct {
	execPath  string
	headful   bool
	userAgent string
}

func newChromeLauncher(cfg config.BrowserConfig, userAgent string) chromeLauncher {
	return chromeLauncher{
		execPath:  cfg.ExecPath,
		headful:   cfg.Headful,
		userAgent: userAgent,
	}
}

// launch 启动浏览器, 返回的 ctx 随父 ctx 取消而关闭浏览器
func (l chromeLauncher) launch(ctx context.Context, proxyURL string) (context.Context, context.CancelFunc, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
	)
	if l.headful {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if l.execPath != "" {
		opts = append(opts, chromedp.ExecPath(l.execPath))
	}
	if l.userAgent != "" {
		opts = append(opts, chromedp.UserAgent(l.userAgent))
	}

	var user *url.Userinfo
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil || u.Host == "" {
			return nil, nil, fmt.Errorf("invalid proxy %s", utils.MaskProxy(proxyURL))
		}
		// 凭据不能放在 --proxy-server 中, 通过 Fetch 域应答认证
		opts = append(opts, chromedp.ProxyServer(u.Scheme+"://"+u.Host))
		user = u.User
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	cancel := func() {
		cancelBrowser()
		cancelAlloc()
	}

	if user != nil {
		listenProxyAuth(browserCtx, user)
		if err := chromedp.Run(browserCtx, fetch.Enable().WithHandleAuthRequests(true)); err != nil {
			cancel()
			return nil, nil, fmt.Errorf("enable proxy auth: %w", err)
		}
	}
	return browserCtx, cancel, nil
}

// listenProxyAuth 放行被暂停的请求并提交代理凭据
func listenProxyAuth(ctx context.Context, user *url.Userinfo) {
	password, _ := user.Password()
	chromedp.ListenTarget(ctx, func(ev any) {
		switch e := ev.(type) {
		case *fetch.EventRequestPaused:
			go func() {
				_ = fetch.ContinueRequest(e.RequestID).Do(targetExecutor(ctx))
			}()
		case *fetch.EventAuthRequired:
			go func() {
				_ = fetch.ContinueWithAuth(e.RequestID, &fetch.AuthChallengeResponse{
					Response: fetch.AuthChallengeResponseResponseProvideCredentials,
					Username: user.Username(),
					Password: password,
				}).Do(targetExecutor(ctx))
			}()
		}
	})
}

// targetExecutor 在事件回调中执行CDP命令需要显式指定目标
func targetExecutor(ctx context.Context) context.Context {
	return cdp.WithExecutor(ctx, chromedp.FromContext(ctx).Target)
}

// setCookies 将请求cookie注入浏览器
func setCookies(cookies map[string]string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if len(cookies) == 0 {
			return nil
		}
		params := make([]*network.CookieParam, 0, len(cookies)*len(cookieDomains))
		for _, domain := range cookieDomains {
			for name, value := range cookies {
				params = append(params, &network.CookieParam{
					Name:   name,
					Value:  value,
					Domain: domain,
					Path:   "/",
				})
			}
		}
		return network.SetCookies(params).Do(ctx)
	})
}

// isDetailAPI 是否为详情接口的响应
func isDetailAPI(rawURL string) bool {
	return strings.Contains(rawURL, "/aweme/v1/web/aweme/detail") ||
		strings.Contains(rawURL, "/web/api/v2/aweme/iteminfo")
}
