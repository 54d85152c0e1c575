package strategy

import (
	"go.uber.org/zap"

	"vasset/parsing-service/internal/config"
	"vasset/parsing-service/internal/ytdlp"
)

// NewDefaultRegistry 登记全部内置策略, 启用与否由管理器按配置决定
func NewDefaultRegistry(cfg *config.Config, signer Signer, logger *zap.Logger) *Registry {
	return NewRegistry(
		NewAPIStrategy(cfg.Strategies[config.StrategyAPI], signer, logger),
		NewBrowserStrategy(cfg.Strategies[config.StrategyBrowser], cfg.Browser, logger),
		NewMobileBrowserStrategy(cfg.Strategies[config.StrategyBrowserMobile], cfg.Browser, logger),
		NewHTMLStrategy(cfg.Strategies[config.StrategyHTML], logger),
		NewYTDLPStrategy(ytdlp.NewWrapper(cfg.YTDLP), logger),
	)
}
