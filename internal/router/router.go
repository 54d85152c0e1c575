package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"vasset/parsing-service/internal/config"
	"vasset/parsing-service/internal/handler"
	"vasset/parsing-service/internal/middleware"
)

// Dependencies 路由依赖
type Dependencies struct {
	Config         *config.Config
	Parser         handler.Parser
	MetricsHandler http.Handler
	RedisClient    *redis.Client // 可为 nil
	Logger         *zap.Logger
}

// SetupRouter 设置路由
func SetupRouter(deps *Dependencies) *gin.Engine {
	if deps.Config.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// 全局中间件
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.CORS(deps.Config.Server.CORS))

	ipLimiter := middleware.NewIPRateLimiter(deps.Config.Server.RPS, deps.Config.Server.Burst)

	parseHandler := handler.NewParseHandler(deps.Parser, deps.Config.Server, deps.Config.Batch, deps.Logger)
	healthHandler := handler.NewHealthHandler(deps.RedisClient, deps.Logger)

	// 健康检查
	r.GET("/health", healthHandler.HealthCheck)
	r.GET("/ready", healthHandler.Ready)
	r.GET("/live", healthHandler.Live)

	metricsPath := deps.Config.Metrics.Path
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	if deps.MetricsHandler != nil {
		r.GET(metricsPath, gin.WrapH(deps.MetricsHandler))
	}
	r.GET("/stats", parseHandler.Stats)

	// 解析接口, 按IP限流
	api := r.Group("/")
	api.Use(middleware.IPRateLimit(ipLimiter))
	{
		api.POST("/parse", parseHandler.Parse)
		api.POST("/batch_parse", parseHandler.BatchParse)
		api.POST("/validate", parseHandler.Validate)
	}

	// 管理接口
	admin := r.Group("/")
	{
		admin.POST("/clear_cache", parseHandler.ClearCache)
		admin.POST("/strategies/:name/enable", parseHandler.EnableStrategy)
		admin.POST("/strategies/:name/disable", parseHandler.DisableStrategy)
	}

	return r
}
