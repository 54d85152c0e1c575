package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"vasset/parsing-service/internal/cache"
	"vasset/parsing-service/internal/config"
	"vasset/parsing-service/internal/cookies"
	"vasset/parsing-service/internal/detector"
	"vasset/parsing-service/internal/events"
	"vasset/parsing-service/internal/handler"
	"vasset/parsing-service/internal/logging"
	"vasset/parsing-service/internal/metrics"
	"vasset/parsing-service/internal/proxy"
	"vasset/parsing-service/internal/ratelimit"
	"vasset/parsing-service/internal/router"
	"vasset/parsing-service/internal/service"
	"vasset/parsing-service/internal/strategy"
)

func main() {
	configPath := flag.String("config", "config/dev.yaml", "path to config file")
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. 初始化日志
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting Parsing Service",
		zap.Int("http_port", cfg.Server.Port),
		zap.Int("grpc_port", cfg.GRPC.Port))

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// 3. 连接 Redis, 只有缓存或限流使用 redis 时才需要
	var redisClient *redis.Client
	if cfg.Cache.Backend == "redis" || cfg.RateLimit.Backend == "redis" {
		redisClient = initRedis(&cfg.Redis)
		defer redisClient.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			logger.Warn("Failed to connect to Redis", zap.Error(err))
		} else {
			logger.Info("✓ Connected to Redis", zap.String("addr", cfg.Redis.Addr))
		}
		cancel()
	}

	// 4. 结果缓存
	var store cache.Store
	if cfg.Cache.Backend == "redis" {
		store = cache.NewRedisStore(redisClient, cfg.Cache.KeyPrefix)
	} else {
		mem := cache.NewMemoryStore()
		go mem.RunSweeper(ctx, cfg.Cache.SweepInterval)
		store = mem
	}
	resultCache := cache.NewResultCache(store, cfg.Cache.Backend, cfg.Cache.GetCacheTTL(), logger)

	// 5. 限流器
	limiter := initLimiter(cfg, redisClient, logger)

	// 6. 代理池
	pool, err := initProxyPool(cfg.Proxy, logger)
	if err != nil {
		logger.Fatal("Failed to load proxies", zap.Error(err))
	}
	var proxies service.ProxyPool
	if pool.Len() > 0 {
		proxies = pool
		if cfg.Proxy.HealthCheckInterval > 0 {
			checker := proxy.NewHealthChecker(pool, cfg.Proxy.HealthCheckURL, cfg.Proxy.HealthCheckTimeout, logger)
			go checker.Run(ctx, cfg.Proxy.HealthCheckInterval)
		}
		logger.Info("✓ Proxy pool loaded", zap.Int("proxies", pool.Len()))
	}

	// 7. 默认 cookie
	var defaultCookies map[string]string
	if cfg.Cookies.File != "" {
		list, err := cookies.LoadFile(cfg.Cookies.File)
		if err != nil {
			logger.Warn("Failed to load cookie file", zap.String("file", cfg.Cookies.File), zap.Error(err))
		} else {
			defaultCookies = cookies.ToMap(list, cfg.Cookies.Domain, time.Now())
			logger.Info("✓ Cookies loaded", zap.Int("count", len(defaultCookies)))
		}
	}

	// 8. 解析事件
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.RabbitMQ.Enabled {
		rp, err := events.NewRabbitPublisher(cfg.RabbitMQ, logger)
		if err != nil {
			logger.Warn("Failed to connect to RabbitMQ, events disabled", zap.Error(err))
		} else {
			publisher = rp
			logger.Info("✓ Connected to RabbitMQ", zap.String("exchange", cfg.RabbitMQ.Exchange))
		}
	}
	defer publisher.Close()

	// 9. 策略与调度
	metricsRegistry := metrics.NewRegistry()
	resolver := detector.NewHTTPResolver(cfg.Detector.ResolveTimeout, cfg.Detector.UserAgent)

	manager := service.NewStrategyManager(cfg, service.Dependencies{
		Strategies:     strategy.NewDefaultRegistry(cfg, strategy.NoopSigner{}, logger),
		Extractor:      detector.NewIDExtractor(resolver, logger),
		Detector:       detector.NewPlatformDetector(),
		Cache:          resultCache,
		Limiter:        limiter,
		Proxies:        proxies,
		Metrics:        metricsRegistry,
		Events:         publisher,
		DefaultCookies: defaultCookies,
		Logger:         logger,
	})
	logger.Info("Strategy order", zap.Strings("order", manager.Order()))

	// 10. HTTP 服务
	engine := router.SetupRouter(&router.Dependencies{
		Config:         cfg,
		Parser:         manager,
		MetricsHandler: metricsRegistry.Handler(),
		RedisClient:    redisClient,
		Logger:         logger,
	})
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Info("✓ HTTP server listening", zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to serve HTTP", zap.Error(err))
		}
	}()

	// 11. gRPC 服务
	var grpcServer *grpc.Server
	if cfg.GRPC.Port > 0 {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPC.Port))
		if err != nil {
			logger.Fatal("Failed to listen", zap.Error(err))
		}

		grpcServer = grpc.NewServer()
		handler.RegisterParserServiceServer(grpcServer, handler.NewGRPCServer(manager, cfg.Server.RequestTimeout, logger))

		go func() {
			logger.Info("✓ gRPC server listening", zap.Int("port", cfg.GRPC.Port))
			if err := grpcServer.Serve(lis); err != nil {
				logger.Fatal("Failed to serve gRPC", zap.Error(err))
			}
		}()
	}

	// 12. 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server forced to shutdown", zap.Error(err))
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	logger.Info("Server stopped")
}

// initRedis 初始化 Redis 连接
func initRedis(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// initLimiter 按配置选择限流后端
func initLimiter(cfg *config.Config, redisClient *redis.Client, logger *zap.Logger) ratelimit.Limiter {
	rule := ratelimit.Rule{Limit: cfg.RateLimit.Limit, Window: cfg.RateLimit.Window}
	overrides := make(map[string]ratelimit.Rule, len(cfg.RateLimit.Overrides))
	for key, r := range cfg.RateLimit.Overrides {
		overrides[key] = ratelimit.Rule{Limit: r.Limit, Window: r.Window}
	}

	if cfg.RateLimit.Backend == "redis" {
		return ratelimit.NewRedisSlidingWindow(redisClient, rule, overrides, logger)
	}
	return ratelimit.NewSlidingWindow(rule, overrides)
}

// initProxyPool 合并文件与内联配置中的代理
func initProxyPool(cfg config.ProxyConfig, logger *zap.Logger) (*proxy.Pool, error) {
	var entries []proxy.Entry
	if cfg.ListPath != "" {
		list, err := proxy.LoadFile(cfg.ListPath)
		if err != nil {
			return nil, err
		}
		entries = append(entries, list...)
	}
	for _, raw := range cfg.Proxies {
		e, err := proxy.ParseEntry(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy entry: %w", err)
		}
		entries = append(entries, e)
	}

	return proxy.NewPool(entries, proxy.Options{
		Selection:        cfg.Selection,
		FailureThreshold: cfg.FailureThreshold,
		Cooldown:         cfg.Cooldown,
	}, logger), nil
}
