package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// 策略名称
const (
	StrategyAPI           = "api"
	StrategyBrowser       = "browser"
	StrategyBrowserMobile = "browser_mobile"
	StrategyHTML          = "html"
	StrategyYTDLP         = "ytdlp"
)

// Config 应用配置
type Config struct {
	Server     ServerConfig              `yaml:"server"`
	GRPC       GRPCConfig                `yaml:"grpc"`
	Redis      RedisConfig               `yaml:"redis"`
	Cache      CacheConfig               `yaml:"cache"`
	RateLimit  RateLimitConfig           `yaml:"rate_limit"`
	Proxy      ProxyConfig               `yaml:"proxy"`
	Strategies map[string]StrategyConfig `yaml:"strategies"`
	Ordering   OrderingConfig            `yaml:"ordering"`
	Batch      BatchConfig               `yaml:"batch"`
	Detector   DetectorConfig            `yaml:"detector"`
	Browser    BrowserConfig             `yaml:"browser"`
	YTDLP      YTDLPConfig               `yaml:"ytdlp"`
	Cookies    CookiesConfig             `yaml:"cookies"`
	RabbitMQ   RabbitMQConfig            `yaml:"rabbitmq"`
	Logging    LoggingConfig             `yaml:"logging"`
	Metrics    MetricsConfig             `yaml:"metrics"`
}

// ServerConfig HTTP服务器配置
type ServerConfig struct {
	Port           int           `yaml:"port"`
	Mode           string        `yaml:"mode"` // debug, release
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"` // 单个解析请求总超时
	RPS            float64       `yaml:"rps"`             // 单IP每秒请求数
	Burst          int           `yaml:"burst"`
	CORS           CORSConfig    `yaml:"cors"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
	MaxAge         int      `yaml:"max_age"`
}

// GRPCConfig gRPC配置, Port 为0时不启动
type GRPCConfig struct {
	Port int `yaml:"port"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Backend       string        `yaml:"backend"` // memory, redis
	TTL           int           `yaml:"ttl"`     // 缓存TTL(秒)
	SweepInterval time.Duration `yaml:"sweep_interval"`
	KeyPrefix     string        `yaml:"key_prefix"`
}

// RateRule 单个限流规则
type RateRule struct {
	Limit  int           `yaml:"limit"`
	Window time.Duration `yaml:"window"`
}

// RateLimitConfig 策略级滑动窗口限流配置
type RateLimitConfig struct {
	Backend   string              `yaml:"backend"` // memory, redis
	Limit     int                 `yaml:"limit"`
	Window    time.Duration       `yaml:"window"`
	Overrides map[string]RateRule `yaml:"overrides"`
}

// ProxyConfig 代理池配置
type ProxyConfig struct {
	ListPath            string        `yaml:"list_path"`
	Proxies             []string      `yaml:"proxies"`
	Selection           string        `yaml:"selection"` // round_robin, random
	FailureThreshold    int           `yaml:"failure_threshold"`
	Cooldown            time.Duration `yaml:"cooldown"`
	OnUnavailable       string        `yaml:"on_unavailable"` // direct, skip
	HealthCheckInterval time.Duration `yaml:"health_check_interval"`
	HealthCheckURL      string        `yaml:"health_check_url"`
	HealthCheckTimeout  time.Duration `yaml:"health_check_timeout"`
}

// StrategyConfig 单个策略配置
type StrategyConfig struct {
	Enabled   *bool         `yaml:"enabled"`
	Priority  int           `yaml:"priority"`
	Weight    float64       `yaml:"weight"`
	Timeout   time.Duration `yaml:"timeout"`
	Endpoints []string      `yaml:"endpoints"`
	UserAgent string        `yaml:"user_agent"`
}

// IsEnabled 未配置时视为启用
func (s StrategyConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// OrderingConfig 策略排序配置
type OrderingConfig struct {
	Window       int   `yaml:"window"` // 滚动窗口内的尝试次数
	SingleFlight *bool `yaml:"single_flight"`
}

// SingleFlightEnabled 默认开启
func (o OrderingConfig) SingleFlightEnabled() bool {
	return o.SingleFlight == nil || *o.SingleFlight
}

// BatchConfig 批量解析配置
type BatchConfig struct {
	MaxURLs       int `yaml:"max_urls"`
	MaxConcurrent int `yaml:"max_concurrent"`
}

// DetectorConfig 链接识别配置
type DetectorConfig struct {
	ResolveTimeout time.Duration `yaml:"resolve_timeout"`
	UserAgent      string        `yaml:"user_agent"`
}

// BrowserConfig 无头浏览器配置
type BrowserConfig struct {
	ExecPath     string `yaml:"exec_path"`
	Headful      bool   `yaml:"headful"`
	UserAgent    string `yaml:"user_agent"`
	MobileDevice string `yaml:"mobile_device"`
}

// YTDLPConfig yt-dlp配置
type YTDLPConfig struct {
	BinaryPath  string   `yaml:"binary_path"`
	DefaultArgs []string `yaml:"default_args"` // 默认参数
	CookieFile  string   `yaml:"cookie_file"`
}

// CookiesConfig Netscape cookie 文件
type CookiesConfig struct {
	File   string `yaml:"file"`
	Domain string `yaml:"domain"` // 只加载该域名下的cookie, 为空时全部加载
}

// RabbitMQConfig RabbitMQ 配置
type RabbitMQConfig struct {
	Enabled    bool   `yaml:"enabled"`
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	Queue      string `yaml:"queue"`
	RoutingKey string `yaml:"routing_key"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, console
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Path string `yaml:"path"`
}

// defaultStrategies 默认策略表
var defaultStrategies = map[string]StrategyConfig{
	StrategyAPI:           {Priority: 1, Timeout: 10 * time.Second},
	StrategyBrowser:       {Priority: 2, Timeout: 30 * time.Second},
	StrategyBrowserMobile: {Priority: 3, Timeout: 30 * time.Second},
	StrategyHTML:          {Priority: 4, Timeout: 15 * time.Second},
	StrategyYTDLP:         {Priority: 5, Timeout: 30 * time.Second, Enabled: boolPtr(false)},
}

// LoadConfig 加载配置文件
//
// CONFIG_PATH 会覆盖 configPath. 未显式指定路径且文件不存在时, 只使用默认值和环境变量.
func LoadConfig(configPath string) (*Config, error) {
	explicit := false
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
		explicit = true
	}

	var cfg Config
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		case errors.Is(err, os.ErrNotExist) && !explicit:
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// 从环境变量覆盖配置
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	// 设置默认值
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default 返回只含默认值的配置
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("GRPC_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid GRPC_PORT: %w", err)
		}
		c.GRPC.Port = port
	}

	// Redis 配置
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		c.Redis.Addr = redisAddr
	}
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		c.Redis.Password = redisPassword
	}

	// 缓存
	if v := os.Getenv("CACHE_TTL"); v != "" {
		ttl, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid CACHE_TTL: %w", err)
		}
		c.Cache.TTL = ttl
	}
	if v := os.Getenv("CACHE_BACKEND"); v != "" {
		c.Cache.Backend = v
	}

	if v := os.Getenv("MAX_CONCURRENT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid MAX_CONCURRENT: %w", err)
		}
		c.Batch.MaxConcurrent = n
	}
	if v := os.Getenv("PROXY_LIST_PATH"); v != "" {
		c.Proxy.ListPath = v
	}

	// 策略开关
	toggles := map[string]string{
		"ENABLE_API":            StrategyAPI,
		"ENABLE_BROWSER":        StrategyBrowser,
		"ENABLE_BROWSER_MOBILE": StrategyBrowserMobile,
		"ENABLE_HTML":           StrategyHTML,
		"ENABLE_YTDLP":          StrategyYTDLP,
	}
	for env, name := range toggles {
		v := os.Getenv(env)
		if v == "" {
			continue
		}
		enabled, err := strconv.ParseBool(strings.ToLower(v))
		if err != nil {
			return fmt.Errorf("invalid %s: %w", env, err)
		}
		if c.Strategies == nil {
			c.Strategies = make(map[string]StrategyConfig)
		}
		sc := c.Strategies[name]
		sc.Enabled = boolPtr(enabled)
		c.Strategies[name] = sc
	}

	// RabbitMQ
	if rabbitmqURL := os.Getenv("RABBITMQ_URL"); rabbitmqURL != "" {
		c.RabbitMQ.URL = rabbitmqURL
		c.RabbitMQ.Enabled = true
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 5000
	}
	if c.Server.Mode == "" {
		c.Server.Mode = "release"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 120 * time.Second
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = 90 * time.Second
	}
	if c.Server.RPS == 0 {
		c.Server.RPS = 20
	}
	if c.Server.Burst == 0 {
		c.Server.Burst = 40
	}

	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 10
	}

	if c.Cache.Backend == "" {
		c.Cache.Backend = "memory"
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 3600
	}
	if c.Cache.SweepInterval == 0 {
		c.Cache.SweepInterval = time.Minute
	}
	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = "parser:video:"
	}

	if c.RateLimit.Backend == "" {
		c.RateLimit.Backend = "memory"
	}
	if c.RateLimit.Limit == 0 {
		c.RateLimit.Limit = 30
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = time.Minute
	}

	if c.Proxy.Selection == "" {
		c.Proxy.Selection = "round_robin"
	}
	if c.Proxy.FailureThreshold == 0 {
		c.Proxy.FailureThreshold = 3
	}
	if c.Proxy.Cooldown == 0 {
		c.Proxy.Cooldown = 5 * time.Minute
	}
	if c.Proxy.OnUnavailable == "" {
		c.Proxy.OnUnavailable = "direct"
	}
	if c.Proxy.HealthCheckURL == "" {
		c.Proxy.HealthCheckURL = "https://www.douyin.com"
	}
	if c.Proxy.HealthCheckTimeout == 0 {
		c.Proxy.HealthCheckTimeout = 10 * time.Second
	}

	if c.Strategies == nil {
		c.Strategies = make(map[string]StrategyConfig)
	}
	for name, def := range defaultStrategies {
		sc, ok := c.Strategies[name]
		if !ok {
			c.Strategies[name] = def
			continue
		}
		if sc.Priority == 0 {
			sc.Priority = def.Priority
		}
		if sc.Timeout == 0 {
			sc.Timeout = def.Timeout
		}
		if sc.Enabled == nil {
			sc.Enabled = def.Enabled
		}
		c.Strategies[name] = sc
	}

	if c.Ordering.Window == 0 {
		c.Ordering.Window = 20
	}
	if c.Batch.MaxURLs == 0 {
		c.Batch.MaxURLs = 10
	}
	if c.Batch.MaxConcurrent == 0 {
		c.Batch.MaxConcurrent = 5
	}

	if c.Detector.ResolveTimeout == 0 {
		c.Detector.ResolveTimeout = 10 * time.Second
	}

	if c.Browser.MobileDevice == "" {
		c.Browser.MobileDevice = "iPhone X"
	}

	if c.YTDLP.BinaryPath == "" {
		c.YTDLP.BinaryPath = "yt-dlp"
	}

	if c.RabbitMQ.Exchange == "" {
		c.RabbitMQ.Exchange = "vasset.parser"
	}
	if c.RabbitMQ.Queue == "" {
		c.RabbitMQ.Queue = "parser.parsed"
	}
	if c.RabbitMQ.RoutingKey == "" {
		c.RabbitMQ.RoutingKey = "video.parsed"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be positive, got %d", c.Server.Port)
	}
	if c.GRPC.Port < 0 {
		return fmt.Errorf("grpc.port must not be negative, got %d", c.GRPC.Port)
	}
	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown cache.backend %q", c.Cache.Backend)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative, got %d", c.Cache.TTL)
	}
	switch c.RateLimit.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown rate_limit.backend %q", c.RateLimit.Backend)
	}
	if c.RateLimit.Limit <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate_limit.limit and rate_limit.window must be positive")
	}
	for key, rule := range c.RateLimit.Overrides {
		if rule.Limit <= 0 || rule.Window <= 0 {
			return fmt.Errorf("rate_limit.overrides[%s] must have positive limit and window", key)
		}
	}
	switch c.Proxy.Selection {
	case "round_robin", "random":
	default:
		return fmt.Errorf("unknown proxy.selection %q", c.Proxy.Selection)
	}
	switch c.Proxy.OnUnavailable {
	case "direct", "skip":
	default:
		return fmt.Errorf("unknown proxy.on_unavailable %q", c.Proxy.OnUnavailable)
	}
	if c.Proxy.FailureThreshold <= 0 {
		return fmt.Errorf("proxy.failure_threshold must be positive")
	}
	for name, sc := range c.Strategies {
		if sc.Priority <= 0 {
			return fmt.Errorf("strategies.%s.priority must be positive", name)
		}
		if sc.Timeout <= 0 {
			return fmt.Errorf("strategies.%s.timeout must be positive", name)
		}
		if sc.Weight < 0 {
			return fmt.Errorf("strategies.%s.weight must not be negative", name)
		}
	}
	if c.Ordering.Window <= 0 {
		return fmt.Errorf("ordering.window must be positive")
	}
	if c.Batch.MaxURLs <= 0 || c.Batch.MaxConcurrent <= 0 {
		return fmt.Errorf("batch.max_urls and batch.max_concurrent must be positive")
	}
	return nil
}

// GetCacheTTL 获取缓存TTL时间
func (c *CacheConfig) GetCacheTTL() time.Duration {
	return time.Duration(c.TTL) * time.Second
}

func boolPtr(b bool) *bool {
	return &b
}
