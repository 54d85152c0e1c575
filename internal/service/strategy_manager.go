package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"vasset/parsing-service/internal/cache"
	"vasset/parsing-service/internal/config"
	"vasset/parsing-service/internal/cookies"
	"vasset/parsing-service/internal/detector"
	"vasset/parsing-service/internal/events"
	"vasset/parsing-service/internal/metrics"
	"vasset/parsing-service/internal/models"
	"vasset/parsing-service/internal/proxy"
	"vasset/parsing-service/internal/ratelimit"
	"vasset/parsing-service/internal/strategy"
	"vasset/parsing-service/internal/utils"
)

const (
	defaultAttemptTimeout = 30 * time.Second
	publishTimeout        = 5 * time.Second

	// ProxyDirect 无可用代理时直连
	ProxyDirect = "direct"
	// ProxySkip 无可用代理时跳过该策略
	ProxySkip = "skip"
)

// request 结果
const (
	resultSuccess  = "success"
	resultCacheHit = "cache_hit"
	resultFailure  = "failure"
	resultInvalid  = "invalid"
)

// IDExtractor 从分享链接推导视频ID
type IDExtractor interface {
	Extract(ctx context.Context, rawURL string) (id, canonical string, err error)
}

// ProxyPool 出口代理池
type ProxyPool interface {
	Acquire() (*proxy.Entry, error)
	Release(entry *proxy.Entry, success bool)
	Len() int
	Stats() models.ProxyStats
}

// Dependencies StrategyManager 依赖的组件
type Dependencies struct {
	Strategies     *strategy.Registry
	Extractor      IDExtractor
	Detector       *detector.PlatformDetector
	Cache          *cache.ResultCache
	Limiter        ratelimit.Limiter
	Proxies        ProxyPool // 可为 nil
	Metrics        *metrics.Registry
	Events         events.Publisher // 可为 nil
	DefaultCookies map[string]string
	Logger         *zap.Logger
}

// StrategyManager 按顺序调度策略, 负责缓存, 限流, 代理和统计
type StrategyManager struct {
	strategies     *strategy.Registry
	extractor      IDExtractor
	detector       *detector.PlatformDetector
	cache          *cache.ResultCache
	limiter        ratelimit.Limiter
	proxies        ProxyPool
	metrics        *metrics.Registry
	events         events.Publisher
	defaultCookies map[string]string
	logger         *zap.Logger

	onUnavailable string
	singleFlight  bool
	group         singleflight.Group
	batchLimiter  *utils.ConcurrencyLimiter

	mu      sync.RWMutex
	records map[string]*strategyRecord

	started   time.Time
	total     atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	cacheHits atomic.Int64
}

// NewStrategyManager 创建策略管理器, 为每个已登记的策略建立记录
func NewStrategyManager(cfg *config.Config, deps Dependencies) *StrategyManager {
	publisher := deps.Events
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	det := deps.Detector
	if det == nil {
		det = detector.NewPlatformDetector()
	}
	onUnavailable := cfg.Proxy.OnUnavailable
	if onUnavailable == "" {
		onUnavailable = ProxyDirect
	}

	m := &StrategyManager{
		strategies:     deps.Strategies,
		extractor:      deps.Extractor,
		detector:       det,
		cache:          deps.Cache,
		limiter:        deps.Limiter,
		proxies:        deps.Proxies,
		metrics:        deps.Metrics,
		events:         publisher,
		defaultCookies: deps.DefaultCookies,
		logger:         deps.Logger.Named("manager"),
		onUnavailable:  onUnavailable,
		singleFlight:   cfg.Ordering.SingleFlightEnabled(),
		batchLimiter:   utils.NewConcurrencyLimiter(cfg.Batch.MaxConcurrent),
		records:        make(map[string]*strategyRecord),
		started:        time.Now(),
	}

	names := deps.Strategies.Names()
	for i, name := range names {
		sc, ok := cfg.Strategies[name]
		priority := sc.Priority
		if !ok || priority <= 0 {
			priority = len(names) + i + 1
		}
		timeout := sc.Timeout
		if timeout <= 0 {
			timeout = defaultAttemptTimeout
		}
		m.records[name] = newStrategyRecord(name, priority, sc.Weight, timeout, sc.IsEnabled(), cfg.Ordering.Window)
	}

	return m
}

// attemptPlan 一次请求中某个策略的调度参数
type attemptPlan struct {
	name    string
	timeout time.Duration
}

// Order 当前的尝试顺序
func (m *StrategyManager) Order() []string {
	plans := m.plan()
	names := make([]string, 0, len(plans))
	for _, p := range plans {
		names = append(names, p.name)
	}
	return names
}

func (m *StrategyManager) plan() []attemptPlan {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ranked := rankRecords(m.records)
	plans := make([]attemptPlan, 0, len(ranked))
	for _, r := range ranked {
		plans = append(plans, attemptPlan{name: r.name, timeout: r.timeout})
	}
	return plans
}

// Parse 解析单个链接
func (m *StrategyManager) Parse(ctx context.Context, req models.ParseRequest) (*models.VideoMetadata, error) {
	m.total.Add(1)

	id, canonical, err := m.extractor.Extract(ctx, req.URL)
	if err != nil {
		m.failed.Add(1)
		m.metrics.RecordRequest(resultInvalid)
		return nil, err
	}

	if !req.ForceRefresh {
		cached, ok := m.cache.Get(ctx, id)
		m.metrics.RecordCache(ok)
		if ok {
			m.cacheHits.Add(1)
			m.succeeded.Add(1)
			m.metrics.RecordRequest(resultCacheHit)
			m.logger.Debug("Cache hit", zap.String("video_id", id))
			return cached, nil
		}
	}

	meta, err := m.resolveShared(ctx, id, canonical, req)
	if err != nil {
		m.failed.Add(1)
		m.metrics.RecordRequest(resultFailure)
		return nil, err
	}

	m.succeeded.Add(1)
	m.metrics.RecordRequest(resultSuccess)
	return meta, nil
}

// resolveShared 合并相同ID的并发请求
func (m *StrategyManager) resolveShared(ctx context.Context, id, canonical string, req models.ParseRequest) (*models.VideoMetadata, error) {
	if !m.singleFlight {
		return m.resolve(ctx, id, canonical, req)
	}

	key := id
	if req.UseProxy {
		key += "|proxy"
	}
	// 领头请求被取消时不影响其他等待者, 单次尝试仍受各自超时约束
	ch := m.group.DoChan(key, func() (any, error) {
		return m.resolve(context.WithoutCancel(ctx), id, canonical, req)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		meta := res.Val.(*models.VideoMetadata)
		return meta.Clone(), nil
	}
}

// resolve 依次尝试策略直到成功
func (m *StrategyManager) resolve(ctx context.Context, id, canonical string, req models.ParseRequest) (*models.VideoMetadata, error) {
	plans := m.plan()
	attempts := make([]utils.AttemptError, 0, len(plans))
	reqCookies := cookies.Merge(m.defaultCookies, req.Cookies)

	for _, p := range plans {
		if err := ctx.Err(); err != nil {
			attempts = append(attempts, utils.AttemptError{Strategy: p.name, Err: err, Skipped: true})
			break
		}

		s, ok := m.strategies.Get(p.name)
		if !ok {
			continue
		}

		if !m.limiter.Admit(ctx, rateKey(p.name)) {
			m.metrics.RecordRateLimited(p.name)
			m.logger.Info("Strategy rate limited, skipping",
				zap.String("strategy", p.name),
				zap.String("video_id", id),
			)
			attempts = append(attempts, utils.AttemptError{Strategy: p.name, Err: utils.ErrRateLimited, RateLimited: true})
			continue
		}

		in := strategy.Input{URL: canonical, VideoID: id, Cookies: reqCookies}
		entry, skip := m.acquireProxy(req.UseProxy)
		if skip {
			attempts = append(attempts, utils.AttemptError{Strategy: p.name, Err: utils.ErrProxyUnavailable, Skipped: true})
			continue
		}
		if entry != nil {
			in.ProxyURL = entry.URL()
		}

		meta, err := m.attempt(ctx, s, p.timeout, in)
		interrupted := err != nil && ctx.Err() != nil

		if entry != nil {
			m.proxies.Release(entry, err == nil || interrupted || !utils.IsNetworkError(err))
		}

		if interrupted {
			// 请求本身已取消或超时, 不计入策略失败
			attempts = append(attempts, utils.AttemptError{Strategy: p.name, Err: err, Skipped: true})
			m.logger.Info("Request ended during strategy attempt",
				zap.String("strategy", p.name),
				zap.String("video_id", id),
				zap.Error(ctx.Err()),
			)
			break
		}

		if err != nil {
			attempts = append(attempts, utils.AttemptError{Strategy: p.name, Err: err})
			fields := []zap.Field{
				zap.String("strategy", p.name),
				zap.String("video_id", id),
				zap.Error(err),
			}
			if entry != nil {
				fields = append(fields, zap.String("proxy", entry.Masked()))
			}
			m.logger.Warn("Strategy attempt failed", fields...)
			continue
		}

		meta.Strategy = p.name
		m.cache.Put(ctx, id, meta, 0)
		m.publish(meta, req.URL)

		m.logger.Info("Video parsed",
			zap.String("video_id", id),
			zap.String("strategy", p.name),
			zap.Int("attempts", len(attempts)+1),
		)
		return meta, nil
	}

	return nil, &utils.ResolutionExhaustedError{VideoID: id, Attempts: attempts}
}

// acquireProxy 未请求代理时返回 nil; 请求了代理但没有可用代理时按 on_unavailable 处理,
// skip 为 true 表示跳过当前策略
func (m *StrategyManager) acquireProxy(useProxy bool) (entry *proxy.Entry, skip bool) {
	if !useProxy {
		return nil, false
	}

	err := utils.ErrProxyUnavailable
	if m.proxies != nil && m.proxies.Len() > 0 {
		entry, err = m.proxies.Acquire()
	}
	m.metrics.RecordProxyAcquire(err == nil)
	if err == nil {
		return entry, false
	}

	if m.onUnavailable == ProxySkip {
		return nil, true
	}
	m.logger.Debug("No healthy proxy, attempting direct")
	return nil, false
}

// attempt 在单次超时内执行策略并记录结果
func (m *StrategyManager) attempt(ctx context.Context, s strategy.Strategy, timeout time.Duration, in strategy.Input) (*models.VideoMetadata, error) {
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	meta, err := m.runWithDeadline(actx, s, in)
	latency := time.Since(start)

	if err == nil {
		if meta.VideoID == "" {
			meta.VideoID = in.VideoID
		}
		if !meta.Validate() {
			err = utils.ErrIncompleteResult
		}
	}

	if err != nil && ctx.Err() != nil {
		// 上层请求结束, 不是策略本身的失败
		m.metrics.RecordAttempt(s.Name(), metrics.OutcomeCanceled, latency)
		return nil, fmt.Errorf("attempt interrupted: %w", ctx.Err())
	}

	outcome := metrics.OutcomeSuccess
	switch {
	case err != nil && errors.Is(actx.Err(), context.DeadlineExceeded):
		outcome = metrics.OutcomeTimeout
		err = fmt.Errorf("%w after %s: %w", utils.ErrAttemptTimeout, timeout, err)
	case err != nil:
		outcome = metrics.OutcomeFailure
	}

	m.record(s.Name(), err == nil)
	m.metrics.RecordAttempt(s.Name(), outcome, latency)

	if err != nil {
		return nil, err
	}
	return meta, nil
}

type attemptResult struct {
	meta *models.VideoMetadata
	err  error
}

// runWithDeadline 在独立 goroutine 中执行策略, ctx 结束后不再等待未响应取消的策略
func (m *StrategyManager) runWithDeadline(ctx context.Context, s strategy.Strategy, in strategy.Input) (*models.VideoMetadata, error) {
	done := make(chan attemptResult, 1)
	go func() {
		meta, err := runStrategy(ctx, s, in)
		done <- attemptResult{meta: meta, err: err}
	}()

	select {
	case r := <-done:
		return r.meta, r.err
	case <-ctx.Done():
		select {
		case r := <-done:
			return r.meta, r.err
		default:
			m.logger.Debug("Strategy still running after deadline, abandoning", zap.String("strategy", s.Name()))
			return nil, ctx.Err()
		}
	}
}

// runStrategy 策略内部的 panic 按失败处理
func runStrategy(ctx context.Context, s strategy.Strategy, in strategy.Input) (meta *models.VideoMetadata, err error) {
	defer func() {
		if r := recover(); r != nil {
			meta = nil
			err = fmt.Errorf("strategy panic: %v", r)
		}
	}()

	meta, err = s.Attempt(ctx, in)
	if err == nil && meta == nil {
		err = utils.ErrNoData
	}
	return meta, err
}

func (m *StrategyManager) record(name string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, found := m.records[name]; found {
		r.observe(ok)
	}
}

// publish 异步发布解析事件, 失败只记录日志
func (m *StrategyManager) publish(meta *models.VideoMetadata, sourceURL string) {
	snapshot := meta.Clone()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := m.events.PublishParsed(ctx, snapshot, sourceURL); err != nil {
			m.logger.Warn("Failed to publish parsed event",
				zap.String("video_id", snapshot.VideoID),
				zap.Error(err),
			)
		}
	}()
}

// BatchParse 并发解析多个链接, 结果与输入顺序一致, 单项失败互不影响
func (m *StrategyManager) BatchParse(ctx context.Context, reqs []models.ParseRequest) []models.BatchResult {
	results := make([]models.BatchResult, len(reqs))
	var wg sync.WaitGroup

	for i, req := range reqs {
		results[i].URL = req.URL
		wg.Add(1)
		go func(i int, req models.ParseRequest) {
			defer wg.Done()

			if err := m.batchLimiter.AcquireContext(ctx); err != nil {
				results[i].Error = err.Error()
				results[i].ErrorCode = ErrorCode(err)
				return
			}
			defer m.batchLimiter.Release()

			meta, err := m.Parse(ctx, req)
			if err != nil {
				results[i].Error = err.Error()
				results[i].ErrorCode = ErrorCode(err)
				return
			}
			results[i].Success = true
			results[i].Data = meta
		}(i, req)
	}

	wg.Wait()
	return results
}

// Stats 策略记录, 缓存, 代理池和请求统计的快照
func (m *StrategyManager) Stats(ctx context.Context) models.StatsSnapshot {
	snap := models.StatsSnapshot{
		Strategies: make(map[string]models.StrategyStat),
		Order:      m.Order(),
		Cache:      m.cache.Stats(ctx),
	}

	m.mu.RLock()
	for name, r := range m.records {
		snap.Strategies[name] = r.stat()
	}
	m.mu.RUnlock()

	if m.proxies != nil && m.proxies.Len() > 0 {
		ps := m.proxies.Stats()
		snap.Proxy = &ps
	}

	total := m.total.Load()
	succeeded := m.succeeded.Load()
	snap.Requests = models.RequestStats{
		Total:         total,
		Succeeded:     succeeded,
		Failed:        m.failed.Load(),
		CacheHits:     m.cacheHits.Load(),
		UptimeSeconds: int64(time.Since(m.started).Seconds()),
	}
	if total > 0 {
		snap.Requests.SuccessRate = float64(succeeded) / float64(total)
	}

	if ms, err := m.metrics.Snapshot(); err == nil {
		snap.Metrics = ms
	} else {
		m.logger.Warn("Failed to gather metrics", zap.Error(err))
	}
	return snap
}

// SetStrategyEnabled 运行时启用或禁用策略
func (m *StrategyManager) SetStrategyEnabled(name string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[name]
	if !ok {
		return fmt.Errorf("%w: %s", utils.ErrStrategyNotFound, name)
	}
	r.enabled = enabled
	m.logger.Info("Strategy toggled", zap.String("strategy", name), zap.Bool("enabled", enabled))
	return nil
}

// ClearCache 清空结果缓存
func (m *StrategyManager) ClearCache(ctx context.Context) error {
	return m.cache.Clear(ctx)
}

// ValidateURL 只检查链接能否推导出视频ID, 不调用策略
func (m *StrategyManager) ValidateURL(ctx context.Context, rawURL string) models.ValidateResult {
	id, canonical, err := m.extractor.Extract(ctx, rawURL)
	if err != nil {
		platform, _ := m.detector.Detect(utils.NormalizeURL(rawURL))
		return models.ValidateResult{Valid: false, Platform: platform, Message: err.Error()}
	}

	platform, err := m.detector.Detect(rawURL)
	if err != nil || platform == detector.PlatformGeneric {
		platform, _ = m.detector.Detect(canonical)
	}
	return models.ValidateResult{Valid: true, Platform: platform, VideoID: id}
}

func rateKey(name string) string {
	return "strategy:" + name
}
