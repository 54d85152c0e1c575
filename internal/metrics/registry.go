package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// 尝试结果
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeTimeout  = "timeout"
	OutcomeCanceled = "canceled"
)

const namespace = "parser"

// Registry Prometheus 指标集合, 只写不读
type Registry struct {
	registry *prometheus.Registry

	attemptsTotal   *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
	cacheRequests   *prometheus.CounterVec
	requestsTotal   *prometheus.CounterVec
	rateLimited     *prometheus.CounterVec
	proxyAcquire    *prometheus.CounterVec
}

// NewRegistry 创建指标集合, 使用独立的 prometheus.Registry
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Registry{
		registry: reg,
		attemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "strategy_attempts_total",
				Help:      "Total number of strategy attempts by outcome",
			},
			[]string{"strategy", "outcome"},
		),
		attemptDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "strategy_attempt_duration_seconds",
				Help:      "Strategy attempt latency",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
			},
			[]string{"strategy"},
		),
		cacheRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_requests_total",
				Help:      "Result cache lookups by result",
			},
			[]string{"result"},
		),
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Parse requests by result",
			},
			[]string{"result"},
		),
		rateLimited: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limited_total",
				Help:      "Strategy attempts skipped by the rate limiter",
			},
			[]string{"strategy"},
		),
		proxyAcquire: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "proxy_acquire_total",
				Help:      "Proxy acquisitions by result",
			},
			[]string{"result"},
		),
	}
}

// RecordAttempt 记录一次策略尝试
func (r *Registry) RecordAttempt(strategy, outcome string, latency time.Duration) {
	r.attemptsTotal.WithLabelValues(strategy, outcome).Inc()
	r.attemptDuration.WithLabelValues(strategy).Observe(latency.Seconds())
}

// RecordCache 记录一次缓存查询
func (r *Registry) RecordCache(hit bool) {
	if hit {
		r.cacheRequests.WithLabelValues("hit").Inc()
		return
	}
	r.cacheRequests.WithLabelValues("miss").Inc()
}

// RecordRequest 记录一次解析请求结果: success, failure, invalid, cached
func (r *Registry) RecordRequest(result string) {
	r.requestsTotal.WithLabelValues(result).Inc()
}

// RecordRateLimited 记录一次限流跳过
func (r *Registry) RecordRateLimited(strategy string) {
	r.rateLimited.WithLabelValues(strategy).Inc()
}

// RecordProxyAcquire 记录一次代理获取
func (r *Registry) RecordProxyAcquire(ok bool) {
	if ok {
		r.proxyAcquire.WithLabelValues("ok").Inc()
		return
	}
	r.proxyAcquire.WithLabelValues("unavailable").Inc()
}

// Handler /metrics 处理器
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Gatherer 底层 prometheus 注册表
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// AttemptStats 单个策略的尝试指标
type AttemptStats struct {
	Outcomes     map[string]float64 `json:"outcomes"`
	LatencyCount uint64             `json:"latency_count"`
	LatencySum   float64            `json:"latency_sum_seconds"`
}

// Snapshot 可序列化的指标快照
type Snapshot struct {
	Strategies   map[string]*AttemptStats `json:"strategies"`
	Cache        map[string]float64       `json:"cache"`
	Requests     map[string]float64       `json:"requests"`
	RateLimited  map[string]float64       `json:"rate_limited"`
	ProxyAcquire map[string]float64       `json:"proxy_acquire"`
}

// Snapshot 汇总本服务的指标
func (r *Registry) Snapshot() (*Snapshot, error) {
	families, err := r.registry.Gather()
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Strategies:   make(map[string]*AttemptStats),
		Cache:        make(map[string]float64),
		Requests:     make(map[string]float64),
		RateLimited:  make(map[string]float64),
		ProxyAcquire: make(map[string]float64),
	}
	strategy := func(name string) *AttemptStats {
		s, ok := snap.Strategies[name]
		if !ok {
			s = &AttemptStats{Outcomes: make(map[string]float64)}
			snap.Strategies[name] = s
		}
		return s
	}

	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := labelMap(m)
			switch mf.GetName() {
			case namespace + "_strategy_attempts_total":
				strategy(labels["strategy"]).Outcomes[labels["outcome"]] += m.GetCounter().GetValue()
			case namespace + "_strategy_attempt_duration_seconds":
				s := strategy(labels["strategy"])
				s.LatencyCount += m.GetHistogram().GetSampleCount()
				s.LatencySum += m.GetHistogram().GetSampleSum()
			case namespace + "_cache_requests_total":
				snap.Cache[labels["result"]] += m.GetCounter().GetValue()
			case namespace + "_requests_total":
				snap.Requests[labels["result"]] += m.GetCounter().GetValue()
			case namespace + "_rate_limited_total":
				snap.RateLimited[labels["strategy"]] += m.GetCounter().GetValue()
			case namespace + "_proxy_acquire_total":
				snap.ProxyAcquire[labels["result"]] += m.GetCounter().GetValue()
			}
		}
	}
	return snap, nil
}

func labelMap(m *dto.Metric) map[string]string {
	out := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		out[lp.GetName()] = lp.GetValue()
	}
	return out
}
