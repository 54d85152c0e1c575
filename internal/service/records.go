package service

import (
	"math"
	"sort"
	"time"

	"vasset/parsing-service/internal/models"
)

const defaultWindow = 20

// strategyRecord 单个策略的累计计数和最近N次结果
//
// 只由 StrategyManager 在持有锁时修改.
type strategyRecord struct {
	name     string
	priority int
	weight   float64 // 0 表示按优先级推导
	timeout  time.Duration
	enabled  bool
	success  int64
	failure  int64

	recent []bool
	pos    int
	filled int
}

func newStrategyRecord(name string, priority int, weight float64, timeout time.Duration, enabled bool, window int) *strategyRecord {
	if window <= 0 {
		window = defaultWindow
	}
	return &strategyRecord{
		name:     name,
		priority: priority,
		weight:   weight,
		timeout:  timeout,
		enabled:  enabled,
		recent:   make([]bool, window),
	}
}

// observe 记录一次尝试结果
func (r *strategyRecord) observe(ok bool) {
	if ok {
		r.success++
	} else {
		r.failure++
	}
	r.recent[r.pos] = ok
	r.pos = (r.pos + 1) % len(r.recent)
	if r.filled < len(r.recent) {
		r.filled++
	}
}

// windowRate 窗口内成功率, 没有记录时为1
func (r *strategyRecord) windowRate() float64 {
	if r.filled == 0 {
		return 1
	}
	ok := 0
	for i := 0; i < r.filled; i++ {
		if r.recent[i] {
			ok++
		}
	}
	return float64(ok) / float64(r.filled)
}

// successRate 累计成功率
func (r *strategyRecord) successRate() float64 {
	total := r.success + r.failure
	if total == 0 {
		return 0
	}
	return float64(r.success) / float64(total)
}

// effectiveWeight 配置的权重, 未配置时随优先级递减
func (r *strategyRecord) effectiveWeight() float64 {
	if r.weight > 0 {
		return r.weight
	}
	return priorityWeight(r.priority)
}

func priorityWeight(priority int) float64 {
	return math.Max(0.1, 1.0-0.2*float64(priority-1))
}

// score 权重与窗口成功率的混合得分
func (r *strategyRecord) score() float64 {
	return r.effectiveWeight() * (0.5 + 0.5*r.windowRate())
}

func (r *strategyRecord) stat() models.StrategyStat {
	return models.StrategyStat{
		Name:        r.name,
		Enabled:     r.enabled,
		Priority:    r.priority,
		Weight:      r.effectiveWeight(),
		Success:     r.success,
		Failure:     r.failure,
		Total:       r.success + r.failure,
		SuccessRate: r.successRate(),
		WindowRate:  r.windowRate(),
		Score:       r.score(),
	}
}

// rankRecords 按得分降序, 同分按优先级再按名称, 跳过禁用的策略
func rankRecords(records map[string]*strategyRecord) []*strategyRecord {
	out := make([]*strategyRecord, 0, len(records))
	for _, r := range records {
		if r.enabled {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		si, sj := out[i].score(), out[j].score()
		if si != sj {
			return si > sj
		}
		if out[i].priority != out[j].priority {
			return out[i].priority < out[j].priority
		}
		return out[i].name < out[j].name
	})
	return out
}
