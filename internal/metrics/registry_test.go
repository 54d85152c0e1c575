package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RecordAndSnapshot(t *testing.T) {
	r := NewRegistry()

	r.RecordAttempt("api", OutcomeTimeout, 10*time.Second)
	r.RecordAttempt("api", OutcomeFailure, time.Second)
	r.RecordAttempt("html", OutcomeSuccess, 500*time.Millisecond)
	r.RecordCache(true)
	r.RecordCache(false)
	r.RecordCache(false)
	r.RecordRequest("success")
	r.RecordRateLimited("browser")
	r.RecordProxyAcquire(false)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.attemptsTotal.WithLabelValues("api", OutcomeTimeout)))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.cacheRequests.WithLabelValues("miss")))

	snap, err := r.Snapshot()
	require.NoError(t, err)

	require.Contains(t, snap.Strategies, "api")
	assert.Equal(t, 1.0, snap.Strategies["api"].Outcomes[OutcomeTimeout])
	assert.Equal(t, 1.0, snap.Strategies["api"].Outcomes[OutcomeFailure])
	assert.Equal(t, uint64(2), snap.Strategies["api"].LatencyCount)
	assert.InDelta(t, 11.0, snap.Strategies["api"].LatencySum, 1e-9)
	assert.Equal(t, 1.0, snap.Strategies["html"].Outcomes[OutcomeSuccess])
	assert.Equal(t, map[string]float64{"hit": 1, "miss": 2}, snap.Cache)
	assert.Equal(t, 1.0, snap.Requests["success"])
	assert.Equal(t, 1.0, snap.RateLimited["browser"])
	assert.Equal(t, 1.0, snap.ProxyAcquire["unavailable"])
}

func TestRegistry_Handler(t *testing.T) {
	r := NewRegistry()
	r.RecordAttempt("api", OutcomeSuccess, time.Second)

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `parser_strategy_attempts_total{outcome="success",strategy="api"} 1`)
	assert.Contains(t, string(body), "parser_strategy_attempt_duration_seconds_bucket")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestRegistry_Isolated(t *testing.T) {
	// 多个实例互不冲突
	a, b := NewRegistry(), NewRegistry()
	a.RecordRequest("success")

	count, err := testutil.GatherAndCount(b.Gatherer(), "parser_requests_total")
	require.NoError(t, err)
	assert.Zero(t, count)
}
