package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"vasset/parsing-service/internal/config"
	"vasset/parsing-service/internal/metrics"
	"vasset/parsing-service/internal/models"
	"vasset/parsing-service/internal/utils"
)

// stubParser 所有解析都返回 ErrInvalidURL
type stubParser struct{}

func (stubParser) Parse(context.Context, models.ParseRequest) (*models.VideoMetadata, error) {
	return nil, utils.ErrInvalidURL
}

func (stubParser) BatchParse(_ context.Context, reqs []models.ParseRequest) []models.BatchResult {
	return make([]models.BatchResult, len(reqs))
}

func (stubParser) Stats(context.Context) models.StatsSnapshot {
	return models.StatsSnapshot{Strategies: map[string]models.StrategyStat{}}
}

func (stubParser) SetStrategyEnabled(string, bool) error { return nil }

func (stubParser) ClearCache(context.Context) error { return nil }

func (stubParser) ValidateURL(context.Context, string) models.ValidateResult {
	return models.ValidateResult{}
}

func newEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.Server.RPS = 0
	return SetupRouter(&Dependencies{
		Config:         cfg,
		Parser:         stubParser{},
		MetricsHandler: metrics.NewRegistry().Handler(),
		Logger:         zap.NewNop(),
	})
}

func TestRoutes(t *testing.T) {
	r := newEngine(t)

	tests := []struct {
		method string
		path   string
		body   string
		status int
	}{
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/ready", "", http.StatusOK},
		{http.MethodGet, "/live", "", http.StatusOK},
		{http.MethodGet, "/stats", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodPost, "/parse", `{"url":"bad"}`, http.StatusBadRequest},
		{http.MethodPost, "/batch_parse", `{"urls":["a"]}`, http.StatusOK},
		{http.MethodPost, "/validate", `{"url":"a"}`, http.StatusOK},
		{http.MethodPost, "/clear_cache", "", http.StatusOK},
		{http.MethodPost, "/strategies/api/disable", "", http.StatusOK},
		{http.MethodGet, "/unknown", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
		})
	}
}

func TestRoutes_MetricsExposition(t *testing.T) {
	r := newEngine(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
