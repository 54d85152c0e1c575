package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"vasset/parsing-service/internal/config"
	"vasset/parsing-service/internal/models"
	"vasset/parsing-service/internal/service"
	"vasset/parsing-service/internal/utils"
)

// Parser 解析编排能力, 由 service.StrategyManager 实现
type Parser interface {
	Parse(ctx context.Context, req models.ParseRequest) (*models.VideoMetadata, error)
	BatchParse(ctx context.Context, reqs []models.ParseRequest) []models.BatchResult
	Stats(ctx context.Context) models.StatsSnapshot
	SetStrategyEnabled(name string, enabled bool) error
	ClearCache(ctx context.Context) error
	ValidateURL(ctx context.Context, rawURL string) models.ValidateResult
}

// writeMargin 为写回响应预留的时间
const writeMargin = time.Second

// ParseHandler 解析相关接口
type ParseHandler struct {
	parser         Parser
	requestTimeout time.Duration
	writeTimeout   time.Duration
	maxBatch       int
	maxConcurrent  int
	logger         *zap.Logger
}

// NewParseHandler 创建解析处理器
func NewParseHandler(parser Parser, server config.ServerConfig, batch config.BatchConfig, logger *zap.Logger) *ParseHandler {
	if batch.MaxURLs <= 0 {
		batch.MaxURLs = 10
	}
	if batch.MaxConcurrent <= 0 {
		batch.MaxConcurrent = 5
	}
	return &ParseHandler{
		parser:         parser,
		requestTimeout: server.RequestTimeout,
		writeTimeout:   server.WriteTimeout,
		maxBatch:       batch.MaxURLs,
		maxConcurrent:  batch.MaxConcurrent,
		logger:         logger.Named("http"),
	}
}

// Parse POST /parse
func (h *ParseHandler) Parse(c *gin.Context) {
	var body models.ParseBody
	if err := c.ShouldBindJSON(&body); err != nil {
		models.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	ctx, cancel := h.withTimeout(c.Request.Context(), 1)
	defer cancel()

	meta, err := h.parser.Parse(ctx, models.ParseRequest{
		URL:          body.URL,
		UseProxy:     body.UseProxy,
		ForceRefresh: body.ForceRefresh,
		Cookies:      body.Cookies,
	})
	if err != nil {
		status := httpStatus(ctx, err)
		if status >= http.StatusInternalServerError {
			h.logger.Warn("Parse failed", zap.String("url", body.URL), zap.Int("status", status), zap.Error(err))
		}
		models.ErrorWithCode(c, status, service.ErrorCode(err), err.Error())
		return
	}

	models.Success(c, meta)
}

// BatchParse POST /batch_parse
func (h *ParseHandler) BatchParse(c *gin.Context) {
	var body models.BatchParseBody
	if err := c.ShouldBindJSON(&body); err != nil {
		models.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if len(body.URLs) == 0 {
		models.BadRequest(c, utils.ErrEmptyBatch.Error())
		return
	}
	if len(body.URLs) > h.maxBatch {
		models.BadRequest(c, utils.ErrBatchTooLarge.Error())
		return
	}

	reqs := make([]models.ParseRequest, len(body.URLs))
	for i, u := range body.URLs {
		reqs[i] = models.ParseRequest{URL: u, UseProxy: body.UseProxy, Cookies: body.Cookies}
	}

	// 按并发上限分轮, 每轮一个请求超时
	rounds := (len(reqs) + h.maxConcurrent - 1) / h.maxConcurrent
	ctx, cancel := h.withTimeout(c.Request.Context(), rounds)
	defer cancel()

	c.JSON(http.StatusOK, models.BatchResponse{
		Success: true,
		Results: h.parser.BatchParse(ctx, reqs),
	})
}

// Validate POST /validate
func (h *ParseHandler) Validate(c *gin.Context) {
	var body models.ValidateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		models.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	ctx, cancel := h.withTimeout(c.Request.Context(), 1)
	defer cancel()
	models.Success(c, h.parser.ValidateURL(ctx, body.URL))
}

// Stats GET /stats
func (h *ParseHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.parser.Stats(c.Request.Context()))
}

// ClearCache POST /clear_cache
func (h *ParseHandler) ClearCache(c *gin.Context) {
	if err := h.parser.ClearCache(c.Request.Context()); err != nil {
		h.logger.Error("Failed to clear cache", zap.Error(err))
		models.InternalError(c, "failed to clear cache")
		return
	}
	models.Success(c, gin.H{"cleared": true})
}

// EnableStrategy POST /strategies/:name/enable
func (h *ParseHandler) EnableStrategy(c *gin.Context) {
	h.toggleStrategy(c, true)
}

// DisableStrategy POST /strategies/:name/disable
func (h *ParseHandler) DisableStrategy(c *gin.Context) {
	h.toggleStrategy(c, false)
}

func (h *ParseHandler) toggleStrategy(c *gin.Context, enabled bool) {
	name := c.Param("name")
	if err := h.parser.SetStrategyEnabled(name, enabled); err != nil {
		if errors.Is(err, utils.ErrStrategyNotFound) {
			models.NotFound(c, err.Error())
			return
		}
		models.InternalError(c, err.Error())
		return
	}
	models.Success(c, gin.H{"strategy": name, "enabled": enabled})
}

// withTimeout 处理截止时间不晚于 http.Server 的写超时, 保证结果能写回客户端
func (h *ParseHandler) withTimeout(ctx context.Context, rounds int) (context.Context, context.CancelFunc) {
	timeout := time.Duration(rounds) * h.requestTimeout
	if limit := h.writeLimit(); limit > 0 && (timeout <= 0 || timeout > limit) {
		timeout = limit
	}
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func (h *ParseHandler) writeLimit() time.Duration {
	switch {
	case h.writeTimeout <= 0:
		return 0
	case h.writeTimeout > 2*writeMargin:
		return h.writeTimeout - writeMargin
	default:
		return h.writeTimeout / 2
	}
}

// httpStatus 错误到HTTP状态码的映射
func httpStatus(ctx context.Context, err error) int {
	var exhausted *utils.ResolutionExhaustedError
	switch {
	case errors.Is(err, utils.ErrInvalidURL):
		return http.StatusBadRequest
	case errors.As(err, &exhausted):
		if ctx.Err() != nil {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
