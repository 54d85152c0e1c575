package models

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一响应结构
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"error_code,omitempty"`
}

// ParseBody POST /parse 请求体
type ParseBody struct {
	URL          string            `json:"url" binding:"required"`
	UseProxy     bool              `json:"use_proxy"`
	ForceRefresh bool              `json:"force_refresh"`
	Cookies      map[string]string `json:"cookies"`
}

// BatchParseBody POST /batch_parse 请求体
type BatchParseBody struct {
	URLs     []string          `json:"urls"`
	UseProxy bool              `json:"use_proxy"`
	Cookies  map[string]string `json:"cookies"`
}

// BatchResponse 批量解析响应
type BatchResponse struct {
	Success bool          `json:"success"`
	Results []BatchResult `json:"results"`
}

// ValidateBody POST /validate 请求体
type ValidateBody struct {
	URL string `json:"url" binding:"required"`
}

// ValidateResult URL校验结果
type ValidateResult struct {
	Valid    bool   `json:"valid"`
	Platform string `json:"platform"`
	VideoID  string `json:"video_id,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Success: false,
		Error:   message,
	})
}

// ErrorWithCode 带错误码的错误响应
func ErrorWithCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, Response{
		Success: false,
		Error:   message,
		Code:    code,
	})
}

// BadRequest 请求错误
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

// NotFound 未找到
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message)
}

// InternalError 服务器错误
func InternalError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, message)
}
