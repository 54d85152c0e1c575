package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strings"
	"syscall"
)

var (
	// URL相关错误
	ErrInvalidURL     = errors.New("invalid URL")
	ErrBatchTooLarge  = errors.New("too many URLs in batch")
	ErrEmptyBatch     = errors.New("URLs are required")
	ErrShortLinkRedir = errors.New("short link did not redirect")

	// 解析相关错误
	ErrRateLimited      = errors.New("rate limited")
	ErrProxyUnavailable = errors.New("no healthy proxy available")
	ErrAttemptTimeout   = errors.New("strategy attempt timed out")
	ErrIncompleteResult = errors.New("strategy returned incomplete metadata")
	ErrNoData           = errors.New("no video data found in response")
	ErrStrategyNotFound = errors.New("strategy not found")

	// 视频相关错误
	ErrVideoNotFound  = errors.New("video not found")
	ErrVideoPrivate   = errors.New("video is private")
	ErrVideoDeleted   = errors.New("video has been deleted")
	ErrGeoRestricted  = errors.New("video is geo-restricted")
	ErrAgeRestricted  = errors.New("video is age-restricted")
	ErrCopyrightClaim = errors.New("video removed due to copyright claim")

	// 系统相关错误
	ErrTimeout       = errors.New("parse timeout")
	ErrCacheMiss     = errors.New("cache miss")
	ErrYTDLPNotFound = errors.New("yt-dlp binary not found")
	ErrYTDLPFailed   = errors.New("yt-dlp execution failed")
)

// StatusError 上游返回非预期HTTP状态码
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Code, e.URL)
}

// AttemptError 单个策略的一次尝试结果
type AttemptError struct {
	Strategy    string
	Err         error
	RateLimited bool
	Skipped     bool
}

func (e AttemptError) Error() string {
	return fmt.Sprintf("%s: %v", e.Strategy, e.Err)
}

func (e AttemptError) Unwrap() error {
	return e.Err
}

// ResolutionExhaustedError 所有策略均未成功
type ResolutionExhaustedError struct {
	VideoID  string
	Attempts []AttemptError
}

func (e *ResolutionExhaustedError) Error() string {
	if len(e.Attempts) == 0 {
		return fmt.Sprintf("all strategies failed for %s: no strategy available", e.VideoID)
	}

	last := e.LastErrors()
	names := make([]string, 0, len(last))
	for name := range last {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+last[name])
	}
	return fmt.Sprintf("all strategies failed for %s (%s)", e.VideoID, strings.Join(parts, "; "))
}

// Unwrap 允许 errors.Is 匹配任一策略的底层错误
func (e *ResolutionExhaustedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	return errs
}

// LastErrors 每个策略最后一次错误信息
func (e *ResolutionExhaustedError) LastErrors() map[string]string {
	out := make(map[string]string, len(e.Attempts))
	for _, a := range e.Attempts {
		out[a.Strategy] = a.Err.Error()
	}
	return out
}

// IsNetworkError 判断错误是否与网络/代理相关
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAttemptTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.Code {
		case 403, 407, 429, 502, 503, 504:
			return true
		}
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "proxyconnect") ||
		strings.Contains(lower, "connection refused") ||
		strings.Contains(lower, "net::err_proxy") ||
		strings.Contains(lower, "net::err_tunnel")
}

// MapYTDLPError 将yt-dlp的错误输出映射到具体错误
func MapYTDLPError(stderr string) error {
	lowerStderr := strings.ToLower(stderr)

	switch {
	case strings.Contains(lowerStderr, "video unavailable"):
		return ErrVideoNotFound
	case strings.Contains(lowerStderr, "private video"):
		return ErrVideoPrivate
	case strings.Contains(lowerStderr, "has been deleted"):
		return ErrVideoDeleted
	case strings.Contains(lowerStderr, "not available in your country"):
		return ErrGeoRestricted
	case strings.Contains(lowerStderr, "age-restricted"):
		return ErrAgeRestricted
	case strings.Contains(lowerStderr, "copyright"):
		return ErrCopyrightClaim
	case strings.Contains(lowerStderr, "no such file"):
		return ErrYTDLPNotFound
	case strings.Contains(lowerStderr, "timed out") || strings.Contains(lowerStderr, "timeout"):
		return ErrTimeout
	default:
		return ErrYTDLPFailed
	}
}
