package service

import (
	"context"
	"errors"

	"vasset/parsing-service/internal/utils"
)

// 对外错误码
const (
	CodeInvalidURL          = "InvalidURL"
	CodeResolutionExhausted = "ResolutionExhausted"
	CodeTimeout             = "Timeout"
	CodeCanceled            = "Canceled"
	CodeInternal            = "InternalError"
)

// ErrorCode 将错误映射为对外错误码
func ErrorCode(err error) string {
	var exhausted *utils.ResolutionExhaustedError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, utils.ErrInvalidURL):
		return CodeInvalidURL
	case errors.As(err, &exhausted):
		return CodeResolutionExhausted
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	case errors.Is(err, context.Canceled):
		return CodeCanceled
	default:
		return CodeInternal
	}
}
