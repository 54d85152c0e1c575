package utils

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNetworkError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"attempt timeout", fmt.Errorf("api: %w", ErrAttemptTimeout), true},
		{"deadline", context.DeadlineExceeded, true},
		{"url error", &url.Error{Op: "Get", URL: "https://x", Err: errors.New("boom")}, true},
		{"conn refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"proxy status", &StatusError{Code: 407, URL: "https://x"}, true},
		{"throttled", &StatusError{Code: 429}, true},
		{"not found status", &StatusError{Code: 404}, false},
		{"chrome proxy", errors.New("page load error net::ERR_PROXY_CONNECTION_FAILED"), true},
		{"incomplete", ErrIncompleteResult, false},
		{"no data", ErrNoData, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsNetworkError(tc.err))
		})
	}
}

func TestResolutionExhaustedError(t *testing.T) {
	err := &ResolutionExhaustedError{
		VideoID: "7549035040701844779",
		Attempts: []AttemptError{
			{Strategy: "b", Err: ErrAttemptTimeout},
			{Strategy: "a", Err: ErrRateLimited, RateLimited: true},
			{Strategy: "b", Err: ErrNoData},
		},
	}

	assert.Equal(t, map[string]string{
		"a": ErrRateLimited.Error(),
		"b": ErrNoData.Error(),
	}, err.LastErrors())
	assert.Equal(t, "all strategies failed for 7549035040701844779 (a: rate limited; b: no video data found in response)", err.Error())
	assert.True(t, errors.Is(err, ErrAttemptTimeout))
	assert.False(t, errors.Is(err, ErrInvalidURL))

	var target *ResolutionExhaustedError
	assert.True(t, errors.As(fmt.Errorf("wrapped: %w", err), &target))

	empty := &ResolutionExhaustedError{VideoID: "1"}
	assert.Contains(t, empty.Error(), "no strategy available")
}

func TestMapYTDLPError(t *testing.T) {
	assert.Equal(t, ErrVideoPrivate, MapYTDLPError("ERROR: Private video"))
	assert.Equal(t, ErrTimeout, MapYTDLPError("read timed out"))
	assert.Equal(t, ErrYTDLPFailed, MapYTDLPError("something else"))
}
