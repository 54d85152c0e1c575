package strategy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vasset/parsing-service/internal/config"
	"vasset/parsing-service/internal/utils"
)

func TestHTMLStrategy_Attempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sessionid=x", r.Header.Get("Cookie"))
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(renderDataPage()))
	}))
	defer srv.Close()

	s := NewHTMLStrategy(config.StrategyConfig{UserAgent: "test-agent"}, zap.NewNop())
	meta, err := s.Attempt(context.Background(), Input{
		URL:     srv.URL + "/video/7549035040701844779",
		VideoID: "7549035040701844779",
		Cookies: map[string]string{"sessionid": "x"},
	})
	require.NoError(t, err)
	assert.Equal(t, "from render", meta.Title)
}

func TestHTMLStrategy_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := NewHTMLStrategy(config.StrategyConfig{}, zap.NewNop())
	_, err := s.Attempt(context.Background(), Input{URL: srv.URL + "/video/1", VideoID: "1"})

	var se *utils.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusTooManyRequests, se.Code)
}

func TestHTMLStrategy_ContextDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	s := NewHTMLStrategy(config.StrategyConfig{}, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := s.Attempt(ctx, Input{URL: srv.URL + "/video/1", VideoID: "1"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHTMLStrategy_PageWithoutData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html><body>verify you are human</body></html>`))
	}))
	defer srv.Close()

	s := NewHTMLStrategy(config.StrategyConfig{}, zap.NewNop())
	_, err := s.Attempt(context.Background(), Input{URL: srv.URL, VideoID: "1"})
	assert.ErrorIs(t, err, utils.ErrNoData)
}
