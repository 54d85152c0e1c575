package ytdlp

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vasset/parsing-service/internal/config"
	"vasset/parsing-service/internal/utils"
)

func TestBuildArgs_ProxyOverridesDefault(t *testing.T) {
	w := NewWrapper(config.YTDLPConfig{DefaultArgs: []string{"--no-warnings", "--proxy", "http://default:1"}})

	args := w.buildArgs("https://www.douyin.com/video/1", "http://p:2", "")
	assert.Equal(t, []string{
		"--dump-json", "--skip-download", "--no-playlist",
		"--no-warnings",
		"--proxy", "http://p:2",
		"https://www.douyin.com/video/1",
	}, args)

	args = w.buildArgs("https://www.douyin.com/video/1", "", "")
	assert.Contains(t, args, "http://default:1")
}

func TestBuildArgs_CookieFileMustExist(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cookies.txt")
	require.NoError(t, os.WriteFile(path, []byte("# Netscape HTTP Cookie File\n"), 0o600))

	w := NewWrapper(config.YTDLPConfig{CookieFile: filepath.Join(dir, "missing.txt")})
	assert.NotContains(t, w.buildArgs("u", "", ""), "--cookies")

	args := w.buildArgs("u", "", path)
	assert.Contains(t, args, path)
}

func TestExtractInfo(t *testing.T) {
	w := NewWrapper(config.YTDLPConfig{})
	w.run = func(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
		assert.Equal(t, "yt-dlp", name)
		return []byte(`{"id":"7549035040701844779","title":"T","uploader":"A","duration":12.5,
			"formats":[{"format_id":"h264_720","url":"https://x/720.mp4","vcodec":"h264","height":720}]}`), nil, nil
	}

	info, err := w.ExtractInfo(context.Background(), "https://www.douyin.com/video/7549035040701844779", "", "")
	require.NoError(t, err)
	assert.Equal(t, "7549035040701844779", info.ID)
	assert.Equal(t, "A", info.Uploader)
	assert.InDelta(t, 12.5, info.Duration, 0.001)
	require.Len(t, info.Formats, 1)
}

func TestExtractInfo_MapsStderr(t *testing.T) {
	w := NewWrapper(config.YTDLPConfig{})
	w.run = func(context.Context, string, ...string) ([]byte, []byte, error) {
		return nil, []byte("ERROR: Private video. Sign in"), errors.New("exit status 1")
	}

	_, err := w.ExtractInfo(context.Background(), "u", "", "")
	assert.ErrorIs(t, err, utils.ErrVideoPrivate)
}

func TestExtractInfo_ContextCancelled(t *testing.T) {
	w := NewWrapper(config.YTDLPConfig{})
	w.run = func(ctx context.Context, _ string, _ ...string) ([]byte, []byte, error) {
		<-ctx.Done()
		return nil, nil, errors.New("signal: killed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := w.ExtractInfo(ctx, "u", "", "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLimitedBuffer(t *testing.T) {
	var b limitedBuffer
	n, err := b.Write(make([]byte, maxOutput+10))
	require.NoError(t, err)
	assert.Equal(t, maxOutput+10, n)
	assert.Len(t, b.Bytes(), maxOutput)
}

func TestExecRunner_ChildHoldingPipesDoesNotOutliveContext(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	// sleep 作为 sh 的子进程继承 stdout, sh 被杀后仍持有管道
	_, _, err := execRunner(ctx, "sh", "-c", "sleep 30; true")
	require.Error(t, err)
	assert.Less(t, time.Since(start), waitDelay+3*time.Second)
}
