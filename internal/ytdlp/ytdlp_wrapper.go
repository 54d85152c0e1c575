package ytdlp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"vasset/parsing-service/internal/config"
	"vasset/parsing-service/internal/utils"
)

// VideoInfo yt-dlp返回的视频信息
type VideoInfo struct {
	ID           string              `json:"id"`
	Title        string              `json:"title"`
	Description  string              `json:"description"`
	Duration     float64             `json:"duration"` // 秒
	Thumbnail    string              `json:"thumbnail"`
	Uploader     string              `json:"uploader"`
	UploaderID   string              `json:"uploader_id"`
	Timestamp    int64               `json:"timestamp"`
	URL          string              `json:"url"`
	ViewCount    int64               `json:"view_count"`
	LikeCount    int64               `json:"like_count"`
	CommentCount int64               `json:"comment_count"`
	RepostCount  int64               `json:"repost_count"`
	Formats      []utils.VideoFormat `json:"formats"`
}

// Runner 执行命令并返回标准输出和标准错误
type Runner func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

// waitDelay 进程被杀后等待子进程释放输出管道的上限
const waitDelay = 2 * time.Second

// execRunner 默认使用 os/exec
func execRunner(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = waitDelay
	var stdout, stderr limitedBuffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// Wrapper yt-dlp命令封装器
type Wrapper struct {
	binaryPath  string
	cookieFile  string
	defaultArgs []string
	run         Runner
}

// NewWrapper 创建yt-dlp封装器
func NewWrapper(cfg config.YTDLPConfig) *Wrapper {
	bin := cfg.BinaryPath
	if bin == "" {
		bin = "yt-dlp"
	}
	return &Wrapper{
		binaryPath:  bin,
		cookieFile:  cfg.CookieFile,
		defaultArgs: cfg.DefaultArgs,
		run:         execRunner,
	}
}

// buildArgs 构建命令参数, proxyURL 覆盖默认参数中的 --proxy
func (w *Wrapper) buildArgs(url, proxyURL, cookieFile string) []string {
	args := []string{
		"--dump-json",
		"--skip-download",
		"--no-playlist",
	}

	for i := 0; i < len(w.defaultArgs); i++ {
		if w.defaultArgs[i] == "--proxy" && i+1 < len(w.defaultArgs) {
			if proxyURL == "" {
				args = append(args, w.defaultArgs[i], w.defaultArgs[i+1])
			}
			i++
			continue
		}
		args = append(args, w.defaultArgs[i])
	}

	if proxyURL != "" {
		args = append(args, "--proxy", proxyURL)
	}

	if cookieFile == "" {
		cookieFile = w.cookieFile
	}
	if cookieFile != "" {
		if _, err := os.Stat(cookieFile); err == nil {
			args = append(args, "--cookies", cookieFile)
		}
	}

	return append(args, url)
}

// ExtractInfo 提取视频信息, 超时由 ctx 控制
func (w *Wrapper) ExtractInfo(ctx context.Context, url, proxyURL, cookieFile string) (*VideoInfo, error) {
	args := w.buildArgs(url, proxyURL, cookieFile)

	stdout, stderr, err := w.run(ctx, w.binaryPath, args...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, exec.ErrNotFound) {
			return nil, utils.ErrYTDLPNotFound
		}
		return nil, fmt.Errorf("%w: %s", utils.MapYTDLPError(string(stderr)), utils.SanitizeString(string(stderr)))
	}

	var info VideoInfo
	if err := json.Unmarshal(stdout, &info); err != nil {
		return nil, fmt.Errorf("failed to parse yt-dlp output: %w", err)
	}

	return &info, nil
}

// limitedBuffer 最多保留 4MB 输出
type limitedBuffer struct {
	buf []byte
}

const maxOutput = 4 << 20

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if room := maxOutput - len(b.buf); room > 0 {
		if len(p) > room {
			b.buf = append(b.buf, p[:room]...)
		} else {
			b.buf = append(b.buf, p...)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) Bytes() []byte { return b.buf }
