package strategy

import (
	"context"
	"math"

	"go.uber.org/zap"

	"vasset/parsing-service/internal/config"
	"vasset/parsing-service/internal/cookies"
	"vasset/parsing-service/internal/models"
	"vasset/parsing-service/internal/utils"
	"vasset/parsing-service/internal/ytdlp"
)

// InfoExtractor yt-dlp 元数据提取
type InfoExtractor interface {
	ExtractInfo(ctx context.Context, url, proxyURL, cookieFile string) (*ytdlp.VideoInfo, error)
}

// YTDLPStrategy 调用 yt-dlp --dump-json
type YTDLPStrategy struct {
	extractor InfoExtractor
	logger    *zap.Logger
}

// NewYTDLPStrategy 创建 yt-dlp 策略
func NewYTDLPStrategy(extractor InfoExtractor, logger *zap.Logger) *YTDLPStrategy {
	return &YTDLPStrategy{
		extractor: extractor,
		logger:    logger.Named(config.StrategyYTDLP),
	}
}

// Name 策略名称
func (s *YTDLPStrategy) Name() string { return config.StrategyYTDLP }

// Attempt 请求cookie写入临时文件后交给 yt-dlp
func (s *YTDLPStrategy) Attempt(ctx context.Context, in Input) (*models.VideoMetadata, error) {
	cookieFile := ""
	if len(in.Cookies) > 0 {
		path, cleanup, err := cookies.WriteTempFile(in.Cookies, "douyin.com")
		if err != nil {
			return nil, err
		}
		defer cleanup()
		cookieFile = path
	}

	info, err := s.extractor.ExtractInfo(ctx, in.URL, in.ProxyURL, cookieFile)
	if err != nil {
		return nil, err
	}
	return infoToMetadata(info), nil
}

// infoToMetadata 时长转为毫秒, 视频地址取得分最高的格式
func infoToMetadata(info *ytdlp.VideoInfo) *models.VideoMetadata {
	videoURL := utils.BestFormatURL(info.Formats)
	if videoURL == "" {
		videoURL = info.URL
	}
	title := info.Title
	if title == "" {
		title = info.Description
	}
	return &models.VideoMetadata{
		VideoID:    info.ID,
		Title:      utils.SanitizeString(title),
		Author:     info.Uploader,
		AuthorID:   info.UploaderID,
		VideoURL:   videoURL,
		CoverURL:   info.Thumbnail,
		Duration:   int64(math.Round(info.Duration * 1000)),
		CreateTime: info.Timestamp,
		Statistics: models.Statistics{
			Likes:    info.LikeCount,
			Comments: info.CommentCount,
			Shares:   info.RepostCount,
			Views:    info.ViewCount,
		},
		Images: []string{},
	}
}
