package utils

import "strings"

// VideoFormat yt-dlp 返回的单个格式
type VideoFormat struct {
	FormatID string  `json:"format_id"`
	URL      string  `json:"url"`
	Ext      string  `json:"ext"`
	VCodec   string  `json:"vcodec"`
	ACodec   string  `json:"acodec"`
	Height   int     `json:"height"`
	TBR      float64 `json:"tbr"`
}

func (f *VideoFormat) hasVideo() bool {
	return f.VCodec != "none"
}

func (f *VideoFormat) hasAudio() bool {
	return f.ACodec != "" && f.ACodec != "none"
}

// download_addr 是带水印的下载地址, play_addr 无水印
func (f *VideoFormat) watermarked() bool {
	return strings.Contains(f.FormatID, "download")
}

// BestFormatURL 选出带直链的视频格式: 无水印优先, 其次分辨率, 音轨, 码率
func BestFormatURL(formats []VideoFormat) string {
	var best *VideoFormat
	for i := range formats {
		f := &formats[i]
		if f.URL == "" || !f.hasVideo() {
			continue
		}
		if best == nil || betterFormat(f, best) {
			best = f
		}
	}
	if best == nil {
		return ""
	}
	return best.URL
}

func betterFormat(a, b *VideoFormat) bool {
	if a.watermarked() != b.watermarked() {
		return !a.watermarked()
	}
	if a.Height != b.Height {
		return a.Height > b.Height
	}
	if a.hasAudio() != b.hasAudio() {
		return a.hasAudio()
	}
	return a.TBR > b.TBR
}
