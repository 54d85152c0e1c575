package models

// Statistics 互动数据
type Statistics struct {
	Likes    int64 `json:"likes"`
	Comments int64 `json:"comments"`
	Shares   int64 `json:"shares"`
	Views    int64 `json:"views"`
}

// VideoMetadata 解析得到的视频元数据
type VideoMetadata struct {
	VideoID    string     `json:"video_id"`
	Title      string     `json:"title"`
	Author     string     `json:"author"`
	AuthorID   string     `json:"author_id"`
	VideoURL   string     `json:"video_url"`
	CoverURL   string     `json:"cover_url"`
	MusicURL   string     `json:"music_url"`
	Duration   int64      `json:"duration"` // 毫秒
	CreateTime int64      `json:"create_time"`
	Statistics Statistics `json:"statistics"`
	IsImage    bool       `json:"is_image"`
	Images     []string   `json:"images"`
	Strategy   string     `json:"strategy,omitempty"`
}

// Clone 深拷贝, 调用方之间不共享切片
func (m *VideoMetadata) Clone() *VideoMetadata {
	if m == nil {
		return nil
	}
	out := *m
	if m.Images != nil {
		out.Images = append([]string(nil), m.Images...)
	}
	return &out
}

// Validate 检查策略结果是否完整
func (m *VideoMetadata) Validate() bool {
	if m == nil || m.VideoID == "" {
		return false
	}
	if m.Title == "" && m.Author == "" {
		return false
	}
	if !m.IsImage && m.VideoURL == "" {
		return false
	}
	return true
}

// ParseRequest 单次解析请求
type ParseRequest struct {
	URL          string
	UseProxy     bool
	ForceRefresh bool
	Cookies      map[string]string
}

// BatchResult 批量解析中单个URL的结果
type BatchResult struct {
	URL       string         `json:"url"`
	Success   bool           `json:"success"`
	Data      *VideoMetadata `json:"data,omitempty"`
	Error     string         `json:"error,omitempty"`
	ErrorCode string         `json:"error_code,omitempty"`
}
