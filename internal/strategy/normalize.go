package strategy

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"vasset/parsing-service/internal/models"
	"vasset/parsing-service/internal/utils"
)

const maxSearchDepth = 8

// decodeJSON 解析JSON, 数字保留为 json.Number 以免ID丢精度
func decodeJSON(r io.Reader) (any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// NormalizeAwemeDetail 将详情文档转为 VideoMetadata
//
// 接受 {aweme_detail: {...}}, {item_list: [...]} 或详情本身.
func NormalizeAwemeDetail(doc map[string]any) (*models.VideoMetadata, error) {
	detail := locateDetail(doc)
	if detail == nil {
		return nil, utils.ErrNoData
	}

	meta := &models.VideoMetadata{
		VideoID:    firstString(detail, "aweme_id", "id"),
		Title:      utils.SanitizeString(asString(detail["desc"])),
		CreateTime: asInt64(firstPresent(detail, "create_time", "createTime")),
		Images:     []string{},
	}

	switch author := detail["author"].(type) {
	case map[string]any:
		meta.Author = utils.SanitizeString(asString(author["nickname"]))
		meta.AuthorID = firstString(author, "sec_uid", "secUid", "uid")
	case string:
		meta.Author = author
	}

	if stats, ok := detail["statistics"].(map[string]any); ok {
		meta.Statistics = models.Statistics{
			Likes:    asInt64(stats["digg_count"]),
			Comments: asInt64(stats["comment_count"]),
			Shares:   asInt64(stats["share_count"]),
			Views:    asInt64(stats["play_count"]),
		}
	} else if stats, ok := detail["stats"].(map[string]any); ok {
		meta.Statistics = models.Statistics{
			Likes:    asInt64(stats["diggCount"]),
			Comments: asInt64(stats["commentCount"]),
			Shares:   asInt64(stats["shareCount"]),
			Views:    asInt64(stats["playCount"]),
		}
	}

	if images, ok := detail["images"].([]any); ok && len(images) > 0 {
		// 图文作品
		meta.IsImage = true
		for _, img := range images {
			if m, ok := img.(map[string]any); ok {
				if u := firstURL(m); u != "" {
					meta.Images = append(meta.Images, u)
				}
			}
		}
	} else if video, ok := detail["video"].(map[string]any); ok {
		if playAddr, ok := video["play_addr"].(map[string]any); ok {
			meta.VideoURL = watermarkFree(firstURL(playAddr))
		} else if playAddr, ok := video["playAddr"].(string); ok {
			meta.VideoURL = watermarkFree(playAddr)
		}
		if cover, ok := video["cover"].(map[string]any); ok {
			meta.CoverURL = firstURL(cover)
		} else if cover, ok := video["cover"].(string); ok {
			meta.CoverURL = cover
		}
		meta.Duration = asInt64(video["duration"])
	}

	if music, ok := detail["music"].(map[string]any); ok {
		if playURL, ok := music["play_url"].(map[string]any); ok {
			meta.MusicURL = firstURL(playURL)
		} else if playURL, ok := music["playUrl"].(string); ok {
			meta.MusicURL = playURL
		}
	}

	return meta, nil
}

// locateDetail 找到详情对象
func locateDetail(doc map[string]any) map[string]any {
	if d, ok := doc["aweme_detail"].(map[string]any); ok {
		return d
	}
	if list, ok := doc["item_list"].([]any); ok {
		if len(list) == 0 {
			return nil
		}
		d, _ := list[0].(map[string]any)
		return d
	}
	if _, ok := doc["aweme_id"]; ok {
		return doc
	}
	if _, ok := doc["desc"]; ok {
		if _, ok := doc["video"]; ok {
			return doc
		}
	}
	return nil
}

// findDetail 在任意JSON树中查找第一个详情对象, 键按字母序遍历
func findDetail(v any, depth int) map[string]any {
	if depth > maxSearchDepth {
		return nil
	}
	switch node := v.(type) {
	case map[string]any:
		if d, ok := node["aweme_detail"].(map[string]any); ok {
			return d
		}
		if list, ok := node["item_list"].([]any); ok && len(list) > 0 {
			if d, ok := list[0].(map[string]any); ok {
				return d
			}
		}
		if _, ok := node["aweme_id"]; ok {
			if _, ok := node["desc"]; ok {
				return node
			}
		}
		keys := make([]string, 0, len(node))
		for k := range node {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if d := findDetail(node[k], depth+1); d != nil {
				return d
			}
		}
	case []any:
		for _, item := range node {
			if d := findDetail(item, depth+1); d != nil {
				return d
			}
		}
	}
	return nil
}

// watermarkFree 替换为无水印地址
func watermarkFree(u string) string {
	return strings.Replace(u, "playwm", "play", 1)
}

func firstURL(m map[string]any) string {
	list, ok := m["url_list"].([]any)
	if !ok || len(list) == 0 {
		return ""
	}
	return asString(list[0])
}

func firstPresent(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v
		}
	}
	return nil
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := asString(m[k]); s != "" {
			return s
		}
	}
	return ""
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

func asInt64(v any) int64 {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		if f, err := t.Float64(); err == nil {
			return int64(f)
		}
	case float64:
		return int64(t)
	case int64:
		return t
	case int:
		return int64(t)
	case string:
		n, _ := strconv.ParseInt(t, 10, 64)
		return n
	}
	return 0
}
