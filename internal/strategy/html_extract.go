package strategy

import (
	"bytes"
	"encoding/json"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"vasset/parsing-service/internal/models"
	"vasset/parsing-service/internal/utils"
)

var (
	ssrAssign  = regexp.MustCompile(`window\.(?:_SSR_DATA|SSR_DATA)\s*=\s*`)
	sigiAssign = regexp.MustCompile(`window\.(?:__)?SIGI_STATE\s*=\s*`)
)

type htmlExtractor struct {
	name string
	fn   func(doc *goquery.Document) map[string]any
}

// htmlExtractors 按顺序尝试
var htmlExtractors = []htmlExtractor{
	{"render_data", extractRenderData},
	{"ssr_data", extractSSRData},
	{"sigi_state", extractSIGIState},
	{"json_ld", extractJSONLD},
	{"meta_tags", extractMetaTags},
}

// ExtractFromHTML 依次运行页面提取器, 返回第一个命中的详情文档及提取器名称
func ExtractFromHTML(body []byte) (map[string]any, string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, "", err
	}

	for _, ex := range htmlExtractors {
		if found := ex.fn(doc); found != nil {
			return found, ex.name, nil
		}
	}
	return nil, "", utils.ErrNoData
}

// ParseHTML 从页面提取并标准化元数据
func ParseHTML(body []byte) (*models.VideoMetadata, error) {
	doc, _, err := ExtractFromHTML(body)
	if err != nil {
		return nil, err
	}
	return NormalizeAwemeDetail(doc)
}

// extractRenderData <script id="RENDER_DATA"> 内为URL编码的JSON
func extractRenderData(doc *goquery.Document) map[string]any {
	raw := strings.TrimSpace(doc.Find("script#RENDER_DATA").First().Text())
	if raw == "" {
		return nil
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return nil
	}
	v, err := decodeJSON(strings.NewReader(decoded))
	if err != nil {
		return nil
	}
	data, ok := v.(map[string]any)
	if !ok {
		return nil
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !strings.Contains(strings.ToLower(k), "aweme") {
			continue
		}
		section, ok := data[k].(map[string]any)
		if !ok {
			continue
		}
		if d, ok := section["detail"].(map[string]any); ok {
			return map[string]any{"aweme_detail": d}
		}
		if d, ok := section["aweme_detail"].(map[string]any); ok {
			return map[string]any{"aweme_detail": d}
		}
	}

	if d := findDetail(data, 0); d != nil {
		return map[string]any{"aweme_detail": d}
	}
	return nil
}

// extractSSRData window._SSR_DATA = {...}
func extractSSRData(doc *goquery.Document) map[string]any {
	data := assignedObject(doc, ssrAssign)
	if data == nil {
		return nil
	}
	if aweme, ok := data["aweme"].(map[string]any); ok {
		if d, ok := aweme["detail"].(map[string]any); ok {
			return map[string]any{"aweme_detail": d}
		}
	}
	return nil
}

// extractSIGIState window.SIGI_STATE = {...} 或 <script id="SIGI_STATE">
func extractSIGIState(doc *goquery.Document) map[string]any {
	data := assignedObject(doc, sigiAssign)
	if data == nil {
		raw := strings.TrimSpace(doc.Find("script#SIGI_STATE").First().Text())
		if raw == "" {
			return nil
		}
		v, err := decodeJSON(strings.NewReader(raw))
		if err != nil {
			return nil
		}
		data, _ = v.(map[string]any)
	}
	if data == nil {
		return nil
	}

	items, ok := data["ItemModule"].(map[string]any)
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if item, ok := items[id].(map[string]any); ok && len(item) > 0 {
			return map[string]any{"aweme_detail": item}
		}
	}
	return nil
}

// extractJSONLD schema.org VideoObject
func extractJSONLD(doc *goquery.Document) map[string]any {
	var found map[string]any
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		v, err := decodeJSON(strings.NewReader(s.Text()))
		if err != nil {
			return true
		}
		obj, ok := v.(map[string]any)
		if !ok || asString(obj["@type"]) != "VideoObject" {
			return true
		}
		contentURL := asString(obj["contentUrl"])
		if contentURL == "" {
			return true
		}

		authorName := ""
		if a, ok := obj["author"].(map[string]any); ok {
			authorName = asString(a["name"])
		}
		var likes any
		switch st := obj["interactionStatistic"].(type) {
		case map[string]any:
			likes = st["userInteractionCount"]
		case []any:
			if len(st) > 0 {
				if m, ok := st[0].(map[string]any); ok {
					likes = m["userInteractionCount"]
				}
			}
		}

		video := map[string]any{
			"play_addr": map[string]any{"url_list": []any{contentURL}},
		}
		if thumb := thumbnailURL(obj["thumbnailUrl"]); thumb != "" {
			video["cover"] = map[string]any{"url_list": []any{thumb}}
		}

		found = map[string]any{"aweme_detail": map[string]any{
			"desc":       firstString(obj, "description", "name"),
			"author":     map[string]any{"nickname": authorName},
			"video":      video,
			"statistics": map[string]any{"digg_count": likes},
		}}
		return false
	})
	return found
}

// extractMetaTags og: 标签中的基本信息
func extractMetaTags(doc *goquery.Document) map[string]any {
	detail := map[string]any{}

	if title, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && title != "" {
		detail["desc"] = title
	}

	video := map[string]any{}
	videoURL, _ := doc.Find(`meta[property="og:video:url"]`).Attr("content")
	if videoURL == "" {
		videoURL, _ = doc.Find(`meta[property="og:video"]`).Attr("content")
	}
	if videoURL != "" {
		video["play_addr"] = map[string]any{"url_list": []any{videoURL}}
	}
	if image, ok := doc.Find(`meta[property="og:image"]`).Attr("content"); ok && image != "" {
		video["cover"] = map[string]any{"url_list": []any{image}}
	}
	if len(video) > 0 {
		detail["video"] = video
	}

	if author, ok := doc.Find(`meta[name="author"]`).Attr("content"); ok && author != "" {
		detail["author"] = map[string]any{"nickname": author}
	}

	if _, hasDesc := detail["desc"]; !hasDesc && videoURL == "" {
		return nil
	}
	return map[string]any{"aweme_detail": detail}
}

// assignedObject 在脚本中查找 window.X = {...} 并解码第一个JSON值
func assignedObject(doc *goquery.Document, assign *regexp.Regexp) map[string]any {
	var found map[string]any
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		loc := assign.FindStringIndex(text)
		if loc == nil {
			return true
		}
		dec := json.NewDecoder(strings.NewReader(text[loc[1]:]))
		dec.UseNumber()
		var v map[string]any
		if err := dec.Decode(&v); err != nil {
			return true
		}
		found = v
		return false
	})
	return found
}

func thumbnailURL(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		if len(t) > 0 {
			return asString(t[0])
		}
	}
	return ""
}
