package strategy

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vasset/parsing-service/internal/utils"
)

func renderDataPage() string {
	data := `{"app":{"x":1},"awemeDetail":{"detail":{"aweme_id":"7549035040701844779","desc":"from render","author":{"nickname":"A"},"video":{"play_addr":{"url_list":["https://x/playwm/1.mp4"]}}}}}`
	return `<html><head></head><body><script id="RENDER_DATA" type="application/json">` +
		url.PathEscape(data) + `</script></body></html>`
}

func TestExtractFromHTML_RenderData(t *testing.T) {
	meta, err := ParseHTML([]byte(renderDataPage()))
	require.NoError(t, err)
	assert.Equal(t, "7549035040701844779", meta.VideoID)
	assert.Equal(t, "from render", meta.Title)
	assert.Equal(t, "https://x/play/1.mp4", meta.VideoURL)

	_, name, err := ExtractFromHTML([]byte(renderDataPage()))
	require.NoError(t, err)
	assert.Equal(t, "render_data", name)
}

func TestExtractFromHTML_SSRData(t *testing.T) {
	page := `<html><body><script>window._SSR_DATA = {"aweme":{"detail":{"aweme_id":"1","desc":"ssr","author":{"nickname":"B"},"video":{"play_addr":{"url_list":["https://x/v.mp4"]}}}}};</script></body></html>`

	doc, name, err := ExtractFromHTML([]byte(page))
	require.NoError(t, err)
	assert.Equal(t, "ssr_data", name)

	meta, err := NormalizeAwemeDetail(doc)
	require.NoError(t, err)
	assert.Equal(t, "ssr", meta.Title)
	assert.Equal(t, "B", meta.Author)
}

func TestExtractFromHTML_SIGIState(t *testing.T) {
	page := `<html><body><script id="SIGI_STATE" type="application/json">{"ItemModule":{"7300000000000000001":{"id":"7300000000000000001","desc":"sigi","author":"tt","video":{"playAddr":"https://t/v.mp4"}}}}</script></body></html>`

	doc, name, err := ExtractFromHTML([]byte(page))
	require.NoError(t, err)
	assert.Equal(t, "sigi_state", name)

	meta, err := NormalizeAwemeDetail(doc)
	require.NoError(t, err)
	assert.Equal(t, "7300000000000000001", meta.VideoID)
	assert.Equal(t, "https://t/v.mp4", meta.VideoURL)
}

func TestExtractFromHTML_JSONLD(t *testing.T) {
	page := `<html><head><script type="application/ld+json">{"@type":"VideoObject","description":"ld desc","author":{"name":"C"},"contentUrl":"https://x/ld.mp4","thumbnailUrl":["https://x/t.jpg"],"interactionStatistic":{"userInteractionCount":42}}</script></head><body></body></html>`

	doc, name, err := ExtractFromHTML([]byte(page))
	require.NoError(t, err)
	assert.Equal(t, "json_ld", name)

	meta, err := NormalizeAwemeDetail(doc)
	require.NoError(t, err)
	assert.Equal(t, "ld desc", meta.Title)
	assert.Equal(t, "C", meta.Author)
	assert.Equal(t, "https://x/ld.mp4", meta.VideoURL)
	assert.Equal(t, "https://x/t.jpg", meta.CoverURL)
	assert.Equal(t, int64(42), meta.Statistics.Likes)
	assert.Empty(t, meta.VideoID)
}

func TestExtractFromHTML_MetaTags(t *testing.T) {
	page := `<html><head>
		<meta property="og:title" content="meta title">
		<meta property="og:video:url" content="https://x/og.mp4">
		<meta property="og:image" content="https://x/og.jpg">
		<meta name="author" content="D">
	</head><body></body></html>`

	doc, name, err := ExtractFromHTML([]byte(page))
	require.NoError(t, err)
	assert.Equal(t, "meta_tags", name)

	meta, err := NormalizeAwemeDetail(doc)
	require.NoError(t, err)
	assert.Equal(t, "meta title", meta.Title)
	assert.Equal(t, "D", meta.Author)
	assert.Equal(t, "https://x/og.mp4", meta.VideoURL)
	assert.Equal(t, "https://x/og.jpg", meta.CoverURL)
}

func TestExtractFromHTML_NothingFound(t *testing.T) {
	_, _, err := ExtractFromHTML([]byte(`<html><body><p>captcha</p></body></html>`))
	assert.ErrorIs(t, err, utils.ErrNoData)
}
