package render

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/emrgen/mediakit/internal/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDoc() *document.Document {
	doc := document.New()
	doc.Theme = &document.Theme{ID: "modern"}
	doc.Components["hero"] = &document.Component{ID: "hero", Type: "hero", Data: map[string]any{"name": "Ada <Lovelace>", "title": "Speaker"}}
	doc.Components["bio"] = &document.Component{ID: "bio", Type: "biography", Data: map[string]any{"content": "**Bold** move <script>alert(1)</script>"}}
	doc.Components["topics"] = &document.Component{ID: "topics", Type: "topics", Data: map[string]any{"topics": []any{"Engines", "Poetry"}}}
	doc.Components["custom"] = &document.Component{ID: "custom", Type: "award", Data: map[string]any{"year": 1843}}
	doc.Sections = []*document.Section{
		{ID: "s1", Type: "hero", Layout: document.LayoutFullWidth, Components: document.Flat("hero")},
		{ID: "s2", Type: "content", Layout: document.LayoutTwoColumn, Order: 1, Components: document.Columns(map[string][]string{
			"column-1": {"bio"},
			"column-2": {"topics", "custom", "ghost"},
		})},
	}
	return doc
}

func TestHTML_Page(t *testing.T) {
	engine, err := NewEngine(nil)
	require.NoError(t, err)

	out, err := engine.Render(context.Background(), sampleDoc(), FormatHTML, Options{Title: "Ada"})
	require.NoError(t, err)
	page := string(out.Bytes)

	assert.Equal(t, "text/html; charset=utf-8", out.MimeType)
	assert.Contains(t, page, "<title>Ada</title>")
	assert.Contains(t, page, "Ada &lt;Lovelace&gt;")
	assert.Contains(t, page, "<strong>Bold</strong>")
	assert.NotContains(t, page, "<script>")
	assert.Contains(t, page, "<li>Engines</li>")
	assert.Contains(t, page, "<dt>year</dt><dd>1843</dd>")
	assert.Contains(t, page, "mk-column-column-2")
	assert.NotContains(t, page, "mk-watermark")
	assert.Less(t, strings.Index(page, `id="s1"`), strings.Index(page, `id="s2"`))
}

func TestHTML_Watermark(t *testing.T) {
	engine, err := NewEngine(nil)
	require.NoError(t, err)

	for _, format := range []string{FormatHTML, FormatSVG} {
		out, err := engine.Render(context.Background(), sampleDoc(), format, Options{Watermark: true})
		require.NoError(t, err)
		assert.Contains(t, string(out.Bytes), "mk-watermark", format)
	}
}

func TestHTML_SVG(t *testing.T) {
	engine, err := NewEngine(nil)
	require.NoError(t, err)

	out, err := engine.Render(context.Background(), sampleDoc(), FormatSVG, Options{Width: 800, Height: 600})
	require.NoError(t, err)
	svg := string(out.Bytes)

	assert.Equal(t, "image/svg+xml", out.MimeType)
	assert.True(t, strings.HasPrefix(svg, `<svg xmlns="http://www.w3.org/2000/svg" width="800" height="600"`))
	assert.Contains(t, svg, "<foreignObject")
	assert.NotContains(t, svg, "<!DOCTYPE")
}

func TestHTML_LegacyDocument(t *testing.T) {
	doc, err := document.Decode([]byte(`{"version":"1.0","settings":{},"layout":"standard","components":[{"id":"c1","type":"hero","data":{"name":"Legacy"}}]}`))
	require.NoError(t, err)

	h, err := NewHTML()
	require.NoError(t, err)
	page, err := h.Page(doc, Options{})
	require.NoError(t, err)
	assert.Contains(t, string(page), "<h1>Legacy</h1>")
}

func TestEngine_Formats(t *testing.T) {
	engine, err := NewEngine(nil)
	require.NoError(t, err)

	assert.True(t, engine.Supports(FormatHTML))
	assert.False(t, engine.Supports(FormatPDF))
	assert.False(t, engine.Supports("docx"))

	_, err = engine.Render(context.Background(), sampleDoc(), FormatPDF, Options{})
	assert.ErrorIs(t, err, ErrNoConverter)
	_, err = engine.Render(context.Background(), sampleDoc(), "docx", Options{})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestHTTPConverter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		switch r.URL.Path {
		case "/pdf":
			assert.Equal(t, "A4", r.URL.Query().Get("page_size"))
			assert.Contains(t, string(body), "mk-watermark")
			_, _ = w.Write([]byte("%PDF-1.7"))
		default:
			http.Error(w, "no such format", http.StatusNotFound)
		}
	}))
	defer server.Close()

	engine, err := NewEngine(NewHTTPConverter(server.URL, 0))
	require.NoError(t, err)
	require.True(t, engine.Supports(FormatPDF))

	out, err := engine.Render(context.Background(), sampleDoc(), FormatPDF, Options{Watermark: true, PageSize: "A4"})
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(out.Bytes))
	assert.Equal(t, "application/pdf", out.MimeType)

	_, err = engine.Render(context.Background(), sampleDoc(), FormatPNG, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
