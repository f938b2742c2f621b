package render

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"

	"github.com/emrgen/mediakit/internal/document"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

const (
	defaultWidth  = 1240
	defaultHeight = 1754
)

// HTML renders documents as standalone HTML pages.
type HTML struct {
	templates *template.Template
	markdown  goldmark.Markdown
	sanitizer *bluemonday.Policy
}

func NewHTML() (*HTML, error) {
	h := &HTML{
		markdown:  goldmark.New(),
		sanitizer: bluemonday.UGCPolicy(),
	}

	t, err := template.New("page").Funcs(template.FuncMap{
		"markdown": h.renderMarkdown,
		"text":     text,
		"list":     list,
	}).Parse(pageTemplate)
	if err != nil {
		return nil, err
	}
	if _, err = t.Parse(componentTemplates); err != nil {
		return nil, err
	}
	h.templates = t

	return h, nil
}

type pageView struct {
	Title     string
	Theme     string
	Watermark bool
	Sections  []sectionView
}

type sectionView struct {
	ID      string
	Type    string
	Layout  string
	Columns []columnView
}

type columnView struct {
	Name       string
	Components []template.HTML
}

// Page renders the full HTML document.
func (h *HTML) Page(doc *document.Document, opts Options) ([]byte, error) {
	return h.execute("page", doc, opts)
}

// Body renders only the page body.
func (h *HTML) Body(doc *document.Document, opts Options) ([]byte, error) {
	return h.execute("body", doc, opts)
}

// SVG embeds the page body in an SVG foreignObject.
func (h *HTML) SVG(doc *document.Document, opts Options) ([]byte, error) {
	body, err := h.Body(doc, opts)
	if err != nil {
		return nil, err
	}

	width, height := opts.Width, opts.Height
	if width <= 0 {
		width = defaultWidth
	}
	if height <= 0 {
		height = defaultHeight
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`, width, height, width, height)
	buf.WriteString(`<foreignObject width="100%" height="100%"><div xmlns="http://www.w3.org/1999/xhtml">`)
	buf.Write(body)
	buf.WriteString(`</div></foreignObject></svg>`)

	return buf.Bytes(), nil
}

func (h *HTML) execute(name string, doc *document.Document, opts Options) ([]byte, error) {
	view, err := h.view(doc, opts)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err = h.templates.ExecuteTemplate(&buf, name, view); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (h *HTML) view(doc *document.Document, opts Options) (*pageView, error) {
	if doc.IsLegacy() {
		migrated, err := document.Migrate(doc)
		if err != nil {
			return nil, err
		}
		doc = migrated
	}

	view := &pageView{
		Title:     opts.Title,
		Watermark: opts.Watermark,
	}
	if view.Title == "" {
		view.Title = "Media Kit"
	}
	if doc.Theme != nil {
		view.Theme = doc.Theme.ID
	}

	for _, s := range doc.Sections {
		if s == nil {
			continue
		}

		sv := sectionView{ID: s.ID, Type: s.Type, Layout: string(s.Layout)}
		if s.Components.IsColumns() {
			names := s.Layout.Columns()
			if len(names) == 0 {
				names = s.Components.ColumnNames()
			}
			for _, name := range names {
				col, err := h.column(doc, name, s.Components.Column(name))
				if err != nil {
					return nil, err
				}
				sv.Columns = append(sv.Columns, col)
			}
		} else {
			col, err := h.column(doc, "main", s.Components.Flat())
			if err != nil {
				return nil, err
			}
			sv.Columns = append(sv.Columns, col)
		}

		view.Sections = append(view.Sections, sv)
	}

	return view, nil
}

func (h *HTML) column(doc *document.Document, name string, ids []string) (columnView, error) {
	col := columnView{Name: name}
	for _, id := range ids {
		c, ok := doc.Components[id]
		if !ok || c == nil {
			continue
		}

		out, err := h.component(c)
		if err != nil {
			return col, fmt.Errorf("component %s: %w", id, err)
		}
		col.Components = append(col.Components, out)
	}

	return col, nil
}

func (h *HTML) component(c *document.Component) (template.HTML, error) {
	name := "component/" + c.Type
	if h.templates.Lookup(name) == nil {
		name = "component/generic"
	}

	data := c.Data
	if data == nil {
		data = map[string]any{}
	}

	var buf bytes.Buffer
	err := h.templates.ExecuteTemplate(&buf, name, struct {
		ID   string
		Type string
		Data map[string]any
		Keys []string
	}{ID: c.ID, Type: c.Type, Data: data, Keys: keys(data)})
	if err != nil {
		return "", err
	}

	// the buffer holds output of html/template, already escaped
	return template.HTML(buf.String()), nil
}

func (h *HTML) renderMarkdown(v any) template.HTML {
	var buf bytes.Buffer
	if err := h.markdown.Convert([]byte(text(v)), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text(v)))
	}

	return template.HTML(h.sanitizer.Sanitize(buf.String()))
}

func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case map[string]any:
		for _, k := range []string{"label", "title", "name", "url", "text"} {
			if s, ok := t[k].(string); ok {
				return s
			}
		}
		return ""
	default:
		return fmt.Sprint(t)
	}
}

func list(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := text(item); s != "" {
			out = append(out, s)
		}
	}

	return out
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)

	return out
}
