package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/emrgen/mediakit/internal/document"
)

// Template is a starter layout a new media kit can be built from.
type Template struct {
	Name     string            `json:"name"`
	Label    string            `json:"label"`
	Theme    string            `json:"theme"`
	Sections []TemplateSection `json:"sections"`
}

// TemplateSection is one section of a template.
type TemplateSection struct {
	Type       string              `json:"type"`
	Layout     document.Layout     `json:"layout"`
	Components []TemplateComponent `json:"components"`
}

// TemplateComponent seeds one component; Column is used by columned layouts.
type TemplateComponent struct {
	Type   string         `json:"type"`
	Column string         `json:"column,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
}

// Build instantiates the template as a fresh document with new ids.
func (t Template) Build() *document.Document {
	doc := document.New()
	if t.Theme != "" {
		doc.Theme = &document.Theme{ID: t.Theme}
	}

	now := time.Now().UTC()
	for i, ts := range t.Sections {
		section := &document.Section{
			ID:       document.NewSectionID(),
			Type:     ts.Type,
			Layout:   ts.Layout,
			Order:    i,
			Settings: map[string]any{},
		}

		cols := ts.Layout.Columns()
		if len(cols) > 0 {
			empty := make(map[string][]string, len(cols))
			for _, col := range cols {
				empty[col] = []string{}
			}
			section.Components = document.Columns(empty)
		} else {
			section.Components = document.Flat()
		}

		for _, tc := range ts.Components {
			data := make(map[string]any, len(tc.Data))
			for k, v := range tc.Data {
				data[k] = v
			}

			c := &document.Component{
				ID:   document.NewComponentID(),
				Type: tc.Type,
				Data: data,
				Metadata: &document.ComponentMetadata{
					CreatedAt:     now,
					UpdatedAt:     now,
					SchemaVersion: document.CurrentVersion,
				},
			}
			doc.Components[c.ID] = c

			column := tc.Column
			if column == "" && len(cols) > 0 {
				column = cols[0]
			}
			section.Components = section.Components.Append(column, c.ID)
		}

		doc.Sections = append(doc.Sections, section)
	}

	return doc
}

// TemplateRegistry is the catalog of starter templates.
type TemplateRegistry struct {
	mu        sync.RWMutex
	templates map[string]Template
}

// NewTemplateRegistry builds a registry from the given templates.
func NewTemplateRegistry(templates ...Template) *TemplateRegistry {
	r := &TemplateRegistry{templates: make(map[string]Template, len(templates))}
	for _, t := range templates {
		r.Register(t)
	}

	return r
}

// DefaultTemplateRegistry returns the built-in templates.
func DefaultTemplateRegistry() *TemplateRegistry {
	return NewTemplateRegistry(
		Template{Name: "basic", Label: "Basic", Theme: "default", Sections: []TemplateSection{
			{Type: "hero", Layout: document.LayoutFullWidth, Components: []TemplateComponent{{Type: "hero"}}},
			{Type: "biography", Layout: document.LayoutFullWidth, Components: []TemplateComponent{{Type: "biography"}}},
		}},
		Template{Name: "minimal", Label: "Minimal", Theme: "minimal", Sections: []TemplateSection{
			{Type: "hero", Layout: document.LayoutFullWidth, Components: []TemplateComponent{{Type: "hero"}}},
			{Type: "contact", Layout: document.LayoutFullWidth, Components: []TemplateComponent{{Type: "contact"}}},
		}},
		Template{Name: "podcast-guest", Label: "Podcast Guest", Theme: "modern", Sections: []TemplateSection{
			{Type: "hero", Layout: document.LayoutFullWidth, Components: []TemplateComponent{{Type: "hero"}}},
			{Type: "content", Layout: document.LayoutTwoColumn, Components: []TemplateComponent{
				{Type: "biography", Column: "column-1"},
				{Type: "topics", Column: "column-2"},
			}},
			{Type: "questions", Layout: document.LayoutFullWidth, Components: []TemplateComponent{{Type: "questions"}}},
		}},
		Template{Name: "speaker", Label: "Professional Speaker", Theme: "bold", Sections: []TemplateSection{
			{Type: "hero", Layout: document.LayoutFullWidth, Components: []TemplateComponent{{Type: "hero"}}},
			{Type: "content", Layout: document.LayoutMainSidebar, Components: []TemplateComponent{
				{Type: "biography", Column: "main"},
				{Type: "social", Column: "sidebar"},
			}},
			{Type: "testimonials", Layout: document.LayoutFullWidth, Components: []TemplateComponent{{Type: "testimonials"}}},
		}},
	)
}

// Register adds or replaces a template.
func (r *TemplateRegistry) Register(t Template) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[t.Name] = t
}

// Lookup returns the template with the given name.
func (r *TemplateRegistry) Lookup(name string) (Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[name]
	return t, ok
}

// Names returns the template names in sorted order.
func (r *TemplateRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
