package document

import (
	"encoding/json"
	"sort"
)

// Layout names how a section arranges its components.
type Layout string

const (
	LayoutFullWidth   Layout = "full-width"
	LayoutTwoColumn   Layout = "two-column"
	LayoutThreeColumn Layout = "three-column"
	LayoutMainSidebar Layout = "main-sidebar"
)

var layoutColumns = map[Layout][]string{
	LayoutFullWidth:   nil,
	LayoutTwoColumn:   {"column-1", "column-2"},
	LayoutThreeColumn: {"column-1", "column-2", "column-3"},
	LayoutMainSidebar: {"main", "sidebar"},
}

// Known reports whether the layout is registered.
func (l Layout) Known() bool {
	_, ok := layoutColumns[l]
	return ok
}

// Columns returns the column names of a columned layout, nil for flat ones.
func (l Layout) Columns() []string {
	return append([]string(nil), layoutColumns[l]...)
}

// Columned reports whether components are grouped by column.
func (l Layout) Columned() bool {
	return len(layoutColumns[l]) > 0
}

// Section is a layout unit holding an ordered list of component references.
type Section struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Layout     Layout            `json:"layout"`
	Order      int               `json:"order"`
	Settings   map[string]any    `json:"settings"`
	Components SectionComponents `json:"components"`
}

// ComponentIDs returns the referenced ids, columns in layout order.
func (s *Section) ComponentIDs() []string {
	if !s.Components.IsColumns() {
		return s.Components.Flat()
	}

	ids := make([]string, 0)
	seen := make(map[string]bool)
	for _, col := range s.Layout.Columns() {
		ids = append(ids, s.Components.Column(col)...)
		seen[col] = true
	}
	for _, col := range s.Components.ColumnNames() {
		if !seen[col] {
			ids = append(ids, s.Components.Column(col)...)
		}
	}

	return ids
}

// Reshape changes the section layout keeping every referenced id. Ids in
// columns the new layout does not have move to its last column.
func (s *Section) Reshape(layout Layout) {
	ids := s.ComponentIDs()
	cols := layout.Columns()

	switch {
	case len(cols) == 0:
		s.Components = Flat(ids...)
	case !s.Components.IsColumns():
		next := make(map[string][]string, len(cols))
		for _, col := range cols {
			next[col] = []string{}
		}
		next[cols[0]] = ids
		s.Components = Columns(next)
	default:
		next := make(map[string][]string, len(cols))
		for _, col := range cols {
			next[col] = s.Components.Column(col)
		}
		last := cols[len(cols)-1]
		for _, col := range s.Components.ColumnNames() {
			if _, ok := next[col]; !ok {
				next[last] = append(next[last], s.Components.Column(col)...)
			}
		}
		s.Components = Columns(next)
	}

	s.Layout = layout
}

func (s Section) MarshalJSON() ([]byte, error) {
	type wire Section
	w := wire(s)
	if w.Settings == nil {
		w.Settings = map[string]any{}
	}

	return json.Marshal(w)
}

func (s *Section) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID         string            `json:"id"`
		Type       string            `json:"type"`
		Layout     Layout            `json:"layout"`
		Order      int               `json:"order"`
		Settings   json.RawMessage   `json:"settings"`
		Components SectionComponents `json:"components"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return ErrMalformed
	}

	settings, err := decodeObject(raw.Settings)
	if err != nil {
		return err
	}
	if settings == nil {
		settings = map[string]any{}
	}

	*s = Section{
		ID:         raw.ID,
		Type:       raw.Type,
		Layout:     raw.Layout,
		Order:      raw.Order,
		Settings:   settings,
		Components: raw.Components,
	}

	return nil
}

// SectionComponents is either a flat ordered id list or a mapping from
// column name to an ordered id list.
type SectionComponents struct {
	flat    []string
	columns map[string][]string
}

// Flat builds a flat component list.
func Flat(ids ...string) SectionComponents {
	return SectionComponents{flat: append(make([]string, 0, len(ids)), ids...)}
}

// Columns builds a per-column component mapping.
func Columns(cols map[string][]string) SectionComponents {
	c := make(map[string][]string, len(cols))
	for name, ids := range cols {
		c[name] = append(make([]string, 0, len(ids)), ids...)
	}

	return SectionComponents{columns: c}
}

// IsColumns reports whether the components are grouped by column.
func (c SectionComponents) IsColumns() bool {
	return c.columns != nil
}

// Flat returns a copy of the flat list (nil for columned components).
func (c SectionComponents) Flat() []string {
	if c.columns != nil {
		return nil
	}

	return append(make([]string, 0, len(c.flat)), c.flat...)
}

// Column returns a copy of the ids in one column.
func (c SectionComponents) Column(name string) []string {
	return append(make([]string, 0, len(c.columns[name])), c.columns[name]...)
}

// ColumnNames returns the column names in sorted order.
func (c SectionComponents) ColumnNames() []string {
	names := make([]string, 0, len(c.columns))
	for name := range c.columns {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Len returns the number of references.
func (c SectionComponents) Len() int {
	if c.columns == nil {
		return len(c.flat)
	}

	n := 0
	for _, ids := range c.columns {
		n += len(ids)
	}

	return n
}

// Append adds an id to the flat list or to the named column.
func (c SectionComponents) Append(column, id string) SectionComponents {
	if c.columns == nil {
		return Flat(append(c.Flat(), id)...)
	}

	next := Columns(c.columns)
	next.columns[column] = append(next.columns[column], id)

	return next
}

// Contains reports whether the id is referenced.
func (c SectionComponents) Contains(id string) bool {
	if c.columns == nil {
		for _, ref := range c.flat {
			if ref == id {
				return true
			}
		}
		return false
	}

	for _, ids := range c.columns {
		for _, ref := range ids {
			if ref == id {
				return true
			}
		}
	}

	return false
}

func (c SectionComponents) MarshalJSON() ([]byte, error) {
	if c.columns != nil {
		return json.Marshal(c.columns)
	}
	if c.flat == nil {
		return []byte("[]"), nil
	}

	return json.Marshal(c.flat)
}

func (c *SectionComponents) UnmarshalJSON(data []byte) error {
	switch firstByte(data) {
	case 'n':
		*c = Flat()
		return nil
	case '[':
		var ids []string
		if err := json.Unmarshal(data, &ids); err != nil {
			return ErrMalformed
		}
		*c = Flat(ids...)
		return nil
	case '{':
		var cols map[string][]string
		if err := json.Unmarshal(data, &cols); err != nil {
			return ErrMalformed
		}
		*c = Columns(cols)
		return nil
	default:
		return ErrMalformed
	}
}
