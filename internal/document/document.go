package document

import (
	"encoding/json"
)

const (
	// LegacyVersion is the schema of flat-component documents.
	LegacyVersion = "1.0"
	// CurrentVersion is the section-based schema.
	CurrentVersion = "2.0"
	// MaxComponents caps the number of referenced components in a document.
	MaxComponents = 100
)

// Document is a media kit: an ordered list of sections referencing
// components that are stored once in the components map.
type Document struct {
	Version    string
	Theme      *Theme
	Layout     json.RawMessage // copied through from legacy documents untouched
	Settings   map[string]any
	Sections   []*Section
	Components map[string]*Component

	// legacy documents keep their flat component order here
	order []string
}

// New returns an empty document in the current schema.
func New() *Document {
	return &Document{
		Version:    CurrentVersion,
		Settings:   map[string]any{},
		Sections:   make([]*Section, 0),
		Components: make(map[string]*Component),
	}
}

// IsLegacy reports whether the document predates sections.
func (d *Document) IsLegacy() bool {
	return !atLeast(d.Version, CurrentVersion)
}

// LegacyOrder returns the flat component order of a legacy document.
func (d *Document) LegacyOrder() []string {
	if len(d.order) > 0 {
		return append([]string(nil), d.order...)
	}

	return sortedKeys(d.Components)
}

// Renormalize rewrites every section order to its index.
func (d *Document) Renormalize() {
	for i, s := range d.Sections {
		s.Order = i
	}
}

// SectionIndex returns the position of the section with the given id, or -1.
func (d *Document) SectionIndex(id string) int {
	for i, s := range d.Sections {
		if s.ID == id {
			return i
		}
	}

	return -1
}

// Section returns the section with the given id.
func (d *Document) Section(id string) (*Section, bool) {
	i := d.SectionIndex(id)
	if i < 0 {
		return nil, false
	}

	return d.Sections[i], true
}

// CountSections returns how many sections have the given type.
func (d *Document) CountSections(sectionType string) int {
	n := 0
	for _, s := range d.Sections {
		if s.Type == sectionType {
			n++
		}
	}

	return n
}

// ReferencedIDs returns every component id referenced by a section, in
// section order. Legacy documents reference their whole flat list.
func (d *Document) ReferencedIDs() []string {
	if d.IsLegacy() {
		return d.LegacyOrder()
	}

	ids := make([]string, 0)
	for _, s := range d.Sections {
		ids = append(ids, s.ComponentIDs()...)
	}

	return ids
}

// ReferencedCount returns the number of component references.
func (d *Document) ReferencedCount() int {
	return len(d.ReferencedIDs())
}

// Orphans returns the ids of components no section references.
func (d *Document) Orphans() []string {
	referenced := make(map[string]struct{})
	for _, id := range d.ReferencedIDs() {
		referenced[id] = struct{}{}
	}

	orphans := make([]string, 0)
	for _, id := range sortedKeys(d.Components) {
		if _, ok := referenced[id]; !ok {
			orphans = append(orphans, id)
		}
	}

	return orphans
}

// PruneOrphans deletes unreferenced components and returns their ids.
func (d *Document) PruneOrphans() []string {
	orphans := d.Orphans()
	for _, id := range orphans {
		delete(d.Components, id)
	}

	return orphans
}

// Clone returns a deep copy through the wire format.
func (d *Document) Clone() (*Document, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}

	return Decode(data)
}

// Theme identifies the visual theme and its per-document overrides.
type Theme struct {
	ID        string
	Overrides map[string]any
}

func (t *Theme) MarshalJSON() ([]byte, error) {
	if len(t.Overrides) == 0 {
		return json.Marshal(t.ID)
	}

	return json.Marshal(struct {
		ID        string         `json:"id"`
		Overrides map[string]any `json:"overrides"`
	}{t.ID, t.Overrides})
}

func (t *Theme) UnmarshalJSON(data []byte) error {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		t.ID = id
		return nil
	}

	var obj struct {
		ID        string          `json:"id"`
		Overrides json.RawMessage `json:"overrides"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return ErrMalformed
	}

	overrides, err := decodeObject(obj.Overrides)
	if err != nil {
		return err
	}

	t.ID = obj.ID
	t.Overrides = overrides

	return nil
}
