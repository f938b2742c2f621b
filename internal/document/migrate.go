package document

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/Masterminds/semver"
)

// MigratedSectionType is the type of the section wrapping legacy components.
const MigratedSectionType = "content"

// Migrate upgrades a legacy flat-component document to the section schema.
// Documents already at CurrentVersion or newer are returned unchanged, so
// Migrate(Migrate(d)) equals Migrate(d).
func Migrate(doc *Document) (*Document, error) {
	if doc == nil {
		return nil, ErrMalformed
	}
	if !doc.IsLegacy() {
		return doc, nil
	}

	next := New()
	next.Theme = doc.Theme
	next.Layout = doc.Layout
	if doc.Settings != nil {
		next.Settings = doc.Settings
	}

	ids := legacyOrder(doc)
	if len(ids) == 0 {
		return next, nil
	}

	now := time.Now().UTC()
	for _, id := range ids {
		c := *doc.Components[id]
		meta := ComponentMetadata{CreatedAt: now, UpdatedAt: now}
		if c.Metadata != nil {
			meta = *c.Metadata
		}
		meta.SchemaVersion = CurrentVersion
		c.Metadata = &meta
		next.Components[id] = &c
	}

	next.Sections = append(next.Sections, &Section{
		ID:         NewSectionID(),
		Type:       MigratedSectionType,
		Layout:     LayoutFullWidth,
		Order:      0,
		Settings:   map[string]any{},
		Components: Flat(ids...),
	})

	return next, nil
}

// legacyOrder orders legacy components by the layout id list when the
// document carries one, then by declaration order.
func legacyOrder(doc *Document) []string {
	ids := make([]string, 0, len(doc.Components))
	seen := make(map[string]bool)

	var layout []string
	if err := json.Unmarshal(doc.Layout, &layout); err == nil {
		for _, id := range layout {
			if c := doc.Components[id]; c != nil && !seen[id] {
				ids = append(ids, id)
				seen[id] = true
			}
		}
	}

	for _, id := range doc.LegacyOrder() {
		if c := doc.Components[id]; c != nil && !seen[id] {
			ids = append(ids, id)
			seen[id] = true
		}
	}

	return ids
}

// atLeast compares two schema versions. Unparseable versions are treated
// as legacy.
func atLeast(version, min string) bool {
	version = strings.TrimSpace(version)
	if version == "" {
		return false
	}

	v, err := semver.NewVersion(version)
	if err != nil {
		return false
	}

	m, err := semver.NewVersion(min)
	if err != nil {
		return false
	}

	return !v.LessThan(m)
}
