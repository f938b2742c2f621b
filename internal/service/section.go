package service

import (
	"context"
	"fmt"
	"time"

	"github.com/emrgen/mediakit/internal/access"
	"github.com/emrgen/mediakit/internal/document"
	"github.com/emrgen/mediakit/internal/events"
	"github.com/emrgen/mediakit/internal/identity"
)

type sectionOptions struct {
	position int
	tier     access.Tier
}

// SectionOption configures AddSection.
type SectionOption func(*sectionOptions)

// AtPosition inserts the section at index i. Out of range positions append.
func AtPosition(i int) SectionOption {
	return func(o *sectionOptions) {
		o.position = i
	}
}

// ForTier gates premium section types and the component limit by tier.
func ForTier(tier access.Tier) SectionOption {
	return func(o *sectionOptions) {
		o.tier = tier
	}
}

// SectionUpdate changes a section. Nil fields are left untouched; Settings
// are merged key by key unless ReplaceSettings is set.
type SectionUpdate struct {
	Layout          *document.Layout
	Settings        map[string]any
	ReplaceSettings bool
}

// AddSection inserts a new section built from data. The section gets a new
// id; its type must exist and still have room under the per-document
// instance cap.
func (s *BuilderService) AddSection(ctx context.Context, ref identity.ContextRef, data document.Section, opts ...SectionOption) (section *document.Section, err error) {
	defer s.observe("add_section", time.Now(), &err)

	o := sectionOptions{position: -1}
	for _, opt := range opts {
		opt(&o)
	}

	st, ok := s.sections.Lookup(data.Type)
	if !ok {
		return nil, invalid("type", document.CodeUnknownSectionType, fmt.Sprintf("unknown section type %q", data.Type))
	}
	if o.tier != "" && st.Premium() && !s.policy.CanAccessFeature(o.tier, access.FeaturePremiumSections) {
		return nil, denied("section type %q requires %s", data.Type, access.FeaturePremiumSections)
	}

	layout := data.Layout
	if layout == "" {
		layout = document.LayoutFullWidth
	}
	if !layout.Known() {
		return nil, invalid("layout", document.CodeUnknownLayout, fmt.Sprintf("unknown layout %q", layout))
	}

	section = &document.Section{
		ID:         document.NewSectionID(),
		Type:       data.Type,
		Layout:     data.Layout,
		Settings:   copyMap(data.Settings),
		Components: data.Components,
	}
	section.Reshape(layout)

	_, err = s.mutate(ctx, ref, SaveOptions{Kind: SaveSectionAdd, Tier: o.tier}, func(doc *document.Document) error {
		if n := doc.CountSections(data.Type); !st.Allows(n) {
			return denied("section type %q allows at most %d instances", data.Type, st.MaxInstances)
		}

		pos := o.position
		if pos < 0 || pos > len(doc.Sections) {
			pos = len(doc.Sections)
		}
		doc.Sections = append(doc.Sections, nil)
		copy(doc.Sections[pos+1:], doc.Sections[pos:])
		doc.Sections[pos] = section

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, events.New(events.SectionAdded, ref.String(), map[string]string{
		"section_id": section.ID,
		"type":       section.Type,
	}))

	return section, nil
}

// UpdateSection changes the layout or settings of a section.
func (s *BuilderService) UpdateSection(ctx context.Context, ref identity.ContextRef, sectionID string, update SectionUpdate) (section *document.Section, err error) {
	defer s.observe("update_section", time.Now(), &err)

	if update.Layout != nil && !update.Layout.Known() {
		return nil, invalid("layout", document.CodeUnknownLayout, fmt.Sprintf("unknown layout %q", *update.Layout))
	}

	_, err = s.mutate(ctx, ref, SaveOptions{Kind: SaveSectionUpdate}, func(doc *document.Document) error {
		var ok bool
		section, ok = doc.Section(sectionID)
		if !ok {
			return ErrSectionNotFound
		}

		if update.Layout != nil {
			section.Reshape(*update.Layout)
		}

		switch {
		case update.ReplaceSettings:
			section.Settings = copyMap(update.Settings)
		case update.Settings != nil:
			if section.Settings == nil {
				section.Settings = make(map[string]any, len(update.Settings))
			}
			for k, v := range update.Settings {
				section.Settings[k] = v
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, events.New(events.SectionUpdated, ref.String(), map[string]string{"section_id": sectionID}))

	return section, nil
}

// DeleteSection removes a section. Its components stay in the document
// until PruneOrphans runs.
func (s *BuilderService) DeleteSection(ctx context.Context, ref identity.ContextRef, sectionID string) (err error) {
	defer s.observe("delete_section", time.Now(), &err)

	_, err = s.mutate(ctx, ref, SaveOptions{Kind: SaveSectionDelete}, func(doc *document.Document) error {
		i := doc.SectionIndex(sectionID)
		if i < 0 {
			return ErrSectionNotFound
		}
		doc.Sections = append(doc.Sections[:i], doc.Sections[i+1:]...)

		return nil
	})
	if err != nil {
		return err
	}

	s.notifier.Notify(ctx, events.New(events.SectionDeleted, ref.String(), map[string]string{"section_id": sectionID}))

	return nil
}

// ReorderSections puts the listed sections first, in the given order.
// Unknown ids are ignored and unlisted sections follow in their current
// order. It returns the resulting section ids.
func (s *BuilderService) ReorderSections(ctx context.Context, ref identity.ContextRef, ids []string) (order []string, err error) {
	defer s.observe("reorder_sections", time.Now(), &err)

	doc, err := s.mutate(ctx, ref, SaveOptions{Kind: SaveSectionReorder}, func(doc *document.Document) error {
		doc.Sections = reorder(doc.Sections, ids)
		return nil
	})
	if err != nil {
		return nil, err
	}

	order = make([]string, 0, len(doc.Sections))
	for _, section := range doc.Sections {
		order = append(order, section.ID)
	}
	s.notifier.Notify(ctx, events.New(events.SectionsReordered, ref.String(), nil))

	return order, nil
}

func reorder(sections []*document.Section, ids []string) []*document.Section {
	byID := make(map[string]*document.Section, len(sections))
	for _, section := range sections {
		byID[section.ID] = section
	}

	placed := make(map[string]bool, len(sections))
	next := make([]*document.Section, 0, len(sections))
	for _, id := range ids {
		if section, ok := byID[id]; ok && !placed[id] {
			next = append(next, section)
			placed[id] = true
		}
	}
	for _, section := range sections {
		if !placed[section.ID] {
			next = append(next, section)
		}
	}

	return next
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}

	return out
}
