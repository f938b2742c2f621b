package registry

import (
	"sort"
	"sync"
)

// Unlimited marks a section type without an instance cap.
const Unlimited = -1

// Section categories.
const (
	CategoryEssential = "essential"
	CategoryContent   = "content"
	CategoryMedia     = "media"
	CategoryPremium   = "premium"
)

// SectionType describes one kind of section.
type SectionType struct {
	Type         string `json:"type"`
	Label        string `json:"label"`
	MaxInstances int    `json:"max_instances"`
	Category     string `json:"category"`
}

// Premium reports whether the type needs the premium_sections feature.
func (s SectionType) Premium() bool {
	return s.Category == CategoryPremium
}

// Allows reports whether one more instance fits given the current count.
func (s SectionType) Allows(current int) bool {
	return s.MaxInstances == Unlimited || current < s.MaxInstances
}

// SectionRegistry is the catalog of section types.
type SectionRegistry struct {
	mu    sync.RWMutex
	types map[string]SectionType
}

// NewSectionRegistry builds a registry from the given types.
func NewSectionRegistry(types ...SectionType) *SectionRegistry {
	r := &SectionRegistry{types: make(map[string]SectionType, len(types))}
	for _, t := range types {
		r.Register(t)
	}

	return r
}

// DefaultSectionRegistry returns the built-in section catalog.
func DefaultSectionRegistry() *SectionRegistry {
	return NewSectionRegistry(
		SectionType{Type: "hero", Label: "Hero", MaxInstances: 1, Category: CategoryEssential},
		SectionType{Type: "biography", Label: "Biography", MaxInstances: 1, Category: CategoryEssential},
		SectionType{Type: "contact", Label: "Contact", MaxInstances: 1, Category: CategoryEssential},
		SectionType{Type: "content", Label: "Content", MaxInstances: Unlimited, Category: CategoryContent},
		SectionType{Type: "topics", Label: "Topics", MaxInstances: 1, Category: CategoryContent},
		SectionType{Type: "questions", Label: "Interview Questions", MaxInstances: 2, Category: CategoryContent},
		SectionType{Type: "gallery", Label: "Gallery", MaxInstances: Unlimited, Category: CategoryMedia},
		SectionType{Type: "video", Label: "Video", MaxInstances: 3, Category: CategoryMedia},
		SectionType{Type: "podcast", Label: "Podcast", MaxInstances: 3, Category: CategoryMedia},
		SectionType{Type: "testimonials", Label: "Testimonials", MaxInstances: 1, Category: CategoryPremium},
		SectionType{Type: "stats", Label: "Statistics", MaxInstances: 1, Category: CategoryPremium},
		SectionType{Type: "booking", Label: "Booking", MaxInstances: 1, Category: CategoryPremium},
	)
}

// Register adds or replaces a section type.
func (r *SectionRegistry) Register(t SectionType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[t.Type] = t
}

// Lookup returns the section type with the given name.
func (r *SectionRegistry) Lookup(name string) (SectionType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	return t, ok
}

// All returns every section type sorted by name.
func (r *SectionRegistry) All() []SectionType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]SectionType, 0, len(r.types))
	for _, t := range r.types {
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Type < all[j].Type })

	return all
}
