package registry

import (
	"fmt"
	"net/mail"
	"net/url"
	"sort"
	"sync"

	"github.com/emrgen/mediakit/internal/document"
)

// Field kinds understood by the data validator.
const (
	FieldText  = "text"
	FieldURL   = "url"
	FieldEmail = "email"
	FieldList  = "list"
	FieldImage = "image"
)

// Field describes one entry of a component's data.
type Field struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Required  bool   `json:"required"`
	MaxLength int    `json:"max_length,omitempty"`
	MaxItems  int    `json:"max_items,omitempty"`
}

// ComponentType describes one kind of component and its data fields.
type ComponentType struct {
	Type    string  `json:"type"`
	Label   string  `json:"label"`
	Premium bool    `json:"premium"`
	Fields  []Field `json:"fields"`
}

// ComponentRegistry is the catalog of component types.
type ComponentRegistry struct {
	mu    sync.RWMutex
	types map[string]ComponentType
}

// NewComponentRegistry builds a registry from the given types.
func NewComponentRegistry(types ...ComponentType) *ComponentRegistry {
	r := &ComponentRegistry{types: make(map[string]ComponentType, len(types))}
	for _, t := range types {
		r.Register(t)
	}

	return r
}

// DefaultComponentRegistry returns the built-in component catalog.
func DefaultComponentRegistry() *ComponentRegistry {
	return NewComponentRegistry(
		ComponentType{Type: "hero", Label: "Hero", Fields: []Field{
			{Name: "name", Kind: FieldText, MaxLength: 120},
			{Name: "title", Kind: FieldText, MaxLength: 160},
			{Name: "tagline", Kind: FieldText, MaxLength: 280},
			{Name: "image", Kind: FieldImage},
		}},
		ComponentType{Type: "biography", Label: "Biography", Fields: []Field{
			{Name: "content", Kind: FieldText, MaxLength: 5000},
		}},
		ComponentType{Type: "topics", Label: "Topics", Fields: []Field{
			{Name: "topics", Kind: FieldList, MaxItems: 5},
		}},
		ComponentType{Type: "questions", Label: "Interview Questions", Fields: []Field{
			{Name: "questions", Kind: FieldList, MaxItems: 25},
		}},
		ComponentType{Type: "social", Label: "Social Links", Fields: []Field{
			{Name: "links", Kind: FieldList, MaxItems: 12},
		}},
		ComponentType{Type: "contact", Label: "Contact", Fields: []Field{
			{Name: "email", Kind: FieldEmail},
			{Name: "website", Kind: FieldURL},
		}},
		ComponentType{Type: "guest-intro", Label: "Guest Intro", Fields: []Field{
			{Name: "intro", Kind: FieldText, MaxLength: 1000},
		}},
		ComponentType{Type: "logo-grid", Label: "Logo Grid", Fields: []Field{
			{Name: "logos", Kind: FieldList, MaxItems: 24},
		}},
		ComponentType{Type: "call-to-action", Label: "Call to Action", Fields: []Field{
			{Name: "label", Kind: FieldText, MaxLength: 80},
			{Name: "url", Kind: FieldURL},
		}},
		ComponentType{Type: "video-intro", Label: "Video Intro", Fields: []Field{
			{Name: "url", Kind: FieldURL, Required: true},
		}},
		ComponentType{Type: "photo-gallery", Label: "Photo Gallery", Fields: []Field{
			{Name: "images", Kind: FieldList, MaxItems: 30},
		}},
		ComponentType{Type: "podcast-player", Label: "Podcast Player", Fields: []Field{
			{Name: "feed", Kind: FieldURL, Required: true},
		}},
		ComponentType{Type: "testimonials", Label: "Testimonials", Premium: true, Fields: []Field{
			{Name: "items", Kind: FieldList, MaxItems: 20},
		}},
		ComponentType{Type: "stats", Label: "Statistics", Premium: true, Fields: []Field{
			{Name: "items", Kind: FieldList, MaxItems: 8},
		}},
		ComponentType{Type: "booking-calendar", Label: "Booking Calendar", Premium: true, Fields: []Field{
			{Name: "url", Kind: FieldURL, Required: true},
		}},
	)
}

// Register adds or replaces a component type.
func (r *ComponentRegistry) Register(t ComponentType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[t.Type] = t
}

// Lookup returns the component type with the given name.
func (r *ComponentRegistry) Lookup(name string) (ComponentType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	return t, ok
}

// All returns every component type sorted by name.
func (r *ComponentRegistry) All() []ComponentType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]ComponentType, 0, len(r.types))
	for _, t := range r.types {
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Type < all[j].Type })

	return all
}

// ValidateData checks component data against the type's field definitions.
// Paths are relative to the component data. Unknown keys are allowed.
func (r *ComponentRegistry) ValidateData(componentType string, data map[string]any) []document.Violation {
	t, ok := r.Lookup(componentType)
	if !ok {
		return []document.Violation{{
			Code:    document.CodeUnknownComponentType,
			Message: fmt.Sprintf("unknown component type %q", componentType),
		}}
	}

	violations := make([]document.Violation, 0)
	for _, f := range t.Fields {
		path := "data." + f.Name
		value, present := data[f.Name]
		if !present || value == nil || value == "" {
			if f.Required {
				violations = append(violations, document.Violation{
					Path:    path,
					Code:    document.CodeMissingField,
					Message: fmt.Sprintf("%s is required", f.Name),
				})
			}
			continue
		}

		if msg := checkField(f, value); msg != "" {
			violations = append(violations, document.Violation{
				Path:    path,
				Code:    document.CodeInvalidField,
				Message: msg,
			})
		}
	}

	return violations
}

func checkField(f Field, value any) string {
	switch f.Kind {
	case FieldList:
		items, ok := value.([]any)
		if !ok {
			return fmt.Sprintf("%s must be a list", f.Name)
		}
		if f.MaxItems > 0 && len(items) > f.MaxItems {
			return fmt.Sprintf("%s allows at most %d items", f.Name, f.MaxItems)
		}
	case FieldURL, FieldImage:
		s, ok := value.(string)
		if !ok {
			return fmt.Sprintf("%s must be a string", f.Name)
		}
		u, err := url.Parse(s)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Sprintf("%s must be an absolute http(s) url", f.Name)
		}
	case FieldEmail:
		s, ok := value.(string)
		if !ok {
			return fmt.Sprintf("%s must be a string", f.Name)
		}
		if _, err := mail.ParseAddress(s); err != nil {
			return fmt.Sprintf("%s must be an email address", f.Name)
		}
	default:
		s, ok := value.(string)
		if !ok {
			return fmt.Sprintf("%s must be a string", f.Name)
		}
		if f.MaxLength > 0 && len([]rune(s)) > f.MaxLength {
			return fmt.Sprintf("%s exceeds %d characters", f.Name, f.MaxLength)
		}
	}

	return ""
}
