package validator

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/emrgen/mediakit/internal/document"
	"github.com/emrgen/mediakit/internal/registry"
)

var colorPattern = regexp.MustCompile(`(?i)^#[0-9a-f]{6}$`)

// DefaultFonts is the font allow-list applied to settings.fonts.
var DefaultFonts = []string{
	"Inter",
	"Roboto",
	"Open Sans",
	"Lato",
	"Montserrat",
	"Georgia",
	"Times New Roman",
}

// SectionTypes supplies section type definitions.
type SectionTypes interface {
	Lookup(name string) (registry.SectionType, bool)
}

// ComponentTypes supplies component type definitions and data validation.
type ComponentTypes interface {
	Lookup(name string) (registry.ComponentType, bool)
	ValidateData(componentType string, data map[string]any) []document.Violation
}

// Validator checks documents against the structural rules. It never fails;
// every rule is evaluated and all violations are returned.
type Validator struct {
	sections      SectionTypes
	components    ComponentTypes
	fonts         map[string]bool
	maxComponents int
}

// Option configures a Validator.
type Option func(*Validator)

// WithFonts replaces the font allow-list.
func WithFonts(fonts ...string) Option {
	return func(v *Validator) {
		v.fonts = make(map[string]bool, len(fonts))
		for _, f := range fonts {
			v.fonts[f] = true
		}
	}
}

// WithMaxComponents overrides the referenced component cap.
func WithMaxComponents(n int) Option {
	return func(v *Validator) {
		v.maxComponents = n
	}
}

// New creates a validator backed by the given registries.
func New(sections SectionTypes, components ComponentTypes, opts ...Option) *Validator {
	v := &Validator{
		sections:      sections,
		components:    components,
		maxComponents: document.MaxComponents,
	}
	WithFonts(DefaultFonts...)(v)
	for _, opt := range opts {
		opt(v)
	}

	return v
}

// Validate returns every rule the document violates; an empty list means
// the document is valid.
func (v *Validator) Validate(doc *document.Document) []document.Violation {
	violations := make([]document.Violation, 0)
	if doc == nil {
		return append(violations, missing("", "document"))
	}

	if doc.Version == "" {
		violations = append(violations, missing("version", "version"))
	}

	if doc.IsLegacy() {
		violations = append(violations, v.validateLegacy(doc)...)
	} else {
		violations = append(violations, v.validateCurrent(doc)...)
	}

	violations = append(violations, v.validateSettings("settings", doc.Settings)...)
	for i, s := range doc.Sections {
		if s != nil {
			violations = append(violations, v.validateSettings(fmt.Sprintf("sections[%d].settings", i), s.Settings)...)
		}
	}

	return violations
}

func (v *Validator) validateCurrent(doc *document.Document) []document.Violation {
	violations := make([]document.Violation, 0)

	if doc.Sections == nil {
		violations = append(violations, missing("sections", "sections"))
	}
	if doc.Components == nil {
		violations = append(violations, missing("components", "components"))
	}

	counts := make(map[string]int)
	sectionIDs := make(map[string]bool)
	owners := make(map[string]string)
	referenced := make([]string, 0)
	references := 0

	for i, s := range doc.Sections {
		path := fmt.Sprintf("sections[%d]", i)
		if s == nil {
			violations = append(violations, missing(path, "section"))
			continue
		}

		if s.ID == "" {
			violations = append(violations, missing(path+".id", "section id"))
		} else if sectionIDs[s.ID] {
			violations = append(violations, document.Violation{
				Path:    path + ".id",
				Code:    document.CodeDuplicateSection,
				Message: fmt.Sprintf("duplicate section id %q", s.ID),
			})
		}
		sectionIDs[s.ID] = true

		if s.Type == "" {
			violations = append(violations, missing(path+".type", "section type"))
		} else {
			counts[s.Type]++
			if v.sections != nil {
				if _, ok := v.sections.Lookup(s.Type); !ok {
					violations = append(violations, document.Violation{
						Path:    path + ".type",
						Code:    document.CodeUnknownSectionType,
						Message: fmt.Sprintf("unknown section type %q", s.Type),
					})
				}
			}
		}

		if !s.Layout.Known() {
			violations = append(violations, document.Violation{
				Path:    path + ".layout",
				Code:    document.CodeUnknownLayout,
				Message: fmt.Sprintf("unknown layout %q", s.Layout),
			})
		}

		for _, id := range s.ComponentIDs() {
			references++
			if owner, dup := owners[id]; dup {
				violations = append(violations, document.Violation{
					Path:    path + ".components",
					Code:    document.CodeDuplicateReference,
					Message: fmt.Sprintf("component %q is already referenced by section %q", id, owner),
				})
				continue
			}
			owners[id] = s.ID
			referenced = append(referenced, id)
		}
	}

	violations = append(violations, v.validateSectionLimits(counts)...)

	for _, id := range referenced {
		violations = append(violations, v.validateComponent(id, doc.Components[id])...)
	}

	// duplicates count toward the limit
	if references > v.maxComponents {
		violations = append(violations, tooManyComponents(references, v.maxComponents))
	}

	return violations
}

func (v *Validator) validateSectionLimits(counts map[string]int) []document.Violation {
	violations := make([]document.Violation, 0)
	if v.sections == nil {
		return violations
	}

	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)

	for _, t := range types {
		st, ok := v.sections.Lookup(t)
		if !ok || st.MaxInstances == registry.Unlimited {
			continue
		}
		if counts[t] > st.MaxInstances {
			violations = append(violations, document.Violation{
				Path:    "sections",
				Code:    document.CodeSectionLimit,
				Message: fmt.Sprintf("section type %q allows at most %d instances, found %d", t, st.MaxInstances, counts[t]),
			})
		}
	}

	return violations
}

func (v *Validator) validateComponent(id string, c *document.Component) []document.Violation {
	path := "components." + id
	if c == nil {
		return []document.Violation{{
			Path:    path,
			Code:    document.CodeMissingComponent,
			Message: fmt.Sprintf("referenced component %q does not exist", id),
		}}
	}

	if c.Type == "" {
		return []document.Violation{missing(path+".type", "component type")}
	}

	if v.components == nil {
		return nil
	}

	if _, ok := v.components.Lookup(c.Type); !ok {
		return []document.Violation{{
			Path:    path + ".type",
			Code:    document.CodeUnknownComponentType,
			Message: fmt.Sprintf("unknown component type %q", c.Type),
		}}
	}

	sub := v.components.ValidateData(c.Type, c.Data)
	violations := make([]document.Violation, 0, len(sub))
	for _, s := range sub {
		violations = append(violations, s.Prefix(path))
	}

	return violations
}

func (v *Validator) validateLegacy(doc *document.Document) []document.Violation {
	violations := make([]document.Violation, 0)

	if doc.Components == nil {
		violations = append(violations, missing("components", "components"))
	}
	if doc.Settings == nil {
		violations = append(violations, missing("settings", "settings"))
	}
	if len(doc.Layout) == 0 {
		violations = append(violations, missing("layout", "layout"))
	}

	if total := len(doc.Components); total > v.maxComponents {
		violations = append(violations, tooManyComponents(total, v.maxComponents))
	}

	return violations
}

func (v *Validator) validateSettings(path string, settings map[string]any) []document.Violation {
	violations := make([]document.Violation, 0)

	if colors, ok := settings["colors"].(map[string]any); ok {
		for _, key := range sortedKeys(colors) {
			value, _ := colors[key].(string)
			if !colorPattern.MatchString(value) {
				violations = append(violations, document.Violation{
					Path:    path + ".colors." + key,
					Code:    document.CodeInvalidColor,
					Message: fmt.Sprintf("color %q must be a #rrggbb value", key),
				})
			}
		}
	}

	if fonts, ok := settings["fonts"].(map[string]any); ok {
		for _, key := range sortedKeys(fonts) {
			value, _ := fonts[key].(string)
			if !v.fonts[value] {
				violations = append(violations, document.Violation{
					Path:    path + ".fonts." + key,
					Code:    document.CodeInvalidFont,
					Message: fmt.Sprintf("font %q is not allowed", value),
				})
			}
		}
	}

	return violations
}

func missing(path, what string) document.Violation {
	return document.Violation{
		Path:    path,
		Code:    document.CodeMissingField,
		Message: what + " is required",
	}
}

func tooManyComponents(total, max int) document.Violation {
	return document.Violation{
		Path:    "components",
		Code:    document.CodeComponentLimit,
		Message: fmt.Sprintf("document references %d components, the maximum is %d", total, max),
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}
