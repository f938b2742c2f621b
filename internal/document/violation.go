package document

import "fmt"

// Violation codes.
const (
	CodeMissingField         = "missing_field"
	CodeInvalidField         = "invalid_field"
	CodeUnknownSectionType   = "unknown_section_type"
	CodeUnknownLayout        = "unknown_layout"
	CodeSectionLimit         = "section_limit"
	CodeDuplicateSection     = "duplicate_section"
	CodeUnknownComponentType = "unknown_component_type"
	CodeMissingComponent     = "missing_component"
	CodeDuplicateReference   = "duplicate_reference"
	CodeComponentLimit       = "component_limit"
	CodeInvalidColor         = "invalid_color"
	CodeInvalidFont          = "invalid_font"
)

// Violation is one failed validation rule.
type Violation struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	if v.Path == "" {
		return v.Message
	}

	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Prefix returns the violation with its path nested under prefix.
func (v Violation) Prefix(prefix string) Violation {
	if v.Path == "" {
		v.Path = prefix
	} else {
		v.Path = prefix + "." + v.Path
	}

	return v
}
