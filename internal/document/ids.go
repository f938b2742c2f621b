package document

import (
	"strings"

	"github.com/google/uuid"
)

// NewSectionID returns a fresh section id. Ids are never reused.
func NewSectionID() string {
	return "section_" + compactUUID()
}

// NewComponentID returns a fresh component id.
func NewComponentID() string {
	return "component_" + compactUUID()
}

func compactUUID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
