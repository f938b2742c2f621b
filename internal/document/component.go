package document

import (
	"encoding/json"
	"time"
)

// Component is a content unit; the shape of Data depends on Type.
type Component struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Data     map[string]any     `json:"data"`
	Styles   map[string]any     `json:"styles,omitempty"`
	Metadata *ComponentMetadata `json:"metadata,omitempty"`
}

// ComponentMetadata records when a component was created and last changed.
type ComponentMetadata struct {
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	SchemaVersion string    `json:"schema_version,omitempty"`
}

// MarshalJSON always writes a "data" object, empty when the component has none.
func (c Component) MarshalJSON() ([]byte, error) {
	type wire Component
	w := wire(c)
	if w.Data == nil {
		w.Data = map[string]any{}
	}

	return json.Marshal(w)
}

// UnmarshalJSON accepts "content" as an alias of "data".
func (c *Component) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID       string             `json:"id"`
		Type     string             `json:"type"`
		Data     json.RawMessage    `json:"data"`
		Content  json.RawMessage    `json:"content"`
		Styles   json.RawMessage    `json:"styles"`
		Metadata *ComponentMetadata `json:"metadata"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return ErrMalformed
	}

	body := raw.Data
	if len(body) == 0 {
		body = raw.Content
	}

	fields, err := decodeObject(body)
	if err != nil {
		return err
	}
	if fields == nil {
		fields = map[string]any{}
	}

	styles, err := decodeObject(raw.Styles)
	if err != nil {
		return err
	}

	*c = Component{
		ID:       raw.ID,
		Type:     raw.Type,
		Data:     fields,
		Styles:   styles,
		Metadata: raw.Metadata,
	}

	return nil
}
