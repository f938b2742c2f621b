package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

type currentWire struct {
	Version    string                `json:"version"`
	Theme      *Theme                `json:"theme,omitempty"`
	Layout     json.RawMessage       `json:"layout,omitempty"`
	Settings   map[string]any        `json:"settings,omitempty"`
	Sections   []*Section            `json:"sections"`
	Components map[string]*Component `json:"components"`
}

type legacyWire struct {
	Version    string          `json:"version"`
	Theme      *Theme          `json:"theme,omitempty"`
	Layout     json.RawMessage `json:"layout,omitempty"`
	Settings   map[string]any  `json:"settings"`
	Components []*Component    `json:"components"`
}

// Decode parses a document in either schema generation.
func Decode(data []byte) (*Document, error) {
	doc := &Document{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, err
	}

	return doc, nil
}

// Encode serializes the document in its own schema generation.
func Encode(doc *Document) ([]byte, error) {
	return json.Marshal(doc)
}

func (d *Document) MarshalJSON() ([]byte, error) {
	if d.IsLegacy() {
		var components []*Component
		if d.Components != nil {
			components = make([]*Component, 0, len(d.Components))
			for _, id := range d.LegacyOrder() {
				if c, ok := d.Components[id]; ok {
					components = append(components, c)
				}
			}
		}

		return json.Marshal(legacyWire{
			Version:    d.Version,
			Theme:      d.Theme,
			Layout:     d.Layout,
			Settings:   d.Settings,
			Components: components,
		})
	}

	return json.Marshal(currentWire{
		Version:    d.Version,
		Theme:      d.Theme,
		Layout:     d.Layout,
		Settings:   d.Settings,
		Sections:   d.Sections,
		Components: d.Components,
	})
}

func (d *Document) UnmarshalJSON(data []byte) error {
	var raw struct {
		Version    json.RawMessage `json:"version"`
		Theme      *Theme          `json:"theme"`
		Layout     json.RawMessage `json:"layout"`
		Settings   json.RawMessage `json:"settings"`
		Sections   []*Section      `json:"sections"`
		Components json.RawMessage `json:"components"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	version, err := decodeVersion(raw.Version)
	if err != nil {
		return err
	}

	settings, err := decodeObject(raw.Settings)
	if err != nil {
		return err
	}

	components, order, err := decodeComponents(raw.Components)
	if err != nil {
		return err
	}

	layout := raw.Layout
	if bytes.Equal(bytes.TrimSpace(layout), []byte("null")) {
		layout = nil
	}

	*d = Document{
		Version:    version,
		Theme:      raw.Theme,
		Layout:     layout,
		Settings:   settings,
		Sections:   raw.Sections,
		Components: components,
		order:      order,
	}

	return nil
}

// decodeVersion accepts "2.0" as well as a bare number.
func decodeVersion(raw json.RawMessage) (string, error) {
	switch firstByte(raw) {
	case 0, 'n':
		return "", nil
	case '"':
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return "", ErrMalformed
		}
		return v, nil
	default:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", ErrMalformed
		}
		return n.String(), nil
	}
}

// decodeComponents accepts a list (legacy) or an id keyed object and
// returns the components with their declared order.
func decodeComponents(raw json.RawMessage) (map[string]*Component, []string, error) {
	switch firstByte(raw) {
	case 0, 'n':
		return nil, nil, nil
	case '[':
		var list []*Component
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, nil, fmt.Errorf("%w: components: %v", ErrMalformed, err)
		}
		components := make(map[string]*Component, len(list))
		order := make([]string, 0, len(list))
		for _, c := range list {
			if c == nil {
				continue
			}
			if c.ID == "" {
				c.ID = NewComponentID()
			}
			if _, dup := components[c.ID]; !dup {
				order = append(order, c.ID)
			}
			components[c.ID] = c
		}
		return components, order, nil
	case '{':
		components := make(map[string]*Component)
		if err := json.Unmarshal(raw, &components); err != nil {
			return nil, nil, fmt.Errorf("%w: components: %v", ErrMalformed, err)
		}
		order, err := objectKeys(raw)
		if err != nil {
			return nil, nil, err
		}
		for id, c := range components {
			if c == nil {
				delete(components, id)
				continue
			}
			if c.ID == "" {
				c.ID = id
			}
		}
		return components, order, nil
	default:
		return nil, nil, fmt.Errorf("%w: components must be a list or an object", ErrMalformed)
	}
}

// objectKeys returns the top-level keys of a JSON object in source order.
func objectKeys(raw json.RawMessage) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil {
		return nil, ErrMalformed
	}

	keys := make([]string, 0)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, ErrMalformed
		}
		key, ok := tok.(string)
		if !ok {
			return nil, ErrMalformed
		}
		keys = append(keys, key)

		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, ErrMalformed
		}
	}

	return keys, nil
}

// decodeObject decodes a JSON object; an empty list decodes to an empty map
// since hosts serialize empty associative arrays that way.
func decodeObject(raw json.RawMessage) (map[string]any, error) {
	switch firstByte(raw) {
	case 0, 'n':
		return nil, nil
	case '[':
		var list []any
		if err := json.Unmarshal(raw, &list); err != nil || len(list) > 0 {
			return nil, fmt.Errorf("%w: expected an object", ErrMalformed)
		}
		return map[string]any{}, nil
	case '{':
		obj := make(map[string]any)
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("%w: expected an object", ErrMalformed)
	}
}

func firstByte(data []byte) byte {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return 0
	}

	return trimmed[0]
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}
