package message

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Message is a canonical multi-part message.
type Message struct {
	Role  Role
	Parts []Part
}

type messageJSON struct {
	Role  Role       `json:"role"`
	Parts []partJSON `json:"parts"`
}

// MarshalJSON implements json.Marshaler. Parts are written as a flat union
// discriminated by "type".
func (m Message) MarshalJSON() ([]byte, error) {
	out := messageJSON{Role: m.Role, Parts: make([]partJSON, 0, len(m.Parts))}
	for _, p := range m.Parts {
		pj, err := encodePart(p)
		if err != nil {
			return nil, err
		}
		out.Parts = append(out.Parts, pj)
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler. A plain string "content" field
// is accepted as a single text part.
func (m *Message) UnmarshalJSON(data []byte) error {
	var in struct {
		messageJSON
		Content *string `json:"content"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	m.Role = in.Role
	m.Parts = make([]Part, 0, len(in.Parts)+1)
	if in.Content != nil {
		m.Parts = append(m.Parts, TextPart{Text: *in.Content})
	}
	for i, pj := range in.Parts {
		p, err := pj.decode()
		if err != nil {
			return fmt.Errorf("part %d: %w", i, err)
		}
		m.Parts = append(m.Parts, p)
	}
	return nil
}

// TextContent concatenates the text of all text parts, separated by newlines.
func (m Message) TextContent() string {
	var texts []string
	for _, p := range m.Parts {
		if t, ok := p.(TextPart); ok && t.Text != "" {
			texts = append(texts, t.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// CountParts returns the number of parts of type t.
func (m Message) CountParts(t PartType) int {
	n := 0
	for _, p := range m.Parts {
		if p.Type() == t {
			n++
		}
	}
	return n
}

// HasMedia reports whether the message carries any image or PDF part.
func (m Message) HasMedia() bool {
	return m.CountParts(PartImage)+m.CountParts(PartPDF) > 0
}
