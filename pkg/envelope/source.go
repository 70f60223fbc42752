package envelope

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/flemzord/ctxpack/pkg/anchor"
)

// Source is a captured source. The set of implementations is closed:
// WebPage, PDF, Image, ChatLog and Note.
type Source interface {
	// Type returns the source kind.
	Type() SourceType

	// Identity returns the addressable identity hashed into the SourceID.
	Identity() anchor.Identity

	// Label returns a short human-readable title for the index.
	Label() string

	isSource()
}

// Compile-time interface guards.
var (
	_ Source = WebPage{}
	_ Source = PDF{}
	_ Source = Image{}
	_ Source = ChatLog{}
	_ Source = Note{}
)

// WebPage is a captured web page, already reduced to text or Markdown.
type WebPage struct {
	URL     string
	Title   string
	Content string
}

func (WebPage) Type() SourceType { return SourceWebPage }
func (w WebPage) Label() string  { return firstNonEmpty(w.Title, w.URL) }
func (WebPage) isSource()        {}

func (w WebPage) Identity() anchor.Identity {
	return anchor.Identity{URL: w.URL, Content: w.Content}
}

// PDF is a captured PDF document with its extracted page texts. Data holds
// the raw file bytes when available.
type PDF struct {
	URL   string
	Title string
	Pages []string
	Data  []byte
}

func (PDF) Type() SourceType { return SourcePDF }
func (p PDF) Label() string  { return firstNonEmpty(p.Title, p.URL) }
func (PDF) isSource()        {}

func (p PDF) Identity() anchor.Identity {
	pages := make([]string, len(p.Pages))
	for i, page := range p.Pages {
		pages[i] = anchor.NormalizeText(page)
	}
	return anchor.Identity{URL: p.URL, Content: struct {
		Pages []string `json:"pages"`
		Data  []byte   `json:"data,omitempty"`
	}{Pages: pages, Data: p.Data}}
}

// URI returns the URL of the document, or a data URI built from Data.
func (p PDF) URI() string {
	if p.URL != "" {
		return p.URL
	}
	if len(p.Data) == 0 {
		return ""
	}
	return dataURI("application/pdf", p.Data)
}

// Image is a captured image with optional alt text.
type Image struct {
	URL      string
	Title    string
	MimeType string
	Data     []byte
	AltText  string
}

func (Image) Type() SourceType { return SourceImage }
func (i Image) Label() string  { return firstNonEmpty(i.Title, i.AltText, i.URL) }
func (Image) isSource()        {}

func (i Image) Identity() anchor.Identity {
	return anchor.Identity{URL: i.URL, Content: struct {
		MimeType string `json:"mime_type,omitempty"`
		Data     []byte `json:"data,omitempty"`
		AltText  string `json:"alt_text,omitempty"`
	}{MimeType: i.MimeType, Data: i.Data, AltText: anchor.NormalizeText(i.AltText)}}
}

// URI returns the URL of the image, or a data URI built from Data.
func (i Image) URI() string {
	if i.URL != "" {
		return i.URL
	}
	if len(i.Data) == 0 {
		return ""
	}
	return dataURI(i.mime(), i.Data)
}

func (i Image) mime() string {
	if i.MimeType != "" {
		return i.MimeType
	}
	return "image/png"
}

// ChatTurn is one message of a captured chat transcript.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatLog is a captured chat transcript.
type ChatLog struct {
	URL      string
	Title    string
	Messages []ChatTurn
}

func (ChatLog) Type() SourceType { return SourceChatLog }
func (c ChatLog) Label() string  { return firstNonEmpty(c.Title, c.URL) }
func (ChatLog) isSource()        {}

func (c ChatLog) Identity() anchor.Identity {
	turns := make([]ChatTurn, len(c.Messages))
	for i, m := range c.Messages {
		turns[i] = ChatTurn{Role: m.Role, Content: anchor.NormalizeText(m.Content)}
	}
	return anchor.Identity{URL: c.URL, Content: turns}
}

// Text renders the transcript as "role: content" lines.
func (c ChatLog) Text() string {
	var b strings.Builder
	for i, m := range c.Messages {
		if i > 0 {
			b.WriteString("\n")
		}
		role := m.Role
		if role == "" {
			role = "unknown"
		}
		b.WriteString(role)
		b.WriteString(": ")
		b.WriteString(strings.TrimSpace(m.Content))
	}
	return b.String()
}

// Note is a free-form user note.
type Note struct {
	Title   string
	Content string
}

func (Note) Type() SourceType { return SourceNote }
func (n Note) Label() string  { return n.Title }
func (Note) isSource()        {}

func (n Note) Identity() anchor.Identity {
	return anchor.Identity{Content: struct {
		Title   string `json:"title,omitempty"`
		Content string `json:"content"`
	}{Title: n.Title, Content: anchor.NormalizeText(n.Content)}}
}

// SourceRecord is the flat JSON form of a Source. Type discriminates which
// fields are meaningful.
type SourceRecord struct {
	Type     SourceType `json:"type"`
	URL      string     `json:"url,omitempty"`
	Title    string     `json:"title,omitempty"`
	Content  string     `json:"content,omitempty"`
	Pages    []string   `json:"pages,omitempty"`
	Messages []ChatTurn `json:"messages,omitempty"`
	MimeType string     `json:"mime_type,omitempty"`
	Data     []byte     `json:"data,omitempty"`
	AltText  string     `json:"alt_text,omitempty"`
}

// Source converts the record into its Source variant.
func (r SourceRecord) Source() (Source, error) {
	switch r.Type {
	case SourceWebPage:
		return WebPage{URL: r.URL, Title: r.Title, Content: r.Content}, nil
	case SourcePDF:
		return PDF{URL: r.URL, Title: r.Title, Pages: r.Pages, Data: r.Data}, nil
	case SourceImage:
		return Image{URL: r.URL, Title: r.Title, MimeType: r.MimeType, Data: r.Data, AltText: r.AltText}, nil
	case SourceChatLog:
		return ChatLog{URL: r.URL, Title: r.Title, Messages: r.Messages}, nil
	case SourceNote:
		return Note{Title: r.Title, Content: r.Content}, nil
	default:
		return nil, fmt.Errorf("envelope: unknown source type %q", r.Type)
	}
}

// DecodeSources converts records into sources, failing on the first unknown type.
func DecodeSources(records []SourceRecord) ([]Source, error) {
	out := make([]Source, 0, len(records))
	for i, r := range records {
		s, err := r.Source()
		if err != nil {
			return nil, fmt.Errorf("source %d: %w", i, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// RecordOf converts a Source into its flat JSON form.
func RecordOf(s Source) SourceRecord {
	switch v := s.(type) {
	case WebPage:
		return SourceRecord{Type: SourceWebPage, URL: v.URL, Title: v.Title, Content: v.Content}
	case PDF:
		return SourceRecord{Type: SourcePDF, URL: v.URL, Title: v.Title, Pages: v.Pages, Data: v.Data}
	case Image:
		return SourceRecord{Type: SourceImage, URL: v.URL, Title: v.Title, MimeType: v.MimeType, Data: v.Data, AltText: v.AltText}
	case ChatLog:
		return SourceRecord{Type: SourceChatLog, URL: v.URL, Title: v.Title, Messages: v.Messages}
	case Note:
		return SourceRecord{Type: SourceNote, Title: v.Title, Content: v.Content}
	default:
		return SourceRecord{}
	}
}

func dataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
