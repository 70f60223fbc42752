// Package message defines the canonical, model-agnostic multi-part message
// that is reshaped for a target model before it is sent.
package message

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/flemzord/ctxpack/pkg/anchor"
)

// Role identifies the sender of a message.
type Role string

// Role constants.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// PartType discriminates the Part variants.
type PartType string

// PartType constants.
const (
	PartText  PartType = "text"
	PartImage PartType = "image"
	PartPDF   PartType = "pdf"
)

// MediaSource describes how a media part's URI is delivered.
type MediaSource string

// MediaSource constants.
const (
	MediaURL    MediaSource = "url"
	MediaBase64 MediaSource = "base64"
	MediaFile   MediaSource = "file"
)

// SourceOf infers the media source kind of a URI.
func SourceOf(uri string) MediaSource {
	switch {
	case strings.HasPrefix(uri, "data:"):
		return MediaBase64
	case strings.HasPrefix(uri, "file:"):
		return MediaFile
	default:
		return MediaURL
	}
}

// Part is one piece of a message. The set of implementations is closed:
// TextPart, ImagePart and PDFPart.
type Part interface {
	Type() PartType
	isPart()
}

// Compile-time interface guards.
var (
	_ Part = TextPart{}
	_ Part = ImagePart{}
	_ Part = PDFPart{}
)

// TextPart carries plain text.
type TextPart struct {
	Text string
}

// ImagePart references an image by URL, data URI, or file URI.
type ImagePart struct {
	Source MediaSource
	URI    string
	Alt    string
	Anchor anchor.Anchor
}

// PDFPart references a PDF document.
type PDFPart struct {
	Source MediaSource
	URI    string
	Anchor anchor.Anchor
}

func (TextPart) Type() PartType  { return PartText }
func (ImagePart) Type() PartType { return PartImage }
func (PDFPart) Type() PartType   { return PartPDF }

func (TextPart) isPart()  {}
func (ImagePart) isPart() {}
func (PDFPart) isPart()   {}

// Text returns a text part.
func Text(s string) TextPart { return TextPart{Text: s} }

// Image returns an image part whose source kind is inferred from uri.
func Image(uri, alt string) ImagePart {
	return ImagePart{Source: SourceOf(uri), URI: uri, Alt: alt}
}

// Document returns a PDF part whose source kind is inferred from uri.
func Document(uri string) PDFPart {
	return PDFPart{Source: SourceOf(uri), URI: uri}
}

// partJSON is the flat wire form of a Part.
type partJSON struct {
	Type   PartType      `json:"type"`
	Text   string        `json:"text,omitempty"`
	Source MediaSource   `json:"source,omitempty"`
	URI    string        `json:"uri,omitempty"`
	Alt    string        `json:"alt,omitempty"`
	Anchor anchor.Anchor `json:"anchor,omitempty"`
}

func encodePart(p Part) (partJSON, error) {
	switch v := p.(type) {
	case TextPart:
		return partJSON{Type: PartText, Text: v.Text}, nil
	case ImagePart:
		return partJSON{Type: PartImage, Source: v.Source, URI: v.URI, Alt: v.Alt, Anchor: v.Anchor}, nil
	case PDFPart:
		return partJSON{Type: PartPDF, Source: v.Source, URI: v.URI, Anchor: v.Anchor}, nil
	default:
		return partJSON{}, fmt.Errorf("message: unsupported part %T", p)
	}
}

func (pj partJSON) decode() (Part, error) {
	source := pj.Source
	if source == "" {
		source = SourceOf(pj.URI)
	}
	switch pj.Type {
	case PartText:
		return TextPart{Text: pj.Text}, nil
	case PartImage:
		return ImagePart{Source: source, URI: pj.URI, Alt: pj.Alt, Anchor: pj.Anchor}, nil
	case PartPDF:
		return PDFPart{Source: source, URI: pj.URI, Anchor: pj.Anchor}, nil
	default:
		return nil, fmt.Errorf("message: unknown part type %q", pj.Type)
	}
}

// MarshalPart encodes a single part.
func MarshalPart(p Part) ([]byte, error) {
	pj, err := encodePart(p)
	if err != nil {
		return nil, err
	}
	return json.Marshal(pj)
}
