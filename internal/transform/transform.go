// Package transform reshapes canonical messages for the capabilities of a
// target model. Parts a model cannot accept degrade to labeled text; the
// labels are stable so callers can detect substitutions by substring.
package transform

import (
	"fmt"

	"github.com/flemzord/ctxpack/internal/capability"
	"github.com/flemzord/ctxpack/pkg/anchor"
	"github.com/flemzord/ctxpack/pkg/message"
)

// Markers that prefix substituted text parts.
const (
	MarkerImageOmitted = "[image omitted"
	MarkerPDFConverted = "[PDF converted"
	MarkerPDFOmitted   = "[PDF omitted"
)

// Order selects how parts are arranged within a message.
type Order string

// Ordering policies.
const (
	// OrderDefault places media before text, as OrderImagesFirst does.
	OrderDefault     Order = "default"
	OrderImagesFirst Order = "images_first"
	// OrderTextFirst keeps the original part order, even for models that
	// require images first.
	OrderTextFirst Order = "text_first"
)

// ParseOrder maps a config or request value to an Order. Unknown and empty
// values yield OrderDefault.
func ParseOrder(s string) Order {
	switch Order(s) {
	case OrderImagesFirst, OrderTextFirst:
		return Order(s)
	default:
		return OrderDefault
	}
}

// Rasterizer converts a PDF into one image per page.
type Rasterizer interface {
	Rasterize(pdf message.PDFPart) ([]message.ImagePart, error)
}

// Options tune a transformation.
type Options struct {
	Order Order

	// Rasterizer, when set, turns PDFs into page images for models with
	// vision but no native PDF support. Failures fall back to the marker.
	Rasterizer Rasterizer
}

// Report counts the substitutions made by Messages.
type Report struct {
	ImagesOmitted   int  `json:"images_omitted"`
	PDFsConverted   int  `json:"pdfs_converted"`
	PDFsOmitted     int  `json:"pdfs_omitted"`
	PagesRasterized int  `json:"pages_rasterized"`
	Reordered       bool `json:"reordered"`
}

// Substitutions returns the number of parts replaced by text.
func (r Report) Substitutions() int {
	return r.ImagesOmitted + r.PDFsConverted + r.PDFsOmitted
}

// Messages returns msgs reshaped for caps. It never fails and never
// modifies its input.
func Messages(msgs []message.Message, caps capability.ModelCapabilities, opts Options) ([]message.Message, Report) {
	var rep Report
	out := make([]message.Message, len(msgs))
	imagesFirst := opts.Order != OrderTextFirst

	for i, m := range msgs {
		parts := make([]message.Part, 0, len(m.Parts))
		for _, p := range m.Parts {
			parts = append(parts, convert(p, caps, opts, &rep)...)
		}
		if imagesFirst {
			var moved bool
			parts, moved = mediaFirst(parts)
			rep.Reordered = rep.Reordered || moved
		}
		out[i] = message.Message{Role: m.Role, Parts: parts}
	}
	return out, rep
}

func convert(p message.Part, caps capability.ModelCapabilities, opts Options, rep *Report) []message.Part {
	switch v := p.(type) {
	case message.ImagePart:
		if caps.SupportsVision {
			return []message.Part{v}
		}
		rep.ImagesOmitted++
		return []message.Part{message.Text(imageOmitted(v))}

	case message.PDFPart:
		switch {
		case caps.SupportsPDFNative:
			return []message.Part{v}
		case caps.SupportsVision:
			rep.PDFsConverted++
			return rasterize(v, opts.Rasterizer, rep)
		default:
			rep.PDFsOmitted++
			return []message.Part{message.Text(fmt.Sprintf("%s: %s; model accepts neither PDF nor image input]", MarkerPDFOmitted, label(v.URI, v.Anchor)))}
		}

	case nil:
		return nil

	default:
		return []message.Part{p}
	}
}

func rasterize(p message.PDFPart, r Rasterizer, rep *Report) []message.Part {
	if r != nil {
		if pages, err := r.Rasterize(p); err == nil && len(pages) > 0 {
			out := make([]message.Part, 0, len(pages)+1)
			out = append(out, message.Text(fmt.Sprintf("%s: %s rendered as %d page images]", MarkerPDFConverted, label(p.URI, p.Anchor), len(pages))))
			for _, img := range pages {
				out = append(out, img)
			}
			rep.PagesRasterized += len(pages)
			return out
		}
	}
	return []message.Part{message.Text(fmt.Sprintf("%s: %s must be rendered to images for this model]", MarkerPDFConverted, label(p.URI, p.Anchor)))}
}

func imageOmitted(p message.ImagePart) string {
	s := MarkerImageOmitted + ": " + label(p.URI, p.Anchor)
	if p.Alt != "" {
		s += " (" + p.Alt + ")"
	}
	return s + "; model lacks vision support]"
}

// label names a media part by anchor when it has one. Data URIs are never
// echoed into text.
func label(uri string, a anchor.Anchor) string {
	if a != "" {
		return string(a)
	}
	if message.SourceOf(uri) == message.MediaBase64 {
		return "inline data"
	}
	if uri == "" {
		return "unnamed"
	}
	return uri
}

// mediaFirst stably moves image and PDF parts ahead of text parts and
// reports whether anything moved.
func mediaFirst(parts []message.Part) ([]message.Part, bool) {
	media := make([]message.Part, 0, len(parts))
	text := make([]message.Part, 0, len(parts))
	for _, p := range parts {
		if p.Type() == message.PartText {
			text = append(text, p)
		} else {
			media = append(media, p)
		}
	}
	out := append(media, text...)
	for i := range parts {
		if out[i] != parts[i] {
			return out, true
		}
	}
	return out, false
}
