package ctxengine

import (
	"fmt"
	"strings"

	"github.com/flemzord/ctxpack/pkg/anchor"
	"github.com/flemzord/ctxpack/pkg/envelope"
)

// Builder turns captured sources into an unbudgeted envelope.
type Builder struct {
	estimator TokenEstimator
}

// NewBuilder creates a Builder. A nil estimator falls back to a
// CharEstimator with the default ratio.
func NewBuilder(estimator TokenEstimator) *Builder {
	if estimator == nil {
		estimator = NewCharEstimator(0)
	}
	return &Builder{estimator: estimator}
}

// Build creates an envelope with one index entry per source. Web pages,
// notes and chat logs yield one chunk, PDFs one chunk per page and images a
// placeholder chunk plus an attachment. The budget is unbounded at stage 0
// and every chunk carries the neutral relevance score.
//
// Build is idempotent: identical sources always produce identical anchors.
func (b *Builder) Build(sources []envelope.Source, task string) *envelope.Envelope {
	env := &envelope.Envelope{
		Task:        task,
		Chunks:      []envelope.Chunk{},
		Attachments: []envelope.Attachment{},
		Index:       make([]envelope.IndexEntry, 0, len(sources)),
		Budget:      envelope.Budget{Cuts: []envelope.Cut{}},
	}

	for _, src := range sources {
		if src == nil {
			continue
		}
		id := anchor.ComputeSourceID(src.Identity())
		entry := envelope.IndexEntry{
			Anchor:          anchor.New(id, nil),
			SourceType:      src.Type(),
			Title:           src.Label(),
			ContentIncluded: true,
		}

		switch s := src.(type) {
		case envelope.WebPage:
			b.addChunk(env, entry.Anchor, s.Type(), s.Content)
		case envelope.Note:
			b.addChunk(env, entry.Anchor, s.Type(), s.Content)
		case envelope.ChatLog:
			b.addChunk(env, entry.Anchor, s.Type(), s.Text())
		case envelope.PDF:
			entry.PagesAttached = b.addPDF(env, id, s)
		case envelope.Image:
			b.addImage(env, id, s)
		}

		env.Index = append(env.Index, entry)
	}

	env.Budget.UsedTokens = env.ChunkTokens()
	return env
}

func (b *Builder) addChunk(env *envelope.Envelope, a anchor.Anchor, t envelope.SourceType, content string) {
	env.Chunks = append(env.Chunks, envelope.Chunk{
		Anchor:         a,
		SourceType:     t,
		Content:        content,
		TokenCount:     b.estimator.Estimate(content),
		RelevanceScore: envelope.NeutralRelevance,
		Position:       len(env.Chunks),
	})
}

// addPDF emits one chunk per page and returns the page numbers emitted.
func (b *Builder) addPDF(env *envelope.Envelope, id anchor.SourceID, doc envelope.PDF) []int {
	var pages []int
	for i, text := range doc.Pages {
		n := i + 1
		b.addChunk(env, anchor.New(id, anchor.Page(n)), envelope.SourcePDF, fmt.Sprintf("[Page %d]\n%s", n, strings.TrimSpace(text)))
		pages = append(pages, n)
	}
	if len(doc.Pages) == 0 {
		b.addChunk(env, anchor.New(id, nil), envelope.SourcePDF, placeholder("PDF", doc.Label()))
	}
	if uri := doc.URI(); uri != "" {
		env.Attachments = append(env.Attachments, envelope.Attachment{
			Anchor:       anchor.New(id, nil),
			ArtifactType: envelope.ArtifactPDF,
			MimeType:     "application/pdf",
			URI:          uri,
			Included:     true,
		})
	}
	return pages
}

func (b *Builder) addImage(env *envelope.Envelope, id anchor.SourceID, img envelope.Image) {
	a := anchor.New(id, nil)
	text := strings.TrimSpace(img.AltText)
	if text == "" {
		text = placeholder("image", img.Label())
	} else {
		text = "[image] " + text
	}
	b.addChunk(env, a, envelope.SourceImage, text)

	mime := img.MimeType
	if mime == "" {
		mime = "image/png"
	}
	env.Attachments = append(env.Attachments, envelope.Attachment{
		Anchor:       a,
		ArtifactType: envelope.ArtifactImage,
		MimeType:     mime,
		URI:          img.URI(),
		Included:     true,
	})
}

func placeholder(kind, label string) string {
	if label == "" {
		return "[" + kind + "]"
	}
	return "[" + kind + ": " + label + "]"
}
