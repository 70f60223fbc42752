package capability

import (
	"context"
	"strings"
	"time"
)

// ModelMetadata is what a metadata-providing backend reports about a model.
type ModelMetadata struct {
	ID                  string    `json:"id" cbor:"1,keyasint"`
	Name                string    `json:"name,omitempty" cbor:"2,keyasint,omitempty"`
	InputModalities     []string  `json:"input_modalities" cbor:"3,keyasint"`
	OutputModalities    []string  `json:"output_modalities" cbor:"4,keyasint"`
	ContextLength       int       `json:"context_length,omitempty" cbor:"5,keyasint,omitempty"`
	MaxCompletionTokens int       `json:"max_completion_tokens,omitempty" cbor:"6,keyasint,omitempty"`
	RequiresImagesFirst bool      `json:"requires_images_first,omitempty" cbor:"7,keyasint,omitempty"`
	FetchedAt           time.Time `json:"fetched_at" cbor:"8,keyasint"`
}

// MetadataSource looks up a single model on a remote backend. A model the
// backend does not know yields (nil, nil).
type MetadataSource interface {
	ModelMetadata(ctx context.Context, model, apiKey string) (*ModelMetadata, error)
}

// MetadataCache stores remote metadata between lookups. A miss yields
// (nil, nil).
type MetadataCache interface {
	Get(ctx context.Context, model string) (*ModelMetadata, error)
	Put(ctx context.Context, md ModelMetadata) error
}

// CatalogSource is a MetadataSource that can return its whole catalog in
// one call.
type CatalogSource interface {
	MetadataSource
	Catalog(ctx context.Context, apiKey string) ([]ModelMetadata, error)
}

// CatalogCache is a MetadataCache that stores many entries at once.
type CatalogCache interface {
	MetadataCache
	PutAll(ctx context.Context, models []ModelMetadata) error
}

// FromMetadata translates reported modalities into capabilities. Input
// "image" means vision, "audio" audio input and "file" or "pdf" native PDF.
// Output "image" means image generation and "audio" audio output. A model
// reporting no modalities at all is assumed to accept text.
func FromMetadata(md ModelMetadata) ModelCapabilities {
	var c ModelCapabilities
	for _, m := range md.InputModalities {
		switch strings.ToLower(strings.TrimSpace(m)) {
		case "text":
			c.SupportsText = true
		case "image":
			c.SupportsVision = true
		case "audio":
			c.SupportsAudioInput = true
		case "file", "pdf":
			c.SupportsPDFNative = true
		}
	}
	for _, m := range md.OutputModalities {
		switch strings.ToLower(strings.TrimSpace(m)) {
		case "image":
			c.SupportsImageGeneration = true
		case "audio":
			c.SupportsAudioOutput = true
		}
	}
	if len(md.InputModalities) == 0 {
		c.SupportsText = true
	}
	if md.ContextLength > 0 {
		c.MaxInputTokens = intPtr(md.ContextLength)
	}
	if md.MaxCompletionTokens > 0 {
		c.MaxOutputTokens = intPtr(md.MaxCompletionTokens)
	}
	c.RequiresImagesFirst = md.RequiresImagesFirst
	return c
}
