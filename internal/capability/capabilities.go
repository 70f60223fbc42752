// Package capability resolves what a target model accepts: modalities,
// token ceilings and part-ordering quirks. Resolution is layered: local
// override, static table, remote metadata, then provider default.
package capability

import "strings"

// ModelCapabilities describes what a model accepts. Values are treated as
// immutable once resolved.
type ModelCapabilities struct {
	SupportsText            bool `json:"supportsText"`
	SupportsVision          bool `json:"supportsVision"`
	SupportsAudioInput      bool `json:"supportsAudioInput"`
	SupportsAudioOutput     bool `json:"supportsAudioOutput"`
	SupportsPDFNative       bool `json:"supportsPdfNative"`
	SupportsImageGeneration bool `json:"supportsImageGeneration"`
	MaxInputTokens          *int `json:"maxInputTokens,omitempty"`
	MaxOutputTokens         *int `json:"maxOutputTokens,omitempty"`
	RequiresImagesFirst     bool `json:"requiresImagesFirst"`
	RequiresBase64Images    bool `json:"requiresBase64Images"`
}

// TextOnly is the capability set of a model that accepts text alone.
func TextOnly() ModelCapabilities {
	return ModelCapabilities{SupportsText: true}
}

// Clone returns a copy of c that shares no token-ceiling pointers.
func (c ModelCapabilities) Clone() ModelCapabilities {
	if c.MaxInputTokens != nil {
		c.MaxInputTokens = intPtr(*c.MaxInputTokens)
	}
	if c.MaxOutputTokens != nil {
		c.MaxOutputTokens = intPtr(*c.MaxOutputTokens)
	}
	return c
}

// InputTokens returns MaxInputTokens, or fallback when unset.
func (c ModelCapabilities) InputTokens(fallback int) int {
	if c.MaxInputTokens != nil && *c.MaxInputTokens > 0 {
		return *c.MaxInputTokens
	}
	return fallback
}

// Selector names a model and the provider that serves it.
type Selector struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// ParseSelector splits "provider/model" at the first slash, so OpenRouter
// ids keep their vendor prefix: "openrouter/openai/gpt-4o" selects model
// "openai/gpt-4o" on provider "openrouter". A string without a slash is a
// model of an unknown provider.
func ParseSelector(s string) Selector {
	s = strings.TrimSpace(s)
	p, m, ok := strings.Cut(s, "/")
	if !ok {
		return Selector{Model: s}
	}
	return Selector{Provider: strings.ToLower(p), Model: m}
}

// String implements fmt.Stringer.
func (s Selector) String() string {
	if s.Provider == "" {
		return s.Model
	}
	return s.Provider + "/" + s.Model
}

// Source tells which layer produced a resolution.
type Source string

// Resolution sources, in precedence order.
const (
	SourceOverride Source = "override"
	SourceStatic   Source = "static"
	SourceRemote   Source = "remote"
	SourceDefault  Source = "default"
)

// Resolution is the outcome of resolving a selector.
type Resolution struct {
	Selector     Selector          `json:"selector"`
	Capabilities ModelCapabilities `json:"capabilities"`
	Source       Source            `json:"source"`
}

func intPtr(n int) *int { return &n }
