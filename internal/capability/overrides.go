package capability

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/tidwall/jsonc"
)

// Override is a partial ModelCapabilities. Nil fields keep the provider
// default.
type Override struct {
	SupportsText            *bool `json:"supportsText,omitempty"`
	SupportsVision          *bool `json:"supportsVision,omitempty"`
	SupportsAudioInput      *bool `json:"supportsAudioInput,omitempty"`
	SupportsAudioOutput     *bool `json:"supportsAudioOutput,omitempty"`
	SupportsPDFNative       *bool `json:"supportsPdfNative,omitempty"`
	SupportsImageGeneration *bool `json:"supportsImageGeneration,omitempty"`
	MaxInputTokens          *int  `json:"maxInputTokens,omitempty"`
	MaxOutputTokens         *int  `json:"maxOutputTokens,omitempty"`
	RequiresImagesFirst     *bool `json:"requiresImagesFirst,omitempty"`
	RequiresBase64Images    *bool `json:"requiresBase64Images,omitempty"`
}

// Overrides maps exact model names to partial capabilities.
type Overrides map[string]Override

// Apply returns base with every field set in o replaced.
func (o Override) Apply(base ModelCapabilities) ModelCapabilities {
	setBool(&base.SupportsText, o.SupportsText)
	setBool(&base.SupportsVision, o.SupportsVision)
	setBool(&base.SupportsAudioInput, o.SupportsAudioInput)
	setBool(&base.SupportsAudioOutput, o.SupportsAudioOutput)
	setBool(&base.SupportsPDFNative, o.SupportsPDFNative)
	setBool(&base.SupportsImageGeneration, o.SupportsImageGeneration)
	setBool(&base.RequiresImagesFirst, o.RequiresImagesFirst)
	setBool(&base.RequiresBase64Images, o.RequiresBase64Images)
	if o.MaxInputTokens != nil {
		base.MaxInputTokens = intPtr(*o.MaxInputTokens)
	}
	if o.MaxOutputTokens != nil {
		base.MaxOutputTokens = intPtr(*o.MaxOutputTokens)
	}
	return base
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

// LoadOverrides reads a JSON override file. Comments and trailing commas
// are tolerated. A missing path yields empty overrides and no error; a
// malformed file yields empty overrides and the error, so callers can log
// it and carry on.
func LoadOverrides(path string) (Overrides, error) {
	if path == "" {
		return Overrides{}, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Overrides{}, nil
	}
	if err != nil {
		return Overrides{}, fmt.Errorf("capability: reading overrides: %w", err)
	}
	return ParseOverrides(data)
}

// ParseOverrides decodes override file content.
func ParseOverrides(data []byte) (Overrides, error) {
	var out Overrides
	if err := json.Unmarshal(jsonc.ToJSON(data), &out); err != nil {
		return Overrides{}, fmt.Errorf("capability: parsing overrides: %w", err)
	}
	if out == nil {
		out = Overrides{}
	}
	return out, nil
}
