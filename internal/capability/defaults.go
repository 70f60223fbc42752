package capability

import "strings"

// localProviders run models on the user's machine.
var localProviders = map[string]bool{
	"ollama":   true,
	"lmstudio": true,
	"llamacpp": true,
	"local":    true,
}

// ProviderDefault returns the fallback capabilities of a provider family.
// Local and unrecognized providers are text-only.
func ProviderDefault(provider string) ModelCapabilities {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if localProviders[provider] {
		return TextOnly()
	}

	switch provider {
	case "openai":
		return ModelCapabilities{SupportsText: true, SupportsVision: true}
	case "anthropic":
		return ModelCapabilities{
			SupportsText:         true,
			SupportsVision:       true,
			SupportsPDFNative:    true,
			RequiresImagesFirst:  true,
			RequiresBase64Images: true,
		}
	case "google":
		return ModelCapabilities{
			SupportsText:       true,
			SupportsVision:     true,
			SupportsAudioInput: true,
			SupportsPDFNative:  true,
		}
	default:
		// openrouter routes to arbitrary models; without metadata assume text.
		return TextOnly()
	}
}

// staticModels holds capabilities of well-known models, keyed by the model
// name without any vendor prefix.
var staticModels = map[string]ModelCapabilities{
	"gpt-4o": {
		SupportsText: true, SupportsVision: true,
		MaxInputTokens: intPtr(128000), MaxOutputTokens: intPtr(16384),
	},
	"gpt-4o-mini": {
		SupportsText: true, SupportsVision: true,
		MaxInputTokens: intPtr(128000), MaxOutputTokens: intPtr(16384),
	},
	"gpt-4-turbo": {
		SupportsText: true, SupportsVision: true,
		MaxInputTokens: intPtr(128000), MaxOutputTokens: intPtr(4096),
	},
	"gpt-4": {
		SupportsText:   true,
		MaxInputTokens: intPtr(8192), MaxOutputTokens: intPtr(8192),
	},
	"gpt-4o-audio-preview": {
		SupportsText: true, SupportsAudioInput: true, SupportsAudioOutput: true,
		MaxInputTokens: intPtr(128000), MaxOutputTokens: intPtr(16384),
	},
	"o3-mini": {
		SupportsText:   true,
		MaxInputTokens: intPtr(200000), MaxOutputTokens: intPtr(100000),
	},
	"claude-3.5-sonnet": {
		SupportsText: true, SupportsVision: true, SupportsPDFNative: true,
		MaxInputTokens: intPtr(200000), MaxOutputTokens: intPtr(8192),
		RequiresImagesFirst: true, RequiresBase64Images: true,
	},
	"claude-3.5-haiku": {
		SupportsText:   true,
		MaxInputTokens: intPtr(200000), MaxOutputTokens: intPtr(8192),
	},
	"claude-3-opus": {
		SupportsText: true, SupportsVision: true,
		MaxInputTokens: intPtr(200000), MaxOutputTokens: intPtr(4096),
		RequiresImagesFirst: true, RequiresBase64Images: true,
	},
	"claude-sonnet-4": {
		SupportsText: true, SupportsVision: true, SupportsPDFNative: true,
		MaxInputTokens: intPtr(200000), MaxOutputTokens: intPtr(64000),
		RequiresImagesFirst: true, RequiresBase64Images: true,
	},
	"claude-opus-4": {
		SupportsText: true, SupportsVision: true, SupportsPDFNative: true,
		MaxInputTokens: intPtr(200000), MaxOutputTokens: intPtr(32000),
		RequiresImagesFirst: true, RequiresBase64Images: true,
	},
	"gemini-2.0-flash": {
		SupportsText: true, SupportsVision: true, SupportsAudioInput: true, SupportsPDFNative: true,
		MaxInputTokens: intPtr(1048576), MaxOutputTokens: intPtr(8192),
	},
	"gemini-1.5-pro": {
		SupportsText: true, SupportsVision: true, SupportsAudioInput: true, SupportsPDFNative: true,
		MaxInputTokens: intPtr(2097152), MaxOutputTokens: intPtr(8192),
	},
	"dall-e-3": {
		SupportsText: true, SupportsImageGeneration: true,
	},
}

// lookupStatic finds a model in the static table. Vendor prefixes such as
// "openai/" are ignored. The result is a copy the caller may modify.
func lookupStatic(model string) (ModelCapabilities, bool) {
	key := strings.ToLower(strings.TrimSpace(model))
	c, ok := staticModels[key]
	if !ok {
		if i := strings.LastIndexByte(key, '/'); i >= 0 {
			c, ok = staticModels[key[i+1:]]
		}
	}
	if !ok {
		return ModelCapabilities{}, false
	}
	return c.Clone(), true
}
