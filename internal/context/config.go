// Package ctxengine builds context envelopes from captured sources and fits
// them to a token budget through an ordered ladder of lossy degradations.
package ctxengine

// Config holds the token accounting knobs of the degradation engine.
type Config struct {
	// IndexEntryTokens is the fixed cost of one index entry.
	IndexEntryTokens int `yaml:"index_entry_tokens"`

	// AttachmentTokens is the cost charged for each included attachment.
	AttachmentTokens int `yaml:"attachment_tokens"`

	// MinChunks is the default soft floor on retained chunks for stages 1-2.
	MinChunks int `yaml:"min_chunks"`
}

// withDefaults returns a copy of cfg with zero-valued fields replaced by
// sensible defaults.
func (cfg Config) withDefaults() Config {
	if cfg.IndexEntryTokens <= 0 {
		cfg.IndexEntryTokens = 12
	}
	if cfg.AttachmentTokens <= 0 {
		// Conservative estimate for an "auto" detail image.
		cfg.AttachmentTokens = 765
	}
	if cfg.MinChunks < 0 {
		cfg.MinChunks = 0
	}
	return cfg
}
