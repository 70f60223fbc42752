// Package config handles YAML configuration loading, environment variable
// expansion, defaults, and validation for ctxpack.
package config

import (
	"time"

	"github.com/flemzord/ctxpack/internal/capability"
	ctxengine "github.com/flemzord/ctxpack/internal/context"
	"github.com/flemzord/ctxpack/internal/gateway"
	"github.com/flemzord/ctxpack/internal/telemetry"
	"github.com/flemzord/ctxpack/modules/catalog/sqlite"
	"github.com/flemzord/ctxpack/modules/provider/openrouter"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	Log          LogConfig         `yaml:"log"`
	Tokenizer    TokenizerConfig   `yaml:"tokenizer"`
	Budget       BudgetConfig      `yaml:"budget"`
	Capabilities capability.Config `yaml:"capabilities"`
	Transform    TransformConfig   `yaml:"transform"`
	OpenRouter   openrouter.Config `yaml:"openrouter"`
	Gateway      gateway.Config    `yaml:"gateway"`
	Catalog      CatalogConfig     `yaml:"catalog"`
	Telemetry    telemetry.Config  `yaml:"telemetry"`
}

// LogConfig selects the log handler.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Default: info.
	Level string `yaml:"level"`

	// Format is "text" or "json". Default: text.
	Format string `yaml:"format"`

	// AuditFile, when set, receives gateway audit events as JSONL.
	AuditFile string `yaml:"audit_file"`
}

// Tokenizer kinds.
const (
	TokenizerChars    = "chars"
	TokenizerTiktoken = "tiktoken"
)

// TokenizerConfig selects the token estimator.
type TokenizerConfig struct {
	// Kind is "chars" or "tiktoken". Default: chars.
	Kind string `yaml:"kind"`

	// CharsPerToken is the divisor of the chars estimator. Default: 4.
	CharsPerToken float64 `yaml:"chars_per_token"`

	// Encoding is the tiktoken encoding. Default: cl100k_base.
	Encoding string `yaml:"encoding"`
}

// BudgetConfig holds the default budget and the engine accounting knobs.
type BudgetConfig struct {
	// MaxTokens is the default budget when a request sets none.
	// Zero means unbounded.
	MaxTokens int `yaml:"max_tokens"`

	ctxengine.Config `yaml:",inline"`
}

// TransformConfig holds message transformer defaults.
type TransformConfig struct {
	// Order is default, images_first or text_first.
	Order string `yaml:"order"`
}

// CatalogConfig controls the persistent model catalog and its refresh job.
type CatalogConfig struct {
	// Enabled turns on the SQLite metadata cache.
	Enabled bool `yaml:"enabled"`

	sqlite.Config `yaml:",inline"`

	// Schedule is the cron expression of the refresh job. Empty uses the
	// job default; "off" disables refreshing.
	Schedule string `yaml:"schedule"`

	// MaxAge prunes entries not refreshed within this window. Zero keeps
	// everything.
	MaxAge time.Duration `yaml:"max_age"`

	// OverridesSchedule is the cron expression of the override reload
	// job. Empty uses the job default; "off" disables it.
	OverridesSchedule string `yaml:"overrides_schedule"`

	// OverridesWatch is how often the override file is polled for edits.
	// Zero uses 5s; a negative value disables the watcher.
	OverridesWatch time.Duration `yaml:"overrides_watch"`
}

// ScheduleOff disables a scheduled job.
const ScheduleOff = "off"
