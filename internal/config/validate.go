package config

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/flemzord/ctxpack/internal/transform"
)

// Validate checks the structural validity of a Config and reports every
// problem found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	errs = append(errs, validateLog(cfg.Log)...)
	errs = append(errs, validateTokenizer(cfg.Tokenizer)...)
	errs = append(errs, validateBudget(cfg.Budget)...)

	if cfg.Capabilities.CacheTTL < 0 {
		errs = append(errs, fmt.Errorf("config: capabilities.cache_ttl must be non-negative, got %s", cfg.Capabilities.CacheTTL))
	}
	if cfg.Capabilities.MissTTL < 0 {
		errs = append(errs, fmt.Errorf("config: capabilities.miss_ttl must be non-negative, got %s", cfg.Capabilities.MissTTL))
	}

	switch transform.Order(cfg.Transform.Order) {
	case "", transform.OrderDefault, transform.OrderImagesFirst, transform.OrderTextFirst:
	default:
		errs = append(errs, fmt.Errorf("config: transform.order %q is not one of default, images_first, text_first", cfg.Transform.Order))
	}

	if err := cfg.OpenRouter.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := cfg.Gateway.Validate(); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, validateCatalog(cfg.Catalog)...)
	if err := cfg.Telemetry.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func validateLog(l LogConfig) []error {
	var errs []error
	if l.Level != "" {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
			errs = append(errs, fmt.Errorf("config: log.level: %w", err))
		}
	}
	switch l.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("config: log.format must be text or json, got %q", l.Format))
	}
	return errs
}

func validateTokenizer(t TokenizerConfig) []error {
	var errs []error
	switch t.Kind {
	case "", TokenizerChars, TokenizerTiktoken:
	default:
		errs = append(errs, fmt.Errorf("config: tokenizer.kind must be %s or %s, got %q", TokenizerChars, TokenizerTiktoken, t.Kind))
	}
	if t.CharsPerToken < 0 {
		errs = append(errs, fmt.Errorf("config: tokenizer.chars_per_token must be non-negative, got %v", t.CharsPerToken))
	}
	return errs
}

func validateBudget(b BudgetConfig) []error {
	var errs []error
	if b.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("config: budget.max_tokens must be non-negative, got %d", b.MaxTokens))
	}
	if b.MinChunks < 0 {
		errs = append(errs, fmt.Errorf("config: budget.min_chunks must be non-negative, got %d", b.MinChunks))
	}
	if b.IndexEntryTokens < 0 || b.AttachmentTokens < 0 {
		errs = append(errs, errors.New("config: budget token costs must be non-negative"))
	}
	return errs
}

func validateCatalog(c CatalogConfig) []error {
	var errs []error
	if c.MaxAge < 0 {
		errs = append(errs, fmt.Errorf("config: catalog.max_age must be non-negative, got %s", c.MaxAge))
	}
	for name, expr := range map[string]string{"schedule": c.Schedule, "overrides_schedule": c.OverridesSchedule} {
		if expr == "" || expr == ScheduleOff {
			continue
		}
		if _, err := cron.ParseStandard(expr); err != nil {
			errs = append(errs, fmt.Errorf("config: catalog.%s: %w", name, err))
		}
	}
	if c.Enabled {
		if err := c.Config.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
