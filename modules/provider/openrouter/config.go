package openrouter

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Config is the openrouter section of the service configuration.
type Config struct {
	// APIKey is used when a call carries no key of its own.
	APIKey string `yaml:"api_key"`

	// Model is the default chat model. "auto" selects openrouter/auto.
	Model string `yaml:"model"`

	// BaseURL defaults to https://openrouter.ai/api/v1.
	BaseURL string `yaml:"base_url"`

	// Referer and Title identify the caller on openrouter.ai rankings.
	Referer string `yaml:"referer"`
	Title   string `yaml:"title"`

	// Timeout bounds dialing, the TLS handshake and the wait for response
	// headers. It never cuts a stream short. Default 2m.
	Timeout time.Duration `yaml:"timeout"`
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = "https://openrouter.ai/api/v1"
	}
	if c.Timeout == 0 {
		c.Timeout = 2 * time.Minute
	}
	return c
}

func (c Config) model() string {
	if c.Model == "auto" {
		return "openrouter/auto"
	}
	return c.Model
}

// Validate reports every invalid field once defaults are applied.
func (c Config) Validate() error {
	c = c.withDefaults()
	var errs []error

	if u, err := url.Parse(c.BaseURL); err != nil {
		errs = append(errs, fmt.Errorf("openrouter: invalid base_url: %w", err))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, fmt.Errorf("openrouter: base_url scheme must be http or https, got %q", u.Scheme))
	} else if u.Host == "" {
		errs = append(errs, errors.New("openrouter: base_url must include a host"))
	}

	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("openrouter: timeout must not be negative, got %s", c.Timeout))
	}
	return errors.Join(errs...)
}
