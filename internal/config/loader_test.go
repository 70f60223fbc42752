package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ctxpack.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Sections(t *testing.T) {
	t.Setenv("CTXPACK_TEST_KEY", "sk-or-v1-abc")

	path := writeConfig(t, `
version: "1"
log:
  level: debug
  format: json
tokenizer:
  kind: chars
  chars_per_token: 3.5
budget:
  max_tokens: 8000
  min_chunks: 2
  attachment_tokens: 500
capabilities:
  overrides_path: overrides.json
  cache_ttl: 12h
transform:
  order: text_first
openrouter:
  api_key: ${CTXPACK_TEST_KEY}
  model: ${CTXPACK_TEST_MODEL:-auto}
gateway:
  bind: 127.0.0.1:9000
  max_body_bytes: 1048576
  rate_limit:
    requests_per_min: 120
catalog:
  enabled: true
  path: ":memory:"
  schedule: "0 * * * *"
  max_age: 72h
telemetry:
  otlp_endpoint: http://localhost:4318
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.Log.Format != "json" || cfg.Tokenizer.CharsPerToken != 3.5 {
		t.Errorf("log/tokenizer = %+v %+v", cfg.Log, cfg.Tokenizer)
	}
	if cfg.Budget.MaxTokens != 8000 || cfg.Budget.MinChunks != 2 || cfg.Budget.AttachmentTokens != 500 {
		t.Errorf("budget = %+v", cfg.Budget)
	}
	if cfg.Capabilities.CacheTTL != 12*time.Hour {
		t.Errorf("cache_ttl = %s, want 12h", cfg.Capabilities.CacheTTL)
	}
	if cfg.OpenRouter.APIKey != "sk-or-v1-abc" || cfg.OpenRouter.Model != "auto" {
		t.Errorf("openrouter = %+v", cfg.OpenRouter)
	}
	if cfg.Gateway.Bind != "127.0.0.1:9000" || cfg.Gateway.MaxBodyBytes != 1<<20 || cfg.Gateway.RateLimit.RequestsPerMin != 120 {
		t.Errorf("gateway = %+v", cfg.Gateway)
	}
	if !cfg.Catalog.Enabled || cfg.Catalog.Path != ":memory:" || cfg.Catalog.MaxAge != 72*time.Hour {
		t.Errorf("catalog = %+v", cfg.Catalog)
	}
	if !cfg.Telemetry.Enabled() {
		t.Error("telemetry should be enabled")
	}
}

func TestLoad_UnresolvedVariables(t *testing.T) {
	path := writeConfig(t, `
version: "1"
openrouter:
  api_key: ${CTXPACK_TEST_MISSING_A}
  referer: ${CTXPACK_TEST_MISSING_B}
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unresolved variables")
	}
	for _, name := range []string{"CTXPACK_TEST_MISSING_A", "CTXPACK_TEST_MISSING_B"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error %q missing %s", err, name)
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("CTXPACK_TEST_SET", "value")

	tests := []struct {
		in   string
		want string
	}{
		{"a: ${CTXPACK_TEST_SET}", "a: value"},
		{"a: ${CTXPACK_TEST_UNSET:-fallback}", "a: fallback"},
		{"a: ${CTXPACK_TEST_SET:-fallback}", "a: value"},
		{"a: ${CTXPACK_TEST_UNSET:-}", "a: "},
		{"a: plain $HOME", "a: plain $HOME"},
	}
	for _, tt := range tests {
		got, err := expandEnv([]byte(tt.in))
		if err != nil {
			t.Errorf("expandEnv(%q): %v", tt.in, err)
			continue
		}
		if string(got) != tt.want {
			t.Errorf("expandEnv(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantErr bool
	}{
		{"empty document", "", false},
		{"minimal", "version: \"1\"\n", false},
		{"misspelled key", "version: \"1\"\nbudjet:\n  max_tokens: 10\n", true},
		{"wrong type", "budget:\n  max_tokens: lots\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := Parse([]byte(tt.yaml))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && cfg == nil {
				t.Fatal("Parse() returned nil config")
			}
		})
	}
}
