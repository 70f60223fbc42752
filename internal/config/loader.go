package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// envRef matches ${NAME} and ${NAME:-fallback}.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-((?:[^}\\]|\\.)*))?\}`)

// Load reads the YAML file at path. See Parse.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	cfg, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse expands environment references in raw and decodes it. Unknown keys
// are rejected. The result is not validated.
func Parse(raw []byte) (*Config, error) {
	expanded, err := expandEnv(raw)
	if err != nil {
		return nil, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(expanded))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}
	return &cfg, nil
}

// expandEnv substitutes environment references. Every reference with
// neither a value nor a fallback is reported.
func expandEnv(raw []byte) ([]byte, error) {
	var (
		out     bytes.Buffer
		missing []error
		last    int
	)
	for _, m := range envRef.FindAllSubmatchIndex(raw, -1) {
		out.Write(raw[last:m[0]])
		last = m[1]

		name := string(raw[m[2]:m[3]])
		if v, ok := os.LookupEnv(name); ok {
			out.WriteString(v)
			continue
		}
		if m[4] >= 0 {
			out.Write(raw[m[4]:m[5]])
			continue
		}
		missing = append(missing, fmt.Errorf("unresolved variable: %s", name))
		out.Write(raw[m[0]:m[1]])
	}
	out.Write(raw[last:])
	return out.Bytes(), errors.Join(missing...)
}
