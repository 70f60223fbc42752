package security

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestReadBody(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		size    int
		limit   int
		wantErr error
	}{
		{"within limit", 100, 1024, nil},
		{"at limit", 1024, 1024, nil},
		{"over limit", 1025, 1024, ErrBodyTooLarge},
		{"default limit", 4096, 0, nil},
		{"empty", 0, 100, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			data, err := ReadBody(bytes.NewReader(make([]byte, tt.size)), tt.limit)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ReadBody(size=%d, limit=%d) = %v, want %v", tt.size, tt.limit, err, tt.wantErr)
			}
			if err == nil && len(data) != tt.size {
				t.Errorf("read %d bytes, want %d", len(data), tt.size)
			}
		})
	}
}

func TestValidateJSONDepth(t *testing.T) {
	t.Parallel()

	sources := `{"task": "t", "sources": [{"type": "chatlog", "messages": [{"role": "user", "content": "hi"}]}]}`

	tests := []struct {
		name    string
		json    string
		limit   int
		wantErr error
	}{
		{"source request", sources, 5, nil},
		{"source request over limit", sources, 4, ErrJSONTooDeep},
		{"arrays count", `[[[1]]]`, 3, nil},
		{"arrays over limit", `[[[[1]]]]`, 3, ErrJSONTooDeep},
		{"scalar", `"hello"`, 1, nil},
		{"empty", "", 1, nil},
		{"default limit", sources, 0, nil},
		{"mismatched delimiter", `{"sources": ]`, 8, ErrInvalidJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := ValidateJSONDepth([]byte(tt.json), tt.limit); !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateJSONDepth(%q, %d) = %v, want %v", tt.json, tt.limit, err, tt.wantErr)
			}
		})
	}
}

func TestValidateJSONDepth_DefaultRejectsDeepNesting(t *testing.T) {
	t.Parallel()

	const depth = DefaultMaxJSONDepth + 1
	doc := strings.Repeat(`{"a":`, depth) + "1" + strings.Repeat("}", depth)

	if err := ValidateJSONDepth([]byte(doc), 0); !errors.Is(err, ErrJSONTooDeep) {
		t.Errorf("depth %d: got %v, want ErrJSONTooDeep", depth, err)
	}
}

func BenchmarkValidateJSONDepth(b *testing.B) {
	data := []byte(`{"model": "openai/gpt-4o", "sources": [{"type": "pdf", "pages": ["one", "two"]}, {"type": "note", "content": "x"}]}`)
	for b.Loop() {
		_ = ValidateJSONDepth(data, DefaultMaxJSONDepth)
	}
}
