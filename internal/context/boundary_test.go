package ctxengine_test

import (
	"reflect"
	"strings"
	"testing"

	ctxengine "github.com/flemzord/ctxpack/internal/context"
)

func TestFindSemanticBoundaries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want []int
	}{
		{"empty", "", []int{0}},
		{"plain", "no boundaries here", []int{0, 18}},
		{"headings and paragraphs", "# Title\n\nPara one.\n\n## Sub\nBody", []int{0, 7, 18, 20, 31}},
		{"page markers", "[Page 1]\nabc\n[Page 2]\ndef", []int{0, 13, 25}},
		{"horizontal rule", "abc\n---\ndef", []int{0, 4, 11}},
		{"heading inside code fence", "```\n# not heading\n```", []int{0, 21}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ctxengine.FindSemanticBoundaries(tt.text); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FindSemanticBoundaries(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestTruncateAtBoundary(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		text     string
		maxChars int
		want     string
	}{
		{"fits", "short", 10, "short"},
		{"exact", "short", 5, "short"},
		{"semantic boundary", "Para one.\n\nPara two is longer.", 15, "Para one.\n[truncated]"},
		{"word boundary", "alpha beta gamma", 12, "alpha beta\n[truncated]"},
		{"hard cut", "abcdefghij", 4, "abcd\n[truncated]"},
		{"hard cut keeps runes whole", "ééééé", 3, "é\n[truncated]"},
		{"zero budget", "abc", 0, "[truncated]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ctxengine.TruncateAtBoundary(tt.text, tt.maxChars); got != tt.want {
				t.Errorf("TruncateAtBoundary(%q, %d) = %q, want %q", tt.text, tt.maxChars, got, tt.want)
			}
		})
	}
}

func TestTruncateAtBoundary_NeverSplitsWords(t *testing.T) {
	t.Parallel()

	text := "The quick brown fox jumps over the lazy dog and keeps running far away"
	for maxChars := 4; maxChars < len(text); maxChars++ {
		got := ctxengine.TruncateAtBoundary(text, maxChars)
		head := strings.TrimSuffix(got, "\n"+ctxengine.TruncationMarker)
		if head == got {
			t.Fatalf("maxChars=%d: missing marker in %q", maxChars, got)
		}
		if !strings.HasPrefix(text, head) {
			t.Fatalf("maxChars=%d: %q is not a prefix", maxChars, head)
		}
		if len(head) > maxChars {
			t.Errorf("maxChars=%d: head length %d exceeds limit", maxChars, len(head))
		}
		if next := text[len(head)]; next != ' ' {
			t.Errorf("maxChars=%d: cut mid-word before %q", maxChars, next)
		}
	}
}
