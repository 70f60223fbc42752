package ctxengine

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/flemzord/ctxpack/pkg/anchor"
)

const (
	// summarySentences is the number of leading sentences kept.
	summarySentences = 3

	// summaryMaxChars caps the excerpt so a summary stays small even when
	// the content has no sentence punctuation.
	summaryMaxChars = 320
)

// ExtractiveSummary returns the first sentences of content followed by a
// marker pointing back to the anchor. Empty content yields the marker alone.
func ExtractiveSummary(content string, a anchor.Anchor) string {
	text := strings.Join(strings.Fields(content), " ")
	if text == "" {
		return fmt.Sprintf("[see %s for content]", a)
	}

	excerpt := leadingSentences(text, summarySentences)
	if len(excerpt) > summaryMaxChars {
		excerpt = capAtWord(excerpt, summaryMaxChars)
	}
	return fmt.Sprintf("%s ...[extractive summary, see %s for full content]", excerpt, a)
}

// leadingSentences returns the first n sentences of text. A sentence ends at
// '.', '!' or '?' followed by whitespace or the end of the text.
func leadingSentences(text string, n int) string {
	count := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			if i+1 == len(text) || isSpace(text[i+1]) {
				count++
				if count == n {
					return text[:i+1]
				}
			}
		}
	}
	return text
}

// capAtWord shortens s to at most limit bytes, cutting at the last space
// when there is one and never inside a UTF-8 sequence.
func capAtWord(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := runeFloor(s, limit)
	if i := strings.LastIndexByte(s[:cut], ' '); i > 0 {
		cut = i
	}
	return strings.TrimSpace(s[:cut])
}

// runeFloor returns the largest offset <= n that starts a rune.
func runeFloor(s string, n int) int {
	if n >= len(s) {
		return len(s)
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return n
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}
