package ctxengine

import (
	"regexp"
	"slices"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// TruncationMarker is appended to text cut by TruncateAtBoundary.
const TruncationMarker = "[truncated]"

var (
	paragraphBreak = regexp.MustCompile(`\n[ \t]*\n`)
	pageMarker     = regexp.MustCompile(`\[Page \d+\]`)
	horizontalRule = regexp.MustCompile(`(?m)^[ \t]*-{3,}[ \t]*$`)
)

// markdown is shared; goldmark keeps per-call state in the reader.
var markdown = goldmark.New()

// FindSemanticBoundaries returns the ascending, deduplicated byte offsets at
// which text can be cut cleanly: 0, len(text), and the offsets just before
// Markdown headings, blank-line paragraph breaks, "[Page N]" markers and
// horizontal rules.
func FindSemanticBoundaries(s string) []int {
	offsets := []int{0, len(s)}
	if s == "" {
		return offsets[:1]
	}

	offsets = append(offsets, headingOffsets([]byte(s))...)
	for _, re := range []*regexp.Regexp{paragraphBreak, pageMarker, horizontalRule} {
		for _, m := range re.FindAllStringIndex(s, -1) {
			offsets = append(offsets, m[0])
		}
	}

	slices.Sort(offsets)
	return slices.Compact(offsets)
}

// headingOffsets returns the start of each line holding a Markdown heading.
// Lines inside code blocks are not headings and are not reported.
func headingOffsets(src []byte) []int {
	doc := markdown.Parser().Parse(text.NewReader(src))

	var out []int
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || n.Kind() != ast.KindHeading {
			return ast.WalkContinue, nil
		}
		if lines := n.Lines(); lines.Len() > 0 {
			out = append(out, lineStart(src, lines.At(0).Start))
		}
		return ast.WalkSkipChildren, nil
	})
	return out
}

func lineStart(src []byte, pos int) int {
	for pos > 0 && src[pos-1] != '\n' {
		pos--
	}
	return pos
}

// TruncateAtBoundary shortens s to at most maxChars bytes of content and
// appends TruncationMarker. It cuts at the largest semantic boundary that
// fits, falls back to the last whitespace so no word is split, and only
// hard-cuts at maxChars when neither exists.
func TruncateAtBoundary(s string, maxChars int) string {
	if len(s) <= maxChars {
		return s
	}
	if maxChars <= 0 {
		return TruncationMarker
	}

	cut := 0
	for _, b := range FindSemanticBoundaries(s) {
		if b > maxChars {
			break
		}
		cut = b
	}
	if cut == 0 {
		cut = wordBoundary(s, maxChars)
	}
	if cut == 0 {
		cut = runeFloor(s, maxChars)
	}

	head := strings.TrimRight(s[:cut], " \t\r\n")
	if head == "" {
		return TruncationMarker
	}
	return head + "\n" + TruncationMarker
}

// wordBoundary returns the largest offset in (0, maxChars] that sits on
// whitespace, or 0 when there is none.
func wordBoundary(s string, maxChars int) int {
	for i := min(maxChars, len(s)-1); i > 0; i-- {
		if isSpace(s[i]) {
			return i
		}
	}
	return 0
}
