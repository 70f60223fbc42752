package ctxengine_test

import (
	"github.com/flemzord/ctxpack/pkg/anchor"
	"github.com/flemzord/ctxpack/pkg/envelope"
)

// lenEstimator implements ctxengine.TokenEstimator with one token per byte.
type lenEstimator struct{}

func (lenEstimator) Estimate(text string) int { return len(text) }

// chunk builds a hand-made chunk whose token count equals tokens.
func chunk(a anchor.Anchor, content string, tokens int, score float64, pos int) envelope.Chunk {
	return envelope.Chunk{
		Anchor:         a,
		SourceType:     envelope.SourceWebPage,
		Content:        content,
		TokenCount:     tokens,
		RelevanceScore: score,
		Position:       pos,
	}
}

func sampleSources() []envelope.Source {
	return []envelope.Source{
		envelope.WebPage{URL: "https://example.com/a", Title: "A", Content: "Go is a language. It has goroutines. It compiles fast. It is simple."},
		envelope.PDF{URL: "https://example.com/doc.pdf", Title: "Doc", Pages: []string{"First page text.", "Second page text."}},
		envelope.Image{URL: "https://example.com/cat.png", Title: "Cat"},
		envelope.Note{Title: "todo", Content: "Remember the budget ladder."},
		envelope.ChatLog{Title: "chat", Messages: []envelope.ChatTurn{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "hello"}}},
	}
}

func intPtr(n int) *int { return &n }
