package ctxengine

import (
	"strings"
	"unicode"

	"github.com/flemzord/ctxpack/pkg/envelope"
)

// Ranker assigns relevance scores in [0,1] to the chunks of an envelope.
// Implementations return a new envelope and leave the input untouched.
type Ranker interface {
	Rank(env *envelope.Envelope, task string) *envelope.Envelope
}

// KeywordRanker scores chunks by the share of task terms they contain.
// Chunks keep the neutral score when the task has no usable terms.
type KeywordRanker struct {
	// MinTermLength drops short task words such as articles. Default 3.
	MinTermLength int
}

var _ Ranker = KeywordRanker{}

// Rank implements Ranker.
func (r KeywordRanker) Rank(env *envelope.Envelope, task string) *envelope.Envelope {
	out := env.Clone()
	if out == nil {
		return nil
	}
	terms := r.terms(task)
	if len(terms) == 0 {
		return out
	}
	for i := range out.Chunks {
		words := make(map[string]struct{})
		for _, w := range tokenize(out.Chunks[i].Content) {
			words[w] = struct{}{}
		}
		hits := 0
		for term := range terms {
			if _, ok := words[term]; ok {
				hits++
			}
		}
		out.Chunks[i].RelevanceScore = float64(hits) / float64(len(terms))
	}
	return out
}

func (r KeywordRanker) terms(task string) map[string]struct{} {
	minLen := r.MinTermLength
	if minLen <= 0 {
		minLen = 3
	}
	out := make(map[string]struct{})
	for _, w := range tokenize(task) {
		if len([]rune(w)) >= minLen {
			out[w] = struct{}{}
		}
	}
	return out
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// ApplyScores returns a copy of env with scores assigned by anchor. Chunks
// whose anchor is absent keep their score; values are clamped to [0,1].
func ApplyScores(env *envelope.Envelope, scores map[string]float64) *envelope.Envelope {
	out := env.Clone()
	if out == nil {
		return nil
	}
	for i := range out.Chunks {
		if s, ok := scores[string(out.Chunks[i].Anchor)]; ok {
			out.Chunks[i].RelevanceScore = min(max(s, 0), 1)
		}
	}
	return out
}
