// Package envelope defines the context envelope handed to a model request:
// budget-bearing text chunks, non-text attachments, the per-source index
// ledger, and the token budget with its record of cuts.
package envelope

import (
	"slices"

	"github.com/flemzord/ctxpack/pkg/anchor"
)

// SourceType identifies the kind of captured source.
type SourceType string

// SourceType constants.
const (
	SourceWebPage SourceType = "webpage"
	SourcePDF     SourceType = "pdf"
	SourceImage   SourceType = "image"
	SourceChatLog SourceType = "chatlog"
	SourceNote    SourceType = "note"
)

// ArtifactType identifies the kind of a non-text attachment.
type ArtifactType string

// ArtifactType constants.
const (
	ArtifactImage ArtifactType = "image"
	ArtifactPDF   ArtifactType = "pdf"
)

// CutType classifies a lossy change recorded in the budget.
type CutType string

// CutType constants.
const (
	CutRemoved    CutType = "removed"
	CutSummarized CutType = "summarized"
	CutTruncated  CutType = "truncated"
)

// Stage is a rung of the degradation ladder (0 = untouched, 5 = index only).
type Stage int

// Degradation stages.
const (
	StageFits Stage = iota
	StageRemoveLowRanked
	StageSummarize
	StageTopK
	StageTruncate
	StageIndexOnly
)

// String implements fmt.Stringer.
func (s Stage) String() string {
	switch s {
	case StageFits:
		return "fits"
	case StageRemoveLowRanked:
		return "remove_low_ranked"
	case StageSummarize:
		return "summarize"
	case StageTopK:
		return "top_k"
	case StageTruncate:
		return "truncate"
	case StageIndexOnly:
		return "index_only"
	default:
		return "unknown"
	}
}

// NeutralRelevance is the score assigned before a ranker runs.
const NeutralRelevance = 0.5

// Chunk is a budget-bearing unit of text derived from one source, or one
// page of a source.
type Chunk struct {
	Anchor         anchor.Anchor `json:"anchor"`
	SourceType     SourceType    `json:"source_type"`
	Content        string        `json:"content"`
	TokenCount     int           `json:"token_count"`
	RelevanceScore float64       `json:"relevance_score"`
	Truncated      bool          `json:"truncated"`
	Summarized     bool          `json:"summarized,omitempty"`

	// Position is the originating order, the tie-breaker for equal scores.
	Position int `json:"position"`
}

// SourceID returns the id of the chunk's source.
func (c Chunk) SourceID() anchor.SourceID {
	return anchor.SourceIDOf(c.Anchor)
}

// Attachment is a non-text artifact. Included reflects the budget decision;
// the message transformer applies the capability decision on top.
type Attachment struct {
	Anchor       anchor.Anchor `json:"anchor"`
	ArtifactType ArtifactType  `json:"artifact_type"`
	MimeType     string        `json:"mime_type"`
	URI          string        `json:"uri,omitempty"`
	Included     bool          `json:"included"`
}

// IndexEntry is the permanent per-source ledger entry.
type IndexEntry struct {
	Anchor          anchor.Anchor `json:"anchor"`
	SourceType      SourceType    `json:"source_type"`
	Title           string        `json:"title,omitempty"`
	ContentIncluded bool          `json:"content_included"`
	PagesAttached   []int         `json:"pages_attached,omitempty"`
	Summary         string        `json:"summary,omitempty"`
}

// Cut records one lossy change made while fitting the budget.
type Cut struct {
	Anchor         anchor.Anchor `json:"anchor"`
	Type           CutType       `json:"type"`
	Reason         string        `json:"reason"`
	OriginalTokens int           `json:"original_tokens"`
}

// Budget is the token budget of an envelope. MaxTokens 0 means unbounded.
type Budget struct {
	MaxTokens    int   `json:"max_tokens"`
	UsedTokens   int   `json:"used_tokens"`
	DegradeStage Stage `json:"degrade_stage"`
	Cuts         []Cut `json:"cuts"`
}

// Envelope is the complete context package for one model request.
type Envelope struct {
	Task        string       `json:"task,omitempty"`
	Chunks      []Chunk      `json:"chunks"`
	Attachments []Attachment `json:"attachments"`
	Index       []IndexEntry `json:"index"`
	Budget      Budget       `json:"budget"`
}

// Clone returns a deep copy of e.
func (e *Envelope) Clone() *Envelope {
	if e == nil {
		return nil
	}
	out := &Envelope{
		Task:        e.Task,
		Chunks:      slices.Clone(e.Chunks),
		Attachments: slices.Clone(e.Attachments),
		Index:       make([]IndexEntry, len(e.Index)),
		Budget: Budget{
			MaxTokens:    e.Budget.MaxTokens,
			UsedTokens:   e.Budget.UsedTokens,
			DegradeStage: e.Budget.DegradeStage,
			Cuts:         slices.Clone(e.Budget.Cuts),
		},
	}
	for i, entry := range e.Index {
		entry.PagesAttached = slices.Clone(entry.PagesAttached)
		out.Index[i] = entry
	}
	return out
}

// ChunkTokens returns the sum of the token counts of all chunks.
func (e *Envelope) ChunkTokens() int {
	total := 0
	for i := range e.Chunks {
		total += e.Chunks[i].TokenCount
	}
	return total
}

// CutsOfType returns the cuts of the given type, in recording order.
func (b Budget) CutsOfType(t CutType) []Cut {
	var out []Cut
	for _, c := range b.Cuts {
		if c.Type == t {
			out = append(out, c)
		}
	}
	return out
}
