package ctxengine_test

import (
	"reflect"
	"strings"
	"testing"

	ctxengine "github.com/flemzord/ctxpack/internal/context"
	"github.com/flemzord/ctxpack/pkg/anchor"
	"github.com/flemzord/ctxpack/pkg/envelope"
)

func newDegrader() *ctxengine.Degrader {
	return ctxengine.NewDegrader(lenEstimator{}, ctxengine.Config{}, nil)
}

func TestDegrader_UnboundedReturnsInput(t *testing.T) {
	t.Parallel()

	env := ctxengine.NewBuilder(lenEstimator{}).Build(sampleSources(), "")
	if got := newDegrader().Apply(env, ctxengine.BudgetOptions{}); got != env {
		t.Error("Apply with MaxTokens 0 should return the input pointer")
	}
}

func TestDegrader_FitsAsIs(t *testing.T) {
	t.Parallel()

	env := &envelope.Envelope{Chunks: []envelope.Chunk{
		chunk("src:aaaaaaaa", "hello", 5, 0.5, 0),
	}}
	got := newDegrader().Apply(env, ctxengine.BudgetOptions{MaxTokens: 100})

	if got == env {
		t.Fatal("bounded Apply should return a new envelope")
	}
	if got.Budget.DegradeStage != envelope.StageFits {
		t.Errorf("stage = %v, want fits", got.Budget.DegradeStage)
	}
	if got.Budget.Cuts == nil || len(got.Budget.Cuts) != 0 {
		t.Errorf("cuts = %v, want empty", got.Budget.Cuts)
	}
	if got.Budget.UsedTokens != 5 || got.Budget.MaxTokens != 100 {
		t.Errorf("budget = %+v", got.Budget)
	}
}

func TestDegrader_RemovesLowestRanked(t *testing.T) {
	t.Parallel()

	env := &envelope.Envelope{Chunks: []envelope.Chunk{
		chunk("src:aaaaaaaa", strings.Repeat("a", 400), 400, 0.9, 0),
		chunk("src:bbbbbbbb", strings.Repeat("b", 400), 400, 0.1, 1),
	}}
	got := newDegrader().Apply(env, ctxengine.BudgetOptions{MaxTokens: 400, MinChunks: intPtr(1)})

	if len(got.Chunks) != 1 || got.Chunks[0].Anchor != "src:aaaaaaaa" {
		t.Fatalf("chunks = %v, want only the 0.9 chunk", got.Chunks)
	}
	if got.Budget.DegradeStage < envelope.StageRemoveLowRanked {
		t.Errorf("stage = %v, want >= 1", got.Budget.DegradeStage)
	}
	removed := got.Budget.CutsOfType(envelope.CutRemoved)
	if len(removed) != 1 || removed[0].Anchor != "src:bbbbbbbb" || removed[0].OriginalTokens != 400 {
		t.Errorf("removed cuts = %+v", removed)
	}
	if !strings.Contains(removed[0].Reason, "0.10") {
		t.Errorf("reason %q should name the relevance", removed[0].Reason)
	}
	if got.Budget.UsedTokens > 400 {
		t.Errorf("UsedTokens = %d exceeds budget", got.Budget.UsedTokens)
	}
}

func TestDegrader_TieBreaksOnPosition(t *testing.T) {
	t.Parallel()

	env := &envelope.Envelope{Chunks: []envelope.Chunk{
		chunk("src:aaaaaaaa", "first", 10, 0.5, 0),
		chunk("src:bbbbbbbb", "second", 10, 0.5, 1),
		chunk("src:cccccccc", "third", 10, 0.5, 2),
	}}
	got := newDegrader().Apply(env, ctxengine.BudgetOptions{MaxTokens: 20})

	if len(got.Chunks) != 2 || got.Chunks[0].Anchor != "src:aaaaaaaa" || got.Chunks[1].Anchor != "src:bbbbbbbb" {
		t.Errorf("chunks = %v, want the first two in order", got.Chunks)
	}
}

func TestDegrader_Summarizes(t *testing.T) {
	t.Parallel()

	content := "Alpha one. Beta two. Gamma three. " + strings.Repeat("filler words here ", 50)
	env := &envelope.Envelope{Chunks: []envelope.Chunk{
		chunk("src:aaaaaaaa", content, len(content), 0.5, 0),
	}}
	got := newDegrader().Apply(env, ctxengine.BudgetOptions{MaxTokens: 200, MinChunks: intPtr(1)})

	if got.Budget.DegradeStage != envelope.StageSummarize {
		t.Fatalf("stage = %v, want summarize", got.Budget.DegradeStage)
	}
	c := got.Chunks[0]
	if !c.Summarized || !strings.HasPrefix(c.Content, "Alpha one. Beta two. Gamma three.") {
		t.Errorf("chunk = %+v", c)
	}
	cuts := got.Budget.CutsOfType(envelope.CutSummarized)
	if len(cuts) != 1 || cuts[0].OriginalTokens != len(content) {
		t.Errorf("summarized cuts = %+v", cuts)
	}
}

func TestDegrader_TopK(t *testing.T) {
	t.Parallel()

	env := &envelope.Envelope{Chunks: []envelope.Chunk{
		chunk("src:aaaaaaaa", strings.Repeat("x", 100), 100, 0.9, 0),
		chunk("src:bbbbbbbb", strings.Repeat("y", 100), 100, 0.1, 1),
	}}
	got := newDegrader().Apply(env, ctxengine.BudgetOptions{MaxTokens: 150, MinChunks: intPtr(2)})

	if got.Budget.DegradeStage != envelope.StageTopK {
		t.Fatalf("stage = %v, want top_k", got.Budget.DegradeStage)
	}
	if len(got.Chunks) != 1 || got.Chunks[0].Anchor != "src:aaaaaaaa" {
		t.Errorf("chunks = %v", got.Chunks)
	}
}

func TestDegrader_Truncates(t *testing.T) {
	t.Parallel()

	content := "Intro paragraph here.\n\n" + strings.Repeat("word ", 100)
	env := &envelope.Envelope{Chunks: []envelope.Chunk{
		chunk("src:aaaaaaaa", content, len(content), 0.5, 0),
	}}
	got := newDegrader().Apply(env, ctxengine.BudgetOptions{MaxTokens: 100, MinChunks: intPtr(1)})

	if got.Budget.DegradeStage != envelope.StageTruncate {
		t.Fatalf("stage = %v, want truncate", got.Budget.DegradeStage)
	}
	c := got.Chunks[0]
	if !c.Truncated || c.Content != "Intro paragraph here.\n[truncated]" {
		t.Errorf("chunk = %+v", c)
	}
	if len(got.Budget.CutsOfType(envelope.CutSummarized)) != 0 {
		t.Error("summarized cut should be replaced by the truncation")
	}
	cuts := got.Budget.CutsOfType(envelope.CutTruncated)
	if len(cuts) != 1 || cuts[0].OriginalTokens != len(content) {
		t.Errorf("truncated cuts = %+v", cuts)
	}
	if got.Budget.UsedTokens > 100 {
		t.Errorf("UsedTokens = %d exceeds budget", got.Budget.UsedTokens)
	}
}

func TestDegrader_IndexOnly(t *testing.T) {
	t.Parallel()

	sources := sampleSources()
	env := ctxengine.NewBuilder(lenEstimator{}).Build(sources, "")
	got := newDegrader().Apply(env, ctxengine.BudgetOptions{MaxTokens: 1})

	if got.Budget.DegradeStage != envelope.StageIndexOnly {
		t.Fatalf("stage = %v, want index_only", got.Budget.DegradeStage)
	}
	if len(got.Chunks) != 0 {
		t.Errorf("chunks = %d, want 0", len(got.Chunks))
	}
	if len(got.Index) != len(sources) {
		t.Fatalf("index = %d entries, want %d", len(got.Index), len(sources))
	}
	for _, e := range got.Index {
		if e.ContentIncluded {
			t.Errorf("entry %q still includes content", e.Anchor)
		}
		if e.Summary == "" {
			t.Errorf("entry %q has no summary", e.Anchor)
		}
		if e.SourceType == envelope.SourceNote && e.Summary != "Remember the budget ladder." {
			t.Errorf("note summary = %q, want the note itself", e.Summary)
		}
		if len(e.PagesAttached) != 0 {
			t.Errorf("entry %q pages = %v", e.Anchor, e.PagesAttached)
		}
	}
	for _, a := range got.Attachments {
		if a.Included {
			t.Errorf("attachment %q still included", a.Anchor)
		}
	}
	if len(got.Budget.CutsOfType(envelope.CutRemoved)) != len(env.Chunks) {
		t.Errorf("removed cuts = %d, want %d", len(got.Budget.CutsOfType(envelope.CutRemoved)), len(env.Chunks))
	}
}

func TestDegrader_PagesAttached(t *testing.T) {
	t.Parallel()

	page := strings.Repeat("a", 100)
	env := ctxengine.NewBuilder(lenEstimator{}).Build([]envelope.Source{
		envelope.PDF{Title: "doc", Pages: []string{page, page, page}},
	}, "")
	env = ctxengine.ApplyScores(env, map[string]float64{string(env.Chunks[1].Anchor): 0.1})

	got := newDegrader().Apply(env, ctxengine.BudgetOptions{MaxTokens: 250})

	if got.Budget.DegradeStage != envelope.StageRemoveLowRanked {
		t.Fatalf("stage = %v, want remove_low_ranked", got.Budget.DegradeStage)
	}
	if !reflect.DeepEqual(got.Index[0].PagesAttached, []int{1, 3}) {
		t.Errorf("PagesAttached = %v, want [1 3]", got.Index[0].PagesAttached)
	}
}

func TestDegrader_AttachmentFollowsSource(t *testing.T) {
	t.Parallel()

	env := ctxengine.NewBuilder(lenEstimator{}).Build([]envelope.Source{
		envelope.WebPage{URL: "https://a", Content: strings.Repeat("text ", 40)},
		envelope.Image{URL: "https://b/cat.png", Title: "Cat"},
	}, "")
	env = ctxengine.ApplyScores(env, map[string]float64{string(env.Chunks[1].Anchor): 0})

	// Fits the web page and the index but not the image attachment.
	got := newDegrader().Apply(env, ctxengine.BudgetOptions{MaxTokens: 400})

	if len(got.Chunks) != 1 || got.Chunks[0].SourceType != envelope.SourceWebPage {
		t.Fatalf("chunks = %+v", got.Chunks)
	}
	if got.Attachments[0].Included {
		t.Error("image attachment should be excluded with its source")
	}
	if !env.Attachments[0].Included {
		t.Error("input attachment was mutated")
	}
}

func TestDegrader_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	env := ctxengine.NewBuilder(lenEstimator{}).Build(sampleSources(), "")
	before := env.Clone()

	for _, maxTokens := range []int{1, 50, 200, 1000} {
		_ = newDegrader().Apply(env, ctxengine.BudgetOptions{MaxTokens: maxTokens})
		if !reflect.DeepEqual(env, before) {
			t.Fatalf("Apply(max=%d) mutated its input", maxTokens)
		}
	}
}

func TestDegrader_MonotonicStage(t *testing.T) {
	t.Parallel()

	env := ctxengine.NewBuilder(lenEstimator{}).Build(sampleSources(), "")
	d := newDegrader()

	prev := envelope.StageFits
	for maxTokens := 3000; maxTokens >= 1; maxTokens -= 7 {
		got := d.Apply(env, ctxengine.BudgetOptions{MaxTokens: maxTokens})
		stage := got.Budget.DegradeStage
		if stage < prev {
			t.Fatalf("max=%d: stage %v decreased from %v", maxTokens, stage, prev)
		}
		prev = stage
		if stage < envelope.StageIndexOnly && got.Budget.UsedTokens > maxTokens {
			t.Errorf("max=%d: used %d exceeds budget at stage %v", maxTokens, got.Budget.UsedTokens, stage)
		}
		if len(got.Index) != len(env.Index) {
			t.Errorf("max=%d: index has %d entries, want %d", maxTokens, len(got.Index), len(env.Index))
		}
	}
	if prev != envelope.StageIndexOnly {
		t.Errorf("final stage = %v, want index_only", prev)
	}
}

func TestDegrader_CutAnchorsAreValid(t *testing.T) {
	t.Parallel()

	env := ctxengine.NewBuilder(lenEstimator{}).Build(sampleSources(), "")
	got := newDegrader().Apply(env, ctxengine.BudgetOptions{MaxTokens: 120})
	for _, c := range got.Budget.Cuts {
		if !anchor.IsValidAnchor(string(c.Anchor)) {
			t.Errorf("cut anchor %q is invalid", c.Anchor)
		}
	}
}

func TestDegrader_ShortSourcesNeverCostMore(t *testing.T) {
	t.Parallel()

	env := ctxengine.NewBuilder(lenEstimator{}).Build([]envelope.Source{
		envelope.Note{Title: "a", Content: "tiny"},
		envelope.Note{Title: "b", Content: "also"},
		envelope.Note{Title: "c", Content: "wee"},
	}, "")
	d := newDegrader()
	full := d.Apply(env, ctxengine.BudgetOptions{MaxTokens: 1 << 20}).Budget.UsedTokens

	prev := envelope.StageFits
	for maxTokens := 60; maxTokens >= 1; maxTokens-- {
		got := d.Apply(env, ctxengine.BudgetOptions{MaxTokens: maxTokens})
		if got.Budget.UsedTokens > full {
			t.Errorf("max=%d: used %d exceeds the undegraded %d at stage %v", maxTokens, got.Budget.UsedTokens, full, got.Budget.DegradeStage)
		}
		if got.Budget.DegradeStage < prev {
			t.Fatalf("max=%d: stage %v decreased from %v", maxTokens, got.Budget.DegradeStage, prev)
		}
		prev = got.Budget.DegradeStage
	}
}

func TestDegrader_RemovalOnBuiltEnvelope(t *testing.T) {
	t.Parallel()

	env := ctxengine.NewBuilder(lenEstimator{}).Build([]envelope.Source{
		envelope.WebPage{URL: "https://a.example", Content: sentences400("a")},
		envelope.WebPage{URL: "https://b.example", Content: sentences400("b")},
	}, "")
	keep, drop := env.Chunks[0].Anchor, env.Chunks[1].Anchor
	env = ctxengine.ApplyScores(env, map[string]float64{string(keep): 0.9, string(drop): 0.1})

	got := newDegrader().Apply(env, ctxengine.BudgetOptions{MaxTokens: 400, MinChunks: intPtr(1)})

	if len(got.Chunks) != 1 || got.Chunks[0].SourceID() != anchor.SourceIDOf(keep) {
		t.Fatalf("chunks = %+v, want only the 0.9 source", got.Chunks)
	}
	if got.Budget.DegradeStage < envelope.StageRemoveLowRanked {
		t.Errorf("stage = %v, want >= 1", got.Budget.DegradeStage)
	}
	removed := got.Budget.CutsOfType(envelope.CutRemoved)
	if len(removed) != 1 || removed[0].Anchor != drop || removed[0].OriginalTokens != 400 {
		t.Errorf("removed cuts = %+v", removed)
	}
	if got.Budget.UsedTokens > 400 {
		t.Errorf("UsedTokens = %d exceeds budget", got.Budget.UsedTokens)
	}
	for _, e := range got.Index {
		if anchor.SourceIDOf(e.Anchor) == anchor.SourceIDOf(drop) && e.ContentIncluded {
			t.Error("dropped source still marked as included")
		}
	}
}

// sentences400 returns 400 bytes of text whose extractive summary is short.
func sentences400(fill string) string {
	head := "First point. Second point. Third point. "
	return head + strings.Repeat(fill, 400-len(head))
}

func TestDegrader_MinChunksOverride(t *testing.T) {
	t.Parallel()

	env := &envelope.Envelope{Chunks: []envelope.Chunk{
		chunk("src:aaaaaaaa", strings.Repeat("x", 100), 100, 0.9, 0),
		chunk("src:bbbbbbbb", strings.Repeat("y", 100), 100, 0.1, 1),
	}}
	d := ctxengine.NewDegrader(lenEstimator{}, ctxengine.Config{MinChunks: 2}, nil)

	tests := []struct {
		name      string
		minChunks *int
		want      envelope.Stage
	}{
		{"configured floor", nil, envelope.StageTopK},
		{"explicit zero", intPtr(0), envelope.StageRemoveLowRanked},
		{"explicit one", intPtr(1), envelope.StageRemoveLowRanked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := d.Apply(env, ctxengine.BudgetOptions{MaxTokens: 150, MinChunks: tt.minChunks})
			if got.Budget.DegradeStage != tt.want {
				t.Errorf("stage = %v, want %v", got.Budget.DegradeStage, tt.want)
			}
			if len(got.Chunks) != 1 || got.Chunks[0].Anchor != "src:aaaaaaaa" {
				t.Errorf("chunks = %v", got.Chunks)
			}
		})
	}
}
