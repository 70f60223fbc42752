package ctxengine

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/flemzord/ctxpack/pkg/anchor"
	"github.com/flemzord/ctxpack/pkg/envelope"
)

// BudgetOptions controls one degradation pass.
type BudgetOptions struct {
	// MaxTokens is the hard budget. Zero or less means unbounded.
	MaxTokens int

	// MinChunks is the soft floor on retained chunks, honored by stages 1
	// and 2 only. Nil uses the configured default; an explicit zero
	// disables the floor.
	MinChunks *int
}

// Degrader fits envelopes to a token budget.
type Degrader struct {
	estimator TokenEstimator
	config    Config
	logger    *slog.Logger
}

// NewDegrader creates a Degrader. A nil estimator falls back to a
// CharEstimator and a nil logger to slog.Default.
func NewDegrader(estimator TokenEstimator, cfg Config, logger *slog.Logger) *Degrader {
	if estimator == nil {
		estimator = NewCharEstimator(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Degrader{
		estimator: estimator,
		config:    cfg.withDefaults(),
		logger:    logger,
	}
}

// Apply fits env to opts.MaxTokens by climbing the degradation ladder until
// the envelope fits or only the index is left.
//
// An unbounded budget returns env itself. Otherwise the result is a new
// envelope; env is never modified.
func (d *Degrader) Apply(env *envelope.Envelope, opts BudgetOptions) *envelope.Envelope {
	if env == nil || opts.MaxTokens <= 0 {
		return env
	}
	minChunks := d.config.MinChunks
	if opts.MinChunks != nil {
		minChunks = max(*opts.MinChunks, 0)
	}

	l := newLadder(d, env, opts.MaxTokens, minChunks)
	out := l.run()

	d.logger.Debug("budget applied",
		"max_tokens", out.Budget.MaxTokens,
		"used_tokens", out.Budget.UsedTokens,
		"stage", out.Budget.DegradeStage.String(),
		"cuts", len(out.Budget.Cuts),
	)
	return out
}

// stageFunc runs one rung of the ladder and reports whether the envelope
// now fits.
type stageFunc func(*ladder) bool

// stages lists rungs 1 to 4 in order. Rung 5 always terminates.
var stages = []stageFunc{
	(*ladder).removeLowRanked,
	(*ladder).summarize,
	(*ladder).topK,
	(*ladder).truncate,
}

// ladder is the mutable state of one Apply call.
type ladder struct {
	d         *Degrader
	src       *envelope.Envelope
	max       int
	minChunks int

	chunks []envelope.Chunk
	alive  []bool
	// priority holds chunk indexes from most to least worth keeping.
	priority []int
	cuts     []envelope.Cut
	stage    envelope.Stage

	elided map[anchor.SourceID]elision
}

type elision struct {
	summary string
	tokens  int
}

func newLadder(d *Degrader, env *envelope.Envelope, maxTokens, minChunks int) *ladder {
	l := &ladder{
		d:         d,
		src:       env,
		max:       maxTokens,
		minChunks: minChunks,
		chunks:    slices.Clone(env.Chunks),
		alive:     make([]bool, len(env.Chunks)),
		priority:  make([]int, len(env.Chunks)),
		elided:    make(map[anchor.SourceID]elision),
	}
	for i := range l.chunks {
		l.alive[i] = true
		l.priority[i] = i
	}
	slices.SortStableFunc(l.priority, func(a, b int) int {
		ca, cb := l.chunks[a], l.chunks[b]
		switch {
		case ca.RelevanceScore > cb.RelevanceScore:
			return -1
		case ca.RelevanceScore < cb.RelevanceScore:
			return 1
		}
		return ca.Position - cb.Position
	})
	return l
}

func (l *ladder) run() *envelope.Envelope {
	if l.fits() {
		return l.result()
	}
	for i, stage := range stages {
		l.stage = envelope.Stage(i + 1)
		if stage(l) {
			return l.result()
		}
	}
	l.stage = envelope.StageIndexOnly
	l.indexOnly()
	return l.result()
}

func (l *ladder) fits() bool {
	return l.used() <= l.max
}

// used is the token cost of the current state: surviving chunks, included
// attachments, the fixed cost of every index entry, and the summaries of
// sources with no surviving chunk.
func (l *ladder) used() int {
	total := 0
	live := l.liveSources()
	for i, c := range l.chunks {
		if l.alive[i] {
			total += c.TokenCount
		}
	}
	for _, a := range l.src.Attachments {
		if l.attachmentIncluded(a, live) {
			total += l.d.config.AttachmentTokens
		}
	}
	for _, e := range l.src.Index {
		total += l.d.config.IndexEntryTokens
		if id := anchor.SourceIDOf(e.Anchor); !live[id] {
			total += l.elidedSummary(id, e.Anchor).tokens
		}
	}
	return total
}

func (l *ladder) liveSources() map[anchor.SourceID]bool {
	live := make(map[anchor.SourceID]bool)
	for i, c := range l.chunks {
		if l.alive[i] {
			live[c.SourceID()] = true
		}
	}
	return live
}

func (l *ladder) attachmentIncluded(a envelope.Attachment, live map[anchor.SourceID]bool) bool {
	return a.Included && l.stage < envelope.StageIndexOnly && live[anchor.SourceIDOf(a.Anchor)]
}

// elidedSummary returns the summary carried by the index entry of a source whose
// content has been fully dropped. Summaries are built from original content,
// and content shorter than its summary is carried as is.
func (l *ladder) elidedSummary(id anchor.SourceID, a anchor.Anchor) elision {
	if e, ok := l.elided[id]; ok {
		return e
	}
	var parts []string
	for _, c := range l.src.Chunks {
		if c.SourceID() == id {
			parts = append(parts, c.Content)
		}
	}
	est := l.d.estimator.Estimate
	orig := strings.Join(parts, "\n\n")
	e := elision{summary: ExtractiveSummary(orig, a)}
	e.tokens = est(e.summary)
	if orig != "" {
		if n := est(orig); n <= e.tokens {
			e = elision{summary: orig, tokens: n}
		}
	}
	l.elided[id] = e
	return e
}

func (l *ladder) aliveCount() int {
	n := 0
	for _, ok := range l.alive {
		if ok {
			n++
		}
	}
	return n
}

// survivors returns the alive chunk indexes in priority order.
func (l *ladder) survivors() []int {
	var out []int
	for _, i := range l.priority {
		if l.alive[i] {
			out = append(out, i)
		}
	}
	return out
}

func (l *ladder) drop(i int, reason string) {
	l.alive[i] = false
	l.cuts = append(l.cuts, envelope.Cut{
		Anchor:         l.chunks[i].Anchor,
		Type:           envelope.CutRemoved,
		Reason:         reason,
		OriginalTokens: l.src.Chunks[i].TokenCount,
	})
}

// tryDrop drops chunk i unless doing so leaves usage where it was or higher,
// which happens when the index summary that replaces the last chunk of a
// source costs at least as much as the chunk.
func (l *ladder) tryDrop(i int, reason string) {
	before := l.used()
	l.alive[i] = false
	after := l.used()
	l.alive[i] = true
	if after < before {
		l.drop(i, reason)
	}
}

// removeLowRanked drops the lowest-ranked chunks one at a time until the
// envelope fits or only minChunks remain.
func (l *ladder) removeLowRanked() bool {
	order := l.survivors()
	for n := len(order) - 1; n >= 0; n-- {
		if l.fits() || l.aliveCount() <= l.minChunks {
			break
		}
		i := order[n]
		threshold := l.chunks[i].RelevanceScore
		if n > 0 {
			threshold = l.chunks[order[n-1]].RelevanceScore
		}
		l.tryDrop(i, fmt.Sprintf("relevance %.2f at or below retention threshold %.2f", l.chunks[i].RelevanceScore, threshold))
	}
	return l.fits()
}

// summarize replaces surviving chunks with extractive summaries, lowest
// ranked first, as long as the summary is smaller than the chunk.
func (l *ladder) summarize() bool {
	order := l.survivors()
	for n := len(order) - 1; n >= 0; n-- {
		i := order[n]
		c := &l.chunks[i]
		if c.Summarized {
			continue
		}
		summary := ExtractiveSummary(c.Content, c.Anchor)
		tokens := l.d.estimator.Estimate(summary)
		if tokens >= c.TokenCount {
			continue
		}
		l.cuts = append(l.cuts, envelope.Cut{
			Anchor:         c.Anchor,
			Type:           envelope.CutSummarized,
			Reason:         fmt.Sprintf("summarized from %d to %d tokens", c.TokenCount, tokens),
			OriginalTokens: c.TokenCount,
		})
		c.Content = summary
		c.TokenCount = tokens
		c.Summarized = true
		if l.fits() {
			return true
		}
	}
	return l.fits()
}

// topK keeps the largest prefix of survivors, in priority order, that fits.
// When not even the top chunk fits alone it is kept for truncation, and the
// rest are dropped only where that lowers usage.
func (l *ladder) topK() bool {
	order := l.survivors()
	if len(order) == 0 {
		return false
	}

	for k := len(order) - 1; k >= 1; k-- {
		if l.fitsWith(order[:k]) {
			for _, i := range order[k:] {
				l.drop(i, fmt.Sprintf("outside top-%d chunks that fit the budget", k))
			}
			return true
		}
	}
	for _, i := range order[1:] {
		l.tryDrop(i, "outside top-1 chunks that fit the budget")
	}
	return l.fits()
}

// fitsWith reports whether the envelope fits when only keep survive.
func (l *ladder) fitsWith(keep []int) bool {
	saved := slices.Clone(l.alive)
	defer func() { l.alive = saved }()
	l.alive = make([]bool, len(l.chunks))
	for _, i := range keep {
		l.alive[i] = true
	}
	return l.fits()
}

// truncate cuts the original text of the top survivor at a semantic
// boundary so that it fits the room left by everything else.
func (l *ladder) truncate() bool {
	order := l.survivors()
	if len(order) == 0 {
		return false
	}
	i := order[0]
	c := &l.chunks[i]
	orig := l.src.Chunks[i]

	tokens := c.TokenCount
	c.TokenCount = 0
	room := l.max - l.used()
	c.TokenCount = tokens
	if room <= 0 {
		return false
	}

	est := l.d.estimator.Estimate
	if est(TruncateAtBoundary(orig.Content, 0)) > room {
		return false
	}
	lo, hi := 0, len(orig.Content)-1
	for lo < hi {
		mid := lo + (hi-lo+1)/2
		if est(TruncateAtBoundary(orig.Content, mid)) <= room {
			lo = mid
		} else {
			hi = mid - 1
		}
	}

	text := TruncateAtBoundary(orig.Content, max(lo, 0))
	l.cuts = slices.DeleteFunc(l.cuts, func(cut envelope.Cut) bool {
		return cut.Anchor == c.Anchor && cut.Type == envelope.CutSummarized
	})
	l.cuts = append(l.cuts, envelope.Cut{
		Anchor:         c.Anchor,
		Type:           envelope.CutTruncated,
		Reason:         fmt.Sprintf("truncated at a semantic boundary to fit %d tokens", room),
		OriginalTokens: orig.TokenCount,
	})
	c.Content = text
	c.TokenCount = est(text)
	c.Truncated = true
	c.Summarized = false
	return l.fits()
}

// indexOnly drops every chunk. Only the index and its summaries remain.
func (l *ladder) indexOnly() {
	for _, i := range l.survivors() {
		l.drop(i, "index only: budget below fixed per-source overhead")
	}
}

func (l *ladder) result() *envelope.Envelope {
	out := &envelope.Envelope{
		Task:        l.src.Task,
		Chunks:      []envelope.Chunk{},
		Attachments: make([]envelope.Attachment, 0, len(l.src.Attachments)),
		Index:       make([]envelope.IndexEntry, 0, len(l.src.Index)),
	}

	live := l.liveSources()
	pages := make(map[anchor.SourceID][]int)
	for i, c := range l.chunks {
		if !l.alive[i] {
			continue
		}
		out.Chunks = append(out.Chunks, c)
		if p, err := anchor.Parse(string(c.Anchor)); err == nil && p.Location != nil && p.Location.Kind == anchor.KindPage {
			if n, ok := p.Location.Int(); ok {
				pages[p.SourceID] = append(pages[p.SourceID], n)
			}
		}
	}
	for _, a := range l.src.Attachments {
		a.Included = l.attachmentIncluded(a, live)
		out.Attachments = append(out.Attachments, a)
	}
	for _, e := range l.src.Index {
		id := anchor.SourceIDOf(e.Anchor)
		e.PagesAttached = slices.Clone(e.PagesAttached)
		if e.SourceType == envelope.SourcePDF {
			e.PagesAttached = pages[id]
		}
		if live[id] {
			e.ContentIncluded = true
		} else {
			e.ContentIncluded = false
			e.PagesAttached = nil
			e.Summary = l.elidedSummary(id, e.Anchor).summary
		}
		out.Index = append(out.Index, e)
	}

	cuts := l.cuts
	if cuts == nil {
		cuts = []envelope.Cut{}
	}
	out.Budget = envelope.Budget{
		MaxTokens:    l.max,
		UsedTokens:   l.used(),
		DegradeStage: l.stage,
		Cuts:         cuts,
	}
	return out
}
