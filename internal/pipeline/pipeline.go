// Package pipeline runs the context pipeline end to end: build an envelope
// from captured sources, rank and budget it, render it as a message, and
// reshape the messages for the target model.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flemzord/ctxpack/internal/capability"
	ctxengine "github.com/flemzord/ctxpack/internal/context"
	"github.com/flemzord/ctxpack/internal/provider"
	"github.com/flemzord/ctxpack/internal/telemetry"
	"github.com/flemzord/ctxpack/internal/transform"
	"github.com/flemzord/ctxpack/pkg/envelope"
	"github.com/flemzord/ctxpack/pkg/message"
)

const tracerName = "github.com/flemzord/ctxpack/internal/pipeline"

// Sentinel errors.
var (
	// ErrInvalidRequest wraps every error caused by caller input.
	ErrInvalidRequest = errors.New("pipeline: invalid request")

	// ErrNoStreamer is returned by Complete when no model transport is set.
	ErrNoStreamer = errors.New("pipeline: no model transport configured")
)

// CapabilityResolver answers capability lookups. *capability.Resolver
// satisfies it.
type CapabilityResolver interface {
	Resolve(ctx context.Context, sel capability.Selector, apiKey string) capability.Resolution
}

// Config holds pipeline defaults.
type Config struct {
	Engine ctxengine.Config

	// DefaultMaxTokens is the budget used when a request sets none.
	DefaultMaxTokens int

	// ReserveOutputTokens is kept free when a model's input limit is used
	// as the budget. Default: 1024.
	ReserveOutputTokens int

	Order transform.Order
}

func (c Config) withDefaults() Config {
	if c.ReserveOutputTokens <= 0 {
		c.ReserveOutputTokens = 1024
	}
	if c.Order == "" {
		c.Order = transform.OrderDefault
	}
	return c
}

// Deps are the collaborators of a Pipeline. All fields are optional.
type Deps struct {
	Estimator  ctxengine.TokenEstimator
	Ranker     ctxengine.Ranker
	Resolver   CapabilityResolver
	Streamer   provider.Streamer
	Rasterizer transform.Rasterizer
	Metrics    *telemetry.Metrics
	Logger     *slog.Logger
}

// Pipeline wires the envelope builder, the degradation engine, the
// capability resolver and the message transformer. Safe for concurrent use.
type Pipeline struct {
	config     Config
	builder    *ctxengine.Builder
	degrader   *ctxengine.Degrader
	estimator  ctxengine.TokenEstimator
	ranker     ctxengine.Ranker
	resolver   CapabilityResolver
	streamer   provider.Streamer
	rasterizer transform.Rasterizer
	metrics    *telemetry.Metrics
	logger     *slog.Logger
	tracer     trace.Tracer
}

// New creates a Pipeline. A nil estimator uses the chars estimator, a nil
// ranker the keyword ranker.
func New(cfg Config, deps Deps) *Pipeline {
	if deps.Estimator == nil {
		deps.Estimator = ctxengine.NewCharEstimator(0)
	}
	if deps.Ranker == nil {
		deps.Ranker = ctxengine.KeywordRanker{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &Pipeline{
		config:     cfg,
		builder:    ctxengine.NewBuilder(deps.Estimator),
		degrader:   ctxengine.NewDegrader(deps.Estimator, cfg.Engine, deps.Logger),
		estimator:  deps.Estimator,
		ranker:     deps.Ranker,
		resolver:   deps.Resolver,
		streamer:   deps.Streamer,
		rasterizer: deps.Rasterizer,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		tracer:     otel.Tracer(tracerName),
	}
}

// Build turns source records into a ranked, unbudgeted envelope.
func (p *Pipeline) Build(ctx context.Context, req BuildRequest) (*envelope.Envelope, error) {
	_, span := p.tracer.Start(ctx, "pipeline.Build", trace.WithAttributes(
		attribute.Int("pipeline.sources", len(req.Sources)),
	))
	defer span.End()

	sources, err := envelope.DecodeSources(req.Sources)
	if err != nil {
		span.SetStatus(codes.Error, "invalid sources")
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	env := p.builder.Build(sources, req.Task)
	switch {
	case len(req.Scores) > 0:
		env = ctxengine.ApplyScores(env, req.Scores)
	case req.Task != "":
		env = p.ranker.Rank(env, req.Task)
	}

	span.SetAttributes(attribute.Int("pipeline.chunks", len(env.Chunks)))
	return env, nil
}

// Budget fits an envelope to req.MaxTokens. A zero budget falls back to
// the configured default; with neither the envelope is returned as is.
func (p *Pipeline) Budget(ctx context.Context, req BudgetRequest) (*envelope.Envelope, error) {
	if req.Envelope == nil {
		return nil, fmt.Errorf("%w: envelope is required", ErrInvalidRequest)
	}
	if req.MaxTokens < 0 || (req.MinChunks != nil && *req.MinChunks < 0) {
		return nil, fmt.Errorf("%w: max_tokens and min_chunks must be non-negative", ErrInvalidRequest)
	}

	_, span := p.tracer.Start(ctx, "pipeline.Budget")
	defer span.End()

	env := req.Envelope
	if req.Recount {
		env = ctxengine.Recount(p.estimator, env)
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.config.DefaultMaxTokens
	}
	out := p.degrader.Apply(env, ctxengine.BudgetOptions{MaxTokens: maxTokens, MinChunks: req.MinChunks})

	span.SetAttributes(
		attribute.Int("budget.max_tokens", out.Budget.MaxTokens),
		attribute.Int("budget.used_tokens", out.Budget.UsedTokens),
		attribute.String("budget.stage", out.Budget.DegradeStage.String()),
	)
	p.metrics.ObserveBudget(out)
	return out, nil
}

// Capabilities resolves a "provider/model" selector. Without a resolver the
// provider default is returned.
func (p *Pipeline) Capabilities(ctx context.Context, model, apiKey string) capability.Resolution {
	sel := capability.ParseSelector(model)
	var res capability.Resolution
	if p.resolver != nil {
		res = p.resolver.Resolve(ctx, sel, apiKey)
	} else {
		res = capability.Resolution{
			Selector:     sel,
			Capabilities: capability.ProviderDefault(sel.Provider),
			Source:       capability.SourceDefault,
		}
	}
	p.metrics.ObserveResolution(res)
	return res
}

// Transform reshapes messages for the capabilities of req.Model.
func (p *Pipeline) Transform(ctx context.Context, req TransformRequest) (TransformResult, error) {
	if req.Model == "" {
		return TransformResult{}, fmt.Errorf("%w: model is required", ErrInvalidRequest)
	}
	res := p.Capabilities(ctx, req.Model, req.APIKey)
	msgs, rep := p.transform(req.Messages, res.Capabilities, req.Order)
	return TransformResult{Messages: msgs, Report: rep, Resolution: res}, nil
}

func (p *Pipeline) transform(msgs []message.Message, caps capability.ModelCapabilities, order string) ([]message.Message, transform.Report) {
	o := p.config.Order
	if order != "" {
		o = transform.ParseOrder(order)
	}
	out, rep := transform.Messages(msgs, caps, transform.Options{Order: o, Rasterizer: p.rasterizer})
	p.metrics.ObserveTransform(rep)
	if rep.Substitutions() > 0 {
		p.logger.Debug("parts substituted for model capabilities",
			"images_omitted", rep.ImagesOmitted,
			"pdfs_converted", rep.PDFsConverted,
			"pdfs_omitted", rep.PDFsOmitted,
		)
	}
	return out, rep
}

// Prepare runs the whole pipeline: resolve the model, build and budget the
// envelope, render it and reshape the result for the model.
func (p *Pipeline) Prepare(ctx context.Context, req PrepareRequest) (PrepareResult, error) {
	if req.Model == "" {
		return PrepareResult{}, fmt.Errorf("%w: model is required", ErrInvalidRequest)
	}

	ctx, span := p.tracer.Start(ctx, "pipeline.Prepare", trace.WithAttributes(
		attribute.String("pipeline.model", req.Model),
	))
	defer span.End()

	res := p.Capabilities(ctx, req.Model, req.APIKey)

	env, err := p.Build(ctx, req.BuildRequest)
	if err != nil {
		span.RecordError(err)
		return PrepareResult{}, err
	}

	dropped := withholdAttachments(env, res.Capabilities)

	env, err = p.Budget(ctx, BudgetRequest{
		Envelope:  env,
		MaxTokens: p.budgetFor(req.MaxTokens, res.Capabilities),
		MinChunks: req.MinChunks,
	})
	if err != nil {
		span.RecordError(err)
		return PrepareResult{}, err
	}

	var msgs []message.Message
	if req.System != "" {
		msgs = append(msgs, message.Message{Role: message.RoleSystem, Parts: []message.Part{message.Text(req.System)}})
	}
	msgs = append(msgs, ctxengine.Render(env, message.RoleUser))

	msgs, rep := p.transform(msgs, res.Capabilities, req.Order)
	rep.ImagesOmitted += dropped.ImagesOmitted
	rep.PDFsOmitted += dropped.PDFsOmitted
	return PrepareResult{Envelope: env, Messages: msgs, Report: rep, Resolution: res}, nil
}

// withholdAttachments marks the attachments caps cannot accept as not
// included, so the budget does not pay for media the model never sees.
// Their text chunks stay. PDFs a vision model can take as page images are
// kept.
func withholdAttachments(env *envelope.Envelope, caps capability.ModelCapabilities) transform.Report {
	var rep transform.Report
	for i := range env.Attachments {
		a := &env.Attachments[i]
		if !a.Included {
			continue
		}
		switch a.ArtifactType {
		case envelope.ArtifactImage:
			if !caps.SupportsVision {
				a.Included = false
				rep.ImagesOmitted++
			}
		case envelope.ArtifactPDF:
			if !caps.SupportsVision && !caps.SupportsPDFNative {
				a.Included = false
				rep.PDFsOmitted++
			}
		}
	}
	return rep
}

// budgetFor picks the token budget: the request, then the configured
// default, then the model input limit minus the output reserve.
func (p *Pipeline) budgetFor(requested int, caps capability.ModelCapabilities) int {
	if requested > 0 {
		return requested
	}
	if p.config.DefaultMaxTokens > 0 {
		return p.config.DefaultMaxTokens
	}
	if caps.MaxInputTokens != nil {
		if n := *caps.MaxInputTokens - p.config.ReserveOutputTokens; n > 0 {
			return n
		}
	}
	return 0
}

// Complete prepares the request and streams it to the model, collecting
// the answer.
func (p *Pipeline) Complete(ctx context.Context, req CompleteRequest) (CompleteResult, error) {
	if p.streamer == nil {
		return CompleteResult{}, ErrNoStreamer
	}

	prep, err := p.Prepare(ctx, req.PrepareRequest)
	if err != nil {
		return CompleteResult{}, err
	}

	ctx, span := p.tracer.Start(ctx, "pipeline.Complete")
	defer span.End()

	ch, err := p.streamer.Stream(ctx, provider.Request{
		Model:       prep.Resolution.Selector.Model,
		Messages:    prep.Messages,
		MaxTokens:   req.OutputTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "stream failed")
		return CompleteResult{PrepareResult: prep}, err
	}

	resp, err := provider.Collect(ctx, ch)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "stream failed")
		return CompleteResult{PrepareResult: prep, Response: resp}, err
	}

	span.SetAttributes(
		attribute.String("pipeline.response_model", resp.Model),
		attribute.Int("pipeline.completion_tokens", resp.Usage.CompletionTokens),
	)
	return CompleteResult{PrepareResult: prep, Response: resp}, nil
}
