package pipeline

import (
	"github.com/flemzord/ctxpack/internal/capability"
	"github.com/flemzord/ctxpack/internal/provider"
	"github.com/flemzord/ctxpack/internal/transform"
	"github.com/flemzord/ctxpack/pkg/envelope"
	"github.com/flemzord/ctxpack/pkg/message"
)

// BuildRequest is the input to Pipeline.Build.
type BuildRequest struct {
	Sources []envelope.SourceRecord `json:"sources"`
	Task    string                  `json:"task,omitempty"`

	// Scores assigns relevance by anchor. When empty and Task is set the
	// keyword ranker scores the chunks.
	Scores map[string]float64 `json:"scores,omitempty"`
}

// BudgetRequest is the input to Pipeline.Budget.
type BudgetRequest struct {
	Envelope  *envelope.Envelope `json:"envelope"`
	MaxTokens int                `json:"max_tokens"`
	MinChunks *int               `json:"min_chunks,omitempty"`

	// Recount recomputes chunk token counts with the configured estimator
	// before budgeting.
	Recount bool `json:"recount,omitempty"`
}

// TransformRequest is the input to Pipeline.Transform.
type TransformRequest struct {
	Model    string            `json:"model"`
	Messages []message.Message `json:"messages"`
	Order    string            `json:"order,omitempty"`
	APIKey   string            `json:"-"`
}

// TransformResult is the output of Pipeline.Transform.
type TransformResult struct {
	Messages   []message.Message     `json:"messages"`
	Report     transform.Report      `json:"report"`
	Resolution capability.Resolution `json:"resolution"`
}

// PrepareRequest is the input to Pipeline.Prepare: sources in, messages
// ready for the target model out.
type PrepareRequest struct {
	BuildRequest

	// Model is a "provider/model" selector.
	Model string `json:"model"`

	// System, when set, is sent as a leading system message.
	System string `json:"system,omitempty"`

	// MaxTokens is the context budget. Zero falls back to the configured
	// default, then to the model's input limit.
	MaxTokens int `json:"max_tokens,omitempty"`

	// MinChunks overrides the configured floor when set, zero included.
	MinChunks *int   `json:"min_chunks,omitempty"`
	Order     string `json:"order,omitempty"`
	APIKey    string `json:"-"`
}

// PrepareResult is the output of Pipeline.Prepare.
type PrepareResult struct {
	Envelope   *envelope.Envelope    `json:"envelope"`
	Messages   []message.Message     `json:"messages"`
	Report     transform.Report      `json:"report"`
	Resolution capability.Resolution `json:"resolution"`
}

// CompleteRequest is a PrepareRequest sent on to the model.
type CompleteRequest struct {
	PrepareRequest

	// OutputTokens caps the model's answer.
	OutputTokens int      `json:"output_tokens,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
}

// CompleteResult is the output of Pipeline.Complete.
type CompleteResult struct {
	PrepareResult
	Response provider.Response `json:"response"`
}
