package provider

import "github.com/flemzord/ctxpack/pkg/message"

// FinishReason describes why the model stopped generating.
type FinishReason string

// FinishReason constants for model completion termination.
const (
	FinishReasonStop      FinishReason = "stop"
	FinishReasonLength    FinishReason = "length"
	FinishReasonFiltering FinishReason = "filtering"
)

// Request is the input to a Streamer. Messages are expected to have been
// reshaped for the target model's capabilities already.
type Request struct {
	// Model overrides the provider's configured model when set.
	Model       string            `json:"model,omitempty"`
	Messages    []message.Message `json:"messages"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
	Temperature *float64          `json:"temperature,omitempty"`
	TopP        *float64          `json:"top_p,omitempty"`
	Stop        []string          `json:"stop,omitempty"`
}

// StreamChunk represents one piece of a streaming response.
type StreamChunk struct {
	Content      string       `json:"content,omitempty"`
	FinishReason FinishReason `json:"finish_reason,omitempty"`
	Usage        *TokenUsage  `json:"usage,omitempty"`
	// Model is the model that actually served the request, when reported.
	Model string `json:"model,omitempty"`
	Err   error  `json:"-"`
}

// Response is a fully collected stream.
type Response struct {
	Content      string       `json:"content"`
	FinishReason FinishReason `json:"finish_reason,omitempty"`
	Usage        TokenUsage   `json:"usage"`
	Model        string       `json:"model,omitempty"`
}

// TokenUsage tracks token consumption for a completion.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
