package openrouter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/flemzord/ctxpack/internal/provider"
	"github.com/flemzord/ctxpack/pkg/message"
)

// apiRequest is the OpenAI-compatible chat completion request body.
type apiRequest struct {
	Model       string       `json:"model"`
	Messages    []apiMessage `json:"messages"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Temperature *float64     `json:"temperature,omitempty"`
	TopP        *float64     `json:"top_p,omitempty"`
	Stop        []string     `json:"stop,omitempty"`
	Stream      bool         `json:"stream"`
	Usage       *apiUsageOpt `json:"usage,omitempty"`
}

// apiUsageOpt asks OpenRouter to append token usage to the stream.
type apiUsageOpt struct {
	Include bool `json:"include"`
}

// apiMessage is an OpenAI-compatible chat message. Content is a plain string
// for text-only messages and an array of content parts otherwise.
type apiMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// apiContentPart is one element of a multi-part message content array.
type apiContentPart struct {
	Type     string       `json:"type"`
	Text     string       `json:"text,omitempty"`
	ImageURL *apiImageURL `json:"image_url,omitempty"`
	File     *apiFile     `json:"file,omitempty"`
}

type apiImageURL struct {
	URL string `json:"url"`
}

type apiFile struct {
	Filename string `json:"filename"`
	FileData string `json:"file_data"`
}

// apiStreamChunk is a single chunk in a streaming response.
type apiStreamChunk struct {
	Model   string            `json:"model,omitempty"`
	Choices []apiStreamChoice `json:"choices"`
	Usage   *apiUsage         `json:"usage,omitempty"`
	Error   apiError          `json:"error,omitempty"`
}

// apiStreamChoice is a choice within a streaming chunk.
type apiStreamChoice struct {
	Delta        apiStreamDelta `json:"delta"`
	FinishReason string         `json:"finish_reason"`
}

// apiStreamDelta holds incremental content in a streaming chunk.
type apiStreamDelta struct {
	Content string `json:"content,omitempty"`
}

// apiUsage holds token consumption data.
type apiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Stream sends a streaming completion request to OpenRouter.
// Connection errors are returned directly. Mid-stream errors are
// delivered via StreamChunk.Err on the returned channel.
func (o *OpenRouter) Stream(ctx context.Context, req provider.Request) (<-chan provider.StreamChunk, error) {
	apiReq, err := o.buildRequest(req)
	if err != nil {
		return nil, err
	}

	resp, err := o.doRequest(ctx, apiReq)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		return nil, httpError(resp.StatusCode, resp.Body)
	}

	ch := make(chan provider.StreamChunk, 8)
	go func() {
		defer func() { _ = resp.Body.Close() }()
		defer close(ch)
		parseSSE(ctx, resp.Body, ch)
	}()

	return ch, nil
}

// buildRequest converts a provider.Request into a streaming apiRequest.
func (o *OpenRouter) buildRequest(req provider.Request) (apiRequest, error) {
	model := req.Model
	if model == "" {
		model = o.config.model()
	}
	if model == "" {
		return apiRequest{}, errors.New("openrouter: no model configured")
	}

	msgs, err := convertMessages(req.Messages)
	if err != nil {
		return apiRequest{}, err
	}

	return apiRequest{
		Model:       model,
		Messages:    msgs,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.Stop,
		Stream:      true,
		Usage:       &apiUsageOpt{Include: true},
	}, nil
}

// doRequest sends an API request and returns the raw HTTP response.
func (o *OpenRouter) doRequest(ctx context.Context, apiReq apiRequest) (*http.Response, error) {
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("openrouter: marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.config.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openrouter: creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	o.setHeaders(httpReq, o.config.APIKey)

	resp, err := o.client.Do(httpReq)
	if err != nil {
		// Network failures are reported as ErrProviderDown so callers can
		// treat them as retryable.
		return nil, fmt.Errorf("openrouter: sending request: %w", errors.Join(provider.ErrProviderDown, err))
	}
	return resp, nil
}

func (o *OpenRouter) setHeaders(r *http.Request, apiKey string) {
	if apiKey != "" {
		r.Header.Set("Authorization", "Bearer "+apiKey)
	}
	if o.config.Referer != "" {
		r.Header.Set("HTTP-Referer", o.config.Referer)
	}
	if o.config.Title != "" {
		r.Header.Set("X-Title", o.config.Title)
	}
}

// convertMessages converts canonical messages to API messages.
func convertMessages(msgs []message.Message) ([]apiMessage, error) {
	out := make([]apiMessage, len(msgs))
	for i, m := range msgs {
		role := string(m.Role)
		if role == "" {
			role = string(message.RoleUser)
		}
		if !m.HasMedia() {
			out[i] = apiMessage{Role: role, Content: m.TextContent()}
			continue
		}

		parts := make([]apiContentPart, 0, len(m.Parts))
		for _, p := range m.Parts {
			cp, err := convertPart(p)
			if err != nil {
				return nil, fmt.Errorf("openrouter: message %d: %w", i, err)
			}
			parts = append(parts, cp)
		}
		out[i] = apiMessage{Role: role, Content: parts}
	}
	return out, nil
}

func convertPart(p message.Part) (apiContentPart, error) {
	switch v := p.(type) {
	case message.TextPart:
		return apiContentPart{Type: "text", Text: v.Text}, nil

	case message.ImagePart:
		uri, err := inline(v.Source, v.URI, "")
		if err != nil {
			return apiContentPart{}, err
		}
		return apiContentPart{Type: "image_url", ImageURL: &apiImageURL{URL: uri}}, nil

	case message.PDFPart:
		uri, err := inline(v.Source, v.URI, "application/pdf")
		if err != nil {
			return apiContentPart{}, err
		}
		return apiContentPart{Type: "file", File: &apiFile{Filename: filename(v.URI), FileData: uri}}, nil

	default:
		return apiContentPart{}, fmt.Errorf("unsupported part %T", p)
	}
}

// inline turns a file URI into a data URI; URLs and data URIs pass through.
// mime may be empty, in which case it is sniffed from the file.
func inline(src message.MediaSource, uri, mime string) (string, error) {
	if src != message.MediaFile {
		return uri, nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("parsing %q: %w", uri, err)
	}
	data, err := os.ReadFile(u.Path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", u.Path, err)
	}
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func filename(uri string) string {
	if message.SourceOf(uri) == message.MediaBase64 {
		return "document.pdf"
	}
	if u, err := url.Parse(uri); err == nil && u.Path != "" {
		if base := filepath.Base(u.Path); base != "/" && base != "." {
			return base
		}
	}
	return "document.pdf"
}
