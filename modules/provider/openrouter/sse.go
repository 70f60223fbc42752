package openrouter

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/flemzord/ctxpack/internal/provider"
)

// sseMaxLineSize bounds one SSE line. Responses to large multimodal
// prompts can exceed the 64 KiB bufio.Scanner default.
const sseMaxLineSize = 512 * 1024

// parseSSE decodes the OpenRouter event stream in r onto ch until [DONE],
// an error event, the end of r or the end of ctx. Each payload is expected
// on a single "data:" line. The caller closes ch.
func parseSSE(ctx context.Context, r io.Reader, ch chan<- provider.StreamChunk) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, sseMaxLineSize), sseMaxLineSize)

	send := func(c provider.StreamChunk) bool {
		select {
		case ch <- c:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for scanner.Scan() {
		data, ok := strings.CutPrefix(scanner.Text(), "data:")
		if !ok {
			// Blank separators and ": OPENROUTER PROCESSING" comments.
			continue
		}
		chunk, emit, done := decodeEvent(strings.TrimSpace(data))
		if emit && !send(chunk) {
			return
		}
		if done {
			return
		}
	}
	if err := scanner.Err(); err != nil {
		send(provider.StreamChunk{Err: err})
	}
}

// decodeEvent turns one data payload into a chunk. emit reports whether
// the chunk carries anything; done reports the end of the stream.
func decodeEvent(data string) (chunk provider.StreamChunk, emit, done bool) {
	switch {
	case data == "[DONE]":
		return chunk, false, true
	case strings.HasPrefix(data, ":"):
		// Keepalive sent as a data line.
		return chunk, false, false
	}

	var ev apiStreamChunk
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		return provider.StreamChunk{Err: err}, true, true
	}
	if ev.Error.Message != "" {
		return provider.StreamChunk{Err: streamError(ev.Error)}, true, true
	}

	chunk.Model = ev.Model
	if u := ev.Usage; u != nil {
		chunk.Usage = &provider.TokenUsage{
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			TotalTokens:      u.TotalTokens,
		}
	}
	if len(ev.Choices) == 0 {
		// Usage-only trailer.
		return chunk, chunk.Usage != nil, false
	}

	chunk.Content = ev.Choices[0].Delta.Content
	chunk.FinishReason = finishReason(ev.Choices[0].FinishReason)
	return chunk, true, false
}

// finishReason maps an OpenAI-style finish_reason. Empty stays empty.
func finishReason(reason string) provider.FinishReason {
	switch reason {
	case "":
		return ""
	case "length":
		return provider.FinishReasonLength
	case "content_filter":
		return provider.FinishReasonFiltering
	default:
		return provider.FinishReasonStop
	}
}
