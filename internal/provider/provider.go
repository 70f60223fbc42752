// Package provider defines the transport contract between the context
// pipeline and a model backend: a streaming request built from canonical
// messages and the incremental chunks parsed back from the wire.
package provider

import "context"

// Streamer sends a request to a model backend and streams the answer.
// Connection and HTTP errors are returned directly. Mid-stream errors are
// delivered via StreamChunk.Err.
type Streamer interface {
	Stream(ctx context.Context, req Request) (<-chan StreamChunk, error)
}

// Provider is a Streamer that also names its default model.
type Provider interface {
	Streamer

	// ModelName returns the identifier of the configured model.
	ModelName() string
}

// HealthChecker is an optional interface that providers may implement
// to support active health probing.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Collect drains a stream into a Response. It returns the first in-stream
// error, or ctx.Err() if the context ends before the stream closes.
func Collect(ctx context.Context, ch <-chan StreamChunk) (Response, error) {
	var resp Response
	for {
		select {
		case <-ctx.Done():
			return resp, ctx.Err()
		case chunk, ok := <-ch:
			if !ok {
				return resp, nil
			}
			if chunk.Err != nil {
				return resp, chunk.Err
			}
			resp.Content += chunk.Content
			if chunk.FinishReason != "" {
				resp.FinishReason = chunk.FinishReason
			}
			if chunk.Usage != nil {
				resp.Usage = *chunk.Usage
			}
			if chunk.Model != "" {
				resp.Model = chunk.Model
			}
		}
	}
}
