// Package ai defines the LLM collaborator used for recommendations and,
// optionally, for embeddings.
package ai

import (
	"context"
	"strings"
)

// Provider is an LLM completion backend
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete performs a single non-streaming completion
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// CompleteStream performs a streaming completion. The channel is closed
	// after the final chunk or the first error.
	CompleteStream(ctx context.Context, req *CompletionRequest) (<-chan StreamChunk, error)

	// HealthCheck verifies the backend is reachable
	HealthCheck(ctx context.Context) error
}

// StreamChunk is one piece of a streamed completion
type StreamChunk struct {
	Content string
	Done    bool
	Error   error
}

// Collect drains a stream into the full completion text
func Collect(ctx context.Context, chunks <-chan StreamChunk) (string, error) {
	var sb strings.Builder
	for {
		select {
		case <-ctx.Done():
			return sb.String(), ctx.Err()
		case chunk, ok := <-chunks:
			if !ok {
				return sb.String(), nil
			}
			if chunk.Error != nil {
				return sb.String(), chunk.Error
			}
			sb.WriteString(chunk.Content)
			if chunk.Done {
				return sb.String(), nil
			}
		}
	}
}
