package vectorstore

import (
	"context"
	"fmt"
)

// Embedder is a remote embedding model
type Embedder interface {
	Embed(ctx context.Context, model, text string) ([]float32, error)
}

// EmbeddingEncoder encodes text with a remote embedding model
type EmbeddingEncoder struct {
	client Embedder
	model  string
}

// NewEmbeddingEncoder creates an encoder backed by client and model
func NewEmbeddingEncoder(client Embedder, model string) *EmbeddingEncoder {
	return &EmbeddingEncoder{client: client, model: model}
}

// Encode returns the model embedding of text
func (e *EmbeddingEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	vector, err := e.client.Embed(ctx, e.model, text)
	if err != nil {
		return nil, fmt.Errorf("embedding with %s failed: %w", e.model, err)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("embedding with %s returned an empty vector", e.model)
	}
	return vector, nil
}
