package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/yildizm/logsift/internal/ai"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	config := DefaultConfig()
	config.BaseURL = server.URL
	config.Timeout = 2 * time.Second

	provider, err := New(config)
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}
	return provider
}

func TestProvider_Complete(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("Expected path '/api/generate', got '%s'", r.URL.Path)
		}

		var req GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		if req.Stream {
			t.Error("Expected a non-streaming request")
		}
		if req.Model != "llama3.2:1b" {
			t.Errorf("Expected default model, got '%s'", req.Model)
		}
		if req.Options == nil || req.Options.Temperature != 0.1 || req.Options.TopP != 0.8 || req.Options.NumPredict != 300 {
			t.Errorf("Expected default sampling options, got %+v", req.Options)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(GenerateResponse{
			Model:           req.Model,
			Response:        "Restart the database.",
			Done:            true,
			PromptEvalCount: 10,
			EvalCount:       5,
		})
	})

	resp, err := provider.Complete(context.Background(), &ai.CompletionRequest{Prompt: "Test prompt"})
	if err != nil {
		t.Fatalf("Failed to complete: %v", err)
	}
	if resp.Content != "Restart the database." {
		t.Errorf("Unexpected content '%s'", resp.Content)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Errorf("Expected total tokens 15, got %d", resp.Usage.TotalTokens)
	}
}

func TestProvider_CompleteStream(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var req GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		if !req.Stream {
			t.Error("Expected stream to be true")
		}

		w.Header().Set("Content-Type", "application/json")
		for _, resp := range []GenerateResponse{
			{Response: "Hello"},
			{Response: " world"},
			{Response: "!", Done: true},
		} {
			data, _ := json.Marshal(resp)
			_, _ = w.Write(append(data, '\n'))
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
	})

	ctx := context.Background()
	ch, err := provider.CompleteStream(ctx, &ai.CompletionRequest{Prompt: "Test prompt"})
	if err != nil {
		t.Fatalf("Failed to start streaming: %v", err)
	}

	content, err := ai.Collect(ctx, ch)
	if err != nil {
		t.Fatalf("Stream error: %v", err)
	}
	if content != "Hello world!" {
		t.Errorf("Expected content 'Hello world!', got '%s'", content)
	}
}

func TestProvider_Embed(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("Expected path '/api/embeddings', got '%s'", r.URL.Path)
		}
		var req EmbeddingsRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "all-minilm" || req.Prompt != "connection refused" {
			t.Errorf("Unexpected request %+v", req)
		}
		_ = json.NewEncoder(w).Encode(EmbeddingsResponse{Embedding: []float64{0.25, -0.5, 1}})
	})

	vec, err := provider.Embed(context.Background(), "all-minilm", "connection refused")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vec) != 3 || vec[0] != 0.25 || vec[1] != -0.5 {
		t.Errorf("Unexpected embedding %v", vec)
	}
}

func TestProvider_HealthCheck(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" || r.Method != http.MethodGet {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(TagsResponse{Models: []Model{{Name: "llama3.2:1b"}, {Name: "mistral:latest"}}})
	})

	ctx := context.Background()
	if err := provider.HealthCheck(ctx); err != nil {
		t.Fatalf("Health check failed: %v", err)
	}
	if !provider.IsHealthy() {
		t.Error("Expected provider to be healthy")
	}

	available, err := provider.IsModelAvailable(ctx, "mistral")
	if err != nil || !available {
		t.Errorf("Expected mistral to be available, got %v, %v", available, err)
	}
}

func TestProvider_ErrorHandling(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantType ai.ErrorType
	}{
		{"model missing", http.StatusNotFound, `{"error":"model 'llama3.2:1b' not found"}`, ai.ErrTypeModelUnavailable},
		{"server error", http.StatusInternalServerError, `oops`, ai.ErrTypeProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := provider.Complete(context.Background(), &ai.CompletionRequest{Prompt: "x"})
			var pe *ai.ProviderError
			if !errors.As(err, &pe) {
				t.Fatalf("Expected ProviderError, got %v", err)
			}
			if pe.Type != tt.wantType || pe.StatusCode != tt.status {
				t.Errorf("Unexpected error %+v", pe)
			}
		})
	}
}

func TestProvider_Timeout(t *testing.T) {
	// released before the server closes so Close does not wait on the handler
	release := make(chan struct{})
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	t.Cleanup(func() { close(release) })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := provider.Complete(ctx, &ai.CompletionRequest{Prompt: "x"})
	if !errors.Is(err, &ai.ProviderError{Type: ai.ErrTypeTimeout}) {
		t.Errorf("Expected timeout error, got %v", err)
	}
	if !ai.IsRetryableError(err) {
		t.Error("Timeouts should be retryable")
	}
}

func TestConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"missing base url", func(c *Config) { c.BaseURL = "" }, true},
		{"missing model", func(c *Config) { c.DefaultModel = "" }, true},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, true},
		{"temperature too high", func(c *Config) { c.DefaultTemperature = 3 }, true},
		{"top_p out of range", func(c *Config) { c.DefaultTopP = 1.5 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.modify(config)
			err := config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !ai.IsConfigurationError(err) {
				t.Errorf("Expected configuration error, got %T", err)
			}
		})
	}
}
