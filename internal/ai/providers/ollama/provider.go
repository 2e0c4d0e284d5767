// Package ollama talks to a local Ollama server for completions and
// embeddings.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/yildizm/logsift/internal/ai"
)

const providerName = "ollama"

// Provider implements ai.Provider for Ollama
type Provider struct {
	config   *Config
	client   *http.Client
	baseURL  *url.URL
	healthy  bool
	healthMu sync.RWMutex
}

// New creates a new Ollama provider instance
func New(config *Config) (*Provider, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	baseURL, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, ai.NewConfigurationError(providerName, "base_url", "invalid base URL: "+err.Error())
	}

	return &Provider{
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		baseURL: baseURL,
	}, nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return providerName
}

// Model returns the default completion model
func (p *Provider) Model() string {
	return p.config.DefaultModel
}

func (p *Provider) generateRequest(req *ai.CompletionRequest, stream bool) *GenerateRequest {
	model := req.Model
	if model == "" {
		model = p.config.DefaultModel
	}

	options := &Options{
		Temperature: req.Temperature,
		TopP:        req.TopP,
		NumPredict:  req.MaxTokens,
	}
	if options.Temperature == 0 {
		options.Temperature = p.config.DefaultTemperature
	}
	if options.TopP == 0 {
		options.TopP = p.config.DefaultTopP
	}
	if options.NumPredict == 0 {
		options.NumPredict = p.config.DefaultNumPredict
	}

	return &GenerateRequest{
		Model:   model,
		Prompt:  req.Prompt,
		System:  req.SystemPrompt,
		Stream:  stream,
		Options: options,
	}
}

// Complete performs text completion
func (p *Provider) Complete(ctx context.Context, req *ai.CompletionRequest) (*ai.CompletionResponse, error) {
	start := time.Now()

	var resp GenerateResponse
	if err := p.post(ctx, "/api/generate", p.generateRequest(req, false), &resp); err != nil {
		return nil, err
	}

	return &ai.CompletionResponse{
		Content: resp.Response,
		Model:   resp.Model,
		Usage: &ai.TokenUsage{
			PromptTokens:     resp.PromptEvalCount,
			CompletionTokens: resp.EvalCount,
			TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
		},
		CreatedAt: start,
		Duration:  time.Since(start),
	}, nil
}

// CompleteStream performs streaming text completion
func (p *Provider) CompleteStream(ctx context.Context, req *ai.CompletionRequest) (<-chan ai.StreamChunk, error) {
	resp, err := p.send(ctx, "/api/generate", p.generateRequest(req, true))
	if err != nil {
		return nil, err
	}

	ch := make(chan ai.StreamChunk)

	go func() {
		defer close(ch)
		defer func() { _ = resp.Body.Close() }()

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}

			var genResp GenerateResponse
			if err := json.Unmarshal([]byte(line), &genResp); err != nil {
				select {
				case ch <- ai.StreamChunk{Error: ai.NewProviderErrorWithCause(ai.ErrTypeInternal, "failed to decode stream response", providerName, err)}:
				case <-ctx.Done():
				}
				return
			}

			select {
			case ch <- ai.StreamChunk{Content: genResp.Response, Done: genResp.Done}:
			case <-ctx.Done():
				return
			}

			if genResp.Done {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			select {
			case ch <- ai.StreamChunk{Error: ai.NewProviderErrorWithCause(ai.ErrTypeInternal, "stream scanning error", providerName, err)}:
			case <-ctx.Done():
			}
		}
	}()

	return ch, nil
}

// Embed returns the embedding of text produced by model
func (p *Provider) Embed(ctx context.Context, model, text string) ([]float32, error) {
	if model == "" {
		model = p.config.DefaultModel
	}

	var resp EmbeddingsResponse
	if err := p.post(ctx, "/api/embeddings", &EmbeddingsRequest{Model: model, Prompt: text}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embedding) == 0 {
		return nil, ai.NewProviderError(ai.ErrTypeProvider, "empty embedding returned", providerName)
	}

	vec := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

// HealthCheck verifies provider connectivity and status
func (p *Provider) HealthCheck(ctx context.Context) error {
	_, err := p.ListModels(ctx)
	p.setHealthy(err == nil)
	return err
}

// IsHealthy returns the result of the last health check
func (p *Provider) IsHealthy() bool {
	p.healthMu.RLock()
	defer p.healthMu.RUnlock()
	return p.healthy
}

func (p *Provider) setHealthy(healthy bool) {
	p.healthMu.Lock()
	defer p.healthMu.Unlock()
	p.healthy = healthy
}

// ListModels returns available models
func (p *Provider) ListModels(ctx context.Context) ([]Model, error) {
	endpoint := p.baseURL.JoinPath("/api/tags")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), http.NoBody)
	if err != nil {
		return nil, ai.NewProviderErrorWithCause(ai.ErrTypeInternal, "failed to create request", providerName, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, ai.NewStatusError(providerName, resp.StatusCode, fmt.Sprintf("list models failed with status %d", resp.StatusCode))
	}

	var tagsResp TagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tagsResp); err != nil {
		return nil, ai.NewProviderErrorWithCause(ai.ErrTypeInternal, "failed to decode response", providerName, err)
	}

	return tagsResp.Models, nil
}

// IsModelAvailable checks if a model is installed
func (p *Provider) IsModelAvailable(ctx context.Context, modelName string) (bool, error) {
	models, err := p.ListModels(ctx)
	if err != nil {
		return false, err
	}

	for _, model := range models {
		if model.Name == modelName || strings.HasPrefix(model.Name, modelName+":") {
			return true, nil
		}
	}

	return false, nil
}

// post sends body as JSON and decodes a JSON reply into out
func (p *Provider) post(ctx context.Context, path string, body, out any) error {
	resp, err := p.send(ctx, path, body)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return ai.NewProviderErrorWithCause(ai.ErrTypeInternal, "failed to decode response", providerName, err)
	}
	return nil
}

// send posts body and returns the response once its status is 200
func (p *Provider) send(ctx context.Context, path string, body any) (*http.Response, error) {
	endpoint := p.baseURL.JoinPath(path)

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, ai.NewProviderErrorWithCause(ai.ErrTypeInternal, "failed to marshal request", providerName, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(jsonData))
	if err != nil {
		return nil, ai.NewProviderErrorWithCause(ai.ErrTypeInternal, "failed to create request", providerName, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, transportError(err)
	}

	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		data, _ := io.ReadAll(resp.Body)
		var errorResp ErrorResponse
		if json.Unmarshal(data, &errorResp) == nil && errorResp.Error != "" {
			return nil, ai.NewStatusError(providerName, resp.StatusCode, errorResp.Error)
		}
		return nil, ai.NewStatusError(providerName, resp.StatusCode, fmt.Sprintf("request failed with status %d", resp.StatusCode))
	}

	return resp, nil
}

func transportError(err error) error {
	var netErr interface{ Timeout() bool }
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return ai.NewProviderErrorWithCause(ai.ErrTypeTimeout, "request timed out", providerName, err)
	}
	return ai.NewProviderErrorWithCause(ai.ErrTypeNetwork, "request failed", providerName, err)
}
