package ai

import (
	"time"
)

// CompletionRequest represents a request for text completion
type CompletionRequest struct {
	// Prompt is the input text for completion
	Prompt string `json:"prompt"`

	// SystemPrompt provides system-level instructions
	SystemPrompt string `json:"system_prompt,omitempty"`

	// Model overrides the provider's default model
	Model string `json:"model,omitempty"`

	// MaxTokens limits the response length
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls randomness
	Temperature float64 `json:"temperature,omitempty"`

	// TopP is the nucleus sampling cutoff
	TopP float64 `json:"top_p,omitempty"`
}

// CompletionResponse represents the response from a completion request
type CompletionResponse struct {
	// Content is the generated text
	Content string `json:"content"`

	// Model indicates which model was used
	Model string `json:"model"`

	// Usage contains token usage information
	Usage *TokenUsage `json:"usage,omitempty"`

	CreatedAt time.Time     `json:"created_at"`
	Duration  time.Duration `json:"duration"`
}

// TokenUsage tracks token consumption
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
