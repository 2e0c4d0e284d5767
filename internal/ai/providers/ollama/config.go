package ollama

import (
	"time"

	"github.com/yildizm/logsift/internal/ai"
)

// Config holds Ollama-specific configuration
type Config struct {
	// BaseURL is the Ollama API endpoint
	BaseURL string `json:"base_url"`

	// DefaultModel is used when a request names no model
	DefaultModel string `json:"default_model"`

	// Timeout bounds every HTTP request
	Timeout time.Duration `json:"timeout"`

	DefaultTemperature float64 `json:"default_temperature"`
	DefaultTopP        float64 `json:"default_top_p"`

	// DefaultNumPredict caps generated tokens when a request sets no limit
	DefaultNumPredict int `json:"default_num_predict"`
}

// DefaultConfig returns a default Ollama configuration
func DefaultConfig() *Config {
	return &Config{
		BaseURL:            "http://localhost:11434",
		DefaultModel:       "llama3.2:1b",
		Timeout:            30 * time.Second,
		DefaultTemperature: 0.1,
		DefaultTopP:        0.8,
		DefaultNumPredict:  300,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ai.NewConfigurationError("ollama", "base_url", "base URL is required")
	}

	if c.DefaultModel == "" {
		return ai.NewConfigurationError("ollama", "default_model", "default model is required")
	}

	if c.Timeout <= 0 {
		return ai.NewConfigurationError("ollama", "timeout", "timeout must be positive")
	}

	if c.DefaultTemperature < 0 || c.DefaultTemperature > 2 {
		return ai.NewConfigurationError("ollama", "default_temperature", "temperature must be between 0 and 2")
	}

	if c.DefaultTopP < 0 || c.DefaultTopP > 1 {
		return ai.NewConfigurationError("ollama", "default_top_p", "top_p must be between 0 and 1")
	}

	return nil
}
