package config

import (
	"fmt"
	"time"
)

// Config holds the complete application configuration
type Config struct {
	Version  string         `yaml:"version" json:"version"`
	Cache    CacheConfig    `yaml:"cache" json:"cache"`
	AI       AIConfig       `yaml:"ai" json:"ai"`
	Vector   VectorConfig   `yaml:"vector" json:"vector"`
	Pipeline PipelineConfig `yaml:"pipeline" json:"pipeline"`
	Patterns PatternConfig  `yaml:"patterns" json:"patterns"`
	Output   OutputConfig   `yaml:"output" json:"output"`
}

// CacheConfig configures the Redis-backed result caches
type CacheConfig struct {
	Enabled     bool          `yaml:"enabled" json:"enabled"`
	Host        string        `yaml:"host" json:"host"`
	Port        int           `yaml:"port" json:"port"`
	Password    string        `yaml:"password" json:"password"`
	DB          int           `yaml:"db" json:"db"`                     // parse results
	HintDB      int           `yaml:"hint_db" json:"hint_db"`           // recommendations
	TTL         time.Duration `yaml:"ttl" json:"ttl"`                   // parse result lifetime
	HintTTL     time.Duration `yaml:"hint_ttl" json:"hint_ttl"`         // recommendation lifetime
	DialTimeout time.Duration `yaml:"dial_timeout" json:"dial_timeout"` // connect timeout
	ReadTimeout time.Duration `yaml:"read_timeout" json:"read_timeout"` // read/write timeout
}

// AIConfig configures the LLM provider used for recommendations and embeddings
type AIConfig struct {
	Enabled      bool          `yaml:"enabled" json:"enabled"`
	Provider     string        `yaml:"provider" json:"provider"`           // ollama
	Model        string        `yaml:"model" json:"model"`                 // model name/identifier
	Endpoint     string        `yaml:"endpoint" json:"endpoint"`           // API endpoint URL
	Timeout      time.Duration `yaml:"timeout" json:"timeout"`             // recommendation request timeout
	ParseTimeout time.Duration `yaml:"parse_timeout" json:"parse_timeout"` // timeout for calls made while parsing
	Temperature  float64       `yaml:"temperature" json:"temperature"`
	TopP         float64       `yaml:"top_p" json:"top_p"`
	MaxTokens    int           `yaml:"max_tokens" json:"max_tokens"`
	Stream       bool          `yaml:"stream" json:"stream"`   // collect recommendations from a streamed completion
	Retries      int           `yaml:"retries" json:"retries"` // extra attempts after a timeout or network error
}

// VectorConfig configures the encoder and similarity index
type VectorConfig struct {
	Backend        string        `yaml:"backend" json:"backend"`                 // memory|elasticsearch
	Encoder        string        `yaml:"encoder" json:"encoder"`                 // tfidf|ollama
	Dimensions     int           `yaml:"dimensions" json:"dimensions"`           // TF-IDF vocabulary size
	EmbeddingModel string        `yaml:"embedding_model" json:"embedding_model"` // model for the ollama encoder
	PersistPath    string        `yaml:"persist_path" json:"persist_path"`       // memory index snapshot
	Addresses      []string      `yaml:"addresses" json:"addresses"`             // elasticsearch nodes
	IndexPrefix    string        `yaml:"index_prefix" json:"index_prefix"`       // elasticsearch index prefix
	Timeout        time.Duration `yaml:"timeout" json:"timeout"`                 // per query timeout
}

// PipelineConfig configures parsing and classification
type PipelineConfig struct {
	Workers       int           `yaml:"workers" json:"workers"`
	Threshold     float64       `yaml:"threshold" json:"threshold"` // classification confidence threshold
	MaxLineLength int           `yaml:"max_line_length" json:"max_line_length"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
}

// PatternConfig points at replacement reference data files
type PatternConfig struct {
	ProblemsFile   string `yaml:"problems_file" json:"problems_file"`
	ReferencesFile string `yaml:"references_file" json:"references_file"`
}

// OutputConfig configures output formatting and display
type OutputConfig struct {
	DefaultFormat string `yaml:"default_format" json:"default_format"` // terminal|json|markdown|csv
	ColorMode     string `yaml:"color_mode" json:"color_mode"`         // auto|always|never
	Verbose       bool   `yaml:"verbose" json:"verbose"`               // default verbosity
	LogFormat     string `yaml:"log_format" json:"log_format"`         // console|json
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Version: "1.0",
		Cache: CacheConfig{
			Enabled:     true,
			Host:        "localhost",
			Port:        6379,
			DB:          0,
			HintDB:      1,
			TTL:         3600 * time.Second,
			HintTTL:     7200 * time.Second,
			DialTimeout: 5 * time.Second,
			ReadTimeout: 5 * time.Second,
		},
		AI: AIConfig{
			Enabled:      true,
			Provider:     "ollama",
			Model:        "llama3.2:1b",
			Endpoint:     "http://localhost:11434",
			Timeout:      30 * time.Second,
			ParseTimeout: 15 * time.Second,
			Temperature:  0.1,
			TopP:         0.8,
			MaxTokens:    300,
			Retries:      1,
		},
		Vector: VectorConfig{
			Backend:        "memory",
			Encoder:        "tfidf",
			Dimensions:     2048,
			EmbeddingModel: "all-minilm",
			Addresses:      []string{"http://localhost:9200"},
			IndexPrefix:    "logsift",
			Timeout:        10 * time.Second,
		},
		Pipeline: PipelineConfig{
			Workers:       8,
			Threshold:     0.3,
			MaxLineLength: 1024 * 1024, // 1MB
			Timeout:       5 * time.Minute,
		},
		Output: OutputConfig{
			DefaultFormat: "terminal",
			ColorMode:     "auto",
			Verbose:       false,
			LogFormat:     "console",
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.validateCacheConfig(); err != nil {
		return err
	}
	if err := c.validateAIConfig(); err != nil {
		return err
	}
	if err := c.validateVectorConfig(); err != nil {
		return err
	}
	if err := c.validatePipelineConfig(); err != nil {
		return err
	}
	if err := c.validateOutputConfig(); err != nil {
		return err
	}
	return nil
}

// validateCacheConfig validates cache-related configuration
func (c *Config) validateCacheConfig() error {
	if c.Cache.Port < 0 || c.Cache.Port > 65535 {
		return fmt.Errorf("cache port must be between 0 and 65535")
	}
	if c.Cache.DB < 0 || c.Cache.HintDB < 0 {
		return fmt.Errorf("cache db must be non-negative")
	}
	if c.Cache.TTL < 0 || c.Cache.HintTTL < 0 {
		return fmt.Errorf("cache ttl must be non-negative")
	}
	return nil
}

// validateAIConfig validates AI-related configuration
func (c *Config) validateAIConfig() error {
	if c.AI.Provider != "" && c.AI.Provider != "ollama" {
		return fmt.Errorf("invalid AI provider: %s (must be one of: ollama)", c.AI.Provider)
	}
	if c.AI.Timeout < 0 || c.AI.ParseTimeout < 0 {
		return fmt.Errorf("ai timeout must be non-negative")
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if c.AI.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must be non-negative")
	}
	if c.AI.Retries < 0 {
		return fmt.Errorf("ai retries must be non-negative")
	}
	return nil
}

// validateVectorConfig validates encoder and index configuration
func (c *Config) validateVectorConfig() error {
	if c.Vector.Backend != "" {
		validBackends := map[string]bool{
			"memory":        true,
			"elasticsearch": true,
		}
		if !validBackends[c.Vector.Backend] {
			return fmt.Errorf("invalid vector backend: %s (must be one of: memory, elasticsearch)", c.Vector.Backend)
		}
	}
	if c.Vector.Encoder != "" {
		validEncoders := map[string]bool{
			"tfidf":  true,
			"ollama": true,
		}
		if !validEncoders[c.Vector.Encoder] {
			return fmt.Errorf("invalid encoder: %s (must be one of: tfidf, ollama)", c.Vector.Encoder)
		}
	}
	if c.Vector.Dimensions < 1 {
		return fmt.Errorf("dimensions must be greater than 0")
	}
	if c.Vector.Backend == "elasticsearch" && len(c.Vector.Addresses) == 0 {
		return fmt.Errorf("elasticsearch backend requires at least one address")
	}
	if c.Vector.Timeout < 0 {
		return fmt.Errorf("vector timeout must be non-negative")
	}
	return nil
}

// validatePipelineConfig validates parsing configuration
func (c *Config) validatePipelineConfig() error {
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("workers must be greater than 0")
	}
	if c.Pipeline.Threshold < 0 || c.Pipeline.Threshold > 1 {
		return fmt.Errorf("threshold must be between 0 and 1")
	}
	if c.Pipeline.MaxLineLength < 1 {
		return fmt.Errorf("max_line_length must be greater than 0")
	}
	if c.Pipeline.Timeout < 0 {
		return fmt.Errorf("pipeline timeout must be non-negative")
	}
	return nil
}

// validateOutputConfig validates output-related configuration
func (c *Config) validateOutputConfig() error {
	if c.Output.DefaultFormat != "" {
		validFormats := map[string]bool{
			"json":     true,
			"terminal": true,
			"markdown": true,
			"csv":      true,
		}
		if !validFormats[c.Output.DefaultFormat] {
			return fmt.Errorf("invalid output format: %s (must be one of: terminal, json, markdown, csv)", c.Output.DefaultFormat)
		}
	}
	if c.Output.ColorMode != "" {
		validColorModes := map[string]bool{
			"auto":   true,
			"always": true,
			"never":  true,
		}
		if !validColorModes[c.Output.ColorMode] {
			return fmt.Errorf("invalid color mode: %s (must be one of: auto, always, never)", c.Output.ColorMode)
		}
	}
	if c.Output.LogFormat != "" && c.Output.LogFormat != "console" && c.Output.LogFormat != "json" {
		return fmt.Errorf("invalid log format: %s (must be one of: console, json)", c.Output.LogFormat)
	}
	return nil
}

// RedisAddr returns host:port of the cache backend
func (c *CacheConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
