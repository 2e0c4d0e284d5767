package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigPaths defines the config file search paths in priority order
var ConfigPaths = []string{
	"./.logsift.yaml",               // Project-specific config (highest priority)
	"~/.config/logsift/config.yaml", // User config
	"/etc/logsift/config.yaml",      // System config (lowest priority)
}

// DefaultEnvFile is read before environment overrides are applied
const DefaultEnvFile = ".env"

// Loader handles configuration loading with priority merging
type Loader struct {
	configPaths []string
	envFile     string
}

// NewLoader creates a new config loader
func NewLoader() *Loader {
	return &Loader{
		configPaths: ConfigPaths,
		envFile:     DefaultEnvFile,
	}
}

// WithEnvFile sets the dotenv file read before environment overrides.
// An empty path disables dotenv loading.
func (l *Loader) WithEnvFile(path string) *Loader {
	l.envFile = path
	return l
}

// LoadConfig loads configuration from multiple sources with priority order:
// 1. Command line flags (handled by caller)
// 2. Environment variables (including a .env file)
// 3. ./.logsift.yaml
// 4. ~/.config/logsift/config.yaml
// 5. /etc/logsift/config.yaml
// 6. Built-in defaults
func (l *Loader) LoadConfig(customPath string) (*Config, error) {
	config := DefaultConfig()

	if customPath != "" {
		if err := validateConfigPath(customPath); err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		if err := l.loadFromFile(config, customPath); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", customPath, err)
		}
	} else {
		// Lowest priority first so later files win
		for i := len(l.configPaths) - 1; i >= 0; i-- {
			expandedPath := expandPath(l.configPaths[i])
			if fileExists(expandedPath) {
				if err := l.loadFromFile(config, expandedPath); err != nil {
					fmt.Fprintf(os.Stderr, "Warning: Failed to load config from %s: %v\n", expandedPath, err)
				}
			}
		}
	}

	if err := l.loadEnvFile(); err != nil {
		return nil, err
	}

	if err := l.applyEnvOverrides(config); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// loadFromFile overlays a YAML file on top of the existing config.
// Keys absent from the file keep their current values.
func (l *Loader) loadFromFile(config *Config, path string) error {
	// #nosec G304 - path is validated by validateConfigPath() before reaching here
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// loadEnvFile populates the process environment from a dotenv file.
// Variables already set in the environment are not overwritten.
func (l *Loader) loadEnvFile() error {
	if l.envFile == "" {
		return nil
	}
	if err := godotenv.Load(l.envFile); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", l.envFile, err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config
func (l *Loader) applyEnvOverrides(config *Config) error {
	envMappings := map[string]func(string) error{
		// Cache Config
		"REDIS_HOST":            func(v string) error { config.Cache.Host = v; return nil },
		"REDIS_PORT":            func(v string) error { return parseInt(v, &config.Cache.Port) },
		"REDIS_DB":              func(v string) error { return parseInt(v, &config.Cache.DB) },
		"REDIS_PASSWORD":        func(v string) error { config.Cache.Password = v; return nil },
		"HINT_REDIS_DB":         func(v string) error { return parseInt(v, &config.Cache.HintDB) },
		"CACHE_TTL":             func(v string) error { return parseSeconds(v, &config.Cache.TTL) },
		"HINT_CACHE_TTL":        func(v string) error { return parseSeconds(v, &config.Cache.HintTTL) },
		"LOGSIFT_CACHE_ENABLED": func(v string) error { return parseBool(v, &config.Cache.Enabled) },

		// AI Config
		"OLLAMA_URL":               func(v string) error { config.AI.Endpoint = v; return nil },
		"OLLAMA_MODEL":             func(v string) error { config.AI.Model = v; return nil },
		"LOGSIFT_AI_ENABLED":       func(v string) error { return parseBool(v, &config.AI.Enabled) },
		"LOGSIFT_AI_TIMEOUT":       func(v string) error { return parseDuration(v, &config.AI.Timeout) },
		"LOGSIFT_AI_PARSE_TIMEOUT": func(v string) error { return parseDuration(v, &config.AI.ParseTimeout) },
		"LOGSIFT_AI_STREAM":        func(v string) error { return parseBool(v, &config.AI.Stream) },
		"LOGSIFT_AI_RETRIES":       func(v string) error { return parseInt(v, &config.AI.Retries) },

		// Vector Config
		"LOGSIFT_VECTOR_BACKEND":      func(v string) error { config.Vector.Backend = v; return nil },
		"LOGSIFT_VECTOR_ENCODER":      func(v string) error { config.Vector.Encoder = v; return nil },
		"LOGSIFT_VECTOR_DIMENSIONS":   func(v string) error { return parseInt(v, &config.Vector.Dimensions) },
		"LOGSIFT_VECTOR_PERSIST_PATH": func(v string) error { config.Vector.PersistPath = v; return nil },
		"LOGSIFT_VECTOR_TIMEOUT":      func(v string) error { return parseDuration(v, &config.Vector.Timeout) },

		// Pipeline Config
		"LOGSIFT_PIPELINE_WORKERS":   func(v string) error { return parseInt(v, &config.Pipeline.Workers) },
		"LOGSIFT_PIPELINE_THRESHOLD": func(v string) error { return parseFloat(v, &config.Pipeline.Threshold) },
		"LOGSIFT_PIPELINE_TIMEOUT":   func(v string) error { return parseDuration(v, &config.Pipeline.Timeout) },

		// Pattern Config
		"LOGSIFT_PATTERNS_PROBLEMS_FILE":   func(v string) error { config.Patterns.ProblemsFile = v; return nil },
		"LOGSIFT_PATTERNS_REFERENCES_FILE": func(v string) error { config.Patterns.ReferencesFile = v; return nil },

		// Output Config
		"LOGSIFT_OUTPUT_DEFAULT_FORMAT": func(v string) error { config.Output.DefaultFormat = v; return nil },
		"LOGSIFT_OUTPUT_COLOR_MODE":     func(v string) error { config.Output.ColorMode = v; return nil },
		"LOGSIFT_OUTPUT_VERBOSE":        func(v string) error { return parseBool(v, &config.Output.Verbose) },
		"LOGSIFT_OUTPUT_LOG_FORMAT":     func(v string) error { config.Output.LogFormat = v; return nil },
	}

	for envVar, setter := range envMappings {
		if value := os.Getenv(envVar); value != "" {
			if err := setter(value); err != nil {
				return fmt.Errorf("invalid value for %s: %w", envVar, err)
			}
		}
	}

	// Comma-separated list of elasticsearch nodes
	if addrs := os.Getenv("ELASTICSEARCH_URLS"); addrs != "" {
		config.Vector.Addresses = nil
		for _, addr := range strings.Split(addrs, ",") {
			if addr = strings.TrimSpace(addr); addr != "" {
				config.Vector.Addresses = append(config.Vector.Addresses, addr)
			}
		}
	}

	return nil
}

// GetConfigPaths returns the list of configuration file paths that will be searched
func GetConfigPaths() []string {
	paths := make([]string, 0, len(ConfigPaths))
	for _, path := range ConfigPaths {
		paths = append(paths, expandPath(path))
	}
	return paths
}

// FindConfigFile finds the first existing config file in the search paths
func FindConfigFile() (string, bool) {
	for _, path := range ConfigPaths {
		expandedPath := expandPath(path)
		if fileExists(expandedPath) {
			return expandedPath, true
		}
	}
	return "", false
}

// Helper functions

// validateConfigPath validates that a config path is safe to read
func validateConfigPath(path string) error {
	cleanPath := filepath.Clean(path)

	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path traversal not allowed")
	}

	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("config file must have .yaml or .yml extension")
	}

	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	if strings.HasPrefix(absPath, "/proc/") || strings.HasPrefix(absPath, "/sys/") {
		return fmt.Errorf("access to system files not allowed")
	}

	return nil
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// fileExists checks if a file exists
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Type conversion helpers

func parseInt(s string, dst *int) error {
	val, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*dst = val
	return nil
}

func parseFloat(s string, dst *float64) error {
	val, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*dst = val
	return nil
}

func parseBool(s string, dst *bool) error {
	val, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	*dst = val
	return nil
}

func parseDuration(s string, dst *time.Duration) error {
	val, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*dst = val
	return nil
}

// parseSeconds accepts a bare number of seconds or a duration string
func parseSeconds(s string, dst *time.Duration) error {
	if secs, err := strconv.Atoi(s); err == nil {
		*dst = time.Duration(secs) * time.Second
		return nil
	}
	return parseDuration(s, dst)
}
