package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

const sampleHeader = `# logsift configuration
#
# Search order: ./.logsift.yaml, ~/.config/logsift/config.yaml,
# /etc/logsift/config.yaml. Environment variables (REDIS_HOST, OLLAMA_URL,
# LOGSIFT_* and a .env file) override file settings.
`

// SampleConfig renders the default configuration as YAML
func SampleConfig() (string, error) {
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return "", fmt.Errorf("failed to marshal default config: %w", err)
	}
	return sampleHeader + "\n" + string(data), nil
}
