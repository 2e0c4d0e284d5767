package common

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	yaml "gopkg.in/yaml.v3"
)

//go:embed problems.yaml
var defaultProblemsYAML []byte

//go:embed references.yaml
var defaultReferencesYAML []byte

// Example is a reference example for one field extractor
type Example struct {
	Text        string `yaml:"text" json:"text"`
	Type        string `yaml:"type,omitempty" json:"type,omitempty"`
	Level       string `yaml:"level,omitempty" json:"level,omitempty"`
	Source      string `yaml:"source,omitempty" json:"source,omitempty"`
	Description string `yaml:"description" json:"description"`
}

// References groups the examples of every field extractor
type References struct {
	Timestamps []Example `yaml:"timestamps" json:"timestamps"`
	Levels     []Example `yaml:"levels" json:"levels"`
	Sources    []Example `yaml:"sources" json:"sources"`
}

type problemFile struct {
	Problems []ProblemPattern `yaml:"problems"`
}

// LoadDefaultProblems loads the embedded problem patterns
func LoadDefaultProblems() ([]ProblemPattern, error) {
	return parseProblems(defaultProblemsYAML)
}

// LoadProblemsFromFile loads problem patterns from a YAML file.
// Both a top-level "problems" list and a bare list are accepted.
func LoadProblemsFromFile(filename string) ([]ProblemPattern, error) {
	data, err := readReferenceFile(filename)
	if err != nil {
		return nil, err
	}
	return parseProblems(data)
}

// LoadProblems returns the patterns at path, or the embedded set when path is empty
func LoadProblems(path string) ([]ProblemPattern, error) {
	if strings.TrimSpace(path) == "" {
		return LoadDefaultProblems()
	}
	return LoadProblemsFromFile(path)
}

func parseProblems(data []byte) ([]ProblemPattern, error) {
	var file problemFile
	if err := yaml.Unmarshal(data, &file); err == nil && len(file.Problems) > 0 {
		return file.Problems, validateProblems(file.Problems)
	}

	var problems []ProblemPattern
	if err := yaml.Unmarshal(data, &problems); err != nil {
		return nil, fmt.Errorf("failed to parse problem patterns: %w", err)
	}
	return problems, validateProblems(problems)
}

func validateProblems(problems []ProblemPattern) error {
	if len(problems) == 0 {
		return fmt.Errorf("no problem patterns defined")
	}
	for i, p := range problems {
		if p.Title == "" || p.Category == "" {
			return fmt.Errorf("problem pattern %d: title and category are required", i)
		}
	}
	return nil
}

// LoadDefaultReferences loads the embedded extractor examples
func LoadDefaultReferences() (*References, error) {
	var refs References
	if err := yaml.Unmarshal(defaultReferencesYAML, &refs); err != nil {
		return nil, fmt.Errorf("failed to parse embedded references: %w", err)
	}
	return &refs, nil
}

// LoadReferences returns the examples at path, or the embedded set when path is empty
func LoadReferences(path string) (*References, error) {
	if strings.TrimSpace(path) == "" {
		return LoadDefaultReferences()
	}
	data, err := readReferenceFile(path)
	if err != nil {
		return nil, err
	}
	var refs References
	if err := yaml.Unmarshal(data, &refs); err != nil {
		return nil, fmt.Errorf("failed to parse references: %w", err)
	}
	return &refs, nil
}

func readReferenceFile(filename string) ([]byte, error) {
	if err := validateReferenceFilePath(filename); err != nil {
		return nil, fmt.Errorf("invalid file path: %w", err)
	}

	// #nosec G304 - path is validated above
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

// validateReferenceFilePath validates that a reference data file path is safe to read
func validateReferenceFilePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("empty file path")
	}

	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path traversal not allowed")
	}

	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("reference files must have .yaml or .yml extension")
	}

	return nil
}
