package common

import (
	"fmt"
	"strings"
	"time"
)

// Level represents the severity of a structured record
type Level int

const (
	LevelUnknown Level = iota
	LevelTrace
	LevelDebug
	LevelInfo
	LevelWarning
	LevelError
	LevelFatal
	LevelCritical
)

var levelNames = map[Level]string{
	LevelUnknown:  "UNKNOWN",
	LevelTrace:    "TRACE",
	LevelDebug:    "DEBUG",
	LevelInfo:     "INFO",
	LevelWarning:  "WARNING",
	LevelError:    "ERROR",
	LevelFatal:    "FATAL",
	LevelCritical: "CRITICAL",
}

// String methods for Level
func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseLevel parses a level name. WARN is accepted as WARNING.
func ParseLevel(s string) (Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace, true
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarning, true
	case "ERROR":
		return LevelError, true
	case "FATAL":
		return LevelFatal, true
	case "CRITICAL":
		return LevelCritical, true
	case "UNKNOWN":
		return LevelUnknown, true
	default:
		return LevelUnknown, false
	}
}

// MarshalText encodes the level by name
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText decodes a level name
func (l *Level) UnmarshalText(text []byte) error {
	parsed, ok := ParseLevel(string(text))
	if !ok {
		return fmt.Errorf("unknown level: %q", string(text))
	}
	*l = parsed
	return nil
}

// Record is one normalized log entry
type Record struct {
	Timestamp string `json:"timestamp"`
	Level     Level  `json:"level"`
	Source    string `json:"source"`
	Message   string `json:"message"`
	Problem   string `json:"problem"`
}

// DefaultSource is used when no component can be inferred
const DefaultSource = "system"

// ProblemPattern is a reference problem loaded into the similarity index
type ProblemPattern struct {
	Title       string   `yaml:"title" json:"title"`
	Category    string   `yaml:"category" json:"category"`
	Description string   `yaml:"description" json:"description"`
	Severity    string   `yaml:"severity" json:"severity"`
	Patterns    []string `yaml:"patterns" json:"patterns"`
	Keywords    []string `yaml:"keywords" json:"keywords"`
}

// Document returns the searchable text indexed for the pattern
func (p ProblemPattern) Document() string {
	return fmt.Sprintf("%s %s %s", p.Title, strings.Join(p.Patterns, " "), p.Description)
}

// Classification is the outcome of classifying one group of lines
type Classification struct {
	Title       string  `json:"title"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
	Severity    string  `json:"severity"`
	Reasoning   string  `json:"reasoning"`
}

// Recommendation is remediation advice for a single record
type Recommendation struct {
	Content        string    `json:"content"`
	RelevanceScore float64   `json:"relevanceScore"`
	GeneratedBy    string    `json:"generatedBy"`
	CreationDate   time.Time `json:"creationDate"`
}
