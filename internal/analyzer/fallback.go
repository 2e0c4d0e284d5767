package analyzer

import (
	"fmt"
	"strings"

	"github.com/yildizm/logsift/internal/common"
)

type fallbackRule struct {
	keywords []string
	// all lists terms that must additionally be present
	all   []string
	label string
}

var errorFallbacks = []fallbackRule{
	{keywords: []string{"connection", "connexion"}, label: "Connection Error: Network connectivity issue detected"},
	{keywords: []string{"not found", "missing"}, all: []string{"file"}, label: "File Not Found: Required file or resource missing"},
	{keywords: []string{"memory", "mémoire"}, label: "Memory Error: Memory-related issue detected"},
	{keywords: []string{"timeout", "délai"}, label: "Timeout Error: Operation timeout detected"},
	{keywords: []string{"division"}, all: []string{"zero"}, label: "Division by Zero Error: Mathematical error in calculation"},
}

var warningFallbacks = []fallbackRule{
	{keywords: []string{"latence", "latency"}, label: "Performance Warning: High latency detected"},
}

func (r fallbackRule) matches(lower string) bool {
	for _, term := range r.all {
		if !strings.Contains(lower, term) {
			return false
		}
	}
	for _, kw := range r.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func firstMatch(rules []fallbackRule, lower, otherwise string) string {
	for _, r := range rules {
		if r.matches(lower) {
			return r.label
		}
	}
	return otherwise
}

// FallbackProblem labels a record from its level and a few keywords when
// classification is not confident enough
func FallbackProblem(text string, level common.Level) string {
	lower := strings.ToLower(text)
	switch level {
	case common.LevelError:
		return firstMatch(errorFallbacks, lower, "General Error: Error condition detected")
	case common.LevelWarning:
		return firstMatch(warningFallbacks, lower, "Warning: Warning condition detected")
	case common.LevelFatal, common.LevelCritical:
		return "Critical Issue: Fatal error requiring immediate attention"
	default:
		return "No Specific Issue: Normal operation or informational entry"
	}
}

// Describe returns the problem label for a record: "title: description"
// when the classification is above FallbackBoundary, otherwise the level
// based fallback
func (c *Classifier) Describe(class common.Classification, text string, level common.Level) string {
	if class.Confidence > FallbackBoundary {
		return fmt.Sprintf("%s: %s", class.Title, class.Description)
	}
	return FallbackProblem(text, level)
}
