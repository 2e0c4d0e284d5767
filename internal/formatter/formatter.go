// Package formatter renders parsed records and recommendations for the
// command line.
package formatter

import (
	"fmt"

	"github.com/yildizm/logsift/internal/common"
)

// Formatter defines the interface for output formatting
type Formatter interface {
	Format(records []common.Record) ([]byte, error)

	// FormatRecommendations renders recs, where recs[i] belongs to records[i]
	FormatRecommendations(records []common.Record, recs []common.Recommendation) ([]byte, error)
}

// New returns the formatter registered under name
func New(name string, color bool) (Formatter, error) {
	switch name {
	case "", "terminal":
		return NewTerminal(color), nil
	case "json":
		return NewJSON(), nil
	case "csv":
		return NewCSV(), nil
	case "markdown", "md":
		return NewMarkdown(), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s (must be one of: terminal, json, csv, markdown)", name)
	}
}
