package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/yildizm/go-logparser"

	"github.com/yildizm/logsift/internal/common"
)

// detectionSampleSize is the number of non-blank lines inspected by DetectFormat
const detectionSampleSize = 10

var logfmtPair = regexp.MustCompile(`(?:^|\s)([A-Za-z_][A-Za-z0-9_.-]*)=("[^"]*"|\S*)`)

// sourceFields are structured keys that name the emitting component
var sourceFields = []string{"source", "service", "logger", "component", "app"}

// DetectFormat inspects the first lines of text and reports its layout.
// Each format scores one point per matching line; ties go to json, then logfmt.
func DetectFormat(lines []string) Format {
	scores := map[Format]int{}
	sampled := 0

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		sampled++
		if looksLikeJSON(line) {
			scores[FormatJSON]++
		} else if looksLikeLogfmt(line) {
			scores[FormatLogfmt]++
		}
		if sampled >= detectionSampleSize {
			break
		}
	}

	if sampled == 0 {
		return FormatText
	}

	// structured formats must cover the majority of the sample
	for _, format := range []Format{FormatJSON, FormatLogfmt} {
		if scores[format]*2 > sampled {
			return format
		}
	}
	return FormatText
}

func looksLikeJSON(line string) bool {
	return strings.HasPrefix(line, "{") && strings.HasSuffix(line, "}")
}

func looksLikeLogfmt(line string) bool {
	pairs := logfmtPair.FindAllStringSubmatch(line, -1)
	if len(pairs) < 2 {
		return false
	}
	for _, pair := range pairs {
		switch strings.ToLower(pair[1]) {
		case "level", "lvl", "msg", "message", "time", "ts":
			return true
		}
	}
	return false
}

// ParseStructured converts JSON or logfmt lines into one group per entry.
// Each entry is rendered as a synthetic text line so the regular field
// extractors see the timestamp, level and source in their usual places.
func ParseStructured(lines []string, format Format) ([]LogGroup, error) {
	var p logparser.Parser
	switch format {
	case FormatJSON:
		p = logparser.NewWithFormat(logparser.FormatJSON)
	case FormatLogfmt:
		p = logparser.NewWithFormat(logparser.FormatLogfmt)
	default:
		return nil, fmt.Errorf("unsupported structured format: %s", format)
	}

	var kept []string
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if format == FormatJSON && strings.HasPrefix(line, "{") && !strings.HasSuffix(line, "}") {
			return nil, common.NewInputError("Invalid JSON format", fmt.Errorf("truncated object: %.40q", line))
		}
		kept = append(kept, line)
	}
	if len(kept) == 0 {
		return nil, nil
	}

	entries, err := p.ParseString(strings.Join(kept, "\n"))
	if err != nil {
		if format == FormatJSON {
			return nil, common.NewInputError("Invalid JSON format", err)
		}
		return nil, fmt.Errorf("failed to parse %s: %w", format, err)
	}

	groups := make([]LogGroup, 0, len(entries))
	for i := range entries {
		if line := syntheticLine(&entries[i]); line != "" {
			groups = append(groups, LogGroup{Lines: []string{line}})
		}
	}
	return groups, nil
}

// syntheticLine renders "<timestamp> <LEVEL> <source> <message>" omitting absent parts
func syntheticLine(entry *logparser.LogEntry) string {
	var parts []string

	if !entry.Timestamp.IsZero() {
		parts = append(parts, entry.Timestamp.Format("2006-01-02T15:04:05"))
	}
	if level, ok := common.ParseLevel(entry.Level); ok && level != common.LevelUnknown {
		parts = append(parts, level.String())
	}
	if source := structuredSource(entry); source != "" {
		parts = append(parts, source)
	}
	if msg := strings.TrimSpace(entry.Message); msg != "" {
		parts = append(parts, msg)
	}

	return strings.Join(parts, " ")
}

func structuredSource(entry *logparser.LogEntry) string {
	for _, key := range sourceFields {
		value, ok := entry.Fields[key]
		if !ok {
			continue
		}
		if s := strings.TrimSpace(fmt.Sprint(value)); s != "" && !strings.ContainsAny(s, " \t") {
			return s
		}
	}
	return ""
}
