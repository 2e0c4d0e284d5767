package parser

import (
	"regexp"
	"strings"
)

// timestampIndicators mark a line that opens a new entry
var timestampIndicators = compileAll(
	`\d{4}-\d{2}-\d{2}[ T]\d{2}:\d{2}:\d{2}Z?`,     // ISO with space or T, optional Z
	`[A-Za-z]{3}\s+\d{1,2}\s+\d{2}:\d{2}:\d{2}`,    // syslog
	`\[\d{4}-\d{2}-\d{2}[T\s]\d{2}:\d{2}:\d{2}`,    // bracketed ISO
	`\d{2}/[A-Za-z]{3}/\d{4}:\d{2}:\d{2}:\d{2}`,    // nginx
	`\d{10}`,                                       // unix epoch
	`^\d{2}:\d{2}:\d{2}`,                           // bare time
)

// continuationIndicators mark a line that belongs to the previous entry.
// They are evaluated against the line with its leading indentation intact.
var continuationIndicators = compileAll(
	`^Traceback \(most recent call last\):`,
	`^\s+File ".*", line \d+`,
	`^\s+.*Error:`,
	`^\s+at `,
	`^\s+\.\.\.`,
	`^\s{4,}`,
	`^Caused by:`,
	`^Exception in thread`,
	`^\s*\^`,
)

func compileAll(patterns ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		compiled[i] = regexp.MustCompile(p)
	}
	return compiled
}

func matchesAny(patterns []*regexp.Regexp, line string) bool {
	for _, re := range patterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// HasTimestamp reports whether line carries a recognisable timestamp
func HasTimestamp(line string) bool {
	return matchesAny(timestampIndicators, line)
}

// IsContinuation reports whether line continues the previous entry
func IsContinuation(line string) bool {
	return matchesAny(continuationIndicators, line)
}

// SplitLines splits text on \n, \r\n and \r
func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Split(text, "\n")
}

// Group partitions lines into logical entries. Blank lines and lines
// starting with '#' are dropped; stored lines are trimmed.
//
// The timestamp check runs before the continuation check: a timestamped
// line that is not a continuation always opens a new group.
func Group(lines []string) []LogGroup {
	var groups []LogGroup
	var current []string

	flush := func() {
		if len(current) > 0 {
			groups = append(groups, LogGroup{Lines: current})
			current = nil
		}
	}

	for _, raw := range lines {
		indented := strings.TrimRight(raw, " \t\r\n")
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		hasTimestamp := HasTimestamp(line)
		isContinuation := IsContinuation(indented)

		switch {
		case hasTimestamp && !isContinuation:
			flush()
			current = []string{line}
		case isContinuation || (len(current) > 0 && !hasTimestamp):
			// an orphaned continuation line opens its own group
			current = append(current, line)
		default:
			flush()
			current = []string{line}
		}
	}
	flush()

	return groups
}

// Flatten returns the lines of groups in order
func Flatten(groups []LogGroup) []string {
	var lines []string
	for _, g := range groups {
		lines = append(lines, g.Lines...)
	}
	return lines
}
