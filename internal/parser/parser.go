// Package parser turns decoded log text into logical entries.
//
// Plain text is grouped with timestamp and continuation heuristics.
// JSON and logfmt input is read with go-logparser, one entry per line.
package parser

import (
	"bufio"
	"fmt"
	"io"
)

// DefaultMaxLineLength bounds a single line read by ReadLines
const DefaultMaxLineLength = 1024 * 1024

// Parse splits text into lines, detects its format and groups it
func Parse(text string) ([]LogGroup, error) {
	return ParseLines(SplitLines(text))
}

// ParseLines groups already split lines
func ParseLines(lines []string) ([]LogGroup, error) {
	format := DetectFormat(lines)
	if format == FormatText {
		return Group(lines), nil
	}
	return ParseStructured(lines, format)
}

// ReadLines reads r line by line, failing on lines longer than maxLineLength
func ReadLines(r io.Reader, maxLineLength int) ([]string, error) {
	if maxLineLength <= 0 {
		maxLineLength = DefaultMaxLineLength
	}

	// the scanner honours the larger of cap(buf) and max, so the
	// initial buffer must not exceed the limit
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, min(64*1024, maxLineLength)), maxLineLength)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading input: %w", err)
	}
	return lines, nil
}
