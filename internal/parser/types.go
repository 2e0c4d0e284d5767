package parser

import "strings"

// LogGroup is one logical entry: a first line plus any continuation lines
type LogGroup struct {
	Lines []string
}

// Text joins the group's lines with newlines
func (g LogGroup) Text() string {
	return strings.Join(g.Lines, "\n")
}

// FirstLine returns the line that opened the group
func (g LogGroup) FirstLine() string {
	if len(g.Lines) == 0 {
		return ""
	}
	return g.Lines[0]
}

// Trailing returns the continuation lines after the first one
func (g LogGroup) Trailing() []string {
	if len(g.Lines) < 2 {
		return nil
	}
	return g.Lines[1:]
}

// IsMultiline reports whether the group spans more than one line
func (g LogGroup) IsMultiline() bool {
	return len(g.Lines) > 1
}

// Format identifies the layout of an input file
type Format string

const (
	FormatText   Format = "text"
	FormatJSON   Format = "json"
	FormatLogfmt Format = "logfmt"
)
