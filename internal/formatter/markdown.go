package formatter

import (
	"fmt"
	"strings"
	"time"

	"github.com/yildizm/go-termfmt"

	"github.com/yildizm/logsift/internal/common"
)

// markdownFormatter formats output as Markdown
type markdownFormatter struct {
	now func() time.Time
}

// NewMarkdown creates a new Markdown formatter
func NewMarkdown() Formatter {
	return &markdownFormatter{now: time.Now}
}

func (f *markdownFormatter) Format(records []common.Record) ([]byte, error) {
	var b strings.Builder
	summary := Summarize(records)

	b.WriteString("# Log Parse Report\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", f.now().Format("2006-01-02 15:04:05"))

	b.WriteString("## Table of Contents\n")
	b.WriteString("- [Summary](#summary)\n")
	if len(summary.Problems) > 0 {
		b.WriteString("- [Problems](#problems)\n")
	}
	b.WriteString("- [Records](#records)\n\n")

	f.writeSummaryTable(&b, summary)
	if len(summary.Problems) > 0 {
		f.writeProblems(&b, summary.Problems)
	}
	f.writeRecords(&b, records)

	b.WriteString("---\n")
	b.WriteString("*Report generated by logsift*\n")
	return []byte(b.String()), nil
}

func (f *markdownFormatter) writeSummaryTable(b *strings.Builder, s Summary) {
	b.WriteString("## Summary\n\n")

	timeRange := "N/A"
	if s.Earliest != "" {
		timeRange = s.Earliest + " → " + s.Latest
	}

	b.WriteString("| Metric | Value |\n")
	b.WriteString("|--------|-------|\n")
	fmt.Fprintf(b, "| Total Records | %s |\n", formatNumber(s.Total))
	fmt.Fprintf(b, "| Errors | %d (%.1f%%) |\n", s.Errors(), s.rate(s.Errors()))
	fmt.Fprintf(b, "| Warnings | %d (%.1f%%) |\n", s.Warnings(), s.rate(s.Warnings()))
	fmt.Fprintf(b, "| Sources | %d |\n", s.Sources)
	fmt.Fprintf(b, "| Time Range | %s |\n\n", timeRange)
}

func (f *markdownFormatter) writeProblems(b *strings.Builder, problems []ProblemCount) {
	b.WriteString("## Problems\n\n")
	b.WriteString("| Problem | Occurrences |\n")
	b.WriteString("|---------|-------------|\n")
	for _, p := range problems {
		fmt.Fprintf(b, "| %s | %d |\n", escapeMarkdownCell(p.Title), p.Count)
	}
	b.WriteString("\n")
}

func (f *markdownFormatter) writeRecords(b *strings.Builder, records []common.Record) {
	b.WriteString("## Records\n\n")
	if len(records) == 0 {
		b.WriteString("No log entries found.\n\n")
		return
	}

	b.WriteString("| Timestamp | Level | Source | Message | Problem |\n")
	b.WriteString("|-----------|-------|--------|---------|---------|\n")
	for _, r := range records {
		fmt.Fprintf(b, "| %s | %s | %s | %s | %s |\n",
			r.Timestamp, r.Level, escapeMarkdownCell(r.Source),
			escapeMarkdownCell(r.Message), escapeMarkdownCell(r.Problem))
	}
	b.WriteString("\n")
}

func (f *markdownFormatter) FormatRecommendations(records []common.Record, recs []common.Recommendation) ([]byte, error) {
	var b strings.Builder
	opts := termfmt.DefaultOptions()

	b.WriteString("# Recommendations\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", f.now().Format("2006-01-02 15:04:05"))

	for i, r := range records {
		rec := recommendationAt(recs, i)
		fmt.Fprintf(&b, "## %d. %s %s in %s\n\n", i+1, getLevelEmoji(r.Level, opts), r.Level, r.Source)
		fmt.Fprintf(&b, "**Message**: %s\n\n", singleLine(r.Message, 0))
		if r.Problem != "" {
			fmt.Fprintf(&b, "**Problem**: %s\n\n", r.Problem)
		}
		fmt.Fprintf(&b, "**Relevance**: %s %.0f%%\n\n", createConfidenceBar(rec.RelevanceScore), rec.RelevanceScore*100)
		b.WriteString(rec.Content + "\n\n")
		if rec.GeneratedBy != "" {
			fmt.Fprintf(&b, "*Generated by %s*\n\n", rec.GeneratedBy)
		}
	}
	return []byte(b.String()), nil
}

// escapeMarkdownCell keeps table cells on one line and escapes pipes
func escapeMarkdownCell(s string) string {
	return strings.ReplaceAll(singleLine(s, 0), "|", `\|`)
}
