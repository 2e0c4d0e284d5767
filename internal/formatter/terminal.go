package formatter

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/yildizm/go-termfmt"

	"github.com/yildizm/logsift/internal/common"
)

const maxTopProblems = 5

// terminalFormatter formats output as plain text for terminal display using go-termfmt
type terminalFormatter struct {
	opts   *termfmt.TerminalOptions
	color  bool
	styles levelStyles
}

type levelStyles struct {
	errorStyle   lipgloss.Style
	warningStyle lipgloss.Style
	infoStyle    lipgloss.Style
	mutedStyle   lipgloss.Style
}

func newLevelStyles() levelStyles {
	return levelStyles{
		errorStyle:   lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#EF4444", Dark: "#F87171"}).Bold(true),
		warningStyle: lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#F59E0B", Dark: "#FBBF24"}).Bold(true),
		infoStyle:    lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#3B82F6", Dark: "#60A5FA"}),
		mutedStyle:   lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}),
	}
}

// NewTerminal creates a new terminal formatter with optional color support
func NewTerminal(color bool) Formatter {
	opts := termfmt.DefaultOptions()
	opts.Color = color
	opts.Emoji = true
	return &terminalFormatter{opts: opts, color: color, styles: newLevelStyles()}
}

func (f *terminalFormatter) Format(records []common.Record) ([]byte, error) {
	var b strings.Builder
	summary := Summarize(records)

	f.writeHeader(&b, "Log Parse Summary")
	f.writeStatistics(&b, summary)
	if len(summary.Problems) > 0 {
		f.writeTopProblems(&b, summary.Problems)
	}
	f.writeRecords(&b, records)

	return []byte(b.String()), nil
}

// writeStatistics writes statistics with tree-style formatting using go-termfmt
func (f *terminalFormatter) writeStatistics(b *strings.Builder, s Summary) {
	symbol := termfmt.GetEmoji("statistics", f.opts)
	b.WriteString(symbol + " Statistics\n")

	items := []termfmt.TreeItem{
		{Label: "Total Records", Value: formatNumber(s.Total)},
		{Label: "Errors", Value: fmt.Sprintf("%d (%.1f%%)", s.Errors(), s.rate(s.Errors()))},
		{Label: "Warnings", Value: fmt.Sprintf("%d (%.1f%%)", s.Warnings(), s.rate(s.Warnings()))},
		{Label: "Sources", Value: formatNumber(s.Sources)},
	}
	if s.Earliest != "" {
		items = append(items, termfmt.TreeItem{Label: "Time Range", Value: s.Earliest + " → " + s.Latest, Last: true})
	} else {
		items = append(items, termfmt.TreeItem{Label: "Time Range", Value: "N/A", Last: true})
	}

	tree := termfmt.TreeViewWithOptions(items, f.opts)
	b.WriteString(tree + "\n\n")
}

// writeTopProblems lists the most frequent problems; problems arrive sorted
func (f *terminalFormatter) writeTopProblems(b *strings.Builder, problems []ProblemCount) {
	opts := termfmt.DefaultOptions()
	opts.Emoji = false
	symbol := termfmt.GetEmoji("help", opts)
	b.WriteString(symbol + " Top Problems\n")

	n := len(problems)
	if n > maxTopProblems {
		n = maxTopProblems
	}
	for i := 0; i < n; i++ {
		branch := "├─"
		if i == n-1 {
			branch = "└─"
		}
		fmt.Fprintf(b, "%s %s (%d)\n", branch, problems[i].Title, problems[i].Count)
	}
	b.WriteString("\n")
}

func (f *terminalFormatter) writeRecords(b *strings.Builder, records []common.Record) {
	symbol := termfmt.GetEmoji("summary", f.opts)
	b.WriteString(symbol + " Records\n")
	if len(records) == 0 {
		b.WriteString("No log entries found.\n")
		return
	}

	for _, r := range records {
		fmt.Fprintf(b, "%s %s %s %s: %s\n",
			getLevelEmoji(r.Level, f.opts), f.muted(r.Timestamp), f.level(r.Level), r.Source, singleLine(r.Message, 160))
		if r.Problem != "" {
			fmt.Fprintf(b, "   └─ %s\n", f.muted(r.Problem))
		}
	}
}

func (f *terminalFormatter) FormatRecommendations(records []common.Record, recs []common.Recommendation) ([]byte, error) {
	var b strings.Builder
	f.writeHeader(&b, "Recommendations")

	items := make([]termfmt.TreeItem, 0, len(records))
	for i, r := range records {
		rec := recommendationAt(recs, i)
		bar := termfmt.CreateConfidenceBar(rec.RelevanceScore, f.opts)
		items = append(items, termfmt.TreeItem{
			Label: fmt.Sprintf("%s %s %s", getLevelEmoji(r.Level, f.opts), f.level(r.Level), r.Source),
			Value: singleLine(r.Message, 80),
			Children: []termfmt.TreeItem{
				{Label: "Relevance", Value: fmt.Sprintf("%s %.0f%%", bar, rec.RelevanceScore*100)},
				{Label: "Advice", Value: rec.Content},
				{Label: "By", Value: rec.GeneratedBy, Last: true},
			},
			Last: i == len(records)-1,
		})
	}

	symbol := termfmt.GetEmoji("recommendations", f.opts)
	b.WriteString(symbol + " Advice\n")
	b.WriteString(termfmt.TreeViewWithOptions(items, f.opts) + "\n")
	return []byte(b.String()), nil
}

// writeHeader writes a header with box drawing
func (f *terminalFormatter) writeHeader(b *strings.Builder, header string) {
	width := len([]rune(header))
	b.WriteString("╔" + strings.Repeat("═", width+2) + "╗\n")
	b.WriteString("║ " + header + " ║\n")
	b.WriteString("╚" + strings.Repeat("═", width+2) + "╝\n\n")
}

func (f *terminalFormatter) level(level common.Level) string {
	name := level.String()
	if !f.color {
		return name
	}
	switch level {
	case common.LevelError, common.LevelFatal, common.LevelCritical:
		return f.styles.errorStyle.Render(name)
	case common.LevelWarning:
		return f.styles.warningStyle.Render(name)
	case common.LevelInfo:
		return f.styles.infoStyle.Render(name)
	default:
		return f.styles.mutedStyle.Render(name)
	}
}

func (f *terminalFormatter) muted(s string) string {
	if !f.color {
		return s
	}
	return f.styles.mutedStyle.Render(s)
}
