package formatter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/yildizm/go-termfmt"

	"github.com/yildizm/logsift/internal/common"
)

// Summary aggregates a set of records
type Summary struct {
	Total    int                  `json:"total"`
	ByLevel  map[common.Level]int `json:"by_level"`
	Sources  int                  `json:"sources"`
	Problems []ProblemCount       `json:"problems"`
	Earliest string               `json:"earliest,omitempty"`
	Latest   string               `json:"latest,omitempty"`
}

// ProblemCount is how often a problem title occurred
type ProblemCount struct {
	Title string `json:"title"`
	Count int    `json:"count"`
}

// Summarize counts records per level, source and problem title. Problems
// are sorted by count, most frequent first.
func Summarize(records []common.Record) Summary {
	s := Summary{Total: len(records), ByLevel: make(map[common.Level]int)}
	sources := make(map[string]bool)
	problems := make(map[string]int)

	for _, r := range records {
		s.ByLevel[r.Level]++
		sources[r.Source] = true
		problems[problemTitle(r.Problem)]++

		// normalized timestamps sort lexically
		if r.Timestamp != "" && (s.Earliest == "" || r.Timestamp < s.Earliest) {
			s.Earliest = r.Timestamp
		}
		if r.Timestamp > s.Latest {
			s.Latest = r.Timestamp
		}
	}
	s.Sources = len(sources)

	for title, count := range problems {
		s.Problems = append(s.Problems, ProblemCount{Title: title, Count: count})
	}
	sort.Slice(s.Problems, func(i, j int) bool {
		if s.Problems[i].Count != s.Problems[j].Count {
			return s.Problems[i].Count > s.Problems[j].Count
		}
		return s.Problems[i].Title < s.Problems[j].Title
	})
	return s
}

// Errors counts ERROR and worse
func (s Summary) Errors() int {
	return s.ByLevel[common.LevelError] + s.ByLevel[common.LevelFatal] + s.ByLevel[common.LevelCritical]
}

// Warnings counts WARNING records
func (s Summary) Warnings() int {
	return s.ByLevel[common.LevelWarning]
}

func (s Summary) rate(n int) float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(n) / float64(s.Total) * 100
}

// problemTitle is the label before the first ": "
func problemTitle(problem string) string {
	if i := strings.Index(problem, ": "); i > 0 {
		return problem[:i]
	}
	if problem == "" {
		return "None"
	}
	return problem
}

// formatNumber formats numbers with commas for readability
func formatNumber(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	return addCommas(fmt.Sprintf("%d", n))
}

// addCommas adds commas to number strings
func addCommas(s string) string {
	if len(s) <= 3 {
		return s
	}
	return addCommas(s[:len(s)-3]) + "," + s[len(s)-3:]
}

// getLevelEmoji returns emoji for levels using go-termfmt
func getLevelEmoji(level common.Level, opts *termfmt.TerminalOptions) string {
	switch level {
	case common.LevelFatal, common.LevelCritical, common.LevelError:
		return termfmt.GetEmoji("error", opts)
	case common.LevelWarning:
		return termfmt.GetEmoji("warning", opts)
	case common.LevelInfo:
		return termfmt.GetEmoji("info", opts)
	default:
		return termfmt.GetEmoji("insight", opts)
	}
}

// createConfidenceBar creates ASCII confidence bar using go-termfmt
func createConfidenceBar(confidence float64) string {
	return termfmt.CreateConfidenceBar(confidence, termfmt.DefaultOptions())
}

// singleLine flattens newlines and truncates to max runes
func singleLine(s string, max int) string {
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	if max > 3 {
		runes := []rune(s)
		if len(runes) > max {
			s = string(runes[:max-3]) + "..."
		}
	}
	return s
}

// recommendationAt returns recs[i] or a zero value when recs is short
func recommendationAt(recs []common.Recommendation, i int) common.Recommendation {
	if i < len(recs) {
		return recs[i]
	}
	return common.Recommendation{}
}
