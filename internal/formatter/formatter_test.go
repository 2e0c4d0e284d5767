package formatter

import (
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/yildizm/logsift/internal/common"
)

func sampleRecords() []common.Record {
	return []common.Record{
		{Timestamp: "2024-01-01T10:00:02", Level: common.LevelError, Source: "db", Message: "connection refused", Problem: "Connection Refused: Target actively refused"},
		{Timestamp: "2024-01-01T10:00:00", Level: common.LevelInfo, Source: "api", Message: "started", Problem: "No Specific Issue: Normal operation or informational entry"},
		{Timestamp: "2024-01-01T10:00:05", Level: common.LevelError, Source: "db", Message: "line one\nline | two", Problem: "Connection Refused: Target actively refused"},
		{Timestamp: "2024-01-01T10:00:03", Level: common.LevelWarning, Source: "cache", Message: "slow", Problem: "Performance Warning: Slow response time detected"},
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleRecords())

	if s.Total != 4 || s.Errors() != 2 || s.Warnings() != 1 || s.Sources != 3 {
		t.Errorf("unexpected summary: %+v", s)
	}
	if s.Earliest != "2024-01-01T10:00:00" || s.Latest != "2024-01-01T10:00:05" {
		t.Errorf("time range = %s .. %s", s.Earliest, s.Latest)
	}
	if len(s.Problems) != 3 || s.Problems[0].Title != "Connection Refused" || s.Problems[0].Count != 2 {
		t.Errorf("problems = %+v", s.Problems)
	}
}

func TestProblemTitle(t *testing.T) {
	tests := []struct {
		problem  string
		expected string
	}{
		{"Disk Full: Volume is full", "Disk Full"},
		{"Parsing error: boom", "Parsing error"},
		{"no separator", "no separator"},
		{"", "None"},
	}
	for _, tt := range tests {
		if got := problemTitle(tt.problem); got != tt.expected {
			t.Errorf("problemTitle(%q) = %q, want %q", tt.problem, got, tt.expected)
		}
	}
}

func TestWriteTopProblems_MaxFive(t *testing.T) {
	formatter := &terminalFormatter{}

	problems := []ProblemCount{
		{"problem1", 10}, {"problem2", 9}, {"problem3", 8}, {"problem4", 7},
		{"problem5", 6}, {"problem6", 5}, {"problem7", 4},
	}

	var b strings.Builder
	formatter.writeTopProblems(&b, problems)
	output := b.String()

	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) != 6 {
		t.Errorf("expected header and 5 problems, got %d lines:\n%s", len(lines), output)
	}
	if strings.Contains(output, "problem6") || strings.Contains(output, "problem7") {
		t.Error("should not include problems beyond the top five")
	}
	if !strings.HasPrefix(lines[len(lines)-1], "└─") {
		t.Errorf("last item should close the tree: %q", lines[len(lines)-1])
	}
}

func TestTerminalFormat(t *testing.T) {
	out, err := NewTerminal(false).Format(sampleRecords())
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	text := string(out)

	for _, want := range []string{"Log Parse Summary", "Statistics", "Top Problems", "Connection Refused (2)", "ERROR db: connection refused"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "\x1b[") {
		t.Error("colorless output should not contain escape codes")
	}
}

func TestTerminalFormatEmpty(t *testing.T) {
	out, err := NewTerminal(false).Format(nil)
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	if !strings.Contains(string(out), "No log entries found.") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestJSONFormatIsPlainArray(t *testing.T) {
	out, err := NewJSON().Format(nil)
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	if strings.TrimSpace(string(out)) != "[]" {
		t.Errorf("empty output = %s, want []", out)
	}

	out, err = NewJSON().Format(sampleRecords()[:1])
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	var raw []map[string]string
	if err := json.Unmarshal(out, &raw); err != nil {
		t.Fatalf("output is not a JSON array: %v", err)
	}
	if raw[0]["level"] != "ERROR" || raw[0]["source"] != "db" {
		t.Errorf("unexpected record: %v", raw[0])
	}
}

func TestCSVFormat(t *testing.T) {
	out, err := NewCSV().Format(sampleRecords())
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}

	rows, err := csv.NewReader(strings.NewReader(string(out))).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	if len(rows) != 5 {
		t.Fatalf("expected header plus 4 rows, got %d", len(rows))
	}
	if strings.Join(rows[0], ",") != "Timestamp,Level,Source,Message,Problem" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[3][3] != "line one line | two" {
		t.Errorf("multi-line message = %q", rows[3][3])
	}
}

func TestMarkdownFormat(t *testing.T) {
	f := &markdownFormatter{now: func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }}
	out, err := f.Format(sampleRecords())
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	text := string(out)

	for _, want := range []string{"# Log Parse Report", "Generated: 2025-01-02 03:04:05", "| Total Records | 4 |", "| Errors | 2 (50.0%) |", `line one line \| two`} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
}

func TestFormatRecommendations(t *testing.T) {
	records := sampleRecords()[:2]
	recs := []common.Recommendation{
		{Content: "Restart the database", RelevanceScore: 0.8, GeneratedBy: "LogHintService"},
	}

	for _, name := range []string{"terminal", "json", "csv", "markdown"} {
		t.Run(name, func(t *testing.T) {
			f, err := New(name, false)
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			out, err := f.FormatRecommendations(records, recs)
			if err != nil {
				t.Fatalf("FormatRecommendations failed: %v", err)
			}
			if !strings.Contains(string(out), "Restart the database") {
				t.Errorf("output missing recommendation:\n%s", out)
			}
		})
	}
}

func TestNewUnknownFormat(t *testing.T) {
	if _, err := New("yaml", false); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestFormatNumber(t *testing.T) {
	tests := map[int]string{7: "7", 999: "999", 1000: "1,000", 1234567: "1,234,567"}
	for n, want := range tests {
		if got := formatNumber(n); got != want {
			t.Errorf("formatNumber(%d) = %q, want %q", n, got, want)
		}
	}
}
