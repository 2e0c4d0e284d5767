package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fsnotify/fsnotify"

	"github.com/yildizm/logsift/internal/common"
	"github.com/yildizm/logsift/internal/config"
	"github.com/yildizm/logsift/internal/formatter"
	"github.com/yildizm/logsift/internal/pipeline"
	"github.com/yildizm/logsift/internal/recommend"
)

const offlineConfig = `cache:
  enabled: false
ai:
  enabled: false
output:
  color_mode: never
`

const warningLine = "2025-07-22T08:17:05Z WARNING payment_ddd Latence eee détectée\n"

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// execute runs the root command offline and returns its stdout
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cfgPath := writeFile(t, t.TempDir(), "config.yaml", offlineConfig)

	cmd := NewRootCommand("1.2.3", "abc123", "2025-07-22")
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "", "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out, "logsift 1.2.3 (abc123) built on 2025-07-22") {
		t.Errorf("unexpected version output: %q", out)
	}
}

func TestParseCommandJSON(t *testing.T) {
	logPath := writeFile(t, t.TempDir(), "app.log", warningLine)

	out, err := execute(t, "", "-o", "json", "parse", logPath)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	var records []common.Record
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("output is not a JSON record list: %v\n%s", err, out)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Level != common.LevelWarning {
		t.Errorf("level = %v, want WARNING", records[0].Level)
	}
	if records[0].Timestamp != "2025-07-22T08:17:05" {
		t.Errorf("timestamp = %q", records[0].Timestamp)
	}
}

func TestParseCommandReadsStdin(t *testing.T) {
	out, err := execute(t, warningLine+warningLine, "-o", "json", "parse")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	var records []common.Record
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("expected 2 records, got %d", len(records))
	}
}

func TestParseCommandWritesOutputFile(t *testing.T) {
	dir := t.TempDir()
	logPath := writeFile(t, dir, "app.log", warningLine)
	reportPath := filepath.Join(dir, "report.md")

	out, err := execute(t, "", "-o", "markdown", "parse", "--output-file", reportPath, logPath)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if out != "" {
		t.Errorf("expected nothing on stdout, got %q", out)
	}

	data, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	if !strings.Contains(string(data), "# Log Parse Report") {
		t.Errorf("unexpected report content:\n%s", data)
	}
}

func TestParseCommandMissingFile(t *testing.T) {
	_, err := execute(t, "", "parse", filepath.Join(t.TempDir(), "missing.log"))
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
	if ExitCode(err) != 1 {
		t.Errorf("exit code = %d, want 1", ExitCode(err))
	}
}

func TestParseCommandUnknownFormat(t *testing.T) {
	logPath := writeFile(t, t.TempDir(), "app.log", warningLine)
	if _, err := execute(t, "", "-o", "yaml", "parse", logPath); err == nil {
		t.Error("expected an error for an unknown output format")
	}
}

func TestRecommendCommandWithRecords(t *testing.T) {
	input := `{"timestamp":"2025-07-22T08:17:05","level":"ERROR","source":"db","message":"connection refused","problem":"Connection error"}`

	out, err := execute(t, input, "-o", "json", "recommend", "--records")
	if err != nil {
		t.Fatalf("recommend failed: %v", err)
	}

	var results []formatter.RecommendationOutput
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Record.Source != "db" {
		t.Errorf("record source = %q", results[0].Record.Source)
	}
	if results[0].Recommendation.Content == "" || results[0].Recommendation.GeneratedBy != recommend.ServiceName {
		t.Errorf("unexpected recommendation: %+v", results[0].Recommendation)
	}
}

func TestRecommendCommandParsesRawLogs(t *testing.T) {
	logPath := writeFile(t, t.TempDir(), "app.log", warningLine)

	out, err := execute(t, "", "-o", "csv", "recommend", logPath)
	if err != nil {
		t.Fatalf("recommend failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header and one row, got %d lines:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "Timestamp,Level,Source,Message,Relevance") {
		t.Errorf("unexpected header %q", lines[0])
	}
}

func TestRecommendCommandRejectsInvalidJSON(t *testing.T) {
	_, err := execute(t, "not json", "recommend", "--records")
	if err == nil {
		t.Fatal("expected an error for invalid JSON")
	}
	if ExitCode(err) != 2 {
		t.Errorf("exit code = %d, want 2", ExitCode(err))
	}
}

func TestProblemsCommands(t *testing.T) {
	out, err := execute(t, "", "-o", "json", "problems", "list")
	if err != nil {
		t.Fatalf("problems list failed: %v", err)
	}
	var categories []string
	if err := json.Unmarshal([]byte(out), &categories); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if len(categories) == 0 {
		t.Error("expected at least one category")
	}

	out, err = execute(t, "", "problems", "stats")
	if err != nil {
		t.Fatalf("problems stats failed: %v", err)
	}
	if !strings.Contains(out, "Total problems:") {
		t.Errorf("unexpected stats output: %q", out)
	}
}

func TestProblemsValidate(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.yaml", `problems:
  - title: Disk full
    category: storage
    patterns: ["no space left on device"]
`)
	bad := writeFile(t, dir, "bad.yaml", `problems:
  - patterns: ["missing title"]
`)

	out, err := execute(t, "", "problems", "validate", good)
	if err != nil {
		t.Fatalf("validate failed on a good file: %v", err)
	}
	if !strings.Contains(out, "1 patterns") {
		t.Errorf("unexpected output: %q", out)
	}

	_, err = execute(t, "", "problems", "validate", good, bad)
	if err == nil {
		t.Fatal("expected validation to fail")
	}
	if !common.IsInputError(err) {
		t.Errorf("expected an input error, got %v", err)
	}
}

func TestQueryUnknownCollection(t *testing.T) {
	_, err := execute(t, "", "query", "nope", "some text")
	if !common.IsInputError(err) {
		t.Errorf("expected an input error, got %v", err)
	}
}

func TestCacheStatsWithoutRedis(t *testing.T) {
	out, err := execute(t, "", "cache", "stats")
	if err != nil {
		t.Fatalf("cache stats failed: %v", err)
	}
	if !strings.Contains(out, "disconnected") {
		t.Errorf("expected disconnected status, got %q", out)
	}
}

func TestHealthCommandReportsDegraded(t *testing.T) {
	out, err := execute(t, "", "-o", "json", "health")
	if err != nil {
		t.Fatalf("health failed: %v", err)
	}
	var h pipeline.Health
	if err := json.Unmarshal([]byte(out), &h); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if h.Status != "degraded" || h.LLM.Status != "disabled" {
		t.Errorf("unexpected health: %+v", h)
	}
	if h.Collections["problems"] == 0 {
		t.Errorf("expected problem documents, got %v", h.Collections)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "logsift.yaml")

	out, err := execute(t, "", "config", "init", "--path", path)
	if err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	if !strings.Contains(out, path) {
		t.Errorf("unexpected output: %q", out)
	}

	if _, err := execute(t, "", "config", "init", "--path", path); err == nil {
		t.Error("expected init to refuse overwriting an existing file")
	}

	cmd := NewRootCommand("dev", "none", "unknown")
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"--config", path, "config", "validate"})
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("generated config does not validate: %v\n%s", err, buf.String())
	}
	if !strings.Contains(buf.String(), "Configuration is valid") {
		t.Errorf("unexpected output: %q", buf.String())
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"input", common.NewInputError("bad", nil), 2},
		{"wrapped input", fmt.Errorf("app.log: %w", common.NewInputError("bad", nil)), 2},
		{"other", errors.New("boom"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestValidateFilePath(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "app.log", "")

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"regular file", file, false},
		{"empty", "  ", true},
		{"traversal", "../../etc/passwd", true},
		{"directory", dir, true},
		{"missing", filepath.Join(dir, "missing.log"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateFilePath(tt.path)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateFilePath(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

func newTail(t *testing.T, path string, out *bytes.Buffer, tweaks ...func(*config.Config)) *tail {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Cache.Enabled = false
	cfg.AI.Enabled = false
	for _, tweak := range tweaks {
		tweak(cfg)
	}

	svc, err := pipeline.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("pipeline.New failed: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })

	file, err := openWatchFile(path)
	if err != nil {
		t.Fatalf("openWatchFile failed: %v", err)
	}
	t.Cleanup(func() { cleanupFile(file) })

	return &tail{
		svc:      svc,
		file:     file,
		name:     filepath.Base(path),
		minLevel: common.LevelWarning,
		out:      out,
	}
}

func appendLines(t *testing.T, path, text string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(text); err != nil {
		t.Fatalf("failed to append: %v", err)
	}
}

func TestTailPrintsOnlyNewEntriesAtLevel(t *testing.T) {
	path := writeFile(t, t.TempDir(), "app.log", "2025-07-22T08:00:00Z ERROR old entry\n")
	var out bytes.Buffer
	w := newTail(t, path, &out)

	appendLines(t, path, "2025-07-22T08:17:04Z INFO api request served\n"+warningLine)
	if err := w.handleWatchEvent(context.Background(), fsnotify.Event{Name: path, Op: fsnotify.Write}); err != nil {
		t.Fatalf("handleWatchEvent failed: %v", err)
	}

	got := out.String()
	if strings.Contains(got, "old entry") {
		t.Error("entries present before the watch started must not be printed")
	}
	if strings.Contains(got, "request served") {
		t.Error("INFO entries are below the minimum level")
	}
	if !strings.Contains(got, "WARNING") || !strings.Contains(got, "problem:") {
		t.Errorf("expected the warning record, got %q", got)
	}
}

func TestTailRereadsTruncatedFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "app.log", strings.Repeat("2025-07-22T08:00:00Z INFO filler line\n", 20))
	var out bytes.Buffer
	w := newTail(t, path, &out)

	if err := os.WriteFile(path, []byte(warningLine), 0o600); err != nil {
		t.Fatalf("failed to truncate: %v", err)
	}
	if err := w.handleWatchEvent(context.Background(), fsnotify.Event{Name: path, Op: fsnotify.Write}); err != nil {
		t.Fatalf("handleWatchEvent failed: %v", err)
	}
	if !strings.Contains(out.String(), "WARNING") {
		t.Errorf("expected the entry written after truncation, got %q", out.String())
	}
}

func TestTailIgnoresNonWriteEvents(t *testing.T) {
	path := writeFile(t, t.TempDir(), "app.log", "")
	var out bytes.Buffer
	w := newTail(t, path, &out)

	appendLines(t, path, warningLine)
	if err := w.handleWatchEvent(context.Background(), fsnotify.Event{Name: path, Op: fsnotify.Chmod}); err != nil {
		t.Fatalf("handleWatchEvent failed: %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("expected no output for a chmod event, got %q", out.String())
	}
}

func TestTailRejectsLinesOverLimit(t *testing.T) {
	path := writeFile(t, t.TempDir(), "app.log", "")
	var out bytes.Buffer
	w := newTail(t, path, &out, func(cfg *config.Config) { cfg.Pipeline.MaxLineLength = 32 })

	appendLines(t, path, warningLine)
	if err := w.handleWatchEvent(context.Background(), fsnotify.Event{Name: path, Op: fsnotify.Write}); err == nil {
		t.Error("expected an error for a line longer than max_line_length")
	}
	if out.Len() != 0 {
		t.Errorf("expected no output, got %q", out.String())
	}
}
