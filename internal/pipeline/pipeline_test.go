package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/yildizm/logsift/internal/cache"
	"github.com/yildizm/logsift/internal/common"
	"github.com/yildizm/logsift/internal/config"
	"github.com/yildizm/logsift/internal/metrics"
	"github.com/yildizm/logsift/internal/recommend"
	"github.com/yildizm/logsift/internal/vectorstore"
)

var fixedNow = time.Date(2025, 7, 22, 9, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Cache.Enabled = false
	cfg.AI.Enabled = false
	cfg.Pipeline.Workers = 4
	return cfg
}

func newTestService(t *testing.T, cfg *config.Config, opts ...Option) *Service {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	s, err := New(context.Background(), cfg, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestParseSingleLine(t *testing.T) {
	s := newTestService(t, testConfig())

	records, err := s.Parse(context.Background(), []byte("2025-07-22T08:17:05Z WARNING payment_ddd Latence eee détectée\n"), "app.log")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	r := records[0]
	if r.Timestamp != "2025-07-22T08:17:05" {
		t.Errorf("timestamp = %q", r.Timestamp)
	}
	if r.Level != common.LevelWarning {
		t.Errorf("level = %v", r.Level)
	}
	if r.Source != "payment_ddd" {
		t.Errorf("source = %q", r.Source)
	}
	if r.Problem == "" {
		t.Error("problem should never be empty")
	}
}

func TestParseTracebackIsOneRecord(t *testing.T) {
	s := newTestService(t, testConfig())

	input := strings.Join([]string{
		"2023-10-09 14:32:40 ERROR app Division failed",
		"Traceback (most recent call last):",
		`  File "app.py", line 10`,
		"ZeroDivisionError: division by zero",
	}, "\n")

	records, err := s.Parse(context.Background(), []byte(input), "")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d: %+v", len(records), records)
	}
	if records[0].Level != common.LevelError {
		t.Errorf("level = %v", records[0].Level)
	}
	if !strings.Contains(records[0].Message, "→ ZeroDivisionError: division by zero (at app.py:10)") {
		t.Errorf("message = %q", records[0].Message)
	}
}

func TestParsePreservesOrder(t *testing.T) {
	cfg := testConfig()
	cfg.Pipeline.Workers = 3
	s := newTestService(t, cfg)

	var lines []string
	for i := 0; i < 40; i++ {
		lines = append(lines, fmt.Sprintf("2024-01-01 10:00:%02d INFO worker job %d finished", i, i))
	}

	records, err := s.Parse(context.Background(), []byte(strings.Join(lines, "\n")), "")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(records) != len(lines) {
		t.Fatalf("expected %d records, got %d", len(lines), len(records))
	}
	for i, r := range records {
		want := fmt.Sprintf("2024-01-01T10:00:%02d", i)
		if r.Timestamp != want {
			t.Errorf("record %d timestamp = %q, want %q", i, r.Timestamp, want)
		}
	}
}

func TestParseEmptyInput(t *testing.T) {
	s := newTestService(t, testConfig())

	records, err := s.Parse(context.Background(), []byte("\n\n# comment only\n"), "")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records, got %+v", records)
	}
}

func TestParseRejectsOverlongLines(t *testing.T) {
	cfg := testConfig()
	cfg.Pipeline.MaxLineLength = 16
	s := newTestService(t, cfg)

	_, err := s.Parse(context.Background(), []byte("2024-01-01 10:00:00 ERROR this line is too long"), "")
	if !common.IsInputError(err) {
		t.Fatalf("expected input error, got %v", err)
	}
}

// panicEncoder blows up on any text mentioning "boom"
type panicEncoder struct {
	*vectorstore.TFIDFEncoder
}

func (e panicEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	if strings.Contains(text, "boom") {
		panic("encoder exploded")
	}
	return e.TFIDFEncoder.Encode(ctx, text)
}

func TestParseIsolatesGroupFailures(t *testing.T) {
	idx, err := vectorstore.NewMemoryIndex()
	if err != nil {
		t.Fatalf("NewMemoryIndex failed: %v", err)
	}
	enc := panicEncoder{vectorstore.NewTFIDFEncoder(512)}
	s := newTestService(t, testConfig(), WithIndex(enc, idx))

	input := strings.Join([]string{
		"2024-01-01 10:00:00 INFO api request served",
		"2024-01-01 10:00:01 ERROR api boom happened",
		"2024-01-01 10:00:02 INFO api request served again",
	}, "\n")

	records, err := s.Parse(context.Background(), []byte(input), "api.log")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}

	failed := records[1]
	if failed.Level != common.LevelUnknown {
		t.Errorf("failed level = %v, want UNKNOWN", failed.Level)
	}
	if failed.Source != "api.log" {
		t.Errorf("failed source = %q, want filename", failed.Source)
	}
	if failed.Timestamp != "2025-07-22T09:00:00" {
		t.Errorf("failed timestamp = %q, want processing time", failed.Timestamp)
	}
	if !strings.HasPrefix(failed.Problem, "Parsing error: ") || !strings.Contains(failed.Problem, "encoder exploded") {
		t.Errorf("failed problem = %q", failed.Problem)
	}
	if failed.Message != "2024-01-01 10:00:01 ERROR api boom happened" {
		t.Errorf("failed message = %q", failed.Message)
	}

	for _, i := range []int{0, 2} {
		if records[i].Level != common.LevelInfo {
			t.Errorf("record %d level = %v, siblings must not be affected", i, records[i].Level)
		}
	}
}

func TestFailedGroupWithoutFilenameUsesDefaultSource(t *testing.T) {
	idx, err := vectorstore.NewMemoryIndex()
	if err != nil {
		t.Fatalf("NewMemoryIndex failed: %v", err)
	}
	s := newTestService(t, testConfig(), WithIndex(panicEncoder{vectorstore.NewTFIDFEncoder(512)}, idx))

	records, err := s.Parse(context.Background(), []byte("2024-01-01 10:00:01 ERROR api boom happened"), "")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(records) != 1 || records[0].Level != common.LevelUnknown {
		t.Fatalf("expected one failed record, got %+v", records)
	}
	if records[0].Source != common.DefaultSource {
		t.Errorf("failed source = %q, want %q", records[0].Source, common.DefaultSource)
	}
}

func newRedisGateway(t *testing.T) (*miniredis.Miniredis, cache.Gateway) {
	t.Helper()
	mr := miniredis.RunT(t)
	gw := cache.New(context.Background(), cache.Options{Addr: mr.Addr()}, nil, nil)
	if !gw.Connected() {
		t.Fatal("expected a connected gateway")
	}
	return mr, gw
}

func TestParseUsesCache(t *testing.T) {
	_, gw := newRedisGateway(t)
	s := newTestService(t, testConfig(), WithCaches(gw, cache.NoopGateway{}))
	ctx := context.Background()

	input := "2024-01-01 10:00:00 ERROR db connection refused"
	seeded := []common.Record{{Timestamp: "2000-01-01T00:00:00", Level: common.LevelDebug, Source: "seeded", Message: "from cache", Problem: "none"}}
	payload, _ := json.Marshal(seeded)
	gw.Set(ctx, input, payload, cache.PrefixParse, time.Hour)

	records, err := s.Parse(ctx, []byte(input), "")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(records) != 1 || records[0].Source != "seeded" {
		t.Errorf("expected cached records, got %+v", records)
	}
}

func TestParseTreatsEmptyCachedListAsMiss(t *testing.T) {
	_, gw := newRedisGateway(t)
	s := newTestService(t, testConfig(), WithCaches(gw, cache.NoopGateway{}))
	ctx := context.Background()

	input := "2024-01-01 10:00:00 ERROR db connection refused"
	gw.Set(ctx, input, []byte("[]"), cache.PrefixParse, time.Hour)

	records, err := s.Parse(ctx, []byte(input), "")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(records) != 1 || records[0].Level != common.LevelError {
		t.Fatalf("expected a fresh parse, got %+v", records)
	}

	payload, ok := gw.Get(ctx, input, cache.PrefixParse)
	if !ok {
		t.Fatal("expected the fresh result to be cached")
	}
	var cached []common.Record
	if err := json.Unmarshal(payload, &cached); err != nil || len(cached) != 1 {
		t.Errorf("cached payload = %s (%v)", payload, err)
	}
}

func TestParseRecordsMetrics(t *testing.T) {
	reg := metrics.New()
	s := newTestService(t, testConfig(), WithMetrics(reg))

	input := "2024-01-01 10:00:00 INFO a started\n2024-01-01 10:00:01 ERROR b connection refused"
	if _, err := s.Parse(context.Background(), []byte(input), ""); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if got := testutil.ToFloat64(reg.RecordsParsed); got != 2 {
		t.Errorf("records_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(reg.GroupsFailed); got != 0 {
		t.Errorf("groups_failed_total = %v, want 0", got)
	}
}

func TestCacheOperationsWithoutRedis(t *testing.T) {
	s := newTestService(t, testConfig())
	ctx := context.Background()

	if got := s.Stats(ctx).Status; got != cache.StatusDisconnected {
		t.Errorf("status = %q, want disconnected", got)
	}
	n, err := s.Clear(ctx, "")
	if err != nil || n != 0 {
		t.Errorf("Clear = %d, %v", n, err)
	}
}

func TestClearDefaultsToParseResults(t *testing.T) {
	mr, gw := newRedisGateway(t)
	s := newTestService(t, testConfig(), WithCaches(gw, cache.NoopGateway{}))
	ctx := context.Background()

	if _, err := s.Parse(ctx, []byte("2024-01-01 10:00:00 ERROR db connection refused"), ""); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	_ = mr.Set("unrelated", "keep")

	n, err := s.Clear(ctx, "")
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if n != 1 {
		t.Errorf("cleared %d keys, want 1", n)
	}
	if !mr.Exists("unrelated") {
		t.Error("Clear removed a key outside the parse prefix")
	}
}

func TestProblemQueries(t *testing.T) {
	s := newTestService(t, testConfig())

	stats := s.ProblemStats()
	if stats.TotalProblems != 37 {
		t.Errorf("total problems = %d, want 37", stats.TotalProblems)
	}
	if got := len(s.ProblemsByCategory("connectivity & networking")); got != 4 {
		t.Errorf("networking problems = %d, want 4", got)
	}
	if got := len(s.Categories()); got != 11 {
		t.Errorf("categories = %d, want 11", got)
	}
}

func TestClassifyText(t *testing.T) {
	s := newTestService(t, testConfig())

	class, problem := s.ClassifyText(context.Background(), "connection refused by peer", common.LevelError)
	if class.Category != "Connectivity & Networking" {
		t.Errorf("category = %q", class.Category)
	}
	if class.Confidence <= 0.3 {
		t.Errorf("confidence = %v, want > 0.3", class.Confidence)
	}
	if !strings.HasPrefix(problem, class.Title+": ") {
		t.Errorf("problem = %q, want title prefix %q", problem, class.Title)
	}
}

func TestInspectLine(t *testing.T) {
	s := newTestService(t, testConfig())

	in, err := s.InspectLine(context.Background(), "2025-07-22T08:17:05Z WARNING payment_ddd Latence eee détectée", "")
	if err != nil {
		t.Fatalf("InspectLine failed: %v", err)
	}
	if in.Timestamp != "2025-07-22T08:17:05" || in.Level != common.LevelWarning || in.Source != "payment_ddd" {
		t.Errorf("unexpected inspection: %+v", in)
	}
	if in.TimestampFrom == "" || in.LevelFrom == "" || in.SourceFrom == "" {
		t.Errorf("strategies should be reported: %+v", in)
	}

	if _, err := s.InspectLine(context.Background(), "   \n", ""); !common.IsInputError(err) {
		t.Errorf("expected input error for blank text, got %v", err)
	}
}

func TestKnowledgeAndQueryComponent(t *testing.T) {
	s := newTestService(t, testConfig())
	ctx := context.Background()

	infos, err := s.Knowledge(ctx, 2)
	if err != nil {
		t.Fatalf("Knowledge failed: %v", err)
	}
	if len(infos) != len(vectorstore.Collections) {
		t.Fatalf("expected %d collections, got %d", len(vectorstore.Collections), len(infos))
	}
	for _, info := range infos {
		if info.Count == 0 {
			t.Errorf("collection %s is empty", info.Name)
		}
		if len(info.Samples) > 2 {
			t.Errorf("collection %s returned %d samples", info.Name, len(info.Samples))
		}
	}

	matches, err := s.QueryComponent(ctx, vectorstore.CollectionLevels, "ERROR something failed", 2)
	if err != nil {
		t.Fatalf("QueryComponent failed: %v", err)
	}
	if len(matches) == 0 || len(matches) > 2 {
		t.Errorf("expected 1-2 matches, got %d", len(matches))
	}

	if _, err := s.QueryComponent(ctx, "nope", "x", 1); !common.IsInputError(err) {
		t.Errorf("expected input error for unknown collection, got %v", err)
	}
}

func TestHealthWithEverythingDisabled(t *testing.T) {
	s := newTestService(t, testConfig())

	h := s.Health(context.Background())
	if h.Status != "degraded" {
		t.Errorf("status = %q, want degraded", h.Status)
	}
	if h.LLM.Status != "disabled" {
		t.Errorf("llm status = %q, want disabled", h.LLM.Status)
	}
	if h.Collections[vectorstore.CollectionProblems] != 37 {
		t.Errorf("problems collection = %d, want 37", h.Collections[vectorstore.CollectionProblems])
	}
}

func TestRecommendWithoutLLMUsesFallback(t *testing.T) {
	s := newTestService(t, testConfig())

	rec := s.Recommend(context.Background(), common.Record{
		Level: common.LevelError, Source: "db", Message: "connection refused", Problem: "Connection Error",
	})
	if rec.Content == "" {
		t.Fatal("expected fallback content")
	}
	if rec.RelevanceScore != 0.8 {
		t.Errorf("relevance = %v, want 0.8", rec.RelevanceScore)
	}
	if rec.GeneratedBy != recommend.ServiceName {
		t.Errorf("generated by = %q", rec.GeneratedBy)
	}

	status := s.TestLLM(context.Background())
	if status.Status != "LLM connection failed" {
		t.Errorf("TestLLM status = %q", status.Status)
	}
}

func TestNewFailsOnBadPatternFile(t *testing.T) {
	cfg := testConfig()
	cfg.Patterns.ProblemsFile = "missing-problems.yaml"

	_, err := New(context.Background(), cfg)
	if err == nil {
		t.Fatal("expected error for missing problems file")
	}
	if errors.Is(err, common.ErrCollaboratorUnavailable) {
		t.Error("reference data errors are not collaborator failures")
	}
}

func TestElasticsearchUnavailableFallsBackToMemory(t *testing.T) {
	cfg := testConfig()
	cfg.Vector.Backend = "elasticsearch"
	cfg.Vector.Addresses = []string{"http://127.0.0.1:1"}
	cfg.Vector.Timeout = 200 * time.Millisecond

	s, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() { _ = s.Close() }()

	if _, ok := s.index.(*vectorstore.MemoryIndex); !ok {
		t.Errorf("expected memory index fallback, got %T", s.index)
	}
}

func TestProcessJSONReturnsRecordsAndAdvice(t *testing.T) {
	s := newTestService(t, testConfig())

	records, recs, err := s.ProcessJSON(context.Background(), []byte(`[{"level":"ERROR","source":"db","message":"out of memory","problem":""},{"level":"INFO","source":"api","message":"ok","problem":""}]`))
	if err != nil {
		t.Fatalf("ProcessJSON failed: %v", err)
	}
	if len(records) != 2 || len(recs) != 2 {
		t.Fatalf("got %d records and %d recommendations", len(records), len(recs))
	}
	if recs[0].RelevanceScore != 0.85 {
		t.Errorf("memory advice relevance = %v, want 0.85", recs[0].RelevanceScore)
	}

	if _, _, err := s.ProcessJSON(context.Background(), []byte("not json")); !common.IsInputError(err) {
		t.Errorf("expected input error, got %v", err)
	}
}
