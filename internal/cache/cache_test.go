package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/yildizm/logsift/internal/common"
	"github.com/yildizm/logsift/internal/metrics"
)

func newTestGateway(t *testing.T, db int) (*miniredis.Miniredis, Gateway, *metrics.Registry) {
	t.Helper()
	mr := miniredis.RunT(t)
	reg := metrics.New()
	g := New(context.Background(), Options{Addr: mr.Addr(), DB: db}, nil, reg)
	if !g.Connected() {
		t.Fatalf("expected a connected gateway")
	}
	t.Cleanup(func() { _ = g.Close() })
	return mr, g, reg
}

func TestKey(t *testing.T) {
	// sha256("hello") = 2cf24dba5fb0a30e...
	if got := Key(PrefixParse, "hello"); got != "log_parse:2cf24dba5fb0a30e" {
		t.Errorf("Key = %q", got)
	}
	if Key(PrefixHint, "a") == Key(PrefixHint, "b") {
		t.Error("different content must produce different keys")
	}
}

func TestMissThenSetThenHit(t *testing.T) {
	ctx := context.Background()
	_, g, reg := newTestGateway(t, 0)
	content := "2023-10-09 14:32:40 ERROR app Division failed"

	if _, ok := g.Get(ctx, content, PrefixParse); ok {
		t.Fatal("expected a miss on an empty cache")
	}

	g.Set(ctx, content, []byte(`[{"level":"ERROR"}]`), PrefixParse, time.Hour)

	got, ok := g.Get(ctx, content, PrefixParse)
	if !ok || string(got) != `[{"level":"ERROR"}]` {
		t.Errorf("second Get = %q, %v", got, ok)
	}

	if v := testutil.ToFloat64(reg.CacheRequests.WithLabelValues(PrefixParse, "hit")); v != 1 {
		t.Errorf("hits = %v, want 1", v)
	}
	if v := testutil.ToFloat64(reg.CacheRequests.WithLabelValues(PrefixParse, "miss")); v != 1 {
		t.Errorf("misses = %v, want 1", v)
	}
}

func TestSetAppliesTTL(t *testing.T) {
	ctx := context.Background()
	mr, g, _ := newTestGateway(t, 1)

	g.Set(ctx, "content", []byte("x"), PrefixHint, 7200*time.Second)
	if ttl := mr.DB(1).TTL(Key(PrefixHint, "content")); ttl != 7200*time.Second {
		t.Errorf("ttl = %v, want 2h", ttl)
	}

	mr.FastForward(7201 * time.Second)
	if _, ok := g.Get(ctx, "content", PrefixHint); ok {
		t.Error("entry should expire after its ttl")
	}
}

func TestClearOnlyMatchingKeys(t *testing.T) {
	ctx := context.Background()
	_, g, _ := newTestGateway(t, 0)

	g.Set(ctx, "a", []byte("1"), PrefixParse, time.Hour)
	g.Set(ctx, "b", []byte("2"), PrefixParse, time.Hour)
	g.Set(ctx, "c", []byte("3"), PrefixHint, time.Hour)

	deleted, err := g.Clear(ctx, "")
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted %d keys, want 2", deleted)
	}
	if _, ok := g.Get(ctx, "c", PrefixHint); !ok {
		t.Error("hint entry should survive clearing parse results")
	}

	if deleted, _ := g.Clear(ctx, "nothing:*"); deleted != 0 {
		t.Errorf("clearing an unmatched pattern deleted %d keys", deleted)
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	_, g, _ := newTestGateway(t, 1)

	g.Set(ctx, "one", []byte("1"), PrefixHint, time.Hour)
	g.Set(ctx, "two", []byte("2"), PrefixHint, time.Hour)
	g.Set(ctx, "batch", []byte("[]"), PrefixHintBatch, time.Hour)

	stats := g.Stats(ctx)
	if stats.Status != StatusConnected || stats.DB != 1 {
		t.Errorf("unexpected status: %+v", stats)
	}
	if stats.Keys != 3 || stats.HintKeys != 2 || stats.BatchKeys != 1 {
		t.Errorf("unexpected key counts: %+v", stats)
	}
}

func TestUnreachableRedisDisablesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	g := New(context.Background(), Options{Addr: addr, DialTimeout: 200 * time.Millisecond}, nil, nil)
	if g.Connected() {
		t.Fatal("gateway should be disconnected")
	}
	if _, ok := g.(NoopGateway); !ok {
		t.Fatalf("expected NoopGateway, got %T", g)
	}

	ctx := context.Background()
	g.Set(ctx, "x", []byte("1"), PrefixParse, time.Hour)
	if _, ok := g.Get(ctx, "x", PrefixParse); ok {
		t.Error("noop gateway should always miss")
	}
	if s := g.Stats(ctx); s.Status != StatusDisconnected {
		t.Errorf("status = %q", s.Status)
	}
	if n, err := g.Clear(ctx, ""); n != 0 || err != nil {
		t.Errorf("Clear = %d, %v", n, err)
	}
}

func TestBatchContentTruncates(t *testing.T) {
	records := []common.Record{
		{Level: common.LevelError, Source: "db", Message: strings.Repeat("m", 150), Problem: strings.Repeat("p", 80)},
		{Level: common.LevelInfo, Source: "app", Message: "ok", Problem: "none"},
	}
	got := BatchContent(records)
	want := "ERROR:db:" + strings.Repeat("m", 100) + ":" + strings.Repeat("p", 50) + "|INFO:app:ok:none"
	if got != want {
		t.Errorf("BatchContent = %q", got)
	}

	if RecordContent(records[1]) != "INFO:app:ok:none" {
		t.Errorf("RecordContent = %q", RecordContent(records[1]))
	}
}

func TestHitRate(t *testing.T) {
	tests := []struct {
		hits, misses int64
		want         float64
	}{
		{0, 0, 0},
		{1, 2, 33.33},
		{3, 1, 75},
	}
	for _, tt := range tests {
		if got := hitRate(tt.hits, tt.misses); got != tt.want {
			t.Errorf("hitRate(%d, %d) = %v, want %v", tt.hits, tt.misses, got, tt.want)
		}
	}
}

func TestParseInfo(t *testing.T) {
	fields := parseInfo("# Memory\r\nused_memory_human:1.02M\r\n\r\n# Stats\r\nkeyspace_hits:7\r\n")
	if fields["used_memory_human"] != "1.02M" || fields["keyspace_hits"] != "7" {
		t.Errorf("parseInfo = %v", fields)
	}
}
