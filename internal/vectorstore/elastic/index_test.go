package elastic

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yildizm/logsift/internal/vectorstore"
)

// fakeCluster answers the handful of endpoints the index uses
type fakeCluster struct {
	mu       sync.Mutex
	searches []map[string]interface{}
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.URL.Path == "/":
		_, _ = io.WriteString(w, `{"version":{"number":"8.18.0","build_flavor":"default"},"tagline":"You Know, for Search"}`)
	case strings.HasSuffix(r.URL.Path, "/_count"):
		if strings.Contains(r.URL.Path, "missing") {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":{"type":"index_not_found_exception"},"status":404}`)
			return
		}
		_, _ = io.WriteString(w, `{"count":2}`)
	case strings.HasSuffix(r.URL.Path, "/_search"):
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.searches = append(f.searches, body)
		f.mu.Unlock()
		_, _ = io.WriteString(w, `{"hits":{"hits":[
			{"_id":"problem_3","_score":0.75,"_source":{"text":"Connection Refused","metadata":{"title":"Connection Refused"}}},
			{"_id":"problem_1","_score":0.5,"_source":{"text":"Disk Full","metadata":{"title":"Disk Full"}}}
		]}}`)
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{}`)
	}
}

func newTestIndex(t *testing.T) (*Index, *fakeCluster) {
	t.Helper()
	cluster := &fakeCluster{}
	server := httptest.NewServer(cluster)
	t.Cleanup(server.Close)

	ix, err := New(context.Background(), Options{
		Addresses:      []string{server.URL},
		IndexPrefix:    "test",
		Timeout:        2 * time.Second,
		ConnectTimeout: 2 * time.Second,
	}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return ix, cluster
}

func TestQueryConvertsScoreToDistance(t *testing.T) {
	ix, cluster := newTestIndex(t)

	matches, err := ix.Query(context.Background(), vectorstore.CollectionProblems, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if math.Abs(matches[0].Distance-0.5) > 1e-9 {
		t.Errorf("score 0.75 should map to distance 0.5, got %v", matches[0].Distance)
	}
	if math.Abs(matches[1].Distance-1.0) > 1e-9 {
		t.Errorf("score 0.5 should map to distance 1.0, got %v", matches[1].Distance)
	}
	if matches[0].Metadata["title"] != "Connection Refused" {
		t.Errorf("metadata not decoded: %+v", matches[0].Metadata)
	}

	if _, ok := cluster.searches[0]["knn"]; !ok {
		t.Errorf("expected knn query, got %v", cluster.searches[0])
	}
}

func TestQueryZeroVectorFallsBackToMatchAll(t *testing.T) {
	ix, cluster := newTestIndex(t)

	matches, err := ix.Query(context.Background(), vectorstore.CollectionLevels, []float32{0, 0}, 2)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	for _, m := range matches {
		if m.Distance != 1 {
			t.Errorf("zero vector should give distance 1, got %v", m.Distance)
		}
	}
	if _, ok := cluster.searches[0]["query"]; !ok {
		t.Errorf("expected match_all query, got %v", cluster.searches[0])
	}
}

func TestCount(t *testing.T) {
	ix, _ := newTestIndex(t)

	n, err := ix.Count(context.Background(), vectorstore.CollectionSources)
	if err != nil || n != 2 {
		t.Errorf("Count = %d, %v; want 2", n, err)
	}

	n, err = ix.Count(context.Background(), "missing")
	if err != nil || n != 0 {
		t.Errorf("Count on missing index = %d, %v; want 0", n, err)
	}
}

func TestIndexName(t *testing.T) {
	ix := &Index{prefix: "logsift"}
	if got := ix.indexName(vectorstore.CollectionTimestamps); got != "logsift-timestamp-patterns" {
		t.Errorf("indexName = %q", got)
	}
}

func TestNewRequiresAddresses(t *testing.T) {
	if _, err := New(context.Background(), Options{}, nil); err == nil {
		t.Error("expected error without addresses")
	}
}
