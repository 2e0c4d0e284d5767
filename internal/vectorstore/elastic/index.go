// Package elastic implements vectorstore.Index on Elasticsearch dense_vector
// fields with approximate kNN search.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"

	"github.com/yildizm/logsift/internal/common"
	"github.com/yildizm/logsift/internal/logger"
	"github.com/yildizm/logsift/internal/vectorstore"
)

// Options configures the Elasticsearch index
type Options struct {
	Addresses   []string
	IndexPrefix string
	Timeout     time.Duration

	// ConnectTimeout bounds the retried connection check in New
	ConnectTimeout time.Duration
}

// Index stores each collection in its own Elasticsearch index
type Index struct {
	client  *elasticsearch.Client
	prefix  string
	timeout time.Duration
	log     *logger.Logger

	mu      sync.Mutex
	created map[string]bool
}

type source struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Vector   []float32         `json:"vector,omitempty"`
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string  `json:"_id"`
			Score  float64 `json:"_score"`
			Source source  `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// New connects to Elasticsearch, retrying the connection check with
// exponential backoff until ConnectTimeout elapses.
func New(ctx context.Context, opts Options, log *logger.Logger) (*Index, error) {
	if len(opts.Addresses) == 0 {
		return nil, fmt.Errorf("elasticsearch addresses are not configured")
	}
	if opts.IndexPrefix == "" {
		opts.IndexPrefix = "logsift"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 30 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}

	transport := &http.Transport{
		MaxIdleConnsPerHost:   10,
		ResponseHeaderTimeout: opts.Timeout,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
	}
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: opts.Addresses,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	ping := func() error {
		res, err := client.Info(client.Info.WithContext(ctx))
		if err != nil {
			log.Warn("elasticsearch ping failed: %v", err)
			return err
		}
		defer func() { _ = res.Body.Close() }()
		if res.IsError() {
			return fmt.Errorf("elasticsearch info returned %s", res.Status())
		}
		return nil
	}

	connectBackoff := backoff.NewExponentialBackOff()
	connectBackoff.InitialInterval = 500 * time.Millisecond
	connectBackoff.MaxInterval = 5 * time.Second
	connectBackoff.MaxElapsedTime = opts.ConnectTimeout

	if err := backoff.Retry(ping, backoff.WithContext(connectBackoff, ctx)); err != nil {
		return nil, common.Unavailable("elasticsearch", err)
	}
	log.Info("connected to elasticsearch at %s", strings.Join(opts.Addresses, ","))

	return &Index{
		client:  client,
		prefix:  opts.IndexPrefix,
		timeout: opts.Timeout,
		log:     log,
		created: make(map[string]bool),
	}, nil
}

func (ix *Index) indexName(collection string) string {
	return fmt.Sprintf("%s-%s", ix.prefix, strings.ReplaceAll(collection, "_", "-"))
}

// ensureIndex creates the collection index with a cosine dense_vector mapping
func (ix *Index) ensureIndex(ctx context.Context, collection string, dims int) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.created[collection] {
		return nil
	}
	name := ix.indexName(collection)

	res, err := ix.client.Indices.Exists([]string{name}, ix.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return err
	}
	_ = res.Body.Close()
	if res.StatusCode == http.StatusOK {
		ix.created[collection] = true
		return nil
	}

	mapping := map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"text":     map[string]interface{}{"type": "text"},
				"metadata": map[string]interface{}{"type": "object", "enabled": false},
				"vector": map[string]interface{}{
					"type":       "dense_vector",
					"dims":       dims,
					"index":      true,
					"similarity": "cosine",
				},
			},
		},
	}
	body, err := json.Marshal(mapping)
	if err != nil {
		return err
	}

	res, err = ix.client.Indices.Create(name,
		ix.client.Indices.Create.WithBody(bytes.NewReader(body)),
		ix.client.Indices.Create.WithContext(ctx))
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return fmt.Errorf("failed to create index %s: %s", name, res.String())
	}

	ix.created[collection] = true
	return nil
}

// Upsert bulk-indexes docs under their IDs and refreshes the index
func (ix *Index) Upsert(ctx context.Context, collection string, docs []vectorstore.Document, vectors [][]float32) error {
	if len(docs) != len(vectors) {
		return fmt.Errorf("got %d documents but %d vectors", len(docs), len(vectors))
	}
	if len(docs) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, ix.timeout)
	defer cancel()

	if err := ix.ensureIndex(ctx, collection, len(vectors[0])); err != nil {
		return err
	}
	name := ix.indexName(collection)

	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Client:     ix.client,
		Index:      name,
		NumWorkers: 1,
		OnError: func(_ context.Context, err error) {
			ix.log.Error("bulk indexer error: %v", err)
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create bulk indexer: %w", err)
	}

	for i, doc := range docs {
		data, err := json.Marshal(source{Text: doc.Text, Metadata: doc.Metadata, Vector: vectors[i]})
		if err != nil {
			return fmt.Errorf("failed to marshal document %s: %w", doc.ID, err)
		}
		err = bi.Add(ctx, esutil.BulkIndexerItem{
			Action:     "index",
			DocumentID: doc.ID,
			Body:       bytes.NewReader(data),
			OnFailure: func(_ context.Context, item esutil.BulkIndexerItem, resp esutil.BulkIndexerResponseItem, err error) {
				if err != nil {
					ix.log.Error("failed to index %s: %v", item.DocumentID, err)
					return
				}
				ix.log.Error("failed to index %s: %s", item.DocumentID, resp.Error.Reason)
			},
		})
		if err != nil {
			return fmt.Errorf("failed to queue document %s: %w", doc.ID, err)
		}
	}

	if err := bi.Close(ctx); err != nil {
		return fmt.Errorf("bulk indexing failed: %w", err)
	}
	if stats := bi.Stats(); stats.NumFailed > 0 {
		return fmt.Errorf("%d of %d documents failed to index", stats.NumFailed, stats.NumAdded)
	}

	res, err := ix.client.Indices.Refresh(
		ix.client.Indices.Refresh.WithIndex(name),
		ix.client.Indices.Refresh.WithContext(ctx))
	if err != nil {
		return err
	}
	_ = res.Body.Close()
	return nil
}

// Query runs a kNN search. The cosine score (1+cos)/2 is converted back
// to cosine distance. A zero query vector cannot be scored by
// Elasticsearch, so it returns the first k documents at distance 1.
func (ix *Index) Query(ctx context.Context, collection string, vector []float32, k int) ([]vectorstore.Match, error) {
	if k <= 0 {
		return []vectorstore.Match{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, ix.timeout)
	defer cancel()

	var request map[string]interface{}
	zero := vectorstore.Magnitude(vector) == 0
	if zero {
		request = map[string]interface{}{
			"size":  k,
			"query": map[string]interface{}{"match_all": map[string]interface{}{}},
			"sort":  []string{"_doc"},
		}
	} else {
		candidates := k * 10
		if candidates < 100 {
			candidates = 100
		}
		request = map[string]interface{}{
			"size": k,
			"knn": map[string]interface{}{
				"field":          "vector",
				"query_vector":   vector,
				"k":              k,
				"num_candidates": candidates,
			},
			"_source": []string{"text", "metadata"},
		}
	}

	hits, err := ix.search(ctx, collection, request)
	if err != nil {
		return nil, err
	}

	matches := make([]vectorstore.Match, 0, len(hits.Hits.Hits))
	for _, hit := range hits.Hits.Hits {
		distance := 1.0
		if !zero {
			distance = 2 - 2*hit.Score
		}
		matches = append(matches, vectorstore.Match{
			ID:       hit.ID,
			Document: hit.Source.Text,
			Metadata: hit.Source.Metadata,
			Distance: distance,
		})
	}
	return matches, nil
}

// Count returns the number of documents in collection; a missing index counts as empty
func (ix *Index) Count(ctx context.Context, collection string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, ix.timeout)
	defer cancel()

	res, err := ix.client.Count(
		ix.client.Count.WithIndex(ix.indexName(collection)),
		ix.client.Count.WithContext(ctx))
	if err != nil {
		return 0, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode == http.StatusNotFound {
		return 0, nil
	}
	if res.IsError() {
		return 0, fmt.Errorf("count failed: %s", res.String())
	}

	var body struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("failed to decode count response: %w", err)
	}
	return body.Count, nil
}

// Peek returns up to n documents in index order
func (ix *Index) Peek(ctx context.Context, collection string, n int) ([]vectorstore.Document, error) {
	if n <= 0 {
		return []vectorstore.Document{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, ix.timeout)
	defer cancel()

	hits, err := ix.search(ctx, collection, map[string]interface{}{
		"size":    n,
		"query":   map[string]interface{}{"match_all": map[string]interface{}{}},
		"sort":    []string{"_doc"},
		"_source": []string{"text", "metadata"},
	})
	if err != nil {
		return nil, err
	}

	docs := make([]vectorstore.Document, 0, len(hits.Hits.Hits))
	for _, hit := range hits.Hits.Hits {
		docs = append(docs, vectorstore.Document{ID: hit.ID, Text: hit.Source.Text, Metadata: hit.Source.Metadata})
	}
	return docs, nil
}

// Close is a no-op; the HTTP transport has no resources to release
func (ix *Index) Close() error {
	return nil
}

func (ix *Index) search(ctx context.Context, collection string, request map[string]interface{}) (*searchResponse, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}

	res, err := ix.client.Search(
		ix.client.Search.WithContext(ctx),
		ix.client.Search.WithIndex(ix.indexName(collection)),
		ix.client.Search.WithBody(bytes.NewReader(body)))
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode == http.StatusNotFound {
		return &searchResponse{}, nil
	}
	if res.IsError() {
		raw, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("search failed: %s: %s", res.Status(), raw)
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	return &parsed, nil
}
