package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
)

// NewMemoryIndex creates an in-memory index. With persistence enabled an
// existing snapshot is loaded immediately.
func NewMemoryIndex(options ...MemoryIndexOption) (*MemoryIndex, error) {
	opts := MemoryIndexOptions{
		MaxDocuments: 10000,
	}
	for _, option := range options {
		option(&opts)
	}

	idx := &MemoryIndex{
		collections: make(map[string][]entry),
		options:     opts,
	}

	if opts.PersistenceFile != "" {
		if err := idx.LoadFromFile(opts.PersistenceFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return idx, nil
}

// Upsert adds or replaces documents by ID
func (mi *MemoryIndex) Upsert(ctx context.Context, collection string, docs []Document, vectors [][]float32) error {
	if len(docs) != len(vectors) {
		return fmt.Errorf("got %d documents but %d vectors", len(docs), len(vectors))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	mi.mu.Lock()
	defer mi.mu.Unlock()

	entries := mi.collections[collection]
	positions := make(map[string]int, len(entries))
	for i, e := range entries {
		positions[e.ID] = i
	}

	for i, doc := range docs {
		e := entry{Document: doc, Vector: vectors[i]}
		if pos, exists := positions[doc.ID]; exists {
			entries[pos] = e
			continue
		}
		if mi.options.MaxDocuments > 0 && len(entries) >= mi.options.MaxDocuments {
			return fmt.Errorf("collection %s is full (max %d documents)", collection, mi.options.MaxDocuments)
		}
		positions[doc.ID] = len(entries)
		entries = append(entries, e)
	}

	mi.collections[collection] = entries
	return nil
}

// Query returns the k documents closest to vector by cosine distance
func (mi *MemoryIndex) Query(ctx context.Context, collection string, vector []float32, k int) ([]Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mi.mu.RLock()
	defer mi.mu.RUnlock()

	entries := mi.collections[collection]
	if len(entries) == 0 || k <= 0 {
		return []Match{}, nil
	}

	matches := make([]Match, 0, len(entries))
	for _, e := range entries {
		matches = append(matches, Match{
			ID:       e.ID,
			Document: e.Text,
			Metadata: e.Metadata,
			Distance: CosineDistance(vector, e.Vector),
		})
	}

	// stable so equal distances keep insertion order
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})

	if k > len(matches) {
		k = len(matches)
	}
	return matches[:k], nil
}

// Count returns the number of documents in collection
func (mi *MemoryIndex) Count(_ context.Context, collection string) (int, error) {
	mi.mu.RLock()
	defer mi.mu.RUnlock()
	return len(mi.collections[collection]), nil
}

// Peek returns the first n documents of collection in insertion order
func (mi *MemoryIndex) Peek(_ context.Context, collection string, n int) ([]Document, error) {
	mi.mu.RLock()
	defer mi.mu.RUnlock()

	entries := mi.collections[collection]
	if n > len(entries) {
		n = len(entries)
	}
	docs := make([]Document, 0, n)
	for _, e := range entries[:n] {
		docs = append(docs, e.Document)
	}
	return docs, nil
}

// Close saves the index if persistence is enabled
func (mi *MemoryIndex) Close() error {
	if mi.options.PersistenceFile != "" {
		return mi.SaveToFile(mi.options.PersistenceFile)
	}
	return nil
}

// SaveToFile writes every collection to a JSON file
func (mi *MemoryIndex) SaveToFile(filename string) error {
	mi.mu.RLock()
	defer mi.mu.RUnlock()

	file, err := os.Create(filename) // #nosec G304 -- filename comes from configuration
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", filename, err)
	}
	defer func() { _ = file.Close() }()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(mi.collections); err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}
	return nil
}

// LoadFromFile replaces the index contents with a snapshot written by SaveToFile
func (mi *MemoryIndex) LoadFromFile(filename string) error {
	file, err := os.Open(filename) // #nosec G304 -- filename comes from configuration
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", filename, err)
	}
	defer func() { _ = file.Close() }()

	collections := make(map[string][]entry)
	if err := json.NewDecoder(file).Decode(&collections); err != nil {
		return fmt.Errorf("failed to decode index: %w", err)
	}

	mi.mu.Lock()
	mi.collections = collections
	mi.mu.Unlock()
	return nil
}
