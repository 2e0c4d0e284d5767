package vectorstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/yildizm/logsift/internal/common"
)

// Searcher composes an Encoder and an Index so callers can query by text
type Searcher struct {
	encoder Encoder
	index   Index

	mu           sync.Mutex
	bootstrapped bool
}

// NewSearcher creates a Searcher over the given encoder and index
func NewSearcher(encoder Encoder, index Index) *Searcher {
	return &Searcher{encoder: encoder, index: index}
}

// Query encodes text and returns its k nearest documents in collection.
// Encoder and index failures are reported as collaborator errors.
func (s *Searcher) Query(ctx context.Context, collection, text string, k int) ([]Match, error) {
	vector, err := s.encoder.Encode(ctx, text)
	if err != nil {
		return nil, common.Unavailable("encoder", err)
	}

	matches, err := s.index.Query(ctx, collection, vector, k)
	if err != nil {
		return nil, common.Unavailable("index", err)
	}
	return matches, nil
}

// Add encodes and stores docs in collection
func (s *Searcher) Add(ctx context.Context, collection string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	vectors := make([][]float32, len(docs))
	for i, doc := range docs {
		vector, err := s.encoder.Encode(ctx, doc.Text)
		if err != nil {
			return fmt.Errorf("failed to encode document %s: %w", doc.ID, err)
		}
		vectors[i] = vector
	}

	return s.index.Upsert(ctx, collection, docs, vectors)
}

// Count returns the number of documents in collection
func (s *Searcher) Count(ctx context.Context, collection string) (int, error) {
	return s.index.Count(ctx, collection)
}

// Peek returns up to n documents of collection
func (s *Searcher) Peek(ctx context.Context, collection string, n int) ([]Document, error) {
	return s.index.Peek(ctx, collection, n)
}

// Close releases the index
func (s *Searcher) Close() error {
	return s.index.Close()
}

// Bootstrap fits a trainable encoder on the reference corpus and fills
// every empty collection. Collections that already hold documents are
// left untouched, so repeated calls are no-ops.
func (s *Searcher) Bootstrap(ctx context.Context, problems []common.ProblemPattern, refs *common.References) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bootstrapped {
		return nil
	}

	collections := map[string][]Document{
		CollectionProblems:   ProblemDocuments(problems),
		CollectionTimestamps: ExampleDocuments(CollectionTimestamps, refs.Timestamps),
		CollectionLevels:     ExampleDocuments(CollectionLevels, refs.Levels),
		CollectionSources:    ExampleDocuments(CollectionSources, refs.Sources),
	}

	if trainable, ok := s.encoder.(Trainable); ok && !trainable.IsFitted() {
		var corpus []string
		for _, name := range Collections {
			for _, doc := range collections[name] {
				corpus = append(corpus, doc.Text)
			}
		}
		if err := trainable.Fit(corpus); err != nil {
			return fmt.Errorf("failed to fit encoder: %w", err)
		}
	}

	for _, name := range Collections {
		count, err := s.index.Count(ctx, name)
		if err != nil {
			return common.Unavailable("index", err)
		}
		if count > 0 {
			continue
		}
		if err := s.Add(ctx, name, collections[name]); err != nil {
			return fmt.Errorf("failed to load collection %s: %w", name, err)
		}
	}

	s.bootstrapped = true
	return nil
}

// ProblemDocuments converts problem patterns into indexable documents
func ProblemDocuments(problems []common.ProblemPattern) []Document {
	docs := make([]Document, len(problems))
	for i, p := range problems {
		docs[i] = Document{
			ID:   fmt.Sprintf("problem_%d", i),
			Text: p.Document(),
			Metadata: map[string]string{
				"title":       p.Title,
				"category":    p.Category,
				"description": p.Description,
				"severity":    p.Severity,
				"patterns":    JoinList(p.Patterns),
				"keywords":    JoinList(p.Keywords),
			},
		}
	}
	return docs
}

// ExampleDocuments converts extractor reference examples into indexable documents
func ExampleDocuments(collection string, examples []common.Example) []Document {
	docs := make([]Document, len(examples))
	for i, ex := range examples {
		metadata := map[string]string{"description": ex.Description}
		switch collection {
		case CollectionTimestamps:
			metadata["type"] = ex.Type
		case CollectionLevels:
			metadata["level"] = ex.Level
		case CollectionSources:
			metadata["source"] = ex.Source
		}
		docs[i] = Document{
			ID:       fmt.Sprintf("%s_%d", collection, i),
			Text:     ex.Text,
			Metadata: metadata,
		}
	}
	return docs
}

// PatternFromMatch rebuilds a problem pattern from a problems collection hit
func PatternFromMatch(m Match) common.ProblemPattern {
	return common.ProblemPattern{
		Title:       m.Metadata["title"],
		Category:    m.Metadata["category"],
		Description: m.Metadata["description"],
		Severity:    m.Metadata["severity"],
		Patterns:    SplitList(m.Metadata["patterns"]),
		Keywords:    SplitList(m.Metadata["keywords"]),
	}
}
