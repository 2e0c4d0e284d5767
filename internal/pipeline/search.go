package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/yildizm/logsift/internal/ai/providers/ollama"
	"github.com/yildizm/logsift/internal/common"
	"github.com/yildizm/logsift/internal/logger"
	"github.com/yildizm/logsift/internal/vectorstore"
	"github.com/yildizm/logsift/internal/vectorstore/elastic"
)

// setupSearch builds the configured encoder and index and loads the
// reference collections. Any failure of a remote backend falls back to
// TF-IDF over the memory index, which cannot fail to bootstrap.
func (s *Service) setupSearch(ctx context.Context, refs *common.References) error {
	log := s.log.WithComponent("vectorstore")

	if s.encoder == nil {
		s.encoder = s.configuredEncoder(log)
	}
	if s.index == nil {
		s.index = s.configuredIndex(ctx, log)
	}

	s.search = vectorstore.NewSearcher(s.encoder, s.index)
	err := s.search.Bootstrap(ctx, s.problems, refs)
	if err == nil {
		return nil
	}

	log.WarnWithFields("reference bootstrap failed; using in-memory TF-IDF index", []logger.Field{logger.Error(err)})
	_ = s.search.Close()

	index, memErr := vectorstore.NewMemoryIndex()
	if memErr != nil {
		return fmt.Errorf("failed to create memory index: %w", memErr)
	}
	s.encoder = vectorstore.NewTFIDFEncoder(s.cfg.Vector.Dimensions)
	s.index = index
	s.search = vectorstore.NewSearcher(s.encoder, s.index)
	if err := s.search.Bootstrap(ctx, s.problems, refs); err != nil {
		return fmt.Errorf("failed to load reference collections: %w", err)
	}
	return nil
}

func (s *Service) configuredEncoder(log *logger.Logger) vectorstore.Encoder {
	if s.cfg.Vector.Encoder != "ollama" {
		return vectorstore.NewTFIDFEncoder(s.cfg.Vector.Dimensions)
	}

	embedder, ok := s.llm.(vectorstore.Embedder)
	if !ok {
		log.Warn("ollama encoder requested but no ollama provider is configured; using TF-IDF")
		return vectorstore.NewTFIDFEncoder(s.cfg.Vector.Dimensions)
	}
	return vectorstore.NewEmbeddingEncoder(timedEmbedder{embedder, s.cfg.AI.ParseTimeout}, s.cfg.Vector.EmbeddingModel)
}

func (s *Service) configuredIndex(ctx context.Context, log *logger.Logger) vectorstore.Index {
	if s.cfg.Vector.Backend == "elasticsearch" {
		index, err := elastic.New(ctx, elastic.Options{
			Addresses:      s.cfg.Vector.Addresses,
			IndexPrefix:    s.cfg.Vector.IndexPrefix,
			Timeout:        s.cfg.Vector.Timeout,
			ConnectTimeout: s.cfg.Vector.Timeout,
		}, log)
		if err == nil {
			return index
		}
		log.WarnWithFields("elasticsearch unavailable; using in-memory index", []logger.Field{logger.Error(err)})
	}

	var opts []vectorstore.MemoryIndexOption
	if s.cfg.Vector.PersistPath != "" {
		opts = append(opts, vectorstore.WithPersistence(s.cfg.Vector.PersistPath))
	}
	index, err := vectorstore.NewMemoryIndex(opts...)
	if err != nil {
		log.WarnWithFields("failed to load index snapshot; starting empty", []logger.Field{
			logger.F("path", s.cfg.Vector.PersistPath), logger.Error(err),
		})
		index, _ = vectorstore.NewMemoryIndex()
	}
	return index
}

// timedEmbedder bounds each embedding call made while parsing
type timedEmbedder struct {
	next    vectorstore.Embedder
	timeout time.Duration
}

func (e timedEmbedder) Embed(ctx context.Context, model, text string) ([]float32, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	return e.next.Embed(ctx, model, text)
}

var _ vectorstore.Embedder = (*ollama.Provider)(nil)

// timedQuerier bounds every similarity query
type timedQuerier struct {
	search  *vectorstore.Searcher
	timeout time.Duration
}

func withTimeout(search *vectorstore.Searcher, timeout time.Duration) timedQuerier {
	return timedQuerier{search: search, timeout: timeout}
}

func (q timedQuerier) Query(ctx context.Context, collection, text string, k int) ([]vectorstore.Match, error) {
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}
	return q.search.Query(ctx, collection, text, k)
}

// CollectionInfo summarizes one reference collection
type CollectionInfo struct {
	Name    string                 `json:"name"`
	Count   int                    `json:"count"`
	Samples []vectorstore.Document `json:"samples,omitempty"`
}

// Knowledge lists every reference collection with up to n sample documents
func (s *Service) Knowledge(ctx context.Context, n int) ([]CollectionInfo, error) {
	infos := make([]CollectionInfo, 0, len(vectorstore.Collections))
	for _, name := range vectorstore.Collections {
		count, err := s.search.Count(ctx, name)
		if err != nil {
			return nil, common.Unavailable("index", err)
		}
		info := CollectionInfo{Name: name, Count: count}
		if n > 0 {
			if info.Samples, err = s.search.Peek(ctx, name, n); err != nil {
				return nil, common.Unavailable("index", err)
			}
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// ComponentMatch is a reference example close to a query
type ComponentMatch struct {
	Document   string            `json:"document"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Confidence float64           `json:"confidence"`
}

// QueryComponent returns the k reference examples of collection nearest to text
func (s *Service) QueryComponent(ctx context.Context, collection, text string, k int) ([]ComponentMatch, error) {
	if !knownCollection(collection) {
		return nil, common.NewInputError(fmt.Sprintf("unknown collection %q", collection), nil)
	}
	if k <= 0 {
		k = 3
	}

	matches, err := withTimeout(s.search, s.cfg.Vector.Timeout).Query(ctx, collection, text, k)
	if err != nil {
		return nil, err
	}

	out := make([]ComponentMatch, 0, len(matches))
	for _, m := range matches {
		out = append(out, ComponentMatch{Document: m.Document, Metadata: m.Metadata, Confidence: m.Confidence()})
	}
	return out, nil
}

func knownCollection(name string) bool {
	for _, c := range vectorstore.Collections {
		if c == name {
			return true
		}
	}
	return false
}
