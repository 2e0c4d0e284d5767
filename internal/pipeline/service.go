// Package pipeline wires the decoder, grouper, field extractors, classifier,
// caches and recommendation service into one context object. A Service is
// built once at startup and closed at shutdown; nothing is kept in globals.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yildizm/logsift/internal/ai"
	"github.com/yildizm/logsift/internal/ai/providers/ollama"
	"github.com/yildizm/logsift/internal/analyzer"
	"github.com/yildizm/logsift/internal/cache"
	"github.com/yildizm/logsift/internal/common"
	"github.com/yildizm/logsift/internal/config"
	"github.com/yildizm/logsift/internal/encoding"
	"github.com/yildizm/logsift/internal/extract"
	"github.com/yildizm/logsift/internal/history"
	"github.com/yildizm/logsift/internal/logger"
	"github.com/yildizm/logsift/internal/metrics"
	"github.com/yildizm/logsift/internal/recommend"
	"github.com/yildizm/logsift/internal/vectorstore"
)

// Service is the explicit context shared by every operation
type Service struct {
	cfg *config.Config
	log *logger.Logger
	now func() time.Time

	metrics  *metrics.Registry
	parse    cache.Gateway
	hints    cache.Gateway
	llm      ai.Provider
	encoder  vectorstore.Encoder
	index    vectorstore.Index
	search   *vectorstore.Searcher
	history  *history.Store
	decoder  *encoding.Detector
	problems []common.ProblemPattern

	extractor  *extract.Extractor
	classifier *analyzer.Classifier
	recommend  *recommend.Service
}

// Option overrides a collaborator New would otherwise build from config
type Option func(*Service)

// WithLogger sets the root logger; components log under their own names
func WithLogger(log *logger.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithMetrics records pipeline activity in m
func WithMetrics(m *metrics.Registry) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the clock used for fallback timestamps and recommendation dates
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithCaches uses the given parse and recommendation gateways instead of dialing Redis
func WithCaches(parse, hints cache.Gateway) Option {
	return func(s *Service) {
		s.parse = parse
		s.hints = hints
	}
}

// WithLLM uses provider for recommendations. A nil provider is ignored.
func WithLLM(provider ai.Provider) Option {
	return func(s *Service) { s.llm = provider }
}

// WithIndex uses encoder and index for similarity search
func WithIndex(encoder vectorstore.Encoder, index vectorstore.Index) Option {
	return func(s *Service) {
		s.encoder = encoder
		s.index = index
	}
}

// New builds a Service from cfg. Unreachable collaborators degrade: Redis
// becomes a no-op cache, Elasticsearch or the embedding model fall back to
// the in-memory TF-IDF index. Only invalid reference data is fatal.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	s := &Service{
		cfg:     cfg,
		now:     time.Now,
		decoder: encoding.NewDetector(),
		history: history.New(history.DefaultMaxTurns),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Nop()
	}

	problems, refs, err := loadReferenceData(cfg.Patterns)
	if err != nil {
		return nil, err
	}
	s.problems = problems

	s.setupCaches(ctx)
	if err := s.setupLLM(); err != nil {
		return nil, err
	}
	if err := s.setupSearch(ctx, refs); err != nil {
		return nil, err
	}

	querier := withTimeout(s.search, cfg.Vector.Timeout)
	s.extractor = extract.New(querier,
		extract.WithClock(s.now),
		extract.WithLogger(s.log.WithComponent("extract")))
	s.classifier = analyzer.NewClassifier(querier, problems, cfg.Pipeline.Threshold, s.log.WithComponent("classifier"))

	s.recommend = recommend.New(s.llm, s.hints, recommend.Options{
		Model:       cfg.AI.Model,
		Timeout:     cfg.AI.Timeout,
		Temperature: cfg.AI.Temperature,
		TopP:        cfg.AI.TopP,
		MaxTokens:   cfg.AI.MaxTokens,
		CacheTTL:    cfg.Cache.HintTTL,
		Stream:      cfg.AI.Stream,
		Retries:     cfg.AI.Retries,
	},
		recommend.WithLogger(s.log.WithComponent("recommend")),
		recommend.WithMetrics(s.metrics),
		recommend.WithHistory(s.history),
		recommend.WithClock(s.now))

	return s, nil
}

func loadReferenceData(patterns config.PatternConfig) ([]common.ProblemPattern, *common.References, error) {
	var (
		problems []common.ProblemPattern
		refs     *common.References
		err      error
	)

	if patterns.ProblemsFile != "" {
		problems, err = common.LoadProblems(patterns.ProblemsFile)
	} else {
		problems, err = common.LoadDefaultProblems()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load problem patterns: %w", err)
	}

	if patterns.ReferencesFile != "" {
		refs, err = common.LoadReferences(patterns.ReferencesFile)
	} else {
		refs, err = common.LoadDefaultReferences()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load reference examples: %w", err)
	}

	return problems, refs, nil
}

func (s *Service) setupCaches(ctx context.Context) {
	if s.parse != nil && s.hints != nil {
		return
	}
	if !s.cfg.Cache.Enabled {
		if s.parse == nil {
			s.parse = cache.NoopGateway{}
		}
		if s.hints == nil {
			s.hints = cache.NoopGateway{}
		}
		return
	}

	c := s.cfg.Cache
	log := s.log.WithComponent("cache")
	if s.parse == nil {
		s.parse = cache.New(ctx, cache.Options{
			Addr:        c.RedisAddr(),
			Password:    c.Password,
			DB:          c.DB,
			DialTimeout: c.DialTimeout,
			ReadTimeout: c.ReadTimeout,
		}, log, s.metrics)
	}
	if s.hints == nil {
		s.hints = cache.New(ctx, cache.Options{
			Addr:        c.RedisAddr(),
			Password:    c.Password,
			DB:          c.HintDB,
			DialTimeout: c.DialTimeout,
			ReadTimeout: c.ReadTimeout,
		}, log, s.metrics)
	}
}

// setupLLM creates the provider lazily: nothing is dialed until the first call
func (s *Service) setupLLM() error {
	if s.llm != nil || !s.cfg.AI.Enabled {
		return nil
	}

	provider, err := ollama.New(&ollama.Config{
		BaseURL:            s.cfg.AI.Endpoint,
		DefaultModel:       s.cfg.AI.Model,
		Timeout:            s.cfg.AI.Timeout,
		DefaultTemperature: s.cfg.AI.Temperature,
		DefaultTopP:        s.cfg.AI.TopP,
		DefaultNumPredict:  s.cfg.AI.MaxTokens,
	})
	if err != nil {
		return fmt.Errorf("failed to create LLM provider: %w", err)
	}
	s.llm = provider
	return nil
}

// Close releases every collaborator. A persisted memory index is saved here.
func (s *Service) Close() error {
	var errs []error
	if s.search != nil {
		if err := s.search.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close index: %w", err))
		}
	}
	if err := s.parse.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.hints.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Config returns the configuration the service was built with
func (s *Service) Config() *config.Config {
	return s.cfg
}

// Metrics returns the registry given to New, or nil
func (s *Service) Metrics() *metrics.Registry {
	return s.metrics
}

// Recommend returns advice for one record
func (s *Service) Recommend(ctx context.Context, record common.Record) common.Recommendation {
	return s.recommend.Recommend(ctx, record)
}

// RecommendBatch returns one recommendation per record, in order
func (s *Service) RecommendBatch(ctx context.Context, records []common.Record) []common.Recommendation {
	return s.recommend.RecommendBatch(ctx, records)
}

// ProcessJSON recommends for a JSON document holding one record or a list.
// The decoded records are returned alongside their recommendations.
func (s *Service) ProcessJSON(ctx context.Context, data []byte) ([]common.Record, []common.Recommendation, error) {
	records, err := recommend.DecodeRecords(data)
	if err != nil {
		return nil, nil, err
	}
	return records, s.recommend.RecommendBatch(ctx, records), nil
}

// TestLLM probes the completion model with a short prompt
func (s *Service) TestLLM(ctx context.Context) recommend.LLMStatus {
	return s.recommend.TestLLM(ctx)
}

// History returns the last n recommendation turns recorded for source
func (s *Service) History(source string, n int) []history.Turn {
	return s.recommend.History(source, n)
}
