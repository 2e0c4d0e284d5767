package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yildizm/logsift/internal/analyzer"
	"github.com/yildizm/logsift/internal/cache"
	"github.com/yildizm/logsift/internal/common"
)

const healthTimeout = 5 * time.Second

// Stats describes the parse cache
func (s *Service) Stats(ctx context.Context) cache.Stats {
	return s.parse.Stats(ctx)
}

// HintStats describes the recommendation cache and its entry lifetime
type HintStats struct {
	cache.Stats
	TTLSeconds int `json:"ttl"`
}

// HintStats describes the recommendation cache
func (s *Service) HintStats(ctx context.Context) HintStats {
	return HintStats{Stats: s.hints.Stats(ctx), TTLSeconds: int(s.cfg.Cache.HintTTL / time.Second)}
}

// Clear deletes parse cache keys matching pattern, all parse results by default
func (s *Service) Clear(ctx context.Context, pattern string) (int, error) {
	if pattern == "" {
		pattern = cache.DefaultClearPattern
	}
	return s.parse.Clear(ctx, pattern)
}

// ClearHints deletes recommendation cache keys matching pattern, all of them by default
func (s *Service) ClearHints(ctx context.Context, pattern string) (int, error) {
	if pattern == "" {
		pattern = cache.HintClearPattern
	}
	return s.hints.Clear(ctx, pattern)
}

// ProblemStats counts the loaded problem patterns
func (s *Service) ProblemStats() analyzer.Statistics {
	return s.classifier.Statistics()
}

// ProblemsByCategory lists the patterns of category
func (s *Service) ProblemsByCategory(category string) []analyzer.CategorySummary {
	return s.classifier.ByCategory(category)
}

// Categories lists the known problem categories
func (s *Service) Categories() []string {
	return s.classifier.Categories()
}

// ClassifyText classifies free text at the given level and returns the
// problem label a record would carry
func (s *Service) ClassifyText(ctx context.Context, text string, level common.Level) (common.Classification, string) {
	class := s.classifier.Classify(ctx, text, level)
	return class, s.classifier.Describe(class, text, level)
}

// LLMHealth is the state of the completion backend
type LLMHealth struct {
	Status         string `json:"status"`
	Provider       string `json:"provider,omitempty"`
	Model          string `json:"model,omitempty"`
	ModelAvailable bool   `json:"model_available"`
	Error          string `json:"error,omitempty"`
}

// Health is the combined collaborator status
type Health struct {
	Status      string         `json:"status"`
	ParseCache  cache.Stats    `json:"parse_cache"`
	HintCache   cache.Stats    `json:"hint_cache"`
	LLM         LLMHealth      `json:"llm"`
	Collections map[string]int `json:"collections"`
}

// Health probes caches, LLM and index concurrently. The service stays
// usable when any of them is down, so the overall status is "degraded",
// never an error.
func (s *Service) Health(ctx context.Context) Health {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	var h Health
	var g errgroup.Group
	g.Go(func() error {
		h.ParseCache = s.parse.Stats(ctx)
		return nil
	})
	g.Go(func() error {
		h.HintCache = s.hints.Stats(ctx)
		return nil
	})
	g.Go(func() error {
		h.LLM = s.llmHealth(ctx)
		return nil
	})
	g.Go(func() error {
		h.Collections = s.collectionCounts(ctx)
		return nil
	})
	_ = g.Wait()

	h.Status = "healthy"
	if h.ParseCache.Status != cache.StatusConnected || h.LLM.Status != "healthy" {
		h.Status = "degraded"
	}
	return h
}

func (s *Service) llmHealth(ctx context.Context) LLMHealth {
	if s.llm == nil {
		return LLMHealth{Status: "disabled"}
	}

	h := LLMHealth{Provider: s.llm.Name(), Model: s.cfg.AI.Model}
	if err := s.llm.HealthCheck(ctx); err != nil {
		h.Status = "unavailable"
		h.Error = err.Error()
		return h
	}
	h.Status = "healthy"

	checker, ok := s.llm.(interface {
		IsModelAvailable(ctx context.Context, name string) (bool, error)
	})
	if !ok || h.Model == "" {
		h.ModelAvailable = true
		return h
	}
	available, err := checker.IsModelAvailable(ctx, h.Model)
	if err != nil {
		h.Error = err.Error()
	}
	h.ModelAvailable = available
	return h
}

func (s *Service) collectionCounts(ctx context.Context) map[string]int {
	counts := make(map[string]int)
	infos, err := s.Knowledge(ctx, 0)
	if err != nil {
		s.log.Warn("index health check failed: %v", err)
		return counts
	}
	for _, info := range infos {
		counts[info.Name] = info.Count
	}
	return counts
}
