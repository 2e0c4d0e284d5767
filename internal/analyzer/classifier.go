// Package analyzer classifies log groups against the reference problem
// patterns and turns the result into a problem label.
package analyzer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/yildizm/logsift/internal/common"
	"github.com/yildizm/logsift/internal/logger"
	"github.com/yildizm/logsift/internal/vectorstore"
)

const (
	// DefaultThreshold is the final confidence below which a match is only a near miss
	DefaultThreshold = 0.3

	// FallbackBoundary is the confidence at or below which a record's problem
	// label comes from the level based rules. It does not move with the
	// classifier threshold.
	FallbackBoundary = 0.3

	// candidateCount is the number of nearest problems retrieved per query
	candidateCount = 3

	keywordBonusStep = 0.1
	keywordBonusCap  = 0.3
)

// Querier is the similarity search over the problems collection
type Querier interface {
	Query(ctx context.Context, collection, text string, k int) ([]vectorstore.Match, error)
}

// Classifier blends similarity search with a keyword bonus
type Classifier struct {
	search    Querier
	problems  []common.ProblemPattern
	threshold float64
	log       *logger.Logger
}

// NewClassifier creates a classifier. problems backs Statistics and
// ByCategory; scoring only uses what the search returns.
func NewClassifier(search Querier, problems []common.ProblemPattern, threshold float64, log *logger.Logger) *Classifier {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Classifier{search: search, problems: problems, threshold: threshold, log: log}
}

// Threshold returns the confidence below which matches are reported as low confidence
func (c *Classifier) Threshold() float64 {
	return c.threshold
}

// Classify finds the reference problem nearest to text. It never fails:
// search errors produce an "Analysis Error" result with zero confidence.
func (c *Classifier) Classify(ctx context.Context, text string, level common.Level) common.Classification {
	matches, err := c.search.Query(ctx, vectorstore.CollectionProblems, text, candidateCount)
	if err != nil {
		c.log.Warn("problem classification failed: %v", err)
		return common.Classification{
			Title:       "Analysis Error",
			Category:    "System Error",
			Description: fmt.Sprintf("Error during problem analysis: %v", err),
			Severity:    "unknown",
			Reasoning:   err.Error(),
		}
	}
	if len(matches) == 0 {
		return common.Classification{
			Title:       "Unknown Issue",
			Category:    "Unclassified",
			Description: "No matching problem pattern found",
			Severity:    "unknown",
			Reasoning:   "No similar patterns in knowledge base",
		}
	}

	best := matches[0]
	pattern := vectorstore.PatternFromMatch(best)
	hits := KeywordHits(text, pattern.Keywords)
	confidence := BlendConfidence(best.Confidence(), hits)

	c.log.DebugWithFields("classified group", []logger.Field{
		logger.F("level", level),
		logger.F("title", pattern.Title),
		logger.F("similarity", best.Confidence()),
		logger.F("keyword_hits", hits),
		logger.F("confidence", confidence),
	})

	if confidence < c.threshold {
		return common.Classification{
			Title:       "Unspecified Issue",
			Category:    "Low Confidence",
			Description: fmt.Sprintf("Potential match: %s (low confidence)", pattern.Title),
			Confidence:  confidence,
			Severity:    "unknown",
			Reasoning:   fmt.Sprintf("Best match confidence %.2f below threshold %v", confidence, c.threshold),
		}
	}

	found := pattern.Patterns
	if len(found) > 2 {
		found = found[:2]
	}
	return common.Classification{
		Title:       pattern.Title,
		Category:    pattern.Category,
		Description: pattern.Description,
		Confidence:  confidence,
		Severity:    pattern.Severity,
		Reasoning:   fmt.Sprintf("Matched with confidence %.2f, found patterns: %s", confidence, strings.Join(found, ", ")),
	}
}

// KeywordHits counts keywords occurring in text, ignoring case
func KeywordHits(text string, keywords []string) int {
	lower := strings.ToLower(text)
	hits := 0
	for _, keyword := range keywords {
		if keyword != "" && strings.Contains(lower, strings.ToLower(keyword)) {
			hits++
		}
	}
	return hits
}

// BlendConfidence adds min(0.3, 0.1 per keyword hit) to the similarity
// confidence and clamps the result to [0, 1]
func BlendConfidence(similarity float64, keywordHits int) float64 {
	if similarity < 0 {
		similarity = 0
	}
	bonus := keywordBonusStep * float64(keywordHits)
	if bonus > keywordBonusCap {
		bonus = keywordBonusCap
	}
	if bonus < 0 {
		bonus = 0
	}
	final := similarity + bonus
	if final > 1 {
		return 1
	}
	return final
}

// Statistics summarises the loaded problem patterns
type Statistics struct {
	TotalProblems int            `json:"total_problems"`
	Categories    map[string]int `json:"categories"`
	Severities    map[string]int `json:"severities"`
	Status        string         `json:"status"`
}

// Statistics counts the loaded patterns per category and severity
func (c *Classifier) Statistics() Statistics {
	stats := Statistics{
		TotalProblems: len(c.problems),
		Categories:    make(map[string]int),
		Severities:    make(map[string]int),
		Status:        "healthy",
	}
	for _, p := range c.problems {
		stats.Categories[p.Category]++
		stats.Severities[p.Severity]++
	}
	return stats
}

// CategorySummary is a pattern listed by ByCategory
type CategorySummary struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Severity    string   `json:"severity"`
	Patterns    []string `json:"patterns"`
}

// ByCategory lists the patterns of a category, matched case-insensitively,
// with at most three example patterns each
func (c *Classifier) ByCategory(category string) []CategorySummary {
	var out []CategorySummary
	for _, p := range c.problems {
		if !strings.EqualFold(p.Category, category) {
			continue
		}
		patterns := p.Patterns
		if len(patterns) > 3 {
			patterns = patterns[:3]
		}
		out = append(out, CategorySummary{
			Title:       p.Title,
			Description: p.Description,
			Severity:    p.Severity,
			Patterns:    patterns,
		})
	}
	return out
}

// Categories returns the distinct categories in sorted order
func (c *Classifier) Categories() []string {
	seen := make(map[string]bool)
	var categories []string
	for _, p := range c.problems {
		if !seen[p.Category] {
			seen[p.Category] = true
			categories = append(categories, p.Category)
		}
	}
	sort.Strings(categories)
	return categories
}
