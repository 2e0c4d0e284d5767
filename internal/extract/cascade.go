// Package extract derives the timestamp, level, source and message of a
// log group. Each field is resolved by a cascade: an ordered list of
// strategies tried until one produces a value above its confidence floor.
package extract

import (
	"context"
	"strings"

	"github.com/yildizm/logsift/internal/parser"
	"github.com/yildizm/logsift/internal/vectorstore"
)

// Querier is the similarity search used by semantic strategies
type Querier interface {
	Query(ctx context.Context, collection, text string, k int) ([]vectorstore.Match, error)
}

// Input is what every strategy sees
type Input struct {
	Group    parser.LogGroup
	Text     string
	Filename string

	// TimestampSpan is the text removed from the first line when a
	// timestamp was found there
	TimestampSpan string
}

// NewInput prepares a group for extraction
func NewInput(group parser.LogGroup, filename string) *Input {
	return &Input{Group: group, Text: group.Text(), Filename: filename}
}

// FirstLine is the group's opening line
func (in *Input) FirstLine() string {
	return in.Group.FirstLine()
}

// Strategy produces a candidate value with a confidence
type Strategy[T any] struct {
	Name  string
	Floor float64
	Run   func(ctx context.Context, in *Input) (T, float64, bool)
}

// Result is the outcome of a cascade
type Result[T any] struct {
	Value      T
	Confidence float64
	Strategy   string
}

// DefaultStrategy names results that came from the cascade's default
const DefaultStrategy = "default"

// Cascade runs strategies in order. The first one returning ok with a
// confidence strictly above its floor wins; otherwise fallback is used.
func Cascade[T any](ctx context.Context, in *Input, strategies []Strategy[T], fallback T) Result[T] {
	for _, s := range strategies {
		if ctx.Err() != nil {
			break
		}
		value, confidence, ok := s.Run(ctx, in)
		if ok && confidence > s.Floor {
			return Result[T]{Value: value, Confidence: confidence, Strategy: s.Name}
		}
	}
	return Result[T]{Value: fallback, Strategy: DefaultStrategy}
}

// deterministic wraps a rule that either matches or not
func deterministic[T any](name string, rule func(in *Input) (T, bool)) Strategy[T] {
	return Strategy[T]{
		Name: name,
		Run: func(_ context.Context, in *Input) (T, float64, bool) {
			value, ok := rule(in)
			return value, 1, ok
		},
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
