package extract

import (
	"context"
	"time"

	"github.com/yildizm/logsift/internal/common"
	"github.com/yildizm/logsift/internal/logger"
	"github.com/yildizm/logsift/internal/parser"
	"github.com/yildizm/logsift/internal/vectorstore"
)

// Extractor runs the field cascades. It holds no per-group state and is
// safe for concurrent use.
type Extractor struct {
	search Querier
	log    *logger.Logger
	now    func() time.Time

	timestamps []Strategy[Timestamp]
	levels     []Strategy[common.Level]
	sources    []Strategy[string]
}

// Option configures an Extractor
type Option func(*Extractor)

// WithClock overrides the clock used for timestamps without a date
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

// WithLogger sets the logger used to report semantic lookup failures
func WithLogger(log *logger.Logger) Option {
	return func(e *Extractor) { e.log = log }
}

// New creates an Extractor. A nil search disables the semantic strategies.
func New(search Querier, opts ...Option) *Extractor {
	e := &Extractor{
		search: search,
		log:    logger.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.timestamps = e.timestampStrategies()
	e.levels = e.levelStrategies()
	e.sources = e.sourceStrategies()
	return e
}

// Fields are the extracted parts of a record, before classification
type Fields struct {
	Timestamp Result[Timestamp]
	Level     Result[common.Level]
	Source    Result[string]
	Message   string
}

// Extract runs every cascade on group. Timestamp runs first because
// source and message strip its span.
func (e *Extractor) Extract(ctx context.Context, group parser.LogGroup, filename string) Fields {
	in := NewInput(group, filename)

	fields := Fields{
		Timestamp: e.Timestamp(ctx, in),
		Level:     e.Level(ctx, in),
	}
	fields.Source = e.Source(ctx, in)
	fields.Message = Message(in, fields.Level.Value, fields.Source.Value)
	return fields
}

// nearest returns the closest reference example, or false when the
// search is unavailable or empty
func (e *Extractor) nearest(ctx context.Context, collection, text string) (vectorstore.Match, bool) {
	if e.search == nil {
		return vectorstore.Match{}, false
	}
	matches, err := e.search.Query(ctx, collection, text, 1)
	if err != nil {
		e.log.Debug("semantic lookup in %s failed: %v", collection, err)
		return vectorstore.Match{}, false
	}
	if len(matches) == 0 {
		return vectorstore.Match{}, false
	}
	return matches[0], true
}
