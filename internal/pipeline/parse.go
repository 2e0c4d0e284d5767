package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yildizm/logsift/internal/cache"
	"github.com/yildizm/logsift/internal/common"
	"github.com/yildizm/logsift/internal/logger"
	"github.com/yildizm/logsift/internal/parser"
)

// fallbackTimestampLayout formats the processing time of failed groups
const fallbackTimestampLayout = "2006-01-02T15:04:05"

// Parse decodes data, groups its lines and produces one record per group,
// in input order. Identical content is served from the parse cache. Only
// undecodable or malformed input is an error; a group that fails
// extraction becomes an UNKNOWN record instead of being dropped.
func (s *Service) Parse(ctx context.Context, data []byte, filename string) ([]common.Record, error) {
	text, err := s.decoder.Decode(data)
	if err != nil {
		return nil, err
	}

	if records, ok := s.cachedRecords(ctx, text); ok {
		s.log.Debug("parse cache hit for %s (%d records)", filename, len(records))
		return records, nil
	}

	lines := parser.SplitLines(text)
	if err := s.checkLineLength(lines); err != nil {
		return nil, err
	}

	groups, err := parser.ParseLines(lines)
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return []common.Record{}, nil
	}

	if s.cfg.Pipeline.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Pipeline.Timeout)
		defer cancel()
	}

	start := time.Now()
	records := s.processGroups(ctx, groups, filename)
	s.log.InfoWithFields("parsed %s", []logger.Field{
		logger.Count(len(records)), logger.Duration(time.Since(start)),
	}, filename)

	if payload, err := json.Marshal(records); err == nil {
		s.parse.Set(ctx, text, payload, cache.PrefixParse, s.cfg.Cache.TTL)
	}
	return records, nil
}

// cachedRecords treats an empty cached list as a miss
func (s *Service) cachedRecords(ctx context.Context, text string) ([]common.Record, bool) {
	payload, ok := s.parse.Get(ctx, text, cache.PrefixParse)
	if !ok {
		return nil, false
	}
	var records []common.Record
	if err := json.Unmarshal(payload, &records); err != nil {
		s.log.Warn("discarding unreadable parse cache entry: %v", err)
		return nil, false
	}
	if len(records) == 0 {
		return nil, false
	}
	return records, true
}

func (s *Service) checkLineLength(lines []string) error {
	limit := s.cfg.Pipeline.MaxLineLength
	if limit <= 0 {
		return nil
	}
	for i, line := range lines {
		if len(line) > limit {
			return common.NewInputError(fmt.Sprintf("line %d exceeds %d bytes", i+1, limit), nil)
		}
	}
	return nil
}

// processGroups runs groups in parallel, bounded by the worker count.
// Each group writes only its own slot, so order is kept without locking.
// The group never returns an error: failures are turned into records.
func (s *Service) processGroups(ctx context.Context, groups []parser.LogGroup, filename string) []common.Record {
	records := make([]common.Record, len(groups))

	var g errgroup.Group
	if workers := s.cfg.Pipeline.Workers; workers > 0 {
		g.SetLimit(workers)
	}
	for i, group := range groups {
		g.Go(func() error {
			start := time.Now()
			record, err := s.processGroup(ctx, group, filename)
			if err != nil {
				s.log.WarnWithFields("group %d of %s failed", []logger.Field{logger.Error(err)}, i+1, filename)
				record = s.failedRecord(group, filename, err)
			}
			s.metrics.Group(time.Since(start), err != nil)
			records[i] = record
			return nil
		})
	}
	_ = g.Wait()

	return records
}

// processGroup extracts and classifies one group. A panic anywhere in the
// cascade is reported as an error for this group only.
func (s *Service) processGroup(ctx context.Context, group parser.LogGroup, filename string) (record common.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()

	if err := ctx.Err(); err != nil {
		return common.Record{}, err
	}

	text := group.Text()
	fields := s.extractor.Extract(ctx, group, filename)
	s.metrics.Strategy("timestamp", fields.Timestamp.Strategy)
	s.metrics.Strategy("level", fields.Level.Strategy)
	s.metrics.Strategy("source", fields.Source.Strategy)

	class := s.classifier.Classify(ctx, text, fields.Level.Value)
	s.metrics.Classified(class.Category)

	return common.Record{
		Timestamp: fields.Timestamp.Value.Normalized,
		Level:     fields.Level.Value,
		Source:    fields.Source.Value,
		Message:   fields.Message,
		Problem:   s.classifier.Describe(class, text, fields.Level.Value),
	}, nil
}

func (s *Service) failedRecord(group parser.LogGroup, filename string, err error) common.Record {
	source := filename
	if source == "" {
		source = common.DefaultSource
	}
	return common.Record{
		Timestamp: s.now().Format(fallbackTimestampLayout),
		Level:     common.LevelUnknown,
		Source:    source,
		Message:   strings.Join(group.Lines, " "),
		Problem:   "Parsing error: " + err.Error(),
	}
}

// Inspection describes how one group was understood, strategy by strategy
type Inspection struct {
	Lines          []string              `json:"lines"`
	Timestamp      string                `json:"timestamp"`
	TimestampFrom  string                `json:"timestamp_strategy"`
	Level          common.Level          `json:"level"`
	LevelFrom      string                `json:"level_strategy"`
	Source         string                `json:"source"`
	SourceFrom     string                `json:"source_strategy"`
	Message        string                `json:"message"`
	Classification common.Classification `json:"classification"`
	Problem        string                `json:"problem"`
}

// InspectLine runs extraction and classification on text as if it were one
// group, reporting which strategy resolved each field
func (s *Service) InspectLine(ctx context.Context, text, filename string) (Inspection, error) {
	var lines []string
	for _, line := range parser.SplitLines(text) {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return Inspection{}, common.NewInputError("empty log line", nil)
	}

	group := parser.LogGroup{Lines: lines}
	fields := s.extractor.Extract(ctx, group, filename)
	class := s.classifier.Classify(ctx, group.Text(), fields.Level.Value)

	return Inspection{
		Lines:          lines,
		Timestamp:      fields.Timestamp.Value.Normalized,
		TimestampFrom:  fields.Timestamp.Strategy,
		Level:          fields.Level.Value,
		LevelFrom:      fields.Level.Strategy,
		Source:         fields.Source.Value,
		SourceFrom:     fields.Source.Strategy,
		Message:        fields.Message,
		Classification: class,
		Problem:        s.classifier.Describe(class, group.Text(), fields.Level.Value),
	}, nil
}
