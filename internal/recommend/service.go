// Package recommend turns normalized records into remediation advice using
// an LLM, with cached results and a keyword fallback when the model is
// unavailable.
package recommend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/yildizm/go-promptfmt"

	"github.com/yildizm/logsift/internal/ai"
	"github.com/yildizm/logsift/internal/cache"
	"github.com/yildizm/logsift/internal/common"
	"github.com/yildizm/logsift/internal/encoding"
	"github.com/yildizm/logsift/internal/history"
	"github.com/yildizm/logsift/internal/logger"
	"github.com/yildizm/logsift/internal/metrics"
)

const (
	// ServiceName is reported as the author of generated recommendations
	ServiceName = "LogHintService"

	errorHandlerName = ServiceName + " (Error Handler)"

	probePrompt = "Hello, are you working?"
)

const systemPrompt = "You are an expert system administrator. Analyze this log entry and provide a concise, actionable recommendation in plain text."

// Options tune LLM calls and caching
type Options struct {
	Model       string
	Timeout     time.Duration
	Temperature float64
	TopP        float64
	MaxTokens   int
	CacheTTL    time.Duration

	// Stream collects the reply from a streamed completion
	Stream bool
	// Retries is the number of extra attempts after a retryable failure
	Retries int
	// RetryInterval is the first wait between attempts; it grows exponentially
	RetryInterval time.Duration
}

// DefaultOptions returns the sampling and cache settings used when none are configured
func DefaultOptions() Options {
	return Options{
		Timeout:       30 * time.Second,
		Temperature:   0.1,
		TopP:          0.8,
		MaxTokens:     300,
		CacheTTL:      7200 * time.Second,
		RetryInterval: 500 * time.Millisecond,
	}
}

// Service generates recommendations
type Service struct {
	llm     ai.Provider
	cache   cache.Gateway
	history *history.Store
	opts    Options
	log     *logger.Logger
	metrics *metrics.Registry
	now     func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithLogger sets the service logger
func WithLogger(log *logger.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithMetrics records LLM calls in m
func WithMetrics(m *metrics.Registry) Option {
	return func(s *Service) { s.metrics = m }
}

// WithHistory records every generated recommendation in h, keyed by record source
func WithHistory(h *history.Store) Option {
	return func(s *Service) { s.history = h }
}

// WithClock overrides the creation date source
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a Service. A nil llm always uses the fallback; a nil gateway
// disables caching.
func New(llm ai.Provider, gw cache.Gateway, opts Options, options ...Option) *Service {
	defaults := DefaultOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaults.MaxTokens
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaults.CacheTTL
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = defaults.RetryInterval
	}
	if gw == nil {
		gw = cache.NoopGateway{}
	}

	s := &Service{
		llm:   llm,
		cache: gw,
		opts:  opts,
		log:   logger.Nop(),
		now:   time.Now,
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// Recommend returns advice for one record. It always returns a
// recommendation; LLM failures degrade to the keyword fallback.
func (s *Service) Recommend(ctx context.Context, record common.Record) common.Recommendation {
	content := cache.RecordContent(record)
	if rec, ok := s.cachedSingle(ctx, content); ok {
		return rec
	}

	text, score := s.analyze(ctx, record)
	rec := common.Recommendation{
		Content:        text,
		RelevanceScore: score,
		GeneratedBy:    ServiceName,
		CreationDate:   s.now(),
	}

	if payload, err := json.Marshal(rec); err == nil {
		s.cache.Set(ctx, content, payload, cache.PrefixHint, s.opts.CacheTTL)
	}
	s.remember(record, rec)
	return rec
}

// RecommendBatch returns one recommendation per record, in order. A cached
// batch is returned as is; otherwise cached items are reused and only the
// misses are generated. An item that cannot be processed gets a placeholder.
func (s *Service) RecommendBatch(ctx context.Context, records []common.Record) []common.Recommendation {
	batchContent := cache.BatchContent(records)
	if data, ok := s.cache.Get(ctx, batchContent, cache.PrefixHintBatch); ok {
		var cached []common.Recommendation
		if err := json.Unmarshal(data, &cached); err == nil && len(cached) > 0 {
			return cached
		}
	}

	out := make([]common.Recommendation, len(records))
	for i, record := range records {
		rec, err := s.recommendItem(ctx, record)
		if err != nil {
			s.log.Warn("recommendation for record %d failed: %v", i, err)
			rec = common.Recommendation{
				Content:        fmt.Sprintf("Failed to analyze log entry: %v. Manual investigation required. Please check the log format and try again.", err),
				RelevanceScore: 0,
				GeneratedBy:    errorHandlerName,
				CreationDate:   s.now(),
			}
		}
		out[i] = rec
	}

	if payload, err := json.Marshal(out); err == nil {
		s.cache.Set(ctx, batchContent, payload, cache.PrefixHintBatch, s.opts.CacheTTL)
	}
	return out
}

func (s *Service) recommendItem(ctx context.Context, record common.Record) (rec common.Recommendation, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if err := ctx.Err(); err != nil {
		return common.Recommendation{}, err
	}
	return s.Recommend(ctx, record), nil
}

// ProcessJSON decodes a JSON object or array of records and recommends for
// all of them. Undecodable or malformed input is an InputError.
func (s *Service) ProcessJSON(ctx context.Context, data []byte) ([]common.Recommendation, error) {
	records, err := DecodeRecords(data)
	if err != nil {
		return nil, err
	}
	return s.RecommendBatch(ctx, records), nil
}

// DecodeRecords reads one record or a list of records from JSON in any
// supported encoding
func DecodeRecords(data []byte) ([]common.Record, error) {
	text, err := encoding.NewDetector().Decode(data)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace([]byte(text))
	var probe any
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return nil, common.NewInputError("Invalid JSON format", err)
	}

	var records []common.Record
	switch probe.(type) {
	case map[string]any:
		var record common.Record
		if err := json.Unmarshal(trimmed, &record); err != nil {
			return nil, common.NewInputError("invalid log entry", err)
		}
		records = []common.Record{record}
	case []any:
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, common.NewInputError("invalid log entry", err)
		}
	default:
		return nil, common.NewInputError("JSON must contain log entry object(s)", nil)
	}
	return records, nil
}

// History returns the latest recommendations recorded for a source
func (s *Service) History(source string, n int) []history.Turn {
	if s.history == nil {
		return nil
	}
	return s.history.Recent(source, n)
}

// LLMStatus is the result of a connectivity probe
type LLMStatus struct {
	Status string `json:"status"`
	Model  string `json:"model,omitempty"`
	Error  string `json:"error,omitempty"`
}

// TestLLM sends a short prompt to check the model answers
func (s *Service) TestLLM(ctx context.Context) LLMStatus {
	if s.llm == nil {
		return LLMStatus{Status: "LLM connection failed", Error: "no LLM provider configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := s.llm.Complete(ctx, &ai.CompletionRequest{Prompt: probePrompt, Model: s.opts.Model, MaxTokens: 10})
	if err != nil {
		return LLMStatus{Status: "LLM connection failed", Error: err.Error()}
	}
	return LLMStatus{Status: "LLM connected", Model: s.model()}
}

func (s *Service) model() string {
	if s.opts.Model != "" {
		return s.opts.Model
	}
	if m, ok := s.llm.(interface{ Model() string }); ok {
		return m.Model()
	}
	return ""
}

func (s *Service) cachedSingle(ctx context.Context, content string) (common.Recommendation, bool) {
	data, ok := s.cache.Get(ctx, content, cache.PrefixHint)
	if !ok {
		return common.Recommendation{}, false
	}
	var rec common.Recommendation
	if err := json.Unmarshal(data, &rec); err != nil {
		s.log.Debug("discarding unreadable cached recommendation: %v", err)
		return common.Recommendation{}, false
	}
	return rec, true
}

// analyze asks the LLM and falls back to keyword advice on any failure
func (s *Service) analyze(ctx context.Context, record common.Record) (string, float64) {
	if s.llm == nil {
		return Fallback(record)
	}

	prompt := BuildPrompt(record)
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	start := time.Now()
	reply, err := s.complete(ctx, &ai.CompletionRequest{
		Prompt:       prompt.String(),
		SystemPrompt: prompt.SystemPrompt,
		Model:        s.opts.Model,
		MaxTokens:    s.opts.MaxTokens,
		Temperature:  s.opts.Temperature,
		TopP:         s.opts.TopP,
	})
	s.metrics.LLMCall(time.Since(start), err)
	if err != nil {
		s.log.WarnWithFields("LLM call failed, using fallback", []logger.Field{
			logger.F("source", record.Source),
			logger.Error(err),
		})
		return Fallback(record)
	}

	return ParseReply(reply)
}

// complete returns the model's reply, retrying timeouts and network
// errors with exponential backoff within the caller's deadline
func (s *Service) complete(ctx context.Context, req *ai.CompletionRequest) (string, error) {
	var reply string
	attempt := func() error {
		var err error
		reply, err = s.completeOnce(ctx, req)
		if err != nil && !ai.IsRetryableError(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.opts.RetryInterval
	retries := backoff.WithMaxRetries(policy, uint64(max(s.opts.Retries, 0)))

	err := backoff.RetryNotify(attempt, backoff.WithContext(retries, ctx), func(err error, wait time.Duration) {
		s.log.Debug("LLM call failed, retrying in %s: %v", wait, err)
	})
	return reply, err
}

func (s *Service) completeOnce(ctx context.Context, req *ai.CompletionRequest) (string, error) {
	if !s.opts.Stream {
		resp, err := s.llm.Complete(ctx, req)
		if err != nil {
			return "", err
		}
		return resp.Content, nil
	}

	chunks, err := s.llm.CompleteStream(ctx, req)
	if err != nil {
		return "", err
	}
	return ai.Collect(ctx, chunks)
}

func (s *Service) remember(record common.Record, rec common.Recommendation) {
	if s.history == nil {
		return
	}
	at := s.now()
	s.history.Append(record.Source, history.Turn{Role: "user", Content: cache.RecordContent(record), At: at})
	s.history.Append(record.Source, history.Turn{Role: "assistant", Content: rec.Content, At: at})
}

// BuildPrompt renders the analysis prompt for a record
func BuildPrompt(record common.Record) *promptfmt.Prompt {
	return promptfmt.New().
		System(systemPrompt).
		User("Log Details:\n- Level: %s\n- Source: %s\n- Message: %s\n- Problem: %s\n\n"+
			"Provide a brief paragraph that includes:\n"+
			"1. What the problem is\n2. Why it happened\n3. How to fix it immediately\n4. One prevention tip\n\n"+
			"Keep the response under 200 words, use plain text only, no special formatting or characters.\n\n"+
			"Also rate your confidence from 0.0 to 1.0 based on how certain you are about this diagnosis.\n\n"+
			"Respond in JSON format:\n{\"content\": \"Your concise recommendation here...\", \"relevance_score\": 0.85}",
			record.Level, record.Source, record.Message, record.Problem).
		Build()
}
