// Package cache stores parse results and recommendations in Redis, keyed by
// a hash of their input. Every failure degrades to a miss.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/yildizm/logsift/internal/common"
)

// Key prefixes
const (
	PrefixParse     = "log_parse"
	PrefixHint      = "hint"
	PrefixHintBatch = "hint_batch"

	// DefaultClearPattern is used when Clear is called without a pattern
	DefaultClearPattern = PrefixParse + ":*"

	// HintClearPattern matches single and batch recommendations
	HintClearPattern = PrefixHint + "*"
)

// Status values reported by Stats
const (
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
	StatusError        = "error"
)

// Gateway is a content-addressed byte cache
type Gateway interface {
	// Get returns the payload stored for content under prefix
	Get(ctx context.Context, content, prefix string) ([]byte, bool)
	// Set stores payload for content under prefix with the given lifetime
	Set(ctx context.Context, content string, payload []byte, prefix string, ttl time.Duration)
	Stats(ctx context.Context) Stats
	// Clear deletes every key matching pattern and returns how many were removed
	Clear(ctx context.Context, pattern string) (int, error)
	Connected() bool
	Close() error
}

// Stats describes the backing store
type Stats struct {
	Status     string  `json:"status"`
	DB         int     `json:"db"`
	UsedMemory string  `json:"used_memory,omitempty"`
	Keys       int64   `json:"keys"`
	HintKeys   int     `json:"hint_keys"`
	BatchKeys  int     `json:"batch_keys"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
	Error      string  `json:"error,omitempty"`
}

// Key derives the cache key of content: prefix, a colon and the first 16
// hex digits of its SHA-256
func Key(prefix, content string) string {
	sum := sha256.Sum256([]byte(content))
	return prefix + ":" + hex.EncodeToString(sum[:])[:16]
}

// RecordContent is the hashed identity of a record for the single
// recommendation cache
func RecordContent(r common.Record) string {
	return fmt.Sprintf("%s:%s:%s:%s", r.Level, r.Source, r.Message, r.Problem)
}

// BatchContent is the hashed identity of a batch of records. Messages are
// cut to 100 characters and problems to 50.
func BatchContent(records []common.Record) string {
	parts := make([]string, len(records))
	for i, r := range records {
		parts[i] = fmt.Sprintf("%s:%s:%s:%s", r.Level, r.Source, truncate(r.Message, 100), truncate(r.Problem, 50))
	}
	return strings.Join(parts, "|")
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// NoopGateway is used when Redis is unreachable
type NoopGateway struct{}

func (NoopGateway) Get(context.Context, string, string) ([]byte, bool) { return nil, false }
func (NoopGateway) Set(context.Context, string, []byte, string, time.Duration) {}
func (NoopGateway) Stats(context.Context) Stats { return Stats{Status: StatusDisconnected} }
func (NoopGateway) Clear(context.Context, string) (int, error) { return 0, nil }
func (NoopGateway) Connected() bool { return false }
func (NoopGateway) Close() error { return nil }
