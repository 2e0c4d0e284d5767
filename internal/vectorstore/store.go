// Package vectorstore provides text encoders and nearest-neighbour indexes
// for the reference collections used by the field extractors and the
// problem classifier.
package vectorstore

import (
	"context"
	"strings"
)

// Collection names of the reference data
const (
	CollectionProblems   = "problems"
	CollectionTimestamps = "timestamp_patterns"
	CollectionLevels     = "level_patterns"
	CollectionSources    = "source_patterns"
)

// Collections lists every reference collection in bootstrap order
var Collections = []string{CollectionProblems, CollectionTimestamps, CollectionLevels, CollectionSources}

// listSeparator joins multi-valued metadata such as keywords
const listSeparator = "|"

// Encoder maps text to a fixed-dimension vector
type Encoder interface {
	Encode(ctx context.Context, text string) ([]float32, error)
}

// Trainable is implemented by encoders that learn from a corpus
type Trainable interface {
	Fit(documents []string) error
	IsFitted() bool
}

// Document is an entry stored in a collection
type Document struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Match is a query hit. Distance is cosine distance, lower is closer.
type Match struct {
	ID       string
	Document string
	Metadata map[string]string
	Distance float64
}

// Confidence converts the distance into a score clamped to [0, 1]
func (m Match) Confidence() float64 {
	c := 1 - m.Distance
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// Index stores vectors per named collection and answers k-nearest queries
type Index interface {
	Upsert(ctx context.Context, collection string, docs []Document, vectors [][]float32) error
	Query(ctx context.Context, collection string, vector []float32, k int) ([]Match, error)
	Count(ctx context.Context, collection string) (int, error)
	Peek(ctx context.Context, collection string, n int) ([]Document, error)
	Close() error
}

// JoinList encodes a list into a single metadata value
func JoinList(values []string) string {
	return strings.Join(values, listSeparator)
}

// SplitList decodes a metadata value written by JoinList
func SplitList(value string) []string {
	if value == "" {
		return nil
	}
	return strings.Split(value, listSeparator)
}
