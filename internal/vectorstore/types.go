package vectorstore

import (
	"sync"
)

type entry struct {
	Document
	Vector []float32 `json:"vector"`
}

// MemoryIndexOptions configures the in-memory index
type MemoryIndexOptions struct {
	PersistenceFile string
	MaxDocuments    int
}

// MemoryIndexOption is a function type for configuring MemoryIndex
type MemoryIndexOption func(*MemoryIndexOptions)

// WithPersistence loads the index from filename on creation and saves it on Close
func WithPersistence(filename string) MemoryIndexOption {
	return func(opts *MemoryIndexOptions) {
		opts.PersistenceFile = filename
	}
}

// WithMaxDocuments limits the number of documents per collection
func WithMaxDocuments(n int) MemoryIndexOption {
	return func(opts *MemoryIndexOptions) {
		opts.MaxDocuments = n
	}
}

// MemoryIndex implements Index using in-memory storage
type MemoryIndex struct {
	mu          sync.RWMutex
	collections map[string][]entry
	options     MemoryIndexOptions
}

// TFIDFEncoder implements text encoding using TF-IDF
type TFIDFEncoder struct {
	mu            sync.RWMutex
	dimensions    int
	vocabulary    map[string]int
	idf           []float32
	documentCount int
	fitted        bool
	minWordLength int
	maxWordLength int
	stopWords     map[string]bool
}
