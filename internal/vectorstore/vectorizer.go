package vectorstore

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/yildizm/logsift/internal/common"
)

var (
	nonWordRegex = regexp.MustCompile(`[^\p{L}\p{N}]+`)
	digitsRegex  = regexp.MustCompile(`^\d+$`)
)

// NewTFIDFEncoder creates a TF-IDF encoder with the given vocabulary size
func NewTFIDFEncoder(dimensions int) *TFIDFEncoder {
	return &TFIDFEncoder{
		dimensions:    dimensions,
		vocabulary:    make(map[string]int),
		minWordLength: 2,
		maxWordLength: 50,
		stopWords:     getDefaultStopWords(),
	}
}

// Dimension returns the vector dimension
func (v *TFIDFEncoder) Dimension() int {
	return v.dimensions
}

// Fit trains the encoder on a corpus of documents
func (v *TFIDFEncoder) Fit(documents []string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if len(documents) == 0 {
		return fmt.Errorf("cannot fit on empty document corpus")
	}

	v.vocabulary = make(map[string]int)
	v.idf = nil
	v.documentCount = len(documents)
	v.fitted = false

	wordDocCounts := make(map[string]int)
	for _, doc := range documents {
		uniqueWords := make(map[string]bool)
		for _, word := range v.tokenize(doc) {
			if v.isValidWord(word) {
				uniqueWords[word] = true
			}
		}
		for word := range uniqueWords {
			wordDocCounts[word]++
		}
	}

	type wordFreq struct {
		word  string
		count int
	}

	wordFreqs := make([]wordFreq, 0, len(wordDocCounts))
	for word, count := range wordDocCounts {
		wordFreqs = append(wordFreqs, wordFreq{word: word, count: count})
	}

	// most common words first; ties broken alphabetically so refits are reproducible
	sort.Slice(wordFreqs, func(i, j int) bool {
		if wordFreqs[i].count != wordFreqs[j].count {
			return wordFreqs[i].count > wordFreqs[j].count
		}
		return wordFreqs[i].word < wordFreqs[j].word
	})

	vocabSize := v.dimensions
	if len(wordFreqs) < vocabSize {
		vocabSize = len(wordFreqs)
	}
	for i := 0; i < vocabSize; i++ {
		v.vocabulary[wordFreqs[i].word] = i
	}

	v.idf = make([]float32, len(v.vocabulary))
	for word, index := range v.vocabulary {
		v.idf[index] = float32(math.Log(float64(v.documentCount) / float64(wordDocCounts[word])))
	}

	v.fitted = true
	return nil
}

// Encode converts text to a TF-IDF vector. Text with no known words
// yields the zero vector.
func (v *TFIDFEncoder) Encode(_ context.Context, text string) ([]float32, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if !v.fitted {
		return nil, common.ErrNotFitted
	}

	vector := make([]float32, v.dimensions)

	wordCounts := make(map[string]int)
	totalWords := 0
	for _, word := range v.tokenize(text) {
		if !v.isValidWord(word) {
			continue
		}
		wordCounts[word]++
		totalWords++
	}

	if totalWords == 0 {
		return vector, nil
	}

	for word, count := range wordCounts {
		if index, exists := v.vocabulary[word]; exists {
			tf := float32(count) / float32(totalWords)
			vector[index] = tf * v.idf[index]
		}
	}

	return vector, nil
}

// tokenize lowercases text and splits it on anything that is not a letter or digit
func (v *TFIDFEncoder) tokenize(text string) []string {
	return strings.Fields(nonWordRegex.ReplaceAllString(strings.ToLower(text), " "))
}

func (v *TFIDFEncoder) isValidWord(word string) bool {
	if len(word) < v.minWordLength || len(word) > v.maxWordLength {
		return false
	}
	if v.stopWords[word] {
		return false
	}
	return !digitsRegex.MatchString(word)
}

// getDefaultStopWords returns a set of common English stop words
func getDefaultStopWords() map[string]bool {
	stopWords := []string{
		"a", "an", "and", "are", "as", "at", "be", "been", "by", "for", "from",
		"has", "he", "in", "is", "it", "its", "of", "on", "that", "the", "to",
		"was", "will", "with", "this", "but", "they", "have", "had",
		"what", "said", "each", "which", "she", "do", "how", "their", "if",
		"up", "out", "many", "then", "them", "these", "so", "some", "her",
		"would", "make", "like", "him", "into", "time", "two", "more", "go",
		"no", "way", "could", "my", "than", "first", "call", "who",
		"oil", "sit", "now", "find", "down", "day", "did", "get", "come",
		"made", "may", "part",
	}

	stopWordSet := make(map[string]bool, len(stopWords))
	for _, word := range stopWords {
		stopWordSet[word] = true
	}
	return stopWordSet
}

// VocabularySize returns the current vocabulary size
func (v *TFIDFEncoder) VocabularySize() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.vocabulary)
}

// IsFitted returns whether the encoder has been fitted
func (v *TFIDFEncoder) IsFitted() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.fitted
}
