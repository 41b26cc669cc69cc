package rag

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// BM25Parameters holds the parameters for BM25 scoring
type BM25Parameters struct {
	K1 float64 // Term saturation parameter (typically 1.2-2.0)
	B  float64 // Length normalization parameter (typically 0.75)
}

// DefaultBM25Parameters returns default BM25 parameters
func DefaultBM25Parameters() BM25Parameters {
	return BM25Parameters{
		K1: 1.5,
		B:  0.75,
	}
}

// BM25Index is an in-process keyword index over chunk records. It backs the
// sparse half of hybrid retrieval.
type BM25Index struct {
	mu           sync.RWMutex
	docs         map[string]Record         // record by chunk ID
	termFreq     map[string]map[string]int // term frequency per chunk
	docFreq      map[string]int            // chunk frequency per term
	docLength    map[string]int
	totalLength  int
	params       BM25Parameters
	preprocessor func(string) []string
}

// NewBM25Index creates a new BM25 index with default parameters
func NewBM25Index() *BM25Index {
	return &BM25Index{
		docs:         make(map[string]Record),
		termFreq:     make(map[string]map[string]int),
		docFreq:      make(map[string]int),
		docLength:    make(map[string]int),
		params:       DefaultBM25Parameters(),
		preprocessor: defaultPreprocessor,
	}
}

// defaultPreprocessor lowercases and splits on anything that is not a letter
// or a digit.
func defaultPreprocessor(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// Add indexes a record, replacing any record with the same ID. The vector is
// not kept.
func (idx *BM25Index) Add(ctx context.Context, record Record) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.remove(record.ID)
	record.Vector = nil
	idx.docs[record.ID] = record

	terms := idx.preprocessor(record.Text)
	termFreq := make(map[string]int)
	for _, term := range terms {
		termFreq[term]++
	}
	idx.termFreq[record.ID] = termFreq
	idx.docLength[record.ID] = len(terms)
	idx.totalLength += len(terms)
	for term := range termFreq {
		idx.docFreq[term]++
	}
	return nil
}

// Remove drops a single chunk.
func (idx *BM25Index) Remove(ctx context.Context, id string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.remove(id)
	return nil
}

// RemoveDocs drops every chunk belonging to the documents in filter.
func (idx *BM25Index) RemoveDocs(ctx context.Context, filter Filter) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for id, record := range idx.docs {
		if filter.Matches(record.DocID) {
			idx.remove(id)
		}
	}
	return nil
}

func (idx *BM25Index) remove(id string) {
	termFreq, exists := idx.termFreq[id]
	if !exists {
		return
	}
	for term := range termFreq {
		idx.docFreq[term]--
		if idx.docFreq[term] == 0 {
			delete(idx.docFreq, term)
		}
	}
	idx.totalLength -= idx.docLength[id]
	delete(idx.docs, id)
	delete(idx.termFreq, id)
	delete(idx.docLength, id)
}

// Len returns the number of indexed chunks.
func (idx *BM25Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docs)
}

// Search performs BM25 search over the chunks passing filter.
func (idx *BM25Index) Search(ctx context.Context, query string, topK int, filter *Filter) ([]SearchResult, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	total := len(idx.docs)
	if total == 0 {
		return nil, nil
	}
	avgDocLength := float64(idx.totalLength) / float64(total)
	if avgDocLength == 0 {
		avgDocLength = 1
	}

	scores := make(map[string]float64)
	for _, term := range idx.preprocessor(query) {
		df, exists := idx.docFreq[term]
		if !exists {
			continue
		}
		idf := math.Log(1 + (float64(total)-float64(df)+0.5)/(float64(df)+0.5))

		for id, docTerms := range idx.termFreq {
			tf, ok := docTerms[term]
			if !ok || !filter.Matches(idx.docs[id].DocID) {
				continue
			}
			docLen := float64(idx.docLength[id])
			numerator := float64(tf) * (idx.params.K1 + 1)
			denominator := float64(tf) + idx.params.K1*(1-idx.params.B+idx.params.B*docLen/avgDocLength)
			scores[id] += idf * numerator / denominator
		}
	}

	results := make([]SearchResult, 0, len(scores))
	for id, score := range scores {
		record := idx.docs[id]
		results = append(results, SearchResult{
			ID:       id,
			DocID:    record.DocID,
			Score:    score,
			Text:     record.Text,
			Metadata: record.Metadata,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score == results[j].Score {
			return results[i].ID < results[j].ID
		}
		return results[i].Score > results[j].Score
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// SetParameters updates the BM25 parameters
func (idx *BM25Index) SetParameters(params BM25Parameters) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.params = params
}

// SetPreprocessor sets a custom text preprocessing function. Call it before
// adding records.
func (idx *BM25Index) SetPreprocessor(preprocessor func(string) []string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.preprocessor = preprocessor
}
