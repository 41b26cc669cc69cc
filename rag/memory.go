package rag

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryDB implements VectorDB with in-process linear search. It is the
// default backend for local use and tests.
type MemoryDB struct {
	collections map[string]*Collection
	mu          sync.RWMutex
}

// Collection is a named set of records in a MemoryDB.
type Collection struct {
	Schema Schema
	Data   []Record
}

func newMemoryDB(cfg *Config) (*MemoryDB, error) {
	return &MemoryDB{
		collections: make(map[string]*Collection),
	}, nil
}

func (m *MemoryDB) Connect(ctx context.Context) error { return nil }

func (m *MemoryDB) Close() error { return nil }

func (m *MemoryDB) HasCollection(ctx context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.collections[name]
	return exists, nil
}

func (m *MemoryDB) DropCollection(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections, name)
	return nil
}

// CreateCollection creates a new collection with the specified schema.
// Returns an error if a collection with the same name already exists.
func (m *MemoryDB) CreateCollection(ctx context.Context, name string, schema Schema) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.collections[name]; exists {
		return fmt.Errorf("collection %s already exists", name)
	}
	m.collections[name] = &Collection{Schema: schema}
	return nil
}

// Insert adds records to a collection. Vectors must match the schema
// dimension when one is set.
func (m *MemoryDB) Insert(ctx context.Context, collectionName string, data []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	collection, exists := m.collections[collectionName]
	if !exists {
		return fmt.Errorf("collection %s does not exist", collectionName)
	}
	if dim := collection.Schema.Dimension; dim > 0 {
		for _, r := range data {
			if len(r.Vector) != dim {
				return fmt.Errorf("record %s has dimension %d, collection expects %d", r.ID, len(r.Vector), dim)
			}
		}
	}
	collection.Data = append(collection.Data, data...)
	return nil
}

func (m *MemoryDB) Delete(ctx context.Context, collectionName string, filter Filter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	collection, exists := m.collections[collectionName]
	if !exists {
		return fmt.Errorf("collection %s does not exist", collectionName)
	}
	kept := collection.Data[:0]
	for _, r := range collection.Data {
		if !filter.Matches(r.DocID) {
			kept = append(kept, r)
		}
	}
	collection.Data = kept
	return nil
}

func (m *MemoryDB) Flush(ctx context.Context, collectionName string) error { return nil }

func (m *MemoryDB) CreateIndex(ctx context.Context, collectionName, field string, index Index) error {
	return nil
}

func (m *MemoryDB) LoadCollection(ctx context.Context, name string) error { return nil }

// Search scores every record passing the filter and returns the topK best.
func (m *MemoryDB) Search(ctx context.Context, collectionName string, vector Vector, topK int, opts SearchOptions) ([]SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	collection, exists := m.collections[collectionName]
	if !exists {
		return nil, fmt.Errorf("collection %s does not exist", collectionName)
	}

	var results []SearchResult
	for _, record := range collection.Data {
		if !opts.Filter.Matches(record.DocID) {
			continue
		}
		if len(record.Vector) != len(vector) {
			continue
		}
		results = append(results, SearchResult{
			ID:       record.ID,
			DocID:    record.DocID,
			Score:    similarity(vector, record.Vector, opts.MetricType),
			Text:     record.Text,
			Metadata: record.Metadata,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// similarity maps each metric onto "higher is closer". L2 distances become
// 1/(1+d).
func similarity(a, b Vector, metricType string) float64 {
	switch metricType {
	case "L2":
		var sum float64
		for i := range a {
			diff := a[i] - b[i]
			sum += diff * diff
		}
		return 1 / (1 + math.Sqrt(sum))
	case "IP":
		var sum float64
		for i := range a {
			sum += a[i] * b[i]
		}
		return sum
	default:
		var dot, na, nb float64
		for i := range a {
			dot += a[i] * b[i]
			na += a[i] * a[i]
			nb += b[i] * b[i]
		}
		if na == 0 || nb == 0 {
			return 0
		}
		return dot / (math.Sqrt(na) * math.Sqrt(nb))
	}
}
