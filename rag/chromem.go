package rag

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/philippgille/chromem-go"
)

// ChromemDB stores chunks in chromem-go, an embedded vector database. With an
// Address it persists to that directory; otherwise it lives in memory.
// Vectors are always computed by docbot before insertion.
type ChromemDB struct {
	db          *chromem.DB
	collections map[string]*chromem.Collection
	mu          sync.RWMutex
}

var errPrecomputedOnly = errors.New("chromem collections in docbot only accept precomputed embeddings")

func precomputedOnly(ctx context.Context, text string) ([]float32, error) {
	return nil, errPrecomputedOnly
}

func newChromemDB(cfg *Config) (*ChromemDB, error) {
	var db *chromem.DB
	if cfg.Address != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Address), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory for ChromemDB: %w", err)
		}
		GlobalLogger.Debug("Opening persistent ChromemDB", "path", cfg.Address)
		var err error
		db, err = chromem.NewPersistentDB(cfg.Address, false)
		if err != nil {
			return nil, fmt.Errorf("failed to create persistent ChromemDB: %w", err)
		}
	} else {
		GlobalLogger.Debug("Creating in-memory ChromemDB")
		db = chromem.NewDB()
	}

	return &ChromemDB{
		db:          db,
		collections: make(map[string]*chromem.Collection),
	}, nil
}

func (c *ChromemDB) Connect(ctx context.Context) error { return nil }

func (c *ChromemDB) Close() error { return nil }

func (c *ChromemDB) collection(name string) *chromem.Collection {
	c.mu.RLock()
	col, ok := c.collections[name]
	c.mu.RUnlock()
	if ok {
		return col
	}
	col = c.db.GetCollection(name, precomputedOnly)
	if col != nil {
		c.mu.Lock()
		c.collections[name] = col
		c.mu.Unlock()
	}
	return col
}

func (c *ChromemDB) HasCollection(ctx context.Context, name string) (bool, error) {
	return c.collection(name) != nil, nil
}

func (c *ChromemDB) DropCollection(ctx context.Context, name string) error {
	c.mu.Lock()
	delete(c.collections, name)
	c.mu.Unlock()
	if err := c.db.DeleteCollection(name); err != nil {
		return fmt.Errorf("failed to drop collection %s: %w", name, err)
	}
	return nil
}

func (c *ChromemDB) CreateCollection(ctx context.Context, name string, schema Schema) error {
	col, err := c.db.GetOrCreateCollection(name, map[string]string{"description": schema.Description}, precomputedOnly)
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", name, err)
	}
	c.mu.Lock()
	c.collections[name] = col
	c.mu.Unlock()
	return nil
}

func (c *ChromemDB) Insert(ctx context.Context, collectionName string, data []Record) error {
	col := c.collection(collectionName)
	if col == nil {
		return fmt.Errorf("collection %s does not exist", collectionName)
	}

	docs := make([]chromem.Document, 0, len(data))
	for _, record := range data {
		if len(record.Vector) == 0 {
			return fmt.Errorf("record %s has no embedding", record.ID)
		}
		meta := make(map[string]string, len(record.Metadata)+1)
		for k, v := range record.Metadata {
			meta[k] = v
		}
		meta[MetaDocID] = record.DocID
		docs = append(docs, chromem.Document{
			ID:        record.ID,
			Content:   record.Text,
			Metadata:  meta,
			Embedding: toFloat32Slice(record.Vector),
		})
	}

	for _, doc := range docs {
		if err := col.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("failed to insert document %s: %w", doc.ID, err)
		}
	}
	GlobalLogger.Debug("Inserted documents into chromem", "collection", collectionName, "count", len(docs))
	return nil
}

func (c *ChromemDB) Delete(ctx context.Context, collectionName string, filter Filter) error {
	col := c.collection(collectionName)
	if col == nil {
		return fmt.Errorf("collection %s does not exist", collectionName)
	}
	for _, id := range filter.DocIDs {
		if err := col.Delete(ctx, map[string]string{MetaDocID: id}, nil); err != nil {
			return fmt.Errorf("failed to delete doc %s: %w", id, err)
		}
	}
	return nil
}

func (c *ChromemDB) Flush(ctx context.Context, collectionName string) error { return nil }

func (c *ChromemDB) CreateIndex(ctx context.Context, collectionName, field string, index Index) error {
	return nil
}

func (c *ChromemDB) LoadCollection(ctx context.Context, name string) error {
	if c.collection(name) == nil {
		return fmt.Errorf("collection %s not found", name)
	}
	return nil
}

// Search runs a cosine similarity query. chromem only filters on equality, so
// a filter with several doc IDs issues one query per document and merges.
func (c *ChromemDB) Search(ctx context.Context, collectionName string, vector Vector, topK int, opts SearchOptions) ([]SearchResult, error) {
	col := c.collection(collectionName)
	if col == nil {
		return nil, fmt.Errorf("collection %s not found", collectionName)
	}
	query := toFloat32Slice(vector)

	wheres := []map[string]string{nil}
	if opts.Filter != nil {
		wheres = wheres[:0]
		for _, id := range opts.Filter.DocIDs {
			wheres = append(wheres, map[string]string{MetaDocID: id})
		}
	}

	var results []SearchResult
	for _, where := range wheres {
		n := topK
		if count := col.Count(); n <= 0 || n > count {
			n = count
		}
		if n == 0 {
			continue
		}
		found, err := col.QueryEmbedding(ctx, query, n, where, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to search documents: %w", err)
		}
		for _, r := range found {
			meta := make(map[string]string, len(r.Metadata))
			for k, v := range r.Metadata {
				meta[k] = v
			}
			results = append(results, SearchResult{
				ID:       r.ID,
				DocID:    meta[MetaDocID],
				Score:    float64(r.Similarity),
				Text:     r.Content,
				Metadata: meta,
			})
		}
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func toFloat32Slice(v Vector) []float32 {
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = float32(val)
	}
	return result
}
