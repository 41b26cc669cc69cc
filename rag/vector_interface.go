package rag

import (
	"context"
	"fmt"
	"time"
)

// VectorDB is the storage contract shared by the memory, chromem and milvus
// backends. Scores in results are similarities: higher means closer.
type VectorDB interface {
	Connect(ctx context.Context) error
	Close() error
	HasCollection(ctx context.Context, name string) (bool, error)
	DropCollection(ctx context.Context, name string) error
	CreateCollection(ctx context.Context, name string, schema Schema) error
	Insert(ctx context.Context, collectionName string, data []Record) error
	// Delete removes every record whose doc_id is listed in filter.
	Delete(ctx context.Context, collectionName string, filter Filter) error
	Flush(ctx context.Context, collectionName string) error
	CreateIndex(ctx context.Context, collectionName, field string, index Index) error
	LoadCollection(ctx context.Context, name string) error
	Search(ctx context.Context, collectionName string, vector Vector, topK int, opts SearchOptions) ([]SearchResult, error)
}

// Filter is a context filter: it restricts an operation to the records of
// the listed documents. A nil *Filter means no restriction; a Filter with no
// DocIDs matches nothing.
type Filter struct {
	DocIDs []string
}

// Matches reports whether a record of docID passes the filter.
func (f *Filter) Matches(docID string) bool {
	if f == nil {
		return true
	}
	for _, id := range f.DocIDs {
		if id == docID {
			return true
		}
	}
	return false
}

// SearchOptions tunes a Search call.
type SearchOptions struct {
	Filter     *Filter
	MetricType string // "IP", "L2" or "COSINE"; backends pick a default when empty
	Params     map[string]interface{}
}

type Schema struct {
	Name        string
	Description string
	Dimension   int
}

type Vector []float64

// Record is one stored chunk.
type Record struct {
	ID       string
	DocID    string
	Vector   Vector
	Text     string
	Metadata map[string]string
}

type Index struct {
	Type       string
	Metric     string
	Parameters map[string]interface{}
}

type SearchResult struct {
	ID       string
	DocID    string
	Score    float64
	Text     string
	Metadata map[string]string
}

// Config selects and configures a VectorDB backend.
type Config struct {
	Type       string
	Address    string
	Dimension  int
	Timeout    time.Duration
	Parameters map[string]interface{}
}

// NewVectorDB returns the backend named by cfg.Type.
func NewVectorDB(cfg *Config) (VectorDB, error) {
	var db VectorDB
	var err error
	switch cfg.Type {
	case "milvus":
		db, err = newMilvusDB(cfg)
	case "memory", "":
		db, err = newMemoryDB(cfg)
	case "chromem":
		db, err = newChromemDB(cfg)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
	if err != nil {
		return nil, err
	}
	return db, nil
}
