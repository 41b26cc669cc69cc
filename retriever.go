package docbot

import (
	"context"
	"fmt"
	"strconv"

	"github.com/teilomillet/docbot/rag"
)

// Retriever finds the chunks most relevant to a query. It runs a dense
// vector search and, when hybrid search is enabled, fuses it with a BM25
// keyword search using reciprocal rank fusion.
type Retriever struct {
	config   *RetrieverConfig
	db       VectorDB
	embed    *EmbeddingService
	sparse   *rag.BM25Index
	reranker *rag.RRFReranker
}

// RetrieverConfig holds settings for the retrieval process.
type RetrieverConfig struct {
	Collection   string
	TopK         int
	MinScore     float64 // applied to dense similarities before fusion
	UseHybrid    bool
	MetricType   string
	SearchParams map[string]interface{}
	DenseWeight  float64
	SparseWeight float64
	RRFConstant  float64
}

// RetrievedChunk is one retrieved chunk with the page it was found on.
type RetrievedChunk struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	DocID     string            `json:"doc_id"`
	FileName  string            `json:"file_name"`
	PageLabel string            `json:"page_label"`
	PageIndex int               `json:"page_index"` // 0 when unknown
	Score     float64           `json:"score"`
	Metadata  map[string]string `json:"metadata"`
}

// RetrieverOption configures the retriever using the functional options pattern.
type RetrieverOption func(*RetrieverConfig)

// WithRetrieveCollection sets the collection name for retrieval operations.
func WithRetrieveCollection(name string) RetrieverOption {
	return func(c *RetrieverConfig) {
		c.Collection = name
	}
}

// WithTopK sets the number of results returned when a call does not set its
// own limit.
func WithTopK(k int) RetrieverOption {
	return func(c *RetrieverConfig) {
		c.TopK = k
	}
}

// WithMinScore sets the minimum similarity score threshold.
// Dense results scoring below it are dropped.
func WithMinScore(score float64) RetrieverOption {
	return func(c *RetrieverConfig) {
		c.MinScore = score
	}
}

// WithHybrid enables or disables hybrid search.
// Hybrid search combines vector similarity with keyword matching and needs a
// sparse index, see NewRetriever.
func WithHybrid(enabled bool) RetrieverOption {
	return func(c *RetrieverConfig) {
		c.UseHybrid = enabled
	}
}

// WithMetricType sets the similarity metric: "COSINE", "IP" or "L2".
func WithMetricType(metric string) RetrieverOption {
	return func(c *RetrieverConfig) {
		c.MetricType = metric
	}
}

// WithSearchParams sets backend-specific search parameters such as the HNSW
// "ef".
func WithSearchParams(params map[string]interface{}) RetrieverOption {
	return func(c *RetrieverConfig) {
		c.SearchParams = params
	}
}

// WithWeights sets the weights of the dense and sparse rankings in hybrid
// search.
func WithWeights(dense, sparse float64) RetrieverOption {
	return func(c *RetrieverConfig) {
		c.DenseWeight = dense
		c.SparseWeight = sparse
	}
}

// WithRRFConstant sets the k of reciprocal rank fusion.
func WithRRFConstant(k float64) RetrieverOption {
	return func(c *RetrieverConfig) {
		c.RRFConstant = k
	}
}

func defaultRetrieverConfig() *RetrieverConfig {
	return &RetrieverConfig{
		Collection:   "docbot",
		TopK:         5,
		MetricType:   "COSINE",
		DenseWeight:  0.5,
		SparseWeight: 0.5,
		RRFConstant:  60,
		SearchParams: map[string]interface{}{
			"ef": 64,
		},
	}
}

// NewRetriever creates a Retriever over db. sparse may be nil unless hybrid
// search is enabled.
//
// Example:
//
//	retriever, err := NewRetriever(db, embeddings, index,
//	    WithRetrieveCollection("docbot"),
//	    WithTopK(5),
//	    WithHybrid(true),
//	)
func NewRetriever(db VectorDB, embed *EmbeddingService, sparse *rag.BM25Index, opts ...RetrieverOption) (*Retriever, error) {
	cfg := defaultRetrieverConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if db == nil || embed == nil {
		return nil, fmt.Errorf("retriever requires a vector store and an embedding service")
	}
	if cfg.UseHybrid && sparse == nil {
		return nil, fmt.Errorf("hybrid search requires a sparse index")
	}
	if cfg.TopK <= 0 {
		return nil, fmt.Errorf("top k must be positive, got %d", cfg.TopK)
	}
	return &Retriever{
		config:   cfg,
		db:       db,
		embed:    embed,
		sparse:   sparse,
		reranker: rag.NewRRFReranker(cfg.RRFConstant),
	}, nil
}

// Config returns the retriever's settings.
func (r *Retriever) Config() RetrieverConfig {
	return *r.config
}

// Retrieve returns up to limit chunks relevant to query, best first. A
// non-positive limit uses the configured TopK. A non-nil filter restricts
// the search to the listed documents.
func (r *Retriever) Retrieve(ctx context.Context, query string, limit int, filter *Filter) ([]RetrievedChunk, error) {
	if limit <= 0 {
		limit = r.config.TopK
	}
	Debug("Retrieving", "query", query, "limit", limit, "hybrid", r.config.UseHybrid)

	exists, err := r.db.HasCollection(ctx, r.config.Collection)
	if err != nil {
		return nil, fmt.Errorf("failed to check collection: %w", err)
	}
	if !exists {
		Warn("Collection does not exist, returning no results", "collection", r.config.Collection)
		return []RetrievedChunk{}, nil
	}

	queryEmbedding, err := r.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to create query embedding: %w", err)
	}

	candidates := limit
	if r.config.UseHybrid {
		candidates = limit * 2
	}
	dense, err := r.db.Search(ctx, r.config.Collection, queryEmbedding, candidates, SearchOptions{
		Filter:     filter,
		MetricType: r.config.MetricType,
		Params:     r.config.SearchParams,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	kept := dense[:0]
	for _, d := range dense {
		if d.Score >= r.config.MinScore {
			kept = append(kept, d)
		}
	}
	results := kept

	if r.config.UseHybrid {
		sparse, err := r.sparse.Search(ctx, query, candidates, filter)
		if err != nil {
			return nil, fmt.Errorf("failed keyword search: %w", err)
		}
		results = r.reranker.Rerank(ctx, kept, sparse, r.config.DenseWeight, r.config.SparseWeight)
	}
	if len(results) > limit {
		results = results[:limit]
	}

	chunks := make([]RetrievedChunk, len(results))
	for i, res := range results {
		chunks[i] = toRetrievedChunk(res)
	}
	Debug("Retrieved chunks", "count", len(chunks))
	return chunks, nil
}

func toRetrievedChunk(res SearchResult) RetrievedChunk {
	c := RetrievedChunk{
		ID:        res.ID,
		Text:      res.Text,
		DocID:     res.DocID,
		Score:     res.Score,
		Metadata:  res.Metadata,
		FileName:  res.Metadata[MetaFileName],
		PageLabel: res.Metadata[MetaPageLabel],
	}
	if c.DocID == "" {
		c.DocID = res.Metadata[MetaDocID]
	}
	if n, err := strconv.Atoi(res.Metadata[MetaPageIndex]); err == nil {
		c.PageIndex = n
	}
	return c
}
