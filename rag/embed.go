package rag

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/teilomillet/docbot/rag/providers"
)

// EmbedderConfig holds the configuration for creating an Embedder
type EmbedderConfig struct {
	Provider string
	Options  map[string]interface{}
}

// EmbedderOption is a function type for configuring the EmbedderConfig
type EmbedderOption func(*EmbedderConfig)

// SetProvider sets the provider for the Embedder
func SetProvider(provider string) EmbedderOption {
	return func(c *EmbedderConfig) {
		c.Provider = provider
	}
}

// SetModel sets the model for the Embedder
func SetModel(model string) EmbedderOption {
	return func(c *EmbedderConfig) {
		c.Options["model"] = model
	}
}

// SetAPIKey sets the API key for the Embedder
func SetAPIKey(apiKey string) EmbedderOption {
	return func(c *EmbedderConfig) {
		c.Options["api_key"] = apiKey
	}
}

// SetOption sets a custom option for the Embedder
func SetOption(key string, value interface{}) EmbedderOption {
	return func(c *EmbedderConfig) {
		c.Options[key] = value
	}
}

// NewEmbedder creates a new Embedder instance based on the provided options
func NewEmbedder(opts ...EmbedderOption) (providers.Embedder, error) {
	config := &EmbedderConfig{
		Options: make(map[string]interface{}),
	}
	for _, opt := range opts {
		opt(config)
	}
	if config.Provider == "" {
		return nil, fmt.Errorf("provider must be specified")
	}
	factory, err := providers.GetEmbedderFactory(config.Provider)
	if err != nil {
		return nil, err
	}
	return factory(config.Options)
}

// EmbeddedChunk is a chunk together with its vector.
type EmbeddedChunk struct {
	Text      string            `json:"text"`
	Embedding []float64         `json:"embedding"`
	Metadata  map[string]string `json:"metadata"`
}

// EmbeddingService turns chunks into vectors, batching requests when the
// backend supports it and pacing them with a token bucket.
type EmbeddingService struct {
	embedder  providers.Embedder
	limiter   *rate.Limiter
	batchSize int
	format    func(Chunk) string
}

// EmbeddingServiceOption configures an EmbeddingService.
type EmbeddingServiceOption func(*EmbeddingService)

// WithRateLimit allows at most rps requests per second with the given burst.
// A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) EmbeddingServiceOption {
	return func(s *EmbeddingService) {
		if rps <= 0 {
			s.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithBatchSize sets how many chunks go into one request.
func WithBatchSize(n int) EmbeddingServiceOption {
	return func(s *EmbeddingService) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithChunkFormatter sets the function producing the text that is embedded
// for a chunk. The default embeds chunk.Text unchanged.
func WithChunkFormatter(format func(Chunk) string) EmbeddingServiceOption {
	return func(s *EmbeddingService) {
		if format != nil {
			s.format = format
		}
	}
}

// NewEmbeddingService creates a new embedding service around embedder.
func NewEmbeddingService(embedder providers.Embedder, opts ...EmbeddingServiceOption) *EmbeddingService {
	s := &EmbeddingService{
		embedder:  embedder,
		batchSize: 32,
		format:    func(c Chunk) string { return c.Text },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Embedder returns the wrapped embedder.
func (s *EmbeddingService) Embedder() providers.Embedder {
	return s.embedder
}

// Embed embeds a single query text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return s.embedder.Embed(ctx, text)
}

// EmbedChunks embeds chunks and keeps their metadata.
func (s *EmbeddingService) EmbedChunks(ctx context.Context, chunks []Chunk) ([]EmbeddedChunk, error) {
	GlobalLogger.Debug("Embedding chunks", "count", len(chunks))
	out := make([]EmbeddedChunk, 0, len(chunks))
	batcher, canBatch := s.embedder.(providers.BatchEmbedder)

	for start := 0; start < len(chunks); start += s.batchSize {
		end := start + s.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]
		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = s.format(c)
		}

		var vectors [][]float64
		if canBatch {
			if err := s.wait(ctx); err != nil {
				return nil, err
			}
			v, err := batcher.EmbedBatch(ctx, texts)
			if err != nil {
				return nil, fmt.Errorf("error embedding chunks %d-%d: %w", start+1, end, err)
			}
			vectors = v
		} else {
			vectors = make([][]float64, len(texts))
			for i, text := range texts {
				v, err := s.Embed(ctx, text)
				if err != nil {
					return nil, fmt.Errorf("error embedding chunk %d: %w", start+i+1, err)
				}
				vectors[i] = v
			}
		}

		for i, c := range batch {
			out = append(out, EmbeddedChunk{Text: c.Text, Embedding: vectors[i], Metadata: c.Metadata})
		}
	}
	return out, nil
}

func (s *EmbeddingService) wait(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}
