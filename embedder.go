package docbot

import (
	"github.com/teilomillet/docbot/rag"
	"github.com/teilomillet/docbot/rag/providers"
)

// EmbeddedChunk is a chunk of text together with its vector and metadata.
type EmbeddedChunk = rag.EmbeddedChunk

// EmbedderOption is a function type for configuring the Embedder.
// It follows the functional options pattern to provide a clean and
// flexible configuration API.
type EmbedderOption = rag.EmbedderOption

// SetEmbedderProvider sets the provider for the Embedder.
// Supported providers:
//   - "openai": OpenAI embedding models
//   - "ollama": models served by a local Ollama
//   - "hash": an offline feature-hashing embedder, no model required
//
// Example:
//
//	embedder, err := NewEmbedder(
//	    SetEmbedderProvider("openai"),
//	    SetEmbedderModel("text-embedding-3-small"),
//	)
func SetEmbedderProvider(provider string) EmbedderOption {
	return rag.SetProvider(provider)
}

// SetEmbedderModel sets the specific model to use for embedding.
func SetEmbedderModel(model string) EmbedderOption {
	return rag.SetModel(model)
}

// SetEmbedderAPIKey sets the authentication key for the embedding service.
func SetEmbedderAPIKey(apiKey string) EmbedderOption {
	return rag.SetAPIKey(apiKey)
}

// SetOption sets a provider-specific option, such as "base_url" or
// "dimension".
func SetOption(key string, value interface{}) EmbedderOption {
	return rag.SetOption(key, value)
}

// Embedder interface defines the contract for embedding implementations.
// This allows for different embedding providers to be used interchangeably.
type Embedder = providers.Embedder

// NewEmbedder creates a new Embedder instance based on the provided options.
//
// Returns an error if no provider is specified, the provider is not
// registered, or the provider rejects its configuration.
func NewEmbedder(opts ...EmbedderOption) (Embedder, error) {
	return rag.NewEmbedder(opts...)
}

// EmbeddingService batches and paces embedding requests.
type EmbeddingService = rag.EmbeddingService

// EmbeddingServiceOption configures an EmbeddingService.
type EmbeddingServiceOption = rag.EmbeddingServiceOption

// NewEmbeddingService creates a new embedding service around embedder.
//
// Example:
//
//	embedder, _ := NewEmbedder(SetEmbedderProvider("hash"))
//	service := NewEmbeddingService(embedder, WithEmbedBatchSize(16))
func NewEmbeddingService(embedder Embedder, opts ...EmbeddingServiceOption) *EmbeddingService {
	return rag.NewEmbeddingService(embedder, opts...)
}

// WithRateLimit allows at most rps embedding requests per second.
func WithRateLimit(rps float64, burst int) EmbeddingServiceOption {
	return rag.WithRateLimit(rps, burst)
}

// WithEmbedBatchSize sets how many chunks go into one embedding request.
func WithEmbedBatchSize(n int) EmbeddingServiceOption {
	return rag.WithBatchSize(n)
}

// WithChunkFormatter sets the text that is embedded for a chunk.
func WithChunkFormatter(format func(Chunk) string) EmbeddingServiceOption {
	return rag.WithChunkFormatter(format)
}
