package providers

import (
	"context"
	"fmt"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

func init() {
	RegisterEmbedder("openai", NewOpenAIEmbedder)
}

const defaultOpenAIModel = "text-embedding-3-small"

// OpenAIEmbedder embeds text with the OpenAI embeddings API, or any server
// speaking the same protocol when "api_url" is set.
type OpenAIEmbedder struct {
	client    *openai.Client
	modelName string
	dimension int
	timeout   time.Duration
}

// NewOpenAIEmbedder creates an OpenAI embedder. Recognised options:
// "api_key" (falls back to OPENAI_API_KEY), "model", "api_url",
// "dimension" and "timeout" (time.Duration).
func NewOpenAIEmbedder(config map[string]interface{}) (Embedder, error) {
	apiKey := stringOption(config, "api_key", os.Getenv("OPENAI_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required for OpenAI embedder")
	}

	cfg := openai.DefaultConfig(apiKey)
	if apiURL := stringOption(config, "api_url", ""); apiURL != "" {
		cfg.BaseURL = apiURL
	}

	e := &OpenAIEmbedder{
		client:    openai.NewClientWithConfig(cfg),
		modelName: stringOption(config, "model", defaultOpenAIModel),
		dimension: intOption(config, "dimension", 0),
		timeout:   30 * time.Second,
	}
	if timeout, ok := config["timeout"].(time.Duration); ok && timeout > 0 {
		e.timeout = timeout
	}
	return e, nil
}

// Embed returns the embedding of a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in one request. Results keep the input order.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req := openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(e.modelName),
	}
	if e.dimension > 0 {
		req.Dimensions = e.dimension
	}
	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("error creating embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	out := make([][]float64, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		out[d.Index] = toFloat64(d.Embedding)
	}
	return out, nil
}

// GetDimension returns the output dimension for the current embedding model.
func (e *OpenAIEmbedder) GetDimension() (int, error) {
	if e.dimension > 0 {
		return e.dimension, nil
	}
	switch e.modelName {
	case "text-embedding-3-small", "text-embedding-ada-002":
		return 1536, nil
	case "text-embedding-3-large":
		return 3072, nil
	default:
		return 0, fmt.Errorf("unknown model: %s", e.modelName)
	}
}
