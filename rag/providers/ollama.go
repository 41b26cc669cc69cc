package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	ollama "github.com/ollama/ollama/api"
)

func init() {
	RegisterEmbedder("ollama", NewOllamaEmbedder)
}

const defaultOllamaModel = "nomic-embed-text"

// OllamaEmbedder embeds text with a local Ollama server.
type OllamaEmbedder struct {
	client *ollama.Client
	model  string

	mu        sync.Mutex
	dimension int
}

// NewOllamaEmbedder creates an Ollama embedder. Recognised options: "model",
// "host" (falls back to OLLAMA_HOST, then localhost) and "dimension".
func NewOllamaEmbedder(config map[string]interface{}) (Embedder, error) {
	host := stringOption(config, "host", os.Getenv("OLLAMA_HOST"))
	if host == "" {
		host = "http://localhost:11434"
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}
	return &OllamaEmbedder{
		client:    ollama.NewClient(u, &http.Client{Timeout: 60 * time.Second}),
		model:     stringOption(config, "model", defaultOllamaModel),
		dimension: intOption(config, "dimension", 0),
	}, nil
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	res, err := e.client.Embed(ctx, &ollama.EmbedRequest{
		Model: e.model,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if res == nil || len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned no embeddings for model %s", e.model)
	}
	out := make([][]float64, len(res.Embeddings))
	for i, v := range res.Embeddings {
		out[i] = toFloat64(v)
	}

	e.mu.Lock()
	if e.dimension == 0 && len(out[0]) > 0 {
		e.dimension = len(out[0])
	}
	e.mu.Unlock()
	return out, nil
}

// GetDimension reports the configured dimension, or the one observed on the
// first successful request.
func (e *OllamaEmbedder) GetDimension() (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dimension == 0 {
		return 0, fmt.Errorf("dimension of %s unknown until the first request", e.model)
	}
	return e.dimension, nil
}
