package docbot

import (
	"github.com/teilomillet/docbot/rag"
)

// Chunk represents a piece of text with its token count, its position in the
// source text and the metadata of the document it came from.
type Chunk = rag.Chunk

// Chunker defines the interface for text chunking implementations.
type Chunker = rag.Chunker

// TokenCounter defines the interface for counting tokens in text.
// Different implementations can provide various tokenization strategies,
// from simple word-based counting to model-specific subword tokenization.
type TokenCounter = rag.TokenCounter

// TextChunker groups whole sentences into chunks of a target token size.
type TextChunker = rag.TextChunker

// ChunkerOption is a function type for configuring Chunker instances.
type ChunkerOption = rag.TextChunkerOption

// NewChunker creates a new TextChunker with the given options.
// By default, it creates a TextChunker with:
//   - Chunk size: 200 tokens
//   - Chunk overlap: 50 tokens
//   - Default word-based token counter
//   - Smart sentence splitter
func NewChunker(options ...ChunkerOption) (*TextChunker, error) {
	return rag.NewTextChunker(options...)
}

// ChunkSize sets the target size of each chunk in tokens.
func ChunkSize(size int) ChunkerOption {
	return rag.WithChunkSize(size)
}

// ChunkOverlap sets the number of tokens that should overlap between
// adjacent chunks. This helps maintain context across chunk boundaries
// and improves retrieval quality.
func ChunkOverlap(overlap int) ChunkerOption {
	return rag.WithChunkOverlap(overlap)
}

// WithTokenCounter sets a custom token counter implementation.
func WithTokenCounter(counter TokenCounter) ChunkerOption {
	return rag.WithTokenCounter(counter)
}

// WithSentenceSplitter sets a custom sentence splitter function.
func WithSentenceSplitter(splitter func(string) []string) ChunkerOption {
	return rag.WithSentenceSplitter(splitter)
}

// DefaultSentenceSplitter returns the basic sentence splitter function
// that splits text on common punctuation marks (., !, ?).
func DefaultSentenceSplitter() func(string) []string {
	return rag.DefaultSentenceSplitter
}

// SmartSentenceSplitter returns a splitter that keeps punctuation, respects
// quotes and treats blank lines as boundaries.
func SmartSentenceSplitter() func(string) []string {
	return rag.SmartSentenceSplitter
}

// NewDefaultTokenCounter creates a simple word-based token counter
// that splits text on whitespace.
func NewDefaultTokenCounter() TokenCounter {
	return &rag.DefaultTokenCounter{}
}

// NewTikTokenCounter creates a token counter using the tiktoken library,
// which implements the same tokenization used by OpenAI models.
// The encoding parameter specifies which tokenization model to use
// (e.g., "cl100k_base" for GPT-4, "p50k_base" for GPT-3).
func NewTikTokenCounter(encoding string) (TokenCounter, error) {
	counter, err := rag.NewTikTokenCounter(encoding)
	if err != nil {
		return nil, err
	}
	return counter, nil
}
