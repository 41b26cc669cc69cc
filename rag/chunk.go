package rag

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Chunk is a piece of a document sized for embedding. Metadata is copied from
// the document it came from, so page labels survive chunking.
type Chunk struct {
	Text          string
	TokenSize     int
	StartSentence int
	EndSentence   int // exclusive
	Index         int
	Metadata      map[string]string
}

// Chunker splits text into chunks.
type Chunker interface {
	Chunk(text string) []Chunk
}

// TokenCounter counts tokens in a string.
type TokenCounter interface {
	Count(text string) int
}

// TextChunker groups whole sentences into chunks of at most ChunkSize tokens,
// repeating about ChunkOverlap tokens of the previous chunk at the start of
// the next one. A sentence longer than ChunkSize becomes a chunk of its own.
type TextChunker struct {
	ChunkSize        int
	ChunkOverlap     int
	TokenCounter     TokenCounter
	SentenceSplitter func(string) []string
}

// TextChunkerOption configures a TextChunker.
type TextChunkerOption func(*TextChunker)

// NewTextChunker creates a TextChunker. Defaults: 200 tokens per chunk, 50
// tokens of overlap, whitespace token counting, SmartSentenceSplitter.
func NewTextChunker(options ...TextChunkerOption) (*TextChunker, error) {
	tc := &TextChunker{
		ChunkSize:        200,
		ChunkOverlap:     50,
		TokenCounter:     &DefaultTokenCounter{},
		SentenceSplitter: SmartSentenceSplitter,
	}
	for _, option := range options {
		option(tc)
	}
	if tc.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", tc.ChunkSize)
	}
	if tc.ChunkOverlap < 0 || tc.ChunkOverlap >= tc.ChunkSize {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", tc.ChunkSize, tc.ChunkOverlap)
	}
	return tc, nil
}

// WithChunkSize sets the target chunk size in tokens.
func WithChunkSize(size int) TextChunkerOption {
	return func(tc *TextChunker) { tc.ChunkSize = size }
}

// WithChunkOverlap sets the overlap between neighbouring chunks in tokens.
func WithChunkOverlap(overlap int) TextChunkerOption {
	return func(tc *TextChunker) { tc.ChunkOverlap = overlap }
}

// WithTokenCounter sets the token counter.
func WithTokenCounter(counter TokenCounter) TextChunkerOption {
	return func(tc *TextChunker) { tc.TokenCounter = counter }
}

// WithSentenceSplitter sets the sentence splitter.
func WithSentenceSplitter(splitter func(string) []string) TextChunkerOption {
	return func(tc *TextChunker) { tc.SentenceSplitter = splitter }
}

// Chunk splits text into chunks.
func (tc *TextChunker) Chunk(text string) []Chunk {
	var sentences []string
	for _, s := range tc.SentenceSplitter(text) {
		if s = strings.TrimSpace(s); s != "" {
			sentences = append(sentences, s)
		}
	}
	if len(sentences) == 0 {
		return nil
	}

	counts := make([]int, len(sentences))
	for i, s := range sentences {
		counts[i] = tc.TokenCounter.Count(s)
	}

	var chunks []Chunk
	start, tokens := 0, 0
	for i := range sentences {
		if tokens+counts[i] > tc.ChunkSize && i > start {
			chunks = append(chunks, tc.build(sentences, counts, start, i, len(chunks)))
			start = tc.overlapStart(counts, start, i)
			tokens = 0
			for j := start; j < i; j++ {
				tokens += counts[j]
			}
			// Drop overlap that would not leave room for the new sentence.
			for start < i && tokens+counts[i] > tc.ChunkSize {
				tokens -= counts[start]
				start++
			}
		}
		tokens += counts[i]
	}
	chunks = append(chunks, tc.build(sentences, counts, start, len(sentences), len(chunks)))
	return chunks
}

// ChunkDocument chunks doc.Content and copies doc.Metadata onto every chunk.
func (tc *TextChunker) ChunkDocument(doc Document) []Chunk {
	chunks := tc.Chunk(doc.Content)
	for i := range chunks {
		meta := make(map[string]string, len(doc.Metadata))
		for k, v := range doc.Metadata {
			meta[k] = v
		}
		chunks[i].Metadata = meta
	}
	return chunks
}

func (tc *TextChunker) build(sentences []string, counts []int, start, end, index int) Chunk {
	size := 0
	for _, c := range counts[start:end] {
		size += c
	}
	return Chunk{
		Text:          strings.Join(sentences[start:end], " "),
		TokenSize:     size,
		StartSentence: start,
		EndSentence:   end,
		Index:         index,
	}
}

// overlapStart walks back from end until ChunkOverlap tokens are covered,
// never reaching the start of the previous chunk.
func (tc *TextChunker) overlapStart(counts []int, prevStart, end int) int {
	if tc.ChunkOverlap == 0 {
		return end
	}
	tokens := 0
	i := end
	for i > prevStart+1 && tokens < tc.ChunkOverlap {
		i--
		tokens += counts[i]
	}
	return i
}

// DefaultSentenceSplitter splits on '.', '!' and '?', dropping the marks.
func DefaultSentenceSplitter(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
}

// SmartSentenceSplitter splits after '.', '!' and '?' outside double quotes
// and at blank lines, keeping the punctuation with its sentence.
func SmartSentenceSplitter(text string) []string {
	var sentences []string
	var current strings.Builder
	inQuote := false
	runes := []rune(text)

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}

	for i, r := range runes {
		if r == '\n' && i+1 < len(runes) && runes[i+1] == '\n' {
			flush()
			continue
		}
		current.WriteRune(r)
		if r == '"' {
			inQuote = !inQuote
		}
		if (r == '.' || r == '!' || r == '?') && !inQuote {
			if i+1 == len(runes) || runes[i+1] == ' ' || runes[i+1] == '\n' {
				flush()
			}
		}
	}
	flush()
	return sentences
}

// DefaultTokenCounter approximates tokens by whitespace separated words.
type DefaultTokenCounter struct{}

func (dtc *DefaultTokenCounter) Count(text string) int {
	return len(strings.Fields(text))
}

// TikTokenCounter counts tokens with an OpenAI tiktoken encoding such as
// "cl100k_base".
type TikTokenCounter struct {
	tke *tiktoken.Tiktoken
}

// NewTikTokenCounter loads the named encoding. The first call for an encoding
// downloads its vocabulary.
func NewTikTokenCounter(encoding string) (*TikTokenCounter, error) {
	tke, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get encoding: %w", err)
	}
	return &TikTokenCounter{tke: tke}, nil
}

func (ttc *TikTokenCounter) Count(text string) int {
	return len(ttc.tke.Encode(text, nil, nil))
}
