package docbot

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/teilomillet/docbot/internal/testpdf"
	"github.com/teilomillet/docbot/rag"
)

type fixture struct {
	registry  *Registry
	db        VectorDB
	embed     *EmbeddingService
	sparse    *rag.BM25Index
	ingest    *IngestService
	retriever *Retriever
	upload    string
}

func newFixture(t *testing.T, retrieverOpts ...RetrieverOption) *fixture {
	t.Helper()
	registry, err := OpenRegistry("")
	require.NoError(t, err)
	t.Cleanup(func() { registry.Close() })

	embedder, err := NewEmbedder(SetEmbedderProvider("hash"), SetOption("dimension", 512))
	require.NoError(t, err)
	embed := NewEmbeddingService(embedder, WithChunkFormatter(FormatChunkForEmbedding))

	db, err := NewVectorDB(SetVectorDBType("memory"))
	require.NoError(t, err)

	chunker, err := NewChunker(ChunkSize(64), ChunkOverlap(8))
	require.NoError(t, err)

	f := &fixture{
		registry: registry,
		db:       db,
		embed:    embed,
		sparse:   rag.NewBM25Index(),
		upload:   t.TempDir(),
	}
	f.ingest = NewIngestService(db, embed, registry, chunker,
		WithSparseIndex(f.sparse),
		WithIngestLoader(NewLoader(WithUploadDir(f.upload))),
	)
	f.retriever, err = NewRetriever(db, embed, f.sparse, retrieverOpts...)
	require.NoError(t, err)
	return f
}

func writeBook(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "owls.pdf")
	require.NoError(t, testpdf.Write(path, testpdf.Book()))
	return path
}

func writeText(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (f *fixture) ingestBook(t *testing.T) []IngestedDoc {
	t.Helper()
	docs, err := f.ingest.Ingest(context.Background(), "owls.pdf", writeBook(t))
	require.NoError(t, err)
	return docs
}

type generateCall struct {
	messages []Message
	passages string
}

type fakeGenerator struct {
	mu    sync.Mutex
	reply string
	err   error
	calls []generateCall
}

func (g *fakeGenerator) Generate(ctx context.Context, messages []Message, passages string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, generateCall{messages: messages, passages: passages})
	return g.reply, g.err
}
