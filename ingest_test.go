package docbot

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teilomillet/docbot/rag"
)

func TestIngestPDF(t *testing.T) {
	f := newFixture(t)
	docs := f.ingestBook(t)

	require.Len(t, docs, 6)
	wantLabels := []string{"1", "2", "1", "2", "3-4", "5"}
	ids := make(map[string]bool)
	for i, doc := range docs {
		assert.Equal(t, "owls.pdf", doc.FileName)
		assert.Equal(t, "pdf", doc.FileType)
		assert.Equal(t, i+1, doc.PageIndex)
		assert.Equal(t, wantLabels[i], doc.PageLabel)
		assert.Equal(t, filepath.Join(f.upload, "owls.pdf"), doc.Path)
		assert.False(t, doc.CreatedAt.IsZero())
		ids[doc.DocID] = true
	}
	assert.Len(t, ids, 6, "every page gets its own document ID")

	pages, err := f.registry.Pages("owls.pdf")
	require.NoError(t, err)
	require.Len(t, pages, 6)
	assert.False(t, pages[0].Printed)
	assert.Equal(t, "1", pages[0].Label)
	assert.True(t, pages[2].Printed)
	assert.Equal(t, "3-4", pages[4].Label)
	assert.Equal(t, 3, pages[4].First)
	assert.Equal(t, 4, pages[4].Last)

	files, err := f.ingest.ListFiles()
	require.NoError(t, err)
	assert.Equal(t, []string{"owls.pdf"}, files)

	chunks, err := f.registry.Chunks()
	require.NoError(t, err)
	assert.NotEmpty(t, chunks)
	assert.Equal(t, len(chunks), f.sparse.Len())
	for _, c := range chunks {
		assert.True(t, ids[c.DocID])
		assert.Equal(t, "owls.pdf", c.Metadata[MetaFileName])
	}
}

func TestIngestReplacesFileOfSameName(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first := f.ingestBook(t)
	chunks, err := f.registry.Chunks()
	require.NoError(t, err)

	second := f.ingestBook(t)
	require.Len(t, second, len(first))
	assert.NotEqual(t, first[0].DocID, second[0].DocID)

	all, err := f.ingest.ListIngested()
	require.NoError(t, err)
	assert.Len(t, all, 6)
	_, err = f.registry.Doc(first[0].DocID)
	assert.ErrorIs(t, err, ErrNotFound)

	again, err := f.registry.Chunks()
	require.NoError(t, err)
	assert.Len(t, again, len(chunks))
	assert.Equal(t, len(chunks), f.sparse.Len())

	stored, err := f.db.Search(ctx, f.ingest.Collection(), make(rag.Vector, 512), 0, SearchOptions{})
	require.NoError(t, err)
	assert.Len(t, stored, len(chunks))
}

func TestIngestTextAndBulk(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	docs, err := f.ingest.BulkIngest(ctx, []IngestFile{
		{Name: "barn.txt", Path: writeText(t, "barn.txt", "Barn owls swallow prey whole.")},
		{Name: "snowy.md", Path: writeText(t, "snowy.md", "# Snowy owl\n\nSnowy owls hunt by day.")},
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	for _, doc := range docs {
		assert.Zero(t, doc.PageIndex)
		assert.Empty(t, doc.PageLabel)
	}

	files, err := f.ingest.ListFiles()
	require.NoError(t, err)
	assert.Equal(t, []string{"barn.txt", "snowy.md"}, files)

	_, err = f.registry.Pages("barn.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBulkIngestStopsOnFailure(t *testing.T) {
	f := newFixture(t)
	_, err := f.ingest.BulkIngest(context.Background(), []IngestFile{
		{Name: "missing.txt", Path: filepath.Join(t.TempDir(), "missing.txt")},
	})
	assert.Error(t, err)
}

func TestIngestSourceDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, writeInto(dir, "a.txt", "first file"))
	require.NoError(t, writeInto(dir, ".hidden.txt", "skipped"))

	f := newFixture(t)
	docs, err := f.ingest.IngestSource(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "a.txt", docs[0].FileName)

	_, err = f.ingest.IngestSource(context.Background(), filepath.Join(dir, "nope"))
	assert.Error(t, err)
}

func TestDeleteDocuments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	docs := f.ingestBook(t)
	_, err := f.ingest.Ingest(ctx, "notes.txt", writeText(t, "notes.txt", "Owl pellets contain bones."))
	require.NoError(t, err)

	require.NoError(t, f.ingest.Delete(ctx, docs[4].DocID))
	all, err := f.ingest.ListIngested()
	require.NoError(t, err)
	assert.Len(t, all, 6)
	assert.ErrorIs(t, f.ingest.Delete(ctx, docs[4].DocID), ErrNotFound)

	require.NoError(t, f.ingest.DeleteFile(ctx, "owls.pdf"))
	files, err := f.ingest.ListFiles()
	require.NoError(t, err)
	assert.Equal(t, []string{"notes.txt"}, files)
	_, err = f.registry.Pages("owls.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, f.ingest.DeleteFile(ctx, "never-ingested.pdf"))

	require.NoError(t, f.ingest.DeleteAll(ctx))
	files, err = f.ingest.ListFiles()
	require.NoError(t, err)
	assert.Empty(t, files)
	assert.Zero(t, f.sparse.Len())
	chunks, err := f.registry.Chunks()
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestDocIDsForFile(t *testing.T) {
	f := newFixture(t)
	docs := f.ingestBook(t)

	ids, err := f.ingest.DocIDsForFile("owls.pdf")
	require.NoError(t, err)
	assert.Len(t, ids, len(docs))

	_, err = f.ingest.DocIDsForFile("other.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRebuildSparseIndex(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.ingestBook(t)

	fresh := rag.NewBM25Index()
	chunker, err := NewChunker()
	require.NoError(t, err)
	reopened := NewIngestService(f.db, f.embed, f.registry, chunker, WithSparseIndex(fresh))
	require.NoError(t, reopened.RebuildSparseIndex(ctx))
	assert.Equal(t, f.sparse.Len(), fresh.Len())

	hits, err := fresh.Search(ctx, "eagle", 1, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "3-4", hits[0].Metadata[MetaPageLabel])
}

func TestMetadataText(t *testing.T) {
	meta := map[string]string{
		MetaFileName:  "owls.pdf",
		MetaPageLabel: "3-4",
		MetaFileType:  "pdf",
		MetaDocID:     "doc-1",
		MetaFilePath:  "/tmp/owls.pdf",
	}
	assert.Equal(t, "file_name: owls.pdf\npage_label: 3-4\nfile_type: pdf\n", MetadataText(meta, EmbedExcludedKeys))
	assert.Equal(t, "file_type: pdf\n", MetadataText(meta, LLMExcludedKeys))

	chunk := Chunk{Text: "Range map", Metadata: meta}
	assert.Equal(t, "file_name: owls.pdf\npage_label: 3-4\nfile_type: pdf\n\nRange map", FormatChunkForEmbedding(chunk))
	assert.Equal(t, "plain", FormatChunkForEmbedding(Chunk{Text: "plain"}))
}

func TestTransformFileIntoDocuments(t *testing.T) {
	f := newFixture(t)
	docs, err := f.ingest.TransformFileIntoDocuments("Guide.pdf", writeBook(t))
	require.NoError(t, err)
	require.Len(t, docs, 6)
	assert.Equal(t, "Guide.pdf", docs[0].Metadata[MetaFileName])
	assert.NotEmpty(t, docs[0].Metadata[MetaDocID])
	assert.NotEqual(t, docs[0].Metadata[MetaDocID], docs[1].Metadata[MetaDocID])
}

func writeInto(dir, name, content string) error {
	return os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644)
}
