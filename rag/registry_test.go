package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teilomillet/docbot/pagelabel"
)

func openRegistry(t *testing.T, path string) *Registry {
	t.Helper()
	reg, err := OpenRegistry(path)
	require.NoError(t, err)
	t.Cleanup(func() { reg.Close() })
	return reg
}

func TestRegistryDocs(t *testing.T) {
	reg := openRegistry(t, "")

	require.NoError(t, reg.PutDoc(IngestedDoc{DocID: "b2", FileName: "b.pdf", PageIndex: 2, PageLabel: "1"}))
	require.NoError(t, reg.PutDoc(IngestedDoc{DocID: "b1", FileName: "b.pdf", PageIndex: 1, PageLabel: "1"}))
	require.NoError(t, reg.PutDoc(IngestedDoc{DocID: "a1", FileName: "a.txt"}))
	assert.Error(t, reg.PutDoc(IngestedDoc{FileName: "x"}))

	docs, err := reg.Docs()
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, []string{"a1", "b1", "b2"}, []string{docs[0].DocID, docs[1].DocID, docs[2].DocID})
	assert.False(t, docs[0].CreatedAt.IsZero())

	files, err := reg.Files()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.pdf"}, files)

	forB, err := reg.DocsForFile("b.pdf")
	require.NoError(t, err)
	require.Len(t, forB, 2)
	assert.Equal(t, 1, forB[0].PageIndex)

	doc, err := reg.Doc("b2")
	require.NoError(t, err)
	assert.Equal(t, "b.pdf", doc.FileName)

	require.NoError(t, reg.DeleteDoc("b2"))
	require.NoError(t, reg.DeleteDoc("missing"))
	_, err = reg.Doc("b2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistryPages(t *testing.T) {
	reg := openRegistry(t, "")
	pages := pagelabel.Reconcile([]string{"Cover", "1", "2-3"})

	_, err := reg.Pages("book.pdf")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, reg.PutPages("book.pdf", pages))
	got, err := reg.Pages("book.pdf")
	require.NoError(t, err)
	assert.Equal(t, pages, got)

	require.NoError(t, reg.DeletePages("book.pdf"))
	require.NoError(t, reg.DeletePages("book.pdf"))
	_, err = reg.Pages("book.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistryChunks(t *testing.T) {
	reg := openRegistry(t, "")
	require.NoError(t, reg.PutDoc(IngestedDoc{DocID: "d1", FileName: "f.pdf"}))
	require.NoError(t, reg.PutChunks([]ChunkRecord{
		{ID: "c1", DocID: "d1", Text: "one", Metadata: map[string]string{MetaPageLabel: "3"}},
		{ID: "c2", DocID: "d1", Text: "two"},
		{ID: "c3", DocID: "d2", Text: "three"},
	}))

	chunks, err := reg.Chunks()
	require.NoError(t, err)
	assert.Len(t, chunks, 3)

	require.NoError(t, reg.DeleteDoc("d1"))
	chunks, err = reg.Chunks()
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "c3", chunks[0].ID)

	require.NoError(t, reg.DeleteChunks())
}

func TestRegistryPersists(t *testing.T) {
	dir := t.TempDir()
	reg, err := OpenRegistry(dir)
	require.NoError(t, err)
	require.NoError(t, reg.PutDoc(IngestedDoc{DocID: "d1", FileName: "f.pdf", PageIndex: 4, PageLabel: "2"}))
	require.NoError(t, reg.Close())

	reopened := openRegistry(t, dir)
	doc, err := reopened.Doc("d1")
	require.NoError(t, err)
	assert.Equal(t, "2", doc.PageLabel)
	assert.Equal(t, 4, doc.PageIndex)
}
