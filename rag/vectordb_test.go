package rag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords() []Record {
	return []Record{
		{ID: "a1", DocID: "doc-a", Vector: Vector{1, 0, 0}, Text: "alpha one", Metadata: map[string]string{MetaPageLabel: "1"}},
		{ID: "a2", DocID: "doc-a", Vector: Vector{0.9, 0.1, 0}, Text: "alpha two", Metadata: map[string]string{MetaPageLabel: "2"}},
		{ID: "b1", DocID: "doc-b", Vector: Vector{0, 1, 0}, Text: "beta one", Metadata: map[string]string{MetaPageLabel: "4-5"}},
		{ID: "c1", DocID: "doc-c", Vector: Vector{0, 0, 1}, Text: "gamma one", Metadata: map[string]string{MetaPageLabel: "7"}},
	}
}

func openStore(t *testing.T, kind string) VectorDB {
	t.Helper()
	ctx := context.Background()
	db, err := NewVectorDB(&Config{Type: kind, Dimension: 3})
	require.NoError(t, err)
	require.NoError(t, db.Connect(ctx))
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.CreateCollection(ctx, "chunks", Schema{Name: "chunks", Dimension: 3}))
	require.NoError(t, db.Insert(ctx, "chunks", sampleRecords()))
	return db
}

func TestNewVectorDBRejectsUnknownType(t *testing.T) {
	_, err := NewVectorDB(&Config{Type: "cassandra"})
	assert.Error(t, err)

	_, err = NewVectorDB(&Config{Type: "milvus"})
	assert.Error(t, err, "milvus needs an address")
}

func TestVectorStores(t *testing.T) {
	for _, kind := range []string{"memory", "chromem"} {
		t.Run(kind, func(t *testing.T) {
			ctx := context.Background()

			t.Run("search ranks by similarity", func(t *testing.T) {
				db := openStore(t, kind)
				results, err := db.Search(ctx, "chunks", Vector{1, 0, 0}, 2, SearchOptions{})
				require.NoError(t, err)
				require.Len(t, results, 2)
				assert.Equal(t, "a1", results[0].ID)
				assert.Equal(t, "a2", results[1].ID)
				assert.Equal(t, "doc-a", results[0].DocID)
				assert.Equal(t, "alpha one", results[0].Text)
				assert.Equal(t, "1", results[0].Metadata[MetaPageLabel])
				assert.InDelta(t, 1.0, results[0].Score, 1e-5)
				assert.Greater(t, results[0].Score, results[1].Score)
			})

			t.Run("filter restricts to documents", func(t *testing.T) {
				db := openStore(t, kind)
				results, err := db.Search(ctx, "chunks", Vector{1, 0, 0}, 10, SearchOptions{
					Filter: &Filter{DocIDs: []string{"doc-b", "doc-c"}},
				})
				require.NoError(t, err)
				require.Len(t, results, 2)
				for _, r := range results {
					assert.Contains(t, []string{"doc-b", "doc-c"}, r.DocID)
				}
			})

			t.Run("empty filter matches nothing", func(t *testing.T) {
				db := openStore(t, kind)
				results, err := db.Search(ctx, "chunks", Vector{1, 0, 0}, 10, SearchOptions{Filter: &Filter{}})
				require.NoError(t, err)
				assert.Empty(t, results)
			})

			t.Run("delete by document", func(t *testing.T) {
				db := openStore(t, kind)
				require.NoError(t, db.Delete(ctx, "chunks", Filter{DocIDs: []string{"doc-a"}}))
				results, err := db.Search(ctx, "chunks", Vector{1, 0, 0}, 10, SearchOptions{})
				require.NoError(t, err)
				require.Len(t, results, 2)
				for _, r := range results {
					assert.NotEqual(t, "doc-a", r.DocID)
				}
			})

			t.Run("collections", func(t *testing.T) {
				db := openStore(t, kind)
				ok, err := db.HasCollection(ctx, "chunks")
				require.NoError(t, err)
				assert.True(t, ok)

				require.NoError(t, db.DropCollection(ctx, "chunks"))
				ok, err = db.HasCollection(ctx, "chunks")
				require.NoError(t, err)
				assert.False(t, ok)

				_, err = db.Search(ctx, "chunks", Vector{1, 0, 0}, 1, SearchOptions{})
				assert.Error(t, err)
			})
		})
	}
}

func TestMemoryDBRejectsWrongDimension(t *testing.T) {
	db := openStore(t, "memory")
	err := db.Insert(context.Background(), "chunks", []Record{{ID: "x", Vector: Vector{1, 2}}})
	assert.Error(t, err)
}

func TestSimilarityMetrics(t *testing.T) {
	a := Vector{1, 0}
	b := Vector{0, 1}
	assert.InDelta(t, 0.0, similarity(a, b, "COSINE"), 1e-9)
	assert.InDelta(t, 1.0, similarity(a, a, ""), 1e-9)
	assert.InDelta(t, 1.0, similarity(a, a, "L2"), 1e-9)
	assert.InDelta(t, 1/(1+1.4142135623730951), similarity(a, b, "L2"), 1e-9)
	assert.InDelta(t, 0.0, similarity(a, b, "IP"), 1e-9)
}

func TestFilterMatches(t *testing.T) {
	var none *Filter
	assert.True(t, none.Matches("anything"))
	assert.False(t, (&Filter{}).Matches("anything"))
	assert.True(t, (&Filter{DocIDs: []string{"x", "y"}}).Matches("y"))
}

func TestDocIDExpr(t *testing.T) {
	assert.Equal(t, `doc_id in ["a", "b\"c"]`, docIDExpr([]string{"a", `b"c`}))
}

func TestBM25Index(t *testing.T) {
	ctx := context.Background()
	idx := NewBM25Index()
	for _, r := range sampleRecords() {
		require.NoError(t, idx.Add(ctx, r))
	}
	require.NoError(t, idx.Add(ctx, Record{ID: "d1", DocID: "doc-d", Text: "Alpha, alpha and more alpha!"}))
	assert.Equal(t, 5, idx.Len())

	results, err := idx.Search(ctx, "alpha", 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "d1", results[0].ID)
	assert.Nil(t, results[0].Metadata)

	results, err = idx.Search(ctx, "alpha", 10, &Filter{DocIDs: []string{"doc-a"}})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "doc-a", results[0].DocID)

	require.NoError(t, idx.RemoveDocs(ctx, Filter{DocIDs: []string{"doc-a", "doc-d"}}))
	assert.Equal(t, 2, idx.Len())
	results, err = idx.Search(ctx, "alpha", 10, nil)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = idx.Search(ctx, "beta", 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b1", results[0].ID)
}

func TestBM25IndexReplacesRecord(t *testing.T) {
	ctx := context.Background()
	idx := NewBM25Index()
	require.NoError(t, idx.Add(ctx, Record{ID: "x", Text: "old words"}))
	require.NoError(t, idx.Add(ctx, Record{ID: "x", Text: "new words"}))
	assert.Equal(t, 1, idx.Len())

	results, err := idx.Search(ctx, "old", 5, nil)
	require.NoError(t, err)
	assert.Empty(t, results)

	require.NoError(t, idx.Remove(ctx, "x"))
	assert.Equal(t, 0, idx.Len())
}

func TestRRFReranker(t *testing.T) {
	dense := []SearchResult{{ID: "a", Score: 0.9}, {ID: "b", Score: 0.8}, {ID: "c", Score: 0.1}}
	sparse := []SearchResult{{ID: "c", Score: 12}, {ID: "b", Score: 3}}

	fused := NewRRFReranker(0).Rerank(context.Background(), dense, sparse, 1, 1)
	require.Len(t, fused, 3)
	// c ranks last in dense but first in sparse; a appears only once.
	assert.Equal(t, []string{"c", "b", "a"}, []string{fused[0].ID, fused[1].ID, fused[2].ID})
	assert.InDelta(t, 0.5/63+0.5/61, fused[0].Score, 1e-12)

	denseOnly := NewRRFReranker(60).Rerank(context.Background(), dense, sparse, 1, 0)
	assert.Equal(t, "a", denseOnly[0].ID)
}
