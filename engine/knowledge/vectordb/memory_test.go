package vectordb

import (
	"context"
	"sync"
	"testing"

	"github.com/askdocs/askdocs/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustMemoryStore(t *testing.T, dimension int) Store {
	t.Helper()
	store, err := NewMemoryStore(dimension)
	require.NoError(t, err)
	return store
}

func TestMemoryStore_Search(t *testing.T) {
	t.Run("Should return matches ordered by descending score", func(t *testing.T) {
		store := mustMemoryStore(t, 2)
		err := store.Upsert(context.Background(), []Record{
			{ID: "a", DocumentID: "doc1", Ordinal: 0, Text: "north", Embedding: []float32{0, 1}},
			{ID: "b", DocumentID: "doc1", Ordinal: 1, Text: "east", Embedding: []float32{1, 0}},
			{ID: "c", DocumentID: "doc1", Ordinal: 2, Text: "northeast", Embedding: []float32{1, 1}},
		})
		require.NoError(t, err)

		matches, err := store.Search(context.Background(), []float32{1, 0}, SearchOptions{TopK: 3})
		require.NoError(t, err)
		require.Len(t, matches, 3)
		assert.Equal(t, "b", matches[0].ID)
		assert.Equal(t, "c", matches[1].ID)
		assert.Equal(t, "a", matches[2].ID)
		for i := 1; i < len(matches); i++ {
			assert.GreaterOrEqual(t, matches[i-1].Score, matches[i].Score)
		}
	})
	t.Run("Should truncate results to top k", func(t *testing.T) {
		store := mustMemoryStore(t, 2)
		err := store.Upsert(context.Background(), []Record{
			{ID: "a", DocumentID: "doc1", Embedding: []float32{1, 0}},
			{ID: "b", DocumentID: "doc1", Embedding: []float32{0.9, 0.1}},
			{ID: "c", DocumentID: "doc1", Embedding: []float32{0.8, 0.2}},
		})
		require.NoError(t, err)

		matches, err := store.Search(context.Background(), []float32{1, 0}, SearchOptions{TopK: 2})
		require.NoError(t, err)
		assert.Len(t, matches, 2)
	})
	t.Run("Should filter matches below the minimum score", func(t *testing.T) {
		store := mustMemoryStore(t, 2)
		err := store.Upsert(context.Background(), []Record{
			{ID: "close", DocumentID: "doc1", Embedding: []float32{1, 0}},
			{ID: "far", DocumentID: "doc1", Embedding: []float32{-1, 0}},
		})
		require.NoError(t, err)

		matches, err := store.Search(context.Background(), []float32{1, 0}, SearchOptions{TopK: 5, MinScore: 0.5})
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "close", matches[0].ID)
	})
	t.Run("Should return empty result for empty index", func(t *testing.T) {
		store := mustMemoryStore(t, 2)
		matches, err := store.Search(context.Background(), []float32{1, 0}, SearchOptions{TopK: 5})
		require.NoError(t, err)
		assert.Empty(t, matches)
	})
	t.Run("Should reject query with wrong dimension", func(t *testing.T) {
		store := mustMemoryStore(t, 3)
		_, err := store.Search(context.Background(), []float32{1, 0}, SearchOptions{TopK: 5})
		require.Error(t, err)
		assert.True(t, core.HasCode(err, core.CodeIndexCorruption))
	})
	t.Run("Should break score ties by record ID", func(t *testing.T) {
		store := mustMemoryStore(t, 2)
		err := store.Upsert(context.Background(), []Record{
			{ID: "b", DocumentID: "doc1", Embedding: []float32{1, 0}},
			{ID: "a", DocumentID: "doc1", Embedding: []float32{1, 0}},
		})
		require.NoError(t, err)

		matches, err := store.Search(context.Background(), []float32{1, 0}, SearchOptions{TopK: 2})
		require.NoError(t, err)
		require.Len(t, matches, 2)
		assert.Equal(t, "a", matches[0].ID)
		assert.Equal(t, "b", matches[1].ID)
	})
}

func TestMemoryStore_Upsert(t *testing.T) {
	t.Run("Should reject the whole batch on a dimension mismatch", func(t *testing.T) {
		store := mustMemoryStore(t, 2)
		err := store.Upsert(context.Background(), []Record{
			{ID: "ok", DocumentID: "doc1", Embedding: []float32{1, 0}},
			{ID: "bad", DocumentID: "doc1", Embedding: []float32{1, 0, 0}},
		})
		require.Error(t, err)
		assert.True(t, core.HasCode(err, core.CodeIndexCorruption))

		matches, err := store.Search(context.Background(), []float32{1, 0}, SearchOptions{TopK: 5})
		require.NoError(t, err)
		assert.Empty(t, matches, "no record from the rejected batch should be queryable")
	})
	t.Run("Should replace an existing record by ID", func(t *testing.T) {
		store := mustMemoryStore(t, 2)
		ctx := context.Background()
		require.NoError(t, store.Upsert(ctx, []Record{{ID: "a", DocumentID: "doc1", Text: "old", Embedding: []float32{1, 0}}}))
		require.NoError(t, store.Upsert(ctx, []Record{{ID: "a", DocumentID: "doc1", Text: "new", Embedding: []float32{1, 0}}}))

		matches, err := store.Search(ctx, []float32{1, 0}, SearchOptions{TopK: 5})
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "new", matches[0].Text)
	})
	t.Run("Should not expose partial documents to concurrent readers", func(t *testing.T) {
		store := mustMemoryStore(t, 2)
		ctx := context.Background()
		batch := make([]Record, 20)
		for i := range batch {
			batch[i] = Record{ID: string(rune('a' + i)), DocumentID: "doc1", Ordinal: i, Embedding: []float32{1, 0}}
		}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.Upsert(ctx, batch))
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				matches, err := store.Search(ctx, []float32{1, 0}, SearchOptions{TopK: len(batch)})
				assert.NoError(t, err)
				if n := len(matches); n != 0 && n != len(batch) {
					t.Errorf("observed partial document: %d of %d records", n, len(batch))
					return
				}
			}
		}()
		wg.Wait()
	})
}

func TestMemoryStore_DeleteDocument(t *testing.T) {
	t.Run("Should remove every record of the document and no others", func(t *testing.T) {
		store := mustMemoryStore(t, 2)
		ctx := context.Background()
		err := store.Upsert(ctx, []Record{
			{ID: "a", DocumentID: "doc1", Embedding: []float32{1, 0}},
			{ID: "b", DocumentID: "doc1", Embedding: []float32{0, 1}},
			{ID: "c", DocumentID: "doc2", Embedding: []float32{1, 1}},
		})
		require.NoError(t, err)

		require.NoError(t, store.DeleteDocument(ctx, "doc1"))

		matches, err := store.Search(ctx, []float32{1, 0}, SearchOptions{TopK: 5})
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, core.ID("doc2"), matches[0].DocumentID)
	})
	t.Run("Should be a no-op for an unknown document", func(t *testing.T) {
		store := mustMemoryStore(t, 2)
		assert.NoError(t, store.DeleteDocument(context.Background(), "missing"))
	})
}
