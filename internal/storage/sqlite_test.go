package storage

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/hotelsearch/pkg/types"
)

func setupTestCollection(t *testing.T) (*SQLiteStore, Collection) {
	t.Helper()
	store := NewSQLiteStore(":memory:", 2)
	t.Cleanup(func() { _ = store.Close() })

	coll, err := store.EnsureCollection(context.Background(), "hotels")
	require.NoError(t, err)
	return store, coll
}

func seedCollection(t *testing.T, coll Collection) {
	t.Helper()
	ctx := context.Background()
	records := []types.Record{
		{ID: 1, Name: "Harbor Hotel", Description: "sea view rooms", Embedding: []float32{1, 0}},
		{ID: 2, Name: "Mountain Lodge", Description: "ski in ski out with spa", Embedding: []float32{0.9, 0.1}},
		{ID: 3, Name: "City Inn", Description: "business hotel with pool", Embedding: []float32{0, 1}},
	}
	for i := range records {
		require.NoError(t, coll.Upsert(ctx, &records[i]))
	}
}

func ids(hits []Hit) []int64 {
	out := make([]int64, len(hits))
	for i, h := range hits {
		out[i] = h.Record.ID
	}
	return out
}

func TestEnsureCollection(t *testing.T) {
	ctx := context.Background()

	t.Run("idempotent", func(t *testing.T) {
		store, coll := setupTestCollection(t)
		again, err := store.EnsureCollection(ctx, "hotels")
		require.NoError(t, err)
		assert.Same(t, coll, again)
		assert.Equal(t, "hotels", again.Name())
		assert.Equal(t, 2, store.Dimension())
	})

	t.Run("missing path", func(t *testing.T) {
		store := NewSQLiteStore("", 2)
		_, err := store.EnsureCollection(ctx, "hotels")
		assert.ErrorIs(t, err, types.ErrConfigurationMissing)
	})

	t.Run("empty name", func(t *testing.T) {
		store := NewSQLiteStore(":memory:", 2)
		defer store.Close()
		_, err := store.EnsureCollection(ctx, "")
		assert.ErrorIs(t, err, types.ErrInvalidArgument)
	})

	t.Run("survives reopen", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "hotels.db")

		first := NewSQLiteStore(path, 2)
		coll, err := first.EnsureCollection(ctx, "hotels")
		require.NoError(t, err)
		seedCollection(t, coll)
		require.NoError(t, first.Close())

		second := NewSQLiteStore(path, 2)
		defer second.Close()
		_, err = second.EnsureCollection(ctx, "hotels")
		require.NoError(t, err)
		n, err := second.Count(ctx, "hotels")
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})

	t.Run("dimension conflict", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "hotels.db")

		first := NewSQLiteStore(path, 2)
		_, err := first.EnsureCollection(ctx, "hotels")
		require.NoError(t, err)
		require.NoError(t, first.Close())

		second := NewSQLiteStore(path, 3)
		defer second.Close()
		_, err = second.EnsureCollection(ctx, "hotels")
		assert.ErrorIs(t, err, ErrDimensionConflict)
		assert.ErrorIs(t, err, types.ErrInvalidArgument)
	})
}

func TestUpsert(t *testing.T) {
	ctx := context.Background()
	store, coll := setupTestCollection(t)
	sc := coll.(*sqliteCollection)

	rec := &types.Record{ID: 7, Name: "Garden Suites", Description: "quiet courtyard", Embedding: []float32{1, 0}}
	require.NoError(t, coll.Upsert(ctx, rec))

	got, err := sc.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	t.Run("replaces by id", func(t *testing.T) {
		updated := &types.Record{ID: 7, Name: "Garden Suites", Description: "rooftop pool", Embedding: []float32{0, 1}}
		require.NoError(t, coll.Upsert(ctx, updated))

		got, err := sc.Get(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, "rooftop pool", got.Description)
		assert.Equal(t, []float32{0, 1}, got.Embedding)

		n, err := store.Count(ctx, "hotels")
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		// FTS follows the update
		hits, err := Collect(coll.HybridSearch(ctx, []float32{1, 0}, []string{"courtyard"}, SearchOptions{}))
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.InDelta(t, 1.0/61, *hits[0].Score, 1e-9, "only the vector leg should match")
	})

	t.Run("rejects bad embeddings", func(t *testing.T) {
		for _, emb := range [][]float32{nil, {1, 2, 3}} {
			err := coll.Upsert(ctx, &types.Record{ID: 8, Name: "x", Embedding: emb})
			assert.ErrorIs(t, err, types.ErrStoreWriteFailure)
		}
	})

	t.Run("rejects negative id", func(t *testing.T) {
		err := coll.Upsert(ctx, &types.Record{ID: -1, Name: "x", Embedding: []float32{1, 0}})
		assert.ErrorIs(t, err, types.ErrStoreWriteFailure)
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := sc.Get(ctx, 999)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestVectorSearch(t *testing.T) {
	ctx := context.Background()
	_, coll := setupTestCollection(t)
	seedCollection(t, coll)

	t.Run("ranked by cosine similarity", func(t *testing.T) {
		hits, err := Collect(coll.VectorSearch(ctx, []float32{1, 0}, SearchOptions{}))
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2, 3}, ids(hits))
		assert.InDelta(t, 1.0, *hits[0].Score, 1e-6)
		assert.Equal(t, "Harbor Hotel", hits[0].Record.Name)
		assert.Nil(t, hits[0].Record.Embedding)
	})

	t.Run("skip and top", func(t *testing.T) {
		hits, err := Collect(coll.VectorSearch(ctx, []float32{1, 0}, SearchOptions{Skip: 1, Top: 1}))
		require.NoError(t, err)
		assert.Equal(t, []int64{2}, ids(hits))

		hits, err = Collect(coll.VectorSearch(ctx, []float32{1, 0}, SearchOptions{Skip: -5, Top: 2}))
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2}, ids(hits))

		hits, err = Collect(coll.VectorSearch(ctx, []float32{1, 0}, SearchOptions{Skip: 10}))
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("negative top", func(t *testing.T) {
		_, err := Collect(coll.VectorSearch(ctx, []float32{1, 0}, SearchOptions{Top: -1}))
		assert.ErrorIs(t, err, types.ErrInvalidArgument)
	})

	t.Run("wrong query dimension", func(t *testing.T) {
		_, err := Collect(coll.VectorSearch(ctx, []float32{1, 0, 0}, SearchOptions{}))
		assert.ErrorIs(t, err, types.ErrInvalidArgument)
	})

	t.Run("forward only", func(t *testing.T) {
		seq := coll.VectorSearch(ctx, []float32{1, 0}, SearchOptions{})
		for _, err := range seq {
			require.NoError(t, err)
			break
		}
		_, err := Collect(seq)
		assert.ErrorIs(t, err, ErrResultsConsumed)
	})
}

func TestVectorSearchDefaultTop(t *testing.T) {
	ctx := context.Background()
	_, coll := setupTestCollection(t)
	for i := int64(1); i <= 15; i++ {
		require.NoError(t, coll.Upsert(ctx, &types.Record{ID: i, Name: "h", Embedding: []float32{1, float32(i)}}))
	}

	hits, err := Collect(coll.VectorSearch(ctx, []float32{1, 0}, SearchOptions{}))
	require.NoError(t, err)
	assert.Len(t, hits, DefaultTop)
}

func TestHybridSearch(t *testing.T) {
	ctx := context.Background()
	_, coll := setupTestCollection(t)
	seedCollection(t, coll)

	t.Run("keyword match is fused in", func(t *testing.T) {
		hits, err := Collect(coll.HybridSearch(ctx, []float32{1, 0}, []string{"pool"}, SearchOptions{}))
		require.NoError(t, err)
		assert.Equal(t, []int64{3, 1, 2}, ids(hits))
		assert.InDelta(t, 1.0/63+1.0/61, *hits[0].Score, 1e-9)
	})

	t.Run("names are not keyword matched", func(t *testing.T) {
		// "harbor" only appears in record 1's name
		hits, err := Collect(coll.HybridSearch(ctx, []float32{0, 1}, []string{"harbor"}, SearchOptions{}))
		require.NoError(t, err)
		assert.Equal(t, []int64{3, 2, 1}, ids(hits))
		assert.InDelta(t, 1.0/61, *hits[0].Score, 1e-9)
		assert.InDelta(t, 1.0/63, *hits[2].Score, 1e-9)
	})

	t.Run("empty keywords fall back to vector ranking", func(t *testing.T) {
		for _, kws := range [][]string{nil, {}, {"", "  "}} {
			hits, err := Collect(coll.HybridSearch(ctx, []float32{1, 0}, kws, SearchOptions{}))
			require.NoError(t, err)
			assert.Equal(t, []int64{1, 2, 3}, ids(hits))
		}
	})

	t.Run("pagination applies after fusion", func(t *testing.T) {
		hits, err := Collect(coll.HybridSearch(ctx, []float32{1, 0}, []string{"pool"}, SearchOptions{Skip: 1, Top: 1}))
		require.NoError(t, err)
		assert.Equal(t, []int64{1}, ids(hits))
	})

	t.Run("huge pages do not overflow", func(t *testing.T) {
		hits, err := Collect(coll.HybridSearch(ctx, []float32{1, 0}, []string{"pool"}, SearchOptions{Skip: math.MaxInt, Top: 1}))
		require.NoError(t, err)
		assert.Empty(t, hits)

		hits, err = Collect(coll.HybridSearch(ctx, []float32{1, 0}, []string{"pool"}, SearchOptions{Top: math.MaxInt}))
		require.NoError(t, err)
		assert.Equal(t, []int64{3, 1, 2}, ids(hits))
	})

	t.Run("operators and quotes are literal", func(t *testing.T) {
		for _, kw := range []string{"AND", `"spa"`, "spa*", "NEAR(pool)", "-ski"} {
			_, err := Collect(coll.HybridSearch(ctx, []float32{1, 0}, []string{kw}, SearchOptions{}))
			assert.NoError(t, err, kw)
		}
	})

	t.Run("forward only", func(t *testing.T) {
		seq := coll.HybridSearch(ctx, []float32{1, 0}, []string{"spa"}, SearchOptions{})
		_, err := Collect(seq)
		require.NoError(t, err)
		_, err = Collect(seq)
		assert.ErrorIs(t, err, ErrResultsConsumed)
	})
}
