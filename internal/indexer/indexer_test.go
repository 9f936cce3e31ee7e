package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/hotelsearch/internal/embedder"
	"github.com/dshills/hotelsearch/internal/storage"
	"github.com/dshills/hotelsearch/pkg/types"
)

const testDim = 2

// mockEmbedder maps known texts to fixed vectors and fails on request
type mockEmbedder struct {
	mu        sync.Mutex
	vectors   map[string][]float32
	failOn    map[string]bool
	callCount int

	// gate, when set, blocks every call until closed; started receives one
	// value per call
	gate    chan struct{}
	started chan string
}

func newMockEmbedder() *mockEmbedder {
	return &mockEmbedder{
		vectors: map[string][]float32{
			"A": {1, 0},
			"B": {0, 1},
		},
		failOn: make(map[string]bool),
	}
}

func (m *mockEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	if m.started != nil {
		m.started <- req.Text
	}
	if m.gate != nil {
		<-m.gate
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++

	if m.failOn[req.Text] {
		return nil, fmt.Errorf("%w: model overloaded", embedder.ErrProviderFailed)
	}
	vec, ok := m.vectors[req.Text]
	if !ok {
		vec = []float32{0.5, 0.5}
	}
	return &embedder.Embedding{Vector: vec, Dimension: len(vec), Provider: "mock", Model: "test-v1"}, nil
}

func (m *mockEmbedder) Dimension() int   { return testDim }
func (m *mockEmbedder) Provider() string { return "mock" }
func (m *mockEmbedder) Model() string    { return "test-v1" }
func (m *mockEmbedder) Close() error     { return nil }

func (m *mockEmbedder) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// failingStore wraps a store and rejects upserts for chosen IDs
type failingStore struct {
	storage.VectorStore
	failIDs    map[int64]bool
	ensureErr  error
	ensureHits atomic.Int32
}

func (f *failingStore) EnsureCollection(ctx context.Context, name string) (storage.Collection, error) {
	f.ensureHits.Add(1)
	if f.ensureErr != nil {
		return nil, f.ensureErr
	}
	c, err := f.VectorStore.EnsureCollection(ctx, name)
	if err != nil {
		return nil, err
	}
	return &failingCollection{Collection: c, failIDs: f.failIDs}, nil
}

type failingCollection struct {
	storage.Collection
	failIDs map[int64]bool
}

func (f *failingCollection) Upsert(ctx context.Context, rec *types.Record) error {
	if f.failIDs[rec.ID] {
		return fmt.Errorf("%w: rejected", types.ErrStoreWriteFailure)
	}
	return f.Collection.Upsert(ctx, rec)
}

func setupIndexer(t *testing.T, emb embedder.Embedder, opts ...Option) (*Indexer, *storage.SQLiteStore) {
	t.Helper()
	store := storage.NewSQLiteStore(":memory:", testDim)
	t.Cleanup(func() { _ = store.Close() })

	idx, err := New(store, emb, opts...)
	require.NoError(t, err)
	t.Cleanup(idx.Release)
	return idx, store
}

func searchIDs(t *testing.T, store storage.VectorStore, vec []float32) []int64 {
	t.Helper()
	coll, err := store.EnsureCollection(context.Background(), "hotels")
	require.NoError(t, err)
	hits, err := storage.Collect(coll.VectorSearch(context.Background(), vec, storage.SearchOptions{}))
	require.NoError(t, err)
	ids := make([]int64, len(hits))
	for i, h := range hits {
		ids[i] = h.Record.ID
	}
	return ids
}

func TestNew(t *testing.T) {
	store := storage.NewSQLiteStore(":memory:", testDim)
	defer store.Close()

	_, err := New(nil, newMockEmbedder())
	assert.ErrorIs(t, err, ErrStoreRequired)

	_, err = New(store, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	idx, err := New(store, newMockEmbedder(), WithWorkers(0), WithLogger(nil))
	require.NoError(t, err)
	assert.Equal(t, 1, idx.pool.Cap())
	idx.Release()
}

func TestIngest(t *testing.T) {
	ctx := context.Background()
	idx, store := setupIndexer(t, newMockEmbedder())

	records := []types.Record{
		{ID: 1, Name: "Alpha", Description: "A"},
		{ID: 2, Name: "Beta", Description: "B"},
	}
	report, err := idx.Ingest(ctx, "hotels", records)
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2}, report.SucceededIDs)
	assert.Empty(t, report.Failed)
	assert.Empty(t, report.SkippedIDs)
	assert.Greater(t, report.Duration, time.Duration(0))
	assert.Nil(t, records[0].Embedding, "caller's records are not mutated")

	// Querying with A's vector ranks record 1 first
	assert.Equal(t, []int64{1, 2}, searchIDs(t, store, []float32{1, 0}))
}

func TestIngestPartialFailure(t *testing.T) {
	ctx := context.Background()
	emb := newMockEmbedder()
	emb.failOn["broken"] = true

	base := storage.NewSQLiteStore(":memory:", testDim)
	defer base.Close()
	store := &failingStore{VectorStore: base, failIDs: map[int64]bool{4: true}}

	idx, err := New(store, emb, WithWorkers(2))
	require.NoError(t, err)
	defer idx.Release()

	records := []types.Record{
		{ID: 1, Name: "One", Description: "A"},
		{ID: 2, Name: "Two", Description: "broken"},
		{ID: 3, Name: "Three", Description: "B"},
		{ID: 4, Name: "Four", Description: "A"},
		{ID: -5, Name: "Five", Description: "A"},
	}
	report, err := idx.Ingest(ctx, "hotels", records)
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 3}, report.SucceededIDs)
	require.Len(t, report.Failed, 3)
	assert.Contains(t, report.Failed[2], "model overloaded")
	assert.Contains(t, report.Failed[4], "rejected")
	assert.Contains(t, report.Failed[-5], types.ErrNegativeID.Error())
	assert.Equal(t, len(records), report.Total())

	// Invalid records never reach the embedder
	assert.Equal(t, 4, emb.calls())
}

func TestIngestWrongDimensionIsPerRecord(t *testing.T) {
	emb := newMockEmbedder()
	emb.vectors["wide"] = []float32{1, 2, 3}
	idx, _ := setupIndexer(t, emb)

	report, err := idx.Ingest(context.Background(), "hotels", []types.Record{
		{ID: 1, Name: "ok", Description: "A"},
		{ID: 2, Name: "bad", Description: "wide"},
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, report.SucceededIDs)
	assert.Contains(t, report.Failed[2], types.ErrStoreWriteFailure.Error())
}

func TestIngestRegeneratesEmbedding(t *testing.T) {
	ctx := context.Background()
	idx, store := setupIndexer(t, newMockEmbedder())

	_, err := idx.Ingest(ctx, "hotels", []types.Record{
		{ID: 1, Name: "One", Description: "A"},
		{ID: 2, Name: "Two", Description: "B"},
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, searchIDs(t, store, []float32{1, 0}))

	// Swap descriptions; the ranking must follow
	_, err = idx.Ingest(ctx, "hotels", []types.Record{
		{ID: 1, Name: "One", Description: "B"},
		{ID: 2, Name: "Two", Description: "A"},
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 1}, searchIDs(t, store, []float32{1, 0}))

	n, err := store.Count(ctx, "hotels")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestIngestDuplicateIDsLastWins(t *testing.T) {
	ctx := context.Background()
	emb := newMockEmbedder()
	idx, store := setupIndexer(t, emb)

	report, err := idx.Ingest(ctx, "hotels", []types.Record{
		{ID: 1, Name: "Old", Description: "A"},
		{ID: 2, Name: "Other", Description: "A"},
		{ID: 1, Name: "New", Description: "B"},
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, report.SucceededIDs)
	assert.Equal(t, 2, emb.calls())

	assert.Equal(t, []int64{1, 2}, searchIDs(t, store, []float32{0, 1}))
}

func TestIngestCollectionError(t *testing.T) {
	base := storage.NewSQLiteStore(":memory:", testDim)
	defer base.Close()
	store := &failingStore{VectorStore: base, ensureErr: fmt.Errorf("%w: host not set", types.ErrConfigurationMissing)}

	emb := newMockEmbedder()
	idx, err := New(store, emb)
	require.NoError(t, err)
	defer idx.Release()

	report, err := idx.Ingest(context.Background(), "hotels", []types.Record{{ID: 1, Name: "x", Description: "A"}})
	assert.Nil(t, report)
	assert.ErrorIs(t, err, types.ErrConfigurationMissing)
	assert.Equal(t, 0, emb.calls())
}

func TestIngestInProgress(t *testing.T) {
	emb := newMockEmbedder()
	emb.gate = make(chan struct{})
	emb.started = make(chan string, 10)
	idx, _ := setupIndexer(t, emb)

	done := make(chan error, 1)
	go func() {
		_, err := idx.Ingest(context.Background(), "hotels", []types.Record{{ID: 1, Name: "x", Description: "A"}})
		done <- err
	}()

	<-emb.started
	assert.True(t, idx.Running())

	_, err := idx.Ingest(context.Background(), "hotels", []types.Record{{ID: 2, Name: "y", Description: "B"}})
	assert.ErrorIs(t, err, ErrIngestionInProgress)

	close(emb.gate)
	require.NoError(t, <-done)
	assert.False(t, idx.Running())
}

func TestIngestCancellation(t *testing.T) {
	emb := newMockEmbedder()
	emb.gate = make(chan struct{})
	emb.started = make(chan string, 10)
	idx, _ := setupIndexer(t, emb, WithWorkers(1))

	records := make([]types.Record, 6)
	for i := range records {
		records[i] = types.Record{ID: int64(i + 1), Name: fmt.Sprintf("h%d", i+1), Description: "A"}
	}

	ctx, cancel := context.WithCancel(context.Background())
	type result struct {
		report *types.IngestionReport
		err    error
	}
	done := make(chan result, 1)
	go func() {
		report, err := idx.Ingest(ctx, "hotels", records)
		done <- result{report, err}
	}()

	// First record is in flight; cancel, then let it finish
	<-emb.started
	cancel()
	close(emb.gate)

	res := <-done
	assert.True(t, errors.Is(res.err, context.Canceled))
	require.NotNil(t, res.report)

	assert.True(t, res.report.Succeeded(1), "in-flight record completes")
	assert.Contains(t, res.report.SkippedIDs, int64(6))
	assert.Empty(t, res.report.Failed)
	assert.Equal(t, len(records), res.report.Total())
}

func TestIngestCancelledWhileQueued(t *testing.T) {
	emb := newMockEmbedder()
	emb.gate = make(chan struct{})
	emb.started = make(chan string, 10)
	idx, store := setupIndexer(t, emb, WithWorkers(1))

	ctx, cancel := context.WithCancel(context.Background())
	type result struct {
		report *types.IngestionReport
		err    error
	}
	done := make(chan result, 1)
	go func() {
		report, err := idx.Ingest(ctx, "hotels", []types.Record{
			{ID: 1, Name: "One", Description: "A"},
			{ID: 2, Name: "Two", Description: "B"},
		})
		done <- result{report, err}
	}()

	// Record 2 waits for the only worker; it must not start after cancel
	<-emb.started
	cancel()
	close(emb.gate)

	res := <-done
	assert.ErrorIs(t, res.err, context.Canceled)
	require.NotNil(t, res.report)
	assert.Equal(t, []int64{1}, res.report.SucceededIDs)
	assert.Equal(t, []int64{2}, res.report.SkippedIDs)
	assert.Empty(t, res.report.Failed)
	assert.Equal(t, 1, emb.calls())

	n, err := store.Count(context.Background(), "hotels")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIngestRecordWithoutName(t *testing.T) {
	idx, store := setupIndexer(t, newMockEmbedder())

	report, err := idx.Ingest(context.Background(), "hotels", []types.Record{
		{ID: 1, Description: "A"},
		{ID: 2, Name: "Beta", Description: "B"},
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, report.SucceededIDs)
	assert.Empty(t, report.Failed)

	assert.Equal(t, []int64{1, 2}, searchIDs(t, store, []float32{1, 0}))
}

func TestDedupe(t *testing.T) {
	got, dropped := dedupe([]types.Record{
		{ID: 3, Name: "a"},
		{ID: 1, Name: "b"},
		{ID: 3, Name: "c"},
	})
	assert.Equal(t, 1, dropped)
	require.Len(t, got, 2)
	assert.Equal(t, int64(3), got[0].ID)
	assert.Equal(t, "c", got[0].Name)
	assert.Equal(t, int64(1), got[1].ID)
}

func TestIngestLock(t *testing.T) {
	var l IngestLock
	assert.True(t, l.TryAcquire())
	assert.False(t, l.TryAcquire())
	assert.True(t, l.Held())
	l.Release()
	assert.False(t, l.Held())
	assert.True(t, l.TryAcquire())
}
