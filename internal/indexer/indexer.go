package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/dshills/hotelsearch/internal/embedder"
	"github.com/dshills/hotelsearch/internal/storage"
	"github.com/dshills/hotelsearch/pkg/types"
)

var (
	// ErrIngestionInProgress is returned when Ingest is called while another
	// ingestion is still running
	ErrIngestionInProgress = errors.New("ingestion already in progress")
	// ErrStoreRequired is returned by New without a store
	ErrStoreRequired = errors.New("vector store is required")
	// ErrEmbedderRequired is returned by New without an embedder
	ErrEmbedderRequired = errors.New("embedder is required")
)

// Indexer drives bulk ingestion: embed each record's description, then
// upsert it. Records are processed independently on a bounded worker pool
// and one record's failure never aborts the rest of the batch.
type Indexer struct {
	store    storage.VectorStore
	embedder embedder.Embedder
	pool     *ants.Pool
	lock     IngestLock
	logger   *slog.Logger
}

// Option configures an Indexer
type Option func(*Indexer) error

// WithWorkers sets the number of records processed concurrently.
// Default is runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(idx *Indexer) error {
		if n < 1 {
			n = 1
		}
		pool, err := ants.NewPool(n)
		if err != nil {
			return err
		}
		if idx.pool != nil {
			idx.pool.Release()
		}
		idx.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(idx *Indexer) error {
		if logger == nil {
			logger = slog.Default()
		}
		idx.logger = logger
		return nil
	}
}

// New creates an Indexer. Call Release when done to stop the worker pool.
func New(store storage.VectorStore, emb embedder.Embedder, opts ...Option) (*Indexer, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if emb == nil {
		return nil, ErrEmbedderRequired
	}

	idx := &Indexer{
		store:    store,
		embedder: emb,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(idx); err != nil {
			idx.Release()
			return nil, err
		}
	}

	if idx.pool == nil {
		pool, err := ants.NewPool(runtime.NumCPU())
		if err != nil {
			return nil, err
		}
		idx.pool = pool
	}
	idx.logger = idx.logger.With("component", "indexer")

	return idx, nil
}

// Release stops the worker pool
func (idx *Indexer) Release() {
	if idx.pool != nil {
		idx.pool.Release()
	}
}

// Running reports whether an ingestion is in progress
func (idx *Indexer) Running() bool {
	return idx.lock.Held()
}

// Ingest embeds and upserts records into the named collection, creating it
// if needed. The returned report accounts for every distinct record ID:
// succeeded, failed with a reason, or skipped. When a record ID repeats,
// the last occurrence is ingested.
//
// Collection errors (configuration, connectivity) abort the call before any
// record is touched. If ctx is cancelled, records whose embedding has not
// started are reported as skipped, even when already handed to a worker;
// records already in flight run to completion, and
// the partial report is returned together with ctx.Err().
func (idx *Indexer) Ingest(ctx context.Context, collection string, records []types.Record) (*types.IngestionReport, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrIngestionInProgress
	}
	defer idx.lock.Release()

	start := time.Now()
	report := types.NewIngestionReport()

	coll, err := idx.store.EnsureCollection(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("ensure collection %s: %w", collection, err)
	}

	batch, dropped := dedupe(records)
	if dropped > 0 {
		idx.logger.Warn("duplicate record ids, keeping last occurrence", "dropped", dropped)
	}
	idx.logger.Info("ingestion started", "collection", collection, "records", len(batch))

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	fail := func(id int64, err error) {
		mu.Lock()
		report.Failed[id] = err.Error()
		mu.Unlock()
	}
	skip := func(id int64) {
		mu.Lock()
		report.SkippedIDs = append(report.SkippedIDs, id)
		mu.Unlock()
	}

	// In-flight records finish even if the caller cancels
	workCtx := context.WithoutCancel(ctx)

	for _, rec := range batch {
		if ctx.Err() != nil {
			skip(rec.ID)
			continue
		}

		if err := rec.Validate(); err != nil {
			idx.logger.Warn("record rejected", "id", rec.ID, "err", err)
			fail(rec.ID, err)
			continue
		}

		wg.Add(1)
		err := idx.pool.Submit(func() {
			defer wg.Done()
			// Submit may have waited for a free worker past cancellation
			if ctx.Err() != nil {
				skip(rec.ID)
				return
			}
			if err := idx.ingestOne(workCtx, coll, rec); err != nil {
				idx.logger.Error("record failed", "id", rec.ID, "name", rec.Name, "err", err)
				fail(rec.ID, err)
				return
			}
			mu.Lock()
			report.SucceededIDs = append(report.SucceededIDs, rec.ID)
			mu.Unlock()
		})
		if err != nil {
			wg.Done()
			fail(rec.ID, fmt.Errorf("submit: %w", err))
		}
	}

	wg.Wait()

	report.Normalize()
	report.Duration = time.Since(start)
	idx.logger.Info("ingestion finished",
		"collection", collection,
		"succeeded", len(report.SucceededIDs),
		"failed", len(report.Failed),
		"skipped", len(report.SkippedIDs),
		"duration", report.Duration)

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// ingestOne regenerates the embedding from the current description and
// upserts the record
func (idx *Indexer) ingestOne(ctx context.Context, coll storage.Collection, rec types.Record) error {
	emb, err := idx.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: rec.Description})
	if err != nil {
		return fmt.Errorf("generate embedding: %w", err)
	}

	rec.Embedding = emb.Vector
	if err := coll.Upsert(ctx, &rec); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}

// dedupe keeps the first position of each ID with the content of its last
// occurrence, and returns how many records were dropped
func dedupe(records []types.Record) ([]types.Record, int) {
	pos := make(map[int64]int, len(records))
	out := make([]types.Record, 0, len(records))
	for _, rec := range records {
		if i, ok := pos[rec.ID]; ok {
			out[i] = rec
			continue
		}
		pos[rec.ID] = len(out)
		out = append(out, rec)
	}
	return out, len(records) - len(out)
}
