package storage

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync/atomic"

	"github.com/dshills/hotelsearch/pkg/types"
)

// DefaultTop is the page size used when SearchOptions.Top is zero
const DefaultTop = 10

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrResultsConsumed is yielded when a search sequence is ranged twice
	ErrResultsConsumed = errors.New("search results already consumed")
	// ErrDimensionConflict is returned when an existing collection was
	// created with a different vector dimension
	ErrDimensionConflict = fmt.Errorf("collection dimension conflict: %w", types.ErrInvalidArgument)
)

// VectorStore owns named collections of embedded records
type VectorStore interface {
	// EnsureCollection creates the collection if it is absent and returns a
	// handle to it. Calling it for an existing collection is a no-op.
	EnsureCollection(ctx context.Context, name string) (Collection, error)

	// Dimension is the vector size fixed when the store was created
	Dimension() int

	Close() error
}

// Collection is a handle to one named container of records
type Collection interface {
	Name() string

	// Upsert inserts or replaces a record by ID. The record must carry an
	// embedding of the store's dimension.
	Upsert(ctx context.Context, rec *types.Record) error

	// VectorSearch ranks records by similarity to vector. Nothing runs until
	// the returned sequence is ranged, and it may be ranged only once.
	VectorSearch(ctx context.Context, vector []float32, opts SearchOptions) iter.Seq2[Hit, error]

	// HybridSearch combines vector similarity with full-text matching of
	// keywords. An empty keyword set behaves like VectorSearch.
	HybridSearch(ctx context.Context, vector []float32, keywords []string, opts SearchOptions) iter.Seq2[Hit, error]
}

// MaxFusionWindow caps the candidates each hybrid search leg fetches. Pages
// past the cap come back empty.
const MaxFusionWindow = 10000

// SearchOptions controls pagination. Skip <= 0 means no skip; Top == 0
// means DefaultTop and Top < 0 is invalid.
type SearchOptions struct {
	Skip int
	Top  int
}

// normalize applies defaults and rejects a negative page size
func (o SearchOptions) normalize() (SearchOptions, error) {
	if o.Top < 0 {
		return o, fmt.Errorf("%w: top must be positive, got %d", types.ErrInvalidArgument, o.Top)
	}
	if o.Top == 0 {
		o.Top = DefaultTop
	}
	if o.Skip < 0 {
		o.Skip = 0
	}
	return o, nil
}

// fusionWindow is the per-leg candidate count for hybrid search,
// 2*(Skip+Top) capped at MaxFusionWindow. Expects normalized options.
func (o SearchOptions) fusionWindow() int {
	half := MaxFusionWindow / 2
	if o.Skip >= half || o.Top >= half || o.Skip+o.Top >= half {
		return MaxFusionWindow
	}
	return 2 * (o.Skip + o.Top)
}

// Hit is one ranked search result. Score is nil when the store did not
// report one.
type Hit struct {
	Record types.Record
	Score  *float64
}

// Option configures a store
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger used by the store
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func buildOptions(component string, opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.With("component", component)
	return o
}

// lazyHits wraps fetch in a forward-only sequence. fetch runs on the first
// range; ranging again yields ErrResultsConsumed.
func lazyHits(fetch func() ([]Hit, error)) iter.Seq2[Hit, error] {
	var consumed atomic.Bool
	return func(yield func(Hit, error) bool) {
		if consumed.Swap(true) {
			yield(Hit{}, ErrResultsConsumed)
			return
		}
		hits, err := fetch()
		if err != nil {
			yield(Hit{}, err)
			return
		}
		for _, h := range hits {
			if !yield(h, nil) {
				return
			}
		}
	}
}

// failedHits is a sequence that yields err once
func failedHits(err error) iter.Seq2[Hit, error] {
	return lazyHits(func() ([]Hit, error) { return nil, err })
}

// checkVector rejects query vectors of the wrong size
func checkVector(vector []float32, dimension int) error {
	if len(vector) != dimension {
		return fmt.Errorf("%w: query vector has dimension %d, want %d", types.ErrInvalidArgument, len(vector), dimension)
	}
	return nil
}

// Collect drains seq into a slice, stopping at the first error
func Collect(seq iter.Seq2[Hit, error]) ([]Hit, error) {
	var hits []Hit
	for h, err := range seq {
		if err != nil {
			return hits, err
		}
		hits = append(hits, h)
	}
	return hits, nil
}

func scorePtr(v float64) *float64 {
	return &v
}
