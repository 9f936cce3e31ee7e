package searcher

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/dshills/hotelsearch/internal/embedder"
	"github.com/dshills/hotelsearch/internal/storage"
	"github.com/dshills/hotelsearch/pkg/types"
)

// SearchMode defines how search is performed
type SearchMode string

const (
	SearchModeVector SearchMode = "vector" // Vector similarity only
	SearchModeHybrid SearchMode = "hybrid" // Vector + keyword match, fused by the store
)

// DefaultTop is the page size used when a request leaves Top unset
const DefaultTop = 10

var (
	ErrStoreRequired    = errors.New("vector store is required")
	ErrEmbedderRequired = errors.New("embedder is required")
)

// SearchRequest contains parameters for a search operation
type SearchRequest struct {
	Query    string
	Keywords string // Comma-separated, hybrid only
	Skip     int
	Top      int // 0 means DefaultTop
	Mode     SearchMode
}

// SearchResponse contains search results and metadata
type SearchResponse struct {
	Results    []types.SearchResult
	SearchMode SearchMode
	Keywords   []string
	Duration   time.Duration
}

// Searcher answers vector and hybrid queries against one collection
type Searcher struct {
	store      storage.VectorStore
	embedder   embedder.Embedder
	collection string
	logger     *slog.Logger
}

// Option configures a Searcher
type Option func(*Searcher)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSearcher creates a new Searcher for the named collection
func NewSearcher(store storage.VectorStore, emb embedder.Embedder, collection string, opts ...Option) (*Searcher, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if emb == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Searcher{
		store:      store,
		embedder:   emb,
		collection: collection,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "searcher")
	return s, nil
}

// Collection returns the collection this searcher queries
func (s *Searcher) Collection() string {
	return s.collection
}

// VectorSearch returns up to top records most similar to query, after
// skipping the first skip matches. top must be positive.
func (s *Searcher) VectorSearch(ctx context.Context, query string, skip, top int) ([]types.SearchResult, error) {
	opts, err := pageOptions(skip, top)
	if err != nil {
		return nil, err
	}

	vector, coll, err := s.prepare(ctx, query)
	if err != nil {
		return nil, err
	}

	return drain(coll.VectorSearch(ctx, vector, opts))
}

// HybridSearch is VectorSearch combined with full-text matching of the
// comma-separated keywords. Blank keywords are dropped; if none remain the
// store ranks by vector similarity alone.
func (s *Searcher) HybridSearch(ctx context.Context, query, keywordsCSV string, skip, top int) ([]types.SearchResult, error) {
	opts, err := pageOptions(skip, top)
	if err != nil {
		return nil, err
	}

	keywords := ParseKeywords(keywordsCSV)

	vector, coll, err := s.prepare(ctx, query)
	if err != nil {
		return nil, err
	}

	return drain(coll.HybridSearch(ctx, vector, keywords, opts))
}

// Search dispatches on req.Mode. An empty mode is hybrid when keywords are
// given and vector otherwise.
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	start := time.Now()

	top := req.Top
	if top == 0 {
		top = DefaultTop
	}

	mode := req.Mode
	if mode == "" {
		mode = SearchModeVector
		if strings.TrimSpace(req.Keywords) != "" {
			mode = SearchModeHybrid
		}
	}

	var (
		results  []types.SearchResult
		keywords []string
		err      error
	)
	switch mode {
	case SearchModeVector:
		results, err = s.VectorSearch(ctx, req.Query, req.Skip, top)
	case SearchModeHybrid:
		keywords = ParseKeywords(req.Keywords)
		results, err = s.HybridSearch(ctx, req.Query, req.Keywords, req.Skip, top)
	default:
		return nil, fmt.Errorf("%w: unsupported search mode %q", types.ErrInvalidArgument, mode)
	}
	if err != nil {
		s.logger.Warn("search failed", "mode", mode, "err", err)
		return nil, err
	}

	resp := &SearchResponse{
		Results:    results,
		SearchMode: mode,
		Keywords:   keywords,
		Duration:   time.Since(start),
	}
	s.logger.Debug("search completed", "mode", mode, "results", len(results), "duration", resp.Duration)
	return resp, nil
}

// prepare embeds the query and resolves the collection
func (s *Searcher) prepare(ctx context.Context, query string) ([]float32, storage.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	emb, err := s.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: query})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	coll, err := s.store.EnsureCollection(ctx, s.collection)
	if err != nil {
		return nil, nil, fmt.Errorf("collection %s: %w", s.collection, err)
	}

	return emb.Vector, coll, nil
}

// pageOptions validates pagination. Skip is forwarded only when positive.
func pageOptions(skip, top int) (storage.SearchOptions, error) {
	if top <= 0 {
		return storage.SearchOptions{}, fmt.Errorf("%w: top must be a positive integer, got %d", types.ErrInvalidArgument, top)
	}
	opts := storage.SearchOptions{Top: top}
	if skip > 0 {
		opts.Skip = skip
	}
	return opts, nil
}

// drain collects hits in store order, defaulting missing scores to 0
func drain(seq iter.Seq2[storage.Hit, error]) ([]types.SearchResult, error) {
	results := make([]types.SearchResult, 0)
	for hit, err := range seq {
		if err != nil {
			return nil, err
		}
		results = append(results, types.SearchResult{
			Score:       types.ScoreOrZero(hit.Score),
			ID:          hit.Record.ID,
			Name:        hit.Record.Name,
			Description: hit.Record.Description,
		})
	}
	return results, nil
}

// ParseKeywords splits a comma-separated list, trims each token and drops
// empty ones. The result is never nil.
func ParseKeywords(csv string) []string {
	keywords := make([]string, 0)
	for _, tok := range strings.Split(csv, ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			keywords = append(keywords, tok)
		}
	}
	return keywords
}
