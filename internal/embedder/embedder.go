package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/hotelsearch/pkg/types"
)

// Common errors. Each wraps one of the shared error kinds so callers can
// match either the specific cause or the kind.
var (
	ErrProviderFailed    = fmt.Errorf("embedding provider failed: %w", types.ErrGenerationFailure)
	ErrUnsupportedModel  = fmt.Errorf("unsupported provider: %w", types.ErrInvalidArgument)
	ErrNoProviderEnabled = fmt.Errorf("embedding provider not configured: %w", types.ErrConfigurationMissing)
	ErrDimensionMismatch = fmt.Errorf("embedding dimension mismatch: %w", types.ErrGenerationFailure)
	ErrEmptyResponse     = errors.New("no embeddings returned")
)

// Embedding represents a vector embedding with metadata
type Embedding struct {
	Vector    []float32
	Dimension int
	Provider  string
	Model     string
	Hash      string // Content hash for caching
}

// EmbeddingRequest represents a request to generate an embedding
type EmbeddingRequest struct {
	Text string // May be empty
}

// Embedder turns text into a fixed-dimension vector
type Embedder interface {
	// GenerateEmbedding generates a single embedding for the given text
	GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error)

	// Dimension returns the embedding dimension for this provider
	Dimension() int

	// Provider returns the provider name
	Provider() string

	// Model returns the model name
	Model() string

	// Close releases any resources held by the embedder
	Close() error
}

// DefaultCacheSize is used when NewCache is given a non-positive size
const DefaultCacheSize = 10000

// Cache is an LRU of embeddings keyed by text hash. Entries are copied on
// the way in and out so callers may mutate what they hold.
type Cache struct {
	entries *lru.Cache[string, *Embedding]
}

// NewCache creates a cache holding at most size embeddings
func NewCache(size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, _ := lru.New[string, *Embedding](size) // fails only for size <= 0
	return &Cache{entries: entries}
}

// Get returns a copy of the cached embedding for hash
func (c *Cache) Get(hash string) (*Embedding, bool) {
	emb, ok := c.entries.Get(hash)
	if !ok {
		return nil, false
	}
	return copyEmbedding(emb), true
}

// Set caches a copy of emb under hash
func (c *Cache) Set(hash string, emb *Embedding) {
	c.entries.Add(hash, copyEmbedding(emb))
}

func (c *Cache) Size() int {
	return c.entries.Len()
}

func (c *Cache) Clear() {
	c.entries.Purge()
}

func copyEmbedding(emb *Embedding) *Embedding {
	cp := *emb
	cp.Vector = slices.Clone(emb.Vector)
	return &cp
}

// ComputeHash returns the hex SHA-256 of text
func ComputeHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// cached wraps an Embedder with a content-hash LRU cache
type cached struct {
	Embedder
	cache *Cache
}

// WithCache returns an Embedder that serves repeated texts from cache
func WithCache(e Embedder, cache *Cache) Embedder {
	if cache == nil {
		return e
	}
	return &cached{Embedder: e, cache: cache}
}

func (c *cached) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	hash := ComputeHash(req.Text)
	if emb, ok := c.cache.Get(hash); ok {
		return emb, nil
	}

	emb, err := c.Embedder.GenerateEmbedding(ctx, req)
	if err != nil {
		return nil, err
	}
	emb.Hash = hash
	c.cache.Set(hash, emb)
	return emb, nil
}

// checkDimension rejects vectors that do not match the provider's dimension
func checkDimension(emb *Embedding, want int) error {
	if len(emb.Vector) != want {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(emb.Vector), want)
	}
	return nil
}

// remoteText maps empty input to a single space; the hosted APIs reject
// empty strings but every text must still produce a vector.
func remoteText(text string) string {
	if text == "" {
		return " "
	}
	return text
}
