package embedder

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// rateLimited caps the request rate of the wrapped Embedder
type rateLimited struct {
	Embedder
	limiter *rate.Limiter
}

// WithRateLimit returns an Embedder that issues at most rps requests per
// second with a burst of one. rps <= 0 disables limiting.
func WithRateLimit(e Embedder, rps float64) Embedder {
	if rps <= 0 {
		return e
	}
	return &rateLimited{
		Embedder: e,
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (r *rateLimited) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return r.Embedder.GenerateEmbedding(ctx, req)
}
