package embedder

import (
	"fmt"
	"strings"

	"github.com/dshills/hotelsearch/internal/config"
)

// New builds the configured Embedder, wrapped in the LRU cache and rate
// limiter when those are enabled. An empty provider auto-detects: openai
// when an API key is present, local otherwise.
func New(cfg config.EmbeddingConfig) (Embedder, error) {
	base, err := newProvider(cfg)
	if err != nil {
		return nil, err
	}

	var e Embedder = base
	e = WithRateLimit(e, cfg.RequestsPerSecond)
	if cfg.CacheSize > 0 {
		e = WithCache(e, NewCache(cfg.CacheSize))
	}
	return e, nil
}

func newProvider(cfg config.EmbeddingConfig) (Embedder, error) {
	switch DetectProvider(cfg) {
	case ProviderJina:
		return NewJinaProvider(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.Dimension)
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.Dimension)
	case ProviderCompat:
		return NewCompatProvider(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Dimension)
	case ProviderLocal:
		return NewLocalProvider(cfg.Dimension)
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// DetectProvider returns the provider New would use for cfg
func DetectProvider(cfg config.EmbeddingConfig) string {
	if cfg.Provider != "" {
		return strings.ToLower(cfg.Provider)
	}
	if cfg.APIKey != "" {
		return ProviderOpenAI
	}
	return ProviderLocal
}
