package embedder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/embeddings"
	lcopenai "github.com/tmc/langchaingo/llms/openai"

	"github.com/dshills/hotelsearch/pkg/types"
)

// CompatProvider implements Embedder against self-hosted servers that expose
// an OpenAI-compatible embeddings endpoint (Ollama, llama.cpp, vLLM).
type CompatProvider struct {
	embedder  embeddings.Embedder
	model     string
	dimension int
	logger    *slog.Logger
}

// NewCompatProvider creates an embedder for an OpenAI-compatible server.
// apiKey may be empty for servers without authentication.
func NewCompatProvider(baseURL, apiKey, model string, dimension int) (*CompatProvider, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%w: compat provider requires base_url", ErrNoProviderEnabled)
	}
	if model == "" {
		return nil, fmt.Errorf("%w: compat provider requires model", ErrNoProviderEnabled)
	}
	if apiKey == "" {
		apiKey = "none"
	}
	if dimension == 0 {
		dimension = types.DefaultDimension
	}

	client, err := lcopenai.New(
		lcopenai.WithBaseURL(baseURL),
		lcopenai.WithToken(apiKey),
		lcopenai.WithEmbeddingModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoProviderEnabled, err)
	}

	emb, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoProviderEnabled, err)
	}

	return &CompatProvider{
		embedder:  emb,
		model:     model,
		dimension: dimension,
		logger:    slog.Default().With("component", "compat-embedder"),
	}, nil
}

func (c *CompatProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	c.logger.Debug("generating embedding", "length", len(req.Text))

	vec, err := c.embedder.EmbedQuery(ctx, remoteText(req.Text))
	if err != nil {
		c.logger.Error("failed to generate embedding", "err", err)
		return nil, fmt.Errorf("%w: compat: %w", ErrProviderFailed, err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: compat: %w", ErrProviderFailed, ErrEmptyResponse)
	}

	emb := &Embedding{
		Vector:    vec,
		Dimension: len(vec),
		Provider:  ProviderCompat,
		Model:     c.model,
	}
	if err := checkDimension(emb, c.dimension); err != nil {
		return nil, err
	}
	return emb, nil
}

func (c *CompatProvider) Dimension() int {
	return c.dimension
}

func (c *CompatProvider) Provider() string {
	return ProviderCompat
}

func (c *CompatProvider) Model() string {
	return c.model
}

func (c *CompatProvider) Close() error {
	return nil
}
