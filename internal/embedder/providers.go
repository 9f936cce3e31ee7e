package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Provider configuration
const (
	ProviderJina   = "jina"
	ProviderOpenAI = "openai"
	ProviderCompat = "compat"
	ProviderLocal  = "local"

	// Default models
	DefaultJinaModel   = "jina-embeddings-v3"
	DefaultOpenAIModel = "text-embedding-3-small"

	// Dimensions
	JinaDimension   = 1024
	OpenAIDimension = 1536
	LocalDimension  = 384

	DefaultJinaBaseURL = "https://api.jina.ai/v1"

	requestTimeout = 30 * time.Second
)

// JinaProvider implements Embedder using the Jina AI REST API
type JinaProvider struct {
	apiKey     string
	model      string
	baseURL    string
	dimension  int
	httpClient *http.Client
	retry      RetryConfig
}

// NewJinaProvider creates a new Jina AI embedder. Empty model, baseURL and
// dimension fall back to the Jina defaults.
func NewJinaProvider(apiKey, model, baseURL string, dimension int) (*JinaProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: jina api key not set", ErrNoProviderEnabled)
	}
	if model == "" {
		model = DefaultJinaModel
	}
	if baseURL == "" {
		baseURL = DefaultJinaBaseURL
	}
	if dimension == 0 {
		dimension = JinaDimension
	}

	return &JinaProvider{
		apiKey:    apiKey,
		model:     model,
		baseURL:   baseURL,
		dimension: dimension,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		retry: DefaultRetryConfig(),
	}, nil
}

func (j *JinaProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	emb, err := retryWithBackoff(ctx, j.retry, func() (*Embedding, error) {
		return j.callAPI(ctx, remoteText(req.Text))
	})
	if err != nil {
		return nil, fmt.Errorf("%w: jina: %w", ErrProviderFailed, err)
	}
	if err := checkDimension(emb, j.dimension); err != nil {
		return nil, err
	}
	return emb, nil
}

func (j *JinaProvider) callAPI(ctx context.Context, text string) (*Embedding, error) {
	reqBody := map[string]interface{}{
		"input":      []string{text},
		"model":      j.model,
		"dimensions": j.dimension,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+j.apiKey)

	resp, err := j.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &statusError{code: resp.StatusCode, body: string(bodyBytes)}
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
		Model string `json:"model"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(apiResp.Data) == 0 {
		return nil, ErrEmptyResponse
	}

	vec := apiResp.Data[0].Embedding
	return &Embedding{
		Vector:    vec,
		Dimension: len(vec),
		Provider:  ProviderJina,
		Model:     j.model,
	}, nil
}

func (j *JinaProvider) Dimension() int {
	return j.dimension
}

func (j *JinaProvider) Provider() string {
	return ProviderJina
}

func (j *JinaProvider) Model() string {
	return j.model
}

func (j *JinaProvider) Close() error {
	j.httpClient.CloseIdleConnections()
	return nil
}

// OpenAIProvider implements Embedder using the OpenAI embeddings API
type OpenAIProvider struct {
	client    *openai.Client
	model     string
	dimension int
	// sendDimension is set when the caller asked for a non-default size
	sendDimension bool
	retry         RetryConfig
}

// NewOpenAIProvider creates a new OpenAI embedder. baseURL may point at any
// server that speaks the OpenAI embeddings protocol.
func NewOpenAIProvider(apiKey, model, baseURL string, dimension int) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: openai api key not set", ErrNoProviderEnabled)
	}
	if model == "" {
		model = DefaultOpenAIModel
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: requestTimeout}

	p := &OpenAIProvider{
		client:    openai.NewClientWithConfig(cfg),
		model:     model,
		dimension: OpenAIDimension,
		retry:     DefaultRetryConfig(),
	}
	if dimension != 0 && dimension != OpenAIDimension {
		p.dimension = dimension
		p.sendDimension = true
	}
	return p, nil
}

func (o *OpenAIProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	emb, err := retryWithBackoff(ctx, o.retry, func() (*Embedding, error) {
		return o.callAPI(ctx, remoteText(req.Text))
	})
	if err != nil {
		return nil, fmt.Errorf("%w: openai: %w", ErrProviderFailed, err)
	}
	if err := checkDimension(emb, o.dimension); err != nil {
		return nil, err
	}
	return emb, nil
}

func (o *OpenAIProvider) callAPI(ctx context.Context, text string) (*Embedding, error) {
	req := openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(o.model),
	}
	if o.sendDimension {
		req.Dimensions = o.dimension
	}

	resp, err := o.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, ErrEmptyResponse
	}

	vec := resp.Data[0].Embedding
	return &Embedding{
		Vector:    vec,
		Dimension: len(vec),
		Provider:  ProviderOpenAI,
		Model:     o.model,
	}, nil
}

func (o *OpenAIProvider) Dimension() int {
	return o.dimension
}

func (o *OpenAIProvider) Provider() string {
	return ProviderOpenAI
}

func (o *OpenAIProvider) Model() string {
	return o.model
}

func (o *OpenAIProvider) Close() error {
	return nil
}
