package embedder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/hotelsearch/pkg/types"
)

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		Multiplier: 2.0,
	}
}

// embeddingServer serves the OpenAI/Jina embeddings response shape
func embeddingServer(t *testing.T, dim int, failures int32, inputs *[]string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing or incorrect Authorization header")
		}
		if n <= failures {
			http.Error(w, `{"error":{"message":"overloaded","type":"server_error"}}`, http.StatusServiceUnavailable)
			return
		}

		var body struct {
			Input []string `json:"input"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if inputs != nil {
			*inputs = append(*inputs, body.Input...)
		}

		vec := make([]float32, dim)
		vec[0] = 1
		resp := map[string]interface{}{
			"object": "list",
			"model":  "test-model",
			"data": []map[string]interface{}{
				{"object": "embedding", "index": 0, "embedding": vec},
			},
			"usage": map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestJinaProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("successful embedding", func(t *testing.T) {
		var inputs []string
		srv, calls := embeddingServer(t, JinaDimension, 0, &inputs)
		p, err := NewJinaProvider("test-key", "", srv.URL, 0)
		require.NoError(t, err)
		defer p.Close()

		emb, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "Lakeside lodge"})
		require.NoError(t, err)
		assert.Len(t, emb.Vector, JinaDimension)
		assert.Equal(t, ProviderJina, emb.Provider)
		assert.Equal(t, DefaultJinaModel, emb.Model)
		assert.Equal(t, int32(1), calls.Load())
		assert.Equal(t, []string{"Lakeside lodge"}, inputs)
	})

	t.Run("empty text is sent as a space", func(t *testing.T) {
		var inputs []string
		srv, _ := embeddingServer(t, JinaDimension, 0, &inputs)
		p, err := NewJinaProvider("test-key", "", srv.URL, 0)
		require.NoError(t, err)

		_, err = p.GenerateEmbedding(ctx, EmbeddingRequest{Text: ""})
		require.NoError(t, err)
		assert.Equal(t, []string{" "}, inputs)
	})

	t.Run("retries transient failures", func(t *testing.T) {
		srv, calls := embeddingServer(t, JinaDimension, 2, nil)
		p, err := NewJinaProvider("test-key", "", srv.URL, 0)
		require.NoError(t, err)
		p.retry = fastRetry()

		_, err = p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "x"})
		require.NoError(t, err)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("persistent failure is a generation failure", func(t *testing.T) {
		srv, calls := embeddingServer(t, JinaDimension, 100, nil)
		p, err := NewJinaProvider("test-key", "", srv.URL, 0)
		require.NoError(t, err)
		p.retry = fastRetry()

		_, err = p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "x"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrProviderFailed)
		assert.ErrorIs(t, err, types.ErrGenerationFailure)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			http.Error(w, `{"detail":"invalid model"}`, http.StatusBadRequest)
		}))
		defer srv.Close()

		p, err := NewJinaProvider("test-key", "", srv.URL, 0)
		require.NoError(t, err)
		p.retry = fastRetry()

		_, err = p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "x"})
		assert.ErrorIs(t, err, types.ErrGenerationFailure)
		assert.Contains(t, err.Error(), "400")
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("wrong dimension is rejected", func(t *testing.T) {
		srv, _ := embeddingServer(t, 7, 0, nil)
		p, err := NewJinaProvider("test-key", "", srv.URL, 0)
		require.NoError(t, err)

		_, err = p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "x"})
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := NewJinaProvider("", "", "", 0)
		assert.ErrorIs(t, err, types.ErrConfigurationMissing)
	})
}

func TestOpenAIProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("successful embedding", func(t *testing.T) {
		var inputs []string
		srv, calls := embeddingServer(t, OpenAIDimension, 0, &inputs)
		p, err := NewOpenAIProvider("test-key", "", srv.URL+"/v1", 0)
		require.NoError(t, err)

		emb, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "City centre business hotel"})
		require.NoError(t, err)
		assert.Len(t, emb.Vector, OpenAIDimension)
		assert.Equal(t, ProviderOpenAI, emb.Provider)
		assert.Equal(t, DefaultOpenAIModel, p.Model())
		assert.Equal(t, int32(1), calls.Load())
		assert.Equal(t, []string{"City centre business hotel"}, inputs)
	})

	t.Run("custom dimension", func(t *testing.T) {
		srv, _ := embeddingServer(t, 256, 0, nil)
		p, err := NewOpenAIProvider("test-key", "text-embedding-3-large", srv.URL+"/v1", 256)
		require.NoError(t, err)
		assert.Equal(t, 256, p.Dimension())

		emb, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "x"})
		require.NoError(t, err)
		assert.Len(t, emb.Vector, 256)
	})

	t.Run("persistent failure is a generation failure", func(t *testing.T) {
		srv, _ := embeddingServer(t, OpenAIDimension, 100, nil)
		p, err := NewOpenAIProvider("test-key", "", srv.URL+"/v1", 0)
		require.NoError(t, err)
		p.retry = fastRetry()

		_, err = p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "x"})
		assert.ErrorIs(t, err, types.ErrGenerationFailure)
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := NewOpenAIProvider("", "", "", 0)
		assert.ErrorIs(t, err, types.ErrConfigurationMissing)
	})
}

func TestCompatProviderConfig(t *testing.T) {
	_, err := NewCompatProvider("", "", "nomic-embed-text", 0)
	assert.ErrorIs(t, err, types.ErrConfigurationMissing)

	_, err = NewCompatProvider("http://localhost:11434/v1", "", "", 0)
	assert.ErrorIs(t, err, types.ErrConfigurationMissing)
}

func TestRetryWithBackoff(t *testing.T) {
	t.Run("succeeds after transient error", func(t *testing.T) {
		callCount := 0
		result, err := retryWithBackoff(context.Background(), fastRetry(), func() (string, error) {
			callCount++
			if callCount < 2 {
				return "", fmt.Errorf("transient error")
			}
			return "success", nil
		})
		assert.NoError(t, err)
		assert.Equal(t, "success", result)
		assert.Equal(t, 2, callCount)
	})

	t.Run("exponential backoff timing", func(t *testing.T) {
		config := RetryConfig{
			MaxRetries: 3,
			BaseDelay:  10 * time.Millisecond,
			MaxDelay:   100 * time.Millisecond,
			Multiplier: 2.0,
		}

		callCount := 0
		start := time.Now()
		_, err := retryWithBackoff(context.Background(), config, func() (int, error) {
			callCount++
			return 0, fmt.Errorf("error %d", callCount)
		})

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "error 3", "should return last error")
		assert.Equal(t, 3, callCount)
		// 10ms + 20ms
		assert.GreaterOrEqual(t, time.Since(start).Milliseconds(), int64(30))
	})

	t.Run("permanent errors stop immediately", func(t *testing.T) {
		callCount := 0
		_, err := retryWithBackoff(context.Background(), fastRetry(), func() (int, error) {
			callCount++
			return 0, &statusError{code: http.StatusUnauthorized, body: "bad key"}
		})
		assert.Error(t, err)
		assert.Equal(t, 1, callCount)
	})

	t.Run("context cancellation stops retries", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		callCount := 0
		_, err := retryWithBackoff(ctx, DefaultRetryConfig(), func() (int, error) {
			callCount++
			cancel()
			return 0, errors.New("fail")
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, callCount)
	})
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"network", errors.New("connection reset"), true},
		{"server error", &statusError{code: 503}, true},
		{"throttled", &statusError{code: 429}, true},
		{"timeout", &statusError{code: 408}, true},
		{"bad request", &statusError{code: 400}, false},
		{"unauthorized", fmt.Errorf("wrapped: %w", &statusError{code: 401}), false},
		{"openai api error", &openai.APIError{HTTPStatusCode: 404}, false},
		{"openai server error", &openai.RequestError{HTTPStatusCode: 502}, true},
		{"empty response", ErrEmptyResponse, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, retryable(tt.err))
		})
	}
}
