package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"strings"
	"unicode"
)

// LocalModel is the model name reported by LocalProvider
const LocalModel = "feature-hash-v1"

// LocalProvider produces deterministic embeddings offline by hashing word
// tokens into a fixed number of buckets. Texts sharing words land near each
// other, which is enough for development and tests without an API key.
type LocalProvider struct {
	dimension int
}

// NewLocalProvider creates a local embedder. dimension 0 means LocalDimension.
func NewLocalProvider(dimension int) (*LocalProvider, error) {
	if dimension <= 0 {
		dimension = LocalDimension
	}
	return &LocalProvider{dimension: dimension}, nil
}

func (l *LocalProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vector := make([]float32, l.dimension)
	tokens := tokenize(req.Text)
	for _, tok := range tokens {
		sum := sha256.Sum256([]byte(tok))
		bucket := binary.BigEndian.Uint64(sum[:8]) % uint64(l.dimension)
		sign := float32(1)
		if sum[8]&1 == 1 {
			sign = -1
		}
		vector[bucket] += sign
	}

	// No tokens (or all cancelled out): derive every component from the raw text
	if len(tokens) == 0 || isZero(vector) {
		fillFromHash(vector, req.Text)
	}

	return &Embedding{
		Vector:    NormalizeVector(vector),
		Dimension: l.dimension,
		Provider:  ProviderLocal,
		Model:     LocalModel,
	}, nil
}

func (l *LocalProvider) Dimension() int {
	return l.dimension
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return LocalModel
}

func (l *LocalProvider) Close() error {
	return nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func fillFromHash(vector []float32, text string) {
	sum := sha256.Sum256([]byte(text))
	for i := range vector {
		if i > 0 && i%32 == 0 {
			sum = sha256.Sum256(sum[:])
		}
		vector[i] = float32(sum[i%32])/127.5 - 1
	}
	if isZero(vector) {
		vector[0] = 1
	}
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// NormalizeVector normalizes a vector to unit length
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val * val)
	}
	magnitude := math.Sqrt(sum)

	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
