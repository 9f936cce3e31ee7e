package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dshills/hotelsearch/pkg/types"
)

func TestQdrantStoreConfigurationMissing(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		cfg  QdrantConfig
	}{
		{"no host", QdrantConfig{APIKey: "key", Port: 6334}},
		{"no api key", QdrantConfig{Host: "localhost", Port: 6334}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewQdrantStore(tt.cfg, 4)
			defer store.Close()

			_, err := store.EnsureCollection(ctx, "hotels")
			assert.ErrorIs(t, err, types.ErrConfigurationMissing)
			assert.Nil(t, store.client, "no client may be built without configuration")
		})
	}
}

func TestQdrantStoreUnreachable(t *testing.T) {
	if testing.Short() {
		t.Skip("dials a closed port")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store := NewQdrantStore(QdrantConfig{Host: "127.0.0.1", Port: 1, APIKey: "key"}, 4)
	defer store.Close()

	_, err := store.EnsureCollection(ctx, "hotels")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrConnectionFailure)
}

func TestClassify(t *testing.T) {
	unavailable := status.Error(codes.Unavailable, "connection refused")
	assert.ErrorIs(t, classify(unavailable, types.ErrStoreWriteFailure, "upsert"), types.ErrConnectionFailure)

	invalid := status.Error(codes.InvalidArgument, "bad vector")
	err := classify(invalid, types.ErrStoreWriteFailure, "upsert")
	assert.ErrorIs(t, err, types.ErrStoreWriteFailure)
	assert.NotErrorIs(t, err, types.ErrConnectionFailure)

	assert.ErrorIs(t, classify(context.Canceled, types.ErrConnectionFailure, "query"), context.Canceled)
	assert.NotErrorIs(t, classify(context.Canceled, types.ErrConnectionFailure, "query"), types.ErrConnectionFailure)
	assert.True(t, errors.Is(classify(errors.New("boom"), types.ErrConnectionFailure, "q"), types.ErrConnectionFailure))
}

func TestPointToHit(t *testing.T) {
	p := &qdrant.ScoredPoint{
		Id:    qdrant.NewIDNum(12),
		Score: 0.5,
		Payload: qdrant.NewValueMap(map[string]any{
			"id":          int64(12),
			"name":        "Dune Resort",
			"description": "desert spa",
		}),
	}
	h := pointToHit(p)
	assert.Equal(t, int64(12), h.Record.ID)
	assert.Equal(t, "Dune Resort", h.Record.Name)
	assert.Equal(t, "desert spa", h.Record.Description)
	require.NotNil(t, h.Score)
	assert.InDelta(t, 0.5, *h.Score, 1e-9)

	t.Run("falls back to point id", func(t *testing.T) {
		h := pointToHit(&qdrant.ScoredPoint{Id: qdrant.NewIDNum(5)})
		assert.Equal(t, int64(5), h.Record.ID)
	})
}
