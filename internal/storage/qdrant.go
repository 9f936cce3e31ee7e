package storage

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dshills/hotelsearch/pkg/types"
)

// Payload keys written to every Qdrant point
const (
	payloadID          = "id"
	payloadName        = "name"
	payloadDescription = "description"
)

// QdrantConfig holds the connection parameters for a Qdrant server
type QdrantConfig struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
}

// QdrantStore implements VectorStore over the Qdrant gRPC API. The client is
// created on first use so configuration problems surface from
// EnsureCollection.
type QdrantStore struct {
	cfg       QdrantConfig
	dimension int
	logger    *slog.Logger

	mu          sync.Mutex
	client      *qdrant.Client
	collections map[string]*qdrantCollection
}

// NewQdrantStore creates a Qdrant-backed store with the given vector size
func NewQdrantStore(cfg QdrantConfig, dimension int, opts ...Option) *QdrantStore {
	o := buildOptions("qdrant-store", opts)
	return &QdrantStore{
		cfg:         cfg,
		dimension:   dimension,
		logger:      o.logger,
		collections: make(map[string]*qdrantCollection),
	}
}

// connect builds the client. Callers hold s.mu.
func (s *QdrantStore) connect() (*qdrant.Client, error) {
	if s.client != nil {
		return s.client, nil
	}
	if s.cfg.Host == "" {
		return nil, fmt.Errorf("%w: qdrant host not set", types.ErrConfigurationMissing)
	}
	if s.cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: qdrant api key not set", types.ErrConfigurationMissing)
	}
	if s.dimension <= 0 {
		return nil, fmt.Errorf("%w: vector dimension not set", types.ErrConfigurationMissing)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   s.cfg.Host,
		Port:   s.cfg.Port,
		APIKey: s.cfg.APIKey,
		UseTLS: s.cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: qdrant %s:%d: %w", types.ErrConnectionFailure, s.cfg.Host, s.cfg.Port, err)
	}
	s.client = client
	return client, nil
}

// EnsureCollection implements VectorStore. A new collection uses cosine
// distance and gets a full-text index on the description payload.
func (s *QdrantStore) EnsureCollection(ctx context.Context, name string) (Collection, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: collection name is empty", types.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.collections[name]; ok {
		return c, nil
	}

	client, err := s.connect()
	if err != nil {
		return nil, err
	}

	exists, err := client.CollectionExists(ctx, name)
	if err != nil {
		return nil, classify(err, types.ErrConnectionFailure, "collection exists")
	}

	if !exists {
		err = client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(s.dimension),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil && status.Code(err) != codes.AlreadyExists {
			return nil, classify(err, types.ErrConnectionFailure, "create collection")
		}

		_, err = client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: name,
			FieldName:      payloadDescription,
			FieldType:      qdrant.FieldType_FieldTypeText.Enum(),
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil {
			return nil, classify(err, types.ErrConnectionFailure, "create text index")
		}
		s.logger.Info("collection created", "collection", name, "dimension", s.dimension)
	}

	c := &qdrantCollection{store: s, client: client, name: name}
	s.collections[name] = c
	return c, nil
}

// Dimension implements VectorStore
func (s *QdrantStore) Dimension() int {
	return s.dimension
}

// Close closes the gRPC connection
func (s *QdrantStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	clear(s.collections)
	return err
}

// classify maps gRPC transport errors to ErrConnectionFailure and
// everything else to fallback
func classify(err error, fallback error, op string) error {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: qdrant %s: %w", types.ErrConnectionFailure, op, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: qdrant %s: %w", fallback, op, err)
}

// qdrantCollection is a Collection stored in Qdrant
type qdrantCollection struct {
	store  *QdrantStore
	client *qdrant.Client
	name   string
}

func (c *qdrantCollection) Name() string {
	return c.name
}

// Upsert implements Collection. Point IDs are the record IDs.
func (c *qdrantCollection) Upsert(ctx context.Context, rec *types.Record) error {
	if rec.ID < 0 {
		return fmt.Errorf("%w: %w", types.ErrStoreWriteFailure, types.ErrNegativeID)
	}
	if err := rec.ValidateEmbedding(c.store.dimension); err != nil {
		return fmt.Errorf("%w: record %d: %w", types.ErrStoreWriteFailure, rec.ID, err)
	}

	_, err := c.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: c.name,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewIDNum(uint64(rec.ID)),
				Vectors: qdrant.NewVectors(rec.Embedding...),
				Payload: qdrant.NewValueMap(map[string]any{
					payloadID:          rec.ID,
					payloadName:        rec.Name,
					payloadDescription: rec.Description,
				}),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: record %d: %w", types.ErrStoreWriteFailure, rec.ID, err)
	}
	return nil
}

// VectorSearch implements Collection
func (c *qdrantCollection) VectorSearch(ctx context.Context, vector []float32, opts SearchOptions) iter.Seq2[Hit, error] {
	return lazyHits(func() ([]Hit, error) {
		o, err := opts.normalize()
		if err != nil {
			return nil, err
		}
		if err := checkVector(vector, c.store.dimension); err != nil {
			return nil, err
		}
		return c.query(ctx, c.vectorQuery(vector, o))
	})
}

// HybridSearch implements Collection. Qdrant fuses a plain dense leg with a
// dense leg restricted to descriptions matching any keyword, using RRF.
func (c *qdrantCollection) HybridSearch(ctx context.Context, vector []float32, keywords []string, opts SearchOptions) iter.Seq2[Hit, error] {
	return lazyHits(func() ([]Hit, error) {
		o, err := opts.normalize()
		if err != nil {
			return nil, err
		}
		if err := checkVector(vector, c.store.dimension); err != nil {
			return nil, err
		}

		conditions := make([]*qdrant.Condition, 0, len(keywords))
		for _, kw := range keywords {
			if kw != "" {
				conditions = append(conditions, qdrant.NewMatchText(payloadDescription, kw))
			}
		}
		if len(conditions) == 0 {
			return c.query(ctx, c.vectorQuery(vector, o))
		}

		window := uint64(o.fusionWindow())
		q := &qdrant.QueryPoints{
			CollectionName: c.name,
			Prefetch: []*qdrant.PrefetchQuery{
				{
					Query: qdrant.NewQuery(vector...),
					Limit: qdrant.PtrOf(window),
				},
				{
					Query:  qdrant.NewQuery(vector...),
					Filter: &qdrant.Filter{Should: conditions},
					Limit:  qdrant.PtrOf(window),
				},
			},
			Query:       qdrant.NewQueryFusion(qdrant.Fusion_RRF),
			Limit:       qdrant.PtrOf(uint64(o.Top)),
			Offset:      qdrant.PtrOf(uint64(o.Skip)),
			WithPayload: qdrant.NewWithPayload(true),
		}
		return c.query(ctx, q)
	})
}

func (c *qdrantCollection) vectorQuery(vector []float32, o SearchOptions) *qdrant.QueryPoints {
	return &qdrant.QueryPoints{
		CollectionName: c.name,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(o.Top)),
		Offset:         qdrant.PtrOf(uint64(o.Skip)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
}

func (c *qdrantCollection) query(ctx context.Context, q *qdrant.QueryPoints) ([]Hit, error) {
	points, err := c.client.Query(ctx, q)
	if err != nil {
		return nil, classify(err, types.ErrConnectionFailure, "query")
	}

	hits := make([]Hit, 0, len(points))
	for _, p := range points {
		hits = append(hits, pointToHit(p))
	}
	return hits, nil
}

// pointToHit reads the record back from the payload; the point ID is used
// when the payload lacks one
func pointToHit(p *qdrant.ScoredPoint) Hit {
	payload := p.GetPayload()
	h := Hit{
		Record: types.Record{
			ID:          int64(p.GetId().GetNum()),
			Name:        payload[payloadName].GetStringValue(),
			Description: payload[payloadDescription].GetStringValue(),
		},
		Score: scorePtr(float64(p.GetScore())),
	}
	if v, ok := payload[payloadID]; ok {
		h.Record.ID = v.GetIntegerValue()
	}
	return h
}
