package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/hotelsearch/pkg/types"
)

// SQLiteStore implements VectorStore on an embedded SQLite database with an
// FTS5 index for keyword matching. The database is opened on first use.
type SQLiteStore struct {
	path      string
	dimension int
	logger    *slog.Logger

	mu          sync.Mutex
	db          *sql.DB
	collections map[string]*sqliteCollection
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(ctx context.Context, dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStore creates a store backed by the database at dbPath. Use
// ":memory:" for a throwaway database. No file is touched until the first
// EnsureCollection call.
func NewSQLiteStore(dbPath string, dimension int, opts ...Option) *SQLiteStore {
	o := buildOptions("sqlite-store", opts)
	return &SQLiteStore{
		path:        dbPath,
		dimension:   dimension,
		logger:      o.logger,
		collections: make(map[string]*sqliteCollection),
	}
}

// connect opens the database and applies migrations. Callers hold s.mu.
func (s *SQLiteStore) connect(ctx context.Context) (*sql.DB, error) {
	if s.db != nil {
		return s.db, nil
	}
	if s.path == "" {
		return nil, fmt.Errorf("%w: sqlite database path not set", types.ErrConfigurationMissing)
	}
	if s.dimension <= 0 {
		return nil, fmt.Errorf("%w: vector dimension not set", types.ErrConfigurationMissing)
	}

	db, err := openDatabase(ctx, s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", types.ErrConnectionFailure, s.path, err)
	}
	if err := ApplyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: failed to apply migrations: %w", types.ErrConnectionFailure, err)
	}

	s.logger.Info("database opened", "path", s.path, "mode", BuildMode, "schema", CurrentSchemaVersion)
	s.db = db
	return db, nil
}

// EnsureCollection implements VectorStore
func (s *SQLiteStore) EnsureCollection(ctx context.Context, name string) (Collection, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: collection name is empty", types.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.collections[name]; ok {
		return c, nil
	}

	db, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO collections (name, dimension) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
		name, s.dimension)
	if err != nil {
		return nil, fmt.Errorf("%w: create collection %s: %w", types.ErrConnectionFailure, name, err)
	}

	var id int64
	var dimension int
	err = db.QueryRowContext(ctx, `SELECT id, dimension FROM collections WHERE name = ?`, name).Scan(&id, &dimension)
	if err != nil {
		return nil, fmt.Errorf("%w: load collection %s: %w", types.ErrConnectionFailure, name, err)
	}
	if dimension != s.dimension {
		return nil, fmt.Errorf("%w: %s has dimension %d, store uses %d", ErrDimensionConflict, name, dimension, s.dimension)
	}

	c := &sqliteCollection{store: s, db: db, id: id, name: name}
	s.collections[name] = c
	return c, nil
}

// Dimension implements VectorStore
func (s *SQLiteStore) Dimension() int {
	return s.dimension
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	clear(s.collections)
	return err
}

// Count returns the number of records in the named collection
func (s *SQLiteStore) Count(ctx context.Context, name string) (int, error) {
	s.mu.Lock()
	c, ok := s.collections[name]
	s.mu.Unlock()
	if !ok {
		return 0, ErrNotFound
	}
	var n int
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE collection_id = ?`, c.id).Scan(&n)
	return n, err
}

// sqliteCollection is a Collection stored in SQLiteStore
type sqliteCollection struct {
	store *SQLiteStore
	db    *sql.DB
	id    int64
	name  string
}

func (c *sqliteCollection) Name() string {
	return c.name
}

// Upsert implements Collection
func (c *sqliteCollection) Upsert(ctx context.Context, rec *types.Record) error {
	if rec.ID < 0 {
		return fmt.Errorf("%w: %w", types.ErrStoreWriteFailure, types.ErrNegativeID)
	}
	if err := rec.ValidateEmbedding(c.store.dimension); err != nil {
		return fmt.Errorf("%w: record %d: %w", types.ErrStoreWriteFailure, rec.ID, err)
	}

	query := `
		INSERT INTO records (collection_id, record_id, name, description, embedding, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection_id, record_id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			embedding = excluded.embedding,
			updated_at = excluded.updated_at
	`
	_, err := c.db.ExecContext(ctx, query,
		c.id, rec.ID, rec.Name, rec.Description, serializeVector(rec.Embedding), time.Now())
	if err != nil {
		return fmt.Errorf("%w: record %d: %w", types.ErrStoreWriteFailure, rec.ID, err)
	}
	return nil
}

// Get returns one stored record including its embedding
func (c *sqliteCollection) Get(ctx context.Context, id int64) (*types.Record, error) {
	rec := &types.Record{ID: id}
	var blob []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT name, description, embedding FROM records WHERE collection_id = ? AND record_id = ?`,
		c.id, id).Scan(&rec.Name, &rec.Description, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.Embedding = deserializeVector(blob)
	return rec, nil
}

// VectorSearch implements Collection
func (c *sqliteCollection) VectorSearch(ctx context.Context, vector []float32, opts SearchOptions) iter.Seq2[Hit, error] {
	return lazyHits(func() ([]Hit, error) {
		o, err := opts.normalize()
		if err != nil {
			return nil, err
		}
		if err := checkVector(vector, c.store.dimension); err != nil {
			return nil, err
		}
		return searchVector(ctx, c.db, c.id, vector, o.Skip, o.Top)
	})
}

// HybridSearch implements Collection. The vector and keyword legs run
// concurrently over a window of 2*(skip+top) candidates each, capped at
// MaxFusionWindow, and are fused with reciprocal rank fusion.
func (c *sqliteCollection) HybridSearch(ctx context.Context, vector []float32, keywords []string, opts SearchOptions) iter.Seq2[Hit, error] {
	return lazyHits(func() ([]Hit, error) {
		o, err := opts.normalize()
		if err != nil {
			return nil, err
		}
		if err := checkVector(vector, c.store.dimension); err != nil {
			return nil, err
		}

		match := buildFTSQuery(keywords)
		if match == "" {
			return searchVector(ctx, c.db, c.id, vector, o.Skip, o.Top)
		}

		window := o.fusionWindow()
		var vectorHits, textHits []Hit

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			vectorHits, err = searchVector(gctx, c.db, c.id, vector, 0, window)
			return err
		})
		g.Go(func() error {
			var err error
			textHits, err = searchText(gctx, c.db, c.id, match, window)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}

		fused := fuseRRF(DefaultRRFConstant, vectorHits, textHits)
		return page(fused, o.Skip, o.Top), nil
	})
}
