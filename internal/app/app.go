// Package app wires configuration into a running set of components:
// logger, embedder, vector store, indexer and searcher.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/dshills/hotelsearch/internal/config"
	"github.com/dshills/hotelsearch/internal/embedder"
	"github.com/dshills/hotelsearch/internal/indexer"
	"github.com/dshills/hotelsearch/internal/searcher"
	"github.com/dshills/hotelsearch/internal/seed"
	"github.com/dshills/hotelsearch/internal/storage"
	"github.com/dshills/hotelsearch/pkg/types"
)

// App holds the components shared by the HTTP, MCP and CLI surfaces
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Embedder embedder.Embedder
	Store    storage.VectorStore
	Indexer  *indexer.Indexer
	Searcher *searcher.Searcher
}

// NewLogger builds the root logger from cfg, writing to w
func NewLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("%w: log level %q", types.ErrInvalidArgument, cfg.Level)
		}
	}

	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("%w: log format %q", types.ErrInvalidArgument, cfg.Format)
	}
}

// New builds every component from cfg. The store dimension always follows
// the embedder so the two cannot disagree.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", types.ErrConfigurationMissing)
	}
	if logger == nil {
		logger = slog.Default()
	}

	emb, err := embedder.New(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	store, err := NewStore(cfg.Store, emb.Dimension(), logger)
	if err != nil {
		_ = emb.Close()
		return nil, err
	}

	var idxOpts []indexer.Option
	idxOpts = append(idxOpts, indexer.WithLogger(logger))
	if cfg.Ingest.Workers > 0 {
		idxOpts = append(idxOpts, indexer.WithWorkers(cfg.Ingest.Workers))
	}
	idx, err := indexer.New(store, emb, idxOpts...)
	if err != nil {
		_ = store.Close()
		_ = emb.Close()
		return nil, fmt.Errorf("create indexer: %w", err)
	}

	srch, err := searcher.NewSearcher(store, emb, cfg.Collection, searcher.WithLogger(logger))
	if err != nil {
		idx.Release()
		_ = store.Close()
		_ = emb.Close()
		return nil, fmt.Errorf("create searcher: %w", err)
	}

	logger.Info("components ready",
		"provider", emb.Provider(),
		"model", emb.Model(),
		"dimension", emb.Dimension(),
		"backend", cfg.Store.Backend,
		"collection", cfg.Collection)

	return &App{
		Config:   cfg,
		Logger:   logger,
		Embedder: emb,
		Store:    store,
		Indexer:  idx,
		Searcher: srch,
	}, nil
}

// NewStore builds the configured vector store backend
func NewStore(cfg config.StoreConfig, dimension int, logger *slog.Logger) (storage.VectorStore, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", config.BackendSQLite:
		return storage.NewSQLiteStore(cfg.Path, dimension, storage.WithLogger(logger)), nil
	case config.BackendQdrant:
		return storage.NewQdrantStore(storage.QdrantConfig{
			Host:   cfg.Host,
			Port:   cfg.Port,
			APIKey: cfg.APIKey,
			UseTLS: cfg.UseTLS,
		}, dimension, storage.WithLogger(logger)), nil
	default:
		return nil, fmt.Errorf("%w: unknown store backend %q", types.ErrInvalidArgument, cfg.Backend)
	}
}

// EnsureCollection creates the configured collection if it is missing
func (a *App) EnsureCollection(ctx context.Context) error {
	_, err := a.Store.EnsureCollection(ctx, a.Config.Collection)
	return err
}

// Ingest indexes records into the configured collection. A nil slice
// ingests the built-in hotel catalogue.
func (a *App) Ingest(ctx context.Context, records []types.Record) (*types.IngestionReport, error) {
	if records == nil {
		hotels, err := seed.Hotels()
		if err != nil {
			return nil, err
		}
		records = hotels
	}

	report, err := a.Indexer.Ingest(ctx, a.Config.Collection, records)
	if report != nil {
		for _, id := range report.SucceededIDs {
			a.Logger.Debug("record ingested", "id", id)
		}
		for id, reason := range report.Failed {
			a.Logger.Warn("record failed", "id", id, "reason", reason)
		}
		a.Logger.Info("ingestion finished",
			"collection", a.Config.Collection,
			"succeeded", len(report.SucceededIDs),
			"failed", len(report.Failed),
			"skipped", len(report.SkippedIDs),
			"duration", report.Duration)
	}
	return report, err
}

// Close releases every component, returning the combined error
func (a *App) Close() error {
	a.Indexer.Release()
	return errors.Join(a.Store.Close(), a.Embedder.Close())
}
