// Package config loads hotelsearch settings from defaults, an optional YAML
// file, a .env file, and environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dshills/hotelsearch/pkg/types"
)

// Store backends
const (
	BackendSQLite = "sqlite"
	BackendQdrant = "qdrant"
)

// Defaults
const (
	DefaultCollection = "hotels"
	DefaultSQLitePath = "hotelsearch.db"
	DefaultQdrantPort = 6334
	DefaultHTTPAddr   = ":8080"
	DefaultCacheSize  = 10000
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "text"
)

// Environment variables
const (
	EnvPrefix = "HOTELSEARCH_"

	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	EnvJinaAPIKey   = "JINA_API_KEY"
	EnvQdrantHost   = "QDRANT_HOST"
	EnvQdrantAPIKey = "QDRANT_API_KEY"
)

// Config is the complete service configuration
type Config struct {
	Collection string          `yaml:"collection"`
	Store      StoreConfig     `yaml:"store"`
	Embedding  EmbeddingConfig `yaml:"embedding"`
	HTTP       HTTPConfig      `yaml:"http"`
	Ingest     IngestConfig    `yaml:"ingest"`
	Log        LogConfig       `yaml:"log"`
}

// StoreConfig selects and configures the vector store backend
type StoreConfig struct {
	Backend string `yaml:"backend"` // sqlite or qdrant
	Path    string `yaml:"path"`    // SQLite database file
	Host    string `yaml:"host"`    // Qdrant host
	Port    int    `yaml:"port"`    // Qdrant gRPC port
	APIKey  string `yaml:"api_key"` // Qdrant API key
	UseTLS  bool   `yaml:"use_tls"`
}

// EmbeddingConfig selects and configures the embedding provider
type EmbeddingConfig struct {
	Provider          string  `yaml:"provider"` // openai, jina, compat, local
	APIKey            string  `yaml:"api_key"`
	Model             string  `yaml:"model"`
	BaseURL           string  `yaml:"base_url"`
	Dimension         int     `yaml:"dimension"`
	CacheSize         int     `yaml:"cache_size"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// HTTPConfig configures the HTTP surface
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// IngestConfig configures the ingestion worker pool
type IngestConfig struct {
	Workers int `yaml:"workers"`
}

// LogConfig configures the root slog logger
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// Default returns a configuration that runs fully offline
func Default() *Config {
	return &Config{
		Collection: DefaultCollection,
		Store: StoreConfig{
			Backend: BackendSQLite,
			Path:    DefaultSQLitePath,
			Port:    DefaultQdrantPort,
			UseTLS:  true,
		},
		Embedding: EmbeddingConfig{
			CacheSize: DefaultCacheSize,
		},
		HTTP: HTTPConfig{Addr: DefaultHTTPAddr},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// Load builds a Config. path may be empty, in which case only defaults,
// .env, and the environment are consulted.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	// A missing .env is normal outside development
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides fields from the environment. lookup is os.LookupEnv
// outside tests.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(dst *string, keys ...string) {
		for _, key := range keys {
			if v, ok := lookup(key); ok && v != "" {
				*dst = v
				return
			}
		}
	}

	str(&c.Collection, EnvPrefix+"COLLECTION")
	str(&c.Store.Backend, EnvPrefix+"STORE_BACKEND")
	str(&c.Store.Path, EnvPrefix+"DB_PATH")
	str(&c.Store.Host, EnvPrefix+"QDRANT_HOST", EnvQdrantHost)
	str(&c.Store.APIKey, EnvPrefix+"QDRANT_API_KEY", EnvQdrantAPIKey)
	str(&c.Embedding.Provider, EnvPrefix+"EMBEDDING_PROVIDER")
	str(&c.Embedding.Model, EnvPrefix+"EMBEDDING_MODEL")
	str(&c.Embedding.BaseURL, EnvPrefix+"EMBEDDING_BASE_URL")
	str(&c.HTTP.Addr, EnvPrefix+"HTTP_ADDR")
	str(&c.Log.Level, EnvPrefix+"LOG_LEVEL")
	str(&c.Log.Format, EnvPrefix+"LOG_FORMAT")

	// Provider-specific keys only fill an empty api_key
	if c.Embedding.APIKey == "" {
		switch strings.ToLower(c.Embedding.Provider) {
		case "jina":
			str(&c.Embedding.APIKey, EnvPrefix+"EMBEDDING_API_KEY", EnvJinaAPIKey)
		default:
			str(&c.Embedding.APIKey, EnvPrefix+"EMBEDDING_API_KEY", EnvOpenAIAPIKey)
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{EnvPrefix + "QDRANT_PORT", &c.Store.Port},
		{EnvPrefix + "EMBEDDING_DIMENSION", &c.Embedding.Dimension},
		{EnvPrefix + "INGEST_WORKERS", &c.Ingest.Workers},
	}
	for _, it := range ints {
		v, ok := lookup(it.key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", types.ErrInvalidArgument, it.key, v)
		}
		*it.dst = n
	}

	if v, ok := lookup(EnvPrefix + "QDRANT_USE_TLS"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %sQDRANT_USE_TLS=%q is not a boolean", types.ErrInvalidArgument, EnvPrefix, v)
		}
		c.Store.UseTLS = b
	}

	return nil
}

// Validate rejects values that can never work. Missing credentials are not
// rejected here; the store and embedder report them as ErrConfigurationMissing
// when they are first used.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Collection) == "" {
		return fmt.Errorf("%w: collection name is empty", types.ErrInvalidArgument)
	}

	c.Store.Backend = strings.ToLower(c.Store.Backend)
	switch c.Store.Backend {
	case BackendSQLite, BackendQdrant:
	default:
		return fmt.Errorf("%w: unknown store backend %q", types.ErrInvalidArgument, c.Store.Backend)
	}

	if c.Embedding.Dimension < 0 {
		return fmt.Errorf("%w: embedding dimension must be >= 0", types.ErrInvalidArgument)
	}
	if c.Ingest.Workers < 0 {
		return fmt.Errorf("%w: ingest workers must be >= 0", types.ErrInvalidArgument)
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", types.ErrInvalidArgument, c.Log.Format)
	}
	return nil
}
