package mcp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/hotelsearch/pkg/types"
)

const (
	// ServerName is the MCP server name
	ServerName = "hotelsearch"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Searcher answers vector and hybrid queries
type Searcher interface {
	VectorSearch(ctx context.Context, query string, skip, top int) ([]types.SearchResult, error)
	HybridSearch(ctx context.Context, query, keywordsCSV string, skip, top int) ([]types.SearchResult, error)
}

// Admin ingests records and manages the collection
type Admin interface {
	Ingest(ctx context.Context, records []types.Record) (*types.IngestionReport, error)
	EnsureCollection(ctx context.Context) error
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	searcher Searcher
	admin    Admin
	logger   *slog.Logger
}

// NewServer creates a new MCP server instance. Components are owned by the
// caller and are not closed by the server.
func NewServer(searcher Searcher, admin Admin, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(false)),
		searcher: searcher,
		admin:    admin,
		logger:   logger.With("component", "mcp"),
	}
	s.registerTools()
	return s
}

// Serve runs the MCP server on stdio until ctx is cancelled or stdin closes
func (s *Server) Serve(ctx context.Context) error {
	return s.Listen(ctx, os.Stdin, os.Stdout)
}

// Listen runs the MCP server over the given streams until ctx is cancelled
// or in reaches EOF
func (s *Server) Listen(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))

	s.logger.Info("serving MCP over stdio")
	err := stdio.Listen(ctx, in, out)
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return nil
	}
	return err
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(searchVectorTool(), s.handleSearchVector)
	s.mcp.AddTool(searchHybridTool(), s.handleSearchHybrid)
	s.mcp.AddTool(ingestRecordsTool(), s.handleIngestRecords)
	s.mcp.AddTool(ensureCollectionTool(), s.handleEnsureCollection)
}
