package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/hotelsearch/internal/indexer"
	"github.com/dshills/hotelsearch/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams        = -32602 // Invalid method parameters
	ErrorCodeInternalError        = -32603 // Internal JSON-RPC error
	ErrorCodeIngestionInProgress  = -32002 // Another ingestion is already running
	ErrorCodeEmptyQuery           = -32004 // Query parameter is empty
	ErrorCodeGenerationFailed     = -32005 // Embedding provider failed
	ErrorCodeStoreUnavailable     = -32006 // Vector store unreachable
	ErrorCodeConfigurationMissing = -32007 // Store or provider not configured
)

// MaxTop bounds the page size a tool call may request
const MaxTop = 100

// handleSearchVector handles the search_vector tool invocation
func (s *Server) handleSearchVector(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, query, skip, top, err := searchArgs(request)
	if err != nil {
		return nil, err
	}

	results, err := s.searcher.VectorSearch(ctx, query, skip, top)
	if err != nil {
		return nil, s.toolError("vector search failed", err, nil)
	}
	return mcp.NewToolResultText(formatJSON(searchResponse("vector", query, nil, results))), nil
}

// handleSearchHybrid handles the search_hybrid tool invocation
func (s *Server) handleSearchHybrid(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, query, skip, top, err := searchArgs(request)
	if err != nil {
		return nil, err
	}
	keywords := getStringDefault(args, "keywords", "")

	results, err := s.searcher.HybridSearch(ctx, query, keywords, skip, top)
	if err != nil {
		return nil, s.toolError("hybrid search failed", err, nil)
	}
	return mcp.NewToolResultText(formatJSON(searchResponse("hybrid", query, &keywords, results))), nil
}

// handleIngestRecords handles the ingest_records tool invocation
func (s *Server) handleIngestRecords(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := arguments(request)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	records, err := decodeRecords(args["records"])
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid records", map[string]interface{}{
			"param":  "records",
			"reason": err.Error(),
		})
	}

	report, err := s.admin.Ingest(ctx, records)
	if err != nil {
		var data map[string]interface{}
		if report != nil {
			// completed work is still reported when the call is interrupted
			data = map[string]interface{}{"report": report}
		}
		return nil, s.toolError("ingestion failed", err, data)
	}

	response := map[string]interface{}{
		"succeeded":   len(report.SucceededIDs),
		"failed":      len(report.Failed),
		"skipped":     len(report.SkippedIDs),
		"duration_ms": report.Duration.Milliseconds(),
	}
	if len(report.Failed) > 0 {
		failures := make(map[string]string, len(report.Failed))
		for id, reason := range report.Failed {
			failures[fmt.Sprint(id)] = reason
		}
		response["errors"] = failures
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleEnsureCollection handles the ensure_collection tool invocation
func (s *Server) handleEnsureCollection(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.admin.EnsureCollection(ctx); err != nil {
		return nil, s.toolError("failed to ensure collection", err, nil)
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{"ready": true})), nil
}

// Helper functions

func arguments(request mcp.CallToolRequest) (map[string]interface{}, bool) {
	if request.Params.Arguments == nil {
		return map[string]interface{}{}, true
	}
	args, ok := request.Params.Arguments.(map[string]interface{})
	return args, ok
}

// searchArgs extracts the parameters shared by both search tools
func searchArgs(request mcp.CallToolRequest) (map[string]interface{}, string, int, int, error) {
	args, ok := arguments(request)
	if !ok {
		return nil, "", 0, 0, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return nil, "", 0, 0, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	skip := getIntDefault(args, "skip", 0)
	if skip < 0 {
		return nil, "", 0, 0, newMCPError(ErrorCodeInvalidParams, "skip must not be negative", map[string]interface{}{
			"param": "skip",
			"value": skip,
		})
	}

	top := getIntDefault(args, "top", 10)
	if top < 1 || top > MaxTop {
		return nil, "", 0, 0, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("top must be between 1 and %d", MaxTop), map[string]interface{}{
			"param": "top",
			"value": top,
		})
	}

	return args, query, skip, top, nil
}

func searchResponse(mode, query string, keywords *string, results []types.SearchResult) map[string]interface{} {
	response := map[string]interface{}{
		"search_mode": mode,
		"query":       query,
		"count":       len(results),
		"results":     results,
	}
	if keywords != nil {
		response["keywords"] = *keywords
	}
	return response
}

// decodeRecords converts the loosely typed records argument. A missing
// argument yields nil so the caller falls back to the built-in catalogue.
func decodeRecords(raw interface{}) ([]types.Record, error) {
	if raw == nil {
		return nil, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var records []types.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = make([]types.Record, 0)
	}
	for i := range records {
		records[i].Embedding = nil
	}
	return records, nil
}

// toolError maps a core error to an MCP error code. extra is merged into
// the error data.
func (s *Server) toolError(message string, err error, extra map[string]interface{}) error {
	code := ErrorCodeInternalError
	switch {
	case errors.Is(err, types.ErrInvalidArgument):
		code = ErrorCodeInvalidParams
	case errors.Is(err, indexer.ErrIngestionInProgress):
		code = ErrorCodeIngestionInProgress
	case errors.Is(err, types.ErrGenerationFailure):
		code = ErrorCodeGenerationFailed
	case errors.Is(err, types.ErrConnectionFailure):
		code = ErrorCodeStoreUnavailable
	case errors.Is(err, types.ErrConfigurationMissing):
		code = ErrorCodeConfigurationMissing
	}
	if code == ErrorCodeInternalError {
		s.logger.Error(message, "error", err)
	}
	data := map[string]interface{}{
		"error": err.Error(),
	}
	for k, v := range extra {
		data[k] = v
	}
	return newMCPError(code, message, data)
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
