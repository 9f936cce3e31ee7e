// Package mcp implements the Model Context Protocol (MCP) server for hotelsearch.
//
// The server exposes four tools to MCP clients:
//   - search_vector: semantic search over hotel descriptions
//   - search_hybrid: semantic search combined with keyword matching
//   - ingest_records: embed and store hotel records (or the built-in catalogue)
//   - ensure_collection: create the hotel collection if it is missing
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// Logs go to stderr; stdout carries only protocol messages.
//
// # Basic Usage
//
//	hotelsearch mcp --config hotelsearch.yaml
//
// # Tool: search_vector
//
//	Request:
//	{
//	  "name": "search_vector",
//	  "arguments": {"query": "quiet lakeside stay", "skip": 0, "top": 5}
//	}
//
//	Response:
//	{
//	  "search_mode": "vector",
//	  "query": "quiet lakeside stay",
//	  "count": 5,
//	  "results": [{"score": 0.83, "id": 27, "name": "Lakeside Hotel", "description": "..."}]
//	}
//
// # Tool: search_hybrid
//
// Same as search_vector plus "keywords", a comma-separated list matched
// against the description full-text index. Blank keywords fall back to
// vector search.
//
// # Tool: ingest_records
//
//	{"name": "ingest_records", "arguments": {"records": [{"id": 31, "name": "...", "description": "..."}]}}
//
// Omitting "records" ingests the built-in catalogue. The response reports
// succeeded, failed and skipped counts, with per-id failure reasons under
// "errors".
//
// # Error Codes
//
//	-32602  invalid parameters
//	-32603  internal error
//	-32002  ingestion already in progress
//	-32004  empty query
//	-32005  embedding generation failed
//	-32006  vector store unavailable
//	-32007  configuration missing
package mcp
