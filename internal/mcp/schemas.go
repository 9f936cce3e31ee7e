package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

func pagingProperties(props map[string]interface{}) map[string]interface{} {
	props["skip"] = map[string]interface{}{
		"type":        "integer",
		"description": "Number of leading results to skip",
		"default":     0,
		"minimum":     0,
	}
	props["top"] = map[string]interface{}{
		"type":        "integer",
		"description": "Maximum number of results to return",
		"default":     10,
		"minimum":     1,
		"maximum":     MaxTop,
	}
	return props
}

// searchVectorTool returns the tool definition for search_vector
func searchVectorTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_vector",
		Description: "Find hotels whose descriptions are semantically closest to a natural language query",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: pagingProperties(map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural language description of the stay you are looking for",
				},
			}),
			Required: []string{"query"},
		},
	}
}

// searchHybridTool returns the tool definition for search_hybrid
func searchHybridTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_hybrid",
		Description: "Search hotels by combining semantic similarity with keyword matches on the description",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: pagingProperties(map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural language description of the stay you are looking for",
				},
				"keywords": map[string]interface{}{
					"type":        "string",
					"description": "Comma-separated keywords that should appear in the description (e.g. 'pool,beach')",
				},
			}),
			Required: []string{"query"},
		},
	}
}

// ingestRecordsTool returns the tool definition for ingest_records
func ingestRecordsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "ingest_records",
		Description: "Embed and store hotel records. Without records, the built-in hotel catalogue is ingested",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"records": map[string]interface{}{
					"type":        "array",
					"description": "Records to ingest; an existing id is overwritten",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"id":          map[string]interface{}{"type": "integer", "minimum": 0},
							"name":        map[string]interface{}{"type": "string"},
							"description": map[string]interface{}{"type": "string"},
						},
						"required": []string{"id"},
					},
				},
			},
		},
	}
}

// ensureCollectionTool returns the tool definition for ensure_collection
func ensureCollectionTool() mcp.Tool {
	return mcp.Tool{
		Name:        "ensure_collection",
		Description: "Create the hotel collection if it does not exist yet",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
