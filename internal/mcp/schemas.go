package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// searchNotesTool returns the tool definition for search_notes
func searchNotesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_notes",
		Description: "Find the vault notes most relevant to a question, with linked notes and date matches",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural language question or keywords; dates like \"last week\" are understood",
				},
				"top_k": map[string]interface{}{
					"type":        "integer",
					"description": "Notes kept from the similarity stage (1-50)",
					"default":     5,
					"minimum":     1,
					"maximum":     50,
				},
				"search_mode": map[string]interface{}{
					"type":        "string",
					"description": "hybrid fuses semantic and keyword scores; semantic uses similarity only",
					"enum":        []string{"hybrid", "semantic"},
					"default":     "hybrid",
				},
				"include_links": map[string]interface{}{
					"type":        "boolean",
					"description": "Attach linked notes to each result",
					"default":     true,
				},
				"include_dates": map[string]interface{}{
					"type":        "boolean",
					"description": "Detect a time period in the query and boost notes from it",
					"default":     true,
				},
				"include_content": map[string]interface{}{
					"type":        "boolean",
					"description": "Return each note's full text as well as the snippet",
					"default":     false,
				},
			},
			Required: []string{"query"},
		},
	}
}

// indexVaultTool returns the tool definition for index_vault
func indexVaultTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_vault",
		Description: "Run a full indexing pass over the vault, embedding new and changed notes",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"force": map[string]interface{}{
					"type":        "boolean",
					"description": "Discard all embeddings and re-embed every note",
					"default":     false,
				},
				"background": map[string]interface{}{
					"type":        "boolean",
					"description": "Return immediately and index in the background; poll index_status for progress",
					"default":     false,
				},
			},
		},
	}
}

// indexStatusTool returns the tool definition for index_status
func indexStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_status",
		Description: "Report indexing state, queued changes, record counts and the last pass",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// controlIndexingTool returns the tool definition for control_indexing
func controlIndexingTool() mcp.Tool {
	return mcp.Tool{
		Name:        "control_indexing",
		Description: "Pause, resume or stop the running indexing pass",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"action": map[string]interface{}{
					"type": "string",
					"enum": []string{"pause", "resume", "stop"},
				},
			},
			Required: []string{"action"},
		},
	}
}

// rebuildDateIndexTool returns the tool definition for rebuild_date_index
func rebuildDateIndexTool() mcp.Tool {
	return mcp.Tool{
		Name:        "rebuild_date_index",
		Description: "Clear and rebuild the note date index",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// setAPIKeyTool returns the tool definition for set_api_key
func setAPIKeyTool() mcp.Tool {
	return mcp.Tool{
		Name:        "set_api_key",
		Description: "Store a new embedding provider API key in the OS keyring and switch to it",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"api_key": map[string]interface{}{
					"type":        "string",
					"description": "Provider API key",
				},
			},
			Required: []string{"api_key"},
		},
	}
}
