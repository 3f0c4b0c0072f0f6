// Package mcp implements the Model Context Protocol (MCP) server for vaultrag.
//
// The server exposes the retrieval subsystem to a conversational assistant:
//   - search_notes: Find notes relevant to a question
//   - index_vault: Run a full indexing pass
//   - index_status: Report indexing state and record counts
//   - control_indexing: Pause, resume or stop the running pass
//   - rebuild_date_index: Clear and rebuild the date index
//   - set_api_key: Store a new provider key and switch to it
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// stdout carries protocol messages only; logs go to stderr.
//
// # Tool: search_notes
//
//	Request:
//	{
//	  "name": "search_notes",
//	  "arguments": {
//	    "query": "what did I plant in the garden last month",
//	    "top_k": 5,
//	    "search_mode": "hybrid"
//	  }
//	}
//
//	Response:
//	{
//	  "results": [
//	    {
//	      "rank": 1,
//	      "note": "Garden/2024-01 planting.md",
//	      "score": 1.2,
//	      "semantic_score": 0.86,
//	      "snippet": "Planted garlic along the south bed.",
//	      "matched_keywords": ["garden"],
//	      "linked_notes": [
//	        {"note": "Garden/Beds.md", "relevance": 0.69, "snippet": "...", "link_distance": 1}
//	      ],
//	      "date_match": {"type": "creation", "date": "2024-01-05T09:00:00Z"}
//	    }
//	  ],
//	  "total_results": 1,
//	  "candidates": 3,
//	  "date_query": {"type": "relative", "periods": [{"relative": "last_month"}]}
//	}
//
// Scores are fused semantic and keyword scores in [0, 1], boosted up to 1.2
// for notes inside the queried period. A linked note never scores above the
// result it hangs off.
//
// # Tool: index_vault
//
// Runs a bulk pass and returns its statistics. With "force" every embedding
// is discarded first. With "background" the call returns at once and
// index_status reports progress. A second pass while one is running fails
// with code -32002.
//
// # Error Codes
//
//	-32602  Invalid parameters
//	-32603  Internal error
//	-32002  Indexing already in progress
//	-32004  Empty query
//	-32005  Provider credentials missing or rejected
//	-32006  Pause/resume/stop not valid in the current state
package mcp
