package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/vaultrag/internal/dateintent"
	"github.com/dshills/vaultrag/internal/embedder"
	"github.com/dshills/vaultrag/internal/indexer"
	"github.com/dshills/vaultrag/internal/searcher"
	"github.com/dshills/vaultrag/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeIndexingInProgress = -32002 // Another indexing operation is already running
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
	ErrorCodeProviderAuth       = -32005 // Provider rejected the credentials or none are configured
	ErrorCodeInvalidTransition  = -32006 // Pause/resume/stop not valid in the current state
)

// handleSearchNotes handles the search_notes tool invocation
func (s *Server) handleSearchNotes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	topK := getIntDefault(args, "top_k", s.searcher.Options().TopK)
	if topK < 1 || topK > 50 {
		return nil, newMCPError(ErrorCodeInvalidParams, "top_k must be between 1 and 50", map[string]interface{}{
			"param": "top_k",
			"value": topK,
		})
	}

	searchMode := getStringDefault(args, "search_mode", string(searcher.SearchModeHybrid))
	if searchMode != string(searcher.SearchModeHybrid) && searchMode != string(searcher.SearchModeSemantic) {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid search_mode", map[string]interface{}{
			"param":   "search_mode",
			"value":   searchMode,
			"allowed": []string{"hybrid", "semantic"},
		})
	}

	resp, err := s.searcher.Search(ctx, searcher.SearchRequest{
		Query:     query,
		TopK:      topK,
		Mode:      searcher.SearchMode(searchMode),
		SkipLinks: !getBoolDefault(args, "include_links", true),
		SkipDates: !getBoolDefault(args, "include_dates", true),
		UseCache:  true,
	})
	if err != nil {
		return nil, s.searchError(err)
	}

	includeContent := getBoolDefault(args, "include_content", false)
	results := make([]interface{}, 0, len(resp.Results))
	for i, r := range resp.Results {
		results = append(results, formatResult(i+1, r, includeContent))
	}

	response := map[string]interface{}{
		"results":       results,
		"total_results": resp.TotalResults,
		"candidates":    resp.Candidates,
		"search_mode":   string(resp.SearchMode),
		"duration_ms":   resp.Duration.Milliseconds(),
		"cache_hit":     resp.CacheHit,
	}
	if resp.DateQuery != nil {
		response["date_query"] = formatDateQuery(resp.DateQuery)
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

func (s *Server) searchError(err error) error {
	switch {
	case errors.Is(err, searcher.ErrEmptyQuery):
		return newMCPError(ErrorCodeEmptyQuery, "query cannot be empty", nil)
	case errors.Is(err, types.ErrAuth), errors.Is(err, embedder.ErrNoProviderEnabled):
		return newMCPError(ErrorCodeProviderAuth, "embedding provider credentials are missing or invalid", map[string]interface{}{
			"error": err.Error(),
			"hint":  "set a key with set_api_key",
		})
	default:
		s.logger.Error("search failed", "op", "search_notes", "error", err)
		return newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// handleIndexVault handles the index_vault tool invocation
func (s *Server) handleIndexVault(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	force := getBoolDefault(args, "force", false)

	if getBoolDefault(args, "background", false) {
		if s.maintainer.Status().State != indexer.StateIdle {
			return nil, indexingInProgress()
		}
		go func() {
			bg := context.WithoutCancel(ctx)
			if _, err := s.maintainer.RunBulk(bg, force); err != nil {
				s.logger.Warn("background indexing failed", "op", "index_vault", "error", err)
			}
		}()
		return mcp.NewToolResultText(formatJSON(map[string]interface{}{
			"started": true,
			"force":   force,
		})), nil
	}

	stats, err := s.maintainer.RunBulk(ctx, force)
	if errors.Is(err, indexer.ErrIndexingInProgress) {
		return nil, indexingInProgress()
	}
	if err != nil && stats == nil {
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := formatStats(stats)
	response["indexed"] = err == nil && !stats.Aborted
	if err != nil {
		response["error"] = err.Error()
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleIndexStatus handles the index_status tool invocation
func (s *Server) handleIndexStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st := s.maintainer.Status()
	response := map[string]interface{}{
		"state":   st.State.String(),
		"mode":    st.Mode.String(),
		"pending": st.Pending,
	}
	if st.Notice != "" {
		response["notice"] = st.Notice
	}
	if st.LastRun != nil {
		response["last_run"] = formatStats(st.LastRun)
	}

	if s.storage != nil {
		status, err := s.storage.GetStatus(ctx)
		if err != nil {
			return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
				"error": err.Error(),
			})
		}
		statistics := map[string]interface{}{
			"embeddings":    status.Embeddings,
			"date_records":  status.DateRecords,
			"index_size_mb": fmt.Sprintf("%.2f", float64(status.SizeBytes)/(1024*1024)),
			"sqlite_driver": status.BuildMode,
		}
		if !status.LastUpdated.IsZero() {
			statistics["last_updated"] = status.LastUpdated.Format(time.RFC3339)
		}
		response["statistics"] = statistics
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleControlIndexing handles the control_indexing tool invocation
func (s *Server) handleControlIndexing(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	action := getStringDefault(args, "action", "")
	var err error
	switch action {
	case "pause":
		err = s.maintainer.Pause()
	case "resume":
		err = s.maintainer.Resume()
	case "stop":
		err = s.maintainer.Stop()
	default:
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid action", map[string]interface{}{
			"param":   "action",
			"value":   action,
			"allowed": []string{"pause", "resume", "stop"},
		})
	}
	if errors.Is(err, indexer.ErrInvalidTransition) {
		return nil, newMCPError(ErrorCodeInvalidTransition, err.Error(), map[string]interface{}{
			"action": action,
			"state":  s.maintainer.Status().State.String(),
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "control failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"action": action,
		"state":  s.maintainer.Status().State.String(),
	})), nil
}

// handleRebuildDateIndex handles the rebuild_date_index tool invocation
func (s *Server) handleRebuildDateIndex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.maintainer.RebuildDates(ctx)
	if errors.Is(err, indexer.ErrIndexingInProgress) {
		return nil, indexingInProgress()
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "date index rebuild failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"rebuilt":     true,
		"indexed":     stats.Indexed,
		"failed":      stats.Failed,
		"duration_ms": stats.Duration.Milliseconds(),
	})), nil
}

// handleSetAPIKey handles the set_api_key tool invocation
func (s *Server) handleSetAPIKey(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	key := strings.TrimSpace(getStringDefault(args, "api_key", ""))
	if key == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "api_key parameter is required", map[string]interface{}{
			"param":  "api_key",
			"reason": "missing or empty",
		})
	}

	if err := s.keys.SetAPIKey(ctx, key); err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to update API key", map[string]interface{}{
			"error": err.Error(),
		})
	}
	s.logger.Info("API key updated", "op", "set_api_key")

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"updated": true,
	})), nil
}

// Helper functions

func indexingInProgress() error {
	return newMCPError(ErrorCodeIndexingInProgress, "indexing already in progress", map[string]interface{}{
		"hint": "use control_indexing to pause or stop it, or poll index_status",
	})
}

func formatResult(rank int, r types.SearchResult, includeContent bool) map[string]interface{} {
	result := map[string]interface{}{
		"rank":           rank,
		"note":           r.ID,
		"score":          round(r.Score),
		"semantic_score": round(r.SemanticScore),
		"snippet":        r.ContentSnippet,
	}
	if includeContent {
		result["content"] = r.FullContent
	}
	if len(r.MatchedKeywords) > 0 {
		result["keyword_score"] = round(r.KeywordScore)
		result["matched_keywords"] = r.MatchedKeywords
	}
	if len(r.LinkedContexts) > 0 {
		linked := make([]interface{}, 0, len(r.LinkedContexts))
		for _, lc := range r.LinkedContexts {
			linked = append(linked, map[string]interface{}{
				"note":          lc.NotePath,
				"relevance":     round(lc.Relevance),
				"snippet":       lc.ContextSnippet,
				"link_distance": lc.LinkDistance,
			})
		}
		result["linked_notes"] = linked
	}
	if r.DateRelevance != nil {
		result["date_match"] = map[string]interface{}{
			"type": r.DateRelevance.MatchType,
			"date": r.DateRelevance.Date.Format(time.RFC3339),
		}
	}
	return result
}

func formatDateQuery(dq *dateintent.DateQuery) map[string]interface{} {
	periods := make([]interface{}, 0, len(dq.Filters))
	for _, f := range dq.Filters {
		if f.Range != nil {
			periods = append(periods, map[string]interface{}{
				"start": f.Range.Start.Format(time.RFC3339),
				"end":   f.Range.End.Format(time.RFC3339),
			})
			continue
		}
		periods = append(periods, map[string]interface{}{"relative": string(f.Relative)})
	}
	return map[string]interface{}{
		"type":    string(dq.Kind),
		"periods": periods,
	}
}

func formatStats(stats *indexer.Stats) map[string]interface{} {
	response := map[string]interface{}{
		"run_id":        stats.RunID,
		"mode":          stats.Mode.String(),
		"started_at":    stats.StartedAt.Format(time.RFC3339),
		"duration_ms":   stats.Duration.Milliseconds(),
		"embedded":      stats.Embedded,
		"dates_indexed": stats.DatesIndexed,
		"skipped":       stats.Skipped,
		"failed":        stats.Failed,
		"removed":       stats.Removed,
		"stopped":       stats.Stopped,
		"aborted":       stats.Aborted,
	}
	if len(stats.Errors) > 0 {
		// Include first few errors
		errorCount := len(stats.Errors)
		if errorCount > 5 {
			response["errors"] = stats.Errors[:5]
			response["error_count"] = errorCount
		} else {
			response["errors"] = stats.Errors
		}
	}
	return response
}

func round(f float64) float64 {
	return float64(int64(f*10000+0.5)) / 10000
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

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
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
