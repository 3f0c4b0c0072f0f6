// Package types provides shared type definitions for the vaultrag server.
//
// SearchResult is the unit handed back to the conversation layer. It carries
// the fused score, the best-matching snippet, keyword annotations, the notes
// reached through one hop of the link graph, and the date match when the query
// had a temporal aspect:
//
//	result := types.SearchResult{
//	    ID:             "projects/roadmap.md",
//	    Score:          0.91,
//	    ContentSnippet: "Ship the importer before the March review.",
//	}
//
// # Provider errors
//
// Embedding and chat providers report failures as *ProviderError. The Kind
// field classifies the failure so callers can branch with errors.Is:
//
//	if errors.Is(err, types.ErrAuth) {
//	    // abort the batch, credentials are bad
//	}
//
// ErrRateLimited and ErrProviderUnavailable are retryable; ErrAuth is not.
package types
