// Package searcher answers free-text questions over the vault.
//
// A search runs four stages:
//
//  1. Similarity: the query embedding is compared with every stored note
//     embedding. Notes at or above the threshold are ranked, the top K are read
//     and chunked, and the chunk closest to the query becomes the snippet.
//  2. Keywords (hybrid mode): query keywords are counted as whole words in each
//     note and folded into the score as semantic×0.8 + k/(1+k)×0.2.
//  3. Links: forward links and backlinks of every result are scored against
//     the query embedding and attached as linked contexts.
//  4. Dates: if the query names a time period, notes dated inside it are
//     boosted (when already present) or added with a provisional score of 1.0.
//
// # Basic Usage
//
//	s := searcher.New(searcher.Deps{
//	    Embeddings: db.Embeddings(),
//	    Docs:       store,
//	    Embedder:   handle,
//	    Links:      graph,
//	    Dates:      dates,
//	    Classifier: classifier,
//	}, searcher.Options{})
//
//	resp, err := s.Search(ctx, searcher.SearchRequest{Query: "garden plans from last week"})
//	for _, r := range resp.Results {
//	    fmt.Printf("%s (%.2f): %s\n", r.ID, r.Score, r.ContentSnippet)
//	}
//
// # Consistency
//
// Searches only read the stores and never wait on the indexing lock, so a
// search that overlaps an indexing pass may see the previous state of a note.
//
// # Caching
//
// Query embeddings for identical concurrent searches are computed once.
// Responses may be cached for a short TTL when SearchRequest.UseCache is set;
// InvalidateCache drops them after an indexing pass.
package searcher
