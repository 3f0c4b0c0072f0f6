// Package embedder generates vector embeddings for notes and note chunks.
//
// Two providers are available: an OpenAI-compatible HTTP client (any server
// exposing POST {base_url}/embeddings) and an offline feature-hashing
// provider. Both truncate input to MaxInputChars and can share an LRU cache
// keyed by the SHA-256 of the text.
//
// # Basic Usage
//
//	emb, err := embedder.New(embedder.Config{
//	    Provider:  "openai",
//	    APIKey:    key,
//	    CacheSize: 10000,
//	})
//	if err != nil {
//	    return err
//	}
//	defer emb.Close()
//
//	result, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{
//	    Text: noteBody,
//	})
//
// # Errors
//
// HTTP failures are returned as *types.ProviderError. 401/403 classify as
// types.ErrAuth and are never retried. 429 and 5xx are retried with
// exponential backoff (100ms doubling to 5s, three attempts), honouring a
// Retry-After header when the provider sends one.
//
// # Credential Changes
//
// Handle wraps the active provider. Long-lived components hold the Handle;
// when the API key changes the server builds a new provider and calls Rebind.
package embedder
