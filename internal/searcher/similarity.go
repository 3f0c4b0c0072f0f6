package searcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/vaultrag/internal/embedder"
	"github.com/dshills/vaultrag/internal/storage"
	"github.com/dshills/vaultrag/internal/vault"
	"github.com/dshills/vaultrag/pkg/types"
)

// similar ranks stored embeddings against query and builds results for the
// best topK notes that can be read and chunked. It also returns how many
// notes cleared the threshold.
func (s *Searcher) similar(ctx context.Context, query []float32, topK int) ([]types.SearchResult, int, error) {
	records, err := s.embeddings.GetAll(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load embeddings: %w", err)
	}

	ranked := storage.RankBySimilarity(query, records, s.opts.Threshold)
	results := make([]types.SearchResult, 0, topK)
	for _, r := range ranked {
		if len(results) >= topK {
			break
		}
		if vault.IsExcluded(r.ID, s.opts.ExcludedFolders) {
			continue
		}

		body, err := s.readBody(ctx, r.ID)
		if err != nil {
			s.logger.Warn("search skipped note", "id", r.ID, "op", "read", "error", err)
			continue
		}
		snippet, _, err := s.bestChunk(ctx, query, body)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, 0, ctxErr
			}
			s.logger.Warn("search skipped note", "id", r.ID, "op", "embed_chunks", "error", err)
			continue
		}

		results = append(results, types.SearchResult{
			ID:             r.ID,
			Score:          r.Score,
			SemanticScore:  r.Score,
			ContentSnippet: snippet,
			FullContent:    body,
		})
	}
	return results, len(ranked), nil
}

// readBody returns a note's text without its front matter.
func (s *Searcher) readBody(ctx context.Context, id string) (string, error) {
	text, err := s.docs.Read(ctx, id)
	if err != nil {
		return "", err
	}
	_, body := vault.ParseFrontMatter(text, time.Local)
	return body, nil
}

// bestChunk splits body into sentence-bounded chunks, embeds them and returns
// the one closest to query with its similarity.
func (s *Searcher) bestChunk(ctx context.Context, query []float32, body string) (string, float64, error) {
	chunks := s.chunker.Chunk(body)
	if len(chunks) == 0 {
		return "", 0, errors.New("note has no text")
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := s.embedTexts(ctx, texts)
	if err != nil {
		return "", 0, err
	}

	best, bestScore := 0, -2.0
	for i, v := range vectors {
		if score := storage.CosineSimilarity(query, v); score > bestScore {
			best, bestScore = i, score
		}
	}
	return chunks[best].Content, bestScore, nil
}

// embedTexts embeds texts in provider-sized batches, preserving order.
func (s *Searcher) embedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedder.MaxBatchSize {
		end := start + embedder.MaxBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		resp, err := s.embedder.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: texts[start:end]})
		if err != nil {
			return nil, err
		}
		if len(resp.Embeddings) != end-start {
			return nil, fmt.Errorf("%w: got %d embeddings for %d chunks", embedder.ErrProviderFailed, len(resp.Embeddings), end-start)
		}
		for _, emb := range resp.Embeddings {
			vectors = append(vectors, emb.Vector)
		}
	}
	return vectors, nil
}
