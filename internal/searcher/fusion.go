package searcher

import (
	"context"
	"math"
	"sort"

	"github.com/dshills/vaultrag/internal/dateintent"
	"github.com/dshills/vaultrag/internal/vault"
	"github.com/dshills/vaultrag/pkg/types"
)

// dateOnlyScore is the provisional score of a note found only by date.
const dateOnlyScore = 1.0

// fuseDates merges the notes dated inside dq's periods into results. A note
// already present is boosted to min(max(score, 1)×boost, 1.2); a note found
// only by date is added with score 1.0. Comparison queries union both
// periods. Date lookups that fail leave results unchanged.
func (s *Searcher) fuseDates(ctx context.Context, results []types.SearchResult, dq *dateintent.DateQuery) ([]types.SearchResult, error) {
	docs, err := s.docs.List(ctx)
	if err != nil {
		s.logger.Warn("date fusion skipped", "op", "list_notes", "error", err)
		return results, nil
	}
	docs = vault.FilterExcluded(docs, s.opts.ExcludedFolders)

	matched := make(map[string]vault.Document)
	for _, f := range dq.Filters {
		found, err := s.dates.FilterByDate(ctx, docs, f)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn("date filter skipped", "op", "filter_by_date", "kind", dq.Kind, "error", err)
			continue
		}
		for _, d := range found {
			matched[d.ID] = d
		}
	}
	if len(matched) == 0 {
		return results, nil
	}

	ids := make([]string, 0, len(matched))
	for id := range matched {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	position := make(map[string]int, len(results))
	for i, r := range results {
		position[r.ID] = i
	}

	for _, id := range ids {
		doc := matched[id]
		relevance := &types.DateRelevance{MatchType: types.MatchCreation, Date: doc.CreatedAt}

		if i, ok := position[id]; ok {
			r := &results[i]
			r.Score = math.Min(math.Max(r.Score, dateOnlyScore)*s.opts.DateBoost, types.MaxScore)
			r.DateRelevance = relevance
			continue
		}

		body, err := s.readBody(ctx, id)
		if err != nil {
			s.logger.Warn("date match skipped", "id", id, "op", "read", "error", err)
			continue
		}
		var snippet string
		if chunks := s.chunker.Chunk(body); len(chunks) > 0 {
			snippet = chunks[0].Content
		}
		results = append(results, types.SearchResult{
			ID:             id,
			Score:          dateOnlyScore,
			ContentSnippet: snippet,
			FullContent:    body,
			DateRelevance:  relevance,
		})
	}
	return results, nil
}
