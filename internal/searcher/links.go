package searcher

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/dshills/vaultrag/internal/vault"
	"github.com/dshills/vaultrag/pkg/types"
)

// expandLinks attaches one-hop linked contexts to each result. A visited set
// seeded with every result id is shared across all results, so a note is
// expanded at most once and never appears as a linked context of itself or of
// another primary result.
func (s *Searcher) expandLinks(ctx context.Context, query []float32, results []types.SearchResult) error {
	if len(results) == 0 {
		return nil
	}
	if err := s.links.Refresh(ctx); err != nil {
		s.logger.Warn("link graph refresh failed", "op", "refresh_links", "error", err)
		return nil
	}

	visited := make(map[string]bool, len(results))
	for _, r := range results {
		visited[r.ID] = true
	}

	for i := range results {
		if err := ctx.Err(); err != nil {
			return err
		}
		parent := &results[i]
		var linked []types.LinkedContext
		for _, id := range s.neighbours(parent.ID) {
			if visited[id] || vault.IsExcluded(id, s.opts.ExcludedFolders) {
				continue
			}
			visited[id] = true

			lc, ok, err := s.scoreLinked(ctx, query, id, parent.Score)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.logger.Warn("linked note skipped", "id", id, "parent", parent.ID, "op", "expand_links", "error", err)
				continue
			}
			if ok {
				linked = append(linked, lc)
			}
		}

		sort.SliceStable(linked, func(a, b int) bool {
			if linked[a].Relevance != linked[b].Relevance {
				return linked[a].Relevance > linked[b].Relevance
			}
			return linked[a].NotePath < linked[b].NotePath
		})
		if len(linked) > s.opts.LinkedPerResult {
			linked = linked[:s.opts.LinkedPerResult]
		}
		parent.LinkedContexts = linked
	}
	return nil
}

// neighbours returns forward links followed by backlinks, without repeats.
func (s *Searcher) neighbours(id string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range [][]string{s.links.Forward(id), s.links.Backlinks(id)} {
		for _, n := range list {
			if n == id || seen[n] {
				continue
			}
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

// scoreLinked reads a linked note and scores its best chunk against the
// query. It reports false when the note falls below the threshold.
func (s *Searcher) scoreLinked(ctx context.Context, query []float32, id string, parentScore float64) (types.LinkedContext, bool, error) {
	body, err := s.readBody(ctx, id)
	if err != nil {
		return types.LinkedContext{}, false, fmt.Errorf("failed to read: %w", err)
	}
	snippet, sim, err := s.bestChunk(ctx, query, body)
	if err != nil {
		return types.LinkedContext{}, false, err
	}
	if sim < s.opts.Threshold {
		return types.LinkedContext{}, false, nil
	}
	return types.LinkedContext{
		NotePath:       id,
		Relevance:      math.Min(sim, parentScore) * s.opts.LinkDecay,
		ContextSnippet: snippet,
		LinkDistance:   1,
	}, true, nil
}
