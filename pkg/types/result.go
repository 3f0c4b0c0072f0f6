package types

import "time"

// MatchCreation marks a result surfaced because its creation date fell in the
// requested range.
const MatchCreation = "creation"

// SearchResult is one ranked note returned to the conversation layer.
type SearchResult struct {
	ID string // Vault-relative note path

	// Scoring
	Score         float64 // Final fused score
	SemanticScore float64 // Cosine similarity before keyword fusion

	ContentSnippet string // Best-matching chunk
	FullContent    string

	KeywordScore    float64
	MatchedKeywords []string

	LinkedContexts []LinkedContext
	DateRelevance  *DateRelevance // Nil unless the date filter matched
}

// LinkedContext is a note reached by one hop in the link graph from a result.
type LinkedContext struct {
	NotePath       string
	Relevance      float64
	ContextSnippet string
	LinkDistance   int
}

// DateRelevance records why a note matched the date aspect of a query.
type DateRelevance struct {
	MatchType string
	Date      time.Time
}

// Validate checks the invariants every returned result must hold.
func (sr *SearchResult) Validate() error {
	if sr.ID == "" {
		return ErrInvalidNoteID
	}

	if sr.Score < 0 || sr.Score > MaxScore {
		return ErrInvalidScore
	}

	for _, lc := range sr.LinkedContexts {
		if lc.NotePath == sr.ID {
			return ErrSelfLink
		}
		if lc.Relevance > sr.Score {
			return ErrLinkedRelevance
		}
	}

	return nil
}

// MaxScore is the ceiling of a boosted fused score.
const MaxScore = 1.2
