package searcher

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Default fusion weights.
const (
	DefaultSemanticWeight = 0.8
	DefaultKeywordWeight  = 0.2
)

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true, "not": true,
	"you": true, "all": true, "any": true, "can": true, "had": true, "her": true,
	"was": true, "one": true, "our": true, "out": true, "has": true, "have": true,
	"his": true, "how": true, "its": true, "may": true, "who": true, "did": true,
	"get": true, "she": true, "too": true, "use": true, "that": true, "with": true,
	"this": true, "from": true, "they": true, "been": true, "were": true, "what": true,
	"when": true, "where": true, "which": true, "while": true, "will": true, "would": true,
	"there": true, "their": true, "them": true, "then": true, "than": true, "these": true,
	"those": true, "about": true, "into": true, "over": true, "some": true, "such": true,
	"only": true, "also": true, "just": true, "more": true, "most": true, "very": true,
	"your": true, "does": true, "could": true, "should": true, "find": true, "show": true,
	"notes": true, "note": true,
}

// Tokenize lowercases text and splits it into runs of letters and digits.
// Text is NFC-normalised first so composed and decomposed accents match.
func Tokenize(text string) []string {
	text = strings.ToLower(norm.NFC.String(text))
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// ExtractKeywords returns the distinct query words worth matching: stop words
// and words of two characters or fewer are dropped. Order of first use is kept.
func ExtractKeywords(query string) []string {
	seen := make(map[string]bool)
	var keywords []string
	for _, tok := range Tokenize(query) {
		if len([]rune(tok)) <= 2 || stopWords[tok] || seen[tok] {
			continue
		}
		seen[tok] = true
		keywords = append(keywords, tok)
	}
	return keywords
}

// ScoreKeywords counts whole-word occurrences of each keyword in content and
// normalises the total by len(content)/100 (at least 1) so long notes are not
// favoured. It returns the score and the keywords that matched, in keyword
// order.
func ScoreKeywords(content string, keywords []string) (float64, []string) {
	if len(keywords) == 0 || content == "" {
		return 0, nil
	}
	counts := make(map[string]int)
	for _, tok := range Tokenize(content) {
		counts[tok]++
	}

	total := 0
	var matched []string
	for _, kw := range keywords {
		if n := counts[kw]; n > 0 {
			total += n
			matched = append(matched, kw)
		}
	}
	if total == 0 {
		return 0, nil
	}

	scale := float64(len(content)) / 100
	if scale < 1 {
		scale = 1
	}
	return float64(total) / scale, matched
}

// FuseScore combines a semantic score with an unbounded keyword score. The
// keyword score is squashed into [0,1) with k/(1+k) first.
func FuseScore(semantic, keyword, semanticWeight, keywordWeight float64) float64 {
	if keyword < 0 {
		keyword = 0
	}
	return semantic*semanticWeight + (keyword/(1+keyword))*keywordWeight
}
