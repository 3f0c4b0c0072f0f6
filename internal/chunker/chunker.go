package chunker

import (
	"crypto/sha256"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxChars is the target chunk size in characters.
const DefaultMaxChars = 500

// Chunk is a contiguous run of whole sentences from a note.
type Chunk struct {
	Index   int // Position within the note, 0-based
	Content string
	Hash    [32]byte
}

// Chunker packs sentences greedily into chunks of at most maxChars characters.
type Chunker struct {
	maxChars int
}

// New creates a Chunker. maxChars <= 0 selects DefaultMaxChars.
func New(maxChars int) *Chunker {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Chunker{maxChars: maxChars}
}

// MaxChars returns the configured chunk size.
func (c *Chunker) MaxChars() int {
	return c.maxChars
}

// Chunk splits text into sentence-bounded chunks. A sentence longer than the
// limit on its own is broken at word boundaries. Blank input yields no chunks.
func (c *Chunker) Chunk(text string) []Chunk {
	var (
		chunks  []Chunk
		current strings.Builder
		curLen  int
	)

	flush := func() {
		if curLen == 0 {
			return
		}
		content := current.String()
		chunks = append(chunks, Chunk{
			Index:   len(chunks),
			Content: content,
			Hash:    ComputeChunkHash(content),
		})
		current.Reset()
		curLen = 0
	}

	add := func(piece string) {
		n := utf8.RuneCountInString(piece)
		if curLen > 0 && curLen+1+n > c.maxChars {
			flush()
		}
		if curLen > 0 {
			current.WriteByte(' ')
			curLen++
		}
		current.WriteString(piece)
		curLen += n
	}

	for _, sentence := range SplitSentences(text) {
		if utf8.RuneCountInString(sentence) <= c.maxChars {
			add(sentence)
			continue
		}
		for _, piece := range c.splitLong(sentence) {
			add(piece)
		}
	}
	flush()

	return chunks
}

// splitLong breaks an oversized sentence on whitespace, cutting single words
// that are themselves longer than the limit.
func (c *Chunker) splitLong(sentence string) []string {
	var (
		pieces []string
		b      strings.Builder
		n      int
	)
	for _, word := range strings.Fields(sentence) {
		for utf8.RuneCountInString(word) > c.maxChars {
			if n > 0 {
				pieces = append(pieces, b.String())
				b.Reset()
				n = 0
			}
			head, tail := splitRunes(word, c.maxChars)
			pieces = append(pieces, head)
			word = tail
		}
		wl := utf8.RuneCountInString(word)
		if n > 0 && n+1+wl > c.maxChars {
			pieces = append(pieces, b.String())
			b.Reset()
			n = 0
		}
		if n > 0 {
			b.WriteByte(' ')
			n++
		}
		b.WriteString(word)
		n += wl
	}
	if n > 0 {
		pieces = append(pieces, b.String())
	}
	return pieces
}

func splitRunes(s string, n int) (string, string) {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos], s[pos:]
		}
		i++
	}
	return s, ""
}

// SplitSentences splits text after '.', '!' or '?' when followed by
// whitespace or the end of input. Whitespace inside a sentence is collapsed.
func SplitSentences(text string) []string {
	var (
		sentences []string
		b         strings.Builder
	)
	runes := []rune(text)
	pendingSpace := false

	emit := func() {
		if s := b.String(); s != "" {
			sentences = append(sentences, s)
		}
		b.Reset()
		pendingSpace = false
	}

	for i, r := range runes {
		if unicode.IsSpace(r) {
			pendingSpace = b.Len() > 0
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		b.WriteRune(r)

		if r == '.' || r == '!' || r == '?' {
			if i+1 == len(runes) || unicode.IsSpace(runes[i+1]) {
				emit()
			}
		}
	}
	emit()

	return sentences
}

// ComputeChunkHash computes SHA-256 hash of chunk content
func ComputeChunkHash(content string) [32]byte {
	return sha256.Sum256([]byte(content))
}
