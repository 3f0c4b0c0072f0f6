// Package chunker divides note text into sentence-bounded chunks.
//
// Sentences end at '.', '!' or '?' followed by whitespace. They are packed
// greedily, in order, into chunks of at most DefaultMaxChars (500) characters
// so that the best-matching chunk can be shown as a search snippet.
//
//	c := chunker.New(500)
//	for _, ch := range c.Chunk(noteBody) {
//	    fmt.Println(ch.Index, ch.Content)
//	}
package chunker
