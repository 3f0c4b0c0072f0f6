package vault

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseFrontMatter(t *testing.T) {
	loc := time.UTC

	t.Run("created date", func(t *testing.T) {
		fm, body := ParseFrontMatter("---\ncreated: 2024-01-05\ntags: [work, \"#plan\"]\n---\nBody text.", loc)
		assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, loc), fm.Created)
		assert.Equal(t, []string{"work", "plan"}, fm.Tags)
		assert.Equal(t, "Body text.", body)
	})

	t.Run("date key with time", func(t *testing.T) {
		fm, _ := ParseFrontMatter("---\ndate: 2023-11-02 08:30\naliases: Roadmap\n---\n", loc)
		assert.Equal(t, time.Date(2023, 11, 2, 8, 30, 0, 0, loc), fm.Created)
		assert.Equal(t, []string{"Roadmap"}, fm.Aliases)
	})

	t.Run("no header", func(t *testing.T) {
		fm, body := ParseFrontMatter("Just text", loc)
		assert.True(t, fm.Created.IsZero())
		assert.Equal(t, "Just text", body)
	})

	t.Run("unterminated header", func(t *testing.T) {
		text := "---\ncreated: 2024-01-05\nno end"
		_, body := ParseFrontMatter(text, loc)
		assert.Equal(t, text, body)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		text := "---\ncreated: [unclosed\n---\nbody"
		fm, body := ParseFrontMatter(text, loc)
		assert.True(t, fm.Created.IsZero())
		assert.Equal(t, text, body)
	})

	t.Run("unparseable date ignored", func(t *testing.T) {
		fm, body := ParseFrontMatter("---\ncreated: someday\n---\nbody", loc)
		assert.True(t, fm.Created.IsZero())
		assert.Equal(t, "body", body)
	})
}
