package vault

import (
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FrontMatter holds the YAML header fields vaultrag understands.
type FrontMatter struct {
	Created time.Time
	Tags    []string
	Aliases []string
}

type rawFrontMatter struct {
	Created interface{} `yaml:"created"`
	Date    interface{} `yaml:"date"`
	Tags    interface{} `yaml:"tags"`
	Aliases interface{} `yaml:"aliases"`
}

var frontMatterLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseFrontMatter splits a leading "---" YAML block from the note body.
// Notes without a header, or with a malformed one, return the text unchanged
// and an empty FrontMatter.
func ParseFrontMatter(text string, loc *time.Location) (FrontMatter, string) {
	var fm FrontMatter
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	if !strings.HasPrefix(normalized, "---\n") {
		return fm, text
	}
	rest := normalized[4:]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return fm, text
	}
	header := rest[:end]
	body := strings.TrimPrefix(rest[end+4:], "\n")

	var raw rawFrontMatter
	if err := yaml.Unmarshal([]byte(header), &raw); err != nil {
		return fm, text
	}

	if loc == nil {
		loc = time.Local
	}
	for _, v := range []interface{}{raw.Created, raw.Date} {
		if t, ok := toTime(v, loc); ok {
			fm.Created = t
			break
		}
	}
	fm.Tags = toStrings(raw.Tags)
	fm.Aliases = toStrings(raw.Aliases)

	return fm, body
}

func toTime(v interface{}, loc *time.Location) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range frontMatterLayouts {
			if parsed, err := time.ParseInLocation(layout, strings.TrimSpace(t), loc); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

func toStrings(v interface{}) []string {
	switch t := v.(type) {
	case string:
		var out []string
		for _, s := range strings.FieldsFunc(t, func(r rune) bool { return r == ',' || r == ' ' }) {
			out = append(out, strings.TrimPrefix(s, "#"))
		}
		return out
	case []interface{}:
		var out []string
		for _, item := range t {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, strings.TrimPrefix(s, "#"))
			}
		}
		return out
	}
	return nil
}
