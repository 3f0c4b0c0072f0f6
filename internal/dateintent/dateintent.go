// Package dateintent detects whether a search query asks about a time period
// ("notes from last week", "what did I write in March 2024") and turns the
// answer into date index filters.
//
// Classification is delegated to a chat model that must reply with a JSON
// object. Any provider error or malformed reply is treated as "no date
// aspect": the classifier never blocks a search.
package dateintent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/vaultrag/internal/clock"
	"github.com/dshills/vaultrag/internal/dateindex"
	"github.com/dshills/vaultrag/internal/llm"
)

// Kind is the shape of a date query.
type Kind string

const (
	KindNone       Kind = "none"
	KindAbsolute   Kind = "absolute"
	KindRelative   Kind = "relative"
	KindComparison Kind = "comparison"
)

// ErrMalformed is returned by Parse for replies that do not follow the schema.
var ErrMalformed = errors.New("malformed date classification")

// DateQuery is a classified query. Absolute and relative queries carry one
// filter; comparison queries carry two whose matches are unioned.
type DateQuery struct {
	Kind    Kind
	Filters []dateindex.Filter
}

const systemPrompt = `You decide whether a search query over personal notes refers to a time period.
Today is %s (%s).
Reply with one JSON object and nothing else:
{"type":"none"}
{"type":"absolute","start":"YYYY-MM-DD","end":"YYYY-MM-DD"}
{"type":"relative","relative":"today|yesterday|this_week|last_week|this_month|last_month|this_year|last_year"}
{"type":"comparison","ranges":[{"start":"YYYY-MM-DD","end":"YYYY-MM-DD"},{"relative":"last_week"}]}
Use "comparison" only when the query contrasts exactly two periods. Each comparison range is either a start/end pair or a relative keyword.`

type reply struct {
	Type     string       `json:"type"`
	Start    string       `json:"start"`
	End      string       `json:"end"`
	Relative string       `json:"relative"`
	Ranges   []replyRange `json:"ranges"`
}

type replyRange struct {
	Start    string `json:"start"`
	End      string `json:"end"`
	Relative string `json:"relative"`
}

// Options configures a Classifier.
type Options struct {
	Clock     clock.Clock
	Location  *time.Location
	Logger    *slog.Logger
	CacheSize int // Classified queries kept per day (default: 256)
}

// Classifier turns free-text queries into DateQuery values.
type Classifier struct {
	chat   llm.ChatProvider
	clock  clock.Clock
	loc    *time.Location
	logger *slog.Logger
	cache  *lru.Cache[string, *DateQuery]
}

// New creates a Classifier backed by chat.
func New(chat llm.ChatProvider, opts Options) *Classifier {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 256
	}
	cache, err := lru.New[string, *DateQuery](opts.CacheSize)
	if err != nil {
		panic(fmt.Sprintf("failed to create classification cache: %v", err))
	}
	return &Classifier{
		chat:   chat,
		clock:  opts.Clock,
		loc:    opts.Location,
		logger: opts.Logger,
		cache:  cache,
	}
}

// Classify returns the query's date aspect, or nil when it has none or the
// model could not be consulted.
func (c *Classifier) Classify(ctx context.Context, query string) *DateQuery {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	now := c.clock.Now().In(c.loc)
	key := now.Format("2006-01-02") + "|" + query
	if dq, ok := c.cache.Get(key); ok {
		return dq
	}

	messages := []llm.Message{
		{Role: "system", Content: fmt.Sprintf(systemPrompt, now.Format("2006-01-02"), now.Weekday())},
		{Role: "user", Content: query},
	}
	raw, err := c.chat.Complete(ctx, messages, llm.CompleteOptions{MaxTokens: 200, JSON: true})
	if err != nil {
		c.logger.Warn("date classification unavailable", "op", "classify", "error", err)
		return nil
	}

	dq, err := Parse(raw, now, c.loc)
	if err != nil {
		c.logger.Warn("date classification ignored", "op", "classify", "error", err)
		dq = nil
	}
	c.cache.Add(key, dq)
	return dq
}

// Parse decodes a model reply. A "none" reply yields (nil, nil).
func Parse(raw string, now time.Time, loc *time.Location) (*DateQuery, error) {
	var r reply
	if err := json.Unmarshal([]byte(stripFence(raw)), &r); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	switch Kind(strings.ToLower(strings.TrimSpace(r.Type))) {
	case KindNone, "":
		return nil, nil
	case KindAbsolute:
		f, err := parseRange(replyRange{Start: r.Start, End: r.End}, now, loc)
		if err != nil {
			return nil, err
		}
		return &DateQuery{Kind: KindAbsolute, Filters: []dateindex.Filter{f}}, nil
	case KindRelative:
		f, err := parseRange(replyRange{Relative: r.Relative}, now, loc)
		if err != nil {
			return nil, err
		}
		return &DateQuery{Kind: KindRelative, Filters: []dateindex.Filter{f}}, nil
	case KindComparison:
		if len(r.Ranges) != 2 {
			return nil, fmt.Errorf("%w: comparison needs two ranges, got %d", ErrMalformed, len(r.Ranges))
		}
		filters := make([]dateindex.Filter, 0, 2)
		for _, rr := range r.Ranges {
			f, err := parseRange(rr, now, loc)
			if err != nil {
				return nil, err
			}
			filters = append(filters, f)
		}
		return &DateQuery{Kind: KindComparison, Filters: filters}, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformed, r.Type)
	}
}

func parseRange(rr replyRange, now time.Time, loc *time.Location) (dateindex.Filter, error) {
	if rr.Relative != "" {
		rel := dateindex.Relative(strings.ToLower(strings.TrimSpace(rr.Relative)))
		if _, err := dateindex.RelativeRange(rel, now, loc); err != nil {
			return dateindex.Filter{}, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		return dateindex.Filter{Relative: rel}, nil
	}

	if rr.Start == "" {
		return dateindex.Filter{}, fmt.Errorf("%w: range without start", ErrMalformed)
	}
	start, err := dateindex.ParseDay(rr.Start, loc)
	if err != nil {
		return dateindex.Filter{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	end := start
	if rr.End != "" {
		if end, err = dateindex.ParseDay(rr.End, loc); err != nil {
			return dateindex.Filter{}, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
	}
	if end.Before(start) {
		return dateindex.Filter{}, fmt.Errorf("%w: end %s before start %s", ErrMalformed, rr.End, rr.Start)
	}
	r := dateindex.DayRange(start, end)
	return dateindex.Filter{Range: &r}, nil
}

// stripFence removes a ```json fence some models wrap around JSON output.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
