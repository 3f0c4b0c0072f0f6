package searcher

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/dshills/vaultrag/internal/chunker"
	"github.com/dshills/vaultrag/internal/dateindex"
	"github.com/dshills/vaultrag/internal/dateintent"
	"github.com/dshills/vaultrag/internal/embedder"
	"github.com/dshills/vaultrag/internal/storage"
	"github.com/dshills/vaultrag/internal/vault"
	"github.com/dshills/vaultrag/pkg/types"
)

// ErrEmptyQuery is returned for a blank query.
var ErrEmptyQuery = errors.New("query cannot be empty")

// SearchMode defines how search is performed
type SearchMode string

const (
	SearchModeHybrid   SearchMode = "hybrid"   // Semantic score fused with keyword matches
	SearchModeSemantic SearchMode = "semantic" // Semantic score only; keywords are still reported
)

// Defaults for Options.
const (
	DefaultThreshold       = 0.75
	DefaultTopK            = 5
	DefaultMaxResults      = 10
	DefaultLinkDecay       = 0.8
	DefaultLinkedPerResult = 3
	DefaultDateBoost       = 1.2
	DefaultCacheSize       = 1000
	DefaultCacheTTL        = time.Minute
	maxTopK                = 50
)

// DateClassifier detects a time period in a query. It returns nil when the
// query has none.
type DateClassifier interface {
	Classify(ctx context.Context, query string) *dateintent.DateQuery
}

// Deps are the stores and providers a Searcher reads from. Links, Dates and
// Classifier are optional; leaving one nil disables its stage.
type Deps struct {
	Embeddings storage.EmbeddingStore
	Docs       vault.Store
	Embedder   embedder.Embedder
	Links      *vault.LinkGraph
	Dates      *dateindex.Index
	Classifier DateClassifier
	Logger     *slog.Logger
}

// Options tunes scoring. Zero values take the defaults.
type Options struct {
	Threshold       float64 // Minimum cosine similarity for notes and linked notes (default: 0.75)
	TopK            int     // Notes kept from the similarity stage (default: 5)
	MaxResults      int     // Cap on the final list (default: 10)
	ChunkSize       int     // Snippet chunk size in characters (default: 500)
	SemanticWeight  float64 // Default: 0.8
	KeywordWeight   float64 // Default: 0.2
	LinkDecay       float64 // Linked relevance multiplier (default: 0.8)
	LinkedPerResult int     // Linked contexts kept per result (default: 3)
	DateBoost       float64 // Multiplier for results inside the queried period (default: 1.2)
	ExcludedFolders []string
	CacheSize       int           // Cached responses (default: 1000)
	CacheTTL        time.Duration // Default: 1m
}

func (o *Options) applyDefaults() {
	if o.Threshold <= 0 {
		o.Threshold = DefaultThreshold
	}
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	if o.MaxResults <= 0 {
		o.MaxResults = DefaultMaxResults
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = chunker.DefaultMaxChars
	}
	if o.SemanticWeight <= 0 && o.KeywordWeight <= 0 {
		o.SemanticWeight = DefaultSemanticWeight
		o.KeywordWeight = DefaultKeywordWeight
	}
	if o.LinkDecay <= 0 || o.LinkDecay >= 1 {
		o.LinkDecay = DefaultLinkDecay
	}
	if o.LinkedPerResult <= 0 {
		o.LinkedPerResult = DefaultLinkedPerResult
	}
	if o.DateBoost <= 0 {
		o.DateBoost = DefaultDateBoost
	}
	if o.CacheSize <= 0 {
		o.CacheSize = DefaultCacheSize
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = DefaultCacheTTL
	}
}

// SearchRequest contains parameters for a search operation
type SearchRequest struct {
	Query     string
	TopK      int        // Overrides Options.TopK when set
	Mode      SearchMode // Default: hybrid
	SkipLinks bool
	SkipDates bool
	UseCache  bool
}

// SearchResponse contains search results and metadata
type SearchResponse struct {
	Results      []types.SearchResult
	TotalResults int
	Candidates   int // Notes at or above the similarity threshold
	SearchMode   SearchMode
	DateQuery    *dateintent.DateQuery
	Duration     time.Duration
	CacheHit     bool
}

// cacheEntry represents a cached search response with expiration time
type cacheEntry struct {
	response  *SearchResponse
	expiresAt time.Time
}

// Searcher runs the retrieval pipeline.
type Searcher struct {
	embeddings storage.EmbeddingStore
	docs       vault.Store
	embedder   embedder.Embedder
	links      *vault.LinkGraph
	dates      *dateindex.Index
	classifier DateClassifier
	chunker    *chunker.Chunker
	logger     *slog.Logger
	opts       Options

	queries singleflight.Group

	cache   *lru.Cache[[32]byte, *cacheEntry]
	cacheMu sync.RWMutex
}

// New creates a Searcher.
func New(deps Deps, opts Options) *Searcher {
	opts.applyDefaults()
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	cache, err := lru.New[[32]byte, *cacheEntry](opts.CacheSize)
	if err != nil {
		// This should never happen with valid size parameter
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}

	return &Searcher{
		embeddings: deps.Embeddings,
		docs:       deps.Docs,
		embedder:   deps.Embedder,
		links:      deps.Links,
		dates:      deps.Dates,
		classifier: deps.Classifier,
		chunker:    chunker.New(opts.ChunkSize),
		logger:     deps.Logger,
		opts:       opts,
		cache:      cache,
	}
}

// Options returns the effective options.
func (s *Searcher) Options() Options {
	return s.opts
}

// Search runs the pipeline for req.
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	startTime := time.Now()

	if s.embedder == nil {
		return nil, fmt.Errorf("embedder not initialized")
	}
	if err := s.validateRequest(&req); err != nil {
		return nil, fmt.Errorf("invalid search request: %w", err)
	}

	if req.UseCache {
		if cached := s.checkCache(req); cached != nil {
			cached.CacheHit = true
			cached.Duration = time.Since(startTime)
			return cached, nil
		}
	}

	query, err := s.queryVector(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	results, candidates, err := s.similar(ctx, query, req.TopK)
	if err != nil {
		return nil, err
	}

	s.applyKeywords(req.Query, req.Mode, results)

	if !req.SkipLinks && s.links != nil {
		if err := s.expandLinks(ctx, query, results); err != nil {
			return nil, err
		}
	}

	var dq *dateintent.DateQuery
	if !req.SkipDates && s.dates != nil && s.classifier != nil {
		if dq = s.classifier.Classify(ctx, req.Query); dq != nil {
			results, err = s.fuseDates(ctx, results, dq)
			if err != nil {
				return nil, err
			}
		}
	}

	sortResults(results)
	if len(results) > s.opts.MaxResults {
		results = results[:s.opts.MaxResults]
	}

	response := &SearchResponse{
		Results:      results,
		TotalResults: len(results),
		Candidates:   candidates,
		SearchMode:   req.Mode,
		DateQuery:    dq,
		Duration:     time.Since(startTime),
	}

	if req.UseCache && len(response.Results) > 0 {
		s.storeInCache(req, response)
	}

	s.logger.Debug("search complete",
		"query", req.Query,
		"mode", req.Mode,
		"candidates", candidates,
		"results", len(results),
		"date_query", dq != nil,
		"duration", response.Duration,
	)
	return response, nil
}

// queryVector embeds the query. Identical concurrent queries share one call.
func (s *Searcher) queryVector(ctx context.Context, query string) ([]float32, error) {
	v, err, _ := s.queries.Do(query, func() (interface{}, error) {
		return embedder.Vector(ctx, s.embedder, query)
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

func (s *Searcher) applyKeywords(query string, mode SearchMode, results []types.SearchResult) {
	keywords := ExtractKeywords(query)
	if len(keywords) == 0 {
		return
	}
	for i := range results {
		r := &results[i]
		r.KeywordScore, r.MatchedKeywords = ScoreKeywords(r.FullContent, keywords)
		if mode == SearchModeHybrid {
			r.Score = FuseScore(r.SemanticScore, r.KeywordScore, s.opts.SemanticWeight, s.opts.KeywordWeight)
		}
	}
	sortResults(results)
}

// validateRequest ensures search request is valid
func (s *Searcher) validateRequest(req *SearchRequest) error {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return ErrEmptyQuery
	}

	if req.TopK <= 0 {
		req.TopK = s.opts.TopK
	}
	if req.TopK > maxTopK {
		req.TopK = maxTopK
	}

	switch req.Mode {
	case "":
		req.Mode = SearchModeHybrid
	case SearchModeHybrid, SearchModeSemantic:
	default:
		return fmt.Errorf("unsupported search mode: %s", req.Mode)
	}
	return nil
}

// sortResults orders by score, then semantic score, then id.
func sortResults(results []types.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.SemanticScore != b.SemanticScore {
			return a.SemanticScore > b.SemanticScore
		}
		return a.ID < b.ID
	})
}

// checkCache returns a copy of a live cached response, or nil.
func (s *Searcher) checkCache(req SearchRequest) *SearchResponse {
	hash := computeQueryHash(req)
	now := time.Now()

	s.cacheMu.RLock()
	entry, found := s.cache.Get(hash)
	if !found {
		s.cacheMu.RUnlock()
		return nil
	}

	if now.After(entry.expiresAt) {
		s.cacheMu.RUnlock()

		s.cacheMu.Lock()
		s.cache.Remove(hash)
		s.cacheMu.Unlock()
		return nil
	}

	response := copySearchResponse(entry.response)
	s.cacheMu.RUnlock()
	return response
}

func (s *Searcher) storeInCache(req SearchRequest, response *SearchResponse) {
	entry := &cacheEntry{
		response:  copySearchResponse(response),
		expiresAt: time.Now().Add(s.opts.CacheTTL),
	}

	s.cacheMu.Lock()
	s.cache.Add(computeQueryHash(req), entry)
	s.cacheMu.Unlock()
}

// InvalidateCache drops every cached response. Called after indexing passes.
func (s *Searcher) InvalidateCache() {
	s.cacheMu.Lock()
	s.cache.Purge()
	s.cacheMu.Unlock()
}

// copySearchResponse creates a deep copy of a SearchResponse
func copySearchResponse(src *SearchResponse) *SearchResponse {
	if src == nil {
		return nil
	}
	dst := *src
	dst.Results = make([]types.SearchResult, len(src.Results))
	for i, r := range src.Results {
		c := r
		c.MatchedKeywords = append([]string(nil), r.MatchedKeywords...)
		c.LinkedContexts = append([]types.LinkedContext(nil), r.LinkedContexts...)
		if r.DateRelevance != nil {
			dr := *r.DateRelevance
			c.DateRelevance = &dr
		}
		dst.Results[i] = c
	}
	return &dst
}

// computeQueryHash computes a unique hash for a search request
func computeQueryHash(req SearchRequest) [32]byte {
	key := fmt.Sprintf("%s|%s|%d|%t|%t", req.Query, req.Mode, req.TopK, req.SkipLinks, req.SkipDates)
	return sha256.Sum256([]byte(key))
}
