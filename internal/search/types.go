// Package search answers full-text queries against an index: it builds
// mode-specific store queries, ranks and paginates hits, caches repeated
// queries and feeds every call to the telemetry history.
package search

import (
	"time"

	"github.com/Aman-CERP/docindex/internal/store"
)

// Mode selects how query text is interpreted.
type Mode string

const (
	// ModeExact matches the whole input as one literal phrase.
	ModeExact Mode = "exact"
	// ModeFuzzy matches every token as a word prefix.
	ModeFuzzy Mode = "fuzzy"
)

// ParseMode converts a user-supplied mode name. Empty means fuzzy.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeExact:
		return ModeExact, true
	case ModeFuzzy, "":
		return ModeFuzzy, true
	default:
		return "", false
	}
}

// SortField names an explicit re-sort of a result page.
type SortField string

const (
	SortRelevance SortField = ""
	SortName      SortField = "name"
	SortModified  SortField = "modified"
	SortSize      SortField = "size"
)

// ParseSortField converts a user-supplied sort name. "relevance" and "rank"
// are accepted for the default order.
func ParseSortField(s string) (SortField, bool) {
	switch s {
	case "", "relevance", "rank":
		return SortRelevance, true
	case string(SortName), string(SortModified), string(SortSize):
		return SortField(s), true
	default:
		return "", false
	}
}

// Sort is an optional explicit ordering.
type Sort struct {
	Field SortField `json:"field,omitempty"`
	Desc  bool      `json:"desc,omitempty"`
}

// Filters restrict results. Zero values mean "no restriction".
type Filters struct {
	// FileTypes are extensions, with or without the leading dot.
	FileTypes  []string  `json:"file_types,omitempty"`
	DateFrom   time.Time `json:"date_from,omitempty"`
	DateTo     time.Time `json:"date_to,omitempty"`
	SizeMin    int64     `json:"size_min,omitempty"`
	SizeMax    int64     `json:"size_max,omitempty"`
	ActiveOnly bool      `json:"active_only,omitempty"`
}

// SearchQuery is one search request. Treat it as an immutable value.
type SearchQuery struct {
	Text    string
	Mode    Mode
	Filters Filters
	Limit   int
	Offset  int
	Sort    Sort

	// NoCache skips both cache lookup and cache population.
	NoCache bool
}

// SearchResult is one ranked hit.
type SearchResult struct {
	ID   int64  `json:"id,omitempty"`
	Path string `json:"path"`
	Name string `json:"name"`

	// Snippet wraps matched terms in <mark></mark>.
	Snippet  string            `json:"snippet"`
	Score    float64           `json:"score"`
	Status   store.Status      `json:"status"`
	Size     int64             `json:"size"`
	ModTime  time.Time         `json:"modified"`
	FileType string            `json:"file_type"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// SearchResponse is one page of results plus navigation metadata.
type SearchResponse struct {
	Results    []*SearchResult `json:"results"`
	Total      int             `json:"total"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	TotalPages int             `json:"total_pages"`
	HasNext    bool            `json:"has_next"`
	HasPrev    bool            `json:"has_prev"`
	Elapsed    time.Duration   `json:"elapsed"`
	Mode       Mode            `json:"mode"`
	CacheHit   bool            `json:"cache_hit"`
	Query      string          `json:"query"`
}

// clone returns a deep copy; cached responses are never shared with callers.
func (r *SearchResponse) clone() *SearchResponse {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Results = make([]*SearchResult, len(r.Results))
	for i, res := range r.Results {
		c := *res
		if res.Metadata != nil {
			c.Metadata = make(map[string]string, len(res.Metadata))
			for k, v := range res.Metadata {
				c.Metadata[k] = v
			}
		}
		cp.Results[i] = &c
	}
	return &cp
}

// Defaults and bounds for SearchQuery.
const (
	DefaultLimit   = 20
	MaxLimit       = 1000
	MaxQueryLength = 1000
)
