package search

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the result cache capacity when none is configured.
const DefaultCacheSize = 100

// CacheStats is a read-only view of cache effectiveness.
type CacheStats struct {
	Hits     int64   `json:"hits"`
	Misses   int64   `json:"misses"`
	HitRate  float64 `json:"hit_rate"`
	Size     int     `json:"size"`
	Capacity int     `json:"capacity"`
}

// Cache is a bounded LRU of search responses keyed by CacheKey.
// Responses are deep-copied on the way in and out.
type Cache struct {
	mu       sync.Mutex
	entries  *lru.Cache[string, *SearchResponse]
	capacity int
	hits     int64
	misses   int64
}

// NewCache creates a cache holding up to capacity responses (0 = 100).
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	// lru.New only fails for a non-positive size.
	entries, _ := lru.New[string, *SearchResponse](capacity)
	return &Cache{entries: entries, capacity: capacity}
}

// Lookup returns a copy of the cached response and promotes it to most
// recently used.
func (c *Cache) Lookup(key string) (*SearchResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp, ok := c.entries.Get(key)
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	return resp.clone(), true
}

// Store caches a copy of resp, evicting the least recently used entry at
// capacity.
func (c *Cache) Store(key string, resp *SearchResponse) {
	if resp == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Add(key, resp.clone())
}

// Purge drops every entry. Hit and miss counters are kept.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Purge()
}

// Stats returns the current counters.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := CacheStats{
		Hits:     c.hits,
		Misses:   c.misses,
		Size:     c.entries.Len(),
		Capacity: c.capacity,
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	return stats
}

// cacheKey is the canonical form of the query fields that affect results.
type cacheKey struct {
	Text     string    `json:"q"`
	Mode     Mode      `json:"m"`
	Limit    int       `json:"l"`
	Offset   int       `json:"o"`
	Types    []string  `json:"t,omitempty"`
	From     int64     `json:"df,omitempty"`
	To       int64     `json:"dt,omitempty"`
	SizeMin  int64     `json:"smin,omitempty"`
	SizeMax  int64     `json:"smax,omitempty"`
	Active   bool      `json:"a,omitempty"`
	Sort     SortField `json:"s,omitempty"`
	SortDesc bool      `json:"sd,omitempty"`
}

// CacheKey encodes q canonically: text is trimmed, the empty mode is fuzzy,
// file types are normalized and sorted. NoCache does not take part.
func CacheKey(q SearchQuery) string {
	mode := q.Mode
	if mode == "" {
		mode = ModeFuzzy
	}
	sortField, _ := ParseSortField(string(q.Sort.Field))

	types := make([]string, 0, len(q.Filters.FileTypes))
	seen := make(map[string]bool, len(q.Filters.FileTypes))
	for _, t := range q.Filters.FileTypes {
		n := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(t), "."))
		if !seen[n] {
			seen[n] = true
			types = append(types, n)
		}
	}
	sort.Strings(types)

	k := cacheKey{
		Text:     strings.TrimSpace(q.Text),
		Mode:     mode,
		Limit:    q.Limit,
		Offset:   q.Offset,
		Types:    types,
		From:     unixOrZero(q.Filters.DateFrom),
		To:       unixOrZero(q.Filters.DateTo),
		SizeMin:  q.Filters.SizeMin,
		SizeMax:  q.Filters.SizeMax,
		Active:   q.Filters.ActiveOnly,
		Sort:     sortField,
		SortDesc: q.Sort.Desc && sortField != SortRelevance,
	}
	// Marshalling a struct of plain fields cannot fail.
	b, _ := json.Marshal(k)
	return string(b)
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}
