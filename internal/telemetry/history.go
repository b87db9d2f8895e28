// Package telemetry records search history and derives popularity, timing
// statistics and autocomplete suggestions from it. All data stays local.
package telemetry

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Defaults for Config fields left at zero.
const (
	DefaultHistorySize     = 50
	DefaultPopularCapacity = 1000
)

// Entry is one search call. Entries are append-only.
type Entry struct {
	Query       string        `json:"query"`
	Mode        string        `json:"mode"`
	ResultCount int           `json:"result_count"`
	CacheHit    bool          `json:"cache_hit"`
	Latency     time.Duration `json:"latency"`
	Timestamp   time.Time     `json:"timestamp"`
}

// QueryCount is a query and how often it was searched.
type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Stats aggregates every recorded search.
type Stats struct {
	TotalSearches int64         `json:"total_searches"`
	UniqueQueries int           `json:"unique_queries"`
	AvgLatency    time.Duration `json:"avg_latency"`
	MinLatency    time.Duration `json:"min_latency"`
	MaxLatency    time.Duration `json:"max_latency"`
	CacheHits     int64         `json:"cache_hits"`
	CacheHitRate  float64       `json:"cache_hit_rate"`
	HistorySize   int           `json:"history_size"`
}

// Totals are the running aggregates behind Stats.
type Totals struct {
	Searches   int64
	CacheHits  int64
	LatencySum time.Duration
	MinLatency time.Duration
	MaxLatency time.Duration
}

func (t *Totals) add(e Entry) {
	if t.Searches == 0 || e.Latency < t.MinLatency {
		t.MinLatency = e.Latency
	}
	if e.Latency > t.MaxLatency {
		t.MaxLatency = e.Latency
	}
	t.Searches++
	t.LatencySum += e.Latency
	if e.CacheHit {
		t.CacheHits++
	}
}

// CountRecord is a persisted query count. First orders queries by first
// occurrence.
type CountRecord struct {
	Query string
	Count int64
	First int64
}

// Snapshot is the persisted state loaded at startup.
type Snapshot struct {
	// Entries are oldest first.
	Entries []Entry
	Counts  []CountRecord
	Totals  Totals
}

// Store persists history so separate processes share it.
type Store interface {
	// Record appends e, trims the history to keep entries and updates counts
	// and totals.
	Record(e Entry, keep int) error

	// Load returns up to historyLimit entries with all counts and totals.
	Load(historyLimit int) (*Snapshot, error)

	Clear() error
	Close() error
}

// Config sizes the history.
type Config struct {
	// HistorySize bounds Recent (0 = 50).
	HistorySize int

	// PopularCapacity bounds the distinct queries tracked for Popular (0 = 1000).
	PopularCapacity int
}

type queryCount struct {
	count int64
	first int64
}

// History is the search telemetry of one index. Safe for concurrent use.
type History struct {
	mu      sync.Mutex
	entries *CircularBuffer[Entry]
	counts  *lru.Cache[string, *queryCount]
	seq     int64
	totals  Totals

	store  Store
	logger *slog.Logger
}

// New creates a History. With a store, persisted state is loaded first.
func New(cfg Config, store Store, logger *slog.Logger) (*History, error) {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultHistorySize
	}
	if cfg.PopularCapacity <= 0 {
		cfg.PopularCapacity = DefaultPopularCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}

	counts, _ := lru.New[string, *queryCount](cfg.PopularCapacity)
	h := &History{
		entries: NewCircularBuffer[Entry](cfg.HistorySize),
		counts:  counts,
		store:   store,
		logger:  logger,
	}

	if store != nil {
		snap, err := store.Load(cfg.HistorySize)
		if err != nil {
			return nil, err
		}
		h.restore(snap)
	}
	return h, nil
}

func (h *History) restore(snap *Snapshot) {
	if snap == nil {
		return
	}
	for _, e := range snap.Entries {
		h.entries.Add(e)
	}
	// Oldest first, so the most recent first-seen queries survive eviction.
	counts := append([]CountRecord(nil), snap.Counts...)
	sort.Slice(counts, func(i, j int) bool { return counts[i].First < counts[j].First })
	for _, c := range counts {
		h.counts.Add(c.Query, &queryCount{count: c.Count, first: c.First})
		if c.First > h.seq {
			h.seq = c.First
		}
	}
	h.totals = snap.Totals
}

// Record appends e. Persistence failures are logged, never returned: a
// search must not fail because its history could not be written.
func (h *History) Record(e Entry) {
	e.Query = strings.TrimSpace(e.Query)
	if e.Query == "" {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	h.mu.Lock()
	h.entries.Add(e)
	h.totals.add(e)
	if qc, ok := h.counts.Get(e.Query); ok {
		qc.count++
	} else {
		h.seq++
		h.counts.Add(e.Query, &queryCount{count: 1, first: h.seq})
	}
	h.mu.Unlock()

	if h.store != nil {
		if err := h.store.Record(e, h.entries.Capacity()); err != nil {
			h.logger.Warn("history_persist_failed",
				slog.String("query", e.Query),
				slog.String("error", err.Error()))
		}
	}
}

// Recent returns up to n entries, newest first. n <= 0 returns all.
func (h *History) Recent(n int) []Entry {
	return h.entries.Last(n)
}

// Popular returns up to n queries by descending count. Ties go to the query
// searched first. n <= 0 returns all.
func (h *History) Popular(n int) []QueryCount {
	h.mu.Lock()
	type ranked struct {
		QueryCount
		first int64
	}
	all := make([]ranked, 0, h.counts.Len())
	for _, q := range h.counts.Keys() {
		if qc, ok := h.counts.Peek(q); ok {
			all = append(all, ranked{QueryCount{Query: q, Count: qc.count}, qc.first})
		}
	}
	h.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].Count != all[j].Count {
			return all[i].Count > all[j].Count
		}
		return all[i].first < all[j].first
	})

	if n <= 0 || n > len(all) {
		n = len(all)
	}
	out := make([]QueryCount, n)
	for i := range out {
		out[i] = all[i].QueryCount
	}
	return out
}

// Stats returns aggregate statistics.
func (h *History) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := Stats{
		TotalSearches: h.totals.Searches,
		UniqueQueries: h.counts.Len(),
		MinLatency:    h.totals.MinLatency,
		MaxLatency:    h.totals.MaxLatency,
		CacheHits:     h.totals.CacheHits,
		HistorySize:   h.entries.Size(),
	}
	if h.totals.Searches > 0 {
		s.AvgLatency = h.totals.LatencySum / time.Duration(h.totals.Searches)
		s.CacheHitRate = float64(h.totals.CacheHits) / float64(h.totals.Searches)
	}
	return s
}

// Clear forgets all history, in memory and in the store.
func (h *History) Clear() error {
	h.mu.Lock()
	h.entries.Clear()
	h.counts.Purge()
	h.seq = 0
	h.totals = Totals{}
	h.mu.Unlock()

	if h.store != nil {
		return h.store.Clear()
	}
	return nil
}

// queries returns every distinct query text known to the history.
func (h *History) queries() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	seen := make(map[string]bool)
	var out []string
	for _, e := range h.entries.Items() {
		if !seen[e.Query] {
			seen[e.Query] = true
			out = append(out, e.Query)
		}
	}
	for _, q := range h.counts.Keys() {
		if !seen[q] {
			seen[q] = true
			out = append(out, q)
		}
	}
	return out
}
