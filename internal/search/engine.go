package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	docerrors "github.com/Aman-CERP/docindex/internal/errors"
	"github.com/Aman-CERP/docindex/internal/store"
	"github.com/Aman-CERP/docindex/internal/telemetry"
)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// Config tunes an Engine.
type Config struct {
	// CacheSize is the result cache capacity (0 = 100).
	CacheSize int

	// DefaultLimit applies when a query leaves Limit at zero (0 = 20).
	DefaultLimit int

	// DefaultMode applies when a query leaves Mode empty (default fuzzy).
	DefaultMode Mode
}

// Engine answers queries against one index. Each index owns its own Engine,
// so caches and histories are never shared between indexes.
type Engine struct {
	store   store.Store
	cache   *Cache
	history *telemetry.History
	config  Config
	logger  *slog.Logger
}

// NewEngine creates an engine over st. history may be nil to disable telemetry.
func NewEngine(st store.Store, history *telemetry.History, cfg Config, logger *slog.Logger) (*Engine, error) {
	if st == nil {
		return nil, fmt.Errorf("%w: store is required", ErrNilDependency)
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = DefaultLimit
	}
	if cfg.DefaultMode == "" {
		cfg.DefaultMode = ModeFuzzy
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:   st,
		cache:   NewCache(cfg.CacheSize),
		history: history,
		config:  cfg,
		logger:  logger,
	}, nil
}

// Search runs q. Identical queries are served from the cache until the next
// Invalidate; NoCache bypasses it. Every successful call is recorded in the
// history, whether or not it hit the cache.
func (e *Engine) Search(ctx context.Context, q SearchQuery) (*SearchResponse, error) {
	start := time.Now()
	q = e.withDefaults(q)

	expr, err := Build(q)
	if err != nil {
		return nil, err
	}

	key := CacheKey(q)
	if !q.NoCache {
		if resp, ok := e.cache.Lookup(key); ok {
			resp.CacheHit = true
			resp.Elapsed = time.Since(start)
			e.record(q, resp)
			e.logger.Debug("search_cache_hit",
				slog.String("query", q.Text),
				slog.String("mode", string(q.Mode)))
			return resp, nil
		}
	}

	hits, total, err := e.store.Query(ctx, storeQuery(q, expr))
	if err != nil {
		if docerrors.GetCode(err) == "" {
			err = docerrors.New(docerrors.ErrCodeSearchFailed, "search failed", err)
		}
		e.logger.Error("search_failed",
			append([]any{slog.String("query", q.Text)}, docerrors.LogAttrs(err)...)...)
		return nil, err
	}

	results := toResults(hits)
	applySort(results, q.Sort)

	resp := &SearchResponse{
		Results: results,
		Mode:    q.Mode,
		Query:   q.Text,
	}
	paginate(resp, total, q.Limit, q.Offset)
	resp.Elapsed = time.Since(start)

	if !q.NoCache {
		e.cache.Store(key, resp)
	}
	e.record(q, resp)

	e.logger.Debug("search_complete",
		slog.String("query", q.Text),
		slog.String("mode", string(q.Mode)),
		slog.Int("total", total),
		slog.Int("returned", len(results)),
		slog.Int64("duration_ms", resp.Elapsed.Milliseconds()))

	return resp, nil
}

func (e *Engine) withDefaults(q SearchQuery) SearchQuery {
	if q.Limit == 0 {
		q.Limit = e.config.DefaultLimit
	}
	if q.Mode == "" {
		q.Mode = e.config.DefaultMode
	}
	if f, ok := ParseSortField(string(q.Sort.Field)); ok {
		q.Sort.Field = f
	}
	return q
}

func (e *Engine) record(q SearchQuery, resp *SearchResponse) {
	if e.history == nil {
		return
	}
	e.history.Record(telemetry.Entry{
		Query:       q.Text,
		Mode:        string(q.Mode),
		ResultCount: resp.Total,
		CacheHit:    resp.CacheHit,
		Latency:     resp.Elapsed,
		Timestamp:   time.Now(),
	})
}

// Invalidate drops every cached response. The orchestrator calls it after
// each completed build or refresh.
func (e *Engine) Invalidate() {
	e.cache.Purge()
	e.logger.Debug("search_cache_purged")
}

// CacheStats returns result cache statistics.
func (e *Engine) CacheStats() CacheStats {
	return e.cache.Stats()
}

// History returns the engine's telemetry, or nil.
func (e *Engine) History() *telemetry.History {
	return e.history
}

// Suggest completes prefix from indexed file names and the search history.
func (e *Engine) Suggest(ctx context.Context, prefix string, n int) ([]string, error) {
	names, err := e.store.FileNames(ctx)
	if err != nil {
		return nil, err
	}
	if e.history == nil {
		return telemetry.Suggest(prefix, names, nil, n), nil
	}
	return e.history.Suggest(prefix, names, n), nil
}
