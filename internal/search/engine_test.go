package search

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	docerrors "github.com/Aman-CERP/docindex/internal/errors"
	"github.com/Aman-CERP/docindex/internal/index"
	"github.com/Aman-CERP/docindex/internal/mocks"
	"github.com/Aman-CERP/docindex/internal/parser"
	"github.com/Aman-CERP/docindex/internal/scanner"
	"github.com/Aman-CERP/docindex/internal/store"
	"github.com/Aman-CERP/docindex/internal/telemetry"
)

type harness struct {
	store   *store.SQLiteStore
	orch    *index.Orchestrator
	engine  *Engine
	history *telemetry.History
	root    string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	st, err := store.NewSQLiteStore(ctx, "", store.SQLiteOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, telemetry.InitHistorySchema(st.DB()))
	hs, err := telemetry.NewSQLiteStore(st.DB())
	require.NoError(t, err)
	history, err := telemetry.New(telemetry.Config{}, hs, nil)
	require.NoError(t, err)

	registry := parser.DefaultRegistry()
	orch, err := index.NewOrchestrator(index.Dependencies{
		Store:   st,
		Parser:  registry,
		Scanner: scanner.New(scanner.Options{Supports: registry.Supports}),
	})
	require.NoError(t, err)

	engine, err := NewEngine(st, history, Config{}, nil)
	require.NoError(t, err)
	orch.OnComplete(engine.Invalidate)

	return &harness{store: st, orch: orch, engine: engine, history: history, root: t.TempDir()}
}

func (h *harness) write(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(h.root, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func (h *harness) build(t *testing.T) *index.IndexStats {
	t.Helper()
	stats, err := h.orch.BuildIndex(context.Background(), []string{h.root}, index.Options{Workers: 2})
	require.NoError(t, err)
	return stats
}

func (h *harness) refresh(t *testing.T) *index.IndexStats {
	t.Helper()
	stats, err := h.orch.RefreshIndex(context.Background(), index.Options{Workers: 2})
	require.NoError(t, err)
	return stats
}

func resultPaths(resp *SearchResponse) []string {
	out := make([]string, len(resp.Results))
	for i, r := range resp.Results {
		out[i] = r.Path
	}
	return out
}

// =============================================================================
// End-to-end scenario
// =============================================================================

func TestEngine_EndToEnd(t *testing.T) {
	// Given: ten files, two unreadable, a token in three of the eight
	h := newHarness(t)
	var withToken []string
	for i := 0; i < 8; i++ {
		body := fmt.Sprintf("plain text file %d", i)
		if i < 3 {
			body = fmt.Sprintf("%s mentions kestrel %s", body, repeat("kestrel ", i))
		}
		p := h.write(t, fmt.Sprintf("f%d.txt", i), body)
		if i < 3 {
			withToken = append(withToken, p)
		}
	}
	h.write(t, "bad1.txt", "\x00\x01binary")
	h.write(t, "bad2.txt", "\x00\x02binary")

	stats := h.build(t)
	assert.Equal(t, 10, stats.Scanned)
	assert.Equal(t, 8, stats.Added)
	assert.Equal(t, 2, stats.Failed)

	// When: a fuzzy search for a prefix of the token
	resp, err := h.engine.Search(context.Background(), SearchQuery{Text: "kestr", Mode: ModeFuzzy, Limit: 10})

	// Then: exactly three results, best first
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Total)
	assert.ElementsMatch(t, withToken, resultPaths(resp))
	for i := 1; i < len(resp.Results); i++ {
		assert.GreaterOrEqual(t, resp.Results[i-1].Score, resp.Results[i].Score)
	}
	for _, r := range resp.Results {
		assert.Contains(t, r.Snippet, "<mark>")
		assert.Equal(t, store.StatusActive, r.Status)
	}

	// When: one of them is removed and the index refreshed
	require.NoError(t, os.Remove(withToken[0]))
	stats = h.refresh(t)
	assert.Equal(t, 1, stats.Deleted)

	// Then: the same search still finds it, marked deleted
	resp, err = h.engine.Search(context.Background(), SearchQuery{Text: "kestr", Mode: ModeFuzzy, Limit: 10})
	require.NoError(t, err)
	assert.False(t, resp.CacheHit, "refresh purges the cache")
	require.Equal(t, 3, resp.Total)
	for _, r := range resp.Results {
		if r.Path == withToken[0] {
			assert.Equal(t, store.StatusDeleted, r.Status)
		}
	}

	// And: active-only hides it
	resp, err = h.engine.Search(context.Background(), SearchQuery{
		Text: "kestr", Limit: 10, Filters: Filters{ActiveOnly: true},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Total)
}

func repeat(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += s
	}
	return out
}

// =============================================================================
// Cache behavior
// =============================================================================

func TestEngine_SecondIdenticalQueryHitsCache(t *testing.T) {
	h := newHarness(t)
	h.write(t, "a.md", "# Roadmap\nthe roadmap for next year")
	h.write(t, "b.md", "unrelated")
	h.build(t)

	q := SearchQuery{Text: "roadmap", Mode: ModeExact, Limit: 5}
	first, err := h.engine.Search(context.Background(), q)
	require.NoError(t, err)
	second, err := h.engine.Search(context.Background(), q)
	require.NoError(t, err)

	assert.False(t, first.CacheHit)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Results, second.Results)
	assert.Equal(t, first.Total, second.Total)

	stats := h.engine.CacheStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestEngine_RefreshInvalidatesCache(t *testing.T) {
	// Given: a cached result for content that later changes
	h := newHarness(t)
	path := h.write(t, "notes.txt", "meeting about pelicans")
	h.build(t)

	q := SearchQuery{Text: "pelicans", Limit: 5}
	resp, err := h.engine.Search(context.Background(), q)
	require.NoError(t, err)
	require.Equal(t, 1, resp.Total)

	require.NoError(t, os.WriteFile(path, []byte("meeting about otters"), 0o644))

	// When: the index is refreshed
	stats := h.refresh(t)
	require.Equal(t, 1, stats.Updated)

	// Then: the old content is no longer returned
	resp, err = h.engine.Search(context.Background(), q)
	require.NoError(t, err)
	assert.False(t, resp.CacheHit)
	assert.Zero(t, resp.Total)

	resp, err = h.engine.Search(context.Background(), SearchQuery{Text: "otters", Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Total)
}

func TestEngine_NoCacheBypassesBothWays(t *testing.T) {
	h := newHarness(t)
	h.write(t, "a.txt", "heron")
	h.build(t)

	q := SearchQuery{Text: "heron", Limit: 5, NoCache: true}
	_, err := h.engine.Search(context.Background(), q)
	require.NoError(t, err)

	q.NoCache = false
	resp, err := h.engine.Search(context.Background(), q)
	require.NoError(t, err)

	assert.False(t, resp.CacheHit, "a NoCache call must not populate the cache")
	assert.Equal(t, 1, h.engine.CacheStats().Size)
}

// =============================================================================
// Pagination, sorting, filters
// =============================================================================

func TestEngine_Pagination(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 5; i++ {
		h.write(t, fmt.Sprintf("p%d.txt", i), "osprey sighting")
	}
	h.build(t)

	resp, err := h.engine.Search(context.Background(), SearchQuery{Text: "osprey", Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 2)
	assert.Equal(t, 5, resp.Total)
	assert.Equal(t, 2, resp.Page)
	assert.Equal(t, 3, resp.TotalPages)
	assert.True(t, resp.HasNext)
	assert.True(t, resp.HasPrev)

	resp, err = h.engine.Search(context.Background(), SearchQuery{Text: "osprey", Limit: 2, Offset: 40})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.Equal(t, 5, resp.Total)
	assert.Equal(t, 3, resp.TotalPages)
	assert.False(t, resp.HasNext)
}

func TestEngine_SortAndFilters(t *testing.T) {
	h := newHarness(t)
	h.write(t, "c.txt", "falcon falcon falcon")
	h.write(t, "a.md", "falcon")
	h.write(t, "b.txt", "falcon and more words to be larger")
	h.build(t)

	resp, err := h.engine.Search(context.Background(), SearchQuery{
		Text: "falcon", Limit: 10, Sort: Sort{Field: SortName},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md", "b.txt", "c.txt"}, []string{
		resp.Results[0].Name, resp.Results[1].Name, resp.Results[2].Name,
	})

	resp, err = h.engine.Search(context.Background(), SearchQuery{
		Text: "falcon", Limit: 10, Filters: Filters{FileTypes: []string{".md"}},
	})
	require.NoError(t, err)
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "a.md", resp.Results[0].Name)
}

func TestEngine_DefaultsApplied(t *testing.T) {
	h := newHarness(t)
	h.write(t, "a.txt", "wren")
	h.build(t)

	resp, err := h.engine.Search(context.Background(), SearchQuery{Text: "wre"})

	require.NoError(t, err)
	assert.Equal(t, ModeFuzzy, resp.Mode)
	assert.Equal(t, DefaultLimit, resp.PageSize)
	assert.Equal(t, 1, resp.Total)
}

func TestEngine_InvalidQueryNeverReachesStore(t *testing.T) {
	ctrl := gomock.NewController(t)
	st := mocks.NewMockStore(ctrl)
	// No expectations: any store call fails the test.

	engine, err := NewEngine(st, nil, Config{}, nil)
	require.NoError(t, err)

	_, err = engine.Search(context.Background(), SearchQuery{Text: "   "})
	assert.Equal(t, docerrors.ErrCodeQueryEmpty, docerrors.GetCode(err))

	_, err = engine.Search(context.Background(), SearchQuery{Text: "x", Filters: Filters{SizeMin: 9, SizeMax: 1}})
	assert.Equal(t, docerrors.ErrCodeInvalidFilter, docerrors.GetCode(err))
}

func TestEngine_StoreFailureIsWrapped(t *testing.T) {
	ctrl := gomock.NewController(t)
	st := mocks.NewMockStore(ctrl)
	st.EXPECT().Query(gomock.Any(), gomock.Any()).Return(nil, 0, errors.New("disk error"))

	engine, err := NewEngine(st, nil, Config{}, nil)
	require.NoError(t, err)

	_, err = engine.Search(context.Background(), SearchQuery{Text: "x"})

	assert.Equal(t, docerrors.ErrCodeSearchFailed, docerrors.GetCode(err))
}

func TestNewEngine_RequiresStore(t *testing.T) {
	_, err := NewEngine(nil, nil, Config{}, nil)
	assert.ErrorIs(t, err, ErrNilDependency)
}

// =============================================================================
// Telemetry
// =============================================================================

func TestEngine_RecordsEveryCall(t *testing.T) {
	h := newHarness(t)
	h.write(t, "swift_notes.txt", "swift migration")
	h.build(t)

	q := SearchQuery{Text: "swift", Limit: 5}
	for i := 0; i < 3; i++ {
		_, err := h.engine.Search(context.Background(), q)
		require.NoError(t, err)
	}
	_, err := h.engine.Search(context.Background(), SearchQuery{Text: "migration", Limit: 5})
	require.NoError(t, err)

	stats := h.history.Stats()
	assert.Equal(t, int64(4), stats.TotalSearches)
	assert.Equal(t, 2, stats.UniqueQueries)
	assert.Equal(t, int64(2), stats.CacheHits)

	popular := h.history.Popular(1)
	require.Len(t, popular, 1)
	assert.Equal(t, telemetry.QueryCount{Query: "swift", Count: 3}, popular[0])

	recent := h.history.Recent(1)
	require.Len(t, recent, 1)
	assert.Equal(t, "migration", recent[0].Query)
	assert.Equal(t, 1, recent[0].ResultCount)
	assert.WithinDuration(t, time.Now(), recent[0].Timestamp, time.Minute)
}

func TestEngine_Suggest(t *testing.T) {
	h := newHarness(t)
	h.write(t, "budget_plan-2024.txt", "numbers")
	h.write(t, "budgeting.md", "more numbers")
	h.build(t)

	_, err := h.engine.Search(context.Background(), SearchQuery{Text: "budget review", Limit: 5})
	require.NoError(t, err)

	got, err := h.engine.Suggest(context.Background(), "bud", 10)

	require.NoError(t, err)
	assert.Equal(t, []string{"budget", "budgeting", "budget review"}, got)
}
