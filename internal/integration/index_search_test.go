package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/docindex/internal/config"
	"github.com/Aman-CERP/docindex/internal/index"
	"github.com/Aman-CERP/docindex/internal/registry"
	"github.com/Aman-CERP/docindex/internal/search"
	"github.com/Aman-CERP/docindex/internal/store"
	"github.com/Aman-CERP/docindex/internal/watcher"
)

// Integration tests drive the registry end to end: scan, classify, parse,
// write, then search through the cached engine.

func newRegistry(t *testing.T, backend store.Backend) *registry.Registry {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Indexing.Workers = 4
	cfg.Search.Backend = string(backend)
	r := registry.New(cfg, nil)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func createLibrary(t *testing.T, root string) {
	t.Helper()
	files := map[string]string{
		"guide.md":          "# Setup guide\n\nInstall the heron client before configuring the relay.",
		"notes/meeting.txt": "Meeting notes: the heron relay shipped on Tuesday.",
		"notes/todo.txt":    "Buy milk. Renew the domain.",
		"data/report.csv":   "region,total\nnorth,12\nsouth,9\n",
		"page.html":         "<html><body><p>Heron migration status page</p></body></html>",
	}
	for name, body := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
}

func paths(resp *search.SearchResponse) []string {
	out := make([]string, 0, len(resp.Results))
	for _, r := range resp.Results {
		out = append(out, filepath.Base(r.Path))
	}
	return out
}

// =============================================================================
// Build, search, refresh
// =============================================================================

func TestIntegration_IndexAndSearch(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	for _, backend := range []store.Backend{store.BackendSQLite, store.BackendBleve} {
		t.Run(string(backend), func(t *testing.T) {
			ctx := context.Background()

			// Given: a folder of mixed documents
			root := t.TempDir()
			createLibrary(t, root)
			r := newRegistry(t, backend)
			base := filepath.Join(t.TempDir(), "lib")

			// When: building the index
			stats, err := r.BuildIndex(ctx, base, []string{root}, index.Options{})
			require.NoError(t, err)

			// Then: every file is added
			assert.Equal(t, 5, stats.Scanned)
			assert.Equal(t, 5, stats.Added)
			assert.Equal(t, index.RunCompleted, stats.Status)

			inst, err := r.Open(ctx, base)
			require.NoError(t, err)
			assert.Equal(t, backend, inst.Backend)

			// And: content from every parser is searchable
			resp, err := inst.Engine.Search(ctx, search.SearchQuery{Text: "heron"})
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"guide.md", "meeting.txt", "page.html"}, paths(resp))

			resp, err = inst.Engine.Search(ctx, search.SearchQuery{Text: "heron"})
			require.NoError(t, err)
			require.True(t, resp.CacheHit, "repeat query is served from the cache")

			resp, err = inst.Engine.Search(ctx, search.SearchQuery{Text: "north"})
			require.NoError(t, err)
			assert.Equal(t, []string{"report.csv"}, paths(resp))

			// And: filters narrow the result set
			resp, err = inst.Engine.Search(ctx, search.SearchQuery{
				Text:    "heron",
				Filters: search.Filters{FileTypes: []string{"txt"}},
			})
			require.NoError(t, err)
			assert.Equal(t, []string{"meeting.txt"}, paths(resp))

			// When: one file changes and one disappears
			require.NoError(t, os.WriteFile(filepath.Join(root, "notes", "todo.txt"),
				[]byte("Ask about the heron relay budget."), 0o644))
			require.NoError(t, os.Remove(filepath.Join(root, "page.html")))

			stats, err = r.RefreshIndex(ctx, base, index.Options{})
			require.NoError(t, err)

			// Then: only the delta is applied
			assert.Equal(t, 1, stats.Updated)
			assert.Equal(t, 1, stats.Deleted)
			assert.Equal(t, 3, stats.Unchanged)

			// And: the query cached before the refresh is recomputed
			resp, err = inst.Engine.Search(ctx, search.SearchQuery{Text: "heron"})
			require.NoError(t, err)
			assert.False(t, resp.CacheHit)
			assert.ElementsMatch(t, []string{"guide.md", "meeting.txt", "todo.txt", "page.html"}, paths(resp))

			resp, err = inst.Engine.Search(ctx, search.SearchQuery{
				Text:    "heron",
				Filters: search.Filters{ActiveOnly: true},
			})
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"guide.md", "meeting.txt", "todo.txt"}, paths(resp))

			// And: the deleted document stays findable with its status
			resp, err = inst.Engine.Search(ctx, search.SearchQuery{Text: "migration"})
			require.NoError(t, err)
			require.Len(t, resp.Results, 1)
			assert.Equal(t, store.StatusDeleted, resp.Results[0].Status)
		})
	}
}

func TestIntegration_ReopenKeepsIndex(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	ctx := context.Background()

	// Given: an index built and closed by one registry
	root := t.TempDir()
	createLibrary(t, root)
	base := filepath.Join(t.TempDir(), "lib")

	first := registry.New(config.NewConfig(), nil)
	_, err := first.BuildIndex(ctx, base, []string{root}, index.Options{})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	// When: another registry refreshes it without changes
	second := newRegistry(t, store.BackendSQLite)
	stats, err := second.RefreshIndex(ctx, base, index.Options{})

	// Then: the recorded roots are reused and nothing is rewritten
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Unchanged)
	assert.Zero(t, stats.Added+stats.Updated+stats.Deleted)
}

// =============================================================================
// Watcher-driven refresh
// =============================================================================

func TestIntegration_WatcherRefreshesIndex(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: an indexed folder under watch
	root := t.TempDir()
	createLibrary(t, root)
	r := newRegistry(t, store.BackendSQLite)
	base := filepath.Join(t.TempDir(), "lib")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := r.BuildIndex(ctx, base, []string{root}, index.Options{})
	require.NoError(t, err)
	inst, err := r.Open(ctx, base)
	require.NoError(t, err)

	w, err := watcher.New(watcher.Options{
		Debounce: 50 * time.Millisecond,
		Accept:   inst.Scanner.Accepts,
	})
	require.NoError(t, err)

	refreshed := make(chan *index.IndexStats, 4)
	refresh := func(ctx context.Context) error {
		stats, err := r.RefreshIndex(ctx, base, index.Options{})
		if err == nil {
			select {
			case refreshed <- stats:
			default:
			}
		}
		return err
	}

	wctx, stop := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(wctx)
	g.Go(func() error { return w.Start(gctx, []string{root}) })
	g.Go(func() error { return watcher.RefreshOnChange(gctx, w.Batches(), refresh, nil) })
	time.Sleep(200 * time.Millisecond)

	// When: a new file appears
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes", "late.txt"),
		[]byte("the egret report arrived late"), 0o644))

	// Then: a refresh adds it
	select {
	case stats := <-refreshed:
		assert.Equal(t, 1, stats.Added)
	case <-ctx.Done():
		t.Fatal("watcher did not trigger a refresh")
	}

	resp, err := inst.Engine.Search(ctx, search.SearchQuery{Text: "egret"})
	require.NoError(t, err)
	assert.Equal(t, []string{"late.txt"}, paths(resp))

	stop()
	_ = g.Wait()
	require.NoError(t, w.Stop())
}
