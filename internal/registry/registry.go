// Package registry maps index locations to their live engines. Each store
// path gets one Instance (store, orchestrator, search engine and history),
// built on first use and shared by every caller in the process. Distinct
// paths never share a cache or a history.
package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/Aman-CERP/docindex/internal/config"
	docerrors "github.com/Aman-CERP/docindex/internal/errors"
	"github.com/Aman-CERP/docindex/internal/index"
	"github.com/Aman-CERP/docindex/internal/lock"
	"github.com/Aman-CERP/docindex/internal/parser"
	"github.com/Aman-CERP/docindex/internal/scanner"
	"github.com/Aman-CERP/docindex/internal/search"
	"github.com/Aman-CERP/docindex/internal/store"
	"github.com/Aman-CERP/docindex/internal/telemetry"
)

// ErrClosed is returned by a Registry after Close.
var ErrClosed = errors.New("registry is closed")

// Instance is everything needed to index and search one store.
type Instance struct {
	// BasePath is the store location without backend suffix.
	BasePath string
	Backend  store.Backend

	Store        store.Store
	Scanner      *scanner.Scanner
	Orchestrator *index.Orchestrator
	Engine       *search.Engine
	History      *telemetry.History

	historyStore *telemetry.SQLiteStore
	// historyDB is set when history lives in its own database (bleve backend).
	historyDB *sql.DB
}

// Close releases the instance's store and history database.
func (i *Instance) Close() error {
	var errs []error
	if i.historyStore != nil {
		errs = append(errs, i.historyStore.Close())
	}
	if i.historyDB != nil {
		errs = append(errs, i.historyDB.Close())
	}
	if i.Store != nil {
		errs = append(errs, i.Store.Close())
	}
	return errors.Join(errs...)
}

// Summary returns the record count and on-disk size of the index.
func (i *Instance) Summary(ctx context.Context) (int, int64, error) {
	stats, err := i.Store.Stats(ctx)
	if err != nil {
		return 0, 0, err
	}
	return stats.Total, store.SizeOnDisk(i.BasePath), nil
}

// Registry owns the Instances of one process.
type Registry struct {
	cfg     *config.Config
	parsers *parser.Registry
	logger  *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
	closed  bool
}

// entry is one path's instance. ready closes once the build finished; inst
// and err are written under Registry.mu before that.
type entry struct {
	ready chan struct{}
	inst  *Instance
	err   error
}

// New creates a Registry. cfg may be nil to use defaults.
func New(cfg *config.Config, logger *slog.Logger) *Registry {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		cfg:       cfg,
		parsers:   parser.DefaultRegistry(),
		logger:    logger,
		entries:   make(map[string]*entry),
	}
}

// Open returns the Instance for basePath, creating it on first use. An
// existing index keeps its backend; a new one uses the configured backend.
func (r *Registry) Open(ctx context.Context, basePath string) (*Instance, error) {
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, docerrors.New(docerrors.ErrCodeInvalidPath, "invalid index path "+basePath, err)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	e, ok := r.entries[abs]
	if !ok {
		e = &entry{ready: make(chan struct{})}
		r.entries[abs] = e
	}
	r.mu.Unlock()

	if !ok {
		// Build outside the lock so other paths are not held up.
		inst, err := r.build(ctx, abs)
		r.finish(abs, e, inst, err)
		return e.inst, e.err
	}

	select {
	case <-e.ready:
		return e.inst, e.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// finish publishes a build result. A failed build is forgotten so the next
// Open retries; an instance built after Close is closed again.
func (r *Registry) finish(abs string, e *entry, inst *Instance, err error) {
	r.mu.Lock()
	defer close(e.ready)
	defer r.mu.Unlock()

	switch {
	case err != nil:
		e.err = err
		if r.entries[abs] == e {
			delete(r.entries, abs)
		}
	case r.closed:
		_ = inst.Close()
		e.err = ErrClosed
	default:
		e.inst = inst
		r.logger.Debug("instance_opened",
			slog.String("path", abs),
			slog.String("backend", string(inst.Backend)))
	}
}

// OpenLibrary opens the named library from cat and marks it used.
// Disabled libraries are refused.
func (r *Registry) OpenLibrary(ctx context.Context, cat *Catalog, name string) (*Instance, error) {
	lib, err := cat.Get(name)
	if err != nil {
		return nil, err
	}
	if !lib.Enabled {
		return nil, docerrors.New(docerrors.ErrCodeInvalidInput, fmt.Sprintf("library '%s' is disabled", name), nil).
			WithSuggestion("Run 'docindex library enable " + name + "'.")
	}
	inst, err := r.Open(ctx, lib.DBPath)
	if err != nil {
		return nil, err
	}
	if err := cat.Touch(name); err != nil {
		r.logger.Warn("library_touch_failed",
			slog.String("library", name),
			slog.String("error", err.Error()))
	}
	return inst, nil
}

// BuildIndex indexes roots into the store at basePath.
func (r *Registry) BuildIndex(ctx context.Context, basePath string, roots []string, opts index.Options) (*index.IndexStats, error) {
	inst, err := r.Open(ctx, basePath)
	if err != nil {
		return nil, err
	}
	return inst.Orchestrator.BuildIndex(ctx, roots, opts)
}

// RefreshIndex re-scans the roots recorded in the store at basePath.
func (r *Registry) RefreshIndex(ctx context.Context, basePath string, opts index.Options) (*index.IndexStats, error) {
	inst, err := r.Open(ctx, basePath)
	if err != nil {
		return nil, err
	}
	return inst.Orchestrator.RefreshIndex(ctx, opts)
}

// Len returns the number of open instances.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if e.inst != nil {
			n++
		}
	}
	return n
}

// Close closes every instance. The Registry cannot be used afterwards.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Entries still building are closed by finish.
	var errs []error
	for path, e := range r.entries {
		if e.inst == nil {
			continue
		}
		if err := e.inst.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", path, err))
		}
	}
	r.entries = make(map[string]*entry)
	r.closed = true
	return errors.Join(errs...)
}

func (r *Registry) build(ctx context.Context, basePath string) (*Instance, error) {
	backend := store.Detect(basePath)
	if backend == "" {
		backend = store.Backend(r.cfg.Search.Backend)
	}

	// store.Open retries a busy SQLite database itself.
	st, err := store.Open(ctx, basePath, store.Options{
		Backend: backend,
		SQLite:  store.SQLiteOptions{CacheMB: r.cfg.Store.SQLiteCacheMB},
	})
	if err != nil {
		return nil, err
	}

	inst := &Instance{BasePath: basePath, Backend: backend, Store: st}

	historyDB, ownDB, err := historyDatabase(ctx, st, basePath)
	if err != nil {
		_ = inst.Close()
		return nil, err
	}
	if ownDB {
		inst.historyDB = historyDB
	}
	if err := telemetry.InitHistorySchema(historyDB); err != nil {
		_ = inst.Close()
		return nil, docerrors.StoreError("failed to initialize search history", err)
	}
	hs, err := telemetry.NewSQLiteStore(historyDB)
	if err != nil {
		_ = inst.Close()
		return nil, err
	}
	inst.historyStore = hs

	inst.History, err = telemetry.New(telemetry.Config{HistorySize: r.cfg.Search.HistorySize}, hs, r.logger)
	if err != nil {
		_ = inst.Close()
		return nil, docerrors.StoreError("failed to load search history", err)
	}

	inst.Engine, err = search.NewEngine(st, inst.History, search.Config{
		CacheSize:    r.cfg.Search.CacheSize,
		DefaultLimit: r.cfg.Search.DefaultLimit,
		DefaultMode:  search.Mode(r.cfg.Search.DefaultMode),
	}, r.logger)
	if err != nil {
		_ = inst.Close()
		return nil, err
	}

	sc := scanner.New(scanner.Options{
		ExcludedExtensions: r.cfg.Paths.ExcludedExtensions,
		ExcludedPaths:      r.cfg.Paths.ExcludedPaths,
		MaxFileSize:        r.cfg.MaxFileSize(),
		Supports:           r.parsers.Supports,
	}).WithLogger(r.logger)
	inst.Scanner = sc

	inst.Orchestrator, err = index.NewOrchestrator(index.Dependencies{
		Store:    st,
		Parser:   r.parsers,
		Scanner:  sc,
		LockPath: lock.ForIndex(store.PathFor(basePath, backend)).Path(),
		Defaults: index.Options{
			Workers:      r.cfg.Indexing.Workers,
			BatchSize:    r.cfg.Indexing.BatchSize,
			Serial:       r.cfg.Indexing.Serial,
			ParseTimeout: r.cfg.ParseTimeout(),
		},
		Logger: r.logger,
	})
	if err != nil {
		_ = inst.Close()
		return nil, err
	}
	inst.Orchestrator.OnComplete(inst.Engine.Invalidate)

	return inst, nil
}

// historyDatabase returns the database that holds search history: the
// store's own for SQLite, a sibling <base>.history.db otherwise.
func historyDatabase(ctx context.Context, st store.Store, basePath string) (*sql.DB, bool, error) {
	if s, ok := st.(*store.SQLiteStore); ok {
		return s.DB(), false, nil
	}
	db, err := store.OpenDB(ctx, basePath+".history.db", store.SQLiteOptions{CacheMB: 8})
	if err != nil {
		return nil, false, err
	}
	return db, true, nil
}
