package index

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	docerrors "github.com/Aman-CERP/docindex/internal/errors"
	"github.com/Aman-CERP/docindex/internal/lock"
	"github.com/Aman-CERP/docindex/internal/scanner"
	"github.com/Aman-CERP/docindex/internal/store"
)

// DefaultLockWait is how long a pass waits for another process to release
// the index.
const DefaultLockWait = 5 * time.Second

// Dependencies are the collaborators an Orchestrator needs.
type Dependencies struct {
	// Store is the index store (required).
	Store store.Store

	// Parser extracts content (required).
	Parser ContentParser

	// Scanner discovers files (required).
	Scanner *scanner.Scanner

	// Hasher computes content hashes (default scanner.HashFile).
	Hasher Hasher

	// LockPath is the cross-process lock file. Empty disables locking.
	LockPath string

	// LockWait bounds the wait for LockPath (0 = DefaultLockWait).
	LockWait time.Duration

	// Defaults are merged under the Options of each call.
	Defaults Options

	Logger *slog.Logger
}

// Orchestrator drives build and refresh passes for one index. Passes on the
// same Orchestrator run one at a time.
type Orchestrator struct {
	store    store.Store
	parser   ContentParser
	scanner  *scanner.Scanner
	hasher   Hasher
	lockPath string
	lockWait time.Duration
	defaults Options
	logger   *slog.Logger

	runMu sync.Mutex

	mu    sync.RWMutex
	state State
	hooks []func()
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(deps Dependencies) (*Orchestrator, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if deps.Parser == nil {
		return nil, fmt.Errorf("parser is required")
	}
	if deps.Scanner == nil {
		return nil, fmt.Errorf("scanner is required")
	}

	hasher := deps.Hasher
	if hasher == nil {
		hasher = scanner.HashFile
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	lockWait := deps.LockWait
	if lockWait <= 0 {
		lockWait = DefaultLockWait
	}

	return &Orchestrator{
		store:    deps.Store,
		parser:   deps.Parser,
		scanner:  deps.Scanner,
		hasher:   hasher,
		lockPath: deps.LockPath,
		lockWait: lockWait,
		defaults: deps.Defaults,
		logger:   logger,
	}, nil
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// OnComplete registers a hook run after every completed pass, typically a
// cache purge.
func (o *Orchestrator) OnComplete(hook func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.hooks = append(o.hooks, hook)
}

// BuildIndex indexes roots, adding them to the index's stored roots.
func (o *Orchestrator) BuildIndex(ctx context.Context, roots []string, opts Options) (*IndexStats, error) {
	if len(roots) == 0 {
		return nil, docerrors.New(docerrors.ErrCodeInvalidInput, "at least one directory is required", nil)
	}

	abs := make([]string, 0, len(roots))
	for _, r := range roots {
		a, err := filepath.Abs(r)
		if err != nil {
			return nil, docerrors.New(docerrors.ErrCodeInvalidPath, "invalid path "+r, err)
		}
		abs = append(abs, filepath.Clean(a))
	}

	return o.run(ctx, "build", collapseRoots(abs), true, opts)
}

// RefreshIndex re-scans the roots recorded by earlier builds.
func (o *Orchestrator) RefreshIndex(ctx context.Context, opts Options) (*IndexStats, error) {
	roots, err := o.store.Roots(ctx)
	if err != nil {
		return nil, err
	}
	if len(roots) == 0 {
		return nil, docerrors.New(docerrors.ErrCodeInvalidInput, "index has no recorded roots", nil).
			WithSuggestion("run 'docindex index <dir>' first")
	}
	return o.run(ctx, "refresh", collapseRoots(roots), false, opts)
}

func (o *Orchestrator) run(ctx context.Context, op string, roots []string, recordRoots bool, opts Options) (*IndexStats, error) {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	opts = o.merge(opts)
	start := time.Now()
	stats := &IndexStats{}

	if o.lockPath != "" {
		fl := lock.New(o.lockPath)
		if err := fl.Acquire(ctx, o.lockWait); err != nil {
			return nil, err
		}
		defer func() { _ = fl.Unlock() }()
	}

	o.logger.Info("index_started",
		slog.String("op", op),
		slog.Any("roots", roots),
		slog.Int("workers", opts.Workers),
		slog.Bool("serial", opts.Serial))

	fail := func(err error) (*IndexStats, error) {
		o.setState(StateFailed, opts)
		stats.Status = RunFailed
		stats.Elapsed = time.Since(start)
		o.logger.Error("index_failed",
			append([]any{slog.String("op", op)}, docerrors.LogAttrs(err)...)...)
		return stats, err
	}

	// Scanning
	o.setState(StateScanning, opts)
	files, unreachable, err := o.scanner.ScanAll(ctx, roots)
	if err != nil {
		return fail(err)
	}
	stats.Unreachable = unreachable

	reachable := without(roots, unreachable)
	if len(reachable) == 0 {
		o.setState(StateIdle, opts)
		stats.Status = RunSkipped
		stats.Elapsed = time.Since(start)
		o.logger.Info("index_skipped",
			slog.String("op", op),
			slog.String("reason", "no root directory is reachable"),
			slog.Any("roots", roots))
		return stats, nil
	}

	known, err := o.store.KnownPaths(ctx)
	if err != nil {
		return fail(err)
	}

	// Classifying. Records under unreachable or unrelated roots are left alone.
	o.setState(StateClassifying, opts)
	delta := Classify(files, underRoots(known, reachable), o.hasher)
	for _, f := range delta.Failures {
		o.logger.Warn("hash_failed",
			slog.String("path", f.Path),
			slog.String("error", f.Err.Error()))
	}

	// Dispatching
	o.setState(StateDispatching, opts)
	dispatcher := NewDispatcher(o.parser, opts, o.logger)
	docs, err := dispatcher.Dispatch(ctx, delta.Changed(), opts.Progress)
	if err != nil {
		return fail(err)
	}

	// Writing
	o.setState(StateWriting, opts)
	writer := NewWriter(o.store, opts.BatchSize, o.logger)
	written, err := writer.Write(ctx, docs, delta.Deleted)
	if err != nil {
		return fail(err)
	}

	if recordRoots {
		stored, err := o.store.Roots(ctx)
		if err != nil {
			return fail(err)
		}
		if err := o.store.SetRoots(ctx, union(stored, roots)); err != nil {
			return fail(err)
		}
	}

	tally(stats, delta, docs, written)
	stats.Status = RunCompleted
	stats.Elapsed = time.Since(start)
	o.setState(StateCompleted, opts)
	o.runHooks()

	o.logger.Info("index_complete",
		slog.String("op", op),
		slog.Int("scanned", stats.Scanned),
		slog.Int("added", stats.Added),
		slog.Int("updated", stats.Updated),
		slog.Int("deleted", stats.Deleted),
		slog.Int("unchanged", stats.Unchanged),
		slog.Int("failed", stats.Failed),
		slog.Int64("duration_ms", stats.Elapsed.Milliseconds()))

	return stats, nil
}

// tally fills the counters so that Scanned = Added+Updated+Deleted+Unchanged+Failed.
func tally(stats *IndexStats, delta *IndexDelta, docs []ParsedDocument, written *WriteResult) {
	added := make(map[string]bool, len(delta.Added))
	for _, p := range delta.Added {
		added[p] = true
	}
	for _, p := range written.Written {
		if added[p] {
			stats.Added++
		} else {
			stats.Updated++
		}
	}

	stats.Failures = append(stats.Failures, delta.Failures...)
	for _, d := range docs {
		if !d.Success {
			stats.Failures = append(stats.Failures, FileFailure{Path: d.Path, Err: d.Err})
		}
	}
	stats.Failures = append(stats.Failures, written.Failures...)

	stats.Deleted = written.Deleted
	stats.Unchanged = delta.Unchanged
	stats.Failed = len(stats.Failures)
	stats.Scanned = delta.Scanned + len(delta.Deleted)
}

func (o *Orchestrator) merge(opts Options) Options {
	d := o.defaults
	if opts.Workers == 0 {
		opts.Workers = d.Workers
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = d.BatchSize
	}
	if opts.ParseTimeout == 0 {
		opts.ParseTimeout = d.ParseTimeout
	}
	if !opts.Serial {
		opts.Serial = d.Serial
	}
	if opts.Progress == nil {
		opts.Progress = d.Progress
	}
	if opts.OnState == nil {
		opts.OnState = d.OnState
	}
	return opts.withDefaults()
}

func (o *Orchestrator) setState(s State, opts Options) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()

	if opts.OnState != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					o.logger.Error("state_callback_panic", slog.Any("panic", r))
				}
			}()
			opts.OnState(s)
		}()
	}
}

func (o *Orchestrator) runHooks() {
	o.mu.RLock()
	hooks := append([]func(){}, o.hooks...)
	o.mu.RUnlock()

	for _, h := range hooks {
		h()
	}
}

// underRoots keeps the known records that live under one of roots.
func underRoots(known map[string]store.KnownFile, roots []string) map[string]store.KnownFile {
	scoped := make(map[string]store.KnownFile, len(known))
	for path, kf := range known {
		for _, root := range roots {
			if within(path, root) {
				scoped[path] = kf
				break
			}
		}
	}
	return scoped
}

func without(all, drop []string) []string {
	skip := make(map[string]bool, len(drop))
	for _, d := range drop {
		skip[d] = true
	}
	var out []string
	for _, a := range all {
		if !skip[a] {
			out = append(out, a)
		}
	}
	return out
}

// union merges two root lists, dropping duplicates and roots nested under
// another root.
func union(a, b []string) []string {
	return collapseRoots(append(append([]string{}, a...), b...))
}

// collapseRoots returns roots sorted, without duplicates and without any
// root that lies inside another one, so no directory is walked twice.
func collapseRoots(roots []string) []string {
	sorted := append([]string{}, roots...)
	sort.Strings(sorted)

	var out []string
next:
	for _, r := range sorted {
		for _, kept := range out {
			if within(r, kept) {
				continue next
			}
		}
		out = append(out, r)
	}
	return out
}

// within reports whether path is root or lies below it.
func within(path, root string) bool {
	if path == root {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(root, string(filepath.Separator))+string(filepath.Separator))
}

// IsSkipped reports whether stats describe a pass that did nothing because
// its roots were unreachable.
func IsSkipped(stats *IndexStats) bool {
	return stats != nil && stats.Status == RunSkipped
}
