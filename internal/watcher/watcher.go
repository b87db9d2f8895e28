// Package watcher turns file system activity under the indexed roots into
// debounced batches of events. The watch command feeds each batch into an
// index refresh.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Operation is a file system operation type.
type Operation int

const (
	OpCreate Operation = iota
	OpModify
	OpDelete
	OpRename
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is one file system change.
type FileEvent struct {
	// Path is absolute.
	Path      string
	Operation Operation
	IsDir     bool
	Timestamp time.Time
}

// Options configures a Watcher.
type Options struct {
	// Debounce is how long the watcher waits for activity to settle before
	// emitting a batch. Default: 500ms.
	Debounce time.Duration

	// BufferSize bounds the pending batches. Default: 16.
	BufferSize int

	// Accept filters create and modify events for files, typically the
	// scanner's exclusion rules. Delete and rename events always pass
	// because the file can no longer be inspected. Nil accepts everything.
	Accept func(path string) bool

	// SkipDirs are directory base names never watched (e.g. ".git").
	SkipDirs []string

	Logger *slog.Logger
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		Debounce:   500 * time.Millisecond,
		BufferSize: 16,
		SkipDirs:   []string{".git", "node_modules"},
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.Debounce <= 0 {
		o.Debounce = defaults.Debounce
	}
	if o.BufferSize <= 0 {
		o.BufferSize = defaults.BufferSize
	}
	if o.SkipDirs == nil {
		o.SkipDirs = defaults.SkipDirs
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Watcher watches directory trees with fsnotify and emits debounced batches.
type Watcher struct {
	fs        *fsnotify.Watcher
	debouncer *Debouncer
	batches   chan []FileEvent
	errors    chan error
	stopCh    chan struct{}
	opts      Options
	skip      map[string]bool

	mu      sync.Mutex
	stopped bool

	dropped atomic.Uint64
}

// New creates a Watcher. Call Start to begin watching.
func New(opts Options) (*Watcher, error) {
	opts = opts.WithDefaults()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	skip := make(map[string]bool, len(opts.SkipDirs))
	for _, d := range opts.SkipDirs {
		skip[d] = true
	}

	return &Watcher{
		fs:        fsw,
		debouncer: NewDebouncer(opts.Debounce, opts.Logger),
		batches:   make(chan []FileEvent, opts.BufferSize),
		errors:    make(chan error, 10),
		stopCh:    make(chan struct{}),
		opts:      opts,
		skip:      skip,
	}, nil
}

// Start watches roots recursively and blocks until Stop is called or ctx is
// cancelled. A root that cannot be watched is reported on Errors; Start
// fails only when no root can be watched.
func (w *Watcher) Start(ctx context.Context, roots []string) error {
	watched := 0
	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			w.emitError(fmt.Errorf("resolve %s: %w", root, err))
			continue
		}
		if err := w.addRecursive(abs); err != nil {
			w.emitError(fmt.Errorf("watch %s: %w", abs, err))
			continue
		}
		watched++
	}
	if watched == 0 {
		_ = w.Stop()
		return errors.New("no directory could be watched")
	}

	go w.forward(ctx)

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.emitError(err)
		}
	}
}

// Stop stops the watcher and releases resources. Safe to call multiple times.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	w.debouncer.Stop()
	return w.fs.Close()
}

// Batches returns the channel of debounced event batches.
func (w *Watcher) Batches() <-chan []FileEvent {
	return w.batches
}

// Errors returns non-fatal watcher errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Dropped returns how many batches were dropped because the consumer was
// too slow.
func (w *Watcher) Dropped() uint64 {
	return w.dropped.Load()
}

func (w *Watcher) handle(event fsnotify.Event) {
	isDir := false
	if info, err := os.Stat(event.Name); err == nil {
		isDir = info.IsDir()
	}
	if w.skip[filepath.Base(event.Name)] {
		return
	}

	var op Operation
	switch {
	case event.Op&fsnotify.Create != 0:
		op = OpCreate
		if isDir {
			if err := w.addRecursive(event.Name); err != nil {
				w.emitError(err)
			}
			return
		}
	case event.Op&fsnotify.Write != 0:
		op = OpModify
	case event.Op&fsnotify.Remove != 0:
		op = OpDelete
	case event.Op&fsnotify.Rename != 0:
		op = OpRename
	default:
		// Chmod carries no content change.
		return
	}

	if isDir {
		return
	}
	if (op == OpCreate || op == OpModify) && w.opts.Accept != nil && !w.opts.Accept(event.Name) {
		return
	}

	w.debouncer.Add(FileEvent{
		Path:      event.Name,
		Operation: op,
		Timestamp: time.Now(),
	})
}

func (w *Watcher) forward(ctx context.Context) {
	defer close(w.batches)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case events, ok := <-w.debouncer.Output():
			if !ok {
				return
			}
			if len(events) == 0 {
				continue
			}
			select {
			case w.batches <- events:
			default:
				w.dropped.Add(1)
				w.opts.Logger.Warn("watch_batch_dropped", slog.Int("events", len(events)))
			}
		}
	}
}

func (w *Watcher) addRecursive(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", root)
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped.
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.skip[d.Name()] {
			return filepath.SkipDir
		}
		return w.fs.Add(path)
	})
}

func (w *Watcher) emitError(err error) {
	select {
	case w.errors <- err:
	default:
		w.opts.Logger.Warn("watch_error", slog.String("error", err.Error()))
	}
}
