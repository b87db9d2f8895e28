package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Backend names a Store implementation.
type Backend string

const (
	// BackendSQLite uses SQLite FTS5 (default). WAL mode allows readers in
	// other processes while one process writes.
	BackendSQLite Backend = "sqlite"

	// BackendBleve uses a Bleve index directory. Single process only.
	BackendBleve Backend = "bleve"
)

// Options configures Open.
type Options struct {
	Backend Backend
	SQLite  SQLiteOptions
}

// PathFor returns the on-disk location of an index with the given base path:
// <base>.db for SQLite, <base>.bleve for Bleve.
func PathFor(basePath string, backend Backend) string {
	if backend == BackendBleve {
		return basePath + ".bleve"
	}
	return basePath + ".db"
}

// Open opens the index at basePath with the configured backend. An empty
// basePath opens an in-memory store.
func Open(ctx context.Context, basePath string, opts Options) (Store, error) {
	backend := Backend(strings.ToLower(string(opts.Backend)))

	var path string
	if basePath != "" {
		path = PathFor(basePath, backend)
	}

	switch backend {
	case BackendSQLite, "":
		return NewSQLiteStore(ctx, path, opts.SQLite)
	case BackendBleve:
		return NewBleveStore(path)
	default:
		return nil, fmt.Errorf("unknown store backend: %s (valid options: sqlite, bleve)", opts.Backend)
	}
}

// Detect reports which backend an existing index at basePath uses, or ""
// when there is none.
func Detect(basePath string) Backend {
	if info, err := os.Stat(PathFor(basePath, BackendSQLite)); err == nil && !info.IsDir() {
		return BackendSQLite
	}
	if info, err := os.Stat(PathFor(basePath, BackendBleve)); err == nil && info.IsDir() {
		return BackendBleve
	}
	return ""
}

// SizeOnDisk returns the bytes used by the index at basePath, including the
// SQLite WAL or every file of a Bleve directory.
func SizeOnDisk(basePath string) int64 {
	var total int64
	for _, suffix := range []string{".db", ".db-wal", ".db-shm"} {
		if info, err := os.Stat(basePath + suffix); err == nil {
			total += info.Size()
		}
	}
	_ = filepath.WalkDir(basePath+".bleve", func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if info, infoErr := d.Info(); infoErr == nil && !d.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total
}

// Remove deletes every file of the index at basePath: the store for either
// backend, its WAL, lock files and the sibling search history database.
// Missing files are ignored.
func Remove(basePath string) error {
	var errs []error
	for _, suffix := range []string{
		".db", ".db-wal", ".db-shm", ".db.lock",
		".bleve.lock",
		".history.db", ".history.db-wal", ".history.db-shm",
	} {
		if err := os.Remove(basePath + suffix); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	if err := os.RemoveAll(basePath + ".bleve"); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
