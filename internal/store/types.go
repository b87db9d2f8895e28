// Package store persists file records and answers full-text queries over them.
//
// Two backends implement Store: SQLite FTS5 (default) and Bleve. Both keep
// content for soft-deleted records so that it stays searchable after the
// source file is gone.
package store

//go:generate mockgen -source=types.go -destination=../mocks/mock_store.go -package=mocks

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Status is the lifecycle state of a FileRecord.
type Status string

const (
	// StatusActive marks a record whose source file was present at the last pass.
	StatusActive Status = "active"
	// StatusDeleted marks a record whose source file disappeared. Content is kept.
	StatusDeleted Status = "deleted"
)

// FileRecord is one indexed file.
type FileRecord struct {
	ID          int64
	Path        string
	Name        string
	Size        int64
	ModTime     time.Time
	ContentHash string
	FileType    string
	Status      Status
	IndexedAt   time.Time
	Content     string
	Metadata    map[string]string
}

// NewFileRecord fills the name and file type derived from path.
func NewFileRecord(path string) *FileRecord {
	return &FileRecord{
		Path:     path,
		Name:     filepath.Base(path),
		FileType: FileType(path),
		Status:   StatusActive,
	}
}

// FileType returns the lower-case extension of path without the dot.
func FileType(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

// KnownFile is the classification view of a stored record.
type KnownFile struct {
	ContentHash string
	Size        int64
	ModTime     time.Time
}

// Filters restrict a query. Zero values mean "no restriction".
type Filters struct {
	// FileTypes are lower-case extensions without the dot.
	FileTypes    []string
	ModifiedFrom time.Time
	ModifiedTo   time.Time
	SizeMin      int64
	// SizeMax of zero means unbounded.
	SizeMax    int64
	ActiveOnly bool
}

// Query is a backend-ready full-text query.
type Query struct {
	// Match is the FTS5 MATCH expression.
	Match string
	// Terms are the normalized tokens, used by backends without FTS5 grammar.
	Terms []string
	// Phrase is true when Terms must match as one contiguous phrase.
	Phrase bool

	Filters Filters
	Limit   int
	Offset  int
}

// Hit is one query match, ordered by descending Score.
type Hit struct {
	ID       int64
	Path     string
	Name     string
	Size     int64
	ModTime  time.Time
	FileType string
	Status   Status
	// Snippet is an excerpt with MarkOpen and MarkClose around matched terms.
	Snippet  string
	Score    float64
	Metadata map[string]string
}

// Snippet highlight tags, shared by every backend.
const (
	MarkOpen  = "<mark>"
	MarkClose = "</mark>"
)

// Stats summarizes an index.
type Stats struct {
	Total     int
	Active    int
	Deleted   int
	TotalSize int64
	ByType    map[string]int
}

// Store is the persistent full-text collection behind an index.
type Store interface {
	// Upsert inserts or replaces one record by path and marks it active.
	Upsert(ctx context.Context, rec *FileRecord) error
	// BatchUpsert applies all records atomically or none of them.
	BatchUpsert(ctx context.Context, recs []*FileRecord) (int, error)
	// SoftDelete marks the record deleted and keeps its content.
	SoftDelete(ctx context.Context, path string) error

	Query(ctx context.Context, q Query) ([]*Hit, int, error)

	// KnownPaths returns the active records keyed by path.
	KnownPaths(ctx context.Context) (map[string]KnownFile, error)
	Get(ctx context.Context, path string) (*FileRecord, error)
	// FileNames returns the base names of all records.
	FileNames(ctx context.Context) ([]string, error)
	Stats(ctx context.Context) (*Stats, error)

	// SetRoots records the directories an index was built from.
	SetRoots(ctx context.Context, roots []string) error
	Roots(ctx context.Context) ([]string, error)

	Close() error
}

var (
	// ErrNotFound is returned by Get for unknown paths.
	ErrNotFound = errors.New("record not found")
	// ErrInvalidRecord is returned for records that cannot be stored.
	ErrInvalidRecord = errors.New("invalid record")
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("store is closed")
)

func validateRecord(rec *FileRecord) error {
	if rec == nil {
		return fmt.Errorf("%w: nil", ErrInvalidRecord)
	}
	if rec.Path == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidRecord)
	}
	if rec.ContentHash == "" {
		return fmt.Errorf("%w: missing content hash for %s", ErrInvalidRecord, rec.Path)
	}
	return nil
}
