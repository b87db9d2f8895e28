package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	docerrors "github.com/Aman-CERP/docindex/internal/errors"
)

// SQLiteOptions tunes a SQLite database handle.
type SQLiteOptions struct {
	// CacheMB is the page cache size. Zero uses 64MB.
	CacheMB int
}

// OpenDB opens a SQLite file with WAL and the connection settings every
// docindex database uses. An empty path opens an in-memory database.
// A file that fails the integrity check is removed and recreated.
func OpenDB(ctx context.Context, path string, opts SQLiteOptions) (*sql.DB, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
		if err := clearIfCorrupt(path); err != nil {
			return nil, err
		}
		dsn = path
	}

	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, docerrors.StoreError("failed to open database", err).WithDetail("path", path)
	}

	// Single writer connection; WAL lets other processes read.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	cacheMB := opts.CacheMB
	if cacheMB <= 0 {
		cacheMB = 64
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA cache_size = -%d", cacheMB*1024),
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, classifySQLiteError("failed to set pragma", err)
		}
	}

	return db, nil
}

// clearIfCorrupt removes a database file that fails PRAGMA integrity_check,
// together with its WAL and shared-memory files.
func clearIfCorrupt(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	checkErr := func() error {
		db, err := sql.Open(DriverName, path)
		if err != nil {
			return err
		}
		defer db.Close()

		var result string
		if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
			return err
		}
		if result != "ok" {
			return fmt.Errorf("integrity check: %s", result)
		}
		return nil
	}()
	if checkErr == nil {
		return nil
	}
	if isBusy(checkErr) {
		// Locked by another process, not corrupt.
		return nil
	}

	slog.Warn("sqlite_index_corrupted",
		slog.String("path", path),
		slog.String("error", checkErr.Error()))

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return docerrors.New(docerrors.ErrCodeCorruptIndex,
			fmt.Sprintf("index corrupted at %s and cannot be removed", path), err)
	}
	_ = os.Remove(path + "-wal")
	_ = os.Remove(path + "-shm")

	slog.Info("sqlite_index_cleared",
		slog.String("path", path),
		slog.String("reason", "corruption detected, rebuild required"))
	return nil
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "SQLITE_BUSY")
}

func classifySQLiteError(msg string, err error) error {
	if isBusy(err) {
		return docerrors.New(docerrors.ErrCodeStoreBusy, msg, err)
	}
	return docerrors.StoreError(msg, err)
}

// isFTSSyntaxError reports MATCH expressions SQLite could not parse.
func isFTSSyntaxError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "fts5:") ||
		strings.Contains(msg, "syntax error") ||
		strings.Contains(msg, "unterminated string") ||
		strings.Contains(msg, "no such column")
}

// SQLiteStore implements Store with SQLite FTS5, bm25() ranking and snippet().
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the index database at path and applies
// pending migrations. An empty path creates an in-memory store. Opening is
// retried while another process holds the write lock.
func NewSQLiteStore(ctx context.Context, path string, opts SQLiteOptions) (*SQLiteStore, error) {
	return docerrors.RetryWithResult(ctx, docerrors.DefaultRetryConfig(), func() (*SQLiteStore, error) {
		db, err := OpenDB(ctx, path, opts)
		if err != nil {
			return nil, err
		}
		if err := ApplyMigrations(ctx, db); err != nil {
			_ = db.Close()
			return nil, classifySQLiteError("failed to migrate schema", err)
		}
		return &SQLiteStore{db: db, path: path}, nil
	})
}

// DB exposes the handle so telemetry can share the index database.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Path returns the database file path ("" for in-memory).
func (s *SQLiteStore) Path() string {
	return s.path
}

const upsertSQL = `
INSERT INTO documents (path, name, size, file_type, content_hash, modified_at, indexed_at, status, content)
VALUES (?, ?, ?, ?, ?, ?, ?, 'active', ?)
ON CONFLICT(path) DO UPDATE SET
    name = excluded.name,
    size = excluded.size,
    file_type = excluded.file_type,
    content_hash = excluded.content_hash,
    modified_at = excluded.modified_at,
    indexed_at = excluded.indexed_at,
    status = 'active',
    content = excluded.content
RETURNING id`

// txStatements are the prepared statements one upsert needs.
type txStatements struct {
	upsert     *sql.Stmt
	clearMeta  *sql.Stmt
	insertMeta *sql.Stmt
}

func prepareUpsert(ctx context.Context, tx *sql.Tx) (*txStatements, error) {
	upsert, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare upsert: %w", err)
	}
	clearMeta, err := tx.PrepareContext(ctx, `DELETE FROM document_metadata WHERE document_id = ?`)
	if err != nil {
		_ = upsert.Close()
		return nil, fmt.Errorf("failed to prepare metadata delete: %w", err)
	}
	insertMeta, err := tx.PrepareContext(ctx, `INSERT INTO document_metadata (document_id, key, value) VALUES (?, ?, ?)`)
	if err != nil {
		_ = upsert.Close()
		_ = clearMeta.Close()
		return nil, fmt.Errorf("failed to prepare metadata insert: %w", err)
	}
	return &txStatements{upsert: upsert, clearMeta: clearMeta, insertMeta: insertMeta}, nil
}

func (st *txStatements) Close() {
	_ = st.upsert.Close()
	_ = st.clearMeta.Close()
	_ = st.insertMeta.Close()
}

func (st *txStatements) apply(ctx context.Context, rec *FileRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}

	name := rec.Name
	if name == "" {
		name = filepath.Base(rec.Path)
	}
	indexedAt := rec.IndexedAt
	if indexedAt.IsZero() {
		indexedAt = time.Now()
	}

	var id int64
	err := st.upsert.QueryRowContext(ctx,
		rec.Path, name, rec.Size, rec.FileType, rec.ContentHash,
		rec.ModTime.UnixNano(), indexedAt.UnixNano(), rec.Content,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("failed to upsert %s: %w", rec.Path, err)
	}

	if _, err := st.clearMeta.ExecContext(ctx, id); err != nil {
		return fmt.Errorf("failed to clear metadata for %s: %w", rec.Path, err)
	}
	for k, v := range rec.Metadata {
		if _, err := st.insertMeta.ExecContext(ctx, id, k, v); err != nil {
			return fmt.Errorf("failed to store metadata %s for %s: %w", k, rec.Path, err)
		}
	}

	rec.ID = id
	rec.Name = name
	rec.IndexedAt = indexedAt
	rec.Status = StatusActive
	return nil
}

// Upsert inserts or replaces one record.
func (s *SQLiteStore) Upsert(ctx context.Context, rec *FileRecord) error {
	_, err := s.BatchUpsert(ctx, []*FileRecord{rec})
	return err
}

// BatchUpsert applies recs in one transaction. Any failure rolls back all of them.
func (s *SQLiteStore) BatchUpsert(ctx context.Context, recs []*FileRecord) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, classifySQLiteError("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmts, err := prepareUpsert(ctx, tx)
	if err != nil {
		return 0, err
	}
	defer stmts.Close()

	for _, rec := range recs {
		if err := stmts.apply(ctx, rec); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, classifySQLiteError("failed to commit batch", err)
	}
	return len(recs), nil
}

// SoftDelete marks path deleted. Unknown paths are not an error.
func (s *SQLiteStore) SoftDelete(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = 'deleted' WHERE path = ? AND status != 'deleted'`, path)
	if err != nil {
		return classifySQLiteError("failed to soft delete "+path, err)
	}
	return nil
}

// whereFilters appends filter predicates to a query already joined on documents d.
func whereFilters(f Filters) (string, []any) {
	var sb strings.Builder
	var args []any

	if len(f.FileTypes) > 0 {
		sb.WriteString(" AND d.file_type IN (")
		for i, t := range f.FileTypes {
			if i > 0 {
				sb.WriteString(",")
			}
			sb.WriteString("?")
			args = append(args, strings.TrimPrefix(strings.ToLower(t), "."))
		}
		sb.WriteString(")")
	}
	if !f.ModifiedFrom.IsZero() {
		sb.WriteString(" AND d.modified_at >= ?")
		args = append(args, f.ModifiedFrom.UnixNano())
	}
	if !f.ModifiedTo.IsZero() {
		sb.WriteString(" AND d.modified_at <= ?")
		args = append(args, f.ModifiedTo.UnixNano())
	}
	if f.SizeMin > 0 {
		sb.WriteString(" AND d.size >= ?")
		args = append(args, f.SizeMin)
	}
	if f.SizeMax > 0 {
		sb.WriteString(" AND d.size <= ?")
		args = append(args, f.SizeMax)
	}
	if f.ActiveOnly {
		sb.WriteString(" AND d.status = 'active'")
	}

	return sb.String(), args
}

// Query runs q.Match against the FTS5 index. bm25() is negated so that a
// higher Score is a better match; ties are broken by path.
func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]*Hit, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, 0, ErrClosed
	}
	if strings.TrimSpace(q.Match) == "" {
		return []*Hit{}, 0, nil
	}

	filterSQL, filterArgs := whereFilters(q.Filters)
	args := append([]any{q.Match}, filterArgs...)

	var total int
	countSQL := `SELECT COUNT(*) FROM documents_fts JOIN documents d ON d.id = documents_fts.rowid
		WHERE documents_fts MATCH ?` + filterSQL
	if err := s.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		if isFTSSyntaxError(err) {
			return []*Hit{}, 0, nil
		}
		return nil, 0, classifySQLiteError("search failed", err)
	}
	if total == 0 || q.Offset >= total {
		return []*Hit{}, total, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = total
	}

	selectSQL := `SELECT d.id, d.path, d.name, d.size, d.modified_at, d.file_type, d.status,
			snippet(documents_fts, 0, '<mark>', '</mark>', '...', 64),
			bm25(documents_fts) AS score
		FROM documents_fts JOIN documents d ON d.id = documents_fts.rowid
		WHERE documents_fts MATCH ?` + filterSQL + `
		ORDER BY score, d.path
		LIMIT ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, selectSQL, append(args, limit, q.Offset)...)
	if err != nil {
		if isFTSSyntaxError(err) {
			return []*Hit{}, 0, nil
		}
		return nil, 0, classifySQLiteError("search failed", err)
	}
	defer rows.Close()

	hits := make([]*Hit, 0, limit)
	var ids []int64
	for rows.Next() {
		var h Hit
		var modified int64
		var status string
		var score float64
		if err := rows.Scan(&h.ID, &h.Path, &h.Name, &h.Size, &modified, &h.FileType, &status, &h.Snippet, &score); err != nil {
			return nil, 0, fmt.Errorf("failed to scan hit: %w", err)
		}
		h.ModTime = time.Unix(0, modified)
		h.Status = Status(status)
		h.Score = -score
		hits = append(hits, &h)
		ids = append(ids, h.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read hits: %w", err)
	}

	meta, err := s.metadataFor(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for _, h := range hits {
		h.Metadata = meta[h.ID]
	}

	return hits, total, nil
}

func (s *SQLiteStore) metadataFor(ctx context.Context, ids []int64) (map[int64]map[string]string, error) {
	result := make(map[int64]map[string]string, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT document_id, key, value FROM document_metadata WHERE document_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, classifySQLiteError("failed to load metadata", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var k, v string
		if err := rows.Scan(&id, &k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}
		if result[id] == nil {
			result[id] = make(map[string]string)
		}
		result[id][k] = v
	}
	return result, rows.Err()
}

// KnownPaths returns every active record keyed by path.
func (s *SQLiteStore) KnownPaths(ctx context.Context) (map[string]KnownFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT path, content_hash, size, modified_at FROM documents WHERE status = 'active'`)
	if err != nil {
		return nil, classifySQLiteError("failed to list known paths", err)
	}
	defer rows.Close()

	known := make(map[string]KnownFile)
	for rows.Next() {
		var path string
		var kf KnownFile
		var modified int64
		if err := rows.Scan(&path, &kf.ContentHash, &kf.Size, &modified); err != nil {
			return nil, fmt.Errorf("failed to scan known path: %w", err)
		}
		kf.ModTime = time.Unix(0, modified)
		known[path] = kf
	}
	return known, rows.Err()
}

// Get returns the full record for path, or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, path string) (*FileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	var rec FileRecord
	var modified, indexed int64
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, path, name, size, file_type, content_hash, modified_at, indexed_at, status, content
		FROM documents WHERE path = ?`, path,
	).Scan(&rec.ID, &rec.Path, &rec.Name, &rec.Size, &rec.FileType, &rec.ContentHash,
		&modified, &indexed, &status, &rec.Content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, classifySQLiteError("failed to get "+path, err)
	}
	rec.ModTime = time.Unix(0, modified)
	rec.IndexedAt = time.Unix(0, indexed)
	rec.Status = Status(status)

	meta, err := s.metadataFor(ctx, []int64{rec.ID})
	if err != nil {
		return nil, err
	}
	rec.Metadata = meta[rec.ID]

	return &rec, nil
}

// FileNames returns the base names of all records, deleted ones included.
func (s *SQLiteStore) FileNames(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT name FROM documents ORDER BY name`)
	if err != nil {
		return nil, classifySQLiteError("failed to list file names", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Stats counts records by status and type.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	stats := &Stats{ByType: make(map[string]int)}
	rows, err := s.db.QueryContext(ctx,
		`SELECT file_type, status, COUNT(*), COALESCE(SUM(size), 0) FROM documents GROUP BY file_type, status`)
	if err != nil {
		return nil, classifySQLiteError("failed to compute stats", err)
	}
	defer rows.Close()

	for rows.Next() {
		var fileType, status string
		var count int
		var size int64
		if err := rows.Scan(&fileType, &status, &count, &size); err != nil {
			return nil, fmt.Errorf("failed to scan stats: %w", err)
		}
		stats.Total += count
		stats.TotalSize += size
		stats.ByType[fileType] += count
		if Status(status) == StatusDeleted {
			stats.Deleted += count
		} else {
			stats.Active += count
		}
	}
	return stats, rows.Err()
}

const rootsKey = "roots"

// SetRoots stores the root directories as a JSON array.
func (s *SQLiteStore) SetRoots(ctx context.Context, roots []string) error {
	data, err := json.Marshal(roots)
	if err != nil {
		return fmt.Errorf("failed to encode roots: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO index_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, rootsKey, string(data))
	if err != nil {
		return classifySQLiteError("failed to store roots", err)
	}
	return nil
}

// Roots returns the stored root directories, or nil for a new index.
func (s *SQLiteStore) Roots(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	var data string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM index_meta WHERE key = ?`, rootsKey).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classifySQLiteError("failed to read roots", err)
	}

	var roots []string
	if err := json.Unmarshal([]byte(data), &roots); err != nil {
		return nil, fmt.Errorf("failed to decode roots: %w", err)
	}
	return roots, nil
}

// Close checkpoints the WAL and closes the database. Safe to call twice.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}
