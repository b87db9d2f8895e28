package telemetry

import (
	"database/sql"
	"fmt"
	"time"
)

// SQLiteStore persists history in the index database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps db. The history tables must exist; see InitHistorySchema.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &SQLiteStore{db: db}, nil
}

// InitHistorySchema creates the history tables if they don't exist.
func InitHistorySchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS search_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		query TEXT NOT NULL,
		mode TEXT NOT NULL,
		result_count INTEGER NOT NULL DEFAULT 0,
		cache_hit INTEGER NOT NULL DEFAULT 0,
		latency_ns INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);

	-- Per-query frequency; first_seq orders ties by first occurrence
	CREATE TABLE IF NOT EXISTS search_query_counts (
		query TEXT PRIMARY KEY,
		count INTEGER NOT NULL DEFAULT 0,
		first_seq INTEGER NOT NULL
	);

	-- Single-row running totals
	CREATE TABLE IF NOT EXISTS search_totals (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		searches INTEGER NOT NULL DEFAULT 0,
		cache_hits INTEGER NOT NULL DEFAULT 0,
		latency_sum_ns INTEGER NOT NULL DEFAULT 0,
		min_latency_ns INTEGER NOT NULL DEFAULT 0,
		max_latency_ns INTEGER NOT NULL DEFAULT 0
	);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create history schema: %w", err)
	}
	return nil
}

// Record appends e and trims the history to keep rows.
func (s *SQLiteStore) Record(e Entry, keep int) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
		INSERT INTO search_history (query, mode, result_count, cache_hit, latency_ns, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.Query, e.Mode, e.ResultCount, boolToInt(e.CacheHit), int64(e.Latency), e.Timestamp.UnixNano()); err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}

	if keep > 0 {
		if _, err := tx.Exec(`
			DELETE FROM search_history
			WHERE id NOT IN (
				SELECT id FROM search_history
				ORDER BY id DESC
				LIMIT ?
			)
		`, keep); err != nil {
			return fmt.Errorf("trim history: %w", err)
		}
	}

	if _, err := tx.Exec(`
		INSERT INTO search_query_counts (query, count, first_seq)
		VALUES (?, 1, (SELECT COALESCE(MAX(first_seq), 0) + 1 FROM search_query_counts))
		ON CONFLICT(query) DO UPDATE SET count = count + 1
	`, e.Query); err != nil {
		return fmt.Errorf("upsert query count: %w", err)
	}

	latency := int64(e.Latency)
	if _, err := tx.Exec(`
		INSERT INTO search_totals (id, searches, cache_hits, latency_sum_ns, min_latency_ns, max_latency_ns)
		VALUES (1, 1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			searches = searches + 1,
			cache_hits = cache_hits + excluded.cache_hits,
			latency_sum_ns = latency_sum_ns + excluded.latency_sum_ns,
			min_latency_ns = MIN(min_latency_ns, excluded.min_latency_ns),
			max_latency_ns = MAX(max_latency_ns, excluded.max_latency_ns)
	`, boolToInt(e.CacheHit), latency, latency, latency); err != nil {
		return fmt.Errorf("update totals: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Load reads the newest historyLimit entries, all counts and the totals.
func (s *SQLiteStore) Load(historyLimit int) (*Snapshot, error) {
	snap := &Snapshot{}

	rows, err := s.db.Query(`
		SELECT query, mode, result_count, cache_hit, latency_ns, created_at
		FROM (
			SELECT * FROM search_history ORDER BY id DESC LIMIT ?
		)
		ORDER BY id ASC
	`, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e Entry
		var hit int
		var latency, created int64
		if err := rows.Scan(&e.Query, &e.Mode, &e.ResultCount, &hit, &latency, &created); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		e.CacheHit = hit != 0
		e.Latency = time.Duration(latency)
		e.Timestamp = time.Unix(0, created)
		snap.Entries = append(snap.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	countRows, err := s.db.Query(`SELECT query, count, first_seq FROM search_query_counts`)
	if err != nil {
		return nil, fmt.Errorf("query counts: %w", err)
	}
	defer countRows.Close()

	for countRows.Next() {
		var c CountRecord
		if err := countRows.Scan(&c.Query, &c.Count, &c.First); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		snap.Counts = append(snap.Counts, c)
	}
	if err := countRows.Err(); err != nil {
		return nil, err
	}

	var sum, minL, maxL int64
	err = s.db.QueryRow(`
		SELECT searches, cache_hits, latency_sum_ns, min_latency_ns, max_latency_ns
		FROM search_totals WHERE id = 1
	`).Scan(&snap.Totals.Searches, &snap.Totals.CacheHits, &sum, &minL, &maxL)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return nil, fmt.Errorf("query totals: %w", err)
	default:
		snap.Totals.LatencySum = time.Duration(sum)
		snap.Totals.MinLatency = time.Duration(minL)
		snap.Totals.MaxLatency = time.Duration(maxL)
	}

	return snap, nil
}

// Clear deletes all history rows.
func (s *SQLiteStore) Clear() error {
	_, err := s.db.Exec(`
		DELETE FROM search_history;
		DELETE FROM search_query_counts;
		DELETE FROM search_totals;
	`)
	if err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

// Close is a no-op: the database is shared with the index store.
func (s *SQLiteStore) Close() error {
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
