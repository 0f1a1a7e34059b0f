// Package store owns the embedded SQLite database that backs a dsscan
// run: the directory cache, work queue, session registry and found-file
// log all live in the same file and share one connection pool.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store wraps the single-writer embedded database.
type Store struct {
	db *sql.DB
}

// Open creates (or reuses) the database at dbPath, configures it per the
// mandatory pragmas, migrates any legacy schema, initialises the current
// schema, and runs the startup integrity check.
func Open(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("store: database path is empty")
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create database directory: %w", err)
		}
	}

	dsn := dbPath + "?_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=busy_timeout(10000)" +
		"&_pragma=cache_size(-64000)" +
		"&_pragma=temp_store(MEMORY)" +
		"&_pragma=mmap_size(268435456)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	// The sqlite driver serialises writes internally; a small pool is
	// still useful for concurrent reads from the scheduler's peeks.
	db.SetMaxOpenConns(5)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping database: %w", err)
	}

	s := &Store{db: db}

	if err := s.migrateLegacySchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate legacy schema: %w", err)
	}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: init schema: %w", err)
	}
	if err := s.checkIntegrity(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: integrity check: %w", err)
	}

	return s, nil
}

// DB returns the underlying connection pool for components that need to
// run their own statements (cache, queue, session, found).
func (s *Store) DB() *sql.DB {
	return s.db
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS directory_cache (
	path TEXT PRIMARY KEY,
	last_searched_at INTEGER NOT NULL,
	search_completed INTEGER NOT NULL DEFAULT 0,
	ds_store_found INTEGER NOT NULL DEFAULT 0,
	ds_store_deleted INTEGER NOT NULL DEFAULT 0,
	error_message TEXT
);

CREATE INDEX IF NOT EXISTS idx_dir_cache_last_searched
	ON directory_cache(last_searched_at);

CREATE INDEX IF NOT EXISTS idx_dir_cache_incomplete
	ON directory_cache(search_completed) WHERE NOT search_completed;

CREATE INDEX IF NOT EXISTS idx_dir_cache_fresh
	ON directory_cache(last_searched_at, search_completed) WHERE search_completed;

CREATE TABLE IF NOT EXISTS work_queue (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	path TEXT NOT NULL,
	discovered_at INTEGER NOT NULL,
	priority INTEGER NOT NULL DEFAULT 0,
	session_id TEXT NOT NULL,
	UNIQUE(path, session_id)
);

CREATE INDEX IF NOT EXISTS idx_work_queue_session_priority
	ON work_queue(session_id, priority DESC, id ASC);

CREATE INDEX IF NOT EXISTS idx_work_queue_path
	ON work_queue(path);

CREATE TABLE IF NOT EXISTS search_sessions (
	session_id TEXT PRIMARY KEY,
	root_path TEXT NOT NULL,
	started_at INTEGER NOT NULL,
	completed_at INTEGER,
	is_recursive INTEGER NOT NULL,
	is_dry_run INTEGER NOT NULL,
	status TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_status_started
	ON search_sessions(status, started_at);

CREATE TABLE IF NOT EXISTS found_files (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	file_path TEXT NOT NULL,
	discovered_at INTEGER NOT NULL,
	UNIQUE(session_id, file_path)
);

CREATE INDEX IF NOT EXISTS idx_found_files_session
	ON found_files(session_id);
`

func (s *Store) initSchema() error {
	_, err := s.db.Exec(schemaSQL)
	return err
}

// migrateLegacySchema detects a pre-dsscan `searched_dirs(path,
// last_searched_at)` table and folds it forward into directory_cache
// with search_completed=true, then drops it. Runs before initSchema so
// the migration sees the legacy table in isolation.
func (s *Store) migrateLegacySchema() error {
	var name string
	err := s.db.QueryRow(`
		SELECT name FROM sqlite_master WHERE type='table' AND name='searched_dirs'
	`).Scan(&name)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(schemaSQL); err != nil {
		return err
	}
	_, err = tx.Exec(`
		INSERT OR IGNORE INTO directory_cache (path, last_searched_at, search_completed)
		SELECT path, last_searched_at, 1 FROM searched_dirs
	`)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`DROP TABLE searched_dirs`); err != nil {
		return err
	}
	return tx.Commit()
}

// checkIntegrity runs PRAGMA integrity_check and the match_deleted
// self-repair query. On integrity failure, it wipes all core tables and
// returns nil so the caller proceeds with an empty cache.
func (s *Store) checkIntegrity() error {
	var result string
	if err := s.db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return err
	}
	if result != "ok" {
		if err := s.ClearAll(); err != nil {
			return fmt.Errorf("wipe after failed integrity check: %w", err)
		}
	}

	_, err := s.db.Exec(`
		UPDATE directory_cache SET ds_store_deleted = 0
		WHERE ds_store_deleted = 1 AND ds_store_found = 0
	`)
	return err
}

// ClearAll removes all rows from the four core tables. Used on integrity
// failure.
func (s *Store) ClearAll() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"directory_cache", "work_queue", "search_sessions", "found_files"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// FlushPending issues a passive WAL checkpoint; safe to call often. The
// scheduler's checkpoint tick does not call it.
func (s *Store) FlushPending() error {
	_, err := s.db.Exec("PRAGMA wal_checkpoint(PASSIVE)")
	return err
}

// Optimize issues a truncating checkpoint, ANALYZE, and PRAGMA optimize.
// Meant for explicit, infrequent invocation (not the periodic checkpoint
// tick).
func (s *Store) Optimize() error {
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return err
	}
	if _, err := s.db.Exec("ANALYZE directory_cache"); err != nil {
		return err
	}
	_, err := s.db.Exec("PRAGMA optimize")
	return err
}

// Close checkpoints the WAL and closes the underlying connection pool.
func (s *Store) Close() error {
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}
