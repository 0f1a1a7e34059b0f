// Package found implements the append-only, per-session found-match log.
package found

import (
	"database/sql"
	"time"

	"github.com/hazyhaar/dsscan/internal/store"
)

// Log wraps the store's found_files table.
type Log struct {
	db *sql.DB
}

func Open(s *store.Store) *Log {
	return &Log{db: s.DB()}
}

// AppendBatch inserts paths for session, ignoring duplicates keyed by
// (session, path).
func (l *Log) AppendBatch(sessionID string, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	tx, err := l.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO found_files (session_id, file_path, discovered_at)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, path := range paths {
		if _, err := stmt.Exec(sessionID, path, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Load returns all matches for session in discovery order.
func (l *Log) Load(sessionID string) ([]string, error) {
	rows, err := l.db.Query(`
		SELECT file_path FROM found_files WHERE session_id = ? ORDER BY discovered_at ASC, id ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, rows.Err()
}

// UndeletedMatches returns the directories that hold previously-discovered,
// undeleted matches for root (the caller joins the sentinel name onto
// each), scoped recursively (path prefix) or to the exact root, sourced
// directly from the directory cache rather than any one session's log —
// this is how a match survives even if the process was killed between
// discovery and the external deletion step.
func (l *Log) UndeletedMatches(root string, recursive bool) ([]string, error) {
	var rows *sql.Rows
	var err error
	if recursive {
		rows, err = l.db.Query(`
			SELECT path FROM directory_cache
			WHERE ds_store_found = 1 AND ds_store_deleted = 0 AND search_completed = 1
			AND (path = ? OR path LIKE ?)
		`, root, root+"%")
	} else {
		rows, err = l.db.Query(`
			SELECT path FROM directory_cache
			WHERE ds_store_found = 1 AND ds_store_deleted = 0 AND search_completed = 1
			AND path = ?
		`, root)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dirs []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, err
		}
		dirs = append(dirs, path)
	}
	return dirs, rows.Err()
}
