// Package queue implements the session-scoped persistent work queue:
// directories pending traversal, peeked in priority-then-FIFO order and
// removed by id once classified.
package queue

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hazyhaar/dsscan/internal/store"
)

// Item is one pending directory.
type Item struct {
	ID           int64
	Path         string
	DiscoveredAt int64
	Priority     int
	SessionID    string
}

// Queue wraps the store's work_queue table.
type Queue struct {
	db *sql.DB
}

func Open(s *store.Store) *Queue {
	return &Queue{db: s.DB()}
}

// Enqueue inserts path for session at priority, ignoring the insert if
// the (path, session) pair is already queued.
func (q *Queue) Enqueue(sessionID, path string, priority int) error {
	_, err := q.db.Exec(`
		INSERT OR IGNORE INTO work_queue (path, discovered_at, priority, session_id)
		VALUES (?, ?, ?, ?)
	`, path, time.Now().Unix(), priority, sessionID)
	return err
}

const enqueueBatchSize = 1000

// EnqueueBatch is the transactional variant of Enqueue for many paths at
// once, chunked to bound transaction size.
func (q *Queue) EnqueueBatch(sessionID string, paths []string, priority int) error {
	now := time.Now().Unix()
	for start := 0; start < len(paths); start += enqueueBatchSize {
		end := start + enqueueBatchSize
		if end > len(paths) {
			end = len(paths)
		}
		if err := q.enqueueChunk(sessionID, paths[start:end], priority, now); err != nil {
			return err
		}
	}
	return nil
}

func (q *Queue) enqueueChunk(sessionID string, paths []string, priority int, now int64) error {
	tx, err := q.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO work_queue (path, discovered_at, priority, session_id)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, path := range paths {
		if _, err := stmt.Exec(path, now, priority, sessionID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// PeekBatch returns up to n queued items ordered by priority descending,
// id ascending. Does not remove rows.
func (q *Queue) PeekBatch(sessionID string, n int) ([]Item, error) {
	rows, err := q.db.Query(`
		SELECT id, path, discovered_at, priority, session_id FROM work_queue
		WHERE session_id = ?
		ORDER BY priority DESC, id ASC
		LIMIT ?
	`, sessionID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.Path, &it.DiscoveredAt, &it.Priority, &it.SessionID); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

const removeBatchSize = 500

// RemoveByID batch-deletes rows keyed by primary id.
func (q *Queue) RemoveByID(ids []int64) error {
	for start := 0; start < len(ids); start += removeBatchSize {
		end := start + removeBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		if err := q.removeChunk(ids[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (q *Queue) removeChunk(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf("DELETE FROM work_queue WHERE id IN (%s)", strings.Join(placeholders, ","))
	_, err := q.db.Exec(query, args...)
	return err
}

// Count returns the number of queued items for session.
func (q *Queue) Count(sessionID string) (int64, error) {
	var n int64
	err := q.db.QueryRow(`SELECT COUNT(*) FROM work_queue WHERE session_id = ?`, sessionID).Scan(&n)
	return n, err
}

// RemoveSession deletes all queued items for a session. Used by
// session.Complete and session cleanup.
func (q *Queue) RemoveSession(sessionID string) error {
	_, err := q.db.Exec(`DELETE FROM work_queue WHERE session_id = ?`, sessionID)
	return err
}
