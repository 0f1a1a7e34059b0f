// Package session implements the scan session registry: the lifecycle
// of one scan invocation, keyed by a version-4 UUID and scoped by
// (root, recursive, dry-run).
package session

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/hazyhaar/dsscan/internal/queue"
	"github.com/hazyhaar/dsscan/internal/store"
)

// Status is a session's lifecycle state.
type Status string

const (
	StatusActive      Status = "active"
	StatusCompleted   Status = "completed"
	StatusInterrupted Status = "interrupted"
	StatusFailed      Status = "failed"
)

// Session is one scan invocation.
type Session struct {
	ID          string
	RootPath    string
	StartedAt   int64
	CompletedAt sql.NullInt64
	Recursive   bool
	DryRun      bool
	Status      Status
}

// Registry wraps search_sessions and coordinates with the work queue
// for cleanup.
type Registry struct {
	db          *sql.DB
	q           *queue.Queue
	windowHours int64
}

func Open(s *store.Store, q *queue.Queue, windowHours int64) *Registry {
	return &Registry{db: s.DB(), q: q, windowHours: windowHours}
}

func cutoff(windowHours int64) int64 {
	now := time.Now().Unix()
	window := windowHours * 3600
	if window > now {
		return 0
	}
	return now - window
}

// Start allocates a new session, garbage-collects stale non-completed
// sessions, inserts an active row, and enqueues root at priority 0.
func (r *Registry) Start(root string, recursive, dryRun bool) (*Session, error) {
	if err := r.cleanupStaleSessions(); err != nil {
		return nil, err
	}

	sess := &Session{
		ID:        uuid.New().String(),
		RootPath:  root,
		StartedAt: time.Now().Unix(),
		Recursive: recursive,
		DryRun:    dryRun,
		Status:    StatusActive,
	}
	_, err := r.db.Exec(`
		INSERT INTO search_sessions (session_id, root_path, started_at, is_recursive, is_dry_run, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`, sess.ID, sess.RootPath, sess.StartedAt, sess.Recursive, sess.DryRun, string(sess.Status))
	if err != nil {
		return nil, err
	}
	if err := r.q.Enqueue(sess.ID, root, 0); err != nil {
		return nil, err
	}
	return sess, nil
}

// Complete marks a session completed and clears its work queue.
func (r *Registry) Complete(sessionID string) error {
	_, err := r.db.Exec(`
		UPDATE search_sessions SET completed_at = ?, status = ? WHERE session_id = ?
	`, time.Now().Unix(), string(StatusCompleted), sessionID)
	if err != nil {
		return err
	}
	return r.q.RemoveSession(sessionID)
}

// Interrupt flips status to interrupted without clearing the queue or
// found-match log, so a later Resume can pick the session back up.
func (r *Registry) Interrupt(sessionID string) error {
	_, err := r.db.Exec(`
		UPDATE search_sessions SET status = ? WHERE session_id = ?
	`, string(StatusInterrupted), sessionID)
	return err
}

// Fail marks a session failed; its ancillary rows are left in place.
// Resume never picks up a failed session; like any non-completed
// session, it is removed by the startup GC in Start once its started_at
// is older than the freshness window.
func (r *Registry) Fail(sessionID string) error {
	_, err := r.db.Exec(`
		UPDATE search_sessions SET status = ? WHERE session_id = ?
	`, string(StatusFailed), sessionID)
	return err
}

// Resume finds the most recent interrupted session matching (root,
// recursive, dryRun). If it has pending work or logged matches, flips
// it back to active and returns it; otherwise cleans up its ancillary
// rows and returns (nil, nil) — "nothing to resume."
func (r *Registry) Resume(root string, recursive, dryRun bool) (*Session, error) {
	var sess Session
	var completedAt sql.NullInt64
	err := r.db.QueryRow(`
		SELECT session_id, root_path, started_at, completed_at, is_recursive, is_dry_run, status
		FROM search_sessions
		WHERE root_path = ? AND is_recursive = ? AND is_dry_run = ? AND status = ?
		ORDER BY started_at DESC LIMIT 1
	`, root, recursive, dryRun, string(StatusInterrupted)).
		Scan(&sess.ID, &sess.RootPath, &sess.StartedAt, &completedAt, &sess.Recursive, &sess.DryRun, &sess.Status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sess.CompletedAt = completedAt

	workCount, err := r.q.Count(sess.ID)
	if err != nil {
		return nil, err
	}
	var foundCount int64
	err = r.db.QueryRow(`SELECT COUNT(*) FROM found_files WHERE session_id = ?`, sess.ID).Scan(&foundCount)
	if err != nil {
		return nil, err
	}

	if workCount == 0 && foundCount == 0 {
		if err := r.cleanupSession(sess.ID); err != nil {
			return nil, err
		}
		return nil, nil
	}

	_, err = r.db.Exec(`UPDATE search_sessions SET status = ? WHERE session_id = ?`, string(StatusActive), sess.ID)
	if err != nil {
		return nil, err
	}
	sess.Status = StatusActive
	return &sess, nil
}

// SearchedCount returns the number of completed directory_cache rows
// searched within session's started_at..completed_at (or now) timeframe — used
// by the scheduler to credit skipped_cached on a resume with an empty
// queue.
func (r *Registry) SearchedCount(sess *Session) (int64, error) {
	end := time.Now().Unix()
	if sess.CompletedAt.Valid {
		end = sess.CompletedAt.Int64
	}
	var n int64
	err := r.db.QueryRow(`
		SELECT COUNT(*) FROM directory_cache
		WHERE last_searched_at >= ? AND last_searched_at <= ? AND search_completed = 1
	`, sess.StartedAt, end).Scan(&n)
	return n, err
}

// cleanupStaleSessions finds non-completed sessions older than the
// freshness window and tears down their ancillary rows — this is the
// startup GC that also resolves the crash-between-flush-and-decision
// open question: an 'active' session with started_at older than the
// window is stale regardless of why it never transitioned.
func (r *Registry) cleanupStaleSessions() error {
	rows, err := r.db.Query(`
		SELECT session_id FROM search_sessions
		WHERE started_at < ? AND status != ?
	`, cutoff(r.windowHours), string(StatusCompleted))
	if err != nil {
		return err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()

	for _, id := range ids {
		if err := r.cleanupSession(id); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) cleanupSession(sessionID string) error {
	if err := r.q.RemoveSession(sessionID); err != nil {
		return err
	}
	if _, err := r.db.Exec(`DELETE FROM found_files WHERE session_id = ?`, sessionID); err != nil {
		return err
	}
	_, err := r.db.Exec(`DELETE FROM search_sessions WHERE session_id = ?`, sessionID)
	return err
}
