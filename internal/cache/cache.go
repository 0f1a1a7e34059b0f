// Package cache implements the freshness-windowed directory cache: a
// durable table of per-directory scan outcomes plus an in-memory hot set
// of paths proven fresh+complete, consulted to avoid a database round
// trip on the scheduler's hot path.
package cache

import (
	"database/sql"
	"sync"
	"time"

	"github.com/hazyhaar/dsscan/internal/store"
)

// Status classifies a directory against the cache.
type Status int

const (
	NotCached Status = iota
	Incomplete
	Stale
	Fresh
)

func (s Status) String() string {
	switch s {
	case NotCached:
		return "not-cached"
	case Incomplete:
		return "incomplete"
	case Stale:
		return "stale"
	case Fresh:
		return "fresh"
	default:
		return "unknown"
	}
}

// State is one directory's completed-scan outcome, as produced by a
// probe and folded back via MarkCompletedBatch.
type State struct {
	Path         string
	MatchFound   bool
	MatchDeleted bool
	Error        string
}

// Stats is the aggregated cache summary used by the cache-stats CLI
// command, computed in a single query matching the original
// implementation's get_cache_stats.
type Stats struct {
	Total       int64
	Completed   int64
	WithMatch   int64
	Deleted     int64
	Errors      int64
}

// Cache wraps the store's directory_cache table with freshness-window
// semantics and the in-memory hot set.
type Cache struct {
	db           *sql.DB
	windowHours  int64
	forceRefresh bool

	mu     sync.RWMutex
	hotSet map[string]struct{}
}

// Open loads the hot set (unless forceRefresh is set) and returns a
// ready-to-use Cache.
func Open(s *store.Store, windowHours int64, forceRefresh bool) (*Cache, error) {
	c := &Cache{
		db:           s.DB(),
		windowHours:  windowHours,
		forceRefresh: forceRefresh,
		hotSet:       make(map[string]struct{}),
	}
	if forceRefresh {
		return c, nil
	}
	if err := c.loadHotSet(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Cache) cutoff() int64 {
	return clampedCutoff(time.Now().Unix(), c.windowHoursValue())
}

// SetWindowHours retargets the freshness window of a live Cache, for a
// config-file edit picked up mid-run by config.WatchFile without
// restarting the scan.
func (c *Cache) SetWindowHours(hours int64) {
	c.mu.Lock()
	c.windowHours = hours
	c.mu.Unlock()
}

func (c *Cache) windowHoursValue() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.windowHours
}

// clampedCutoff computes now - hours*3600, saturating rather than
// wrapping on overflow, per spec's "timestamp overflow is clamped."
func clampedCutoff(now, hours int64) int64 {
	const secondsPerHour = 3600
	window := hours * secondsPerHour
	if hours > 0 && window/hours != secondsPerHour {
		// overflow: clamp to the oldest representable instant
		return 0
	}
	if window > now {
		return 0
	}
	return now - window
}

func (c *Cache) loadHotSet() error {
	rows, err := c.db.Query(`
		SELECT path FROM directory_cache
		WHERE search_completed = 1 AND last_searched_at > ?
	`, c.cutoff())
	if err != nil {
		return err
	}
	defer rows.Close()

	c.mu.Lock()
	defer c.mu.Unlock()
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return err
		}
		c.hotSet[path] = struct{}{}
	}
	return rows.Err()
}

// Status returns the classification of path. Always NotCached in
// force-refresh mode.
func (c *Cache) Status(path string) (Status, error) {
	if c.forceRefresh {
		return NotCached, nil
	}
	if c.ShouldSkip(path) {
		return Fresh, nil
	}

	var lastSearched int64
	var completed int
	err := c.db.QueryRow(`
		SELECT last_searched_at, search_completed FROM directory_cache WHERE path = ?
	`, path).Scan(&lastSearched, &completed)
	if err == sql.ErrNoRows {
		return NotCached, nil
	}
	if err != nil {
		return NotCached, err
	}
	if completed == 0 {
		return Incomplete, nil
	}
	if lastSearched <= c.cutoff() {
		return Stale, nil
	}
	return Fresh, nil
}

// ShouldSkip is the O(1) hot-set membership check used on the
// scheduler's hot path before any database round trip.
func (c *Cache) ShouldSkip(path string) bool {
	if c.forceRefresh {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.hotSet[path]
	return ok
}

// MarkSearching upserts path with search_completed=false and the current
// timestamp, and removes it from the hot set.
func (c *Cache) MarkSearching(path string) error {
	_, err := c.db.Exec(`
		INSERT INTO directory_cache (path, last_searched_at, search_completed)
		VALUES (?, ?, 0)
		ON CONFLICT(path) DO UPDATE SET
			last_searched_at = excluded.last_searched_at,
			search_completed = 0
	`, path, time.Now().Unix())
	if err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.hotSet, path)
	c.mu.Unlock()
	return nil
}

// MarkIncompleteError upserts path with search_completed=false and the
// error string — the transient per-directory failure path (read-dir
// failed mid-iteration), so a later session retries it. Removes the
// path from the hot set.
func (c *Cache) MarkIncompleteError(path, message string) error {
	_, err := c.db.Exec(`
		INSERT INTO directory_cache (path, last_searched_at, search_completed, error_message)
		VALUES (?, ?, 0, ?)
		ON CONFLICT(path) DO UPDATE SET
			last_searched_at = excluded.last_searched_at,
			search_completed = 0,
			error_message = excluded.error_message
	`, path, time.Now().Unix(), message)
	if err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.hotSet, path)
	c.mu.Unlock()
	return nil
}

// MarkError upserts path with search_completed=true and the error
// string. Does not insert into the hot set.
func (c *Cache) MarkError(path, message string) error {
	_, err := c.db.Exec(`
		INSERT INTO directory_cache (path, last_searched_at, search_completed, error_message)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(path) DO UPDATE SET
			last_searched_at = excluded.last_searched_at,
			search_completed = 1,
			error_message = excluded.error_message
	`, path, time.Now().Unix(), message)
	return err
}

const markCompletedBatchSize = 1000

// MarkCompletedBatch upserts states in bounded transactions. dryRun
// forces match_deleted=false irrespective of the input states. Paths
// whose row flips to completed=true are inserted into the hot set.
func (c *Cache) MarkCompletedBatch(states []State, dryRun bool) error {
	now := time.Now().Unix()
	for start := 0; start < len(states); start += markCompletedBatchSize {
		end := start + markCompletedBatchSize
		if end > len(states) {
			end = len(states)
		}
		if err := c.markCompletedChunk(states[start:end], dryRun, now); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cache) markCompletedChunk(states []State, dryRun bool, now int64) error {
	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO directory_cache (path, last_searched_at, search_completed, ds_store_found, ds_store_deleted, error_message)
		VALUES (?, ?, 1, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			last_searched_at = excluded.last_searched_at,
			search_completed = 1,
			ds_store_found = excluded.ds_store_found,
			ds_store_deleted = excluded.ds_store_deleted,
			error_message = excluded.error_message
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, st := range states {
		matchDeleted := st.MatchDeleted && !dryRun
		var errMsg interface{}
		if st.Error != "" {
			errMsg = st.Error
		}
		if _, err := stmt.Exec(st.Path, now, st.MatchFound, matchDeleted, errMsg); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	c.mu.Lock()
	for _, st := range states {
		c.hotSet[st.Path] = struct{}{}
	}
	c.mu.Unlock()
	return nil
}

// Sweep deletes directory_cache rows older than 2x the freshness window
// in bounded batches until no rows are affected.
func (c *Cache) Sweep() (int64, error) {
	cutoff := clampedCutoff(time.Now().Unix(), c.windowHoursValue()*2)
	var total int64
	for {
		res, err := c.db.Exec(`
			DELETE FROM directory_cache WHERE rowid IN (
				SELECT rowid FROM directory_cache WHERE last_searched_at < ? LIMIT 10000
			)
		`, cutoff)
		if err != nil {
			return total, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, err
		}
		total += n
		if n == 0 {
			break
		}
	}
	if total > 0 {
		if _, err := c.db.Exec("PRAGMA optimize"); err != nil {
			return total, err
		}
	}
	return total, nil
}

// ClearIncomplete deletes all search_completed=false rows and returns
// the count removed.
func (c *Cache) ClearIncomplete() (int64, error) {
	res, err := c.db.Exec(`DELETE FROM directory_cache WHERE search_completed = 0`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// GetStats computes the aggregated cache summary in a single query.
func (c *Cache) GetStats() (Stats, error) {
	var s Stats
	err := c.db.QueryRow(`
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN search_completed THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN ds_store_found THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN ds_store_deleted THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN error_message IS NOT NULL THEN 1 ELSE 0 END), 0)
		FROM directory_cache
	`).Scan(&s.Total, &s.Completed, &s.WithMatch, &s.Deleted, &s.Errors)
	return s, err
}
