package store

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "cache.sqlite")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenCreatesSchema(t *testing.T) {
	s := openTestStore(t)

	tables := []string{"directory_cache", "work_queue", "search_sessions", "found_files"}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestOpenEmptyPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatalf("Open(\"\") expected error, got nil")
	}
}

func TestMigrateLegacySchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.sqlite")

	// Pre-seed a legacy searched_dirs table before the store ever opens it.
	pre, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := pre.db.Exec(`DROP TABLE directory_cache`); err != nil {
		t.Fatalf("drop directory_cache: %v", err)
	}
	if _, err := pre.db.Exec(`CREATE TABLE searched_dirs (path TEXT PRIMARY KEY, last_searched_at INTEGER)`); err != nil {
		t.Fatalf("create searched_dirs: %v", err)
	}
	if _, err := pre.db.Exec(`INSERT INTO searched_dirs (path, last_searched_at) VALUES ('/a', 100)`); err != nil {
		t.Fatalf("insert searched_dirs: %v", err)
	}
	pre.Close()

	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("reopen after legacy seed: %v", err)
	}
	defer s.Close()

	var completed int
	var lastSearched int64
	err = s.db.QueryRow("SELECT search_completed, last_searched_at FROM directory_cache WHERE path = '/a'").
		Scan(&completed, &lastSearched)
	if err != nil {
		t.Fatalf("row not migrated: %v", err)
	}
	if completed != 1 {
		t.Errorf("migrated row search_completed = %d, want 1", completed)
	}
	if lastSearched != 100 {
		t.Errorf("migrated row last_searched_at = %d, want 100", lastSearched)
	}

	var name string
	err = s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='searched_dirs'").Scan(&name)
	if err == nil {
		t.Errorf("legacy table still present after migration")
	}
}

func TestIntegritySelfRepair(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.sqlite")

	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO directory_cache (path, last_searched_at, search_completed, ds_store_found, ds_store_deleted)
		VALUES ('/bad', 1, 1, 0, 1)
	`)
	if err != nil {
		t.Fatalf("seed violating row: %v", err)
	}
	s.Close()

	s2, err := Open(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	var deleted int
	err = s2.db.QueryRow("SELECT ds_store_deleted FROM directory_cache WHERE path = '/bad'").Scan(&deleted)
	if err != nil {
		t.Fatalf("query row: %v", err)
	}
	if deleted != 0 {
		t.Errorf("ds_store_deleted = %d after self-repair, want 0", deleted)
	}
}

func TestFlushAndOptimize(t *testing.T) {
	s := openTestStore(t)
	if err := s.FlushPending(); err != nil {
		t.Errorf("FlushPending() error = %v", err)
	}
	if err := s.Optimize(); err != nil {
		t.Errorf("Optimize() error = %v", err)
	}
}

func TestClearAll(t *testing.T) {
	s := openTestStore(t)
	_, err := s.db.Exec(`INSERT INTO directory_cache (path, last_searched_at) VALUES ('/x', 1)`)
	if err != nil {
		t.Fatalf("seed row: %v", err)
	}
	if err := s.ClearAll(); err != nil {
		t.Fatalf("ClearAll() error = %v", err)
	}
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM directory_cache").Scan(&count); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 0 {
		t.Errorf("directory_cache count = %d after ClearAll, want 0", count)
	}
}
