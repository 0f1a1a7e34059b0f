package found

import (
	"path/filepath"
	"testing"

	"github.com/hazyhaar/dsscan/internal/store"
)

func openTestLog(t *testing.T) (*Log, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "cache.sqlite"))
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return Open(s), s
}

func TestAppendBatchDeduplicates(t *testing.T) {
	l, _ := openTestLog(t)
	paths := []string{"/a/.DS_Store", "/b/.DS_Store"}
	if err := l.AppendBatch("sess", paths); err != nil {
		t.Fatalf("first AppendBatch() error = %v", err)
	}
	if err := l.AppendBatch("sess", paths); err != nil {
		t.Fatalf("second AppendBatch() error = %v", err)
	}

	loaded, err := l.Load("sess")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(loaded) != 2 {
		t.Errorf("Load() len = %d, want 2 after duplicate append", len(loaded))
	}
}

func TestLoadOrdersByDiscovery(t *testing.T) {
	l, _ := openTestLog(t)
	if err := l.AppendBatch("sess", []string{"/a/.DS_Store"}); err != nil {
		t.Fatalf("AppendBatch() error = %v", err)
	}
	if err := l.AppendBatch("sess", []string{"/b/.DS_Store"}); err != nil {
		t.Fatalf("AppendBatch() error = %v", err)
	}

	loaded, err := l.Load("sess")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := []string{"/a/.DS_Store", "/b/.DS_Store"}
	if len(loaded) != len(want) {
		t.Fatalf("Load() len = %d, want %d", len(loaded), len(want))
	}
	for i := range want {
		if loaded[i] != want[i] {
			t.Errorf("loaded[%d] = %q, want %q", i, loaded[i], want[i])
		}
	}
}

func TestSessionScopedLogIsolation(t *testing.T) {
	l, _ := openTestLog(t)
	if err := l.AppendBatch("sess-a", []string{"/a/.DS_Store"}); err != nil {
		t.Fatalf("AppendBatch() error = %v", err)
	}
	loaded, err := l.Load("sess-b")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(loaded) != 0 {
		t.Errorf("Load(sess-b) = %v, want empty (sessions must not leak matches)", loaded)
	}
}

func TestUndeletedMatchesRecursiveVsExact(t *testing.T) {
	l, s := openTestLog(t)
	_, err := s.DB().Exec(`
		INSERT INTO directory_cache (path, last_searched_at, search_completed, ds_store_found, ds_store_deleted)
		VALUES ('/t', 1, 1, 1, 0), ('/t/sub', 1, 1, 1, 0)
	`)
	if err != nil {
		t.Fatalf("seed rows: %v", err)
	}

	recursive, err := l.UndeletedMatches("/t", true)
	if err != nil {
		t.Fatalf("UndeletedMatches(recursive) error = %v", err)
	}
	if len(recursive) != 2 {
		t.Errorf("UndeletedMatches(recursive) len = %d, want 2", len(recursive))
	}

	exact, err := l.UndeletedMatches("/t", false)
	if err != nil {
		t.Fatalf("UndeletedMatches(exact) error = %v", err)
	}
	if len(exact) != 1 {
		t.Errorf("UndeletedMatches(exact) len = %d, want 1", len(exact))
	}
}
