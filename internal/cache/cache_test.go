package cache

import (
	"path/filepath"
	"testing"

	"github.com/hazyhaar/dsscan/internal/store"
)

func openTestCache(t *testing.T, windowHours int64, forceRefresh bool) *Cache {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "cache.sqlite"))
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	c, err := Open(s, windowHours, forceRefresh)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return c
}

func TestStatusNotCached(t *testing.T) {
	c := openTestCache(t, 168, false)
	status, err := c.Status("/a")
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status != NotCached {
		t.Errorf("Status() = %v, want NotCached", status)
	}
}

func TestMarkSearchingThenCompletedIsFresh(t *testing.T) {
	c := openTestCache(t, 168, false)

	if err := c.MarkSearching("/a"); err != nil {
		t.Fatalf("MarkSearching() error = %v", err)
	}
	status, err := c.Status("/a")
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status != Incomplete {
		t.Errorf("Status() after MarkSearching = %v, want Incomplete", status)
	}

	err = c.MarkCompletedBatch([]State{{Path: "/a", MatchFound: false}}, false)
	if err != nil {
		t.Fatalf("MarkCompletedBatch() error = %v", err)
	}

	status, err = c.Status("/a")
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status != Fresh {
		t.Errorf("Status() after MarkCompletedBatch = %v, want Fresh", status)
	}
	if !c.ShouldSkip("/a") {
		t.Errorf("ShouldSkip(/a) = false, want true after completion")
	}
}

func TestForceRefreshAlwaysNotCached(t *testing.T) {
	c := openTestCache(t, 168, true)
	if err := c.MarkCompletedBatch([]State{{Path: "/a"}}, false); err != nil {
		t.Fatalf("MarkCompletedBatch() error = %v", err)
	}
	status, err := c.Status("/a")
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status != NotCached {
		t.Errorf("Status() in force-refresh mode = %v, want NotCached", status)
	}
}

func TestMarkCompletedIdempotent(t *testing.T) {
	c := openTestCache(t, 168, false)
	state := State{Path: "/a", MatchFound: true, MatchDeleted: true}

	if err := c.MarkCompletedBatch([]State{state}, false); err != nil {
		t.Fatalf("first MarkCompletedBatch() error = %v", err)
	}
	first, err := c.GetStats()
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}

	if err := c.MarkCompletedBatch([]State{state}, false); err != nil {
		t.Fatalf("second MarkCompletedBatch() error = %v", err)
	}
	second, err := c.GetStats()
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}

	if first != second {
		t.Errorf("stats changed across idempotent MarkCompletedBatch calls: %+v vs %+v", first, second)
	}
}

func TestDryRunNeverPersistsMatchDeleted(t *testing.T) {
	c := openTestCache(t, 168, false)
	// A dry run must never persist match_deleted=true even if the caller
	// passes MatchDeleted: true.
	err := c.MarkCompletedBatch([]State{{Path: "/a", MatchFound: false, MatchDeleted: true}}, true)
	if err != nil {
		t.Fatalf("MarkCompletedBatch() error = %v", err)
	}
	stats, err := c.GetStats()
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}
	if stats.Deleted != 0 {
		t.Errorf("Deleted = %d in dry-run, want 0", stats.Deleted)
	}
}

func TestClearIncomplete(t *testing.T) {
	c := openTestCache(t, 168, false)
	if err := c.MarkSearching("/a"); err != nil {
		t.Fatalf("MarkSearching() error = %v", err)
	}
	if err := c.MarkCompletedBatch([]State{{Path: "/b"}}, false); err != nil {
		t.Fatalf("MarkCompletedBatch() error = %v", err)
	}

	n, err := c.ClearIncomplete()
	if err != nil {
		t.Fatalf("ClearIncomplete() error = %v", err)
	}
	if n != 1 {
		t.Errorf("ClearIncomplete() removed = %d, want 1", n)
	}

	status, err := c.Status("/a")
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status != NotCached {
		t.Errorf("Status(/a) after ClearIncomplete = %v, want NotCached", status)
	}
}

func TestClampedCutoffNoOverflow(t *testing.T) {
	// A huge window should clamp to 0 rather than wrap negative.
	cutoff := clampedCutoff(1000, 1<<62)
	if cutoff != 0 {
		t.Errorf("clampedCutoff with huge window = %d, want 0", cutoff)
	}
}
