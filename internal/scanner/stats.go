package scanner

import "sync/atomic"

// Stats holds the run's termination counters. All fields are updated
// with relaxed atomic operations — they feed human-visible output, not
// control flow, so no stronger ordering is needed.
type Stats struct {
	newSearches     atomic.Int64
	resumedSearches atomic.Int64
	skippedCached   atomic.Int64
	found           atomic.Int64
	errors          atomic.Int64
}

func (s *Stats) IncrementNew()     { s.newSearches.Add(1) }
func (s *Stats) IncrementResumed() { s.resumedSearches.Add(1) }
func (s *Stats) IncrementSkipped() { s.skippedCached.Add(1) }
func (s *Stats) IncrementErrors()  { s.errors.Add(1) }
func (s *Stats) AddFound(n int64)  { s.found.Add(n) }
func (s *Stats) AddSkipped(n int64) { s.skippedCached.Add(n) }

func (s *Stats) New() int64      { return s.newSearches.Load() }
func (s *Stats) Resumed() int64  { return s.resumedSearches.Load() }
func (s *Stats) Skipped() int64  { return s.skippedCached.Load() }
func (s *Stats) Found() int64    { return s.found.Load() }
func (s *Stats) Errors() int64   { return s.errors.Load() }
func (s *Stats) TotalSearched() int64 { return s.New() + s.Resumed() }
