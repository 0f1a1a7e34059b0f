// Package scanner implements the traversal scheduler and directory
// prober: the bounded-concurrency loop that drains a session's work
// queue, and the per-directory probe it dispatches.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/dsscan/internal/cache"
	"github.com/hazyhaar/dsscan/internal/found"
	"github.com/hazyhaar/dsscan/internal/queue"
	"github.com/hazyhaar/dsscan/internal/session"
)

// Tuning constants from spec §4.6: work-batch size, task concurrency
// cap, checkpoint interval, per-probe timeout.
const (
	WorkBatchSize      = 50
	TaskConcurrencyCap = 100
	CheckpointInterval = 5 * time.Second
	ProbeTimeout       = 30 * time.Second

	stuckLoopSleep     = 100 * time.Millisecond
	stuckLoopThreshold = 10
	stuckSnapshotLimit = 10
)

const DefaultSentinel = ".DS_Store"

// Options configures one Run invocation.
type Options struct {
	Root         string
	Recursive    bool
	DryRun       bool
	ForceRefresh bool
	Sentinel     string
}

// Deps wires the scheduler to the durable components it drains.
type Deps struct {
	Cache    *cache.Cache
	Queue    *queue.Queue
	Sessions *session.Registry
	Found    *found.Log
	Log      *slog.Logger
}

// Result is what a Run invocation returns once the loop exits.
type Result struct {
	SessionID string
	Matches   []string
	Stats     *Stats
}

// Run executes the scheduler's main loop for opts against deps until
// the work queue is empty and no tasks are in flight, or ctx is
// cancelled.
func Run(ctx context.Context, deps Deps, opts Options) (*Result, error) {
	sentinel := opts.Sentinel
	if sentinel == "" {
		sentinel = DefaultSentinel
	}

	stats := &Stats{}
	var matchMu sync.Mutex
	var matchBuf []string

	sess, err := deps.Sessions.Resume(opts.Root, opts.Recursive, opts.DryRun)
	if err != nil {
		return nil, fmt.Errorf("scanner: resume session: %w", err)
	}
	if sess == nil {
		sess, err = deps.Sessions.Start(opts.Root, opts.Recursive, opts.DryRun)
		if err != nil {
			return nil, fmt.Errorf("scanner: start session: %w", err)
		}
	} else {
		loaded, err := deps.Found.Load(sess.ID)
		if err != nil {
			return nil, fmt.Errorf("scanner: load found-match log: %w", err)
		}
		matchBuf = append(matchBuf, loaded...)
		stats.AddFound(int64(len(loaded)))

		workCount, err := deps.Queue.Count(sess.ID)
		if err != nil {
			return nil, fmt.Errorf("scanner: count resumed work: %w", err)
		}
		if workCount == 0 {
			searched, err := deps.Sessions.SearchedCount(sess)
			if err != nil {
				return nil, fmt.Errorf("scanner: searched count: %w", err)
			}
			stats.AddSkipped(searched)
		}
	}

	driver := &driver{
		deps:     deps,
		opts:     opts,
		sentinel: sentinel,
		sessID:   sess.ID,
		stats:    stats,
	}
	driver.matchMu = &matchMu
	driver.matchBuf = &matchBuf

	if err := driver.loop(ctx); err != nil {
		return nil, err
	}

	matchMu.Lock()
	final := append([]string(nil), matchBuf...)
	matchMu.Unlock()

	return &Result{SessionID: sess.ID, Matches: final, Stats: stats}, nil
}

// driver is the single-threaded cooperative loop owner. All direct
// database operations funnel through it; probes only touch the shared
// in-memory buffers.
type driver struct {
	deps     Deps
	opts     Options
	sentinel string
	sessID   string
	stats    *Stats
	ctx      context.Context

	matchMu  *sync.Mutex
	matchBuf *[]string

	completionMu sync.Mutex
	completions  []cache.State

	subdirMu sync.Mutex
	subdirs  []string

	inFlightMu sync.Mutex
	inFlight   map[string]struct{}

	incompleteMu     sync.Mutex
	incompleteErrors []incompleteError
}

type incompleteError struct {
	path    string
	message string
}

func (d *driver) loop(ctx context.Context) error {
	d.ctx = ctx
	d.inFlight = make(map[string]struct{})

	sem := make(chan struct{}, TaskConcurrencyCap)
	done := make(chan struct{}, TaskConcurrencyCap)
	var wg sync.WaitGroup
	inFlightTasks := 0

	lastCheckpoint := time.Now()
	emptyIterations := 0

	for {
		if ctx.Err() != nil {
			return d.cancelAndCheckpoint(&wg, sem, done, &inFlightTasks)
		}

		items, err := d.deps.Queue.PeekBatch(d.sessID, WorkBatchSize)
		if err != nil {
			return fmt.Errorf("scanner: peek work batch: %w", err)
		}

		if len(items) == 0 && inFlightTasks == 0 {
			// Subdirectories discovered since the last checkpoint are still
			// buffered in memory; enqueue them before deciding the work is
			// done, otherwise a scan shorter than CheckpointInterval never
			// descends past the root.
			d.subdirMu.Lock()
			pendingSubdirs := len(d.subdirs)
			d.subdirMu.Unlock()
			if pendingSubdirs == 0 {
				break
			}
			if err := d.checkpoint(); err != nil {
				return err
			}
			lastCheckpoint = time.Now()
			continue
		}

		var ids []int64
		var accepted []string
		for _, item := range items {
			ids = append(ids, item.ID)

			status, err := d.deps.Cache.Status(item.Path)
			if err != nil {
				return fmt.Errorf("scanner: classify %s: %w", item.Path, err)
			}
			switch status {
			case cache.Fresh:
				d.stats.IncrementSkipped()
			case cache.Incomplete:
				d.stats.IncrementResumed()
				accepted = append(accepted, item.Path)
			default: // NotCached, Stale
				d.stats.IncrementNew()
				accepted = append(accepted, item.Path)
			}
		}

		if len(ids) > 0 {
			if err := d.deps.Queue.RemoveByID(ids); err != nil {
				return fmt.Errorf("scanner: remove peeked items: %w", err)
			}
		}

		for _, path := range accepted {
			d.inFlightMu.Lock()
			if _, already := d.inFlight[path]; already {
				d.inFlightMu.Unlock()
				continue
			}
			d.inFlight[path] = struct{}{}
			d.inFlightMu.Unlock()

			if !d.opts.DryRun {
				if err := d.deps.Cache.MarkSearching(path); err != nil {
					return fmt.Errorf("scanner: mark searching %s: %w", path, err)
				}
			}

			select {
			case sem <- struct{}{}:
			default:
				// task cap reached: wait for one completion before spawning more
				<-done
				inFlightTasks--
				sem <- struct{}{}
			}

			wg.Add(1)
			inFlightTasks++
			go d.spawnProbe(path, sem, done, &wg)
		}

		if len(items) > 0 {
			emptyIterations = 0
		}

		if time.Since(lastCheckpoint) >= CheckpointInterval {
			if err := d.checkpoint(); err != nil {
				return err
			}
			lastCheckpoint = time.Now()
		}

		if len(items) == 0 && inFlightTasks > 0 {
			time.Sleep(stuckLoopSleep)
			emptyIterations++
			if emptyIterations%stuckLoopThreshold == 0 {
				d.logStuckSnapshot()
			}
		}

		drainDone(done, &inFlightTasks)
	}

	wg.Wait()
	drainDone(done, &inFlightTasks)

	if err := d.checkpoint(); err != nil {
		return err
	}
	return d.deps.Sessions.Complete(d.sessID)
}

// drainDone reaps completed task signals without blocking.
func drainDone(done <-chan struct{}, inFlightTasks *int) {
	for {
		select {
		case <-done:
			*inFlightTasks--
		default:
			return
		}
	}
}

func (d *driver) spawnProbe(path string, sem <-chan struct{}, done chan<- struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	defer func() { <-sem }()
	defer func() {
		d.inFlightMu.Lock()
		delete(d.inFlight, path)
		d.inFlightMu.Unlock()
		done <- struct{}{}
	}()

	probeCtx, cancel := context.WithTimeout(d.ctx, ProbeTimeout)
	defer cancel()

	result, completed := probeDirectory(probeCtx, path, d.opts.Recursive, d.sentinel)
	switch probeCtx.Err() {
	case context.DeadlineExceeded:
		// Per-probe timeout: credited as an error, never marked
		// completed=true, so a later session retries this directory.
		result = ProbeResult{State: cache.State{Path: path, Error: "Probe timed out"}}
		completed = false
	case context.Canceled:
		// Parent scan was interrupted mid-probe: same retry-later
		// treatment as a timeout, distinguished in the log for anyone
		// reading back why this directory stayed Incomplete.
		result = ProbeResult{State: cache.State{Path: path, Error: "Probe cancelled"}}
		completed = false
	}
	if !completed {
		d.stats.IncrementErrors()
		d.deps.Log.Warn("directory probe did not complete, will retry", "path", path, "error", result.State.Error)
	} else if result.State.Error != "" && result.State.Error != "Skipped system/problematic directory" && result.State.Error != "Skipped symlink" {
		d.stats.IncrementErrors()
	}

	if len(result.Matches) > 0 {
		d.stats.AddFound(int64(len(result.Matches)))
		d.matchMu.Lock()
		*d.matchBuf = append(*d.matchBuf, result.Matches...)
		d.matchMu.Unlock()
	}

	if len(result.Subdirs) > 0 {
		d.subdirMu.Lock()
		d.subdirs = append(d.subdirs, result.Subdirs...)
		d.subdirMu.Unlock()
	}

	if !completed {
		// Mid-iteration read failure: recorded directly (not through the
		// completion buffer, since that path always flips completed=true)
		// so the row stays Incomplete for a future session to retry.
		d.incompleteMu.Lock()
		d.incompleteErrors = append(d.incompleteErrors, incompleteError{path: path, message: result.State.Error})
		d.incompleteMu.Unlock()
		return
	}

	d.completionMu.Lock()
	d.completions = append(d.completions, result.State)
	d.completionMu.Unlock()
}

// checkpoint drains the completion buffer into mark_completed_batch,
// drains discovered subdirectories into enqueue_batch, and appends the
// current match buffer to the found-match log. It does not issue a WAL
// checkpoint: the driver holds no store handle.
func (d *driver) checkpoint() error {
	d.completionMu.Lock()
	states := d.completions
	d.completions = nil
	d.completionMu.Unlock()

	if len(states) > 0 {
		if err := d.deps.Cache.MarkCompletedBatch(states, d.opts.DryRun); err != nil {
			return fmt.Errorf("scanner: mark completed batch: %w", err)
		}
	}

	d.incompleteMu.Lock()
	incompletes := d.incompleteErrors
	d.incompleteErrors = nil
	d.incompleteMu.Unlock()

	for _, ie := range incompletes {
		if err := d.deps.Cache.MarkIncompleteError(ie.path, ie.message); err != nil {
			return fmt.Errorf("scanner: mark incomplete error: %w", err)
		}
	}

	d.subdirMu.Lock()
	subdirs := d.subdirs
	d.subdirs = nil
	d.subdirMu.Unlock()

	if len(subdirs) > 0 {
		if err := d.deps.Queue.EnqueueBatch(d.sessID, subdirs, 0); err != nil {
			return fmt.Errorf("scanner: enqueue discovered subdirectories: %w", err)
		}
	}

	d.matchMu.Lock()
	toAppend := append([]string(nil), (*d.matchBuf)...)
	d.matchMu.Unlock()
	if len(toAppend) > 0 {
		if err := d.deps.Found.AppendBatch(d.sessID, toAppend); err != nil {
			return fmt.Errorf("scanner: append found-match log: %w", err)
		}
	}

	return nil
}

func (d *driver) logStuckSnapshot() {
	d.inFlightMu.Lock()
	defer d.inFlightMu.Unlock()

	if len(d.inFlight) == 0 {
		return
	}
	var sample []string
	for path := range d.inFlight {
		if len(sample) >= stuckSnapshotLimit {
			break
		}
		sample = append(sample, path)
	}
	remaining := len(d.inFlight) - len(sample)
	if remaining > 0 {
		d.deps.Log.Warn("still processing, possible stuck probes", "sample", sample, "more", remaining)
	} else {
		d.deps.Log.Warn("still processing, possible stuck probes", "sample", sample)
	}
}

// cancelAndCheckpoint is the checkpoint-and-interrupt path. Each
// in-flight probe's context is derived from the same ctx that just
// cancelled (see spawnProbe), so probeDirectory observes ctx.Done() at
// its next directory-entry check and returns early instead of running
// to completion or to ProbeTimeout — wg.Wait() here returns as soon as
// those probes unwind, not after the full timeout. A probe blocked
// inside a single blocking syscall (stat, readdir) still has to finish
// that syscall first; Go has no primitive to preempt it mid-call.
// Buffered completions and matches are flushed, and the session
// transitions to completed or interrupted depending on remaining work.
func (d *driver) cancelAndCheckpoint(wg *sync.WaitGroup, sem chan struct{}, done chan struct{}, inFlightTasks *int) error {
	wg.Wait()
	drainDone(done, inFlightTasks)

	if err := d.checkpoint(); err != nil {
		return err
	}

	remaining, err := d.deps.Queue.Count(d.sessID)
	if err != nil {
		return fmt.Errorf("scanner: count remaining work: %w", err)
	}
	if remaining == 0 {
		return d.deps.Sessions.Complete(d.sessID)
	}
	return d.deps.Sessions.Interrupt(d.sessID)
}
