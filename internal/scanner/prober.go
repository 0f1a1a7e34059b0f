package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hazyhaar/dsscan/internal/cache"
)

// ProbeResult is everything one directory probe contributes back to the
// scheduler: subdirectories to enqueue (only when the read succeeded and
// recursive mode is on), matches found, and the completion state to
// fold into the directory cache.
type ProbeResult struct {
	Subdirs []string
	Matches []string
	State   cache.State
}

// probeDirectory inspects one directory per §4.7: system-path filter,
// metadata probe, symlink probe, then a directory read that classifies
// entries and collects subdirectories (recursive mode only) and
// sentinel-name matches. Mid-iteration read failures leave the
// directory Incomplete (State.Error carries the reason, but
// completed is reported via the returned bool) so a later session
// retries it.
func probeDirectory(ctx context.Context, dir string, recursive bool, sentinel string) (ProbeResult, bool) {
	if isSystemPath(dir) {
		return ProbeResult{State: cache.State{Path: dir, Error: "Skipped system/problematic directory"}}, true
	}

	info, err := os.Stat(dir)
	if err != nil {
		return ProbeResult{State: cache.State{Path: dir, Error: fmt.Sprintf("Cannot access directory: %v", err)}}, true
	}
	if !info.IsDir() {
		return ProbeResult{State: cache.State{Path: dir, Error: "Not a directory"}}, true
	}

	link, err := os.Lstat(dir)
	if err == nil && link.Mode()&os.ModeSymlink != 0 {
		return ProbeResult{State: cache.State{Path: dir, Error: "Skipped symlink"}}, true
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return ProbeResult{State: cache.State{Path: dir, Error: fmt.Sprintf("Failed to read directory: %v", err)}}, false
	}

	var result ProbeResult
	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return ProbeResult{State: cache.State{Path: dir, Error: fmt.Sprintf("Failed to read directory: %v", ctx.Err())}}, false
		default:
		}

		fullPath := filepath.Join(dir, entry.Name())
		fileType := entry.Type()

		if fileType.IsRegular() && entry.Name() == sentinel {
			result.Matches = append(result.Matches, fullPath)
			continue
		}

		if !recursive {
			continue
		}
		if isSystemPath(fullPath) {
			continue
		}

		if fileType&os.ModeSymlink != 0 {
			// A symlinked subdirectory is still enqueued for its own probe
			// rather than traversed here: the probe's own symlink check
			// (step 3 above) records it as "Skipped symlink" and returns
			// before reading its contents, which is what actually stops a
			// symlink loop back into an ancestor directory.
			target, err := os.Stat(fullPath)
			if err == nil && target.IsDir() {
				result.Subdirs = append(result.Subdirs, fullPath)
			}
			continue
		}

		if fileType.IsDir() {
			result.Subdirs = append(result.Subdirs, fullPath)
		}
	}

	result.State = cache.State{
		Path:       dir,
		MatchFound: len(result.Matches) > 0,
	}
	return result, true
}
