package scanner

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/hazyhaar/dsscan/internal/cache"
)

// RunScan is the top-level entry point: it recovers any previously
// found, undeleted matches (skipped entirely in dry-run mode, since
// nothing can have been deleted from a dry run), runs the scheduler,
// and merges the recovered matches into the final list by path so a
// match that survived an earlier kill between discovery and deletion
// resurfaces even if its directory is now Fresh and would otherwise be
// skipped.
func RunScan(ctx context.Context, deps Deps, opts Options) (*Result, error) {
	sentinel := opts.Sentinel
	if sentinel == "" {
		sentinel = DefaultSentinel
	}

	var recovered []string
	if !opts.DryRun {
		dirs, err := deps.Found.UndeletedMatches(opts.Root, opts.Recursive)
		if err != nil {
			return nil, fmt.Errorf("scanner: recover undeleted matches: %w", err)
		}
		for _, dir := range dirs {
			recovered = append(recovered, filepath.Join(dir, sentinel))
		}
	}

	result, err := Run(ctx, deps, opts)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(result.Matches)+len(recovered))
	merged := make([]string, 0, len(result.Matches)+len(recovered))
	for _, m := range append(result.Matches, recovered...) {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		merged = append(merged, m)
	}
	result.Matches = merged
	return result, nil
}

// ApplyDeletions records the outcome of the external deletion step.
// affectedParents is the union of directories whose match was
// successfully removed AND directories whose match was already gone
// by the time deletion was attempted (os.IsNotExist) — both get their
// cache row retargeted with match_deleted=true, matching the original
// implementation's union of deleted_parents and missing_parents (a
// missing file is just as gone as a deleted one). matchesFound gates
// the age-sweep independently of affectedParents: the original always
// sweeps when num_hits > 0 for this run, even if every removal failed
// for a reason other than the file already being gone (e.g.
// permissions), so a run that found matches but couldn't act on any of
// them still sweeps.
func ApplyDeletions(deps Deps, affectedParents []string, matchesFound bool, dryRun bool) error {
	if len(affectedParents) > 0 {
		states := make([]cache.State, 0, len(affectedParents))
		for _, parent := range affectedParents {
			states = append(states, cache.State{Path: parent, MatchFound: true, MatchDeleted: true})
		}
		if err := deps.Cache.MarkCompletedBatch(states, dryRun); err != nil {
			return fmt.Errorf("scanner: mark post-deletion completion: %w", err)
		}
	}

	if matchesFound {
		if _, err := deps.Cache.Sweep(); err != nil {
			return fmt.Errorf("scanner: age sweep after deletions: %w", err)
		}
	}
	return nil
}
