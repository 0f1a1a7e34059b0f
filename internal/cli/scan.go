package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/hazyhaar/dsscan/internal/config"
	"github.com/hazyhaar/dsscan/internal/scanner"
)

func runScan(cmd *cobra.Command, args []string) error {
	root := "."
	if len(args) == 1 {
		root = args[0]
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return &ExitError{Code: 1, Err: fmt.Errorf("cli: resolve root path: %w", err)}
	}
	if info, err := os.Stat(absRoot); err != nil || !info.IsDir() {
		return &ExitError{Code: 1, Err: fmt.Errorf("cli: %s is not a directory", absRoot)}
	}

	recursive, _ := cmd.Flags().GetBool("recursive")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	forceRefresh, _ := cmd.Flags().GetBool("force-refresh")
	windowHours, _ := cmd.Flags().GetInt64("window-hours")
	verbose, _ := cmd.Flags().GetBool("verbose")
	quiet, _ := cmd.Flags().GetBool("quiet")

	log := newLogger(verbose, quiet)

	var windowOverride *int64
	if windowHours > 0 {
		windowOverride = &windowHours
	}

	e, err := openEnv(log, windowOverride, forceRefresh)
	if err != nil {
		return &ExitError{Code: 1, Err: err}
	}
	defer e.close()

	// An explicit --window-hours override is a one-off decision for this
	// invocation; a background config-file edit shouldn't silently
	// clobber it mid-run, so the watcher only runs without one.
	if windowOverride == nil {
		if path, err := config.ConfigPath(); err == nil {
			if watcher, err := config.WatchFile(path, func() {
				cfg, err := config.LoadFromFile(path)
				if err != nil {
					log.slog.Warn("failed to reload config", "error", err)
					return
				}
				cfg.Validate()
				e.cache.SetWindowHours(cfg.CacheWindowHours)
				log.verboseLine("cache window reloaded to %d hours", cfg.CacheWindowHours)
			}); err == nil {
				defer watcher.Close()
			} else {
				log.slog.Warn("failed to watch config file for changes", "path", path, "error", err)
			}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := scanner.Options{
		Root:         absRoot,
		Recursive:    recursive,
		DryRun:       dryRun,
		ForceRefresh: forceRefresh,
	}

	log.progress("Scanning %s %s", absRoot, dimStyle.Render(fmt.Sprintf("(recursive=%t, dry-run=%t)", recursive, dryRun)))

	result, err := scanner.RunScan(ctx, e.deps(log), opts)
	if err != nil {
		return &ExitError{Code: 1, Err: fmt.Errorf("cli: scan: %w", err)}
	}

	var deletedParents, missingParents []string
	if !dryRun {
		for _, match := range result.Matches {
			log.verboseLine("found %s", match)
			if err := os.Remove(match); err != nil {
				if os.IsNotExist(err) {
					// Already gone (e.g. removed out-of-band since it was
					// discovered) — as good as deleted for cache purposes.
					missingParents = append(missingParents, filepath.Dir(match))
				} else {
					log.slog.Warn("failed to delete match", "path", match, "error", err)
				}
				continue
			}
			deletedParents = append(deletedParents, filepath.Dir(match))
		}
		affectedParents := append(append([]string{}, deletedParents...), missingParents...)
		if err := scanner.ApplyDeletions(e.deps(log), affectedParents, len(result.Matches) > 0, dryRun); err != nil {
			return &ExitError{Code: 1, Err: fmt.Errorf("cli: record deletions: %w", err)}
		}
	} else {
		for _, match := range result.Matches {
			log.verboseLine("would delete %s", match)
		}
	}

	stats := result.Stats
	verb := "deleted"
	count := int64(len(deletedParents) + len(missingParents))
	if dryRun {
		verb = "found"
		count = int64(len(result.Matches))
	}
	log.summary("%s: scanned %s directories (%s new, %s resumed, %s skipped via cache), %s .DS_Store files %s, %s errors",
		okBanner("done"),
		humanize.Comma(stats.TotalSearched()),
		humanize.Comma(stats.New()),
		humanize.Comma(stats.Resumed()),
		humanize.Comma(stats.Skipped()),
		humanize.Comma(count),
		verb,
		humanize.Comma(stats.Errors()),
	)

	if ctx.Err() != nil {
		return &ExitError{Code: 130, Err: nil}
	}
	return nil
}
