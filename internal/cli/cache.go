package cli

import (
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var cacheStatusCmd = &cobra.Command{
	Use:   "cache-status [path]",
	Short: "Show the cached scan status of a directory",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCacheStatus,
}

var cacheClearIncompleteCmd = &cobra.Command{
	Use:   "cache-clear-incomplete",
	Short: "Remove incomplete (never-finished) directory cache entries",
	Args:  cobra.NoArgs,
	RunE:  runCacheClearIncomplete,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "cache-stats",
	Short: "Print aggregated directory cache statistics",
	Args:  cobra.NoArgs,
	RunE:  runCacheStats,
}

func runCacheStatus(cmd *cobra.Command, args []string) error {
	path := "."
	if len(args) == 1 {
		path = args[0]
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return &ExitError{Code: 1, Err: err}
	}

	log := newLogger(false, false)
	e, err := openEnv(log, nil, false)
	if err != nil {
		return &ExitError{Code: 1, Err: err}
	}
	defer e.close()

	status, err := e.cache.Status(absPath)
	if err != nil {
		return &ExitError{Code: 1, Err: fmt.Errorf("cli: status %s: %w", absPath, err)}
	}
	fmt.Printf("%s: %s\n", absPath, status)
	return nil
}

func runCacheClearIncomplete(cmd *cobra.Command, args []string) error {
	log := newLogger(false, false)
	e, err := openEnv(log, nil, false)
	if err != nil {
		return &ExitError{Code: 1, Err: err}
	}
	defer e.close()

	n, err := e.cache.ClearIncomplete()
	if err != nil {
		return &ExitError{Code: 1, Err: fmt.Errorf("cli: clear incomplete: %w", err)}
	}
	fmt.Println(okBanner(fmt.Sprintf("cleared %s incomplete entries", humanize.Comma(n))))
	return nil
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	log := newLogger(false, false)
	e, err := openEnv(log, nil, false)
	if err != nil {
		return &ExitError{Code: 1, Err: err}
	}
	defer e.close()

	stats, err := e.cache.GetStats()
	if err != nil {
		return &ExitError{Code: 1, Err: fmt.Errorf("cli: stats: %w", err)}
	}

	fmt.Println(headStyle.Render("directory cache"))
	fmt.Printf("  total:     %s\n", humanize.Comma(stats.Total))
	fmt.Printf("  completed: %s\n", humanize.Comma(stats.Completed))
	fmt.Printf("  matches:   %s\n", humanize.Comma(stats.WithMatch))
	fmt.Printf("  deleted:   %s\n", humanize.Comma(stats.Deleted))
	fmt.Printf("  errors:    %s\n", humanize.Comma(stats.Errors))
	return nil
}
