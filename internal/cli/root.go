package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "dsscan [path]",
	Short: "Find and optionally remove macOS .DS_Store clutter files",
	Long: `dsscan walks a directory tree looking for .DS_Store files,
remembering what it has already searched so a
second run only revisits what changed, and resumes cleanly after being
interrupted.`,
	Args:          cobra.MaximumNArgs(1),
	RunE:          runScan,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// ExitError carries a specific process exit code, distinct from a
// plain error which always maps to 1.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *ExitError
		if ok := asExitError(err, &exitErr); ok {
			if exitErr.Err != nil {
				fmt.Fprintln(os.Stderr, errorBanner(exitErr.Err.Error()))
			}
			return exitErr.Code
		}
		fmt.Fprintln(os.Stderr, errorBanner(err.Error()))
		return 1
	}
	return 0
}

func asExitError(err error, target **ExitError) bool {
	for err != nil {
		if e, ok := err.(*ExitError); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func init() {
	rootCmd.Flags().BoolP("recursive", "r", false, "descend into subdirectories")
	rootCmd.Flags().Bool("dry-run", false, "report matches without deleting them")
	rootCmd.Flags().Bool("force-refresh", false, "ignore the directory cache and rescan everything")
	rootCmd.Flags().Int64("window-hours", 0, "override the configured cache freshness window for this run")
	rootCmd.Flags().BoolP("verbose", "v", false, "print per-directory progress")
	rootCmd.Flags().BoolP("quiet", "q", false, "suppress all non-error output")
	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	rootCmd.AddCommand(cacheStatusCmd)
	rootCmd.AddCommand(cacheClearIncompleteCmd)
	rootCmd.AddCommand(cacheStatsCmd)
}
