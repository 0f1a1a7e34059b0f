// Package scanlog provides the structured internal logger used for
// probe errors, stuck-probe snapshots, and the CLI's warnings (config
// reload and watch failures, failed deletions). Human-facing progress/summary lines are plain
// fmt.Fprintf and live alongside the CLI, not here.
package scanlog

import (
	"log/slog"
	"os"

	"github.com/hazyhaar/dsscan/internal/config"
)

// New builds a slog.Logger writing to stderr, leveled by verbosity:
// Quiet surfaces errors only, Normal is informational, Verbose lowers
// the level to debug.
func New(v config.Verbosity) *slog.Logger {
	level := slog.LevelInfo
	switch v {
	case config.Quiet:
		level = slog.LevelError
	case config.Verbose:
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}
