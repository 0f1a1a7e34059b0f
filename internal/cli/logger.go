package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/hazyhaar/dsscan/internal/config"
	"github.com/hazyhaar/dsscan/internal/scanlog"
)

// logger bundles the structured internal logger with the resolved
// verbosity, so command code can gate its own human-facing progress
// and summary lines without re-deriving the truth table everywhere.
type logger struct {
	verbosity config.Verbosity
	slog      *slog.Logger
}

func newLogger(verbose, quiet bool) *logger {
	v := config.NewVerbosityFromFlags(verbose, quiet)
	return &logger{verbosity: v, slog: scanlog.New(v)}
}

// progress prints a line unless verbosity is Quiet.
func (l *logger) progress(format string, args ...interface{}) {
	if l.verbosity.IsQuiet() {
		return
	}
	fmt.Fprintf(os.Stdout, format+"\n", args...)
}

// verboseLine prints a line only in Verbose mode.
func (l *logger) verboseLine(format string, args ...interface{}) {
	if !l.verbosity.IsVerbose() {
		return
	}
	fmt.Fprintf(os.Stdout, format+"\n", args...)
}

// summary prints the final result line. Quiet suppresses it too: quiet
// means all non-error output, not just per-directory progress chatter.
func (l *logger) summary(format string, args ...interface{}) {
	if l.verbosity.IsQuiet() {
		return
	}
	fmt.Fprintf(os.Stdout, format+"\n", args...)
}
