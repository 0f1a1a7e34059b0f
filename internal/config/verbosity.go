package config

// Verbosity controls how much progress and summary output dsscan
// prints. Quiet means "suppress all non-error output"; verbose and
// quiet are mutually exclusive and default to Normal.
type Verbosity int

const (
	Normal Verbosity = iota
	Verbose
	Quiet
)

// NewVerbosityFromFlags resolves the --verbose/--quiet flag pair. Taken
// from the fuller Verbosity::new_from_bools found in the original
// implementation: verbose and quiet cancel each other out to Normal
// when both are set, rather than quiet winning outright.
func NewVerbosityFromFlags(verbose, quiet bool) Verbosity {
	switch {
	case verbose && quiet:
		return Normal
	case verbose:
		return Verbose
	case quiet:
		return Quiet
	default:
		return Normal
	}
}

func (v Verbosity) IsVerbose() bool { return v == Verbose }
func (v Verbosity) IsQuiet() bool   { return v == Quiet }
func (v Verbosity) IsNormal() bool  { return v == Normal }
func (v Verbosity) IsNotQuiet() bool {
	return v != Quiet
}
