package scanner

import "regexp"

// systemPathPatterns mirrors the platform-specific ignore set from the
// original implementation: cross-mount volumes, trash, per-user
// spotlight and caches, the event-stream database, and system volume
// roots. A directory matching any of these is never probed.
var systemPathPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/Volumes/`),
	regexp.MustCompile(`/\.Trash`),
	regexp.MustCompile(`/System/Volumes`),
	regexp.MustCompile(`/private/var/folders`),
	regexp.MustCompile(`/\.fseventsd`),
	regexp.MustCompile(`/Library/Caches`),
	regexp.MustCompile(`/\.Spotlight-V100`),
}

// isSystemPath reports whether path matches any platform-specific
// ignore pattern.
func isSystemPath(path string) bool {
	for _, p := range systemPathPatterns {
		if p.MatchString(path) {
			return true
		}
	}
	return false
}
