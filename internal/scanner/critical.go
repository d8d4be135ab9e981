package scanner

import "strings"

// criticalErrorSubstrings is the DiscoveryCriticalError set from spec.md
// §7: errors whose message matches one of these substrings indicate
// resource starvation and must abort the whole scan rather than being
// treated as a per-target failure.
var criticalErrorSubstrings = []string{
	"too many open files",
	"socket: too many open files",
	"cannot allocate memory",
	"resource temporarily unavailable",
	"out of memory",
}

// IsCriticalError reports whether err's message matches the critical set.
func IsCriticalError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, substr := range criticalErrorSubstrings {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}
