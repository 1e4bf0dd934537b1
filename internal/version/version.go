// Package version carries build metadata stamped in with -ldflags.
package version

import "runtime"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String is the long form printed by `dictum version`.
func String() string {
	return "dictum " + Version + " (commit=" + Commit + ", date=" + Date + ", go=" + runtime.Version() + ")"
}

// UserAgent identifies dictum in outbound HTTP requests.
func UserAgent() string {
	return "dictum/" + Version
}
