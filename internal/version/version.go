// Package version holds the build version, overridden at link time with
// -ldflags "-X github.com/fairspace/ceres/internal/version.Version=...".
package version

var (
	Version   = "0.1.0-dev"
	GitCommit = ""
)

// FullVersion returns Version with the commit appended when known.
func FullVersion() string {
	if GitCommit == "" {
		return Version
	}
	return Version + " (" + GitCommit + ")"
}
