package version

import "fmt"

// appName identifies the binary in version output and HTTP requests.
const appName = "ge-proton-updater"

var (
	// Version is the semantic version of the build. It can be overridden via ldflags.
	Version = "0.1.0"
	// Commit is the short git SHA embedded at build time (or "none").
	Commit = "none"
	// BuildTime is the UTC build timestamp embedded at build time.
	BuildTime = "unknown"
)

// Short returns only the semantic version string.
func Short() string {
	return Version
}

// Full returns a human-readable version string with commit and build time.
func Full() string {
	return fmt.Sprintf("%s version: %s, commit: %s, built at: %s", appName, Version, Commit, BuildTime)
}

// UserAgent returns the User-Agent header value for upstream requests.
func UserAgent() string {
	return appName + "/" + Version
}
