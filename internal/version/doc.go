// Package version exposes build metadata for the updater.
//
// Version, Commit and BuildTime are injected at build time via ldflags.
// UserAgent renders the string sent with every upstream HTTP request.
package version
