package release

import "errors"

var (
	// ErrNetwork marks transport failures and non-success HTTP responses
	// while fetching the listing or the artifact.
	ErrNetwork = errors.New("network error")
	// ErrResolution marks a listing that holds no recognizable release.
	ErrResolution = errors.New("could not find the latest release tag")
	// ErrFilesystem marks deletion, extraction, read or write failures.
	ErrFilesystem = errors.New("filesystem error")
)
