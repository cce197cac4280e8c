// Package installer downloads a release archive and unpacks it into the
// compatibility tools directory.
//
// Installation happens in two halves. Stage streams the archive into a
// temporary file and extracts it into a hidden staging directory next to
// the installed versions. Promote renames the staged entries into place,
// so an interrupted extraction never leaves a half-written version under
// its final name. The temporary archive is removed on every path.
package installer
