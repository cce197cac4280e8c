// Package release contains the transient values passed between pipeline
// steps: the release Tag, the Artifact derived from it, and the error
// classes every step wraps its failures with.
package release
