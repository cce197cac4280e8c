// Package updater runs the whole GE-Proton update: it resolves the newest
// release, closes Steam, stages the new version, removes the old ones,
// moves the new one into place and updates config.vdf.
//
// Each step gates the next; the first failure aborts the run.
package updater
