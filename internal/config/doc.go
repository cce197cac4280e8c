// Package config defines the updater settings and helpers to load, validate
// and save them in YAML format.
//
// Every field is optional: Validate fills in the Steam layout under the
// user's home directory and the GE-Proton upstream on GitHub.
package config
