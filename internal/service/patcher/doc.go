// Package patcher points the Steam client configuration at a new tool version.
//
// config.vdf is rewritten line by line: a line whose key is "name" and
// whose value contains the tool family gets the new label, every other
// line is copied byte for byte. The result replaces the file through
// go-update, which writes a sibling file and renames it over the original.
package patcher
