// Package cleaner removes previously installed tool versions.
package cleaner
