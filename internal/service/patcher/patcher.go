package patcher

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/voc0der/linux-proton-ge-updater/internal/domain/release"
)

// NameKey is the key whose value selects the tool version.
const NameKey = "name"

// Result reports what Patch did.
type Result struct {
	// Skipped is set when the configuration file does not exist.
	Skipped bool
	// Patched is the number of rewritten lines.
	Patched int
}

// Patch replaces the "name" value on every line referencing family with label.
// A missing file is reported through Result.Skipped, not as an error.
func Patch(path, family, label string) (*Result, error) {
	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Result{Skipped: true}, nil
		}

		return nil, fmt.Errorf("%w: resolve %s: %w", release.ErrFilesystem, path, err)
	}

	info, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %w", release.ErrFilesystem, target, err)
	}

	contents, err := os.ReadFile(target)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", release.ErrFilesystem, target, err)
	}

	patched, count := Rewrite(string(contents), family, label)
	if count == 0 {
		return &Result{}, nil
	}

	options := goupdate.Options{
		TargetPath: target,
		TargetMode: info.Mode().Perm(),
	}

	if err = goupdate.Apply(bytes.NewReader([]byte(patched)), options); err != nil {
		return nil, fmt.Errorf("%w: write %s: %w", release.ErrFilesystem, target, err)
	}

	return &Result{Patched: count}, nil
}

// Rewrite applies the substitution to a whole document and returns it with
// the number of lines changed.
func Rewrite(document, family, label string) (string, int) {
	var (
		out   strings.Builder
		count int
	)

	out.Grow(len(document) + len(label))

	for _, line := range strings.SplitAfter(document, "\n") {
		if replaced, ok := rewriteLine(line, family, label); ok {
			out.WriteString(replaced)
			count++

			continue
		}

		out.WriteString(line)
	}

	return out.String(), count
}

// rewriteLine returns the patched line when its key is "name" and its value
// contains family. The text before the key and the line ending are kept.
func rewriteLine(line, family, label string) (string, bool) {
	body, ending := splitEnding(line)

	fields, keyStart := quotedFields(body)
	if len(fields) < 2 || fields[0] != NameKey || !strings.Contains(fields[1], family) {
		return "", false
	}

	return body[:keyStart] + `"` + NameKey + `"` + "\t\t" + `"` + label + `"` + ending, true
}

// splitEnding separates a trailing \n or \r\n from line.
func splitEnding(line string) (string, string) {
	switch {
	case strings.HasSuffix(line, "\r\n"):
		return line[:len(line)-2], "\r\n"
	case strings.HasSuffix(line, "\n"):
		return line[:len(line)-1], "\n"
	default:
		return line, ""
	}
}

// quotedFields returns the quoted strings of a VDF line, stopping at a //
// comment, and the offset of the first opening quote.
func quotedFields(body string) ([]string, int) {
	var (
		fields   []string
		keyStart = -1
	)

	for i := 0; i < len(body); i++ {
		switch {
		case body[i] == '"':
			end := closingQuote(body, i+1)
			if end < 0 {
				return fields, keyStart
			}

			if keyStart < 0 {
				keyStart = i
			}

			fields = append(fields, body[i+1:end])
			i = end
		case strings.HasPrefix(body[i:], "//"):
			return fields, keyStart
		}
	}

	return fields, keyStart
}

// closingQuote finds the next unescaped quote at or after from.
func closingQuote(body string, from int) int {
	for i := from; i < len(body); i++ {
		switch body[i] {
		case '\\':
			i++
		case '"':
			return i
		}
	}

	return -1
}
