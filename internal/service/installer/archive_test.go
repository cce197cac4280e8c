package installer

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

// entry describes one member of a test archive.
type entry struct {
	name     string
	body     string
	linkname string
	typeflag byte
}

func dirEntry(name string) entry { return entry{name: name, typeflag: tar.TypeDir} }

func fileEntry(name, body string) entry {
	return entry{name: name, body: body, typeflag: tar.TypeReg}
}

func symlinkEntry(name, target string) entry {
	return entry{name: name, linkname: target, typeflag: tar.TypeSymlink}
}

// writeTar writes entries as an uncompressed tar stream into w.
func writeTar(t *testing.T, w io.Writer, entries ...entry) {
	t.Helper()

	tw := tar.NewWriter(w)

	for _, e := range entries {
		header := &tar.Header{
			Name:     e.name,
			Typeflag: e.typeflag,
			Linkname: e.linkname,
			Mode:     0o755,
			Size:     int64(len(e.body)),
		}

		require.NoError(t, tw.WriteHeader(header))

		if e.typeflag == tar.TypeReg {
			_, err := tw.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}

	require.NoError(t, tw.Close())
}

// tarGz returns a gzip compressed tar archive.
func tarGz(t *testing.T, entries ...entry) []byte {
	t.Helper()

	var buf bytes.Buffer

	gz := gzip.NewWriter(&buf)
	writeTar(t, gz, entries...)
	require.NoError(t, gz.Close())

	return buf.Bytes()
}

// tarXz returns an xz compressed tar archive.
func tarXz(t *testing.T, entries ...entry) []byte {
	t.Helper()

	var buf bytes.Buffer

	xw, err := xz.NewWriter(&buf)
	require.NoError(t, err)

	writeTar(t, xw, entries...)
	require.NoError(t, xw.Close())

	return buf.Bytes()
}

// protonRelease returns the layout of a typical release archive.
func protonRelease(tag string) []entry {
	return []entry{
		dirEntry(tag + "/"),
		fileEntry(tag+"/compatibilitytool.vdf", `"compatibilitytools" { "compat_tools" { "`+tag+`" {} } }`),
		dirEntry(tag + "/files/bin/"),
		fileEntry(tag+"/files/bin/wine64", "ELF"),
		symlinkEntry(tag+"/files/bin/wine", "wine64"),
		fileEntry(tag+"/version", tag),
	}
}

// writeArchive stores data under dir/name and returns the path.
func writeArchive(t *testing.T, dir, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	return path
}

// failingTar writes a script that mimics tar failing on a truncated archive.
func failingTar(t *testing.T) string {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}

	path := filepath.Join(t.TempDir(), "tar")
	script := "#!/bin/sh\necho 'tar: Unexpected EOF in archive' >&2\nexit 2\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o700)) //nolint:gosec // Test helper must be executable.

	return path
}
