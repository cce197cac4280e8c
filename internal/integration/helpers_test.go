package integration

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/voc0der/linux-proton-ge-updater/internal/config"
)

const (
	ownerRepo = "/GloriousEggroll/proton-ge-custom"
	latestTag = "GE-Proton9-22"

	// testAppName never matches a real process, so the guard is a no-op.
	testAppName = "ge-proton-updater-integration-app"
)

// upstream fakes the tags page and the release download endpoint.
type upstream struct {
	server *httptest.Server
	// tagsPage is served at /<owner>/<repo>/tags.
	tagsPage string
	// archives maps a tag to its .tar.gz body.
	archives map[string][]byte
	// downloads counts archive requests.
	downloads atomic.Int32
}

func newUpstream(t *testing.T, tagsPage string) *upstream {
	t.Helper()

	u := &upstream{
		tagsPage: tagsPage,
		archives: map[string][]byte{latestTag: protonArchive(t, latestTag)},
	}

	mux := http.NewServeMux()
	mux.HandleFunc(ownerRepo+"/tags", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(u.tagsPage))
	})
	mux.HandleFunc("/releases/download/{tag}/{file}", func(w http.ResponseWriter, r *http.Request) {
		tag := r.PathValue("tag")

		data, ok := u.archives[tag]
		if !ok || r.PathValue("file") != tag+".tar.gz" {
			http.NotFound(w, r)

			return
		}

		u.downloads.Add(1)
		_, _ = w.Write(data)
	})

	u.server = httptest.NewServer(mux)
	t.Cleanup(u.server.Close)

	return u
}

// listing renders a tags page linking the given tags in order.
func listing(tags ...string) string {
	page := `<html><body><a href="` + ownerRepo + `">repo</a>`
	for _, tag := range tags {
		page += `<div><a href="` + ownerRepo + `/releases/tag/` + tag + `">` + tag + `</a>` +
			`<a href="` + ownerRepo + `/archive/refs/tags/` + tag + `.zip">zip</a></div>`
	}

	return page + `</body></html>`
}

// protonArchive builds a minimal release archive with a single top-level directory.
func protonArchive(t *testing.T, tag string) []byte {
	t.Helper()

	var buf bytes.Buffer

	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	files := []struct {
		name string
		body string
		dir  bool
	}{
		{name: tag + "/", dir: true},
		{name: tag + "/compatibilitytool.vdf", body: `"compatibilitytools" { "compat_tools" { "` + tag + `" {} } }`},
		{name: tag + "/files/", dir: true},
		{name: tag + "/files/version", body: tag},
	}

	for _, f := range files {
		header := &tar.Header{Name: f.name, Mode: 0o755, ModTime: time.Unix(0, 0)}
		if f.dir {
			header.Typeflag = tar.TypeDir
		} else {
			header.Typeflag = tar.TypeReg
			header.Size = int64(len(f.body))
		}

		require.NoError(t, tw.WriteHeader(header))

		if !f.dir {
			_, err := tw.Write([]byte(f.body))
			require.NoError(t, err)
		}
	}

	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	return buf.Bytes()
}

// steamLayout creates ~/.steam/root with old versions and a config.vdf.
func steamLayout(t *testing.T, withConfig bool) *config.Config {
	t.Helper()

	root := t.TempDir()
	tools := filepath.Join(root, "compatibilitytools.d")

	for _, name := range []string{"GE-Proton9-1", "GE-Proton9-2", "unrelated-folder"} {
		require.NoError(t, os.MkdirAll(filepath.Join(tools, name, "files"), 0o755))
	}

	if withConfig {
		require.NoError(t, os.MkdirAll(filepath.Join(root, "config"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(root, "config", "config.vdf"), []byte(configVDF), 0o600))
	}

	return &config.Config{
		SteamRoot:       root,
		ApplicationName: testAppName,
		Extractor:       config.ExtractorBuiltin,
		TempDir:         t.TempDir(),
	}
}

// pointAt directs cfg to the fake upstream.
func pointAt(cfg *config.Config, u *upstream) *config.Config {
	cfg.TagsURL = u.server.URL + ownerRepo + "/tags"
	cfg.DownloadURLTemplate = u.server.URL + "/releases/download/{tag}/{tag}.tar.gz"

	return cfg
}

// listDir returns the sorted entry names of dir.
func listDir(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}

	sort.Strings(names)

	return names
}

// failingTar writes a script that exits non-zero like tar on a corrupt archive.
func failingTar(t *testing.T) string {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}

	path := filepath.Join(t.TempDir(), "tar")
	//nolint:gosec // Test helper must be executable.
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\necho 'gzip: stdin: not in gzip format' >&2\nexit 2\n"), 0o700))

	return path
}

const configVDF = "\"InstallConfigStore\"\n" +
	"{\n" +
	"\t\"Software\"\n" +
	"\t{\n" +
	"\t\t\"Valve\"\n" +
	"\t\t{\n" +
	"\t\t\t\"Steam\"\n" +
	"\t\t\t{\n" +
	"\t\t\t\t\"CompatToolMapping\"\n" +
	"\t\t\t\t{\n" +
	"\t\t\t\t\t\"0\"\n" +
	"\t\t\t\t\t{\n" +
	"\t\t\t\t\t\t\"name\"\t\t\"GE-Proton9-1\"\n" +
	"\t\t\t\t\t\t\"config\"\t\t\"\"\n" +
	"\t\t\t\t\t\t\"priority\"\t\t\"250\"\n" +
	"\t\t\t\t\t}\n" +
	"\t\t\t\t}\n" +
	"\t\t\t}\n" +
	"\t\t}\n" +
	"\t}\n" +
	"}\n"
