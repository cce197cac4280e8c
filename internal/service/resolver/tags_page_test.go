package resolver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/voc0der/linux-proton-ge-updater/internal/domain/release"
	"github.com/voc0der/linux-proton-ge-updater/internal/service/common"
)

const (
	testPathPrefix = "/GloriousEggroll/proton-ge-custom/releases/tag/"
	testTemplate   = "https://downloads.example/releases/download/{tag}/{tag}.tar.gz"
)

// tagsPage renders a listing with anchors in the given order.
func tagsPage(hrefs ...string) string {
	var b strings.Builder

	b.WriteString(`<!DOCTYPE html><html><body><nav><a href="/GloriousEggroll">owner</a></nav><div class="Box">`)

	for _, href := range hrefs {
		b.WriteString(`<div class="Box-row"><h2><a class="Link--primary" href="` + href + `">tag</a></h2></div>`)
	}

	b.WriteString(`</div></body></html>`)

	return b.String()
}

func newTagsPageResolver(t *testing.T, handler http.HandlerFunc) *TagsPage {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewTagsPage(common.NewClient(), &TagsPageOptions{
		TagsURL:          srv.URL + "/GloriousEggroll/proton-ge-custom/tags",
		PathPrefix:       testPathPrefix,
		ToolPrefix:       "GE-Proton",
		DownloadTemplate: testTemplate,
	})
}

// TestFirstReleaseTag_FirstMatchWins verifies document order beats version order.
func TestFirstReleaseTag_FirstMatchWins(t *testing.T) {
	t.Parallel()

	page := tagsPage(
		"/GloriousEggroll/proton-ge-custom/commit/abc123",
		testPathPrefix+"GE-Proton9-2",
		testPathPrefix+"GE-Proton9-22",
		testPathPrefix+"GE-Proton10-1",
	)

	tag, ok := FirstReleaseTag(strings.NewReader(page), testPathPrefix)
	require.True(t, ok)
	require.Equal(t, "GE-Proton9-2", tag)
}

// TestFirstReleaseTag_HrefShapes covers absolute links, trailing segments and entities.
func TestFirstReleaseTag_HrefShapes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		href string
		want string
	}{
		{href: "https://github.com" + testPathPrefix + "GE-Proton9-5", want: "GE-Proton9-5"},
		{href: testPathPrefix + "GE-Proton9-6/assets?x=1#top", want: "GE-Proton9-6"},
		{href: testPathPrefix + "GE-Proton9-7?after=GE-Proton9-1&amp;q=1", want: "GE-Proton9-7"},
		{href: "  " + testPathPrefix + "GE-Proton9-8  ", want: "GE-Proton9-8"},
	}

	for _, tc := range cases {
		tag, ok := FirstReleaseTag(strings.NewReader(tagsPage(tc.href)), testPathPrefix)
		require.True(t, ok, tc.href)
		require.Equal(t, tc.want, tag, tc.href)
	}

	_, ok := FirstReleaseTag(strings.NewReader(tagsPage(testPathPrefix)), testPathPrefix)
	require.False(t, ok)
}

// TestTagsPage_Resolve builds the artifact from the first release link.
func TestTagsPage_Resolve(t *testing.T) {
	t.Parallel()

	r := newTagsPageResolver(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(tagsPage(testPathPrefix+"GE-Proton9-22", testPathPrefix+"GE-Proton9-21")))
	})

	artifact, err := r.Resolve(context.Background())
	require.NoError(t, err)
	require.Equal(t, release.Tag("GE-Proton9-22"), artifact.Tag)
	require.Equal(t, "https://downloads.example/releases/download/GE-Proton9-22/GE-Proton9-22.tar.gz", artifact.URL)
}

// TestTagsPage_Resolve_NoLinks fails with ErrResolution.
func TestTagsPage_Resolve_NoLinks(t *testing.T) {
	t.Parallel()

	r := newTagsPageResolver(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(tagsPage("/GloriousEggroll/proton-ge-custom/releases", "/about")))
	})

	_, err := r.Resolve(context.Background())
	require.ErrorIs(t, err, release.ErrResolution)
	require.NotErrorIs(t, err, release.ErrNetwork)
}

// TestTagsPage_Resolve_ForeignTag rejects a release link without the tool prefix.
func TestTagsPage_Resolve_ForeignTag(t *testing.T) {
	t.Parallel()

	r := newTagsPageResolver(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(tagsPage(testPathPrefix + "proton-9.0")))
	})

	_, err := r.Resolve(context.Background())
	require.ErrorIs(t, err, release.ErrResolution)
}

// TestTagsPage_Resolve_BadStatus fails with ErrNetwork.
func TestTagsPage_Resolve_BadStatus(t *testing.T) {
	t.Parallel()

	r := newTagsPageResolver(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(tagsPage(testPathPrefix + "GE-Proton9-22")))
	})

	_, err := r.Resolve(context.Background())
	require.ErrorIs(t, err, release.ErrNetwork)
}
