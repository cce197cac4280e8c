package resolver

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/voc0der/linux-proton-ge-updater/internal/domain/release"
	"github.com/voc0der/linux-proton-ge-updater/internal/logger"
	"github.com/voc0der/linux-proton-ge-updater/internal/service/common"
)

// TagsPageOptions describes where the listing lives and what a release link looks like.
type TagsPageOptions struct {
	// TagsURL is the HTML listing to fetch.
	TagsURL string
	// PathPrefix is the href path before the tag, e.g. /owner/repo/releases/tag/.
	PathPrefix string
	// ToolPrefix every accepted tag starts with.
	ToolPrefix string
	// DownloadTemplate builds the artifact URL from the tag.
	DownloadTemplate string
}

// TagsPage resolves the newest release by scanning the tags listing.
type TagsPage struct {
	client *common.Client
	opts   TagsPageOptions
}

// NewTagsPage returns a resolver reading the listing through client.
func NewTagsPage(client *common.Client, opts *TagsPageOptions) *TagsPage {
	return &TagsPage{
		client: client,
		opts:   *opts,
	}
}

// Resolve fetches the listing and picks the first release link.
func (r *TagsPage) Resolve(ctx context.Context) (*release.Artifact, error) {
	logger.InfoKV(ctx, "Fetching the tags page", "url", r.opts.TagsURL)

	body, status, err := r.client.Fetch(ctx, r.opts.TagsURL)
	if status != 0 {
		logger.InfoKV(ctx, "Tags page answered", "status", status)
	}

	if err != nil {
		return nil, err
	}

	name, found := FirstReleaseTag(bytes.NewReader(body), r.opts.PathPrefix)
	if !found {
		return nil, fmt.Errorf("%w: no link under %s on %s", release.ErrResolution, r.opts.PathPrefix, r.opts.TagsURL)
	}

	tag, err := release.NewTag(name, r.opts.ToolPrefix)
	if err != nil {
		return nil, err
	}

	artifact, err := release.NewArtifact(tag, r.opts.DownloadTemplate)
	if err != nil {
		return nil, fmt.Errorf("build download URL: %w", err)
	}

	logger.InfoKV(ctx, "Latest release found", "tag", artifact.Tag, "url", artifact.URL)

	return artifact, nil
}

// FirstReleaseTag returns the tag of the first <a href> in document order
// whose path starts with pathPrefix.
func FirstReleaseTag(document io.Reader, pathPrefix string) (string, bool) {
	tokenizer := html.NewTokenizer(document)

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			// io.EOF or a read error; either way the scan is over.
			return "", false
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttributes := tokenizer.TagName()
			if !hasAttributes || string(name) != "a" {
				continue
			}

			if tag, ok := tagFromAnchor(tokenizer, pathPrefix); ok {
				return tag, true
			}
		default:
		}
	}
}

// tagFromAnchor inspects the href attribute of the current anchor token.
func tagFromAnchor(tokenizer *html.Tokenizer, pathPrefix string) (string, bool) {
	for {
		key, value, more := tokenizer.TagAttr()
		if string(key) == "href" {
			return tagFromHref(string(value), pathPrefix)
		}

		if !more {
			return "", false
		}
	}
}

// tagFromHref extracts the path segment following pathPrefix.
// Absolute links are reduced to their path; query and fragment are ignored.
func tagFromHref(href, pathPrefix string) (string, bool) {
	parsed, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", false
	}

	rest, ok := strings.CutPrefix(parsed.Path, pathPrefix)
	if !ok {
		return "", false
	}

	tag, _, _ := strings.Cut(rest, "/")
	if tag == "" {
		return "", false
	}

	return tag, true
}
