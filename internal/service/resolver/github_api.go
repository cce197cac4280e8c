package resolver

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/go-github/v30/github"

	"github.com/voc0der/linux-proton-ge-updater/internal/domain/release"
	"github.com/voc0der/linux-proton-ge-updater/internal/logger"
	"github.com/voc0der/linux-proton-ge-updater/internal/version"
)

// releasesPerPage is how many releases one API call returns.
const releasesPerPage = 30

// GitHubAPIOptions configures the REST based resolver.
type GitHubAPIOptions struct {
	// BaseURL overrides https://api.github.com/ when set.
	BaseURL string
	// Owner and Repository identify the upstream.
	Owner      string
	Repository string
	// ToolPrefix every accepted tag starts with.
	ToolPrefix string
	// DownloadTemplate builds the artifact URL from the tag.
	DownloadTemplate string
}

// GitHubAPI resolves the newest release through the GitHub releases endpoint.
type GitHubAPI struct {
	client *github.Client
	opts   GitHubAPIOptions
}

// NewGitHubAPI returns a resolver talking to the GitHub REST API.
func NewGitHubAPI(opts *GitHubAPIOptions) (*GitHubAPI, error) {
	client := github.NewClient(nil)
	client.UserAgent = version.UserAgent()

	if opts.BaseURL != "" {
		baseURL, err := url.Parse(strings.TrimSuffix(opts.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("parse GitHub API URL: %w", err)
		}

		client.BaseURL = baseURL
	}

	return &GitHubAPI{
		client: client,
		opts:   *opts,
	}, nil
}

// Resolve lists the repository releases, newest first, and takes the first
// published one whose tag has the tool prefix. Drafts and prereleases are skipped.
func (r *GitHubAPI) Resolve(ctx context.Context) (*release.Artifact, error) {
	logger.InfoKV(ctx, "Listing releases through the GitHub API",
		"owner", r.opts.Owner, "repository", r.opts.Repository)

	releases, response, err := r.client.Repositories.ListReleases(ctx, r.opts.Owner, r.opts.Repository,
		&github.ListOptions{PerPage: releasesPerPage})
	if response != nil {
		logger.InfoKV(ctx, "GitHub API answered", "status", response.StatusCode)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: list releases: %w", release.ErrNetwork, err)
	}

	for _, repositoryRelease := range releases {
		name := repositoryRelease.GetTagName()
		if repositoryRelease.GetDraft() || repositoryRelease.GetPrerelease() ||
			!strings.HasPrefix(name, r.opts.ToolPrefix) {
			continue
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

	return nil, fmt.Errorf("%w: none of %d releases is published with a %s tag",
		release.ErrResolution, len(releases), r.opts.ToolPrefix)
}
