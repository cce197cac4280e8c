package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/voc0der/linux-proton-ge-updater/internal/config"
	"github.com/voc0der/linux-proton-ge-updater/internal/domain/release"
	"github.com/voc0der/linux-proton-ge-updater/internal/service/common"
)

// Resolver returns the artifact of the newest release.
type Resolver interface {
	Resolve(ctx context.Context) (*release.Artifact, error)
}

var errUnknownSource = errors.New("unknown release source")

// New builds the resolver selected by cfg.Source.
//
//nolint:ireturn // The source is a runtime choice.
func New(cfg *config.Config, client *common.Client) (Resolver, error) {
	switch cfg.Source {
	case config.SourceTagsPage, "":
		return NewTagsPage(client, &TagsPageOptions{
			TagsURL:          cfg.TagsURL,
			PathPrefix:       cfg.ReleasePathPrefix(),
			ToolPrefix:       cfg.ToolPrefix,
			DownloadTemplate: cfg.DownloadURLTemplate,
		}), nil
	case config.SourceGitHubAPI:
		return NewGitHubAPI(&GitHubAPIOptions{
			BaseURL:          cfg.GitHubAPIURL,
			Owner:            cfg.Owner,
			Repository:       cfg.Repository,
			ToolPrefix:       cfg.ToolPrefix,
			DownloadTemplate: cfg.DownloadURLTemplate,
		})
	default:
		return nil, fmt.Errorf("%w: %s", errUnknownSource, cfg.Source)
	}
}
