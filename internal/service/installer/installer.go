package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/voc0der/linux-proton-ge-updater/internal/domain/release"
	"github.com/voc0der/linux-proton-ge-updater/internal/logger"
	"github.com/voc0der/linux-proton-ge-updater/internal/service/common"
)

// stagingPattern names staging directories; the leading dot keeps them out
// of the cleaner's prefix match.
const stagingPattern = ".ge-proton-staging-*"

var errEmptyArchive = errors.New("archive contains no entries")

// Options configure an Installer.
type Options struct {
	// InstallDir receives the unpacked version.
	InstallDir string
	// TempDir receives the downloaded archive; empty means os.TempDir().
	TempDir string
}

// Installer fetches and unpacks artifacts.
type Installer struct {
	client    *common.Client
	extractor Extractor
	opts      Options
}

// New returns an Installer downloading through client and unpacking with extractor.
func New(client *common.Client, extractor Extractor, opts *Options) *Installer {
	return &Installer{
		client:    client,
		extractor: extractor,
		opts:      *opts,
	}
}

// Stage downloads the artifact and extracts it into a staging directory.
// The caller must Promote or Discard the result.
func (i *Installer) Stage(ctx context.Context, artifact *release.Artifact) (*Staged, error) {
	i.removeStaleStaging(ctx)

	archivePath, err := i.download(ctx, artifact)
	if err != nil {
		return nil, err
	}

	defer func() {
		if removeErr := os.Remove(archivePath); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
			logger.WarnKV(ctx, "Could not remove downloaded archive", "path", archivePath, "error", removeErr)
		}
	}()

	stagingDir, err := os.MkdirTemp(i.opts.InstallDir, stagingPattern)
	if err != nil {
		return nil, fmt.Errorf("%w: create staging directory: %w", release.ErrFilesystem, err)
	}

	logger.InfoKV(ctx, "Extracting archive", "archive", archivePath, "into", i.opts.InstallDir)

	if err = i.extractor.Extract(ctx, archivePath, stagingDir); err != nil {
		_ = os.RemoveAll(stagingDir)

		return nil, err
	}

	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		_ = os.RemoveAll(stagingDir)

		return nil, fmt.Errorf("%w: list staging directory: %w", release.ErrFilesystem, err)
	}

	if len(entries) == 0 {
		_ = os.RemoveAll(stagingDir)

		return nil, fmt.Errorf("%w: %s: %w", release.ErrFilesystem, artifact.FileName(), errEmptyArchive)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}

	return &Staged{
		dir:        stagingDir,
		installDir: i.opts.InstallDir,
		Entries:    names,
	}, nil
}

// download streams the artifact into a temporary file and returns its path.
func (i *Installer) download(ctx context.Context, artifact *release.Artifact) (string, error) {
	logger.InfoKV(ctx, "Downloading archive", "url", artifact.URL)

	response, err := i.client.Stream(ctx, artifact.URL)
	if response != nil {
		defer func() {
			_ = response.Body.Close()
		}()
	}

	if err != nil {
		return "", err
	}

	file, err := os.CreateTemp(i.opts.TempDir, "ge-proton-*-"+artifact.FileName())
	if err != nil {
		return "", fmt.Errorf("%w: create temporary file: %w", release.ErrFilesystem, err)
	}

	written, copyErr := io.Copy(file, response.Body)
	closeErr := file.Close()

	if copyErr != nil || closeErr != nil {
		_ = os.Remove(file.Name())

		if copyErr != nil {
			return "", fmt.Errorf("%w: download %s: %w", release.ErrNetwork, artifact.URL, copyErr)
		}

		return "", fmt.Errorf("%w: write %s: %w", release.ErrFilesystem, file.Name(), closeErr)
	}

	logger.InfoKV(ctx, "Archive downloaded", "path", file.Name(), "bytes", written)

	return file.Name(), nil
}

// removeStaleStaging deletes staging directories left by an interrupted run.
func (i *Installer) removeStaleStaging(ctx context.Context) {
	stale, err := filepath.Glob(filepath.Join(i.opts.InstallDir, stagingPattern))
	if err != nil {
		return
	}

	for _, dir := range stale {
		logger.InfoKV(ctx, "Removing leftover staging directory", "path", dir)

		if err = os.RemoveAll(dir); err != nil {
			logger.WarnKV(ctx, "Could not remove staging directory", "path", dir, "error", err)
		}
	}
}

// Staged is an extracted archive waiting to be moved into place.
type Staged struct {
	dir        string
	installDir string
	// Entries are the top-level names found in the archive.
	Entries []string
}

// Promote renames every staged entry into the install directory, replacing
// same-named leftovers, and returns the installed paths.
func (s *Staged) Promote(ctx context.Context) ([]string, error) {
	installed := make([]string, 0, len(s.Entries))

	for _, name := range s.Entries {
		target := filepath.Join(s.installDir, name)

		if _, err := os.Lstat(target); err == nil {
			logger.WarnKV(ctx, "Replacing existing entry", "path", target)

			if err = os.RemoveAll(target); err != nil {
				return installed, fmt.Errorf("%w: replace %s: %w", release.ErrFilesystem, target, err)
			}
		}

		if err := os.Rename(filepath.Join(s.dir, name), target); err != nil {
			return installed, fmt.Errorf("%w: move %s into place: %w", release.ErrFilesystem, name, err)
		}

		installed = append(installed, target)
	}

	if err := s.Discard(); err != nil {
		return installed, err
	}

	return installed, nil
}

// Discard removes the staging directory. It is safe to call after Promote.
func (s *Staged) Discard() error {
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("%w: remove staging directory: %w", release.ErrFilesystem, err)
	}

	return nil
}
